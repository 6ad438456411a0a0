// Package config provides configuration loading and management for the
// vesselexpress bridge. It handles loading settings from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application settings loaded from YAML
type Config struct {
	// Bridge parameters control the scan-to-raster conversion
	Bridge struct {
		// Levels is the number of intensity levels in normalized output.
		// 65536 targets 16-bit unsigned samples.
		Levels int `yaml:"levels"`

		// DefaultSpacing is reported when a scan header carries fewer
		// than three spatial axes
		DefaultSpacing string `yaml:"defaultSpacing"`
	} `yaml:"bridge"`

	// Workflow parameters control the external workflow engine invocation
	Workflow struct {
		// Engine is the workflow engine executable
		Engine string `yaml:"engine"`

		// Cores is the core count passed to the engine ("all" or a number)
		Cores string `yaml:"cores"`

		// CondaFrontend selects the conda implementation used by the engine
		CondaFrontend string `yaml:"condaFrontend"`

		// Verbose enables engine shell-command echoing
		Verbose bool `yaml:"verbose"`
	} `yaml:"workflow"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Bridge.Levels = 65536
	cfg.Bridge.DefaultSpacing = "1.0,1.0,1.0"

	cfg.Workflow.Engine = "snakemake"
	cfg.Workflow.Cores = "all"
	cfg.Workflow.CondaFrontend = "conda"
	cfg.Workflow.Verbose = false

	return cfg
}

// LoadConfig loads settings from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the settings to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default settings file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
