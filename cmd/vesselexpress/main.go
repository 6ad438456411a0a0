package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"vesselexpress/pkg/bridge"
	"vesselexpress/pkg/config"
	"vesselexpress/pkg/workflow"
)

func main() {
	// Parse command line arguments
	inputFile := flag.String("input", "", "Input image file (TIFF, PNG, JPG or NIfTI format)")
	configFile := flag.String("config", "", "Pipeline configuration JSON file (default: packaged config)")
	outputDir := flag.String("output", "", "Workspace directory (default: <root>/data)")
	rootDir := flag.String("root", "", "Pipeline checkout directory (default: VesselExpress next to the executable)")
	settingsFile := flag.String("settings", "", "Bridge settings YAML file")
	cores := flag.String("cores", "", "Number of CPU cores to use (default: all)")
	dryRun := flag.Bool("dry-run", false, "Plan the workflow without executing it")
	verbose := flag.Bool("verbose", false, "Show verbose workflow engine output")
	info := flag.Bool("info", false, "Show information about the input file and exit")
	flag.Parse()

	// Validate inputs
	if *inputFile == "" {
		flag.Usage()
		os.Exit(1)
	}
	if _, err := os.Stat(*inputFile); err != nil {
		log.Fatalf("Input file not found: %s", *inputFile)
	}

	cfg, err := config.LoadConfig(*settingsFile)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	opts := bridge.Options{
		Levels:         cfg.Bridge.Levels,
		DefaultSpacing: cfg.Bridge.DefaultSpacing,
	}

	if *info {
		if err := workflow.Info(os.Stdout, *inputFile, opts); err != nil {
			log.Fatalf("Failed to read file info: %v", err)
		}
		return
	}

	if !workflow.KnownFormat(*inputFile) {
		log.Fatalf("Unsupported input format: %s", filepath.Ext(*inputFile))
	}

	root := *rootDir
	if root == "" {
		execPath, err := os.Executable()
		if err != nil {
			log.Fatalf("Failed to get executable path: %v", err)
		}
		root = filepath.Join(filepath.Dir(execPath), "VesselExpress")
	}

	fmt.Println("================================")
	fmt.Println("VESSELEXPRESS - BLOOD VESSEL ANALYSIS IN 3D IMAGE VOLUMES")
	fmt.Println("================================")

	workspace, err := workflow.PrepareWorkspace(*inputFile, *configFile, *outputDir, root)
	if err != nil {
		log.Fatalf("Workspace setup failed: %v", err)
	}
	fmt.Printf("Workspace prepared at: %s\n", workspace)

	settings := workflow.Settings{
		Engine:        cfg.Workflow.Engine,
		RootDir:       root,
		Cores:         cfg.Workflow.Cores,
		CondaFrontend: cfg.Workflow.CondaFrontend,
		DryRun:        *dryRun,
		Verbose:       *verbose || cfg.Workflow.Verbose,
	}
	if *cores != "" {
		settings.Cores = *cores
	}

	fmt.Println("\nRunning VesselExpress...")
	code, err := workflow.Run(settings)
	if err != nil {
		log.Fatalf("Workflow engine failed to start: %v", err)
	}
	if code != 0 {
		fmt.Printf("\nVesselExpress failed with exit code %d\n", code)
		fmt.Println("Check the error messages above for details.")
		os.Exit(code)
	}
	fmt.Println("\nVesselExpress completed successfully!")
}
