package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"vesselexpress/pkg/bridge"
	"vesselexpress/pkg/config"
)

func main() {
	// Parse command line arguments
	inputFile := flag.String("input", "", "Input NIfTI file (.nii or .nii.gz)")
	outputFile := flag.String("output", "", "Output TIFF file (default: same name with .tiff extension)")
	settingsFile := flag.String("settings", "", "Bridge settings YAML file")
	flag.Parse()

	// Validate inputs
	if *inputFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*settingsFile)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	opts := bridge.Options{
		Levels:         cfg.Bridge.Levels,
		DefaultSpacing: cfg.Bridge.DefaultSpacing,
	}

	output, err := bridge.Convert(*inputFile, *outputFile, opts)
	if err != nil {
		log.Fatalf("Conversion failed: %v", err)
	}
	fmt.Printf("Converted %s to %s\n", *inputFile, output)

	// Report the spacing string the pipeline configuration needs
	dims, err := bridge.PixelDimensions(*inputFile, opts)
	if err != nil {
		log.Fatalf("Failed to read pixel dimensions: %v", err)
	}
	fmt.Printf("Pixel dimensions (z,y,x): %s\n", dims)
	fmt.Printf("Note: Update config.json graphAnalysis.pixel_dimensions to: %s\n", dims)
}
