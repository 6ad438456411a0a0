// Package workflow prepares the working directory for the external
// vessel analysis workflow engine and drives its invocation. The
// engine itself (Snakemake) is an external collaborator: this package
// copies inputs into place, resolves the pipeline configuration file
// and maps the engine's exit status back to the caller.
package workflow

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"vesselexpress/internal/models"
	"vesselexpress/pkg/bridge"
	"vesselexpress/pkg/nifti"
)

// configName is the pipeline configuration file name expected by the
// workflow engine inside the workspace.
const configName = "config.json"

// rasterExts lists the non-volumetric input suffixes the pipeline
// accepts directly, without conversion.
var rasterExts = map[string]bool{
	".tif": true, ".tiff": true, ".png": true, ".jpg": true,
}

// Settings controls how the external workflow engine is invoked.
type Settings struct {
	// Engine is the workflow engine executable, normally "snakemake".
	Engine string

	// RootDir is the pipeline checkout containing workflow/Snakefile
	// and the packaged default configuration.
	RootDir string

	// Cores is passed to the engine's --cores flag ("all" or a number).
	Cores string

	// CondaFrontend selects the conda implementation the engine uses.
	CondaFrontend string

	// DryRun asks the engine to plan without executing.
	DryRun bool

	// Verbose enables engine diagnostics and shell-command echoing.
	Verbose bool
}

// KnownFormat reports whether name carries a suffix the pipeline
// recognizes, volumetric or raster.
func KnownFormat(name string) bool {
	if nifti.IsVolumeFile(name) {
		return true
	}
	return rasterExts[strings.ToLower(filepath.Ext(name))]
}

// PrepareWorkspace creates the working directory for a pipeline run,
// copies the input file into it and resolves the pipeline
// configuration: an explicit config file wins, then an existing copy
// in the workspace, then the packaged default under rootDir. The
// workspace path is returned.
func PrepareWorkspace(inputFile, configFile, outputDir, rootDir string) (string, error) {
	workspace := outputDir
	if workspace == "" {
		workspace = filepath.Join(rootDir, "data")
	}
	workspace, err := filepath.Abs(workspace)
	if err != nil {
		return "", fmt.Errorf("resolving workspace path: %w", err)
	}
	if err := os.MkdirAll(workspace, 0755); err != nil {
		return "", fmt.Errorf("creating workspace: %w", err)
	}

	input, err := filepath.Abs(inputFile)
	if err != nil {
		return "", fmt.Errorf("resolving input path: %w", err)
	}
	if _, err := os.Stat(input); err != nil {
		return "", fmt.Errorf("input file not found: %s", inputFile)
	}
	target := filepath.Join(workspace, filepath.Base(input))
	if target != input {
		if err := copyFile(input, target); err != nil {
			return "", fmt.Errorf("copying input into workspace: %w", err)
		}
		fmt.Printf("Copied input file to: %s\n", target)
	}

	targetConfig := filepath.Join(workspace, configName)
	switch {
	case configFile != "":
		src, err := filepath.Abs(configFile)
		if err != nil {
			return "", fmt.Errorf("resolving config path: %w", err)
		}
		if _, err := os.Stat(src); err != nil {
			return "", fmt.Errorf("config file not found: %s", configFile)
		}
		if err := copyFile(src, targetConfig); err != nil {
			return "", fmt.Errorf("copying config into workspace: %w", err)
		}
		fmt.Printf("Using config file: %s\n", targetConfig)
	case exists(targetConfig):
		// keep the config already present in the workspace
	case exists(filepath.Join(rootDir, "data", configName)):
		if err := copyFile(filepath.Join(rootDir, "data", configName), targetConfig); err != nil {
			return "", fmt.Errorf("copying default config: %w", err)
		}
		fmt.Printf("Using default config file: %s\n", targetConfig)
	default:
		fmt.Println("Warning: No config file found. Using workflow engine defaults.")
	}

	return workspace, nil
}

// Run invokes the workflow engine over the prepared workspace with
// stdout and stderr passed through for diagnostics. It returns the
// engine's exit code; a non-nil error means the engine could not be
// started at all.
func Run(s Settings) (int, error) {
	cmd := exec.Command(s.Engine, buildArgs(s)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	fmt.Printf("Command: %s\n\n", strings.Join(cmd.Args, " "))
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("starting workflow engine: %w", err)
	}
	return 0, nil
}

// buildArgs assembles the engine command line for the given settings.
func buildArgs(s Settings) []string {
	args := []string{
		"--use-conda",
		"--cores", s.Cores,
		"--conda-frontend", s.CondaFrontend,
		"--snakefile", filepath.Join(s.RootDir, "workflow", "Snakefile"),
		"--directory", s.RootDir,
	}
	if s.DryRun {
		args = append(args, "--dry-run")
	}
	if s.Verbose {
		args = append(args, "--verbose", "--printshellcmds")
	}
	return args
}

// Info prints what the pipeline needs to know about an input file:
// for volumetric scans the shape, element type and the recommended
// (z,y,x) spacing configuration string, for everything else the size.
func Info(w io.Writer, path string, opts bridge.Options) error {
	if !nifti.IsVolumeFile(path) {
		st, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("reading file info: %w", err)
		}
		fmt.Fprintf(w, "File: %s\n", path)
		fmt.Fprintf(w, "Size: %d bytes\n", st.Size())
		return nil
	}

	vol, err := nifti.Load(path)
	if err != nil {
		return err
	}
	dims, err := bridge.PixelDimensions(path, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nNIfTI File Information:\n")
	fmt.Fprintf(w, "  File: %s\n", path)
	fmt.Fprintf(w, "  Shape: %s\n", models.ShapeString(vol.Shape))
	fmt.Fprintf(w, "  Data type: %s\n", vol.DType)
	fmt.Fprintf(w, "  Pixel dimensions (z,y,x): %s\n", dims)
	fmt.Fprintf(w, "\n  Note: Add this to your %s:\n", configName)
	fmt.Fprintf(w, "    \"graphAnalysis\": {\"pixel_dimensions\": %q, ...}\n", dims)
	return nil
}

// exists reports whether path names an existing file.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// copyFile copies src to dst, preserving the source file mode.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	st, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, st.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
