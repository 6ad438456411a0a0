package bridge

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"

	"vesselexpress/internal/models"
	"vesselexpress/pkg/nifti"
	"vesselexpress/pkg/tiffstack"
)

// Convert loads the scan at inputPath, normalizes its samples and
// writes a grayscale TIFF stack plus a metadata sidecar. When
// outputPath is empty the raster path is derived next to the input
// with the compression and format suffixes stripped. The raster path
// is returned.
//
// Any failure propagates immediately; there are no retries and no
// partial-recovery attempts. A failed conversion may leave a partial
// output file behind, which the next successful run overwrites.
func Convert(inputPath, outputPath string, opts Options) (string, error) {
	vol, err := nifti.Load(inputPath)
	if err != nil {
		return "", err
	}
	raster := Normalize(vol, opts)

	if outputPath == "" {
		outputPath = DeriveOutputPath(inputPath)
	}
	if err := tiffstack.WriteFile(outputPath, raster); err != nil {
		return "", err
	}
	if err := writeSidecar(SidecarPath(outputPath), inputPath, vol, raster); err != nil {
		return "", err
	}
	return outputPath, nil
}

// writeSidecar writes the plain-text metadata report describing the
// original scan: banner, source path, shape, element type, affine
// matrix, physical spacing in source (x, y, z) order and the full
// header dump, in that order.
func writeSidecar(path, inputPath string, vol *nifti.Volume, raster *models.Raster) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating metadata sidecar: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing metadata sidecar: %w", cerr)
		}
	}()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "NIfTI Metadata\n")
	fmt.Fprintf(w, "%s\n\n", strings.Repeat("=", 50))
	fmt.Fprintf(w, "Original file: %s\n", inputPath)
	fmt.Fprintf(w, "Shape: %s\n", models.ShapeString(vol.Shape))
	fmt.Fprintf(w, "Data type: %s\n", raster.DType)
	fmt.Fprintf(w, "\nAffine matrix:\n%v\n", mat.Formatted(vol.Affine))
	fmt.Fprintf(w, "\nPixel dimensions (mm): %s\n", zoomsTuple(vol.Header.Zooms()))
	fmt.Fprintf(w, "\nHeader:\n%s\n", vol.Header)

	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing metadata sidecar %s: %w", path, err)
	}
	return nil
}

// zoomsTuple renders the header spacing in tuple form, e.g.
// "(0.5, 0.5, 2.0)", keeping the source axis order.
func zoomsTuple(zooms []float64) string {
	parts := make([]string, len(zooms))
	for i, z := range zooms {
		parts[i] = formatSpacing(z)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
