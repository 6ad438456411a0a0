package bridge

import (
	"path/filepath"
	"strings"
)

// rasterExt is the extension of the converted output image.
const rasterExt = ".tiff"

// sidecarSuffix is appended to the output stem to name the metadata
// sidecar written next to the raster.
const sidecarSuffix = "_nifti_metadata.txt"

// compressionExts lists container compression suffixes stripped (at
// most once) when deriving the output name.
var compressionExts = map[string]bool{".gz": true, ".bz2": true}

// formatExts lists volumetric format suffixes stripped (at most once)
// after the compression suffix.
var formatExts = map[string]bool{".nii": true}

// DeriveOutputPath computes the raster path for an input scan: the
// compression suffix and then the format suffix are each stripped
// exactly once from the basename, and the raster extension is appended.
// The output stays in the input's directory. Operating on parsed path
// components keeps a ".tiff" or ".nii" that appears mid-stem intact.
func DeriveOutputPath(input string) string {
	base := filepath.Base(input)
	if ext := filepath.Ext(base); compressionExts[strings.ToLower(ext)] {
		base = strings.TrimSuffix(base, ext)
	}
	if ext := filepath.Ext(base); formatExts[strings.ToLower(ext)] {
		base = strings.TrimSuffix(base, ext)
	}
	return filepath.Join(filepath.Dir(input), base+rasterExt)
}

// SidecarPath computes the metadata sidecar path for a raster output:
// the raster extension is replaced by the sidecar suffix.
func SidecarPath(rasterPath string) string {
	base := filepath.Base(rasterPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(rasterPath), base+sidecarSuffix)
}
