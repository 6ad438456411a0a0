package bridge

import (
	"strconv"
	"strings"

	"vesselexpress/pkg/nifti"
)

// PixelDimensions loads only the header of the scan at path and
// returns its physical voxel spacing as the comma-joined string the
// pipeline configuration expects, in (z, y, x) order.
func PixelDimensions(path string, opts Options) (string, error) {
	hdr, err := nifti.LoadHeader(path)
	if err != nil {
		return "", err
	}
	return SpacingString(hdr.Zooms(), opts), nil
}

// SpacingString reorders a header spacing vector into the pipeline's
// axis convention. The header reports spacing in (x, y, z) order while
// the pipeline indexes arrays (z, y, x), so the first three components
// are emitted reversed. This inversion is a deliberate convention
// bridge: changing it silently skews every physical measurement made
// downstream.
//
// A vector with fewer than three components falls back to
// opts.DefaultSpacing.
func SpacingString(zooms []float64, opts Options) string {
	if len(zooms) < 3 {
		if opts.DefaultSpacing != "" {
			return opts.DefaultSpacing
		}
		return DefaultOptions().DefaultSpacing
	}
	return formatSpacing(zooms[2]) + "," + formatSpacing(zooms[1]) + "," + formatSpacing(zooms[0])
}

// formatSpacing renders a spacing component in its natural decimal
// form: the shortest representation that round-trips the header's
// 32-bit value, with ".0" appended to bare integers so "2" reads as
// the physical quantity "2.0".
func formatSpacing(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 32)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
