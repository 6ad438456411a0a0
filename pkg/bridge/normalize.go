package bridge

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"vesselexpress/internal/models"
	"vesselexpress/pkg/nifti"
)

// Normalize rescales a loaded volume into the fixed-width sample range
// the downstream pipeline expects. Floating-point volumes are mapped
// linearly so the global minimum becomes 0 and the global maximum
// becomes opts.Levels-1; a constant-valued volume skips the rescale and
// is cast directly, so no division by zero can occur. Integer-typed
// volumes pass through unchanged.
//
// The function is pure: the same volume and options always produce the
// same raster, and the input is never modified.
func Normalize(vol *nifti.Volume, opts Options) *models.Raster {
	levels := opts.Levels
	if levels <= 0 {
		levels = DefaultOptions().Levels
	}

	raster := &models.Raster{
		Pix:    make([]uint16, len(vol.Data)),
		Width:  axisLen(vol.Shape, 0),
		Height: axisLen(vol.Shape, 1),
		Depth:  pageCount(vol.Shape),
		Bits:   16,
		DType:  vol.DType,
	}

	if vol.DType.IsFloat() {
		raster.DType = models.Uint16
		lo := floats.Min(vol.Data)
		hi := floats.Max(vol.Data)
		if hi > lo {
			scale := float64(levels-1) / (hi - lo)
			for i, v := range vol.Data {
				raster.Pix[i] = uint16(math.Round((v - lo) * scale))
			}
		} else {
			for i, v := range vol.Data {
				raster.Pix[i] = castSample(v)
			}
		}
		return raster
	}

	// Integer sources keep their values as-is. Samples outside the
	// 16-bit range wrap around; callers that care must rescale
	// upstream. uint8 keeps its narrow sample width.
	if vol.DType == models.Uint8 {
		raster.Bits = 8
	}
	for i, v := range vol.Data {
		raster.Pix[i] = castSample(v)
	}
	return raster
}

// castSample truncates a sample to 16 bits the way an unchecked
// integer cast would, preserving wraparound for out-of-range values.
func castSample(v float64) uint16 {
	return uint16(int64(v))
}

// axisLen returns the length of axis i, or 1 when the shape has fewer
// axes.
func axisLen(shape []int, i int) int {
	if i >= len(shape) {
		return 1
	}
	return shape[i]
}

// pageCount collapses every axis beyond the first two into the page
// dimension of the raster stack.
func pageCount(shape []int) int {
	pages := 1
	for _, axis := range shape[min(2, len(shape)):] {
		pages *= axis
	}
	return pages
}
