package models

import (
	"fmt"
	"strings"
)

// DataType identifies the element type of a voxel array using the
// on-disk NIfTI-1 datatype codes.
type DataType int16

const (
	Uint8   DataType = 2
	Int16   DataType = 4
	Int32   DataType = 8
	Float32 DataType = 16
	Float64 DataType = 64
	Int8    DataType = 256
	Uint16  DataType = 512
	Uint32  DataType = 768
	Int64   DataType = 1024
	Uint64  DataType = 1280
)

// typeNames maps datatype codes to the names printed in metadata output.
var typeNames = map[DataType]string{
	Uint8:   "uint8",
	Int16:   "int16",
	Int32:   "int32",
	Float32: "float32",
	Float64: "float64",
	Int8:    "int8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Int64:   "int64",
	Uint64:  "uint64",
}

// String returns the conventional name of the element type.
func (d DataType) String() string {
	if name, ok := typeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int16(d))
}

// Valid reports whether d is one of the supported datatype codes.
func (d DataType) Valid() bool {
	_, ok := typeNames[d]
	return ok
}

// IsFloat reports whether the element type is floating-point.
func (d DataType) IsFloat() bool {
	return d == Float32 || d == Float64
}

// BitPix returns the number of bits per sample for the element type.
func (d DataType) BitPix() int {
	switch d {
	case Uint8, Int8:
		return 8
	case Int16, Uint16:
		return 16
	case Int32, Uint32, Float32:
		return 32
	case Int64, Uint64, Float64:
		return 64
	}
	return 0
}

// Raster holds a normalized voxel array ready to be written as a
// grayscale image stack. Samples are stored in x-fastest order
// (x, then y, then page), one page per z-slice.
type Raster struct {
	// Pix holds the sample values. For 8-bit rasters every value
	// fits in the low byte.
	Pix []uint16

	// Width, Height and Depth are the raster dimensions in voxels.
	// A 2D raster has Depth == 1.
	Width, Height, Depth int

	// Bits is the number of bits per sample in the written image,
	// either 8 or 16.
	Bits int

	// DType is the element type the samples represent: Uint16 for
	// rescaled floating-point input, the original type for integer
	// input that passed through unchanged.
	DType DataType
}

// ShapeString renders a dimension list in tuple form, e.g. "(256, 256, 180)".
func ShapeString(shape []int) string {
	parts := make([]string, len(shape))
	for i, n := range shape {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
