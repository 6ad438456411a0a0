package nifti

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"

	"vesselexpress/internal/models"
)

// Volume is a loaded volumetric scan. It is immutable once returned;
// the loader holds no state and each call reads the file independently.
type Volume struct {
	// Data holds the voxel samples as float64 in x-fastest order.
	// Integer-typed sources are represented exactly; see DType.
	Data []float64

	// Shape lists the axis lengths in voxels, x fastest.
	Shape []int

	// Affine is the 4x4 matrix mapping voxel indices to physical
	// coordinates.
	Affine *mat.Dense

	// DType is the effective element type of Data: the on-disk type,
	// or Float64 when the header's scl_slope/scl_inter scaling was
	// applied during loading.
	DType models.DataType

	// Header is the raw NIfTI-1 header of the source file.
	Header *Header
}

// Load reads a volumetric scan from path. Both plain .nii files and
// gzip-compressed .nii.gz files are accepted; compression is detected
// from the stream content rather than the file name.
func Load(path string) (*Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening volume: %w", err)
	}
	defer f.Close()

	r, err := decompressed(f, path)
	if err != nil {
		return nil, err
	}

	hdr, order, err := readHeader(r, path)
	if err != nil {
		return nil, err
	}
	if err := skipToVoxels(r, hdr, path); err != nil {
		return nil, err
	}

	data, err := readVoxels(r, hdr, order, path)
	if err != nil {
		return nil, err
	}

	dtype := hdr.DataType()
	if applyScaling(hdr) {
		slope := float64(hdr.SclSlope)
		inter := float64(hdr.SclInter)
		for i, v := range data {
			data[i] = v*slope + inter
		}
		// matches nibabel get_fdata: scaled output is floating-point
		dtype = models.Float64
	}

	return &Volume{
		Data:   data,
		Shape:  hdr.Shape(),
		Affine: hdr.Affine(),
		DType:  dtype,
		Header: hdr,
	}, nil
}

// LoadHeader reads only the header of the scan at path, without
// touching the voxel data.
func LoadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening volume: %w", err)
	}
	defer f.Close()

	r, err := decompressed(f, path)
	if err != nil {
		return nil, err
	}
	hdr, _, err := readHeader(r, path)
	return hdr, err
}

// IsVolumeFile reports whether name carries a recognized volumetric
// scan suffix (.nii or .nii.gz).
func IsVolumeFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".nii") || strings.HasSuffix(lower, ".nii.gz")
}

// decompressed wraps f in a gzip reader when the stream starts with
// the gzip magic bytes.
func decompressed(f *os.File, path string) (io.Reader, error) {
	br := bufio.NewReader(f)
	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, &FormatError{Path: path, Reason: fmt.Sprintf("corrupt gzip stream: %v", err)}
		}
		return gz, nil
	}
	return br, nil
}

// skipToVoxels discards the bytes between the end of the header and
// the voxel block at vox_offset.
func skipToVoxels(r io.Reader, hdr *Header, path string) error {
	offset := int64(hdr.VoxOffset)
	if offset < headerSize {
		return &FormatError{Path: path, Reason: fmt.Sprintf("vox_offset %d overlaps the header", offset)}
	}
	if _, err := io.CopyN(io.Discard, r, offset-headerSize); err != nil {
		return &FormatError{Path: path, Reason: fmt.Sprintf("truncated before voxel data: %v", err)}
	}
	return nil
}

// readVoxels reads and decodes the full voxel block into float64
// samples. Integer values up to 53 bits round-trip exactly.
func readVoxels(r io.Reader, hdr *Header, order binary.ByteOrder, path string) ([]float64, error) {
	n := 1
	for _, axis := range hdr.Shape() {
		n *= axis
	}
	dtype := hdr.DataType()
	raw := make([]byte, n*dtype.BitPix()/8)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, &FormatError{Path: path, Reason: fmt.Sprintf("truncated voxel data: %v", err)}
	}

	data := make([]float64, n)
	switch dtype {
	case models.Uint8:
		for i := range data {
			data[i] = float64(raw[i])
		}
	case models.Int8:
		for i := range data {
			data[i] = float64(int8(raw[i]))
		}
	case models.Int16:
		for i := range data {
			data[i] = float64(int16(order.Uint16(raw[2*i:])))
		}
	case models.Uint16:
		for i := range data {
			data[i] = float64(order.Uint16(raw[2*i:]))
		}
	case models.Int32:
		for i := range data {
			data[i] = float64(int32(order.Uint32(raw[4*i:])))
		}
	case models.Uint32:
		for i := range data {
			data[i] = float64(order.Uint32(raw[4*i:]))
		}
	case models.Int64:
		for i := range data {
			data[i] = float64(int64(order.Uint64(raw[8*i:])))
		}
	case models.Uint64:
		for i := range data {
			data[i] = float64(order.Uint64(raw[8*i:]))
		}
	case models.Float32:
		for i := range data {
			data[i] = float64(math.Float32frombits(order.Uint32(raw[4*i:])))
		}
	case models.Float64:
		for i := range data {
			data[i] = math.Float64frombits(order.Uint64(raw[8*i:]))
		}
	default:
		return nil, &FormatError{Path: path, Reason: fmt.Sprintf("unsupported datatype code %d", hdr.Datatype)}
	}
	return data, nil
}

// applyScaling reports whether the header declares a meaningful
// scl_slope/scl_inter transform. A zero slope means "no scaling", and
// the identity transform is skipped.
func applyScaling(hdr *Header) bool {
	slope := hdr.SclSlope
	inter := hdr.SclInter
	if slope == 0 {
		return false
	}
	return slope != 1 || inter != 0
}
