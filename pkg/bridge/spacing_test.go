package bridge

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"vesselexpress/internal/models"
	"vesselexpress/pkg/nifti"
)

func TestSpacingStringReversesAxes(t *testing.T) {
	// header order is (x, y, z); the pipeline wants (z, y, x)
	got := SpacingString([]float64{0.5, 0.5, 2.0}, DefaultOptions())
	if want := "2.0,0.5,0.5"; got != want {
		t.Errorf("SpacingString = %q, want %q", got, want)
	}
}

func TestSpacingStringExtraAxes(t *testing.T) {
	// only the first three axes are spatial; the rest are ignored
	got := SpacingString([]float64{1.5, 2.5, 3.5, 1}, DefaultOptions())
	if want := "3.5,2.5,1.5"; got != want {
		t.Errorf("SpacingString = %q, want %q", got, want)
	}
}

func TestSpacingStringDefault(t *testing.T) {
	tests := []struct {
		name  string
		zooms []float64
	}{
		{"TwoAxes", []float64{0.5, 0.5}},
		{"OneAxis", []float64{0.5}},
		{"Empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SpacingString(tt.zooms, DefaultOptions()); got != "1.0,1.0,1.0" {
				t.Errorf("SpacingString(%v) = %q, want \"1.0,1.0,1.0\"", tt.zooms, got)
			}
		})
	}
}

func TestSpacingStringCustomDefault(t *testing.T) {
	opts := Options{Levels: 65536, DefaultSpacing: "2.0,2.0,2.0"}
	if got := SpacingString([]float64{1}, opts); got != "2.0,2.0,2.0" {
		t.Errorf("SpacingString = %q, want %q", got, "2.0,2.0,2.0")
	}
}

func TestFormatSpacing(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{2.0, "2.0"},
		{0.5, "0.5"},
		{1.0, "1.0"},
		{float64(float32(0.3)), "0.3"},
		{10.0, "10.0"},
	}
	for _, tt := range tests {
		if got := formatSpacing(tt.in); got != tt.want {
			t.Errorf("formatSpacing(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// writeSpacingVolume writes a gzip-compressed scan whose header
// carries the given pixdim values; voxel data is a single zero sample.
func writeSpacingVolume(t *testing.T, path string, ndim int16, pixdim []float32) {
	t.Helper()

	hdr := &nifti.Header{
		SizeofHdr: 348,
		Datatype:  int16(models.Float32),
		Bitpix:    32,
		VoxOffset: 352,
	}
	copy(hdr.Magic[:], "n+1\x00")
	hdr.Dim[0] = ndim
	n := 1
	for i := int16(1); i <= ndim; i++ {
		hdr.Dim[i] = 1
	}
	for i, p := range pixdim {
		hdr.Pixdim[i+1] = p
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, hdr); err != nil {
		t.Fatalf("Failed to encode header: %v", err)
	}
	for buf.Len() < int(hdr.VoxOffset) {
		buf.WriteByte(0)
	}
	if err := binary.Write(&buf, binary.LittleEndian, make([]float32, n)); err != nil {
		t.Fatalf("Failed to encode voxels: %v", err)
	}

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	if _, err := zw.Write(buf.Bytes()); err != nil {
		t.Fatalf("Failed to compress: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close gzip writer: %v", err)
	}
	if err := os.WriteFile(path, gz.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write volume: %v", err)
	}
}

func TestPixelDimensions(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "scan.nii.gz")
	writeSpacingVolume(t, path, 3, []float32{0.5, 0.5, 2.0})
	got, err := PixelDimensions(path, DefaultOptions())
	if err != nil {
		t.Fatalf("PixelDimensions failed: %v", err)
	}
	if want := "2.0,0.5,0.5"; got != want {
		t.Errorf("PixelDimensions = %q, want %q", got, want)
	}

	flat := filepath.Join(dir, "flat.nii.gz")
	writeSpacingVolume(t, flat, 2, []float32{0.5, 0.5})
	got, err = PixelDimensions(flat, DefaultOptions())
	if err != nil {
		t.Fatalf("PixelDimensions failed: %v", err)
	}
	if want := "1.0,1.0,1.0"; got != want {
		t.Errorf("PixelDimensions = %q, want %q", got, want)
	}
}

func TestPixelDimensionsBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.nii")
	if err := os.WriteFile(path, []byte("nope"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := PixelDimensions(path, DefaultOptions()); err == nil {
		t.Fatal("PixelDimensions on a bad file succeeded")
	}
}
