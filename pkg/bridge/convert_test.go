package bridge

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vesselexpress/internal/models"
	"vesselexpress/pkg/nifti"
	"vesselexpress/pkg/tiffstack"
)

// writeFloatVolume writes a float32 scan with the given shape and
// sample values, gzip-compressed when the path ends in .gz.
func writeFloatVolume(t *testing.T, path string, shape []int16, data []float32) {
	t.Helper()

	hdr := &nifti.Header{
		SizeofHdr: 348,
		Datatype:  int16(models.Float32),
		Bitpix:    32,
		VoxOffset: 352,
	}
	copy(hdr.Magic[:], "n+1\x00")
	hdr.Dim[0] = int16(len(shape))
	for i, d := range shape {
		hdr.Dim[i+1] = d
	}
	for i := range hdr.Pixdim {
		hdr.Pixdim[i] = 1
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, hdr); err != nil {
		t.Fatalf("Failed to encode header: %v", err)
	}
	for buf.Len() < int(hdr.VoxOffset) {
		buf.WriteByte(0)
	}
	if err := binary.Write(&buf, binary.LittleEndian, data); err != nil {
		t.Fatalf("Failed to encode voxels: %v", err)
	}

	raw := buf.Bytes()
	if strings.HasSuffix(path, ".gz") {
		var gz bytes.Buffer
		zw := gzip.NewWriter(&gz)
		if _, err := zw.Write(raw); err != nil {
			t.Fatalf("Failed to compress: %v", err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("Failed to close gzip writer: %v", err)
		}
		raw = gz.Bytes()
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("Failed to write volume: %v", err)
	}
}

func TestConvertDerivesOutputPath(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "scan.nii.gz")
	writeFloatVolume(t, input, []int16{2, 2, 2}, []float32{0, 1, 2, 3, 4, 5, 6, 7})

	output, err := Convert(input, "", DefaultOptions())
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if want := filepath.Join(dir, "scan.tiff"); output != want {
		t.Errorf("Output path = %q, want %q", output, want)
	}
	if _, err := os.Stat(output); err != nil {
		t.Errorf("Raster output missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "scan_nifti_metadata.txt")); err != nil {
		t.Errorf("Metadata sidecar missing: %v", err)
	}
}

func TestConvertPixelValues(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "scan.nii")
	// single 2x2 slice with values 0..3: min maps to 0, max to 65535
	writeFloatVolume(t, input, []int16{2, 2}, []float32{0, 1, 2, 3})

	output, err := Convert(input, "", DefaultOptions())
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	img, err := tiffstack.DecodeFirstPage(output)
	if err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	gray, ok := img.(*image.Gray16)
	if !ok {
		t.Fatalf("Decoded image is %T, want *image.Gray16", img)
	}
	if b := gray.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("Decoded bounds = %v, want 2x2", b)
	}
	want := [][]uint32{
		{0, 21845},
		{43690, 65535},
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			r, _, _, _ := gray.At(x, y).RGBA()
			if r != want[y][x] {
				t.Errorf("Pixel (%d,%d) = %d, want %d", x, y, r, want[y][x])
			}
		}
	}
}

func TestConvertDeterministic(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "scan.nii.gz")
	writeFloatVolume(t, input, []int16{3, 2, 2}, []float32{
		0, 0.25, 0.5, 0.75, 1, 1.25,
		2, 2.5, 3, 3.5, 4, 4.5,
	})
	output := filepath.Join(dir, "out.tiff")

	if _, err := Convert(input, output, DefaultOptions()); err != nil {
		t.Fatalf("First conversion failed: %v", err)
	}
	first, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}

	if _, err := Convert(input, output, DefaultOptions()); err != nil {
		t.Fatalf("Second conversion failed: %v", err)
	}
	second, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("Converting the same input twice produced different raster bytes")
	}
}

func TestConvertSidecarContents(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "scan.nii.gz")
	writeFloatVolume(t, input, []int16{4, 5, 3}, make([]float32, 60))
	output := filepath.Join(dir, "out.tiff")

	if _, err := Convert(input, output, DefaultOptions()); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "out_nifti_metadata.txt"))
	if err != nil {
		t.Fatalf("Failed to read sidecar: %v", err)
	}
	sidecar := string(raw)

	for _, want := range []string{
		"NIfTI Metadata",
		"Original file: " + input,
		"Shape: (4, 5, 3)",
		"Data type: uint16",
		"Affine matrix:",
		"Pixel dimensions (mm): (1.0, 1.0, 1.0)",
		"Header:",
		"sizeof_hdr",
	} {
		if !strings.Contains(sidecar, want) {
			t.Errorf("Sidecar is missing %q", want)
		}
	}

	// the report sections appear in a fixed order
	order := []string{"Original file:", "Shape:", "Data type:", "Affine matrix:", "Pixel dimensions (mm):", "Header:"}
	last := -1
	for _, section := range order {
		idx := strings.Index(sidecar, section)
		if idx < 0 {
			t.Fatalf("Sidecar is missing section %q", section)
		}
		if idx < last {
			t.Errorf("Section %q appears out of order", section)
		}
		last = idx
	}
}

func TestConvertBadInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "bad.nii")
	if err := os.WriteFile(input, []byte("definitely not a scan"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := Convert(input, "", DefaultOptions()); err == nil {
		t.Fatal("Convert of unparseable input succeeded")
	}
}

func TestConvertUnwritableOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "scan.nii")
	writeFloatVolume(t, input, []int16{2, 2}, []float32{0, 1, 2, 3})

	output := filepath.Join(dir, "missing-subdir", "out.tiff")
	if _, err := Convert(input, output, DefaultOptions()); err == nil {
		t.Fatal("Convert into a missing directory succeeded")
	}
}
