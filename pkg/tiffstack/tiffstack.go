// Package tiffstack writes grayscale multi-page TIFF files, one page
// per z-slice of a voxel raster. Pages use the minisblack photometric
// interpretation (sample value = intensity), uncompressed, with 8 or
// 16 bits per sample.
//
// A dedicated writer is needed because golang.org/x/image/tiff encodes
// only single images; that package is still used on the read side for
// decoding and verification.
package tiffstack

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"os"

	"golang.org/x/image/tiff"

	"vesselexpress/internal/models"
)

// TIFF tag and field-type constants used by the writer.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279

	typeShort = 3
	typeLong  = 4

	compressionNone      = 1
	photometricMinIsBlack = 1
)

// entryCount is the number of IFD entries written per page; each page
// directory therefore occupies a fixed 2 + entryCount*12 + 4 bytes.
const entryCount = 9
const ifdSize = 2 + entryCount*12 + 4

// WriteFile writes the raster as a multi-page TIFF at path. The file
// handle is closed on every exit path and close errors are surfaced.
func WriteFile(path string, r *models.Raster) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating raster output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing raster output: %w", cerr)
		}
	}()

	w := bufio.NewWriter(f)
	if err := Write(w, r); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Write encodes the raster as a little-endian TIFF stream. Pages are
// laid out sequentially, each directory immediately followed by its
// single strip of pixel data.
func Write(w io.Writer, r *models.Raster) error {
	if err := validate(r); err != nil {
		return err
	}

	// header: byte order, version, offset of the first directory
	if _, err := w.Write([]byte{'I', 'I', 42, 0, 8, 0, 0, 0}); err != nil {
		return err
	}

	bytesPerSample := r.Bits / 8
	pageSamples := r.Width * r.Height
	stripSize := uint32(pageSamples * bytesPerSample)

	offset := uint32(8)
	for page := 0; page < r.Depth; page++ {
		dataOffset := offset + ifdSize
		nextIFD := dataOffset + stripSize
		if page == r.Depth-1 {
			nextIFD = 0
		}
		if err := writeIFD(w, r, dataOffset, stripSize, nextIFD); err != nil {
			return err
		}
		if err := writeStrip(w, r.Pix[page*pageSamples:(page+1)*pageSamples], r.Bits); err != nil {
			return err
		}
		offset = dataOffset + stripSize
	}
	return nil
}

// DecodeFirstPage decodes the first directory of a TIFF file. Later
// pages are not reachable through x/image/tiff; this is sufficient for
// inspection and verification of single-slice rasters.
func DecodeFirstPage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening raster: %w", err)
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}

func validate(r *models.Raster) error {
	if r.Width < 1 || r.Height < 1 || r.Depth < 1 {
		return fmt.Errorf("invalid raster dimensions %dx%dx%d", r.Width, r.Height, r.Depth)
	}
	if r.Bits != 8 && r.Bits != 16 {
		return fmt.Errorf("unsupported sample width %d bits", r.Bits)
	}
	if len(r.Pix) != r.Width*r.Height*r.Depth {
		return fmt.Errorf("raster has %d samples, want %d", len(r.Pix), r.Width*r.Height*r.Depth)
	}
	return nil
}

func writeIFD(w io.Writer, r *models.Raster, dataOffset, stripSize, nextIFD uint32) error {
	buf := make([]byte, 0, ifdSize)
	buf = binary.LittleEndian.AppendUint16(buf, entryCount)
	buf = appendEntry(buf, tagImageWidth, typeLong, uint32(r.Width))
	buf = appendEntry(buf, tagImageLength, typeLong, uint32(r.Height))
	buf = appendEntry(buf, tagBitsPerSample, typeShort, uint32(r.Bits))
	buf = appendEntry(buf, tagCompression, typeShort, compressionNone)
	buf = appendEntry(buf, tagPhotometric, typeShort, photometricMinIsBlack)
	buf = appendEntry(buf, tagStripOffsets, typeLong, dataOffset)
	buf = appendEntry(buf, tagSamplesPerPixel, typeShort, 1)
	buf = appendEntry(buf, tagRowsPerStrip, typeLong, uint32(r.Height))
	buf = appendEntry(buf, tagStripByteCounts, typeLong, stripSize)
	buf = binary.LittleEndian.AppendUint32(buf, nextIFD)

	_, err := w.Write(buf)
	return err
}

// appendEntry appends one 12-byte directory entry with an inline value.
func appendEntry(buf []byte, tag, fieldType uint16, value uint32) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, tag)
	buf = binary.LittleEndian.AppendUint16(buf, fieldType)
	buf = binary.LittleEndian.AppendUint32(buf, 1)
	if fieldType == typeShort {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(value))
		buf = binary.LittleEndian.AppendUint16(buf, 0)
	} else {
		buf = binary.LittleEndian.AppendUint32(buf, value)
	}
	return buf
}

func writeStrip(w io.Writer, pix []uint16, bits int) error {
	if bits == 8 {
		buf := make([]byte, len(pix))
		for i, v := range pix {
			buf[i] = byte(v)
		}
		_, err := w.Write(buf)
		return err
	}
	buf := make([]byte, 2*len(pix))
	for i, v := range pix {
		binary.LittleEndian.PutUint16(buf[2*i:], v)
	}
	_, err := w.Write(buf)
	return err
}
