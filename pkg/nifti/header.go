// Package nifti reads NIfTI-1 volumetric scan files (.nii and .nii.gz).
// It exposes the voxel array, the affine index-to-world transform and the
// raw header so that downstream conversion can preserve the scan geometry.
package nifti

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"vesselexpress/internal/models"
)

// headerSize is the fixed size of a NIfTI-1 header in bytes. The
// sizeof_hdr field must hold this value; it doubles as the endianness
// probe when parsing.
const headerSize = 348

// FormatError reports a file that could not be parsed as a NIfTI-1
// container.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: not a valid NIfTI-1 file: %s", e.Path, e.Reason)
}

// Header is the 348-byte NIfTI-1 header exactly as laid out on disk.
// Field names follow the nifti1.h reference; all fields are fixed-size
// so the struct round-trips through encoding/binary unchanged.
type Header struct {
	SizeofHdr    int32
	DataTypeName [10]byte
	DBName       [18]byte
	Extents      int32
	SessionError int16
	Regular      byte
	DimInfo      byte

	// Dim[0] is the number of dimensions; Dim[1..Dim[0]] are the
	// axis lengths in voxels.
	Dim [8]int16

	IntentP1   float32
	IntentP2   float32
	IntentP3   float32
	IntentCode int16

	Datatype   int16
	Bitpix     int16
	SliceStart int16

	// Pixdim[1..Dim[0]] hold the physical voxel spacing per axis;
	// Pixdim[0] is the qfac sign used by the qform transform.
	Pixdim [8]float32

	VoxOffset float32
	SclSlope  float32
	SclInter  float32

	SliceEnd      int16
	SliceCode     byte
	XyztUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	Toffset       float32
	Glmax         int32
	Glmin         int32

	Descrip [80]byte
	AuxFile [24]byte

	QformCode int16
	SformCode int16

	QuaternB float32
	QuaternC float32
	QuaternD float32
	QoffsetX float32
	QoffsetY float32
	QoffsetZ float32

	SrowX [4]float32
	SrowY [4]float32
	SrowZ [4]float32

	IntentName [16]byte
	Magic      [4]byte
}

// readHeader parses a header from r, detecting byte order from the
// sizeof_hdr probe. path is used only for error reporting.
func readHeader(r io.Reader, path string) (*Header, binary.ByteOrder, error) {
	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, nil, &FormatError{Path: path, Reason: fmt.Sprintf("truncated header: %v", err)}
	}

	var hdr Header
	var order binary.ByteOrder = binary.LittleEndian
	if err := binary.Read(bytes.NewReader(raw), order, &hdr); err != nil {
		return nil, nil, fmt.Errorf("decoding header of %s: %w", path, err)
	}
	if hdr.SizeofHdr != headerSize {
		order = binary.BigEndian
		if err := binary.Read(bytes.NewReader(raw), order, &hdr); err != nil {
			return nil, nil, fmt.Errorf("decoding header of %s: %w", path, err)
		}
		if hdr.SizeofHdr != headerSize {
			return nil, nil, &FormatError{Path: path, Reason: "bad sizeof_hdr"}
		}
	}

	switch magic := string(hdr.Magic[:3]); magic {
	case "n+1":
		// single-file container, voxel data follows in this stream
	case "ni1":
		return nil, nil, &FormatError{Path: path, Reason: "detached header/image pairs are not supported"}
	default:
		return nil, nil, &FormatError{Path: path, Reason: fmt.Sprintf("bad magic %q", magic)}
	}

	if hdr.Dim[0] < 1 || hdr.Dim[0] > 7 {
		return nil, nil, &FormatError{Path: path, Reason: fmt.Sprintf("invalid dimension count %d", hdr.Dim[0])}
	}
	for i := int16(1); i <= hdr.Dim[0]; i++ {
		if hdr.Dim[i] < 1 {
			return nil, nil, &FormatError{Path: path, Reason: fmt.Sprintf("invalid axis length dim[%d]=%d", i, hdr.Dim[i])}
		}
	}
	if !hdr.DataType().Valid() {
		return nil, nil, &FormatError{Path: path, Reason: fmt.Sprintf("unsupported datatype code %d", hdr.Datatype)}
	}
	return &hdr, order, nil
}

// Ndim returns the number of dimensions declared by the header.
func (h *Header) Ndim() int {
	return int(h.Dim[0])
}

// Shape returns the axis lengths in voxels, x fastest.
func (h *Header) Shape() []int {
	shape := make([]int, h.Ndim())
	for i := range shape {
		shape[i] = int(h.Dim[i+1])
	}
	return shape
}

// Zooms returns the physical voxel spacing of each axis, in the
// header's native (x, y, z, ...) order.
func (h *Header) Zooms() []float64 {
	zooms := make([]float64, h.Ndim())
	for i := range zooms {
		zooms[i] = float64(h.Pixdim[i+1])
	}
	return zooms
}

// DataType returns the element type code of the voxel array.
func (h *Header) DataType() models.DataType {
	return models.DataType(h.Datatype)
}

// Affine returns the 4x4 index-to-world transform. The sform rows take
// precedence when present, then the qform quaternion, then a plain
// pixdim scaling as the last resort.
func (h *Header) Affine() *mat.Dense {
	if h.SformCode > 0 {
		return mat.NewDense(4, 4, []float64{
			float64(h.SrowX[0]), float64(h.SrowX[1]), float64(h.SrowX[2]), float64(h.SrowX[3]),
			float64(h.SrowY[0]), float64(h.SrowY[1]), float64(h.SrowY[2]), float64(h.SrowY[3]),
			float64(h.SrowZ[0]), float64(h.SrowZ[1]), float64(h.SrowZ[2]), float64(h.SrowZ[3]),
			0, 0, 0, 1,
		})
	}
	if h.QformCode > 0 {
		return h.qformAffine()
	}
	a := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		a.Set(i, i, float64(h.Pixdim[i+1]))
	}
	a.Set(3, 3, 1)
	return a
}

// qformAffine builds the transform from the quaternion representation
// defined by nifti1.h: a unit quaternion rotation, per-axis pixdim
// scaling, the qfac sign on the z column and the qoffset translation.
func (h *Header) qformAffine() *mat.Dense {
	b := float64(h.QuaternB)
	c := float64(h.QuaternC)
	d := float64(h.QuaternD)
	a := math.Sqrt(math.Max(0, 1-b*b-c*c-d*d))

	qfac := float64(h.Pixdim[0])
	if qfac == 0 {
		qfac = 1
	}
	sx := float64(h.Pixdim[1])
	sy := float64(h.Pixdim[2])
	sz := float64(h.Pixdim[3]) * qfac

	return mat.NewDense(4, 4, []float64{
		(a*a + b*b - c*c - d*d) * sx, 2 * (b*c - a*d) * sy, 2 * (b*d + a*c) * sz, float64(h.QoffsetX),
		2 * (b*c + a*d) * sx, (a*a + c*c - b*b - d*d) * sy, 2 * (c*d - a*b) * sz, float64(h.QoffsetY),
		2 * (b*d - a*c) * sx, 2 * (c*d + a*b) * sy, (a*a + d*d - b*b - c*c) * sz, float64(h.QoffsetZ),
		0, 0, 0, 1,
	})
}

// String renders a full field-by-field dump of the header, used for
// the metadata sidecar.
func (h *Header) String() string {
	var sb strings.Builder
	field := func(name string, value interface{}) {
		fmt.Fprintf(&sb, "%-16s: %v\n", name, value)
	}
	field("sizeof_hdr", h.SizeofHdr)
	field("data_type", cstring(h.DataTypeName[:]))
	field("db_name", cstring(h.DBName[:]))
	field("extents", h.Extents)
	field("session_error", h.SessionError)
	field("regular", h.Regular)
	field("dim_info", h.DimInfo)
	field("dim", h.Dim)
	field("intent_p1", h.IntentP1)
	field("intent_p2", h.IntentP2)
	field("intent_p3", h.IntentP3)
	field("intent_code", h.IntentCode)
	field("datatype", fmt.Sprintf("%d (%s)", h.Datatype, h.DataType()))
	field("bitpix", h.Bitpix)
	field("slice_start", h.SliceStart)
	field("pixdim", h.Pixdim)
	field("vox_offset", h.VoxOffset)
	field("scl_slope", h.SclSlope)
	field("scl_inter", h.SclInter)
	field("slice_end", h.SliceEnd)
	field("slice_code", h.SliceCode)
	field("xyzt_units", h.XyztUnits)
	field("cal_max", h.CalMax)
	field("cal_min", h.CalMin)
	field("slice_duration", h.SliceDuration)
	field("toffset", h.Toffset)
	field("glmax", h.Glmax)
	field("glmin", h.Glmin)
	field("descrip", cstring(h.Descrip[:]))
	field("aux_file", cstring(h.AuxFile[:]))
	field("qform_code", h.QformCode)
	field("sform_code", h.SformCode)
	field("quatern_b", h.QuaternB)
	field("quatern_c", h.QuaternC)
	field("quatern_d", h.QuaternD)
	field("qoffset_x", h.QoffsetX)
	field("qoffset_y", h.QoffsetY)
	field("qoffset_z", h.QoffsetZ)
	field("srow_x", h.SrowX)
	field("srow_y", h.SrowY)
	field("srow_z", h.SrowZ)
	field("intent_name", cstring(h.IntentName[:]))
	field("magic", cstring(h.Magic[:]))
	return sb.String()
}

// cstring interprets a fixed-size header field as a NUL-terminated string.
func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
