// Package nifti implements the "nifti" volumetric backend: NIfTI-1
// single-file volumes (.nii, and .nii.gz through klauspost gzip).
//
// NIfTI stores voxels with the first header dimension varying fastest,
// the reverse of this module's row-major arrays. The adapter writes
// header dimensions, pixdims, and affine columns in file order and
// reverses them again on load, so the logical array and its
// SpatialMetadata always come back in the axis order they were saved
// with.
package nifti

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/voxkit/voxkit/array"
	"github.com/voxkit/voxkit/codec"
	"github.com/voxkit/voxkit/internal/fsutil"
	"github.com/voxkit/voxkit/spatial"
)

// ErrNotNIfTI reports a file that is not a readable NIfTI-1 volume.
var ErrNotNIfTI = errors.New("voxkit: not a nifti-1 file")

const (
	headerSize = 348
	voxOffset  = 352

	dtUint8   = 2
	dtInt16   = 4
	dtInt32   = 8
	dtFloat32 = 16
	dtFloat64 = 64
	dtUint16  = 512
	dtInt64   = 1024
)

// Register binds the "nifti" backend for .nii and .nii.gz under every
// data kind. The format is single-volume, so no NDim capability.
func Register(r *codec.Registry) error {
	for _, ext := range []string{".nii", ".nii.gz"} {
		for _, kind := range []codec.Kind{codec.Image, codec.SemSeg, codec.MultiLabel} {
			if err := r.Register(kind, ext, "nifti", Load, Save, codec.WithSpatialMetadata()); err != nil {
				return err
			}
		}
	}
	return nil
}

// Save writes a NIfTI-1 volume. Metadata, when present, must match the
// array rank and the rank must be at most 3 (the affine has no room
// for more).
func Save(a *array.Array, path string, meta spatial.Metadata, _ codec.SaveOptions) error {
	rank := a.Rank()
	if rank > 7 {
		return fmt.Errorf("%w: rank %d exceeds nifti dims", ErrNotNIfTI, rank)
	}
	if !meta.IsZero() {
		if err := meta.Validate(); err != nil {
			return err
		}
		if meta.Dims() != rank || rank > 3 {
			return fmt.Errorf("%w: %d-d metadata on a rank-%d nifti volume", codec.ErrMetadataUnsupported, meta.Dims(), rank)
		}
	}

	dtCode, err := datatypeCode(a.DType())
	if err != nil {
		return err
	}

	hdr := make([]byte, voxOffset)
	le := binary.LittleEndian
	le.PutUint32(hdr[0:], headerSize)

	// dim[0] is the rank; dim[1..] hold the shape reversed so the
	// fastest-varying file axis is the last logical axis.
	shape := a.Shape()
	le.PutUint16(hdr[40:], uint16(rank))
	for i := 0; i < rank; i++ {
		le.PutUint16(hdr[42+i*2:], uint16(shape[rank-1-i]))
	}
	for i := rank; i < 7; i++ {
		le.PutUint16(hdr[42+i*2:], 1)
	}

	le.PutUint16(hdr[70:], uint16(dtCode))
	le.PutUint16(hdr[72:], uint16(a.DType().Size()*8))

	// pixdim[1..] in file axis order.
	le.PutUint32(hdr[76:], math.Float32bits(1)) // pixdim[0], qfac
	for i := 0; i < 7; i++ {
		sp := float32(1)
		if len(meta.Spacing) > 0 && i < rank {
			sp = float32(meta.Spacing[rank-1-i])
		}
		le.PutUint32(hdr[80+i*4:], math.Float32bits(sp))
	}

	le.PutUint32(hdr[108:], math.Float32bits(voxOffset)) // vox_offset
	le.PutUint32(hdr[112:], math.Float32bits(1))         // scl_slope

	if !meta.IsZero() {
		le.PutUint16(hdr[254:], 1) // sform_code = aligned
		srow := affineFromMeta(meta, rank)
		for r := 0; r < 3; r++ {
			for c := 0; c < 4; c++ {
				le.PutUint32(hdr[280+r*16+c*4:], math.Float32bits(float32(srow[r][c])))
			}
		}
	}

	copy(hdr[344:], "n+1\x00")

	raw := a.Bytes()
	return fsutil.WriteAtomic(path, func(w io.Writer) error {
		if strings.HasSuffix(strings.ToLower(path), ".gz") {
			gz := gzip.NewWriter(w)
			if _, err := gz.Write(hdr); err != nil {
				_ = gz.Close()
				return err
			}
			if _, err := gz.Write(raw); err != nil {
				_ = gz.Close()
				return err
			}
			return gz.Close()
		}
		if _, err := w.Write(hdr); err != nil {
			return err
		}
		_, err := w.Write(raw)
		return err
	})
}

// Load reads a NIfTI-1 volume and its spatial metadata.
func Load(path string) (*array.Array, spatial.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, spatial.Metadata{}, err
	}
	defer f.Close()

	var r io.Reader = f
	var sniff [2]byte
	if _, err := io.ReadFull(f, sniff[:]); err != nil {
		return nil, spatial.Metadata{}, fmt.Errorf("%w: short file", ErrNotNIfTI)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, spatial.Metadata{}, err
	}
	if sniff[0] == 0x1f && sniff[1] == 0x8b {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, spatial.Metadata{}, err
		}
		defer gz.Close()
		r = gz
	}

	hdr := make([]byte, voxOffset)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, spatial.Metadata{}, fmt.Errorf("%w: short header", ErrNotNIfTI)
	}
	le := binary.LittleEndian
	if le.Uint32(hdr[0:]) != headerSize || !bytes.Equal(hdr[344:347], []byte("n+1")) {
		return nil, spatial.Metadata{}, fmt.Errorf("%w: bad magic", ErrNotNIfTI)
	}

	rank := int(le.Uint16(hdr[40:]))
	if rank < 1 || rank > 7 {
		return nil, spatial.Metadata{}, fmt.Errorf("%w: dim[0]=%d", ErrNotNIfTI, rank)
	}
	shape := make([]int, rank)
	for i := 0; i < rank; i++ {
		d := int(le.Uint16(hdr[42+i*2:]))
		if d < 1 {
			return nil, spatial.Metadata{}, fmt.Errorf("%w: dim[%d]=%d", ErrNotNIfTI, i+1, d)
		}
		shape[rank-1-i] = d
	}

	dt, err := dtypeFromCode(int(le.Uint16(hdr[70:])))
	if err != nil {
		return nil, spatial.Metadata{}, err
	}

	// Header dimensions are attacker-controlled; bound the element
	// count so a hostile file errors instead of wrapping the product
	// and panicking in make.
	total := 1
	for _, d := range shape {
		if total > math.MaxInt/d {
			return nil, spatial.Metadata{}, fmt.Errorf("%w: volume %v overflows", ErrNotNIfTI, shape)
		}
		total *= d
	}
	if total > math.MaxInt/dt.Size() {
		return nil, spatial.Metadata{}, fmt.Errorf("%w: volume %v overflows", ErrNotNIfTI, shape)
	}
	off := int64(math.Float32frombits(le.Uint32(hdr[108:])))
	if off > voxOffset {
		if _, err := io.CopyN(io.Discard, r, off-voxOffset); err != nil {
			return nil, spatial.Metadata{}, fmt.Errorf("%w: truncated extensions", ErrNotNIfTI)
		}
	}
	raw := make([]byte, total*dt.Size())
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, spatial.Metadata{}, fmt.Errorf("%w: truncated voxel data", ErrNotNIfTI)
	}

	a, err := array.FromBytes(dt, shape, raw)
	if err != nil {
		return nil, spatial.Metadata{}, err
	}

	var meta spatial.Metadata
	if le.Uint16(hdr[254:]) > 0 && rank <= 3 {
		var srow [3][4]float64
		for rI := 0; rI < 3; rI++ {
			for c := 0; c < 4; c++ {
				srow[rI][c] = float64(math.Float32frombits(le.Uint32(hdr[280+rI*16+c*4:])))
			}
		}
		meta = metaFromAffine(srow, rank)
	}
	return a, meta, nil
}

// affineFromMeta builds the sform rows. Column p describes file voxel
// axis p, which is logical axis rank-1-p.
func affineFromMeta(meta spatial.Metadata, rank int) [3][4]float64 {
	dims := rank
	spacing := meta.Spacing
	if len(spacing) == 0 {
		spacing = make([]float64, dims)
		for i := range spacing {
			spacing[i] = 1
		}
	}
	dir := meta.Direction
	if len(dir) == 0 {
		dir = spatial.Identity(dims).Direction
	}

	var srow [3][4]float64
	for r := 0; r < 3; r++ {
		for p := 0; p < 3; p++ {
			q := dims - 1 - p
			if r < dims && q >= 0 {
				srow[r][p] = dir[r][q] * spacing[q]
			} else if r == p {
				srow[r][p] = 1
			}
		}
		if r < len(meta.Origin) {
			srow[r][3] = meta.Origin[r]
		}
	}
	return srow
}

// metaFromAffine inverts affineFromMeta: spacing is the column norm,
// direction the normalized column, origin the translation.
func metaFromAffine(srow [3][4]float64, rank int) spatial.Metadata {
	dims := rank
	meta := spatial.Metadata{
		Spacing:   make([]float64, dims),
		Origin:    make([]float64, dims),
		Direction: make([][]float64, dims),
	}
	for i := range meta.Direction {
		meta.Direction[i] = make([]float64, dims)
	}
	for p := 0; p < dims; p++ {
		q := dims - 1 - p
		var norm float64
		for r := 0; r < dims; r++ {
			norm += srow[r][p] * srow[r][p]
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			norm = 1
		}
		meta.Spacing[q] = norm
		for r := 0; r < dims; r++ {
			meta.Direction[r][q] = srow[r][p] / norm
		}
	}
	for r := 0; r < dims; r++ {
		meta.Origin[r] = srow[r][3]
	}
	return meta
}

func datatypeCode(dt array.DType) (int, error) {
	switch dt {
	case array.Uint8:
		return dtUint8, nil
	case array.Uint16:
		return dtUint16, nil
	case array.Int16:
		return dtInt16, nil
	case array.Int32:
		return dtInt32, nil
	case array.Int64:
		return dtInt64, nil
	case array.Float32:
		return dtFloat32, nil
	case array.Float64:
		return dtFloat64, nil
	}
	return 0, fmt.Errorf("%w: dtype %v", ErrNotNIfTI, dt)
}

func dtypeFromCode(code int) (array.DType, error) {
	switch code {
	case dtUint8:
		return array.Uint8, nil
	case dtUint16:
		return array.Uint16, nil
	case dtInt16:
		return array.Int16, nil
	case dtInt32:
		return array.Int32, nil
	case dtInt64:
		return array.Int64, nil
	case dtFloat32:
		return array.Float32, nil
	case dtFloat64:
		return array.Float64, nil
	}
	return 0, fmt.Errorf("%w: datatype code %d", ErrNotNIfTI, code)
}
