// Package npycodec implements the array-native backend: NumPy .npy
// files and single-array .npz archives. The format carries no spatial
// metadata; loads return the zero Metadata and saves reject anything
// else so callers never need to special-case the adapter.
//
// Loading parses headers through sbinet/npyio. Saving emits the fixed
// v1.0 header here because npyio's writer cannot encode arbitrary
// n-dimensional shapes.
package npycodec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sbinet/npyio"

	"github.com/voxkit/voxkit/array"
	"github.com/voxkit/voxkit/codec"
	"github.com/voxkit/voxkit/internal/fsutil"
	"github.com/voxkit/voxkit/spatial"
)

// ErrNotNPY reports a file that is not a supported .npy payload.
var ErrNotNPY = errors.New("voxkit: unsupported npy payload")

// Register binds the "npy" backend for .npy and .npz under every data
// kind.
func Register(r *codec.Registry) error {
	for _, kind := range []codec.Kind{codec.Image, codec.SemSeg, codec.MultiLabel} {
		if err := r.Register(kind, ".npy", "npy", LoadNPY, SaveNPY, codec.WithNDim()); err != nil {
			return err
		}
		if err := r.Register(kind, ".npz", "npy", LoadNPZ, SaveNPZ, codec.WithNDim()); err != nil {
			return err
		}
	}
	return nil
}

// LoadNPY reads one .npy file.
func LoadNPY(path string) (*array.Array, spatial.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, spatial.Metadata{}, err
	}
	defer f.Close()

	a, err := readNPY(f)
	return a, spatial.Metadata{}, err
}

// SaveNPY writes one .npy file. meta must be the zero value.
func SaveNPY(a *array.Array, path string, meta spatial.Metadata, _ codec.SaveOptions) error {
	if !meta.IsZero() {
		return fmt.Errorf("%w: npy", codec.ErrMetadataUnsupported)
	}
	return fsutil.WriteAtomic(path, func(w io.Writer) error {
		return writeNPY(w, a)
	})
}

func readNPY(r io.Reader) (*array.Array, error) {
	nr, err := npyio.NewReader(r)
	if err != nil {
		return nil, err
	}
	if nr.Header.Descr.Fortran {
		return nil, fmt.Errorf("%w: fortran order", ErrNotNPY)
	}
	shape := nr.Header.Descr.Shape
	if len(shape) == 0 {
		// Scalar file: treat as a single-element vector.
		shape = []int{1}
	}

	dt, err := dtypeFromDescr(nr.Header.Descr.Type)
	if err != nil {
		return nil, err
	}

	switch dt {
	case array.Uint8:
		var data []uint8
		if err := nr.Read(&data); err != nil {
			return nil, err
		}
		return array.New(shape, data)
	case array.Uint16:
		var data []uint16
		if err := nr.Read(&data); err != nil {
			return nil, err
		}
		return array.New(shape, data)
	case array.Int16:
		var data []int16
		if err := nr.Read(&data); err != nil {
			return nil, err
		}
		return array.New(shape, data)
	case array.Int32:
		var data []int32
		if err := nr.Read(&data); err != nil {
			return nil, err
		}
		return array.New(shape, data)
	case array.Int64:
		var data []int64
		if err := nr.Read(&data); err != nil {
			return nil, err
		}
		return array.New(shape, data)
	case array.Float32:
		var data []float32
		if err := nr.Read(&data); err != nil {
			return nil, err
		}
		return array.New(shape, data)
	case array.Float64:
		var data []float64
		if err := nr.Read(&data); err != nil {
			return nil, err
		}
		return array.New(shape, data)
	}
	return nil, fmt.Errorf("%w: dtype %v", ErrNotNPY, dt)
}

func writeNPY(w io.Writer, a *array.Array) error {
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%s), }",
		descrFromDType(a.DType()), shapeTuple(a.Shape()))

	// Pad so the data block starts on a 64-byte boundary, per the
	// format spec. 10 = magic(6) + version(2) + header length(2).
	pad := 64 - (10+len(header)+1)%64
	if pad == 64 {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"

	head := make([]byte, 0, 10+len(header))
	head = append(head, 0x93, 'N', 'U', 'M', 'P', 'Y', 1, 0)
	head = append(head, byte(len(header)), byte(len(header)>>8))
	head = append(head, header...)

	if _, err := w.Write(head); err != nil {
		return err
	}
	_, err := w.Write(a.Bytes())
	return err
}

func shapeTuple(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprintf("%d", d)
	}
	if len(parts) == 1 {
		return parts[0] + ","
	}
	return strings.Join(parts, ", ")
}

func dtypeFromDescr(descr string) (array.DType, error) {
	// Strip the byte-order marker; npy files written here are always
	// little-endian and single-byte types are order-free.
	trimmed := strings.TrimLeft(descr, "<|=")
	if strings.HasPrefix(descr, ">") {
		return 0, fmt.Errorf("%w: big-endian descr %q", ErrNotNPY, descr)
	}
	switch trimmed {
	case "u1":
		return array.Uint8, nil
	case "u2":
		return array.Uint16, nil
	case "i2":
		return array.Int16, nil
	case "i4":
		return array.Int32, nil
	case "i8":
		return array.Int64, nil
	case "f4":
		return array.Float32, nil
	case "f8":
		return array.Float64, nil
	}
	return 0, fmt.Errorf("%w: descr %q", ErrNotNPY, descr)
}

func descrFromDType(dt array.DType) string {
	switch dt {
	case array.Uint8:
		return "|u1"
	case array.Uint16:
		return "<u2"
	case array.Int16:
		return "<i2"
	case array.Int32:
		return "<i4"
	case array.Int64:
		return "<i8"
	case array.Float32:
		return "<f4"
	case array.Float64:
		return "<f8"
	}
	return "|u1"
}
