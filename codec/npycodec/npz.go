package npycodec

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"

	"github.com/voxkit/voxkit/array"
	"github.com/voxkit/voxkit/codec"
	"github.com/voxkit/voxkit/internal/fsutil"
	"github.com/voxkit/voxkit/spatial"
)

// npzMember is the archive entry name NumPy assigns the first
// positional array in an .npz file.
const npzMember = "arr_0.npy"

// LoadNPZ reads the arr_0 member of an .npz archive. Archives written
// by other tools are accepted as long as they contain arr_0.npy, or a
// single member of any name.
func LoadNPZ(path string) (*array.Array, spatial.Metadata, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, spatial.Metadata{}, err
	}
	defer zr.Close()

	member := pickMember(&zr.Reader)
	if member == nil {
		return nil, spatial.Metadata{}, fmt.Errorf("%w: npz archive has no %s member", ErrNotNPY, npzMember)
	}

	rc, err := member.Open()
	if err != nil {
		return nil, spatial.Metadata{}, err
	}
	defer rc.Close()

	a, err := readNPY(rc)
	return a, spatial.Metadata{}, err
}

// SaveNPZ writes a single-array .npz archive with an arr_0 member.
// meta must be the zero value.
func SaveNPZ(a *array.Array, path string, meta spatial.Metadata, _ codec.SaveOptions) error {
	if !meta.IsZero() {
		return fmt.Errorf("%w: npz", codec.ErrMetadataUnsupported)
	}

	var npy bytes.Buffer
	if err := writeNPY(&npy, a); err != nil {
		return err
	}

	return fsutil.WriteAtomic(path, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		entry, err := zw.Create(npzMember)
		if err != nil {
			_ = zw.Close()
			return err
		}
		if _, err := entry.Write(npy.Bytes()); err != nil {
			_ = zw.Close()
			return err
		}
		return zw.Close()
	})
}

func pickMember(zr *zip.Reader) *zip.File {
	for _, f := range zr.File {
		if f.Name == npzMember {
			return f
		}
	}
	if len(zr.File) == 1 {
		return zr.File[0]
	}
	return nil
}
