// Package chunked implements the .cnd single-file container for
// chunked, compressed n-dimensional arrays with spatial metadata.
//
// Layout: a 24-byte fixed header, a JSON descriptor (shape, dtype,
// chunk shape, compressor id, spatial metadata), then one compressed
// section per chunk in row-major chunk-grid order. The chunk shape is
// required on save and controls on-disk tiling only; reads always
// return the full logical array.
package chunked

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/voxkit/voxkit/array"
	"github.com/voxkit/voxkit/codec"
	"github.com/voxkit/voxkit/internal/fsutil"
	"github.com/voxkit/voxkit/spatial"
)

// Ext is the file extension served by this package.
const Ext = ".cnd"

// ErrCorrupt reports a malformed .cnd file.
var ErrCorrupt = errors.New("voxkit: corrupt cnd container")

var magic = [8]byte{'V', 'X', 'C', 'N', 'D', '\r', '\n', 0x1A}

const (
	version1        uint16 = 1
	fixedHeaderSize        = 24
	// maxDescriptorLen bounds the JSON descriptor read.
	maxDescriptorLen = 1 << 20
)

type descriptor struct {
	DType      string           `json:"dtype"`
	Shape      []int            `json:"shape"`
	Chunks     []int            `json:"chunks"`
	Compressor string           `json:"compressor"`
	Spatial    spatial.Metadata `json:"spatial,omitempty"`
}

// Codec reads and writes .cnd files with a fixed compression choice.
// Reads accept any compressor regardless of the Codec's own.
type Codec struct {
	Compression Compression
}

// Register binds the zstd, lz4, and brotli variants of this container
// for every data kind, zstd first so it is the default backend.
func Register(r *codec.Registry) error {
	variants := []struct {
		name string
		comp Compression
	}{
		{"cnd", CompZstd},
		{"cnd-lz4", CompLZ4},
		{"cnd-brotli", CompBR},
	}
	for _, v := range variants {
		c := Codec{Compression: v.comp}
		for _, kind := range []codec.Kind{codec.Image, codec.SemSeg, codec.MultiLabel} {
			err := r.Register(kind, Ext, v.name, c.Load, c.Save,
				codec.WithSpatialMetadata(), codec.WithNDim())
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Save writes a to path. opts.ChunkShape is required and must have one
// entry per array dimension.
func (c Codec) Save(a *array.Array, path string, meta spatial.Metadata, opts codec.SaveOptions) error {
	if len(opts.ChunkShape) != a.Rank() {
		return fmt.Errorf("%w: got %v for a rank-%d array", codec.ErrChunkShape, opts.ChunkShape, a.Rank())
	}
	for _, d := range opts.ChunkShape {
		if d <= 0 {
			return fmt.Errorf("%w: non-positive entry in %v", codec.ErrChunkShape, opts.ChunkShape)
		}
	}
	if err := meta.Validate(); err != nil {
		return err
	}

	desc := descriptor{
		DType:      a.DType().String(),
		Shape:      a.Shape(),
		Chunks:     append([]int(nil), opts.ChunkShape...),
		Compressor: c.Compression.String(),
		Spatial:    meta,
	}
	descBytes, err := json.Marshal(desc)
	if err != nil {
		return err
	}

	raw := a.Bytes()
	elem := a.DType().Size()

	return fsutil.WriteAtomic(path, func(w io.Writer) error {
		if err := writeFixedHeader(w, uint32(len(descBytes))); err != nil {
			return err
		}
		if _, err := w.Write(descBytes); err != nil {
			return err
		}
		return forEachChunk(desc.Shape, desc.Chunks, func(off chunkExtent) error {
			chunkRaw := gatherChunk(raw, desc.Shape, off, elem)
			payload, err := compressChunk(c.Compression, chunkRaw)
			if err != nil {
				return err
			}
			var lenBuf [8]byte
			binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(payload)))
			if _, err := w.Write(lenBuf[:]); err != nil {
				return err
			}
			_, err = w.Write(payload)
			return err
		})
	})
}

// Load reads the full array and its spatial metadata from path.
func (c Codec) Load(path string) (*array.Array, spatial.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, spatial.Metadata{}, err
	}
	defer f.Close()

	descLen, err := readFixedHeader(f)
	if err != nil {
		return nil, spatial.Metadata{}, err
	}
	descBytes := make([]byte, descLen)
	if _, err := io.ReadFull(f, descBytes); err != nil {
		return nil, spatial.Metadata{}, fmt.Errorf("%w: truncated descriptor", ErrCorrupt)
	}
	var desc descriptor
	if err := json.Unmarshal(descBytes, &desc); err != nil {
		return nil, spatial.Metadata{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	dt, err := array.ParseDType(desc.DType)
	if err != nil {
		return nil, spatial.Metadata{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	comp, err := parseCompression(desc.Compressor)
	if err != nil {
		return nil, spatial.Metadata{}, err
	}
	if len(desc.Chunks) != len(desc.Shape) || len(desc.Shape) == 0 {
		return nil, spatial.Metadata{}, fmt.Errorf("%w: shape %v with chunks %v", ErrCorrupt, desc.Shape, desc.Chunks)
	}
	if err := desc.Spatial.Validate(); err != nil {
		return nil, spatial.Metadata{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	// Descriptor dimensions are attacker-controlled; bound the product
	// so a hostile shape errors instead of wrapping into a make panic.
	elem := dt.Size()
	total := 1
	for _, d := range desc.Shape {
		if d <= 0 {
			return nil, spatial.Metadata{}, fmt.Errorf("%w: shape %v", ErrCorrupt, desc.Shape)
		}
		if total > math.MaxInt/d {
			return nil, spatial.Metadata{}, fmt.Errorf("%w: shape %v overflows", ErrCorrupt, desc.Shape)
		}
		total *= d
	}
	if total > math.MaxInt/elem {
		return nil, spatial.Metadata{}, fmt.Errorf("%w: shape %v overflows", ErrCorrupt, desc.Shape)
	}
	raw := make([]byte, total*elem)

	err = forEachChunk(desc.Shape, desc.Chunks, func(off chunkExtent) error {
		var lenBuf [8]byte
		if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
			return fmt.Errorf("%w: truncated chunk header", ErrCorrupt)
		}
		payloadLen := binary.LittleEndian.Uint64(lenBuf[:])
		if payloadLen > uint64(len(raw))+chunkOverhead {
			return fmt.Errorf("%w: chunk payload of %d bytes", ErrCorrupt, payloadLen)
		}
		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(f, payload); err != nil {
			return fmt.Errorf("%w: truncated chunk payload", ErrCorrupt)
		}
		chunkRaw, err := decompressChunk(comp, payload, uint64(off.volume()*elem))
		if err != nil {
			return err
		}
		scatterChunk(raw, desc.Shape, off, elem, chunkRaw)
		return nil
	})
	if err != nil {
		return nil, spatial.Metadata{}, err
	}

	a, err := array.FromBytes(dt, desc.Shape, raw)
	if err != nil {
		return nil, spatial.Metadata{}, err
	}
	return a, desc.Spatial, nil
}

// chunkOverhead is the slack allowed over the raw array size for a
// single chunk payload (length prefix plus incompressible expansion).
const chunkOverhead = 1 << 16

func writeFixedHeader(w io.Writer, descLen uint32) error {
	var buf [fixedHeaderSize]byte
	copy(buf[0:8], magic[:])
	binary.LittleEndian.PutUint16(buf[8:10], version1)
	binary.LittleEndian.PutUint16(buf[10:12], 0) // flags
	binary.LittleEndian.PutUint32(buf[12:16], descLen)
	// bytes 16..24 reserved
	_, err := w.Write(buf[:])
	return err
}

func readFixedHeader(r io.Reader) (uint32, error) {
	var buf [fixedHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("%w: short fixed header", ErrCorrupt)
	}
	if [8]byte(buf[0:8]) != magic {
		return 0, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if v := binary.LittleEndian.Uint16(buf[8:10]); v != version1 {
		return 0, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}
	descLen := binary.LittleEndian.Uint32(buf[12:16])
	if descLen == 0 || descLen > maxDescriptorLen {
		return 0, fmt.Errorf("%w: descriptor length %d", ErrCorrupt, descLen)
	}
	return descLen, nil
}
