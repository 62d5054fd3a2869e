// Package metaimg implements the "meta" backend: single-file MetaImage
// volumes (.mha) with the pixel data embedded after a text header.
package metaimg

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/voxkit/voxkit/array"
	"github.com/voxkit/voxkit/codec"
	"github.com/voxkit/voxkit/internal/fsutil"
	"github.com/voxkit/voxkit/spatial"
)

// ErrNotMetaImage reports a file that is not a readable MetaImage.
var ErrNotMetaImage = errors.New("voxkit: not a metaimage file")

// Ext is the extension the backend registers under.
const Ext = ".mha"

// Register binds the "meta" backend for .mha under every data kind.
func Register(r *codec.Registry) error {
	for _, kind := range []codec.Kind{codec.Image, codec.SemSeg, codec.MultiLabel} {
		if err := r.Register(kind, Ext, "meta", Load, Save, codec.WithSpatialMetadata()); err != nil {
			return err
		}
	}
	return nil
}

var elementTypes = map[array.DType]string{
	array.Uint8:   "MET_UCHAR",
	array.Uint16:  "MET_USHORT",
	array.Int16:   "MET_SHORT",
	array.Int32:   "MET_INT",
	array.Int64:   "MET_LONG_LONG",
	array.Float32: "MET_FLOAT",
	array.Float64: "MET_DOUBLE",
}

// Save writes a compressed MetaImage. Like the NIfTI adapter, header
// dimensions run fastest-axis first, so shape, spacing, and direction
// columns are reversed relative to the logical array and reversed back
// on load.
func Save(a *array.Array, path string, meta spatial.Metadata, _ codec.SaveOptions) error {
	rank := a.Rank()
	if !meta.IsZero() {
		if err := meta.Validate(); err != nil {
			return err
		}
		if meta.Dims() != rank {
			return fmt.Errorf("%w: %d-d metadata on a rank-%d metaimage", codec.ErrMetadataUnsupported, meta.Dims(), rank)
		}
	}
	et, ok := elementTypes[a.DType()]
	if !ok {
		return fmt.Errorf("%w: dtype %v", ErrNotMetaImage, a.DType())
	}

	shape := a.Shape()
	dims := make([]string, rank)
	spacing := make([]string, rank)
	for i := 0; i < rank; i++ {
		dims[i] = strconv.Itoa(shape[rank-1-i])
		sp := 1.0
		if len(meta.Spacing) > 0 {
			sp = meta.Spacing[rank-1-i]
		}
		spacing[i] = formatFloat(sp)
	}

	offset := make([]string, rank)
	for r := 0; r < rank; r++ {
		o := 0.0
		if r < len(meta.Origin) {
			o = meta.Origin[r]
		}
		offset[r] = formatFloat(o)
	}

	dir := meta.Direction
	if len(dir) == 0 {
		dir = spatial.Identity(rank).Direction
	}
	// Row p of TransformMatrix is the world direction of file axis p.
	matrix := make([]string, 0, rank*rank)
	for p := 0; p < rank; p++ {
		q := rank - 1 - p
		for r := 0; r < rank; r++ {
			matrix = append(matrix, formatFloat(dir[r][q]))
		}
	}

	return fsutil.WriteAtomic(path, func(w io.Writer) error {
		var hdr strings.Builder
		fmt.Fprintf(&hdr, "ObjectType = Image\n")
		fmt.Fprintf(&hdr, "NDims = %d\n", rank)
		fmt.Fprintf(&hdr, "BinaryData = True\n")
		fmt.Fprintf(&hdr, "BinaryDataByteOrderMSB = False\n")
		fmt.Fprintf(&hdr, "CompressedData = True\n")
		fmt.Fprintf(&hdr, "TransformMatrix = %s\n", strings.Join(matrix, " "))
		fmt.Fprintf(&hdr, "Offset = %s\n", strings.Join(offset, " "))
		fmt.Fprintf(&hdr, "ElementSpacing = %s\n", strings.Join(spacing, " "))
		fmt.Fprintf(&hdr, "DimSize = %s\n", strings.Join(dims, " "))
		fmt.Fprintf(&hdr, "ElementType = %s\n", et)
		fmt.Fprintf(&hdr, "ElementDataFile = LOCAL\n")
		if _, err := io.WriteString(w, hdr.String()); err != nil {
			return err
		}
		zw := zlib.NewWriter(w)
		if _, err := zw.Write(a.Bytes()); err != nil {
			_ = zw.Close()
			return err
		}
		return zw.Close()
	})
}

// Load reads a MetaImage with embedded (LOCAL) pixel data, compressed
// or not.
func Load(path string) (*array.Array, spatial.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, spatial.Metadata{}, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	fields := make(map[string]string)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, spatial.Metadata{}, fmt.Errorf("%w: header ends before ElementDataFile", ErrNotMetaImage)
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, spatial.Metadata{}, fmt.Errorf("%w: malformed header line %q", ErrNotMetaImage, strings.TrimSpace(line))
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		fields[key] = value
		if key == "ElementDataFile" {
			if value != "LOCAL" {
				return nil, spatial.Metadata{}, fmt.Errorf("%w: external data file %q", ErrNotMetaImage, value)
			}
			break
		}
	}

	if ot := fields["ObjectType"]; ot != "Image" {
		return nil, spatial.Metadata{}, fmt.Errorf("%w: ObjectType %q", ErrNotMetaImage, ot)
	}
	if msb := fields["BinaryDataByteOrderMSB"]; strings.EqualFold(msb, "True") {
		return nil, spatial.Metadata{}, fmt.Errorf("%w: big-endian data", ErrNotMetaImage)
	}

	rank, err := strconv.Atoi(fields["NDims"])
	if err != nil || rank < 1 {
		return nil, spatial.Metadata{}, fmt.Errorf("%w: NDims %q", ErrNotMetaImage, fields["NDims"])
	}
	fileDims, err := parseInts(fields["DimSize"], rank)
	if err != nil {
		return nil, spatial.Metadata{}, fmt.Errorf("%w: DimSize: %v", ErrNotMetaImage, err)
	}
	// DimSize is attacker-controlled; bound the product so hostile
	// headers error instead of overflowing into a make panic.
	shape := make([]int, rank)
	total := 1
	for i, d := range fileDims {
		if d < 1 {
			return nil, spatial.Metadata{}, fmt.Errorf("%w: DimSize entry %d", ErrNotMetaImage, d)
		}
		if total > math.MaxInt/d {
			return nil, spatial.Metadata{}, fmt.Errorf("%w: DimSize %v overflows", ErrNotMetaImage, fileDims)
		}
		shape[rank-1-i] = d
		total *= d
	}

	dt, err := dtypeFromElementType(fields["ElementType"])
	if err != nil {
		return nil, spatial.Metadata{}, err
	}
	if total > math.MaxInt/dt.Size() {
		return nil, spatial.Metadata{}, fmt.Errorf("%w: DimSize %v overflows", ErrNotMetaImage, fileDims)
	}

	var dr io.Reader = br
	if strings.EqualFold(fields["CompressedData"], "True") {
		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, spatial.Metadata{}, fmt.Errorf("%w: bad zlib stream: %v", ErrNotMetaImage, err)
		}
		defer zr.Close()
		dr = zr
	}
	raw := make([]byte, total*dt.Size())
	if _, err := io.ReadFull(dr, raw); err != nil {
		return nil, spatial.Metadata{}, fmt.Errorf("%w: truncated pixel data", ErrNotMetaImage)
	}

	a, err := array.FromBytes(dt, shape, raw)
	if err != nil {
		return nil, spatial.Metadata{}, err
	}
	meta, err := metaFromFields(fields, rank)
	if err != nil {
		return nil, spatial.Metadata{}, err
	}
	return a, meta, nil
}

func metaFromFields(fields map[string]string, rank int) (spatial.Metadata, error) {
	_, hasSpacing := fields["ElementSpacing"]
	_, hasOffset := fields["Offset"]
	_, hasMatrix := fields["TransformMatrix"]
	if !hasSpacing && !hasOffset && !hasMatrix {
		return spatial.Metadata{}, nil
	}

	meta := spatial.Metadata{
		Spacing:   make([]float64, rank),
		Origin:    make([]float64, rank),
		Direction: spatial.Identity(rank).Direction,
	}
	for i := range meta.Spacing {
		meta.Spacing[i] = 1
	}
	if hasSpacing {
		fs, err := parseFloats(fields["ElementSpacing"], rank)
		if err != nil {
			return spatial.Metadata{}, fmt.Errorf("%w: ElementSpacing: %v", ErrNotMetaImage, err)
		}
		for i, s := range fs {
			meta.Spacing[rank-1-i] = s
		}
	}
	if hasOffset {
		fo, err := parseFloats(fields["Offset"], rank)
		if err != nil {
			return spatial.Metadata{}, fmt.Errorf("%w: Offset: %v", ErrNotMetaImage, err)
		}
		copy(meta.Origin, fo)
	}
	if hasMatrix {
		fm, err := parseFloats(fields["TransformMatrix"], rank*rank)
		if err != nil {
			return spatial.Metadata{}, fmt.Errorf("%w: TransformMatrix: %v", ErrNotMetaImage, err)
		}
		for p := 0; p < rank; p++ {
			q := rank - 1 - p
			for r := 0; r < rank; r++ {
				meta.Direction[r][q] = fm[p*rank+r]
			}
		}
	}
	return meta, nil
}

func parseInts(s string, n int) ([]int, error) {
	parts := strings.Fields(s)
	if len(parts) != n {
		return nil, fmt.Errorf("want %d values, got %d", n, len(parts))
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Fields(s)
	if len(parts) != n {
		return nil, fmt.Errorf("want %d values, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func dtypeFromElementType(et string) (array.DType, error) {
	for dt, name := range elementTypes {
		if name == et {
			return dt, nil
		}
	}
	return 0, fmt.Errorf("%w: ElementType %q", ErrNotMetaImage, et)
}
