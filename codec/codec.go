// Package codec holds the registry that dispatches load and save calls
// to format backends by (data kind, file extension, backend name), and
// the uniform contract every backend implements.
//
// Backends attach through explicit Register calls made by an
// initialization routine (see the voxkit root package) before any
// Resolve. The registry is write-once state: once populated, concurrent
// reads are safe; concurrent registration must be serialized by the
// host application.
package codec

import (
	"fmt"

	"github.com/voxkit/voxkit/array"
	"github.com/voxkit/voxkit/spatial"
)

// Kind is the semantic data kind a layer stores. It determines which
// backends are eligible and how arrays are shaped.
type Kind uint8

const (
	// Image is single- or multi-channel intensity data.
	Image Kind = iota + 1
	// SemSeg is a label-index segmentation mask.
	SemSeg
	// MultiLabel is a per-class binary mask with a leading class axis.
	MultiLabel
)

// String returns the configuration name of the kind.
func (k Kind) String() string {
	switch k {
	case Image:
		return "image"
	case SemSeg:
		return "semseg"
	case MultiLabel:
		return "multilabel"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a configuration string to its Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "image":
		return Image, nil
	case "semseg":
		return SemSeg, nil
	case "multilabel":
		return MultiLabel, nil
	}
	return 0, fmt.Errorf("%w: layer type %q", ErrUnsupportedFormat, s)
}

// MarshalText implements encoding.TextMarshaler so kinds serialize as
// their configuration names.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for configuration
// decoding.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// UnmarshalYAML lets kinds decode from YAML configuration, which does
// not consult TextUnmarshaler.
func (k *Kind) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return k.UnmarshalText([]byte(s))
}

// SaveOptions carries backend parameters that are not part of the
// array or its metadata. ChunkShape is consumed only by chunked
// backends, which require it; it controls on-disk tiling and has no
// bearing on the logical array.
type SaveOptions struct {
	ChunkShape []int
}

// LoadFunc reads one file into an array and its spatial metadata. The
// metadata is the zero value for backends without geometry support.
type LoadFunc func(path string) (*array.Array, spatial.Metadata, error)

// SaveFunc writes one array to path. Backends that cannot store
// spatial metadata receive the zero value and must fail with
// ErrMetadataUnsupported when given anything else.
type SaveFunc func(a *array.Array, path string, meta spatial.Metadata, opts SaveOptions) error

// Caps describes what a registered backend can do beyond the base
// load/save contract.
type Caps struct {
	// SpatialMetadata is set when the backend round-trips spacing,
	// origin, and direction.
	SpatialMetadata bool
	// NDim is set when the backend natively stores a leading
	// channel/class axis in a single file.
	NDim bool
}

// Entry is one resolved (kind, extension, backend) binding.
type Entry struct {
	Kind    Kind
	Ext     string
	Backend string
	Load    LoadFunc
	Save    SaveFunc
	Caps    Caps
}

// RegisterOption customizes a Register call.
type RegisterOption func(*Caps)

// WithSpatialMetadata marks the backend as metadata-capable.
func WithSpatialMetadata() RegisterOption {
	return func(c *Caps) { c.SpatialMetadata = true }
}

// WithNDim marks the backend as storing a leading class/channel axis
// natively.
func WithNDim() RegisterOption {
	return func(c *Caps) { c.NDim = true }
}
