// Package task provides kind-typed loaders and writers on top of the
// codec registry: Image, SemSeg, and MultiLabel variants plus stacked
// forms that fan a sample's leading axis out over one file per index.
package task

import (
	"fmt"

	"github.com/voxkit/voxkit/array"
	"github.com/voxkit/voxkit/codec"
	"github.com/voxkit/voxkit/locate"
	"github.com/voxkit/voxkit/spatial"
)

// Loader is the read side all typed loaders share. Stacked loaders
// take a stem path (extension stripped) instead of a file path.
type Loader interface {
	Load(path string) (*array.Array, spatial.Metadata, error)
}

// Writer is the write side all typed writers share.
type Writer interface {
	Save(a *array.Array, path string, meta spatial.Metadata) error
}

// Option adjusts loader and writer construction.
type Option func(*options)

type options struct {
	registry   *codec.Registry
	chunkShape []int
}

// WithRegistry resolves against r instead of the process default.
func WithRegistry(r *codec.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithChunkShape sets the chunk shape passed to chunked backends on
// save. Ignored by backends that do not chunk.
func WithChunkShape(shape []int) Option {
	return func(o *options) { o.chunkShape = append([]int(nil), shape...) }
}

func buildOptions(opts []Option) options {
	o := options{registry: codec.Default}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// resolver holds one resolved registry entry together with the save
// options every typed loader and writer shares.
type resolver struct {
	entry *codec.Entry
	ext   string
	save  codec.SaveOptions
}

func newResolver(kind codec.Kind, ext, backend string, opts []Option) (resolver, error) {
	o := buildOptions(opts)
	entry, err := o.registry.Resolve(kind, ext, backend)
	if err != nil {
		return resolver{}, err
	}
	return resolver{entry: entry, ext: entry.Ext, save: codec.SaveOptions{ChunkShape: o.chunkShape}}, nil
}

func (r resolver) load(path string) (*array.Array, spatial.Metadata, error) {
	return r.entry.Load(path)
}

func (r resolver) store(a *array.Array, path string, meta spatial.Metadata) error {
	return r.entry.Save(a, path, meta, r.save)
}

// loadStack expands a stem path into its numbered file family and
// stacks the members along a new leading axis. Metadata comes from the
// first member.
func (r resolver) loadStack(stemPath string) (*array.Array, spatial.Metadata, error) {
	paths, err := locate.ExpandStack(stemPath, r.ext)
	if err != nil {
		return nil, spatial.Metadata{}, err
	}
	if len(paths) == 0 {
		return nil, spatial.Metadata{}, fmt.Errorf("%w: no numbered %s files for stem %s", codec.ErrUnsupportedFormat, r.ext, stemPath)
	}
	parts := make([]*array.Array, len(paths))
	var meta spatial.Metadata
	for i, p := range paths {
		a, m, err := r.entry.Load(p)
		if err != nil {
			return nil, spatial.Metadata{}, err
		}
		if i == 0 {
			meta = m
		}
		parts[i] = a
	}
	stacked, err := array.StackLeading(parts)
	if err != nil {
		return nil, spatial.Metadata{}, err
	}
	return stacked, meta, nil
}

// storeStack splits the leading axis and writes one numbered file per
// index, all carrying the same metadata.
func (r resolver) storeStack(a *array.Array, stemPath string, meta spatial.Metadata) error {
	parts, err := a.SplitLeading()
	if err != nil {
		return err
	}
	for i, part := range parts {
		path := fmt.Sprintf("%s_%04d%s", stemPath, i, r.ext)
		if err := r.entry.Save(part, path, meta, r.save); err != nil {
			return err
		}
	}
	return nil
}

// ImageLoader loads image samples for one (extension, backend) pair.
type ImageLoader struct {
	res      resolver
	channels int
}

func NewImageLoader(ext, backend string, channels int, opts ...Option) (*ImageLoader, error) {
	res, err := newResolver(codec.Image, ext, backend, opts)
	if err != nil {
		return nil, err
	}
	return &ImageLoader{res: res, channels: channels}, nil
}

func (l *ImageLoader) Channels() int { return l.channels }

func (l *ImageLoader) Load(path string) (*array.Array, spatial.Metadata, error) {
	return l.res.load(path)
}

// ImageWriter writes image samples.
type ImageWriter struct {
	res      resolver
	channels int
}

func NewImageWriter(ext, backend string, channels int, opts ...Option) (*ImageWriter, error) {
	res, err := newResolver(codec.Image, ext, backend, opts)
	if err != nil {
		return nil, err
	}
	return &ImageWriter{res: res, channels: channels}, nil
}

func (w *ImageWriter) Channels() int { return w.channels }

func (w *ImageWriter) Save(a *array.Array, path string, meta spatial.Metadata) error {
	return w.res.store(a, path, meta)
}

// SemSegLoader loads single-channel label masks.
type SemSegLoader struct {
	res     resolver
	classes int
}

func NewSemSegLoader(ext, backend string, classes int, opts ...Option) (*SemSegLoader, error) {
	res, err := newResolver(codec.SemSeg, ext, backend, opts)
	if err != nil {
		return nil, err
	}
	return &SemSegLoader{res: res, classes: classes}, nil
}

func (l *SemSegLoader) Classes() int { return l.classes }

func (l *SemSegLoader) Load(path string) (*array.Array, spatial.Metadata, error) {
	return l.res.load(path)
}

// SemSegWriter writes single-channel label masks.
type SemSegWriter struct {
	res     resolver
	classes int
}

func NewSemSegWriter(ext, backend string, classes int, opts ...Option) (*SemSegWriter, error) {
	res, err := newResolver(codec.SemSeg, ext, backend, opts)
	if err != nil {
		return nil, err
	}
	return &SemSegWriter{res: res, classes: classes}, nil
}

func (w *SemSegWriter) Classes() int { return w.classes }

func (w *SemSegWriter) Save(a *array.Array, path string, meta spatial.Metadata) error {
	return w.res.store(a, path, meta)
}

// MultiLabelLoader loads multi-label masks stored as one file with a
// leading class axis. The backend must support n-dimensional payloads;
// formats without native leading-axis support are only usable through
// the stacked variants.
type MultiLabelLoader struct {
	res     resolver
	classes int
}

func NewMultiLabelLoader(ext, backend string, classes int, opts ...Option) (*MultiLabelLoader, error) {
	res, err := newResolver(codec.MultiLabel, ext, backend, opts)
	if err != nil {
		return nil, err
	}
	if !res.entry.Caps.NDim {
		return nil, fmt.Errorf("%w: backend %q cannot store a leading class axis in %s", codec.ErrUnsupportedFormat, res.entry.Backend, ext)
	}
	return &MultiLabelLoader{res: res, classes: classes}, nil
}

func (l *MultiLabelLoader) Classes() int { return l.classes }

func (l *MultiLabelLoader) Load(path string) (*array.Array, spatial.Metadata, error) {
	return l.res.load(path)
}

// MultiLabelWriter writes multi-label masks with a leading class axis.
type MultiLabelWriter struct {
	res     resolver
	classes int
}

func NewMultiLabelWriter(ext, backend string, classes int, opts ...Option) (*MultiLabelWriter, error) {
	res, err := newResolver(codec.MultiLabel, ext, backend, opts)
	if err != nil {
		return nil, err
	}
	if !res.entry.Caps.NDim {
		return nil, fmt.Errorf("%w: backend %q cannot store a leading class axis in %s", codec.ErrUnsupportedFormat, res.entry.Backend, ext)
	}
	return &MultiLabelWriter{res: res, classes: classes}, nil
}

func (w *MultiLabelWriter) Classes() int { return w.classes }

func (w *MultiLabelWriter) Save(a *array.Array, path string, meta spatial.Metadata) error {
	return w.res.store(a, path, meta)
}

// ImageStackLoader loads an image stored as one file per channel,
// `<stem>_0000<ext>` upward, stacking channels along the leading axis.
type ImageStackLoader struct {
	res      resolver
	channels int
}

func NewImageStackLoader(ext, backend string, channels int, opts ...Option) (*ImageStackLoader, error) {
	res, err := newResolver(codec.Image, ext, backend, opts)
	if err != nil {
		return nil, err
	}
	return &ImageStackLoader{res: res, channels: channels}, nil
}

func (l *ImageStackLoader) Channels() int { return l.channels }

func (l *ImageStackLoader) Load(stemPath string) (*array.Array, spatial.Metadata, error) {
	return l.res.loadStack(stemPath)
}

// ImageStackWriter writes one file per channel.
type ImageStackWriter struct {
	res      resolver
	channels int
}

func NewImageStackWriter(ext, backend string, channels int, opts ...Option) (*ImageStackWriter, error) {
	res, err := newResolver(codec.Image, ext, backend, opts)
	if err != nil {
		return nil, err
	}
	return &ImageStackWriter{res: res, channels: channels}, nil
}

func (w *ImageStackWriter) Channels() int { return w.channels }

func (w *ImageStackWriter) Save(a *array.Array, stemPath string, meta spatial.Metadata) error {
	return w.res.storeStack(a, stemPath, meta)
}

// MultiLabelStackLoader loads a multi-label mask stored as one binary
// file per class.
type MultiLabelStackLoader struct {
	res     resolver
	classes int
}

func NewMultiLabelStackLoader(ext, backend string, classes int, opts ...Option) (*MultiLabelStackLoader, error) {
	res, err := newResolver(codec.MultiLabel, ext, backend, opts)
	if err != nil {
		return nil, err
	}
	return &MultiLabelStackLoader{res: res, classes: classes}, nil
}

func (l *MultiLabelStackLoader) Classes() int { return l.classes }

func (l *MultiLabelStackLoader) Load(stemPath string) (*array.Array, spatial.Metadata, error) {
	return l.res.loadStack(stemPath)
}

// MultiLabelStackWriter writes one binary mask file per class.
type MultiLabelStackWriter struct {
	res     resolver
	classes int
}

func NewMultiLabelStackWriter(ext, backend string, classes int, opts ...Option) (*MultiLabelStackWriter, error) {
	res, err := newResolver(codec.MultiLabel, ext, backend, opts)
	if err != nil {
		return nil, err
	}
	return &MultiLabelStackWriter{res: res, classes: classes}, nil
}

func (w *MultiLabelStackWriter) Classes() int { return w.classes }

func (w *MultiLabelStackWriter) Save(a *array.Array, stemPath string, meta spatial.Metadata) error {
	return w.res.storeStack(a, stemPath, meta)
}
