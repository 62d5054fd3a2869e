package config

import (
	"fmt"

	"github.com/voxkit/voxkit/codec"
	"github.com/voxkit/voxkit/locate"
	"github.com/voxkit/voxkit/task"
)

// LayerSpec declares one data layer of a dataset: where its files
// live, how they are named, and which backend reads them.
type LayerSpec struct {
	Name     string     `toml:"name" yaml:"name" json:"name"`
	Type     codec.Kind `toml:"type" yaml:"type" json:"type"`
	Path     string     `toml:"path" yaml:"path" json:"path"`
	FileType string     `toml:"file_type" yaml:"file_type" json:"file_type"`

	Pattern   string `toml:"pattern,omitempty" yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Backend   string `toml:"backend,omitempty" yaml:"backend,omitempty" json:"backend,omitempty"`
	FileStack bool   `toml:"file_stack,omitempty" yaml:"file_stack,omitempty" json:"file_stack,omitempty"`

	Channels int `toml:"channels,omitempty" yaml:"channels,omitempty" json:"channels,omitempty"`
	Classes  int `toml:"classes,omitempty" yaml:"classes,omitempty" json:"classes,omitempty"`

	IncludeNames []string `toml:"include_names,omitempty" yaml:"include_names,omitempty" json:"include_names,omitempty"`
	ExcludeNames []string `toml:"exclude_names,omitempty" yaml:"exclude_names,omitempty" json:"exclude_names,omitempty"`
}

// Validate checks the per-layer requirements: mandatory fields plus
// the kind-specific ones (images declare channels, masks declare
// classes).
func (l *LayerSpec) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("%w: layer with empty name", ErrInvalidConfig)
	}
	if l.Path == "" {
		return fmt.Errorf("%w: layer %q: missing path", ErrInvalidConfig, l.Name)
	}
	if l.FileType == "" {
		return fmt.Errorf("%w: layer %q: missing file_type", ErrInvalidConfig, l.Name)
	}
	if l.FileType[0] != '.' {
		return fmt.Errorf("%w: layer %q: file_type %q must start with a dot", ErrInvalidConfig, l.Name, l.FileType)
	}
	switch l.Type {
	case codec.Image:
		if l.Channels < 1 {
			return fmt.Errorf("%w: layer %q: image layers require channels >= 1", ErrInvalidConfig, l.Name)
		}
	case codec.SemSeg:
		if l.Classes < 1 {
			return fmt.Errorf("%w: layer %q: semseg layers require classes >= 1", ErrInvalidConfig, l.Name)
		}
		if l.FileStack {
			return fmt.Errorf("%w: layer %q: semseg layers cannot be file-stacked", ErrInvalidConfig, l.Name)
		}
	case codec.MultiLabel:
		if l.Classes < 1 {
			return fmt.Errorf("%w: layer %q: multilabel layers require classes >= 1", ErrInvalidConfig, l.Name)
		}
	default:
		return fmt.Errorf("%w: layer %q: missing or unknown type", ErrInvalidConfig, l.Name)
	}
	return nil
}

func (l *LayerSpec) clone() LayerSpec {
	out := *l
	out.IncludeNames = append([]string(nil), l.IncludeNames...)
	out.ExcludeNames = append([]string(nil), l.ExcludeNames...)
	return out
}

// LayerOverride is a typed partial LayerSpec: nil fields inherit from
// the base, set fields replace it. Name and type are not overridable.
type LayerOverride struct {
	Path     *string `toml:"path,omitempty" yaml:"path,omitempty" json:"path,omitempty"`
	FileType *string `toml:"file_type,omitempty" yaml:"file_type,omitempty" json:"file_type,omitempty"`
	Pattern  *string `toml:"pattern,omitempty" yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Backend  *string `toml:"backend,omitempty" yaml:"backend,omitempty" json:"backend,omitempty"`

	FileStack *bool `toml:"file_stack,omitempty" yaml:"file_stack,omitempty" json:"file_stack,omitempty"`
	Channels  *int  `toml:"channels,omitempty" yaml:"channels,omitempty" json:"channels,omitempty"`
	Classes   *int  `toml:"classes,omitempty" yaml:"classes,omitempty" json:"classes,omitempty"`

	IncludeNames []string `toml:"include_names,omitempty" yaml:"include_names,omitempty" json:"include_names,omitempty"`
	ExcludeNames []string `toml:"exclude_names,omitempty" yaml:"exclude_names,omitempty" json:"exclude_names,omitempty"`
}

// merge applies the override's set fields over base, returning a new
// spec. base is never mutated.
func merge(base LayerSpec, ov *LayerOverride) LayerSpec {
	out := base.clone()
	if ov == nil {
		return out
	}
	if ov.Path != nil {
		out.Path = *ov.Path
	}
	if ov.FileType != nil {
		out.FileType = *ov.FileType
	}
	if ov.Pattern != nil {
		out.Pattern = *ov.Pattern
	}
	if ov.Backend != nil {
		out.Backend = *ov.Backend
	}
	if ov.FileStack != nil {
		out.FileStack = *ov.FileStack
	}
	if ov.Channels != nil {
		out.Channels = *ov.Channels
	}
	if ov.Classes != nil {
		out.Classes = *ov.Classes
	}
	if ov.IncludeNames != nil {
		out.IncludeNames = append([]string(nil), ov.IncludeNames...)
	}
	if ov.ExcludeNames != nil {
		out.ExcludeNames = append([]string(nil), ov.ExcludeNames...)
	}
	return out
}

// Layer binds one LayerSpec to its dataset's split configuration and
// resolves the effective spec, file set, and typed loader/writer for a
// given (split, fold).
type Layer struct {
	spec  LayerSpec
	split *SplitConfig
}

// Spec returns the base spec before any split resolution.
func (l *Layer) Spec() LayerSpec { return l.spec.clone() }

// Name returns the layer name.
func (l *Layer) Name() string { return l.spec.Name }

// Resolve produces the effective spec for a split. The empty split
// name means "all files": no override lookup, no narrowing.
//
// Resolution: start from the base spec; merge the split override for
// this layer when one is declared (a declared-but-empty override still
// counts as explicit); then, when a split file is loaded, append its
// substrings for (fold, split) to the include filter. A split that is
// neither overridden nor assigned by the split file resolves to
// ErrNoExplicitSplit.
func (l *Layer) Resolve(split string, fold int) (LayerSpec, error) {
	spec := l.spec.clone()
	if split == "" {
		return spec, nil
	}

	explicit := false
	if l.split != nil {
		if layers, ok := l.split.Overrides[split]; ok {
			if ov, ok := layers[l.spec.Name]; ok {
				explicit = true
				spec = merge(spec, ov)
			}
		}
		if folds := l.split.Folds(); len(folds) > 0 {
			if fold < 0 || fold >= len(folds) {
				return LayerSpec{}, fmt.Errorf("%w: fold %d of %d", ErrFoldOutOfRange, fold, len(folds))
			}
			if includes, ok := folds[fold][split]; ok {
				explicit = true
				spec.IncludeNames = append(spec.IncludeNames, includes...)
			}
		}
	}
	if !explicit {
		return LayerSpec{}, fmt.Errorf("%w: layer %q, split %q", ErrNoExplicitSplit, l.spec.Name, split)
	}
	return spec, nil
}

// Locator resolves the split and lists the layer's files. Stacked
// layers return one entry per stem. ErrNoExplicitSplit propagates so
// callers can distinguish "empty split" from "no files on disk".
func (l *Layer) Locator(split string, fold int) (locate.FileSet, error) {
	spec, err := l.Resolve(split, fold)
	if err != nil {
		return nil, err
	}
	opts := locate.Options{
		Pattern:      spec.Pattern,
		IncludeNames: spec.IncludeNames,
		ExcludeNames: spec.ExcludeNames,
	}
	if spec.FileStack {
		return locate.LocateStacked(spec.Path, spec.FileType, opts)
	}
	return locate.Locate(spec.Path, spec.FileType, opts)
}

// Loader is the read side every task loader satisfies. Stacked loaders
// take a stem path instead of a file path.
type Loader = task.Loader

// Writer is the write side every task writer satisfies.
type Writer = task.Writer

// Loader builds the task-typed loader matching the layer's kind and
// stack flag.
func (l *Layer) Loader(opts ...task.Option) (Loader, error) {
	s := &l.spec
	switch {
	case s.Type == codec.Image && s.FileStack:
		return task.NewImageStackLoader(s.FileType, s.Backend, s.Channels, opts...)
	case s.Type == codec.Image:
		return task.NewImageLoader(s.FileType, s.Backend, s.Channels, opts...)
	case s.Type == codec.SemSeg:
		return task.NewSemSegLoader(s.FileType, s.Backend, s.Classes, opts...)
	case s.Type == codec.MultiLabel && s.FileStack:
		return task.NewMultiLabelStackLoader(s.FileType, s.Backend, s.Classes, opts...)
	case s.Type == codec.MultiLabel:
		return task.NewMultiLabelLoader(s.FileType, s.Backend, s.Classes, opts...)
	}
	return nil, fmt.Errorf("%w: layer %q: unknown type", ErrInvalidConfig, s.Name)
}

// Writer builds the task-typed writer matching the layer's kind and
// stack flag.
func (l *Layer) Writer(opts ...task.Option) (Writer, error) {
	s := &l.spec
	switch {
	case s.Type == codec.Image && s.FileStack:
		return task.NewImageStackWriter(s.FileType, s.Backend, s.Channels, opts...)
	case s.Type == codec.Image:
		return task.NewImageWriter(s.FileType, s.Backend, s.Channels, opts...)
	case s.Type == codec.SemSeg:
		return task.NewSemSegWriter(s.FileType, s.Backend, s.Classes, opts...)
	case s.Type == codec.MultiLabel && s.FileStack:
		return task.NewMultiLabelStackWriter(s.FileType, s.Backend, s.Classes, opts...)
	case s.Type == codec.MultiLabel:
		return task.NewMultiLabelWriter(s.FileType, s.Backend, s.Classes, opts...)
	}
	return nil, fmt.Errorf("%w: layer %q: unknown type", ErrInvalidConfig, s.Name)
}
