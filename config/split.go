package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Fold maps a split name to the filename substrings that assign a file
// to that split.
type Fold map[string][]string

// SplitFile is the parsed external split document, one Fold per
// cross-validation rotation.
type SplitFile []Fold

// LoadSplitFile reads a JSON split document. The document is either a
// list of fold mappings or a single mapping, which counts as one fold.
func LoadSplitFile(path string) (SplitFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var folds SplitFile
	if err := json.Unmarshal(raw, &folds); err == nil {
		return folds, nil
	}
	var single Fold
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("%w: split file %s: %v", ErrInvalidConfig, path, err)
	}
	return SplitFile{single}, nil
}

// SplitConfig declares how a dataset divides into splits: typed
// per-layer overrides keyed by split name, plus an optional external
// split file whose substrings narrow each layer's include filter.
type SplitConfig struct {
	File      string                               `toml:"file,omitempty" yaml:"file,omitempty" json:"file,omitempty"`
	Overrides map[string]map[string]*LayerOverride `toml:"overrides,omitempty" yaml:"overrides,omitempty" json:"overrides,omitempty"`

	folds SplitFile
}

// LoadFolds parses the configured split file. A no-op when no file is
// configured.
func (s *SplitConfig) LoadFolds() error {
	if s == nil || s.File == "" {
		return nil
	}
	folds, err := LoadSplitFile(s.File)
	if err != nil {
		return err
	}
	s.folds = folds
	return nil
}

// SetFolds installs fold assignments directly, for configs built in
// memory.
func (s *SplitConfig) SetFolds(folds SplitFile) { s.folds = folds }

// Folds returns the loaded fold assignments.
func (s *SplitConfig) Folds() SplitFile {
	if s == nil {
		return nil
	}
	return s.folds
}

// Names returns the split names declared by overrides and the first
// fold, deduplicated and sorted.
func (s *SplitConfig) Names() []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var names []string
	add := func(n string) {
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			names = append(names, n)
		}
	}
	for name := range s.Overrides {
		add(name)
	}
	if len(s.folds) > 0 {
		for name := range s.folds[0] {
			add(name)
		}
	}
	sortStrings(names)
	return names
}
