// Package config declares dataset configurations: an ordered list of
// layers, per-split overrides, and an optional external split file
// with fold support. Configs load from TOML, YAML, or JSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config is one dataset: a name, a root directory, ordered layers, and
// an optional split configuration.
type Config struct {
	Name   string       `toml:"name" yaml:"name" json:"name"`
	Root   string       `toml:"root,omitempty" yaml:"root,omitempty" json:"root,omitempty"`
	Layers []LayerSpec  `toml:"layers" yaml:"layers" json:"layers"`
	Split  *SplitConfig `toml:"split,omitempty" yaml:"split,omitempty" json:"split,omitempty"`
}

// Load reads a config file, decoding by extension (.toml, .yaml/.yml,
// .json). Relative paths inside the file resolve against the config
// file's directory: the root against the directory, layer paths and
// the split file against the root. The split file, when configured, is
// parsed eagerly. Validation failures still return the decoded config
// so callers can report per-layer problems.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(raw, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &cfg)
	case ".json":
		err = json.Unmarshal(raw, &cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	dir := filepath.Dir(path)
	if cfg.Root == "" {
		cfg.Root = dir
	} else if !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(dir, cfg.Root)
	}
	for i := range cfg.Layers {
		if p := cfg.Layers[i].Path; p != "" && !filepath.IsAbs(p) {
			cfg.Layers[i].Path = filepath.Join(cfg.Root, p)
		}
	}
	if cfg.Split != nil {
		if f := cfg.Split.File; f != "" && !filepath.IsAbs(f) {
			cfg.Split.File = filepath.Join(cfg.Root, f)
		}
		if err := cfg.Split.LoadFolds(); err != nil {
			return nil, err
		}
	}

	return &cfg, cfg.Validate()
}

// Validate checks the dataset-level rules and every layer, returning
// all problems joined.
func (c *Config) Validate() error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, fmt.Errorf("%w: missing dataset name", ErrInvalidConfig))
	}
	if len(c.Layers) == 0 {
		errs = append(errs, fmt.Errorf("%w: no layers declared", ErrInvalidConfig))
	}
	seen := make(map[string]struct{}, len(c.Layers))
	for i := range c.Layers {
		l := &c.Layers[i]
		if err := l.Validate(); err != nil {
			errs = append(errs, err)
		}
		if l.Name != "" {
			if _, dup := seen[l.Name]; dup {
				errs = append(errs, fmt.Errorf("%w: duplicate layer name %q", ErrInvalidConfig, l.Name))
			}
			seen[l.Name] = struct{}{}
		}
	}
	if c.Split != nil {
		for split, layers := range c.Split.Overrides {
			for name := range layers {
				if _, ok := seen[name]; !ok {
					errs = append(errs, fmt.Errorf("%w: split %q overrides unknown layer %q", ErrInvalidConfig, split, name))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// Layer returns the named layer bound to this config's split
// configuration.
func (c *Config) Layer(name string) (*Layer, error) {
	for i := range c.Layers {
		if c.Layers[i].Name == name {
			return &Layer{spec: c.Layers[i], split: c.Split}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownLayer, name)
}

// LayerNames returns the layer names in declaration order.
func (c *Config) LayerNames() []string {
	names := make([]string, len(c.Layers))
	for i := range c.Layers {
		names[i] = c.Layers[i].Name
	}
	return names
}

// Len returns the number of layers.
func (c *Config) Len() int { return len(c.Layers) }

func sortStrings(s []string) { sort.Strings(s) }
