package codec

import (
	"fmt"
	"strings"
)

type registryKey struct {
	kind Kind
	ext  string
}

// Registry maps (kind, extension, backend) triples to codec entries.
// Registration order per (kind, extension) is preserved: the first
// registered backend is the deterministic default when the caller does
// not name one.
type Registry struct {
	entries map[registryKey][]*Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[registryKey][]*Entry)}
}

// Default is the process-wide registry that task wrappers use unless
// handed another one. Populate it once at startup, for example with
// voxkit.RegisterBuiltins.
var Default = NewRegistry()

// Register binds a loader and saver to (kind, ext, backend). Compound
// extensions such as ".nii.gz" are supported; extensions are compared
// case-insensitively and must start with a dot. Re-registering an
// already-bound triple fails with ErrBackendRegistered; the same
// (kind, ext) under a different backend adds a selectable alternative.
func (r *Registry) Register(kind Kind, ext, backend string, load LoadFunc, save SaveFunc, opts ...RegisterOption) error {
	ext = normalizeExt(ext)
	if ext == "" || !strings.HasPrefix(ext, ".") {
		return fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, ext)
	}
	if backend == "" {
		return fmt.Errorf("%w: empty backend name", ErrUnknownBackend)
	}
	if load == nil || save == nil {
		return fmt.Errorf("%w: nil loader or saver for %s %s/%s", ErrUnsupportedFormat, kind, ext, backend)
	}

	key := registryKey{kind: kind, ext: ext}
	for _, e := range r.entries[key] {
		if e.Backend == backend {
			return fmt.Errorf("%w: %s %s/%s", ErrBackendRegistered, kind, ext, backend)
		}
	}

	entry := &Entry{Kind: kind, Ext: ext, Backend: backend, Load: load, Save: save}
	for _, opt := range opts {
		opt(&entry.Caps)
	}
	r.entries[key] = append(r.entries[key], entry)
	return nil
}

// Resolve returns the entry for (kind, ext, backend). An empty backend
// selects the first backend registered for (kind, ext), which is
// stable across runs. Resolve fails with ErrUnsupportedFormat when
// nothing is registered for (kind, ext) at all, and with
// ErrUnknownBackend when the named backend has no binding there.
func (r *Registry) Resolve(kind Kind, ext, backend string) (*Entry, error) {
	ext = normalizeExt(ext)
	key := registryKey{kind: kind, ext: ext}
	list := r.entries[key]
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: no backend for %s %q", ErrUnsupportedFormat, kind, ext)
	}
	if backend == "" {
		return list[0], nil
	}
	for _, e := range list {
		if e.Backend == backend {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %q for %s %q", ErrUnknownBackend, backend, kind, ext)
}

// Backends lists the backend names registered for (kind, ext) in
// registration order. The first entry is the default.
func (r *Registry) Backends(kind Kind, ext string) []string {
	list := r.entries[registryKey{kind: kind, ext: normalizeExt(ext)}]
	names := make([]string, 0, len(list))
	for _, e := range list {
		names = append(names, e.Backend)
	}
	return names
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimSpace(ext))
}
