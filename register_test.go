package voxkit

import (
	"errors"
	"testing"

	"github.com/voxkit/voxkit/codec"
)

func TestRegisterBuiltins(t *testing.T) {
	r := codec.NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}

	cases := []struct {
		kind    codec.Kind
		ext     string
		backend string
	}{
		{codec.Image, ".npy", "npy"},
		{codec.Image, ".npz", "npy"},
		{codec.Image, ".png", "stdimage"},
		{codec.Image, ".jpg", "stdimage"},
		{codec.SemSeg, ".tif", "tiff"},
		{codec.SemSeg, ".nii.gz", "nifti"},
		{codec.MultiLabel, ".mha", "meta"},
		{codec.MultiLabel, ".cnd", "cnd"},
	}
	for _, tc := range cases {
		e, err := r.Resolve(tc.kind, tc.ext, "")
		if err != nil {
			t.Fatalf("Resolve(%v, %s): %v", tc.kind, tc.ext, err)
		}
		if e.Backend != tc.backend {
			t.Fatalf("default backend for (%v, %s) = %q, want %q", tc.kind, tc.ext, e.Backend, tc.backend)
		}
	}

	// JPEG is image-only.
	if _, err := r.Resolve(codec.SemSeg, ".jpg", ""); !errors.Is(err, codec.ErrUnsupportedFormat) {
		t.Fatalf("jpg semseg: want ErrUnsupportedFormat, got %v", err)
	}

	// Alternative chunked compressions are reachable by name.
	for _, backend := range []string{"cnd", "cnd-lz4", "cnd-brotli"} {
		if _, err := r.Resolve(codec.Image, ".cnd", backend); err != nil {
			t.Fatalf("Resolve(.cnd, %s): %v", backend, err)
		}
	}

	// Repeat registration is rejected, not silently merged.
	if err := RegisterBuiltins(r); !errors.Is(err, codec.ErrBackendRegistered) {
		t.Fatalf("want ErrBackendRegistered, got %v", err)
	}
}
