package task

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/voxkit/voxkit/array"
	"github.com/voxkit/voxkit/codec"
	"github.com/voxkit/voxkit/codec/chunked"
	"github.com/voxkit/voxkit/codec/npycodec"
	"github.com/voxkit/voxkit/codec/raster"
	"github.com/voxkit/voxkit/spatial"
)

func testRegistry(t *testing.T) *codec.Registry {
	t.Helper()
	r := codec.NewRegistry()
	if err := npycodec.Register(r); err != nil {
		t.Fatal(err)
	}
	if err := raster.Register(r); err != nil {
		t.Fatal(err)
	}
	if err := chunked.Register(r); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestImageRoundTrip(t *testing.T) {
	r := testRegistry(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "img.npy")

	w, err := NewImageWriter(".npy", "", 3, WithRegistry(r))
	if err != nil {
		t.Fatalf("NewImageWriter: %v", err)
	}
	l, err := NewImageLoader(".npy", "npy", 3, WithRegistry(r))
	if err != nil {
		t.Fatalf("NewImageLoader: %v", err)
	}
	if l.Channels() != 3 {
		t.Fatalf("Channels() = %d", l.Channels())
	}

	img, err := RandomImage([]int{8, 9}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Save(img, path, spatial.Metadata{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _, err := l.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !array.Equal(img, got) {
		t.Fatal("round trip changed image data")
	}
}

func TestMultiLabelRequiresNDim(t *testing.T) {
	r := testRegistry(t)
	// PNG is registered for the multilabel kind but cannot hold a
	// leading class axis.
	_, err := NewMultiLabelLoader(".png", "stdimage", 4, WithRegistry(r))
	if !errors.Is(err, codec.ErrUnsupportedFormat) {
		t.Fatalf("loader: want ErrUnsupportedFormat, got %v", err)
	}
	_, err = NewMultiLabelWriter(".png", "stdimage", 4, WithRegistry(r))
	if !errors.Is(err, codec.ErrUnsupportedFormat) {
		t.Fatalf("writer: want ErrUnsupportedFormat, got %v", err)
	}
	if _, err := NewMultiLabelLoader(".npy", "npy", 4, WithRegistry(r)); err != nil {
		t.Fatalf("npy should be ndim-capable: %v", err)
	}
}

func TestMultiLabelChunkedRoundTrip(t *testing.T) {
	r := testRegistry(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "mask.cnd")

	w, err := NewMultiLabelWriter(".cnd", "cnd", 4, WithRegistry(r), WithChunkShape([]int{2, 5, 5}))
	if err != nil {
		t.Fatalf("NewMultiLabelWriter: %v", err)
	}
	l, err := NewMultiLabelLoader(".cnd", "", 4, WithRegistry(r))
	if err != nil {
		t.Fatalf("NewMultiLabelLoader: %v", err)
	}

	mask, err := RandomMultiLabel([]int{7, 6}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Save(mask, path, spatial.Metadata{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _, err := l.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !array.Equal(mask, got) {
		t.Fatal("round trip changed mask data")
	}
}

func TestStackRoundTrip(t *testing.T) {
	r := testRegistry(t)
	dir := t.TempDir()
	stem := filepath.Join(dir, "sample")

	w, err := NewImageStackWriter(".npy", "npy", 3, WithRegistry(r))
	if err != nil {
		t.Fatalf("NewImageStackWriter: %v", err)
	}
	l, err := NewImageStackLoader(".npy", "npy", 3, WithRegistry(r))
	if err != nil {
		t.Fatalf("NewImageStackLoader: %v", err)
	}

	img, err := RandomImage([]int{5, 6}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Save(img, stem, spatial.Metadata{}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// One file per channel with zero-padded suffixes.
	for _, name := range []string{"sample_0000.npy", "sample_0001.npy", "sample_0002.npy"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing stack member %s: %v", name, err)
		}
	}

	got, _, err := l.Load(stem)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !array.Equal(img, got) {
		t.Fatal("stack round trip changed channel data or order")
	}
}

func TestStackLoadMissingFamily(t *testing.T) {
	r := testRegistry(t)
	l, err := NewMultiLabelStackLoader(".npy", "npy", 2, WithRegistry(r))
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = l.Load(filepath.Join(t.TempDir(), "absent"))
	if err == nil {
		t.Fatal("expected error for missing stack family")
	}
}

func TestConstructorUnknownBackend(t *testing.T) {
	r := testRegistry(t)
	_, err := NewImageLoader(".npy", "nope", 1, WithRegistry(r))
	if !errors.Is(err, codec.ErrUnknownBackend) {
		t.Fatalf("want ErrUnknownBackend, got %v", err)
	}
	_, err = NewSemSegLoader(".xyz", "", 2, WithRegistry(r))
	if !errors.Is(err, codec.ErrUnsupportedFormat) {
		t.Fatalf("want ErrUnsupportedFormat, got %v", err)
	}
}
