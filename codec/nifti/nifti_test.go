package nifti

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/voxkit/voxkit/array"
	"github.com/voxkit/voxkit/codec"
	"github.com/voxkit/voxkit/spatial"
)

func makeVolume(t *testing.T, shape []int) *array.Array {
	t.Helper()
	n := 1
	for _, d := range shape {
		n *= d
	}
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(i) * 0.5
	}
	a, err := array.New(shape, data)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestRoundTripPlain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vol.nii")
	a := makeVolume(t, []int{5, 4, 3})

	if err := Save(a, path, spatial.Metadata{}, codec.SaveOptions{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, meta, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !array.Equal(a, got) {
		t.Fatal("round trip changed voxel data")
	}
	if !meta.IsZero() {
		t.Fatalf("expected zero metadata, got %+v", meta)
	}
}

func TestRoundTripGzipWithMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vol.nii.gz")
	a := makeVolume(t, []int{6, 5, 4})

	meta := spatial.Metadata{
		Spacing: []float64{1, 0.5, 0.25},
		Origin:  []float64{10, 20, 30},
		Direction: [][]float64{
			{-1, 0, 0},
			{0, 1, 0},
			{0, 0, 1},
		},
	}
	if err := Save(a, path, meta, codec.SaveOptions{}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Confirm the file is actually gzipped.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if raw[0] != 0x1f || raw[1] != 0x8b {
		t.Fatal("expected gzip stream for .nii.gz")
	}

	got, gotMeta, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !array.Equal(a, got) {
		t.Fatal("round trip changed voxel data")
	}
	if !spatial.EqualApprox(meta, gotMeta, 1e-5) {
		t.Fatalf("metadata mismatch: want %+v got %+v", meta, gotMeta)
	}
}

func TestRoundTrip2D(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slice.nii")
	a, err := array.New([]int{4, 7}, []int16{
		0, 1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12, 13,
		14, 15, 16, 17, 18, 19, 20,
		21, 22, 23, 24, 25, 26, 27,
	})
	if err != nil {
		t.Fatal(err)
	}
	meta := spatial.Metadata{
		Spacing:   []float64{2, 3},
		Origin:    []float64{-1, 4},
		Direction: spatial.Identity(2).Direction,
	}
	if err := Save(a, path, meta, codec.SaveOptions{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, gotMeta, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !array.Equal(a, got) {
		t.Fatal("round trip changed pixel data")
	}
	if !spatial.EqualApprox(meta, gotMeta, 1e-5) {
		t.Fatalf("metadata mismatch: want %+v got %+v", meta, gotMeta)
	}
}

func TestMetadataRankMismatch(t *testing.T) {
	dir := t.TempDir()
	a := makeVolume(t, []int{3, 3, 3})
	meta := spatial.Metadata{Spacing: []float64{1, 1}}
	err := Save(a, filepath.Join(dir, "bad.nii"), meta, codec.SaveOptions{})
	if !errors.Is(err, codec.ErrMetadataUnsupported) {
		t.Fatalf("want ErrMetadataUnsupported, got %v", err)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "junk.nii")
	if err := os.WriteFile(path, []byte("definitely not a nifti header"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(path); !errors.Is(err, ErrNotNIfTI) {
		t.Fatalf("want ErrNotNIfTI, got %v", err)
	}
}

func TestLoadRejectsOverflowingDims(t *testing.T) {
	// A header whose dims multiply past int range must error instead of
	// wrapping the voxel count and panicking in make.
	hdr := make([]byte, 352)
	le := binary.LittleEndian
	le.PutUint32(hdr[0:], 348)
	copy(hdr[344:], "n+1\x00")
	le.PutUint16(hdr[40:], 4)
	for i := 0; i < 4; i++ {
		le.PutUint16(hdr[42+i*2:], 65535)
	}
	le.PutUint16(hdr[70:], 64) // float64
	le.PutUint16(hdr[72:], 64)
	le.PutUint32(hdr[108:], math.Float32bits(352))

	path := filepath.Join(t.TempDir(), "huge.nii")
	if err := os.WriteFile(path, hdr, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(path); !errors.Is(err, ErrNotNIfTI) {
		t.Fatalf("want ErrNotNIfTI, got %v", err)
	}
}

func TestRegister(t *testing.T) {
	r := codec.NewRegistry()
	if err := Register(r); err != nil {
		t.Fatalf("Register: %v", err)
	}
	for _, ext := range []string{".nii", ".nii.gz"} {
		e, err := r.Resolve(codec.SemSeg, ext, "")
		if err != nil {
			t.Fatalf("Resolve(%s): %v", ext, err)
		}
		if e.Backend != "nifti" {
			t.Fatalf("default backend for %s = %q", ext, e.Backend)
		}
		if !e.Caps.SpatialMetadata {
			t.Fatal("nifti should advertise spatial metadata")
		}
		if e.Caps.NDim {
			t.Fatal("nifti should not advertise ndim")
		}
	}
}
