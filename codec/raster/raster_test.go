package raster

import (
	"errors"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/voxkit/voxkit/array"
	"github.com/voxkit/voxkit/codec"
	"github.com/voxkit/voxkit/spatial"
)

func grayArray(t *testing.T, h, w int) *array.Array {
	t.Helper()
	data := make([]uint8, h*w)
	for i := range data {
		data[i] = uint8(rand.IntN(256))
	}
	a, err := array.New([]int{h, w}, data)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func rgbArray(t *testing.T, h, w int) *array.Array {
	t.Helper()
	data := make([]uint8, h*w*3)
	for i := range data {
		data[i] = uint8(rand.IntN(256))
	}
	a, err := array.New([]int{h, w, 3}, data)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestLosslessGrayRoundTrip(t *testing.T) {
	for _, ext := range []string{".png", ".bmp", ".tif", ".tiff"} {
		t.Run(ext, func(t *testing.T) {
			a := grayArray(t, 40, 30)
			path := filepath.Join(t.TempDir(), "img"+ext)

			if err := saveFunc(ext)(a, path, spatial.Metadata{}, codec.SaveOptions{}); err != nil {
				t.Fatal(err)
			}
			got, meta, err := loadFunc(ext)(path)
			if err != nil {
				t.Fatal(err)
			}
			if !meta.IsZero() {
				t.Fatalf("raster metadata %+v", meta)
			}
			if !array.Equal(a, got) {
				t.Fatal("gray round-trip failed")
			}
		})
	}
}

func TestLosslessRGBRoundTrip(t *testing.T) {
	for _, ext := range []string{".png", ".bmp", ".tif"} {
		t.Run(ext, func(t *testing.T) {
			a := rgbArray(t, 25, 35)
			path := filepath.Join(t.TempDir(), "img"+ext)

			if err := saveFunc(ext)(a, path, spatial.Metadata{}, codec.SaveOptions{}); err != nil {
				t.Fatal(err)
			}
			got, _, err := loadFunc(ext)(path)
			if err != nil {
				t.Fatal(err)
			}
			if !array.Equal(a, got) {
				t.Fatal("rgb round-trip failed")
			}
		})
	}
}

func TestGray16RoundTrip(t *testing.T) {
	data := make([]uint16, 20*10)
	for i := range data {
		data[i] = uint16(i * 257)
	}
	a, err := array.New([]int{20, 10}, data)
	if err != nil {
		t.Fatal(err)
	}

	for _, ext := range []string{".png", ".tif"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "mask"+ext)
			if err := saveFunc(ext)(a, path, spatial.Metadata{}, codec.SaveOptions{}); err != nil {
				t.Fatal(err)
			}
			got, _, err := loadFunc(ext)(path)
			if err != nil {
				t.Fatal(err)
			}
			if !array.Equal(a, got) {
				t.Fatal("gray16 round-trip failed")
			}
		})
	}
}

func TestJPEGLoadsToSameShape(t *testing.T) {
	a := rgbArray(t, 32, 32)
	path := filepath.Join(t.TempDir(), "img.jpg")

	if err := saveFunc(".jpg")(a, path, spatial.Metadata{}, codec.SaveOptions{}); err != nil {
		t.Fatal(err)
	}
	got, _, err := loadFunc(".jpg")(path)
	if err != nil {
		t.Fatal(err)
	}
	// Lossy format: shape and dtype survive, values need not.
	gs, as := got.Shape(), a.Shape()
	for i := range as {
		if gs[i] != as[i] {
			t.Fatalf("shape %v, want %v", gs, as)
		}
	}
	if got.DType() != array.Uint8 {
		t.Fatalf("dtype %v", got.DType())
	}
}

func TestSaveRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	volume, err := array.Zeros(array.Uint8, []int{4, 4, 4, 4})
	if err != nil {
		t.Fatal(err)
	}
	err = saveFunc(".png")(volume, filepath.Join(dir, "x.png"), spatial.Metadata{}, codec.SaveOptions{})
	if !errors.Is(err, ErrPixelFormat) {
		t.Fatalf("4-d array: got %v", err)
	}

	flat := grayArray(t, 4, 4)
	meta := spatial.Metadata{Spacing: []float64{1, 1}}
	err = saveFunc(".png")(flat, filepath.Join(dir, "y.png"), meta, codec.SaveOptions{})
	if !errors.Is(err, codec.ErrMetadataUnsupported) {
		t.Fatalf("metadata: got %v", err)
	}
}

func TestRegister(t *testing.T) {
	r := codec.NewRegistry()
	if err := Register(r); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Resolve(codec.SemSeg, ".png", "stdimage"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Resolve(codec.Image, ".tiff", "tiff"); err != nil {
		t.Fatal(err)
	}
	// JPEG must not serve masks.
	if _, err := r.Resolve(codec.SemSeg, ".jpg", ""); !errors.Is(err, codec.ErrUnsupportedFormat) {
		t.Fatalf("jpg semseg: got %v", err)
	}
	// Raster entries are per-plane and carry no geometry.
	e, err := r.Resolve(codec.MultiLabel, ".tif", "")
	if err != nil {
		t.Fatal(err)
	}
	if e.Caps.NDim || e.Caps.SpatialMetadata {
		t.Fatalf("caps = %+v", e.Caps)
	}
}
