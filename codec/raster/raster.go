// Package raster implements the single-plane 2-D image backends:
// "stdimage" for .png/.bmp/.jpg/.jpeg through the standard image
// codecs, and "tiff" for .tif/.tiff through golang.org/x/image.
//
// Arrays are (H, W) uint8/uint16 grayscale or (H, W, 3) uint8 RGB.
// Raster formats carry no spatial metadata; JPEG is lossy and is bound
// for the image kind only, never masks.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/voxkit/voxkit/array"
	"github.com/voxkit/voxkit/codec"
	"github.com/voxkit/voxkit/internal/fsutil"
	"github.com/voxkit/voxkit/spatial"
)

// ErrPixelFormat reports an array shape or dtype no raster format can
// hold.
var ErrPixelFormat = errors.New("voxkit: unsupported raster pixel format")

type encodeFunc func(io.Writer, image.Image) error

var formats = map[string]struct {
	encode encodeFunc
	decode func(io.Reader) (image.Image, error)
}{
	".png":  {func(w io.Writer, m image.Image) error { return png.Encode(w, m) }, png.Decode},
	".bmp":  {bmp.Encode, bmp.Decode},
	".jpg":  {encodeJPEG, jpeg.Decode},
	".jpeg": {encodeJPEG, jpeg.Decode},
	".tif":  {encodeTIFF, tiff.Decode},
	".tiff": {encodeTIFF, tiff.Decode},
}

func encodeJPEG(w io.Writer, m image.Image) error {
	return jpeg.Encode(w, m, &jpeg.Options{Quality: 95})
}

func encodeTIFF(w io.Writer, m image.Image) error {
	return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate})
}

// Register binds the "stdimage" backend for .png/.bmp/.jpg/.jpeg and
// the "tiff" backend for .tif/.tiff. JPEG is image-only; the lossless
// formats also serve both mask kinds (per-plane, so no NDim cap).
func Register(r *codec.Registry) error {
	bind := func(kind codec.Kind, ext, backend string) error {
		return r.Register(kind, ext, backend, loadFunc(ext), saveFunc(ext))
	}

	for _, ext := range []string{".png", ".bmp"} {
		for _, kind := range []codec.Kind{codec.Image, codec.SemSeg, codec.MultiLabel} {
			if err := bind(kind, ext, "stdimage"); err != nil {
				return err
			}
		}
	}
	for _, ext := range []string{".jpg", ".jpeg"} {
		if err := bind(codec.Image, ext, "stdimage"); err != nil {
			return err
		}
	}
	for _, ext := range []string{".tif", ".tiff"} {
		for _, kind := range []codec.Kind{codec.Image, codec.SemSeg, codec.MultiLabel} {
			if err := bind(kind, ext, "tiff"); err != nil {
				return err
			}
		}
	}
	return nil
}

func loadFunc(ext string) codec.LoadFunc {
	decode := formats[ext].decode
	return func(path string) (*array.Array, spatial.Metadata, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, spatial.Metadata{}, err
		}
		defer f.Close()

		img, err := decode(f)
		if err != nil {
			return nil, spatial.Metadata{}, err
		}
		a, err := fromImage(img)
		return a, spatial.Metadata{}, err
	}
}

func saveFunc(ext string) codec.SaveFunc {
	encode := formats[ext].encode
	return func(a *array.Array, path string, meta spatial.Metadata, _ codec.SaveOptions) error {
		if !meta.IsZero() {
			return fmt.Errorf("%w: %s", codec.ErrMetadataUnsupported, ext)
		}
		img, err := toImage(a)
		if err != nil {
			return err
		}
		return fsutil.WriteAtomic(path, func(w io.Writer) error {
			return encode(w, img)
		})
	}
}

// toImage maps an array onto a standard image: (H, W) uint8 to Gray,
// (H, W) uint16 to Gray16, (H, W, 3) uint8 to NRGBA.
func toImage(a *array.Array) (image.Image, error) {
	shape := a.Shape()
	switch {
	case len(shape) == 2 && a.DType() == array.Uint8:
		h, w := shape[0], shape[1]
		img := image.NewGray(image.Rect(0, 0, w, h))
		pix, _ := a.Uint8s()
		for y := 0; y < h; y++ {
			copy(img.Pix[y*img.Stride:y*img.Stride+w], pix[y*w:(y+1)*w])
		}
		return img, nil

	case len(shape) == 2 && a.DType() == array.Uint16:
		h, w := shape[0], shape[1]
		img := image.NewGray16(image.Rect(0, 0, w, h))
		pix, _ := a.Uint16s()
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := pix[y*w+x]
				off := y*img.Stride + x*2
				img.Pix[off] = byte(v >> 8) // Gray16 stores big-endian
				img.Pix[off+1] = byte(v)
			}
		}
		return img, nil

	case len(shape) == 3 && shape[2] == 3 && a.DType() == array.Uint8:
		h, w := shape[0], shape[1]
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		pix, _ := a.Uint8s()
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				src := (y*w + x) * 3
				dst := y*img.Stride + x*4
				img.Pix[dst] = pix[src]
				img.Pix[dst+1] = pix[src+1]
				img.Pix[dst+2] = pix[src+2]
				img.Pix[dst+3] = 0xFF
			}
		}
		return img, nil
	}
	return nil, fmt.Errorf("%w: shape %v dtype %v", ErrPixelFormat, shape, a.DType())
}

// fromImage is the inverse of toImage. Gray-valued paletted images
// (some BMP encoders emit them) come back as grayscale; everything else
// lands in (H, W, 3) uint8.
func fromImage(img image.Image) (*array.Array, error) {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()

	switch src := img.(type) {
	case *image.Gray:
		data := make([]uint8, h*w)
		for y := 0; y < h; y++ {
			copy(data[y*w:(y+1)*w], src.Pix[y*src.Stride:y*src.Stride+w])
		}
		return array.New([]int{h, w}, data)

	case *image.Gray16:
		data := make([]uint16, h*w)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				off := y*src.Stride + x*2
				data[y*w+x] = uint16(src.Pix[off])<<8 | uint16(src.Pix[off+1])
			}
		}
		return array.New([]int{h, w}, data)

	case *image.Paletted:
		if gray, ok := grayPalette(src); ok {
			data := make([]uint8, h*w)
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					data[y*w+x] = gray[src.Pix[y*src.Stride+x]]
				}
			}
			return array.New([]int{h, w}, data)
		}
	}

	data := make([]uint8, h*w*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			off := (y*w + x) * 3
			data[off] = uint8(r >> 8)
			data[off+1] = uint8(g >> 8)
			data[off+2] = uint8(bl >> 8)
		}
	}
	return array.New([]int{h, w, 3}, data)
}

func grayPalette(img *image.Paletted) ([]uint8, bool) {
	out := make([]uint8, len(img.Palette))
	for i, c := range img.Palette {
		nrgba := color.NRGBAModel.Convert(c).(color.NRGBA)
		if nrgba.R != nrgba.G || nrgba.G != nrgba.B {
			return nil, false
		}
		out[i] = nrgba.R
	}
	return out, true
}
