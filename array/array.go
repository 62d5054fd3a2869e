// Package array provides the small n-dimensional typed array value that
// voxkit codecs and task wrappers exchange.
//
// An Array couples a shape with a flat, row-major backing slice of one
// of the supported element types. It is deliberately minimal: codecs
// need construction, typed access, equality, and leading-axis
// split/stack for file stacks, nothing more.
package array

import (
	"errors"
	"fmt"
)

var (
	// ErrShape reports a shape that does not describe the backing data.
	ErrShape = errors.New("voxkit: invalid array shape")
	// ErrDTypeMismatch reports an operation across incompatible dtypes.
	ErrDTypeMismatch = errors.New("voxkit: dtype mismatch")
)

// Array is an n-dimensional array with a flat row-major backing slice.
// The zero value is an empty array; use the typed constructors.
type Array struct {
	shape []int
	dtype DType
	data  any
}

// New constructs an Array from a shape and a typed backing slice. The
// slice must be one of []uint8, []uint16, []int16, []int32, []int64,
// []float32, []float64 and its length must equal the shape volume.
func New(shape []int, data any) (*Array, error) {
	dt, n, err := sliceInfo(data)
	if err != nil {
		return nil, err
	}
	vol, err := volume(shape)
	if err != nil {
		return nil, err
	}
	if n != vol {
		return nil, fmt.Errorf("%w: shape %v wants %d elements, data has %d", ErrShape, shape, vol, n)
	}
	return &Array{shape: append([]int(nil), shape...), dtype: dt, data: data}, nil
}

// Zeros returns a zero-filled array of the given dtype and shape.
func Zeros(dt DType, shape []int) (*Array, error) {
	vol, err := volume(shape)
	if err != nil {
		return nil, err
	}
	data, err := makeSlice(dt, vol)
	if err != nil {
		return nil, err
	}
	return &Array{shape: append([]int(nil), shape...), dtype: dt, data: data}, nil
}

// Shape returns a copy of the array's dimensions.
func (a *Array) Shape() []int { return append([]int(nil), a.shape...) }

// Rank returns the number of dimensions.
func (a *Array) Rank() int { return len(a.shape) }

// DType returns the element type.
func (a *Array) DType() DType { return a.dtype }

// Len returns the total number of elements.
func (a *Array) Len() int {
	n := 1
	for _, d := range a.shape {
		n *= d
	}
	if len(a.shape) == 0 {
		return 0
	}
	return n
}

// Data returns the backing slice. Callers must not assume a copy.
func (a *Array) Data() any { return a.data }

// Uint8s returns the backing slice when the dtype is Uint8.
func (a *Array) Uint8s() ([]uint8, bool) { s, ok := a.data.([]uint8); return s, ok }

// Uint16s returns the backing slice when the dtype is Uint16.
func (a *Array) Uint16s() ([]uint16, bool) { s, ok := a.data.([]uint16); return s, ok }

// Int16s returns the backing slice when the dtype is Int16.
func (a *Array) Int16s() ([]int16, bool) { s, ok := a.data.([]int16); return s, ok }

// Int32s returns the backing slice when the dtype is Int32.
func (a *Array) Int32s() ([]int32, bool) { s, ok := a.data.([]int32); return s, ok }

// Int64s returns the backing slice when the dtype is Int64.
func (a *Array) Int64s() ([]int64, bool) { s, ok := a.data.([]int64); return s, ok }

// Float32s returns the backing slice when the dtype is Float32.
func (a *Array) Float32s() ([]float32, bool) { s, ok := a.data.([]float32); return s, ok }

// Float64s returns the backing slice when the dtype is Float64.
func (a *Array) Float64s() ([]float64, bool) { s, ok := a.data.([]float64); return s, ok }

// FloatAt returns element i of the flat backing slice widened to
// float64, regardless of dtype.
func (a *Array) FloatAt(i int) float64 {
	switch s := a.data.(type) {
	case []uint8:
		return float64(s[i])
	case []uint16:
		return float64(s[i])
	case []int16:
		return float64(s[i])
	case []int32:
		return float64(s[i])
	case []int64:
		return float64(s[i])
	case []float32:
		return float64(s[i])
	case []float64:
		return s[i]
	}
	return 0
}

// Equal reports whether two arrays have identical shape, dtype, and
// element values.
func Equal(a, b *Array) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.dtype != b.dtype || len(a.shape) != len(b.shape) {
		return false
	}
	for i := range a.shape {
		if a.shape[i] != b.shape[i] {
			return false
		}
	}
	switch s := a.data.(type) {
	case []uint8:
		return sliceEqual(s, b.data.([]uint8))
	case []uint16:
		return sliceEqual(s, b.data.([]uint16))
	case []int16:
		return sliceEqual(s, b.data.([]int16))
	case []int32:
		return sliceEqual(s, b.data.([]int32))
	case []int64:
		return sliceEqual(s, b.data.([]int64))
	case []float32:
		return sliceEqual(s, b.data.([]float32))
	case []float64:
		return sliceEqual(s, b.data.([]float64))
	}
	return false
}

func sliceEqual[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func volume(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("%w: empty shape", ErrShape)
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("%w: non-positive dimension in %v", ErrShape, shape)
		}
		n *= d
	}
	return n, nil
}
