package array

import "fmt"

// DType identifies the element type of an Array.
type DType uint8

const (
	Invalid DType = iota
	Uint8
	Uint16
	Int16
	Int32
	Int64
	Float32
	Float64
)

// String returns the numpy-style name of the dtype.
func (d DType) String() string {
	switch d {
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	}
	return "invalid"
}

// ParseDType maps a dtype name back to its DType.
func ParseDType(s string) (DType, error) {
	switch s {
	case "uint8":
		return Uint8, nil
	case "uint16":
		return Uint16, nil
	case "int16":
		return Int16, nil
	case "int32":
		return Int32, nil
	case "int64":
		return Int64, nil
	case "float32":
		return Float32, nil
	case "float64":
		return Float64, nil
	}
	return Invalid, fmt.Errorf("%w: unknown dtype %q", ErrDTypeMismatch, s)
}

// Size returns the element width in bytes.
func (d DType) Size() int {
	switch d {
	case Uint8:
		return 1
	case Uint16, Int16:
		return 2
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	}
	return 0
}

// IsFloat reports whether the dtype holds floating-point values.
func (d DType) IsFloat() bool { return d == Float32 || d == Float64 }

func sliceInfo(data any) (DType, int, error) {
	switch s := data.(type) {
	case []uint8:
		return Uint8, len(s), nil
	case []uint16:
		return Uint16, len(s), nil
	case []int16:
		return Int16, len(s), nil
	case []int32:
		return Int32, len(s), nil
	case []int64:
		return Int64, len(s), nil
	case []float32:
		return Float32, len(s), nil
	case []float64:
		return Float64, len(s), nil
	}
	return Invalid, 0, fmt.Errorf("%w: unsupported backing slice %T", ErrDTypeMismatch, data)
}

func makeSlice(dt DType, n int) (any, error) {
	switch dt {
	case Uint8:
		return make([]uint8, n), nil
	case Uint16:
		return make([]uint16, n), nil
	case Int16:
		return make([]int16, n), nil
	case Int32:
		return make([]int32, n), nil
	case Int64:
		return make([]int64, n), nil
	case Float32:
		return make([]float32, n), nil
	case Float64:
		return make([]float64, n), nil
	}
	return nil, fmt.Errorf("%w: cannot allocate dtype %v", ErrDTypeMismatch, dt)
}
