package array

import "fmt"

// SplitLeading slices the array along its leading axis into one array
// per index. The returned arrays share the receiver's backing memory.
// A rank-one input splits into scalars of shape [1].
func (a *Array) SplitLeading() ([]*Array, error) {
	if a.Rank() < 1 {
		return nil, fmt.Errorf("%w: cannot split empty shape", ErrShape)
	}
	n := a.shape[0]
	subShape := a.shape[1:]
	if len(subShape) == 0 {
		subShape = []int{1}
	}
	stride := 1
	for _, d := range subShape {
		stride *= d
	}

	parts := make([]*Array, 0, n)
	for i := 0; i < n; i++ {
		sub, err := New(subShape, subSlice(a.data, i*stride, (i+1)*stride))
		if err != nil {
			return nil, err
		}
		parts = append(parts, sub)
	}
	return parts, nil
}

// StackLeading joins arrays of identical shape and dtype along a new
// leading axis, in argument order. The result owns fresh memory.
func StackLeading(parts []*Array) (*Array, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: nothing to stack", ErrShape)
	}
	first := parts[0]
	for _, p := range parts[1:] {
		if p.dtype != first.dtype {
			return nil, fmt.Errorf("%w: stacking %v with %v", ErrDTypeMismatch, first.dtype, p.dtype)
		}
		if !shapeEqual(p.shape, first.shape) {
			return nil, fmt.Errorf("%w: stacking %v with %v", ErrShape, first.shape, p.shape)
		}
	}

	outShape := append([]int{len(parts)}, first.shape...)
	out, err := Zeros(first.dtype, outShape)
	if err != nil {
		return nil, err
	}
	stride := first.Len()
	for i, p := range parts {
		copyInto(out.data, p.data, i*stride)
	}
	return out, nil
}

func shapeEqual(a, b []int) bool {
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

func subSlice(data any, lo, hi int) any {
	switch s := data.(type) {
	case []uint8:
		return s[lo:hi:hi]
	case []uint16:
		return s[lo:hi:hi]
	case []int16:
		return s[lo:hi:hi]
	case []int32:
		return s[lo:hi:hi]
	case []int64:
		return s[lo:hi:hi]
	case []float32:
		return s[lo:hi:hi]
	case []float64:
		return s[lo:hi:hi]
	}
	return nil
}

func copyInto(dst, src any, off int) {
	switch d := dst.(type) {
	case []uint8:
		copy(d[off:], src.([]uint8))
	case []uint16:
		copy(d[off:], src.([]uint16))
	case []int16:
		copy(d[off:], src.([]int16))
	case []int32:
		copy(d[off:], src.([]int32))
	case []int64:
		copy(d[off:], src.([]int64))
	case []float32:
		copy(d[off:], src.([]float32))
	case []float64:
		copy(d[off:], src.([]float64))
	}
}
