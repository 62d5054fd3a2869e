package array

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Bytes returns the array's elements as little-endian bytes in
// row-major order.
func (a *Array) Bytes() []byte {
	out := make([]byte, a.Len()*a.dtype.Size())
	switch s := a.data.(type) {
	case []uint8:
		copy(out, s)
	case []uint16:
		for i, v := range s {
			binary.LittleEndian.PutUint16(out[i*2:], v)
		}
	case []int16:
		for i, v := range s {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
		}
	case []int32:
		for i, v := range s {
			binary.LittleEndian.PutUint32(out[i*4:], uint32(v))
		}
	case []int64:
		for i, v := range s {
			binary.LittleEndian.PutUint64(out[i*8:], uint64(v))
		}
	case []float32:
		for i, v := range s {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
		}
	case []float64:
		for i, v := range s {
			binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(v))
		}
	}
	return out
}

// FromBytes builds an array of the given dtype and shape from
// little-endian row-major bytes.
func FromBytes(dt DType, shape []int, raw []byte) (*Array, error) {
	vol, err := volume(shape)
	if err != nil {
		return nil, err
	}
	if len(raw) != vol*dt.Size() {
		return nil, fmt.Errorf("%w: %d raw bytes for shape %v of %v", ErrShape, len(raw), shape, dt)
	}

	switch dt {
	case Uint8:
		data := make([]uint8, vol)
		copy(data, raw)
		return New(shape, data)
	case Uint16:
		data := make([]uint16, vol)
		for i := range data {
			data[i] = binary.LittleEndian.Uint16(raw[i*2:])
		}
		return New(shape, data)
	case Int16:
		data := make([]int16, vol)
		for i := range data {
			data[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
		}
		return New(shape, data)
	case Int32:
		data := make([]int32, vol)
		for i := range data {
			data[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return New(shape, data)
	case Int64:
		data := make([]int64, vol)
		for i := range data {
			data[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
		}
		return New(shape, data)
	case Float32:
		data := make([]float32, vol)
		for i := range data {
			data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return New(shape, data)
	case Float64:
		data := make([]float64, vol)
		for i := range data {
			data[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
		return New(shape, data)
	}
	return nil, fmt.Errorf("%w: cannot decode dtype %v", ErrDTypeMismatch, dt)
}
