package task

import (
	"math/rand/v2"
	"sort"

	"github.com/voxkit/voxkit/array"
)

// Sample constructors and mask statistics. Image and multi-label
// samples are channel-first: the leading axis indexes channels or
// classes, matching the axis the stacked writers fan out over.

// EmptyImage returns a zeroed float32 image of shape (channels, size...).
func EmptyImage(size []int, channels int) (*array.Array, error) {
	return array.Zeros(array.Float32, prepend(channels, size))
}

// RandomImage returns a float32 image of shape (channels, size...) with
// values in [0, 1).
func RandomImage(size []int, channels int) (*array.Array, error) {
	a, err := array.Zeros(array.Float32, prepend(channels, size))
	if err != nil {
		return nil, err
	}
	data, _ := a.Float32s()
	for i := range data {
		data[i] = rand.Float32()
	}
	return a, nil
}

// EmptySemSeg returns a zeroed uint8 label mask of the given shape.
func EmptySemSeg(size []int, _ int) (*array.Array, error) {
	return array.Zeros(array.Uint8, size)
}

// RandomSemSeg returns a uint8 label mask with values in [0, classes].
func RandomSemSeg(size []int, classes int) (*array.Array, error) {
	a, err := array.Zeros(array.Uint8, size)
	if err != nil {
		return nil, err
	}
	data, _ := a.Uint8s()
	for i := range data {
		data[i] = uint8(rand.IntN(classes + 1))
	}
	return a, nil
}

// EmptyMultiLabel returns a zeroed binary mask of shape (classes, size...).
func EmptyMultiLabel(size []int, classes int) (*array.Array, error) {
	return array.Zeros(array.Uint8, prepend(classes, size))
}

// RandomMultiLabel returns a random binary mask of shape
// (classes, size...).
func RandomMultiLabel(size []int, classes int) (*array.Array, error) {
	a, err := array.Zeros(array.Uint8, prepend(classes, size))
	if err != nil {
		return nil, err
	}
	data, _ := a.Uint8s()
	for i := range data {
		data[i] = uint8(rand.IntN(2))
	}
	return a, nil
}

// ClassIDs returns the sorted set of label values present in a
// single-channel mask.
func ClassIDs(mask *array.Array) []int {
	seen := make(map[int]struct{})
	n := mask.Len()
	for i := 0; i < n; i++ {
		seen[int(mask.FloatAt(i))] = struct{}{}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ClassCount returns how many elements of a single-channel mask carry
// the given label.
func ClassCount(mask *array.Array, id int) int {
	count := 0
	n := mask.Len()
	for i := 0; i < n; i++ {
		if int(mask.FloatAt(i)) == id {
			count++
		}
	}
	return count
}

// ClassLocations returns the coordinates of every element carrying the
// given label, one slice per axis (numpy.where layout).
func ClassLocations(mask *array.Array, id int) [][]int {
	return locations(mask, func(v float64) bool { return int(v) == id })
}

// LabelIDs returns the class indices of a channel-first binary mask
// whose planes contain at least one set element.
func LabelIDs(mask *array.Array) []int {
	planes := planeSize(mask)
	if planes == 0 {
		return nil
	}
	classes := mask.Shape()[0]
	var ids []int
	for c := 0; c < classes; c++ {
		if planeCount(mask, c) > 0 {
			ids = append(ids, c)
		}
	}
	return ids
}

// LabelCount returns the number of set elements in class plane c of a
// channel-first binary mask.
func LabelCount(mask *array.Array, c int) int {
	return planeCount(mask, c)
}

// LabelLocations returns the coordinates of the set elements in class
// plane c, one slice per spatial axis (the class axis is consumed).
func LabelLocations(mask *array.Array, c int) [][]int {
	planes, err := mask.SplitLeading()
	if err != nil || c < 0 || c >= len(planes) {
		return nil
	}
	return locations(planes[c], func(v float64) bool { return v != 0 })
}

func planeSize(mask *array.Array) int {
	shape := mask.Shape()
	if len(shape) < 2 {
		return 0
	}
	n := 1
	for _, d := range shape[1:] {
		n *= d
	}
	return n
}

func planeCount(mask *array.Array, c int) int {
	size := planeSize(mask)
	if size == 0 || c < 0 || c >= mask.Shape()[0] {
		return 0
	}
	count := 0
	for i := c * size; i < (c+1)*size; i++ {
		if mask.FloatAt(i) != 0 {
			count++
		}
	}
	return count
}

// locations collects per-axis coordinates of matching elements by
// walking the flat index with a row-major odometer.
func locations(a *array.Array, match func(float64) bool) [][]int {
	shape := a.Shape()
	rank := len(shape)
	out := make([][]int, rank)
	for i := range out {
		out[i] = []int{}
	}
	coord := make([]int, rank)
	n := a.Len()
	for i := 0; i < n; i++ {
		if match(a.FloatAt(i)) {
			for ax := 0; ax < rank; ax++ {
				out[ax] = append(out[ax], coord[ax])
			}
		}
		for ax := rank - 1; ax >= 0; ax-- {
			coord[ax]++
			if coord[ax] < shape[ax] {
				break
			}
			coord[ax] = 0
		}
	}
	return out
}

func prepend(n int, size []int) []int {
	shape := make([]int, 0, len(size)+1)
	shape = append(shape, n)
	return append(shape, size...)
}
