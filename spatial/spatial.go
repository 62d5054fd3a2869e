// Package spatial defines the uniform spatial metadata record shared by
// all voxkit codecs: per-axis spacing, a world-space origin, and a
// square direction matrix. Backends that carry no geometry exchange the
// zero Metadata value instead of nil so callers never branch on the
// adapter kind.
package spatial

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalid reports inconsistent spacing/origin/direction dimensions.
var ErrInvalid = errors.New("voxkit: invalid spatial metadata")

// Metadata describes the physical placement of an array's grid.
// The zero value means "no spatial metadata".
type Metadata struct {
	Spacing   []float64   `json:"spacing,omitempty"`
	Origin    []float64   `json:"origin,omitempty"`
	Direction [][]float64 `json:"direction,omitempty"`
}

// IsZero reports whether no field is populated.
func (m Metadata) IsZero() bool {
	return len(m.Spacing) == 0 && len(m.Origin) == 0 && len(m.Direction) == 0
}

// Dims returns the spatial dimensionality implied by the populated
// fields, preferring spacing.
func (m Metadata) Dims() int {
	if len(m.Spacing) > 0 {
		return len(m.Spacing)
	}
	if len(m.Origin) > 0 {
		return len(m.Origin)
	}
	return len(m.Direction)
}

// Validate checks that all populated fields agree on dimensionality and
// that the direction matrix is square. Partial metadata (for example
// spacing only) is valid.
func (m Metadata) Validate() error {
	dims := m.Dims()
	if dims == 0 {
		return nil
	}
	if len(m.Spacing) > 0 && len(m.Spacing) != dims {
		return fmt.Errorf("%w: spacing has %d entries, want %d", ErrInvalid, len(m.Spacing), dims)
	}
	if len(m.Origin) > 0 && len(m.Origin) != dims {
		return fmt.Errorf("%w: origin has %d entries, want %d", ErrInvalid, len(m.Origin), dims)
	}
	if len(m.Direction) > 0 {
		if len(m.Direction) != dims {
			return fmt.Errorf("%w: direction has %d rows, want %d", ErrInvalid, len(m.Direction), dims)
		}
		for i, row := range m.Direction {
			if len(row) != dims {
				return fmt.Errorf("%w: direction row %d has %d columns, want %d", ErrInvalid, i, len(row), dims)
			}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (m Metadata) Clone() Metadata {
	out := Metadata{
		Spacing: append([]float64(nil), m.Spacing...),
		Origin:  append([]float64(nil), m.Origin...),
	}
	if m.Direction != nil {
		out.Direction = make([][]float64, len(m.Direction))
		for i, row := range m.Direction {
			out.Direction[i] = append([]float64(nil), row...)
		}
	}
	return out
}

// Identity returns metadata with unit spacing, zero origin, and an
// identity direction matrix for the given dimensionality.
func Identity(dims int) Metadata {
	m := Metadata{
		Spacing:   make([]float64, dims),
		Origin:    make([]float64, dims),
		Direction: make([][]float64, dims),
	}
	for i := 0; i < dims; i++ {
		m.Spacing[i] = 1
		m.Direction[i] = make([]float64, dims)
		m.Direction[i][i] = 1
	}
	return m
}

// EqualApprox reports whether two metadata records match within tol on
// every populated field. Some backends re-derive spacing and direction
// from an affine, so comparisons are tolerant rather than bit-exact.
func EqualApprox(a, b Metadata, tol float64) bool {
	if !floatsApprox(a.Spacing, b.Spacing, tol) {
		return false
	}
	if !floatsApprox(a.Origin, b.Origin, tol) {
		return false
	}
	if len(a.Direction) != len(b.Direction) {
		return false
	}
	for i := range a.Direction {
		if !floatsApprox(a.Direction[i], b.Direction[i], tol) {
			return false
		}
	}
	return true
}

func floatsApprox(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}
