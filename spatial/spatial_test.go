package spatial

import (
	"errors"
	"testing"
)

func TestZeroValue(t *testing.T) {
	var m Metadata
	if !m.IsZero() {
		t.Fatal("zero value not IsZero")
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("zero value must validate: %v", err)
	}
	if m.Dims() != 0 {
		t.Fatalf("zero value dims = %d", m.Dims())
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		m    Metadata
		ok   bool
	}{
		{"full 3d", Identity(3), true},
		{"spacing only", Metadata{Spacing: []float64{1, 0.5}}, true},
		{"origin shorter", Metadata{Spacing: []float64{1, 2, 3}, Origin: []float64{0, 0}}, false},
		{"ragged direction", Metadata{Spacing: []float64{1, 1}, Direction: [][]float64{{1, 0}, {0}}}, false},
		{"non-square direction", Metadata{Direction: [][]float64{{1, 0, 0}, {0, 1, 0}}}, false},
	}
	for _, tc := range cases {
		err := tc.m.Validate()
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: got %v, want ErrInvalid", tc.name, err)
		}
	}
}

func TestEqualApprox(t *testing.T) {
	a := Metadata{
		Spacing:   []float64{1, 0.5, 0.25},
		Origin:    []float64{10, 20, 30},
		Direction: [][]float64{{1, 0, 0}, {0, -1, 0}, {0, 0, -1}},
	}
	b := a.Clone()
	b.Spacing[2] += 1e-9

	if !EqualApprox(a, b, 1e-6) {
		t.Fatal("nearly equal metadata not EqualApprox")
	}
	b.Origin[0] += 0.5
	if EqualApprox(a, b, 1e-6) {
		t.Fatal("diverged metadata reported equal")
	}
}

func TestCloneIsDeep(t *testing.T) {
	a := Identity(2)
	b := a.Clone()
	b.Direction[0][0] = 42
	if a.Direction[0][0] != 1 {
		t.Fatal("Clone shares direction rows")
	}
}
