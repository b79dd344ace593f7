package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceTransform_Line(t *testing.T) {
	m := maskOf(t, true, false, false, false, false)

	bounded := DistanceTransform(makeLine(t, 5, false), m)
	assert.InDeltaSlice(t, []float64{0, 1, 2, 3, 4}, bounded.Values(), 1e-12)

	wrapped := DistanceTransform(makeLine(t, 5, true), m)
	assert.InDeltaSlice(t, []float64{0, 1, 2, 2, 1}, wrapped.Values(), 1e-12)
}

func TestDistanceTransform_Plane(t *testing.T) {
	g, err := New(Domain{Lo: []float64{0, 0}, Hi: []float64{1, 1}}, Shape{3, 3})
	require.NoError(t, err)
	m := NewMask(g.Shape())
	m.Set(4, true)

	d := DistanceTransform(g, m)
	r2 := math.Sqrt2
	assert.InDeltaSlice(t, []float64{r2, 1, r2, 1, 0, 1, r2, 1, r2}, d.Values(), 1e-12)
}

func TestDistanceTransform_Empty(t *testing.T) {
	d := DistanceTransform(makeLine(t, 4, false), NewMask(Shape{4}))
	for i, v := range d.Values() {
		assert.True(t, math.IsInf(v, 1), "cell %d = %v", i, v)
	}
}

func TestSignedDistance(t *testing.T) {
	g := makeLine(t, 5, false)
	sd := SignedDistance(g, maskOf(t, false, true, true, true, false))
	assert.InDeltaSlice(t, []float64{-0.5, 0.5, 1.5, 0.5, -0.5}, sd.Values(), 1e-12)

	// no outside cells: every inside cell gets the grid diagonal
	full := SignedDistance(g, FullMask(Shape{5}))
	for _, v := range full.Values() {
		assert.InDelta(t, 4.5, v, 1e-12)
	}
}

func TestExpandByDistance(t *testing.T) {
	tests := []struct {
		name     string
		periodic bool
		in       []bool
		dist     float64
		want     []bool
	}{
		{"zero distance", false, []bool{false, false, true, false, false}, 0, []bool{false, false, true, false, false}},
		{"one cell", false, []bool{false, false, true, false, false}, 1, []bool{false, true, true, true, false}},
		{"fractional", false, []bool{false, false, true, false, false}, 1.9, []bool{false, true, true, true, false}},
		{"clipped at edge", false, []bool{true, false, false, false, false}, 1, []bool{true, true, false, false, false}},
		{"wraps", true, []bool{true, false, false, false, false}, 1, []bool{true, true, false, false, true}},
		{"empty stays empty", false, []bool{false, false, false, false, false}, 3, []bool{false, false, false, false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := makeLine(t, 5, tt.periodic)
			in := maskOf(t, tt.in...)
			got := ExpandByDistance(g, in, tt.dist)
			assert.Equal(t, tt.want, got.Cells())
			assert.True(t, in.SubsetOf(got))
		})
	}
}

func TestExpandByDistance_DiagonalNeedsRootTwo(t *testing.T) {
	g, err := New(Domain{Lo: []float64{0, 0}, Hi: []float64{1, 1}}, Shape{3, 3})
	require.NoError(t, err)
	m := NewMask(g.Shape())
	m.Set(4, true)

	assert.Equal(t, 5, ExpandByDistance(g, m, 1).Count())
	assert.Equal(t, 9, ExpandByDistance(g, m, math.Sqrt2).Count())
}

func TestNearZeroLevelset(t *testing.T) {
	g := makeLine(t, 5, false)
	values, err := TableFromValues(Shape{5}, []float64{-2, -1, 1, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, []bool{false, true, true, false, false}, NearZeroLevelset(g, values, 1).Cells())
	assert.Equal(t, []bool{true, true, true, true, false}, NearZeroLevelset(g, values, 1.5).Cells())
	assert.True(t, NearZeroLevelset(g, values, 0.25).IsEmpty())
}
