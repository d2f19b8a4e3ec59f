package jp3d

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegionIntersectDisjoint(t *testing.T) {
	a := NewRegion(0, 0, 0, 4, 4, 4)
	b := NewRegion(10, 10, 10, 4, 4, 4)
	_, ok := a.Intersect(b)
	require.False(t, ok)
}

func TestRegionIntersectOverlap(t *testing.T) {
	a := NewRegion(0, 0, 0, 8, 8, 8)
	b := NewRegion(4, 4, 4, 8, 8, 8)
	r, ok := a.Intersect(b)
	require.True(t, ok)
	require.Equal(t, NewRegion(4, 4, 4, 4, 4, 4), r)
}

func TestRegionClamp(t *testing.T) {
	r := NewRegion(-2, -2, -2, 8, 8, 8)
	clamped := r.Clamp(4, 4, 4)
	require.Equal(t, Region{X0: 0, Y0: 0, Z0: 0, X1: 4, Y1: 4, Z1: 4}, clamped)
}

func TestRegionClampEmptyWhenOutside(t *testing.T) {
	r := NewRegion(100, 100, 100, 4, 4, 4)
	clamped := r.Clamp(4, 4, 4)
	require.True(t, clamped.IsEmpty())
}

func TestRegionContains(t *testing.T) {
	r := NewRegion(0, 0, 0, 4, 4, 4)
	require.True(t, r.Contains(3, 3, 3))
	require.False(t, r.Contains(4, 0, 0))
}

func TestRegionVolume(t *testing.T) {
	r := NewRegion(0, 0, 0, 2, 3, 4)
	require.Equal(t, int64(24), r.Volume())
}
