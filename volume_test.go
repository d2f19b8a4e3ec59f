package jp3d

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewVolumeValidatesDimensions(t *testing.T) {
	_, err := NewVolume(0, 4, 4, []*Component{NewComponent(0, 4, 4, 4, 8, false, 1, 1, 1)})
	require.Error(t, err)
	var jerr *Error
	require.ErrorAs(t, err, &jerr)
	require.Equal(t, KindInvalidDimensions, jerr.Kind)
}

func TestNewVolumeRequiresAtLeastOneComponent(t *testing.T) {
	_, err := NewVolume(4, 4, 4, nil)
	require.Error(t, err)
}

func TestNewVolumeSubsamplingMustDivide(t *testing.T) {
	c := NewComponent(0, 3, 4, 4, 8, false, 3, 1, 1)
	_, err := NewVolume(4, 4, 4, []*Component{c})
	require.Error(t, err)

	c2 := NewComponent(0, 2, 4, 4, 8, false, 2, 1, 1)
	v, err := NewVolume(4, 4, 4, []*Component{c2})
	require.NoError(t, err)
	require.Equal(t, 4, v.Width)
}

func TestComponentMaxMinValue(t *testing.T) {
	c := NewComponent(0, 2, 2, 2, 8, false, 1, 1, 1)
	require.Equal(t, int64(255), c.MaxValue())
	require.Equal(t, int64(0), c.MinValue())

	cs := NewComponent(0, 2, 2, 2, 8, true, 1, 1, 1)
	require.Equal(t, int64(127), cs.MaxValue())
	require.Equal(t, int64(-128), cs.MinValue())
}

func TestComponentSampleRoundTrip(t *testing.T) {
	c := NewComponent(0, 4, 4, 2, 12, true, 1, 1, 1)
	c.SetSampleAt(1, 2, 1, -17)
	require.Equal(t, int64(-17), c.SignedSampleAt(1, 2, 1))
}
