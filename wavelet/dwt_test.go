package wavelet

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func allBoundaries() []Boundary {
	return []Boundary{BoundarySymmetric, BoundaryPeriodic, BoundaryZeroPadding}
}

func TestForward53RoundTripExactAllBoundaries(t *testing.T) {
	signals := [][]int64{
		{1, 2, 3, 4, 5, 6, 7, 8},
		{5, 2, 9, 1, 7},
		{42},
		{},
		{0, 0, 0, 0},
		{-5, 10, -15, 20, -25, 30, -35},
	}
	for _, boundary := range allBoundaries() {
		for _, sig := range signals {
			lo, hi := Forward53(sig, boundary)
			out := Inverse53(lo, hi, boundary)
			require.Equal(t, sig, out, "boundary=%v signal=%v", boundary, sig)
		}
	}
}

func TestForward97RoundTripWithinTolerance(t *testing.T) {
	sig := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	for _, boundary := range allBoundaries() {
		lo, hi := Forward97(sig, boundary)
		out := Inverse97(lo, hi, boundary)
		require.Len(t, out, len(sig))
		for i := range sig {
			require.InDelta(t, sig[i], out[i], 1e-6)
		}
	}
}

func TestForward53SingleSampleIsIdentity(t *testing.T) {
	lo, hi := Forward53([]int64{7}, BoundarySymmetric)
	require.Equal(t, []int64{7}, lo)
	require.Nil(t, hi)
	require.Equal(t, []int64{7}, Inverse53(lo, hi, BoundarySymmetric))
}

func TestForwardVolumeRoundTrip53(t *testing.T) {
	w, h, d := 8, 8, 4
	samples := make([]int64, w*h*d)
	for i := range samples {
		samples[i] = int64((i*37 + 11) % 256)
	}
	for _, boundary := range allBoundaries() {
		dec, err := ForwardVolume(samples, w, h, d, 2, Filter53, boundary, ModeSeparable)
		require.NoError(t, err)
		out, err := InverseVolume(dec)
		require.NoError(t, err)
		require.Equal(t, samples, out, "boundary=%v", boundary)
	}
}

func TestForwardVolumeRoundTrip97WithinTolerance(t *testing.T) {
	w, h, d := 8, 8, 4
	samples := make([]int64, w*h*d)
	for i := range samples {
		samples[i] = int64((i*13 + 3) % 200)
	}
	dec, err := ForwardVolume(samples, w, h, d, 2, Filter97, BoundarySymmetric, ModeSeparable)
	require.NoError(t, err)
	out, err := InverseVolume(dec)
	require.NoError(t, err)
	require.Len(t, out, len(samples))
	maxAbs := 0.0
	for i := range samples {
		diff := math.Abs(float64(samples[i] - out[i]))
		if diff > maxAbs {
			maxAbs = diff
		}
	}
	require.LessOrEqual(t, maxAbs, 1e-3*256)
}

func TestForwardVolumeDegenerateAxisIsIdentity(t *testing.T) {
	w, h, d := 4, 4, 1
	samples := make([]int64, w*h*d)
	for i := range samples {
		samples[i] = int64(i)
	}
	dec, err := ForwardVolume(samples, w, h, d, 1, Filter53, BoundarySymmetric, ModeSeparable)
	require.NoError(t, err)
	out, err := InverseVolume(dec)
	require.NoError(t, err)
	require.Equal(t, samples, out)
}

func TestForwardVolumeZeroLevelsIsIdentity(t *testing.T) {
	w, h, d := 4, 4, 4
	samples := make([]int64, w*h*d)
	for i := range samples {
		samples[i] = int64(i % 17)
	}
	dec, err := ForwardVolume(samples, w, h, d, 0, Filter53, BoundarySymmetric, ModeSeparable)
	require.NoError(t, err)
	require.Equal(t, samples, func() []int64 {
		out := make([]int64, len(dec.Coeffs))
		for i, v := range dec.Coeffs {
			out[i] = int64(v)
		}
		return out
	}())
}

func TestForwardVolumeRejectsMismatchedBufferSize(t *testing.T) {
	_, err := ForwardVolume(make([]int64, 10), 4, 4, 4, 1, Filter53, BoundarySymmetric, ModeSeparable)
	require.Error(t, err)
}

func TestSubbandDepthCoversEveryVoxelWithinRange(t *testing.T) {
	w, h, d, levels := 8, 8, 4, 2
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				depth := SubbandDepth(w, h, d, levels, x, y, z)
				require.GreaterOrEqual(t, depth, 0)
				require.LessOrEqual(t, depth, levels)
			}
		}
	}
	require.Equal(t, 0, SubbandDepth(w, h, d, levels, 0, 0, 0))
	require.Equal(t, 1, SubbandDepth(w, h, d, levels, w-1, h-1, d-1))
	require.Equal(t, levels, SubbandDepth(w, h, d, levels, 3, 3, 1))
}

func TestSubbandDepthZeroLevelsIsAllDC(t *testing.T) {
	require.Equal(t, 0, SubbandDepth(4, 4, 4, 0, 3, 3, 3))
}

func TestForwardVolumeFull3DModeMatchesSeparableReconstruction(t *testing.T) {
	w, h, d := 4, 4, 4
	samples := make([]int64, w*h*d)
	for i := range samples {
		samples[i] = int64((i * 7) % 100)
	}
	dec, err := ForwardVolume(samples, w, h, d, 1, Filter53, BoundarySymmetric, ModeFull3D)
	require.NoError(t, err)
	out, err := InverseVolume(dec)
	require.NoError(t, err)
	require.Equal(t, samples, out)
}
