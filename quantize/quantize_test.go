package quantize

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLosslessStepSizeIsAlwaysOne(t *testing.T) {
	require.Equal(t, 1.0, StepSize(Params{Mode: ModeLossless}, 0))
	require.Equal(t, 1.0, StepSize(Params{Mode: ModeLossless}, 4))
	require.Equal(t, 1.0, StepSize(Params{Mode: ModeLosslessHTJ2K}, 2))
}

func TestLossyStepSizeIncreasesWithDepth(t *testing.T) {
	p := Params{Mode: ModeLossy, PSNR: 40}
	prev := StepSize(p, 0)
	for depth := 1; depth <= 6; depth++ {
		cur := StepSize(p, depth)
		require.GreaterOrEqual(t, cur, prev)
		require.GreaterOrEqual(t, cur, 1.0)
		prev = cur
	}
}

func TestLossyStepSizeDecreasesWithHigherPSNR(t *testing.T) {
	low := StepSize(Params{Mode: ModeLossy, PSNR: 20}, 3)
	high := StepSize(Params{Mode: ModeLossy, PSNR: 60}, 3)
	require.Greater(t, low, high)
}

func TestTargetBitrateStepIsAtLeastOne(t *testing.T) {
	require.GreaterOrEqual(t, StepSize(Params{Mode: ModeTargetBitrate, TargetBPV: 8}, 0), 1.0)
	require.GreaterOrEqual(t, StepSize(Params{Mode: ModeTargetBitrate, TargetBPV: 0.01}, 0), 1.0)
}

func TestQuantizeDequantizeIdentityAtStepOne(t *testing.T) {
	coeffs := []float64{-5, 0, 1, 17, -128, 255}
	indices := Quantize(coeffs, 1.0)
	out := Dequantize(indices, 1.0)
	for i := range coeffs {
		require.Equal(t, coeffs[i], out[i])
	}
}

func TestQuantizeRoundsToEven(t *testing.T) {
	indices := Quantize([]float64{0.5, 1.5, 2.5, -0.5}, 1.0)
	require.Equal(t, []int32{0, 2, 2, 0}, indices)
}

func TestQualityLayerTargetsNonDecreasingAndLastIsOverallBPV(t *testing.T) {
	targets := QualityLayerTargets(1000, 4000, 5)
	require.Len(t, targets, 6)
	require.True(t, sort.SliceIsSorted(targets, func(i, j int) bool { return targets[i] <= targets[j] }))
	require.InDelta(t, 4.0, targets[len(targets)-1], 1e-9)
	require.Equal(t, 0.0, targets[0])
}

func TestQualityLayerTargetsClampsLayersToAtLeastOne(t *testing.T) {
	targets := QualityLayerTargets(100, 800, 0)
	require.Len(t, targets, 2)
	require.InDelta(t, 8.0, targets[1], 1e-9)
}
