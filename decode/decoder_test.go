package decode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-jp3d"
	"github.com/cocosip/go-jp3d/encode"
	"github.com/cocosip/go-jp3d/quantize"
)

func gradientVolume(t *testing.T, w, h, d int) *jp3d.Volume {
	t.Helper()
	comp := jp3d.NewComponent(0, w, h, d, 8, false, 1, 1, 1)
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				comp.SetSampleAt(x, y, z, int64((x+2*y+3*z)%256))
			}
		}
	}
	vol, err := jp3d.NewVolume(w, h, d, []*jp3d.Component{comp})
	require.NoError(t, err)
	return vol
}

// TestRoundTripGradient4x4x2 covers a single-tile 5/3 lossless round
// trip over a gradient volume.
func TestRoundTripGradient4x4x2(t *testing.T) {
	vol := gradientVolume(t, 4, 4, 2)
	cfg := encode.DefaultConfig()
	cfg.LevelsX, cfg.LevelsY, cfg.LevelsZ = 1, 1, 1

	enc := encode.NewEncoder(cfg)
	res, err := enc.Encode(context.Background(), vol, nil)
	require.NoError(t, err)

	dec := NewDecoder(DefaultOptions())
	out, err := dec.Decode(context.Background(), res.Bytes, nil)
	require.NoError(t, err)
	require.Equal(t, 1, out.TilesDecoded)
	require.Equal(t, 1, out.TilesTotal)
	require.False(t, out.IsPartial)
	require.Empty(t, out.Warnings)

	for z := 0; z < 2; z++ {
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				want := vol.Components[0].SignedSampleAt(x, y, z)
				got := out.Volume.Components[0].SignedSampleAt(x, y, z)
				require.Equal(t, want, got, "voxel (%d,%d,%d)", x, y, z)
			}
		}
	}
}

// TestRoundTripMultiTile16x16x8 is scenario 2: multi-tile lossless
// round trip with spot-checked corner voxels.
func TestRoundTripMultiTile16x16x8(t *testing.T) {
	vol := gradientVolume(t, 16, 16, 8)
	cfg := encode.DefaultConfig()
	cfg.Tiling = jp3d.TilingConfig{TileWidth: 8, TileHeight: 8, TileDepth: 4}

	enc := encode.NewEncoder(cfg)
	res, err := enc.Encode(context.Background(), vol, nil)
	require.NoError(t, err)
	require.Equal(t, 8, res.TileCount)

	dec := NewDecoder(DefaultOptions())
	out, err := dec.Decode(context.Background(), res.Bytes, nil)
	require.NoError(t, err)
	require.Equal(t, 8, out.TilesDecoded)

	spots := [][3]int{{0, 0, 0}, {15, 0, 0}, {0, 15, 0}, {0, 0, 7}, {15, 15, 7}}
	for _, p := range spots {
		want := vol.Components[0].SignedSampleAt(p[0], p[1], p[2])
		got := out.Volume.Components[0].SignedSampleAt(p[0], p[1], p[2])
		require.Equal(t, want, got, "voxel %v", p)
	}
}

// TestROISlice16x16x8 is scenario 3: an ROI request over one tile of
// an eight-tile codestream.
func TestROISlice16x16x8(t *testing.T) {
	vol := gradientVolume(t, 16, 16, 8)
	cfg := encode.DefaultConfig()
	cfg.Tiling = jp3d.TilingConfig{TileWidth: 8, TileHeight: 8, TileDepth: 4}

	enc := encode.NewEncoder(cfg)
	res, err := enc.Encode(context.Background(), vol, nil)
	require.NoError(t, err)

	roi := NewROIDecoder(DefaultOptions())
	region := jp3d.NewRegion(0, 0, 0, 8, 8, 4)
	out, err := roi.Decode(context.Background(), res.Bytes, region)
	require.NoError(t, err)
	require.Equal(t, 8, out.Volume.Width)
	require.Equal(t, 8, out.Volume.Height)
	require.Equal(t, 4, out.Volume.Depth)
	require.Equal(t, 1, out.TilesDecoded)
	require.GreaterOrEqual(t, out.TilesSkipped, 7)

	for z := 0; z < 4; z++ {
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				want := vol.Components[0].SignedSampleAt(x, y, z)
				got := out.Volume.Components[0].SignedSampleAt(x, y, z)
				require.Equal(t, want, got, "voxel (%d,%d,%d)", x, y, z)
			}
		}
	}
}

// TestROIEmptyIntersectionYieldsWarning covers the empty-intersection
// branch of the ROI clamp invariant.
func TestROIEmptyIntersectionYieldsWarning(t *testing.T) {
	vol := gradientVolume(t, 8, 8, 4)
	enc := encode.NewEncoder(encode.DefaultConfig())
	res, err := enc.Encode(context.Background(), vol, nil)
	require.NoError(t, err)

	roi := NewROIDecoder(DefaultOptions())
	region := jp3d.NewRegion(100, 100, 100, 4, 4, 4)
	out, err := roi.Decode(context.Background(), res.Bytes, region)
	require.NoError(t, err)
	require.Equal(t, 0, out.TilesDecoded)
	require.NotEmpty(t, out.Warnings)
}

// TestProgressiveSliceBatches is scenario 5: a 4x4x6 volume decoded in
// slice batches of 2.
func TestProgressiveSliceBatches(t *testing.T) {
	vol := gradientVolume(t, 4, 4, 6)
	enc := encode.NewEncoder(encode.DefaultConfig())
	res, err := enc.Encode(context.Background(), vol, nil)
	require.NoError(t, err)

	pd := NewProgressiveDecoder(DefaultOptions(), ProgressiveSlice, 2)
	var progressValues []float64
	var depths []int
	var lastFinal bool
	err = pd.Run(context.Background(), res.Bytes, func(step ProgressiveStep) bool {
		progressValues = append(progressValues, step.Progress)
		depths = append(depths, step.Volume.Depth)
		lastFinal = step.IsFinal
		return true
	})
	require.NoError(t, err)
	require.Len(t, progressValues, 3)
	require.Equal(t, []int{2, 2, 2}, depths)
	require.True(t, lastFinal)
	for i := 1; i < len(progressValues); i++ {
		require.Greater(t, progressValues[i], progressValues[i-1])
	}
	require.InDelta(t, 1.0, progressValues[len(progressValues)-1], 1e-9)
}

func TestDecodeRejectsEmptyInput(t *testing.T) {
	dec := NewDecoder(DefaultOptions())
	_, err := dec.Decode(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestHTJ2KRoundTrip(t *testing.T) {
	vol := gradientVolume(t, 8, 8, 4)
	cfg := encode.DefaultConfig()
	cfg.Compression = quantize.Params{Mode: quantize.ModeLosslessHTJ2K}

	enc := encode.NewEncoder(cfg)
	res, err := enc.Encode(context.Background(), vol, nil)
	require.NoError(t, err)

	dec := NewDecoder(DefaultOptions())
	out, err := dec.Decode(context.Background(), res.Bytes, nil)
	require.NoError(t, err)
	require.Equal(t, out.TilesTotal, out.TilesDecoded)
}
