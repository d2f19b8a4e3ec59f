package encode

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-jp3d"
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

func TestEncodeGradient4x4x2SingleTileLossless(t *testing.T) {
	vol := gradientVolume(t, 4, 4, 2)
	cfg := DefaultConfig()
	cfg.LevelsX, cfg.LevelsY, cfg.LevelsZ = 1, 1, 1

	enc := NewEncoder(cfg)
	res, err := enc.Encode(context.Background(), vol, nil)
	require.NoError(t, err)
	require.True(t, res.IsLossless)
	require.Equal(t, 1, res.TileCount)
	require.True(t, bytes.HasPrefix(res.Bytes, []byte{0xFF, 0x4F}))
	require.True(t, bytes.HasSuffix(res.Bytes, []byte{0xFF, 0xD9}))
}

func TestEncodeHTJ2KEmitsCAPAndCPFMarkers(t *testing.T) {
	vol := gradientVolume(t, 8, 8, 4)
	cfg := DefaultConfig()
	cfg.Compression = quantize.Params{Mode: quantize.ModeLosslessHTJ2K}

	enc := NewEncoder(cfg)
	res, err := enc.Encode(context.Background(), vol, nil)
	require.NoError(t, err)
	require.True(t, bytes.Contains(res.Bytes, []byte{0xFF, 0x50}))
	require.True(t, bytes.Contains(res.Bytes, []byte{0xFF, 0x59}))
}

func TestEncodeLosslessDoesNotEmitCAPMarker(t *testing.T) {
	vol := gradientVolume(t, 8, 8, 4)
	cfg := DefaultConfig()
	cfg.Compression = quantize.Params{Mode: quantize.ModeLossless}

	enc := NewEncoder(cfg)
	res, err := enc.Encode(context.Background(), vol, nil)
	require.NoError(t, err)
	require.False(t, bytes.Contains(res.Bytes, []byte{0xFF, 0x50}))
}

func TestEncodeMultiTile16x16x8TileCount(t *testing.T) {
	vol := gradientVolume(t, 16, 16, 8)
	cfg := DefaultConfig()
	cfg.Tiling = jp3d.TilingConfig{TileWidth: 8, TileHeight: 8, TileDepth: 4}

	enc := NewEncoder(cfg)
	res, err := enc.Encode(context.Background(), vol, nil)
	require.NoError(t, err)
	require.Equal(t, 8, res.TileCount)
}

func TestEncodeRejectsNilVolume(t *testing.T) {
	enc := NewEncoder(DefaultConfig())
	_, err := enc.Encode(context.Background(), nil, nil)
	require.Error(t, err)
	var jerr *jp3d.Error
	require.ErrorAs(t, err, &jerr)
	require.Equal(t, jp3d.KindInvalidParameter, jerr.Kind)
}
