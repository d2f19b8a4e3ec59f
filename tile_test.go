package jp3d

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTileCountMatchesCeilDivFormula(t *testing.T) {
	tiling := TilingConfig{TileWidth: 8, TileHeight: 8, TileDepth: 4}
	require.Equal(t, 8, TileCount(16, 16, 8, tiling))
}

func TestEnumerateTilesBoundaryClipped(t *testing.T) {
	tiling := TilingConfig{TileWidth: 8, TileHeight: 8, TileDepth: 4}
	tiles := EnumerateTiles(10, 10, 5, tiling)
	require.Len(t, tiles, 8)
	for _, tl := range tiles {
		require.LessOrEqual(t, tl.Region.X1, 10)
		require.LessOrEqual(t, tl.Region.Y1, 10)
		require.LessOrEqual(t, tl.Region.Z1, 5)
	}
	last := tiles[len(tiles)-1]
	require.Equal(t, 10, last.Region.X1)
	require.Equal(t, 10, last.Region.Y1)
	require.Equal(t, 5, last.Region.Z1)
}

func TestLinearTileIndexOrder(t *testing.T) {
	tiling := TilingConfig{TileWidth: 4, TileHeight: 4, TileDepth: 4}
	tiles := EnumerateTiles(8, 8, 8, tiling)
	gx, gy, _ := GridDims(8, 8, 8, tiling)
	for i, tl := range tiles {
		require.Equal(t, i, LinearTileIndex(tl.IX, tl.IY, tl.IZ, gx, gy))
	}
}

func TestExtractAndInsertTileDataRoundTrip(t *testing.T) {
	c := NewComponent(0, 8, 8, 4, 8, false, 1, 1, 1)
	v, err := NewVolume(8, 8, 4, []*Component{c})
	require.NoError(t, err)
	for z := 0; z < 4; z++ {
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				c.SetSampleAt(x, y, z, int64((x+2*y+3*z)%256))
			}
		}
	}
	tiling := TilingConfig{TileWidth: 4, TileHeight: 4, TileDepth: 2}
	tiles := EnumerateTiles(8, 8, 4, tiling)
	for _, tl := range tiles {
		data, err := ExtractTileData(v, tl, 0)
		require.NoError(t, err)
		require.NoError(t, InsertTileData(v, tl, 0, data))
	}
	require.Equal(t, int64(5), c.SignedSampleAt(1, 2, 0))
}

func TestExtractTileDataRejectsBadComponent(t *testing.T) {
	c := NewComponent(0, 4, 4, 4, 8, false, 1, 1, 1)
	v, _ := NewVolume(4, 4, 4, []*Component{c})
	tiling := DefaultTiling(v)
	tiles := EnumerateTiles(4, 4, 4, tiling)
	_, err := ExtractTileData(v, tiles[0], 5)
	require.Error(t, err)
}
