package jp3d

// TilingConfig specifies the regular grid used to partition a Volume
// into independently coded Tiles.
type TilingConfig struct {
	TileWidth, TileHeight, TileDepth int
}

// DefaultTiling returns a TilingConfig with a single tile covering the
// whole volume.
func DefaultTiling(v *Volume) TilingConfig {
	return TilingConfig{TileWidth: v.Width, TileHeight: v.Height, TileDepth: v.Depth}
}

// Tile identifies one cell of the tile grid derived from a
// TilingConfig, together with its Region clipped to the volume (a
// boundary tile's region is shorter than the configured tile size).
type Tile struct {
	IX, IY, IZ int
	Region     Region
}

// GridDims returns the number of tiles along each axis for a volume of
// the given dimensions under tiling.
func GridDims(width, height, depth int, tiling TilingConfig) (gx, gy, gz int) {
	gx = ceilDiv(width, tiling.TileWidth)
	gy = ceilDiv(height, tiling.TileHeight)
	gz = ceilDiv(depth, tiling.TileDepth)
	return
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// TileCount returns gx*gy*gz, the total number of tiles a volume of the
// given dimensions decomposes into under tiling.
func TileCount(width, height, depth int, tiling TilingConfig) int {
	gx, gy, gz := GridDims(width, height, depth, tiling)
	return gx * gy * gz
}

// LinearTileIndex returns the linear index of tile (ix,iy,iz) within a
// grid of the given dimensions: iz*gx*gy + iy*gx + ix.
func LinearTileIndex(ix, iy, iz, gx, gy int) int {
	return iz*gx*gy + iy*gx + ix
}

// EnumerateTiles returns every Tile of the volume under tiling, in
// z-major, y-major, x-minor order (matching LinearTileIndex order).
// Boundary tiles are clipped so their upper bounds equal the volume's.
func EnumerateTiles(width, height, depth int, tiling TilingConfig) []Tile {
	gx, gy, gz := GridDims(width, height, depth, tiling)
	tiles := make([]Tile, 0, gx*gy*gz)
	for iz := 0; iz < gz; iz++ {
		z0 := iz * tiling.TileDepth
		z1 := minInt(z0+tiling.TileDepth, depth)
		for iy := 0; iy < gy; iy++ {
			y0 := iy * tiling.TileHeight
			y1 := minInt(y0+tiling.TileHeight, height)
			for ix := 0; ix < gx; ix++ {
				x0 := ix * tiling.TileWidth
				x1 := minInt(x0+tiling.TileWidth, width)
				tiles = append(tiles, Tile{
					IX: ix, IY: iy, IZ: iz,
					Region: Region{X0: x0, Y0: y0, Z0: z0, X1: x1, Y1: y1, Z1: z1},
				})
			}
		}
	}
	return tiles
}

// ExtractTileData returns a contiguous voxel buffer (int32, row-major
// x-fastest then y then z) of tile.Region's samples for the given
// component, sign-extended per the component's bit depth.
func ExtractTileData(v *Volume, tile Tile, componentIdx int) ([]int32, error) {
	if componentIdx < 0 || componentIdx >= len(v.Components) {
		return nil, NewError(KindInvalidParameter, "component index out of range")
	}
	c := v.Components[componentIdx]
	r := tile.Region
	w, h, d := r.Width(), r.Height(), r.Depth()
	out := make([]int32, w*h*d)
	i := 0
	for z := r.Z0; z < r.Z1; z++ {
		for y := r.Y0; y < r.Y1; y++ {
			for x := r.X0; x < r.X1; x++ {
				out[i] = int32(c.SignedSampleAt(x, y, z))
				i++
			}
		}
	}
	return out, nil
}

// InsertTileData writes a tile-sized voxel buffer (as produced by
// ExtractTileData) back into the component's data at tile.Region.
func InsertTileData(v *Volume, tile Tile, componentIdx int, data []int32) error {
	if componentIdx < 0 || componentIdx >= len(v.Components) {
		return NewError(KindInvalidParameter, "component index out of range")
	}
	c := v.Components[componentIdx]
	r := tile.Region
	w, h, d := r.Width(), r.Height(), r.Depth()
	if len(data) != w*h*d {
		return NewError(KindInvalidParameter, "tile data length does not match tile region volume")
	}
	i := 0
	for z := r.Z0; z < r.Z1; z++ {
		for y := r.Y0; y < r.Y1; y++ {
			for x := r.X0; x < r.X1; x++ {
				c.SetSampleAt(x, y, z, int64(data[i]))
				i++
			}
		}
	}
	return nil
}
