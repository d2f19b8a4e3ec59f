package decode

import (
	"context"
	"strconv"

	"github.com/cocosip/go-jp3d"
	"github.com/cocosip/go-jp3d/codestream"
	"github.com/cocosip/go-jp3d/htj2k"
	"github.com/cocosip/go-jp3d/quantize"
	"github.com/cocosip/go-jp3d/wavelet"
)

// representativeBitDepth matches the value the encoder's QCD writer
// uses to encode step-size exponents (see encode/encoder.go's qcd
// helper); the wire step-size codec is keyed to a single shared
// precision rather than per-component bit depth.
const representativeBitDepth = 16

// Result is the outcome of a Decode call.
type Result struct {
	Volume        *jp3d.Volume
	TilesDecoded  int
	TilesTotal    int
	TilesSkipped  int
	IsPartial     bool
	Warnings      []string
}

// Decoder parses a codestream and reassembles a Volume by reversing
// the encoder's per-tile pipeline.
type Decoder struct {
	Options Options
}

// NewDecoder constructs a Decoder from opts.
func NewDecoder(opts Options) *Decoder {
	return &Decoder{Options: opts}
}

// Decode parses data and decodes every tile, reassembling a complete
// Volume. tileFilter, when non-nil, is consulted per tile (by linear
// index and region) to decide whether to decode it; tiles it rejects
// are counted as skipped and left zero-filled. A nil tileFilter
// decodes every tile.
func (d *Decoder) Decode(ctx context.Context, data []byte, tileFilter func(tile jp3d.Tile, linearIdx int) bool) (*Result, error) {
	pc, err := codestream.Parse(data, d.Options.TolerateErrors)
	if err != nil {
		return nil, jp3d.WrapError(jp3d.KindParseError, "failed to parse codestream", err)
	}

	volume, tiling, err := allocateVolume(pc)
	if err != nil {
		return nil, err
	}

	tiles := jp3d.EnumerateTiles(volume.Width, volume.Height, volume.Depth, tiling)
	tilesTotal := len(tiles)

	tileByIndex := make(map[uint16]codestream.TilePart, len(pc.Tiles))
	for _, t := range pc.Tiles {
		tileByIndex[t.TileIndex] = t
	}

	log := d.Options.logger()
	result := &Result{Volume: volume, TilesTotal: tilesTotal, IsPartial: pc.IsPartial, Warnings: append([]string(nil), pc.Warnings...)}

	gx, gy, _ := jp3d.GridDims(volume.Width, volume.Height, volume.Depth, tiling)
	levels := maxLevel(pc.COD)

	for i, tile := range tiles {
		if err := ctx.Err(); err != nil {
			return nil, jp3d.WrapError(jp3d.KindCancelled, "decode cancelled", err)
		}
		if tileFilter != nil && !tileFilter(tile, i) {
			result.TilesSkipped++
			continue
		}
		linear := jp3d.LinearTileIndex(tile.IX, tile.IY, tile.IZ, gx, gy)
		tp, ok := tileByIndex[uint16(linear)]
		if !ok {
			result.TilesSkipped++
			result.Warnings = append(result.Warnings, "missing tile part for tile index "+strconv.Itoa(linear))
			result.IsPartial = true
			continue
		}
		if err := decodeTileInto(volume, tile, tp, pc.QCD, levels, filterFromWire(pc.COD.Filter)); err != nil {
			if d.Options.TolerateErrors {
				log.Warn("tile decode failed, continuing in tolerant mode", "tile", linear, "error", err)
				result.Warnings = append(result.Warnings, "tile "+strconv.Itoa(linear)+": "+err.Error())
				result.IsPartial = true
				result.TilesSkipped++
				continue
			}
			return nil, jp3d.WrapError(jp3d.KindCorrupted, "tile decode failed", err)
		}
		result.TilesDecoded++
	}

	return result, nil
}

func allocateVolume(pc *codestream.ParsedCodestream) (*jp3d.Volume, jp3d.TilingConfig, error) {
	siz := pc.SIZ
	if siz.Width == 0 || siz.Height == 0 || siz.Depth == 0 || len(siz.Components) == 0 {
		return nil, jp3d.TilingConfig{}, jp3d.NewError(jp3d.KindParseError, "codestream SIZ segment is missing or empty")
	}
	comps := make([]*jp3d.Component, len(siz.Components))
	for i, cs := range siz.Components {
		comps[i] = jp3d.NewComponent(i, int(siz.Width)/maxU8(cs.SubX), int(siz.Height)/maxU8(cs.SubY), int(siz.Depth)/maxU8(cs.SubZ),
			int(cs.BitDepth), cs.Signed, int(cs.SubX), int(cs.SubY), int(cs.SubZ))
	}
	volume, err := jp3d.NewVolume(int(siz.Width), int(siz.Height), int(siz.Depth), comps)
	if err != nil {
		return nil, jp3d.TilingConfig{}, err
	}
	tiling := jp3d.TilingConfig{TileWidth: int(siz.TileWidth), TileHeight: int(siz.TileHeight), TileDepth: int(siz.TileDepth)}
	if tiling.TileWidth <= 0 || tiling.TileHeight <= 0 || tiling.TileDepth <= 0 {
		tiling = jp3d.DefaultTiling(volume)
	}
	return volume, tiling, nil
}

func maxU8(v uint8) int {
	if v < 1 {
		return 1
	}
	return int(v)
}

func maxLevel(cod codestream.CODSegment) int {
	m := int(cod.LevelsX)
	if int(cod.LevelsY) > m {
		m = int(cod.LevelsY)
	}
	if int(cod.LevelsZ) > m {
		m = int(cod.LevelsZ)
	}
	return m
}

// decodeTileInto decodes one tile's payload for every component and
// writes the reconstructed samples back into volume at tile.Region.
func decodeTileInto(volume *jp3d.Volume, tile jp3d.Tile, tp codestream.TilePart, qcd codestream.QCDSegment, levels int, filter wavelet.Filter) error {
	w, h, d := tile.Region.Width(), tile.Region.Height(), tile.Region.Depth()
	voxelsPerComponent := w * h * d
	if voxelsPerComponent == 0 {
		return nil
	}

	offset := 0
	for ci := range volume.Components {
		quantized, consumed, err := htj2k.DecodeTile(tp.Data[offset:], voxelsPerComponent)
		if err != nil {
			return err
		}
		offset += consumed

		coeffs := make([]float64, voxelsPerComponent)
		idx := 0
		for z := 0; z < d; z++ {
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					depth := wavelet.SubbandDepth(w, h, d, levels, x, y, z)
					step := stepForDepth(qcd, depth)
					coeffs[idx] = quantize.DequantizeScalar(int32(quantized[idx]), step)
					idx++
				}
			}
		}

		dec := &wavelet.Decomposition{
			Width: w, Height: h, Depth: d,
			Levels: levels, Filter: filter, Boundary: wavelet.BoundarySymmetric, Mode: wavelet.ModeSeparable,
			Coeffs: coeffs,
		}
		samples, err := wavelet.InverseVolume(dec)
		if err != nil {
			return err
		}
		out := make([]int32, len(samples))
		for i, v := range samples {
			out[i] = int32(v)
		}
		if err := jp3d.InsertTileData(volume, tile, ci, out); err != nil {
			return err
		}
	}
	return nil
}

func stepForDepth(qcd codestream.QCDSegment, depth int) float64 {
	if qcd.Style == 0 {
		return 1.0
	}
	if depth < len(qcd.StepSizes) {
		return codestream.DecodeStepSize(qcd.StepSizes[depth], representativeBitDepth)
	}
	if len(qcd.StepSizes) > 0 {
		return codestream.DecodeStepSize(qcd.StepSizes[len(qcd.StepSizes)-1], representativeBitDepth)
	}
	return 1.0
}
