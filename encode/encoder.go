package encode

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cocosip/go-jp3d"
	"github.com/cocosip/go-jp3d/codestream"
	"github.com/cocosip/go-jp3d/htj2k"
	"github.com/cocosip/go-jp3d/quantize"
	"github.com/cocosip/go-jp3d/sequence"
	"github.com/cocosip/go-jp3d/wavelet"
)

// Encoder holds a Config and runs the encode pipeline described in the
// package doc comment.
type Encoder struct {
	Config Config
}

// NewEncoder constructs an Encoder from cfg.
func NewEncoder(cfg Config) *Encoder {
	return &Encoder{Config: cfg}
}

// Encode runs the tiled encode pipeline over volume, returning the
// assembled codestream bytes plus summary statistics. progress may be
// nil.
func (e *Encoder) Encode(ctx context.Context, volume *jp3d.Volume, progress ProgressFunc) (*Result, error) {
	if volume == nil {
		return nil, jp3d.NewError(jp3d.KindInvalidParameter, "volume must not be nil")
	}
	if volume.Width <= 0 || volume.Height <= 0 || volume.Depth <= 0 {
		return nil, jp3d.NewError(jp3d.KindInvalidDimensions, "volume dimensions must be positive")
	}
	if len(volume.Components) == 0 {
		return nil, jp3d.NewError(jp3d.KindInvalidComponentConfiguration, "volume requires at least one component")
	}

	cfg := e.Config
	tiling := cfg.Tiling
	if tiling.TileWidth <= 0 || tiling.TileHeight <= 0 || tiling.TileDepth <= 0 {
		tiling = jp3d.DefaultTiling(volume)
	}
	tiles := jp3d.EnumerateTiles(volume.Width, volume.Height, volume.Depth, tiling)
	tilesTotal := len(tiles)

	log := cfg.logger()
	payloads := make([][]byte, tilesTotal)
	isHT := make([]bool, tilesTotal)

	var warnMu sync.Mutex
	var warnings []string
	addWarning := func(msg string) {
		warnMu.Lock()
		warnings = append(warnings, msg)
		warnMu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.concurrencyLimit())

	for i, tile := range tiles {
		idx, tile := i, tile
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return jp3d.WrapError(jp3d.KindCancelled, "encode cancelled before tile", err)
			}
			payload, ht, err := e.encodeTile(gctx, volume, tile, cfg, idx, tilesTotal, progress)
			if err != nil {
				if cfg.Tolerant {
					log.Warn("tile encode failed, continuing in tolerant mode", "tile", idx, "error", err)
					addWarning(fmt.Sprintf("tile %d: %v", idx, err))
					return nil
				}
				return err
			}
			payloads[idx] = payload
			isHT[idx] = ht
			progress.emit(ProgressEvent{TileIdx: idx, TilesTotal: tilesTotal, Stage: StageAssemble})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	gx, gy, _ := jp3d.GridDims(volume.Width, volume.Height, volume.Depth, tiling)
	cs := &codestream.Codestream{
		SIZ: siz(volume, tiling),
		COD: codestream.CODSegment{
			ProgressionOrder: orderToWire(cfg.Order),
			Layers:           uint16(cfg.layers()),
			LevelsX:          uint8(cfg.LevelsX), LevelsY: uint8(cfg.LevelsY), LevelsZ: uint8(cfg.LevelsZ),
			Filter: filterToWire(cfg.filter()),
		},
		QCD: qcd(cfg),
	}
	if cfg.Compression.UsesHTJ2K() {
		cs.CAP = &codestream.CAPSegment{AllowMixedTiles: true}
		cs.CPF = &codestream.CPFSegment{ProfileTag: 1}
	}

	for i, tile := range tiles {
		cs.Tiles = append(cs.Tiles, codestream.TilePart{
			TileIndex: uint16(jp3d.LinearTileIndex(tile.IX, tile.IY, tile.IZ, gx, gy)),
			IsHT:      isHT[i],
			Data:      payloads[i],
		})
	}

	bytes, err := codestream.Build(cs)
	if err != nil {
		return nil, jp3d.WrapError(jp3d.KindParseError, "failed to assemble codestream", err)
	}

	voxelCount := int64(volume.Width) * int64(volume.Height) * int64(volume.Depth)
	originalBits := int64(0)
	for _, c := range volume.Components {
		originalBits += voxelCount * int64(c.BitDepth)
	}
	compressedBits := int64(len(bytes)) * 8

	result := &Result{
		Bytes: bytes,
		Width: volume.Width, Height: volume.Height, Depth: volume.Depth,
		Components:       len(volume.Components),
		IsLossless:       cfg.Compression.IsLossless(),
		TileCount:        tilesTotal,
		IsPartial:        len(warnings) > 0,
		Warnings:         warnings,
	}
	if compressedBits > 0 {
		result.CompressionRatio = float64(originalBits) / float64(compressedBits)
	}
	if voxelCount > 0 {
		result.BitsPerVoxel = float64(compressedBits) / float64(voxelCount)
	}
	return result, nil
}

// EncodeRaw encodes a flat row-major float64 sample buffer as a single
// component (signed when any sample is negative), inferring a bit depth wide enough to hold the
// buffer's integer-rounded range (clamped to the component model's
// [1,38] limit).
func (e *Encoder) EncodeRaw(ctx context.Context, samples []float64, width, height, depth int) (*Result, error) {
	if width <= 0 || height <= 0 || depth <= 0 || len(samples) == 0 {
		return nil, jp3d.NewError(jp3d.KindInvalidParameter, "EncodeRaw requires positive dimensions and a non-empty buffer")
	}
	if len(samples) != width*height*depth {
		return nil, jp3d.NewError(jp3d.KindInvalidParameter, "sample buffer length does not match width*height*depth")
	}

	minV, maxV := samples[0], samples[0]
	for _, s := range samples {
		if s < minV {
			minV = s
		}
		if s > maxV {
			maxV = s
		}
	}
	bitDepth := bitsToRepresent(minV, maxV)

	comp := jp3d.NewComponent(0, width, height, depth, bitDepth, minV < 0, 1, 1, 1)
	i := 0
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				comp.SetSampleAt(x, y, z, int64(roundFloat(samples[i])))
				i++
			}
		}
	}

	volume, err := jp3d.NewVolume(width, height, depth, []*jp3d.Component{comp})
	if err != nil {
		return nil, err
	}
	return e.Encode(ctx, volume, nil)
}

func bitsToRepresent(minV, maxV float64) int {
	bound := maxV
	if -minV > bound {
		bound = -minV
	}
	bits := 1
	for v := int64(1); float64(v) < bound+1 && bits < 38; v <<= 1 {
		bits++
	}
	return bits
}

func roundFloat(v float64) int64 {
	if v >= 0 {
		return int64(v + 0.5)
	}
	return -int64(-v + 0.5)
}

// encodeTile runs the per-component extract/transform/quantize/
// assemble pipeline for one tile and returns its concatenated payload
// plus the tile's HT flag, which is Compression.UsesHTJ2K(); each
// component chunk carries its own htj2k mode byte.
func (e *Encoder) encodeTile(ctx context.Context, volume *jp3d.Volume, tile jp3d.Tile, cfg Config, idx, tilesTotal int, progress ProgressFunc) (payload []byte, isHT bool, err error) {
	isHT = cfg.Compression.UsesHTJ2K()
	w, h, d := tile.Region.Width(), tile.Region.Height(), tile.Region.Depth()

	for ci := range volume.Components {
		if err := ctx.Err(); err != nil {
			return nil, false, jp3d.WrapError(jp3d.KindCancelled, "encode cancelled mid-tile", err)
		}

		raw, err := jp3d.ExtractTileData(volume, tile, ci)
		if err != nil {
			return nil, false, err
		}
		if len(raw) == 0 {
			return nil, false, jp3d.NewError(jp3d.KindInvalidParameter, "tile component data is empty")
		}
		samples := make([]int64, len(raw))
		for i, v := range raw {
			samples[i] = int64(v)
		}
		progress.emit(ProgressEvent{TileIdx: idx, TilesTotal: tilesTotal, Stage: StageExtract})

		if err := ctx.Err(); err != nil {
			return nil, false, jp3d.WrapError(jp3d.KindCancelled, "encode cancelled before transform", err)
		}
		dec, err := wavelet.ForwardVolume(samples, w, h, d, cfg.maxLevelForAxes(), cfg.filter(), cfg.Boundary, cfg.WaveletMode)
		if err != nil {
			return nil, false, jp3d.WrapError(jp3d.KindInvalidParameter, "forward wavelet transform failed", err)
		}
		progress.emit(ProgressEvent{TileIdx: idx, TilesTotal: tilesTotal, Stage: StageTransform})

		if err := ctx.Err(); err != nil {
			return nil, false, jp3d.WrapError(jp3d.KindCancelled, "encode cancelled before quantize", err)
		}
		quantized := quantizeDecomposition(dec, cfg.Compression, w, h, d, cfg.LevelsX, cfg.LevelsY, cfg.LevelsZ)
		progress.emit(ProgressEvent{TileIdx: idx, TilesTotal: tilesTotal, Stage: StageQuantize})

		chunk := htj2k.EncodeTile(quantized, cfg.HTJ2K)
		payload = append(payload, chunk...)
	}
	return payload, isHT, nil
}

// maxLevelForAxes returns a single level count used by ForwardVolume,
// which the per-axis LevelsX/Y/Z override in the caller is not
// expressed by: ForwardVolume applies the same level count to all
// three axes per pass, skipping axes whose extent is already 1. Using
// the maximum of the three configured axis counts lets the shorter
// axes degenerate naturally once their extent reaches 1, matching the
// "edge behaviour" invariant that a size-1 axis is never transformed.
func (c Config) maxLevelForAxes() int { return c.maxLevel() }

func quantizeDecomposition(dec *wavelet.Decomposition, params quantize.Params, w, h, d, lx, ly, lz int) []int32 {
	out := make([]int32, len(dec.Coeffs))
	levels := lx
	if ly > levels {
		levels = ly
	}
	if lz > levels {
		levels = lz
	}
	idx := 0
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				depth := wavelet.SubbandDepth(w, h, d, levels, x, y, z)
				step := quantize.StepSize(params, depth)
				out[idx] = quantize.QuantizeScalar(dec.Coeffs[idx], step)
				idx++
			}
		}
	}
	return out
}

func siz(volume *jp3d.Volume, tiling jp3d.TilingConfig) codestream.SIZSegment {
	comps := make([]codestream.ComponentSize, len(volume.Components))
	for i, c := range volume.Components {
		comps[i] = codestream.ComponentSize{
			BitDepth: uint8(c.BitDepth), Signed: c.Signed,
			SubX: uint8(c.SubX), SubY: uint8(c.SubY), SubZ: uint8(c.SubZ),
		}
	}
	return codestream.SIZSegment{
		Width: uint32(volume.Width), Height: uint32(volume.Height), Depth: uint32(volume.Depth),
		TileWidth: uint32(tiling.TileWidth), TileHeight: uint32(tiling.TileHeight), TileDepth: uint32(tiling.TileDepth),
		Components: comps,
	}
}

func qcd(cfg Config) codestream.QCDSegment {
	levels := cfg.maxLevel()
	bitDepth := 16 // representative precision for the shared QCD step table
	style := uint8(1)
	if cfg.Compression.IsLossless() {
		style = 0
	}
	steps := make([]uint16, levels+1)
	for depth := 0; depth <= levels; depth++ {
		steps[depth] = codestream.EncodeStepSize(quantize.StepSize(cfg.Compression, depth), bitDepth)
	}
	return codestream.QCDSegment{Style: style, GuardBits: cfg.GuardBits, StepSizes: steps}
}

func filterToWire(f wavelet.Filter) uint8 {
	if f == wavelet.Filter53 {
		return codestream.FilterReversible53
	}
	return codestream.FilterIrreversible97
}

func orderToWire(o sequence.Order) uint8 {
	switch o {
	case sequence.LRCPS:
		return codestream.ProgressionLRCPS
	case sequence.RLCPS:
		return codestream.ProgressionRLCPS
	case sequence.PCRLS:
		return codestream.ProgressionPCRLS
	case sequence.SLRCP:
		return codestream.ProgressionSLRCP
	case sequence.CPRLS:
		return codestream.ProgressionCPRLS
	default:
		return codestream.ProgressionLRCPS
	}
}
