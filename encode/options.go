// Package encode implements the volumetric encoder: per-tile forward
// wavelet transform, rate-controlled quantization, HTJ2K/legacy block
// coding, and codestream assembly.
//
// Grounded on jpeg2000/encoder.go's EncodeParams/Encode pipeline shape
// (validate → per-tile loop → tier-1 code → assemble codestream), and
// on the cmd/ctl ambient logging convention: a *slog.Logger field on
// the options struct, defaulting to slog.Default() rather than a
// package-global logger. Per-tile parallelism uses
// golang.org/x/sync/errgroup, bounding concurrent work with SetLimit
// and cancelling the whole group on the first fatal error.
package encode

import (
	"log/slog"
	"runtime"

	"github.com/cocosip/go-jp3d"
	"github.com/cocosip/go-jp3d/htj2k"
	"github.com/cocosip/go-jp3d/quantize"
	"github.com/cocosip/go-jp3d/sequence"
	"github.com/cocosip/go-jp3d/wavelet"
)

// Config configures an Encoder.
type Config struct {
	// Compression selects the rate-control policy (lossless, PSNR
	// target, bitrate target) and whether HTJ2K block coding is used.
	Compression quantize.Params
	// Tiling partitions the volume into independently coded tiles. The
	// zero value means "single tile covering the whole volume" and is
	// resolved against the actual volume at Encode time.
	Tiling jp3d.TilingConfig
	// LevelsX, LevelsY, LevelsZ are recorded per axis in the COD
	// segment. The wavelet transform applies the largest of the three
	// to every axis (an axis stops being split once its extent reaches
	// 1); the axes are not decomposed to independent level counts.
	LevelsX, LevelsY, LevelsZ int
	// Boundary selects the wavelet boundary-extension rule.
	Boundary wavelet.Boundary
	// WaveletMode selects Separable or Full3D decomposition.
	WaveletMode wavelet.Mode
	// Order is the progression order recorded in the codestream's COD
	// segment.
	Order sequence.Order
	// Layers is the number of quality layers to target; values < 1 are
	// treated as 1.
	Layers int
	// Parallel enables bounded per-tile concurrency via errgroup; when
	// false, the errgroup is limited to one tile at a time, so tiles are
	// encoded one after another in linear-index order.
	Parallel bool
	// HTJ2K configures the htj2k block coder, which codes every
	// component payload whatever the Compression mode; with a nil
	// ForceMode each payload's coding mode is picked from its
	// coefficient density.
	HTJ2K htj2k.Config
	// Tolerant downgrades a fatal per-tile error to a warning and an
	// empty tile payload instead of aborting the whole encode.
	Tolerant bool
	// GuardBits is carried into the codestream's QCD segment.
	GuardBits uint8
	// Logger receives encode progress and warnings; defaults to
	// slog.Default() when nil.
	Logger *slog.Logger
}

// DefaultConfig returns a lossless, single-tile, non-parallel
// configuration with two decomposition levels per axis.
func DefaultConfig() Config {
	return Config{
		Compression: quantize.Params{Mode: quantize.ModeLossless},
		LevelsX:     2, LevelsY: 2, LevelsZ: 2,
		Boundary:    wavelet.BoundarySymmetric,
		WaveletMode: wavelet.ModeSeparable,
		Order:       sequence.LRCPS,
		Layers:      1,
		GuardBits:   2,
	}
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c Config) filter() wavelet.Filter {
	if c.Compression.Mode == quantize.ModeLossless || c.Compression.Mode == quantize.ModeLosslessHTJ2K {
		return wavelet.Filter53
	}
	return wavelet.Filter97
}

func (c Config) layers() int {
	if c.Layers < 1 {
		return 1
	}
	return c.Layers
}

func (c Config) concurrencyLimit() int {
	if !c.Parallel {
		return 1
	}
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return n
}

func (c Config) maxLevel() int {
	m := c.LevelsX
	if c.LevelsY > m {
		m = c.LevelsY
	}
	if c.LevelsZ > m {
		m = c.LevelsZ
	}
	return m
}
