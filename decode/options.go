// Package decode implements the base, ROI, and progressive volumetric
// decoders: parse a codestream, reverse the per-tile encode pipeline
// (HTJ2K/legacy unpack, dequantize, inverse wavelet transform), and
// reassemble a Volume from the surviving tiles.
//
// Grounded on jpeg2000/decoder.go's parse → per-tile
// dequantize/inverse-transform → component reassembly pipeline shape,
// and jpeg2000/roi.go/roi_geom.go for the ROI clamp-and-skip contract;
// the tolerant partial-result model (IsPartial/Warnings instead of a
// fail-fast error) replaces exception-style Parser errors with an
// explicit result type.
package decode

import (
	"log/slog"

	"github.com/cocosip/go-jp3d/wavelet"
)

// Options configures a Decoder.
type Options struct {
	// TolerateErrors, when true, downgrades a per-tile parse/decode
	// failure to a warning and a zero-filled tile instead of aborting
	// the whole decode (spec §7 propagation policy).
	TolerateErrors bool
	// Logger receives decode warnings; defaults to slog.Default() when nil.
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// DefaultOptions returns fail-fast (non-tolerant) options.
func DefaultOptions() Options {
	return Options{}
}

func filterFromWire(f uint8) wavelet.Filter {
	if f == 1 {
		return wavelet.Filter53
	}
	return wavelet.Filter97
}

