// Package quantize implements the rate controller: deriving a
// quantization step size from a compression mode, applying scalar
// quantization/dequantization to wavelet coefficients, and
// partitioning a coded stream into non-decreasing quality-layer
// bitrate targets.
//
// The step-size/quantize/dequantize functions are grounded on the
// teacher's jpeg2000/quantization.go (QuantizeCoefficients,
// DequantizeCoefficients, round-to-even scaling matching OpenJPEG's
// lrintf), generalized from a single quality percentage to the full
// set of compression modes this codec exposes.
package quantize

import "math"

// CompressionMode selects which rate-control policy StepSize applies.
type CompressionMode int

const (
	// ModeLossless uses the reversible 5/3 kernel with step 1.0.
	ModeLossless CompressionMode = iota
	// ModeLosslessHTJ2K uses the HTJ2K block coder losslessly, also step 1.0.
	ModeLosslessHTJ2K
	// ModeLossy targets a PSNR with the irreversible 9/7 kernel.
	ModeLossy
	// ModeVisuallyLossless targets a fixed high PSNR suitable for
	// perceptually lossless viewing.
	ModeVisuallyLossless
	// ModeLossyHTJ2K targets a PSNR using the HTJ2K block coder.
	ModeLossyHTJ2K
	// ModeTargetBitrate targets an overall bits-per-voxel budget.
	ModeTargetBitrate
)

// Params configures the rate controller for one encode.
type Params struct {
	Mode CompressionMode
	// PSNR is consulted for ModeLossy, ModeVisuallyLossless and
	// ModeLossyHTJ2K, in decibels.
	PSNR float64
	// TargetBPV is consulted for ModeTargetBitrate, in bits per voxel.
	TargetBPV float64
}

// IsLossless reports whether this mode always quantizes with step 1.0.
func (p Params) IsLossless() bool {
	return p.Mode == ModeLossless || p.Mode == ModeLosslessHTJ2K
}

// UsesHTJ2K reports whether the configured mode is one of the HTJ2K
// modes (ModeLosslessHTJ2K, ModeLossyHTJ2K).
func (p Params) UsesHTJ2K() bool {
	return p.Mode == ModeLosslessHTJ2K || p.Mode == ModeLossyHTJ2K
}

// StepSize returns the quantization step size for a subband at the
// given decomposition depth, numbered as wavelet.SubbandDepth numbers
// it: 0 = the final LLL band, 1 = the detail bands of the first
// (finest-scale) level, and larger values = the detail bands of later,
// coarser-scale levels.
//
// Per the rate-control contract: Lossless and LosslessHTJ2K always
// return 1.0. The PSNR-driven modes return a step >= 1.0 that
// increases with decomposition depth (deeper subbands tolerate
// coarser quantization without visible error) and decreases as the
// requested PSNR rises. TargetBitrate returns a step >= 1.0 derived
// from the requested bits-per-voxel budget alone; the encoder uses it
// as is and does not adjust it against the measured output size.
func StepSize(p Params, depth int) float64 {
	if p.IsLossless() {
		return 1.0
	}
	if depth < 0 {
		depth = 0
	}
	switch p.Mode {
	case ModeTargetBitrate:
		return targetBitrateStep(p.TargetBPV, depth)
	default: // ModeLossy, ModeVisuallyLossless, ModeLossyHTJ2K
		psnr := p.PSNR
		if p.Mode == ModeVisuallyLossless {
			psnr = 68.0
		}
		return psnrStep(psnr, depth)
	}
}

// psnrStep maps a target PSNR and decomposition depth to a step size.
// Grounded on this codebase's qualityScale (an exponential mapping from
// a 1-100 quality percentage to a step-size multiplier); reparameterized
// directly in PSNR decibels since this codec's mode surface is
// PSNR-driven rather than quality-percentage-driven.
func psnrStep(psnr float64, depth int) float64 {
	if psnr <= 0 {
		psnr = 1
	}
	base := math.Pow(2.0, (96.0-psnr)/12.0)
	if base < 0.01 {
		base = 0.01
	}
	depthFactor := 1.0 + 0.2*float64(depth)
	step := base * depthFactor
	if step < 1.0 {
		step = 1.0
	}
	return step
}

// targetBitrateStep derives a step from a bits-per-voxel budget;
// lower budgets (fewer bits) give a larger step. The result is not
// adjusted against the measured output size.
func targetBitrateStep(bpv float64, depth int) float64 {
	if bpv <= 0 {
		bpv = 0.1
	}
	base := 16.0 / bpv
	depthFactor := 1.0 + 0.2*float64(depth)
	step := base * depthFactor
	if step < 1.0 {
		step = 1.0
	}
	return step
}

// Quantize rounds coefficients to integer indices using round-to-even
// division by step, matching OpenJPEG's lrintf rounding mode.
func Quantize(coeffs []float64, step float64) []int32 {
	out := make([]int32, len(coeffs))
	for i, c := range coeffs {
		out[i] = QuantizeScalar(c, step)
	}
	return out
}

// QuantizeScalar rounds a single coefficient to a round-to-even index.
func QuantizeScalar(coeff, step float64) int32 {
	if step <= 0 {
		step = 1
	}
	return int32(math.RoundToEven(coeff / step))
}

// Dequantize reverses Quantize: exact multiplication of each index by step.
func Dequantize(indices []int32, step float64) []float64 {
	out := make([]float64, len(indices))
	for i, v := range indices {
		out[i] = DequantizeScalar(v, step)
	}
	return out
}

// DequantizeScalar reverses QuantizeScalar.
func DequantizeScalar(index int32, step float64) float64 {
	return float64(index) * step
}
