package codestream

import (
	"math"
	"math/bits"
)

// EncodeStepSize packs a floating-point quantization step into the
// 16-bit exponent(5)/mantissa(11) format the QCD segment carries,
// exactly as this codebase's jpeg2000/quantization.go
// encodeQuantizationStep does.
func EncodeStepSize(stepSize float64, bitDepth int) uint16 {
	if stepSize <= 0 {
		return 0
	}
	fixed := int32(math.Floor(stepSize * 8192.0))
	if fixed <= 0 {
		fixed = 1
	}
	log2 := bits.Len32(uint32(fixed)) - 1
	p := log2 - 13
	n := 11 - log2
	var mant int32
	if n < 0 {
		mant = fixed >> uint(-n)
	} else {
		mant = fixed << uint(n)
	}
	mant &= 0x7ff
	expn := bitDepth - p
	if expn < 0 {
		expn = 0
	}
	if expn > 0x1f {
		expn = 0x1f
	}
	return uint16((expn << 11) | int(mant))
}

// DecodeStepSize reverses EncodeStepSize.
func DecodeStepSize(encoded uint16, bitDepth int) float64 {
	expn := int((encoded >> 11) & 0x1f)
	mant := float64(encoded & 0x7ff)
	return math.Ldexp(1.0+mant/2048.0, bitDepth-expn)
}
