// Package htj2k implements the alternative per-tile block coder
// (ISO/IEC 15444-15, "High-Throughput JPEG 2000"): encode_tile/
// decode_tile plus adaptive mode selection between a raw legacy
// payload and a simplified HT bitplane payload.
//
// Grounded on this codebase's jpeg2000/htj2k package, which wraps the
// same encode/decode contract around its T1/T2 entropy coder and
// exposes Lossless/LosslessRPCL/lossy variants selected by a
// transfer-syntax-bound Codec type (jpeg2000/htj2k/codec.go). That
// codec's DICOM transfer-syntax plumbing is out of this
// specification's scope (§1 Non-goals exclude the go-dicom
// dependency entirely); what this package keeps is this codebase's
// idea of a mode byte selecting between coding strategies and a
// small fixed tile-info header ahead of the coded payload.
package htj2k

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// Mode selects the per-tile coding strategy.
type Mode uint8

const (
	// ModeLegacy stores coefficients as raw little-endian int32.
	ModeLegacy Mode = 0x00
	// ModeHT applies the simplified Part-15 bitplane scheme.
	ModeHT Mode = 0x01
)

// Config controls the HT bitplane coder.
type Config struct {
	// PassCount bounds how many of the most-significant bitplanes are
	// explicitly coded when CleanupPassEnabled is false; lower-order
	// bits are truncated (a lossy throughput/precision tradeoff).
	PassCount int
	// CleanupPassEnabled forces every bitplane down to the LSB to be
	// coded, making the HT path lossless regardless of PassCount.
	CleanupPassEnabled bool
	// ForceMode, if non-nil, disables adaptive mode selection.
	ForceMode *Mode
}

const headerLen = 8 // mode(1) + tile-info tail(3) + ZBP word(4)

// EncodeTile produces [mode_byte, 3-byte tile-info tail, 4-byte ZBP
// word, payload] for one tile's quantized coefficients.
func EncodeTile(coeffs []int32, cfg Config) []byte {
	mode := selectMode(coeffs, cfg)

	maxAbs := uint32(0)
	for _, c := range coeffs {
		a := absInt32(c)
		if a > maxAbs {
			maxAbs = a
		}
	}
	bitWidth := bits.Len32(maxAbs)
	zbp := uint32(32 - bitWidth)

	header := make([]byte, headerLen)
	header[0] = byte(mode)
	header[1] = byte(cfg.PassCount)
	if cfg.CleanupPassEnabled {
		header[2] = 1
	}
	header[3] = 0
	binary.BigEndian.PutUint32(header[4:8], zbp)

	var payload []byte
	if mode == ModeLegacy {
		payload = encodeLegacy(coeffs)
	} else {
		payload = encodeHT(coeffs, bitWidth, numPlanes(cfg, bitWidth))
	}

	out := make([]byte, 0, len(header)+len(payload))
	out = append(out, header...)
	out = append(out, payload...)
	return out
}

// DecodeTile inverts EncodeTile, returning expectedVoxels samples and
// the number of bytes consumed from data — callers that concatenate
// several tiles' worth of encoded bytes (one per component) use
// consumed to locate the next tile's header.
func DecodeTile(data []byte, expectedVoxels int) (samples []float32, consumed int, err error) {
	if len(data) < headerLen {
		return nil, 0, fmt.Errorf("htj2k: truncated tile payload: need at least %d header bytes, got %d", headerLen, len(data))
	}
	mode := Mode(data[0])
	passCount := int(data[1])
	cleanupEnabled := data[2] != 0
	zbp := binary.BigEndian.Uint32(data[4:8])
	bitWidth := 32 - int(zbp)
	if bitWidth < 0 {
		bitWidth = 0
	}
	payload := data[headerLen:]

	switch mode {
	case ModeLegacy:
		n := 4 * expectedVoxels
		if len(payload) < n {
			return nil, 0, fmt.Errorf("htj2k: legacy payload shorter than expected %d voxels", expectedVoxels)
		}
		samples, err = decodeLegacy(payload[:n], expectedVoxels)
		return samples, headerLen + n, err
	case ModeHT:
		cfg := Config{PassCount: passCount, CleanupPassEnabled: cleanupEnabled}
		planes := numPlanes(cfg, bitWidth)
		rowBytes := bytesForBits(expectedVoxels)
		n := rowBytes * (1 + planes)
		if len(payload) < n {
			return nil, 0, fmt.Errorf("htj2k: HT payload shorter than required %d bytes", n)
		}
		samples, err = decodeHT(payload[:n], expectedVoxels, bitWidth, planes)
		return samples, headerLen + n, err
	default:
		return nil, 0, fmt.Errorf("htj2k: unknown tile mode byte 0x%02X", mode)
	}
}

func selectMode(coeffs []int32, cfg Config) Mode {
	if cfg.ForceMode != nil {
		return *cfg.ForceMode
	}
	if len(coeffs) == 0 {
		return ModeLegacy
	}
	nonZero := 0
	for _, c := range coeffs {
		if c != 0 {
			nonZero++
		}
	}
	density := float64(nonZero) / float64(len(coeffs))
	if density > 0.25 {
		return ModeHT
	}
	return ModeLegacy
}

func numPlanes(cfg Config, bitWidth int) int {
	if cfg.CleanupPassEnabled {
		return bitWidth
	}
	n := cfg.PassCount
	if n <= 0 {
		n = bitWidth
	}
	if n > bitWidth {
		n = bitWidth
	}
	return n
}

func absInt32(v int32) uint32 {
	if v < 0 {
		return uint32(-v)
	}
	return uint32(v)
}

func encodeLegacy(coeffs []int32) []byte {
	out := make([]byte, 4*len(coeffs))
	for i, c := range coeffs {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(c))
	}
	return out
}

func decodeLegacy(payload []byte, expectedVoxels int) ([]float32, error) {
	if len(payload) != 4*expectedVoxels {
		return nil, fmt.Errorf("htj2k: legacy payload length %d does not match expected %d voxels", len(payload), expectedVoxels)
	}
	out := make([]float32, expectedVoxels)
	for i := range out {
		out[i] = float32(int32(binary.LittleEndian.Uint32(payload[i*4:])))
	}
	return out, nil
}

func bytesForBits(n int) int { return (n + 7) / 8 }

func encodeHT(coeffs []int32, bitWidth, planes int) []byte {
	n := len(coeffs)
	rowBytes := bytesForBits(n)
	out := make([]byte, rowBytes*(1+planes))

	signRow := out[0:rowBytes]
	for i, c := range coeffs {
		if c < 0 {
			signRow[i/8] |= 1 << uint(7-i%8)
		}
	}

	for p := 0; p < planes; p++ {
		bitPos := bitWidth - 1 - p
		row := out[rowBytes*(1+p) : rowBytes*(2+p)]
		for i, c := range coeffs {
			a := absInt32(c)
			if bitPos >= 0 && (a>>uint(bitPos))&1 != 0 {
				row[i/8] |= 1 << uint(7-i%8)
			}
		}
	}
	return out
}

func decodeHT(payload []byte, expectedVoxels, bitWidth, planes int) ([]float32, error) {
	rowBytes := bytesForBits(expectedVoxels)
	need := rowBytes * (1 + planes)
	if len(payload) < need {
		return nil, fmt.Errorf("htj2k: HT payload length %d shorter than required %d", len(payload), need)
	}
	signRow := payload[0:rowBytes]
	mags := make([]uint32, expectedVoxels)
	for p := 0; p < planes; p++ {
		bitPos := bitWidth - 1 - p
		row := payload[rowBytes*(1+p) : rowBytes*(2+p)]
		for i := 0; i < expectedVoxels; i++ {
			if row[i/8]&(1<<uint(7-i%8)) != 0 {
				mags[i] |= 1 << uint(bitPos)
			}
		}
	}
	out := make([]float32, expectedVoxels)
	for i := range out {
		v := float32(mags[i])
		if signRow[i/8]&(1<<uint(7-i%8)) != 0 {
			v = -v
		}
		out[i] = v
	}
	return out, nil
}
