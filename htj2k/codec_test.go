package htj2k

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeLegacyRoundTrip(t *testing.T) {
	coeffs := []int32{1, -2, 0, 0, 0, 0, 0, 3}
	legacy := ModeLegacy
	data := EncodeTile(coeffs, Config{ForceMode: &legacy})
	require.Equal(t, byte(ModeLegacy), data[0])

	out, consumed, err := DecodeTile(data, len(coeffs))
	require.NoError(t, err)
	require.Equal(t, len(data), consumed)
	for i, c := range coeffs {
		require.Equal(t, float32(c), out[i])
	}
}

func TestEncodeDecodeHTLosslessRoundTrip(t *testing.T) {
	coeffs := []int32{5, -130, 7, 0, 255, -1, 3000, -4095}
	ht := ModeHT
	data := EncodeTile(coeffs, Config{ForceMode: &ht, CleanupPassEnabled: true})
	require.Equal(t, byte(ModeHT), data[0])

	out, consumed, err := DecodeTile(data, len(coeffs))
	require.NoError(t, err)
	require.Equal(t, len(data), consumed)
	for i, c := range coeffs {
		require.Equal(t, float32(c), out[i])
	}
}

func TestEncodeHTTruncatedPassCountIsLossyButBounded(t *testing.T) {
	coeffs := []int32{4095, -4095, 100, -100}
	ht := ModeHT
	data := EncodeTile(coeffs, Config{ForceMode: &ht, PassCount: 4, CleanupPassEnabled: false})

	out, _, err := DecodeTile(data, len(coeffs))
	require.NoError(t, err)
	for i, c := range coeffs {
		diff := float64(c) - float64(out[i])
		if diff < 0 {
			diff = -diff
		}
		require.Less(t, diff, 256.0)
	}
}

func TestAdaptiveModeSelectionByDensity(t *testing.T) {
	dense := make([]int32, 100)
	for i := range dense {
		dense[i] = int32(i + 1) // 100% nonzero
	}
	data := EncodeTile(dense, Config{CleanupPassEnabled: true})
	require.Equal(t, byte(ModeHT), data[0])

	sparse := make([]int32, 100)
	sparse[0] = 5 // 1% nonzero
	data = EncodeTile(sparse, Config{CleanupPassEnabled: true})
	require.Equal(t, byte(ModeLegacy), data[0])
}

func TestDecodeTileConcatenatedComponentsAdvanceByConsumed(t *testing.T) {
	legacy := ModeLegacy
	a := EncodeTile([]int32{1, 2, 3, 4}, Config{ForceMode: &legacy})
	b := EncodeTile([]int32{-5, -6, -7, -8}, Config{ForceMode: &legacy})
	blob := append(append([]byte{}, a...), b...)

	outA, consumedA, err := DecodeTile(blob, 4)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3, 4}, outA)

	outB, _, err := DecodeTile(blob[consumedA:], 4)
	require.NoError(t, err)
	require.Equal(t, []float32{-5, -6, -7, -8}, outB)
}

func TestDecodeTileRejectsTruncatedHeader(t *testing.T) {
	_, _, err := DecodeTile([]byte{0x00, 0x01, 0x02}, 4)
	require.Error(t, err)
}

func TestDecodeTileRejectsUnknownMode(t *testing.T) {
	header := make([]byte, headerLen)
	header[0] = 0x7F
	_, _, err := DecodeTile(header, 0)
	require.Error(t, err)
}
