package codestream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleCodestream(htj2k bool) *Codestream {
	cs := &Codestream{
		SIZ: SIZSegment{
			Profile: 0, Width: 16, Height: 16, Depth: 8,
			TileWidth: 8, TileHeight: 8, TileDepth: 4,
			Components: []ComponentSize{{BitDepth: 12, Signed: false, SubX: 1, SubY: 1, SubZ: 1}},
		},
		COD: CODSegment{
			ProgressionOrder: ProgressionLRCPS, Layers: 3,
			LevelsX: 2, LevelsY: 2, LevelsZ: 1,
			Filter: FilterReversible53,
		},
		QCD: QCDSegment{Style: 0, GuardBits: 2},
		Tiles: []TilePart{
			{TileIndex: 0, Data: []byte{1, 2, 3, 4}},
			{TileIndex: 1, Data: []byte{5, 6, 7}},
		},
	}
	if htj2k {
		cs.CAP = &CAPSegment{AllowMixedTiles: true}
		cs.CPF = &CPFSegment{ProfileTag: 1}
		cs.Tiles[0].IsHT = true
	}
	return cs
}

func TestBuildParseRoundTripPrefixSuffix(t *testing.T) {
	cs := sampleCodestream(false)
	data, err := Build(cs)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), 4)
	require.Equal(t, byte(0xFF), data[0])
	require.Equal(t, byte(0x4F), data[1])
	require.Equal(t, byte(0xFF), data[len(data)-2])
	require.Equal(t, byte(0xD9), data[len(data)-1])

	parsed, err := Parse(data, false)
	require.NoError(t, err)
	require.False(t, parsed.IsPartial)
	require.Equal(t, cs.SIZ.Width, parsed.SIZ.Width)
	require.Equal(t, cs.SIZ.Depth, parsed.SIZ.Depth)
	require.Len(t, parsed.Tiles, 2)
	require.Equal(t, []byte{1, 2, 3, 4}, parsed.Tiles[0].Data)
	require.False(t, parsed.ContainsHTJ2KTiles)
}

func TestBuildParseHTJ2KDetection(t *testing.T) {
	cs := sampleCodestream(true)
	data, err := Build(cs)
	require.NoError(t, err)

	parsed, err := Parse(data, false)
	require.NoError(t, err)
	require.True(t, parsed.ContainsHTJ2KTiles)
	require.True(t, parsed.IsHybridHTJ2K) // tile 0 is HT, tile 1 is legacy
	require.NotNil(t, parsed.CAP)
	require.True(t, parsed.CAP.AllowMixedTiles)
}

func TestBuildParseQCCOverrideRoundTrips(t *testing.T) {
	cs := sampleCodestream(false)
	cs.QCC = map[uint16]*QCCSegment{
		1: {ComponentIndex: 1, Style: 2, GuardBits: 3, StepSizes: []uint16{0x1234, 0x5678}},
	}
	data, err := Build(cs)
	require.NoError(t, err)

	parsed, err := Parse(data, false)
	require.NoError(t, err)
	require.False(t, parsed.IsPartial)
	require.Contains(t, parsed.QCC, uint16(1))
	require.Equal(t, uint8(2), parsed.QCC[1].Style)
	require.Equal(t, uint8(3), parsed.QCC[1].GuardBits)
	require.Equal(t, []uint16{0x1234, 0x5678}, parsed.QCC[1].StepSizes)

	// Component 0 has no override and falls back to the default QCD;
	// component 1 resolves to the QCC override.
	require.Equal(t, parsed.QCD, parsed.ComponentQCD(0))
	require.Equal(t, uint8(2), parsed.ComponentQCD(1).Style)
	require.Equal(t, uint8(3), parsed.ComponentQCD(1).GuardBits)
}

func TestParseRejectsEmptyInput(t *testing.T) {
	_, err := Parse(nil, true)
	require.Error(t, err)
}

func TestParseRejectsMissingSOC(t *testing.T) {
	_, err := Parse([]byte{0x00, 0x01, 0x02, 0x03}, true)
	require.Error(t, err)
}

func TestParseTileGridMatchesSIZAndCOD(t *testing.T) {
	cs := sampleCodestream(false)
	data, err := Build(cs)
	require.NoError(t, err)
	parsed, err := Parse(data, false)
	require.NoError(t, err)
	require.Equal(t, 2, parsed.TileGridX)
	require.Equal(t, 2, parsed.TileGridY)
	require.Equal(t, 2, parsed.TileGridZ)
}

func TestParseToleratesTruncatedTileAndSetsPartial(t *testing.T) {
	cs := sampleCodestream(false)
	data, err := Build(cs)
	require.NoError(t, err)
	truncated := data[:len(data)-5] // cut off before EOC, mid-tile

	parsed, err := Parse(truncated, true)
	require.NoError(t, err)
	require.True(t, parsed.IsPartial)
	require.NotEmpty(t, parsed.Warnings)
}

func TestQuantizationStepEncodeDecodeApproximatelyRoundTrips(t *testing.T) {
	for _, step := range []float64{1.0, 0.5, 2.3, 10.0} {
		enc := EncodeStepSize(step, 12)
		dec := DecodeStepSize(enc, 12)
		require.InDelta(t, step, dec, step*0.01+0.01)
	}
}
