package container

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-jp3d"
)

func TestBuildEmitsSignatureBoxFirst(t *testing.T) {
	out, err := Build(WriteParams{
		Brand:      BrandJP2,
		ImageHeader: ImageHeaderBox{Height: 16, Width: 16, NumComponents: 1, BitsPerComponent: 7, Compression: 7, ColorspaceUnknown: true},
		Codestream: []byte{0xFF, 0x4F, 0xFF, 0xD9},
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(out), 12)
	require.Equal(t, []byte{0, 0, 0, 12}, out[0:4])
	require.Equal(t, "jP  ", string(out[4:8]))
	require.Equal(t, signaturePayload[:], out[8:12])
}

func TestBuildRejectsEmptyCodestream(t *testing.T) {
	_, err := Build(WriteParams{Brand: BrandJP2, Codestream: nil})
	require.Error(t, err)
	var jerr *jp3d.Error
	require.ErrorAs(t, err, &jerr)
	require.Equal(t, jp3d.KindInvalidParameter, jerr.Kind)
}

func TestRoundTripJP2(t *testing.T) {
	cs := []byte{0xFF, 0x4F, 0x01, 0x02, 0x03, 0xFF, 0xD9}
	out, err := Build(WriteParams{
		Brand: BrandJP2,
		ImageHeader: ImageHeaderBox{
			Height: 64, Width: 32, NumComponents: 3,
			BitsPerComponent: 7, Compression: 7, ColorspaceUnknown: true,
		},
		Codestream: cs,
	})
	require.NoError(t, err)

	parsed, err := Parse(out)
	require.NoError(t, err)
	require.Equal(t, BrandJP2, parsed.FileType.MajorBrand)
	require.NotNil(t, parsed.ImageHeader)
	require.Equal(t, uint32(64), parsed.ImageHeader.Height)
	require.Equal(t, uint32(32), parsed.ImageHeader.Width)
	require.Equal(t, uint16(3), parsed.ImageHeader.NumComponents)
	require.False(t, parsed.ImageHeader.Signed())
	require.Equal(t, 8, parsed.ImageHeader.Depth())
	require.Equal(t, cs, parsed.Codestream)
}

func TestRoundTripMJ2WithSampleEntry(t *testing.T) {
	sample := MJP2SampleBox{Width: 1920, Height: 1080, Depth: 1, FrameCount: 1}
	out, err := Build(WriteParams{
		Brand: BrandMJP2,
		ImageHeader: ImageHeaderBox{Height: 1080, Width: 1920, NumComponents: 3, BitsPerComponent: 7, Compression: 7},
		MJP2Sample: &sample,
		Codestream: []byte{0xFF, 0x4F, 0xFF, 0xD9},
	})
	require.NoError(t, err)

	parsed, err := Parse(out)
	require.NoError(t, err)
	require.Equal(t, BrandMJP2, parsed.FileType.MajorBrand)
	require.NotNil(t, parsed.MJP2Sample)
	require.Equal(t, uint32(1920), parsed.MJP2Sample.Width)
	require.Equal(t, uint32(1), parsed.MJP2Sample.FrameCount)
}

func TestParseRejectsMissingSignature(t *testing.T) {
	_, err := Parse([]byte{0, 0, 0, 8, 'f', 't', 'y', 'p'})
	require.Error(t, err)
}

func TestParseRejectsTruncatedBox(t *testing.T) {
	// Valid signature box followed by a box claiming more payload than
	// is actually present.
	var buf []byte
	buf = append(buf, 0, 0, 0, 12)
	buf = append(buf, 'j', 'P', ' ', ' ')
	buf = append(buf, signaturePayload[:]...)
	buf = append(buf, 0, 0, 0, 100, 'f', 't', 'y', 'p')
	_, err := Parse(buf)
	require.Error(t, err)
}

func TestImageHeaderFromComponentSignedBitDepth(t *testing.T) {
	comp := jp3d.NewComponent(0, 4, 4, 2, 12, true, 1, 1, 1)
	vol, err := jp3d.NewVolume(4, 4, 2, []*jp3d.Component{comp})
	require.NoError(t, err)

	ihdr, err := ImageHeaderFromComponent(vol, 0)
	require.NoError(t, err)
	require.True(t, ihdr.Signed())
	require.Equal(t, 12, ihdr.Depth())
}

func TestImageHeaderFromComponentRejectsOutOfRange(t *testing.T) {
	comp := jp3d.NewComponent(0, 4, 4, 2, 8, false, 1, 1, 1)
	vol, err := jp3d.NewVolume(4, 4, 2, []*jp3d.Component{comp})
	require.NoError(t, err)

	_, err = ImageHeaderFromComponent(vol, 5)
	require.Error(t, err)
}
