// Package container implements the minimal JP2/JPX/JPM/MJ2 box layer
// this module must emit or consume at its boundary: the full box zoo
// is treated as an external collaborator reached through a narrow
// interface, and this package is that interface, not a conformant
// ISO Base Media File Format implementation.
//
// Built around a single tagged union of box variants with a central
// read/write pair that dispatches on the tag, and an Unknown/Raw
// variant so the reader stays tolerant of box types it does not
// model. The box header framing (4-byte big-endian length or the
// extended 1+8-byte form, followed by a 4-byte ASCII type) mirrors the
// codestream package's big-endian marker framing in this same module.
package container

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cocosip/go-jp3d"
)

// Type is a 4-byte ASCII box type code.
type Type [4]byte

func (t Type) String() string { return string(t[:]) }

var (
	TypeSignature Type = [4]byte{'j', 'P', ' ', ' '}
	TypeFileType  Type = [4]byte{'f', 't', 'y', 'p'}
	TypeJP2Header Type = [4]byte{'j', 'p', '2', 'h'}
	TypeImageHeader Type = [4]byte{'i', 'h', 'd', 'r'}
	TypeMJP2      Type = [4]byte{'m', 'j', 'p', '2'}
)

// signaturePayload is the fixed 4-byte payload of the JP2 signature
// box.
var signaturePayload = [4]byte{0x0D, 0x0A, 0x87, 0x0A}

// Brand is a 4-byte ASCII compatibility brand.
type Brand [4]byte

func (b Brand) String() string { return string(b[:]) }

var (
	BrandJP2  Brand = [4]byte{'j', 'p', '2', ' '}
	BrandJPX  Brand = [4]byte{'j', 'p', 'x', ' '}
	BrandJPM  Brand = [4]byte{'j', 'p', 'm', ' '}
	BrandJPH  Brand = [4]byte{'j', 'p', 'h', ' '}
	BrandMJP2 Brand = [4]byte{'m', 'j', 'p', '2'}
	BrandMJ2S Brand = [4]byte{'m', 'j', '2', 's'}
)

// Box is a tagged union over the narrow set of box variants this
// module reads or writes. Exactly one of the typed fields is set,
// selected by Kind; an unrecognized box type is carried in Raw so the
// reader remains tolerant of box types outside this module's scope.
type Box struct {
	Kind Type

	FileType     *FileTypeBox
	ImageHeader  *ImageHeaderBox
	MJP2Sample   *MJP2SampleBox
	Raw          *RawBox
}

// FileTypeBox is the `ftyp` box: a major brand plus compatibility list.
type FileTypeBox struct {
	MajorBrand       Brand
	MinorVersion     uint32
	CompatibleBrands []Brand
}

// ImageHeaderBox is the `ihdr` box nested inside `jp2h`.
type ImageHeaderBox struct {
	Height, Width      uint32
	NumComponents      uint16
	BitsPerComponent   uint8 // high bit set when signed
	Compression        uint8
	ColorspaceUnknown  bool
	IntellectualProperty bool
}

// Signed reports whether BitsPerComponent's high bit marks signed
// samples, mirroring Component.Signed.
func (h ImageHeaderBox) Signed() bool { return h.BitsPerComponent&0x80 != 0 }

// Depth returns the unsigned bit depth encoded in BitsPerComponent.
func (h ImageHeaderBox) Depth() int { return int(h.BitsPerComponent&0x7F) + 1 }

// MJP2SampleBox is the minimal `mjp2` sample entry this module
// produces for a Motion JPEG 2000 track: one frame per codestream.
type MJP2SampleBox struct {
	Width, Height, Depth uint32
	FrameCount           uint32
}

// RawBox carries a box type this package does not model, so readers
// stay tolerant of a container's full (out-of-scope) box zoo.
type RawBox struct {
	Bytes []byte
}

// ImageHeaderFromComponent builds an ImageHeaderBox describing a
// single-component slice of vol, for emission inside a jp2h box.
func ImageHeaderFromComponent(vol *jp3d.Volume, componentIdx int) (ImageHeaderBox, error) {
	if vol == nil || componentIdx < 0 || componentIdx >= len(vol.Components) {
		return ImageHeaderBox{}, jp3d.NewError(jp3d.KindInvalidParameter, "component index out of range")
	}
	c := vol.Components[componentIdx]
	bpc := uint8(c.BitDepth - 1)
	if c.Signed {
		bpc |= 0x80
	}
	return ImageHeaderBox{
		Height: uint32(vol.Height), Width: uint32(vol.Width),
		NumComponents: uint16(len(vol.Components)),
		BitsPerComponent: bpc, Compression: 7,
		ColorspaceUnknown: true,
	}, nil
}

// readHeader reads a box header: 4-byte length (or the 1+8-byte
// extended form), followed by a 4-byte type. It returns the payload
// length (excluding the header itself) and the type.
func readHeader(r io.Reader) (payloadLen int64, typ Type, err error) {
	var hdr [8]byte
	if _, err = io.ReadFull(r, hdr[:]); err != nil {
		return 0, Type{}, fmt.Errorf("container: read box header: %w", err)
	}
	length := binary.BigEndian.Uint32(hdr[0:4])
	copy(typ[:], hdr[4:8])

	headerLen := int64(8)
	total := int64(length)
	if length == 1 {
		var ext [8]byte
		if _, err = io.ReadFull(r, ext[:]); err != nil {
			return 0, Type{}, fmt.Errorf("container: read extended box length: %w", err)
		}
		total = int64(binary.BigEndian.Uint64(ext[:]))
		headerLen += 8
	}
	if total < headerLen {
		return 0, Type{}, jp3d.NewError(jp3d.KindCorrupted, "box length shorter than its own header")
	}
	return total - headerLen, typ, nil
}

// writeHeader writes a standard (non-extended) 8-byte box header for
// a payload of payloadLen bytes.
func writeHeader(w io.Writer, typ Type, payloadLen int) error {
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(payloadLen+8))
	copy(hdr[4:8], typ[:])
	_, err := w.Write(hdr[:])
	return err
}
