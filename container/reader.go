package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cocosip/go-jp3d"
)

// ParsedContainer is the narrow view this module needs of a JP2-family
// file: its brand, image header (when present), and the codestream
// bytes found inside the first jp2c-equivalent contiguous region.
type ParsedContainer struct {
	FileType    FileTypeBox
	ImageHeader *ImageHeaderBox
	MJP2Sample  *MJP2SampleBox
	Codestream  []byte
	Boxes       []Box
}

// Parse reads a JP2-family box stream: the signature box, ftyp, and
// then a flat sequence of top-level boxes. It does not attempt to
// parse JPX/JPM's superbox nesting beyond jp2h/ihdr and a flat mjp2
// sample entry, per this package's narrow scope.
func Parse(data []byte) (*ParsedContainer, error) {
	r := bytes.NewReader(data)

	sigLen, sigType, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if sigType != TypeSignature || sigLen != 4 {
		return nil, jp3d.NewError(jp3d.KindParseError, "missing JP2 signature box")
	}
	var payload [4]byte
	if _, err := io.ReadFull(r, payload[:]); err != nil {
		return nil, fmt.Errorf("container: read signature payload: %w", err)
	}
	if payload != signaturePayload {
		return nil, jp3d.NewError(jp3d.KindCorrupted, "signature box payload mismatch")
	}

	out := &ParsedContainer{}
	for r.Len() > 0 {
		boxLen, typ, err := readHeader(r)
		if err != nil {
			return nil, err
		}
		if boxLen < 0 || int64(r.Len()) < boxLen {
			return nil, jp3d.NewError(jp3d.KindTruncated, "box payload extends past end of input")
		}
		payload := make([]byte, boxLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("container: read box payload: %w", err)
		}

		box, err := decodeBox(typ, payload, out)
		if err != nil {
			return nil, err
		}
		out.Boxes = append(out.Boxes, box)
	}
	return out, nil
}

func decodeBox(typ Type, payload []byte, out *ParsedContainer) (Box, error) {
	switch typ {
	case TypeFileType:
		ft, err := decodeFileType(payload)
		if err != nil {
			return Box{}, err
		}
		out.FileType = ft
		return Box{Kind: typ, FileType: &ft}, nil
	case TypeJP2Header:
		ihdr, err := decodeJP2Header(payload)
		if err != nil {
			return Box{}, err
		}
		out.ImageHeader = &ihdr
		return Box{Kind: typ, ImageHeader: &ihdr}, nil
	case TypeMJP2:
		sample, err := decodeMJP2Sample(payload)
		if err != nil {
			return Box{}, err
		}
		out.MJP2Sample = &sample
		return Box{Kind: typ, MJP2Sample: &sample}, nil
	default:
		if typ == (Type{'j', 'p', '2', 'c'}) {
			out.Codestream = payload
		}
		return Box{Kind: typ, Raw: &RawBox{Bytes: payload}}, nil
	}
}

func decodeFileType(payload []byte) (FileTypeBox, error) {
	if len(payload) < 8 || (len(payload)-8)%4 != 0 {
		return FileTypeBox{}, jp3d.NewError(jp3d.KindCorrupted, "malformed ftyp box")
	}
	var ft FileTypeBox
	copy(ft.MajorBrand[:], payload[0:4])
	ft.MinorVersion = binary.BigEndian.Uint32(payload[4:8])
	for i := 8; i+4 <= len(payload); i += 4 {
		var b Brand
		copy(b[:], payload[i:i+4])
		ft.CompatibleBrands = append(ft.CompatibleBrands, b)
	}
	return ft, nil
}

// decodeJP2Header looks for an ihdr box nested directly inside a jp2h
// superbox's payload — the only nesting this package understands.
func decodeJP2Header(jp2hPayload []byte) (ImageHeaderBox, error) {
	r := bytes.NewReader(jp2hPayload)
	for r.Len() > 0 {
		boxLen, typ, err := readHeader(r)
		if err != nil {
			return ImageHeaderBox{}, err
		}
		payload := make([]byte, boxLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return ImageHeaderBox{}, fmt.Errorf("container: read ihdr payload: %w", err)
		}
		if typ != TypeImageHeader {
			continue
		}
		if len(payload) < 14 {
			return ImageHeaderBox{}, jp3d.NewError(jp3d.KindCorrupted, "malformed ihdr box")
		}
		return ImageHeaderBox{
			Height: binary.BigEndian.Uint32(payload[0:4]),
			Width:  binary.BigEndian.Uint32(payload[4:8]),
			NumComponents: binary.BigEndian.Uint16(payload[8:10]),
			BitsPerComponent: payload[10],
			Compression:      payload[11],
			ColorspaceUnknown: payload[12] != 0,
			IntellectualProperty: payload[13] != 0,
		}, nil
	}
	return ImageHeaderBox{}, jp3d.NewError(jp3d.KindParseError, "jp2h does not contain an ihdr box")
}

func decodeMJP2Sample(payload []byte) (MJP2SampleBox, error) {
	if len(payload) < 16 {
		return MJP2SampleBox{}, jp3d.NewError(jp3d.KindCorrupted, "malformed mjp2 sample entry")
	}
	return MJP2SampleBox{
		Width:      binary.BigEndian.Uint32(payload[0:4]),
		Height:     binary.BigEndian.Uint32(payload[4:8]),
		Depth:      binary.BigEndian.Uint32(payload[8:12]),
		FrameCount: binary.BigEndian.Uint32(payload[12:16]),
	}, nil
}
