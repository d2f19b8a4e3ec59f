package container

import (
	"bytes"
	"encoding/binary"

	"github.com/cocosip/go-jp3d"
)

// WriteParams configures Build's output container.
type WriteParams struct {
	Brand      Brand
	ImageHeader ImageHeaderBox
	MJP2Sample  *MJP2SampleBox // nil for a plain JP2/JPX/JPM still image
	Codestream  []byte
}

// Build emits a minimal JP2-family file: signature box, ftyp, jp2h{ihdr},
// an optional mjp2 sample entry, and the raw codestream wrapped in a
// jp2c box. It is deliberately narrow — no xml/uuid/resolution boxes,
// no JPX composition layers — per this package's scope.
func Build(p WriteParams) ([]byte, error) {
	if len(p.Codestream) == 0 {
		return nil, jp3d.NewError(jp3d.KindInvalidParameter, "empty codestream")
	}

	var buf bytes.Buffer
	writeSignature(&buf)
	if err := writeFileType(&buf, p.Brand); err != nil {
		return nil, err
	}
	if err := writeJP2Header(&buf, p.ImageHeader); err != nil {
		return nil, err
	}
	if p.MJP2Sample != nil {
		if err := writeMJP2Sample(&buf, *p.MJP2Sample); err != nil {
			return nil, err
		}
	}
	if err := writeCodestreamBox(&buf, p.Codestream); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSignature(buf *bytes.Buffer) {
	_ = writeHeader(buf, TypeSignature, len(signaturePayload))
	buf.Write(signaturePayload[:])
}

func writeFileType(buf *bytes.Buffer, brand Brand) error {
	var payload bytes.Buffer
	payload.Write(brand[:])
	var minor [4]byte
	binary.BigEndian.PutUint32(minor[:], 0)
	payload.Write(minor[:])
	// Compatibility list always includes the major brand and the
	// baseline jp2 brand, matching this codebase's general
	// preference for a minimal-but-valid compatibility set.
	payload.Write(brand[:])
	if brand != BrandJP2 {
		payload.Write(BrandJP2[:])
	}
	if err := writeHeader(buf, TypeFileType, payload.Len()); err != nil {
		return err
	}
	_, err := buf.Write(payload.Bytes())
	return err
}

func writeJP2Header(buf *bytes.Buffer, ihdr ImageHeaderBox) error {
	var inner bytes.Buffer
	var ihdrPayload [14]byte
	binary.BigEndian.PutUint32(ihdrPayload[0:4], ihdr.Height)
	binary.BigEndian.PutUint32(ihdrPayload[4:8], ihdr.Width)
	binary.BigEndian.PutUint16(ihdrPayload[8:10], ihdr.NumComponents)
	ihdrPayload[10] = ihdr.BitsPerComponent
	ihdrPayload[11] = ihdr.Compression
	if ihdr.ColorspaceUnknown {
		ihdrPayload[12] = 1
	}
	if ihdr.IntellectualProperty {
		ihdrPayload[13] = 1
	}
	if err := writeHeader(&inner, TypeImageHeader, len(ihdrPayload)); err != nil {
		return err
	}
	inner.Write(ihdrPayload[:])

	if err := writeHeader(buf, TypeJP2Header, inner.Len()); err != nil {
		return err
	}
	_, err := buf.Write(inner.Bytes())
	return err
}

func writeMJP2Sample(buf *bytes.Buffer, s MJP2SampleBox) error {
	var payload [16]byte
	binary.BigEndian.PutUint32(payload[0:4], s.Width)
	binary.BigEndian.PutUint32(payload[4:8], s.Height)
	binary.BigEndian.PutUint32(payload[8:12], s.Depth)
	binary.BigEndian.PutUint32(payload[12:16], s.FrameCount)
	if err := writeHeader(buf, TypeMJP2, len(payload)); err != nil {
		return err
	}
	_, err := buf.Write(payload[:])
	return err
}

func writeCodestreamBox(buf *bytes.Buffer, codestream []byte) error {
	jp2c := Type{'j', 'p', '2', 'c'}
	if err := writeHeader(buf, jp2c, len(codestream)); err != nil {
		return err
	}
	_, err := buf.Write(codestream)
	return err
}
