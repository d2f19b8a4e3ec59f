package codestream

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

// Build serializes a Codestream into the big-endian wire format
// described by this package's doc comment: SOC, SIZ, COD, QCD, one
// QCC per component override, optionally CAP/CPF, one SOT/SOD/tile-data group per tile in
// tile-index order, then EOC.
func Build(cs *Codestream) ([]byte, error) {
	if cs == nil {
		return nil, fmt.Errorf("codestream: nil Codestream")
	}
	buf := new(bytes.Buffer)

	writeU16(buf, MarkerSOC)

	if err := writeSIZ(buf, cs.SIZ); err != nil {
		return nil, err
	}
	writeCOD(buf, cs.COD)
	writeQCD(buf, cs.QCD)
	writeQCCs(buf, cs.QCC)

	if cs.CAP != nil {
		writeCAP(buf, *cs.CAP)
		cpf := CPFSegment{}
		if cs.CPF != nil {
			cpf = *cs.CPF
		}
		writeCPF(buf, cpf)
	}

	for _, tile := range cs.Tiles {
		writeTile(buf, tile)
	}

	writeU16(buf, MarkerEOC)

	return buf.Bytes(), nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	buf.Write(tmp[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

// writeMarkerSegment writes marker, then a 2-byte length (the length
// field's own 2 bytes plus the payload), then payload.
func writeMarkerSegment(buf *bytes.Buffer, marker uint16, payload []byte) {
	writeU16(buf, marker)
	writeU16(buf, uint16(len(payload)+2))
	buf.Write(payload)
}

func writeSIZ(buf *bytes.Buffer, siz SIZSegment) error {
	if len(siz.Components) == 0 {
		return fmt.Errorf("codestream: SIZ requires at least one component")
	}
	payload := new(bytes.Buffer)
	writeU16(payload, siz.Profile)
	writeU32(payload, siz.Width)
	writeU32(payload, siz.Height)
	writeU32(payload, siz.Depth)
	writeU32(payload, siz.TileWidth)
	writeU32(payload, siz.TileHeight)
	writeU32(payload, siz.TileDepth)
	writeU16(payload, uint16(len(siz.Components)))
	for _, c := range siz.Components {
		ssiz := (c.BitDepth - 1) & 0x7F
		if c.Signed {
			ssiz |= 0x80
		}
		payload.WriteByte(ssiz)
		payload.WriteByte(c.SubX)
		payload.WriteByte(c.SubY)
		payload.WriteByte(c.SubZ)
	}
	writeMarkerSegment(buf, MarkerSIZ, payload.Bytes())
	return nil
}

func writeCOD(buf *bytes.Buffer, cod CODSegment) {
	payload := []byte{
		cod.ProgressionOrder,
		byte(cod.Layers >> 8), byte(cod.Layers),
		cod.LevelsX, cod.LevelsY, cod.LevelsZ,
		cod.Filter,
		cod.TilePartFlag,
	}
	writeMarkerSegment(buf, MarkerCOD, payload)
}

func writeQCD(buf *bytes.Buffer, qcd QCDSegment) {
	payload := new(bytes.Buffer)
	sqcd := (qcd.GuardBits << 5) | (qcd.Style & 0x1F)
	payload.WriteByte(sqcd)
	for _, step := range qcd.StepSizes {
		writeU16(payload, step)
	}
	writeMarkerSegment(buf, MarkerQCD, payload.Bytes())
}

// writeQCCs emits one QCC marker segment per entry in overrides, in
// ascending component-index order so the emitted bytes are
// deterministic regardless of map iteration order.
func writeQCCs(buf *bytes.Buffer, overrides map[uint16]*QCCSegment) {
	if len(overrides) == 0 {
		return
	}
	indices := make([]int, 0, len(overrides))
	for idx := range overrides {
		indices = append(indices, int(idx))
	}
	sort.Ints(indices)
	for _, idx := range indices {
		writeQCC(buf, *overrides[uint16(idx)])
	}
}

func writeQCC(buf *bytes.Buffer, qcc QCCSegment) {
	payload := new(bytes.Buffer)
	writeU16(payload, qcc.ComponentIndex)
	sqcc := (qcc.GuardBits << 5) | (qcc.Style & 0x1F)
	payload.WriteByte(sqcc)
	for _, step := range qcc.StepSizes {
		writeU16(payload, step)
	}
	writeMarkerSegment(buf, MarkerQCC, payload.Bytes())
}

func writeCAP(buf *bytes.Buffer, cap_ CAPSegment) {
	payload := make([]byte, 8)
	var ccap15 uint16
	if cap_.AllowMixedTiles {
		ccap15 |= 0x0002
	}
	payload[6] = byte(ccap15 >> 8)
	payload[7] = byte(ccap15)
	writeMarkerSegment(buf, MarkerCAP, payload)
}

func writeCPF(buf *bytes.Buffer, cpf CPFSegment) {
	payload := []byte{cpf.ProfileTag, 0, 0, 0}
	writeMarkerSegment(buf, MarkerCPF, payload)
}

func writeTile(buf *bytes.Buffer, tile TilePart) {
	prefix := TileInfoLegacy
	if tile.IsHT {
		prefix = TileInfoHT
	}
	tileBytes := make([]byte, 0, len(tile.Data)+1)
	tileBytes = append(tileBytes, prefix)
	tileBytes = append(tileBytes, tile.Data...)

	const sotPayloadLen = 8 // Isot(2) + Psot(4) + TPsot(1) + TNsot(1)
	partLength := uint32(2 + (sotPayloadLen + 2) + 2 + len(tileBytes))

	sotPayload := new(bytes.Buffer)
	writeU16(sotPayload, tile.TileIndex)
	writeU32(sotPayload, partLength)
	sotPayload.WriteByte(tile.TPSOT)
	sotPayload.WriteByte(tile.TNSOT)
	writeMarkerSegment(buf, MarkerSOT, sotPayload.Bytes())

	writeU16(buf, MarkerSOD)
	buf.Write(tileBytes)
}
