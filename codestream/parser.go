package codestream

import (
	"encoding/binary"
	"fmt"
)

// ParsedCodestream is the result of parsing: the recovered segments
// and tiles, plus tolerant-parsing bookkeeping.
type ParsedCodestream struct {
	Codestream
	TileGridX, TileGridY, TileGridZ int
	IsPartial                       bool
	Warnings                        []string
	ContainsHTJ2KTiles              bool
	IsHybridHTJ2K                   bool
}

// reader walks a codestream buffer marker by marker.
type reader struct {
	data   []byte
	offset int
}

func (r *reader) remaining() int { return len(r.data) - r.offset }

func (r *reader) readU16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, fmt.Errorf("codestream: unexpected end of data reading uint16 at offset %d", r.offset)
	}
	v := binary.BigEndian.Uint16(r.data[r.offset:])
	r.offset += 2
	return v, nil
}

func (r *reader) readU32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("codestream: unexpected end of data reading uint32 at offset %d", r.offset)
	}
	v := binary.BigEndian.Uint32(r.data[r.offset:])
	r.offset += 4
	return v, nil
}

func (r *reader) readBytes(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, fmt.Errorf("codestream: unexpected end of data reading %d bytes at offset %d", n, r.offset)
	}
	b := r.data[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

// readSegment reads a marker + 2-byte length + payload (length
// includes the 2 length bytes, per the builder's convention) and
// returns the marker and the payload.
func (r *reader) readSegment() (uint16, []byte, error) {
	marker, err := r.readU16()
	if err != nil {
		return 0, nil, err
	}
	length, err := r.readU16()
	if err != nil {
		return 0, nil, err
	}
	if length < 2 {
		return marker, nil, fmt.Errorf("codestream: invalid segment length %d for marker 0x%04X", length, marker)
	}
	payload, err := r.readBytes(int(length) - 2)
	if err != nil {
		return marker, nil, err
	}
	return marker, payload, nil
}

// Parse parses a codestream. When tolerant is true, malformed
// segments after the mandatory SOC/SIZ/COD/QCD header set IsPartial
// and are recorded as Warnings instead of failing the whole parse;
// when tolerant is false, any error aborts the parse.
func Parse(data []byte, tolerant bool) (*ParsedCodestream, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("codestream: empty input")
	}
	r := &reader{data: data}

	soc, err := r.readU16()
	if err != nil || soc != MarkerSOC {
		return nil, fmt.Errorf("codestream: missing SOC marker")
	}

	pc := &ParsedCodestream{}

	marker, payload, err := r.readSegment()
	if err != nil || marker != MarkerSIZ {
		return nil, fmt.Errorf("codestream: missing or malformed SIZ segment: %w", err)
	}
	siz, err := parseSIZ(payload)
	if err != nil {
		return nil, fmt.Errorf("codestream: malformed SIZ segment: %w", err)
	}
	pc.SIZ = siz

	marker, payload, err = r.readSegment()
	if err != nil || marker != MarkerCOD {
		return nil, fmt.Errorf("codestream: missing or malformed COD segment: %w", err)
	}
	pc.COD = parseCOD(payload)

	marker, payload, err = r.readSegment()
	if err != nil || marker != MarkerQCD {
		return nil, fmt.Errorf("codestream: missing or malformed QCD segment: %w", err)
	}
	pc.QCD = parseQCD(payload)

	for {
		if r.remaining() < 2 {
			pc.IsPartial = true
			pc.Warnings = append(pc.Warnings, "codestream ended before EOC marker")
			break
		}
		marker, err := peekU16(r)
		if err != nil {
			return nil, err
		}

		switch marker {
		case MarkerQCC:
			_, payload, err := r.readSegment()
			if err != nil {
				if !tolerant {
					return nil, err
				}
				pc.IsPartial = true
				pc.Warnings = append(pc.Warnings, "malformed QCC segment: "+err.Error())
				continue
			}
			qcc, err := parseQCC(payload)
			if err != nil {
				if !tolerant {
					return nil, err
				}
				pc.IsPartial = true
				pc.Warnings = append(pc.Warnings, "malformed QCC segment: "+err.Error())
				continue
			}
			if pc.QCC == nil {
				pc.QCC = make(map[uint16]*QCCSegment)
			}
			pc.QCC[qcc.ComponentIndex] = &qcc
		case MarkerCAP:
			_, payload, err := r.readSegment()
			if err != nil {
				if !tolerant {
					return nil, err
				}
				pc.IsPartial = true
				pc.Warnings = append(pc.Warnings, "malformed CAP segment: "+err.Error())
				continue
			}
			cap_ := parseCAP(payload)
			pc.CAP = &cap_
		case MarkerCPF:
			_, payload, err := r.readSegment()
			if err != nil {
				if !tolerant {
					return nil, err
				}
				pc.IsPartial = true
				pc.Warnings = append(pc.Warnings, "malformed CPF segment: "+err.Error())
				continue
			}
			cpf := parseCPF(payload)
			pc.CPF = &cpf
		case MarkerSOT:
			tile, ok, err := parseTile(r)
			if err != nil {
				if !tolerant {
					return nil, err
				}
				pc.IsPartial = true
				pc.Warnings = append(pc.Warnings, "malformed tile: "+err.Error())
				if !resync(r) {
					pc.Warnings = append(pc.Warnings, "could not resynchronize after malformed tile")
					goto done
				}
				continue
			}
			if ok {
				pc.Tiles = append(pc.Tiles, tile)
			}
		case MarkerEOC:
			r.offset += 2
			goto done
		default:
			pc.IsPartial = true
			pc.Warnings = append(pc.Warnings, fmt.Sprintf("unrecognized marker 0x%04X at offset %d", marker, r.offset))
			if !tolerant {
				return nil, fmt.Errorf("codestream: unrecognized marker 0x%04X", marker)
			}
			if !resync(r) {
				goto done
			}
		}
	}
done:

	gx, gy, gz := tileGrid(pc.SIZ, pc.COD)
	pc.TileGridX, pc.TileGridY, pc.TileGridZ = gx, gy, gz

	sawLegacy, sawHT := false, false
	for _, t := range pc.Tiles {
		if t.IsHT {
			sawHT = true
		} else {
			sawLegacy = true
		}
	}
	pc.ContainsHTJ2KTiles = sawHT
	pc.IsHybridHTJ2K = sawHT && sawLegacy

	return pc, nil
}

func peekU16(r *reader) (uint16, error) {
	if r.remaining() < 2 {
		return 0, fmt.Errorf("codestream: unexpected end of data")
	}
	return binary.BigEndian.Uint16(r.data[r.offset:]), nil
}

// resync scans forward for the next byte offset that looks like a
// recognized marker, so tolerant parsing can continue past corruption.
func resync(r *reader) bool {
	for off := r.offset + 1; off < len(r.data)-1; off++ {
		m := binary.BigEndian.Uint16(r.data[off:])
		switch m {
		case MarkerSOT, MarkerEOC, MarkerCAP, MarkerCPF, MarkerQCC:
			r.offset = off
			return true
		}
	}
	return false
}

func parseSIZ(payload []byte) (SIZSegment, error) {
	r := &reader{data: payload}
	profile, err := r.readU16()
	if err != nil {
		return SIZSegment{}, err
	}
	w, err := r.readU32()
	if err != nil {
		return SIZSegment{}, err
	}
	h, err := r.readU32()
	if err != nil {
		return SIZSegment{}, err
	}
	d, err := r.readU32()
	if err != nil {
		return SIZSegment{}, err
	}
	tw, err := r.readU32()
	if err != nil {
		return SIZSegment{}, err
	}
	th, err := r.readU32()
	if err != nil {
		return SIZSegment{}, err
	}
	td, err := r.readU32()
	if err != nil {
		return SIZSegment{}, err
	}
	csiz, err := r.readU16()
	if err != nil {
		return SIZSegment{}, err
	}
	comps := make([]ComponentSize, 0, csiz)
	for i := 0; i < int(csiz); i++ {
		b, err := r.readBytes(4)
		if err != nil {
			return SIZSegment{}, err
		}
		comps = append(comps, ComponentSize{
			BitDepth: (b[0] & 0x7F) + 1,
			Signed:   b[0]&0x80 != 0,
			SubX:     b[1],
			SubY:     b[2],
			SubZ:     b[3],
		})
	}
	return SIZSegment{
		Profile: profile, Width: w, Height: h, Depth: d,
		TileWidth: tw, TileHeight: th, TileDepth: td,
		Components: comps,
	}, nil
}

func parseCOD(payload []byte) CODSegment {
	cod := CODSegment{}
	if len(payload) < 8 {
		return cod
	}
	cod.ProgressionOrder = payload[0]
	cod.Layers = uint16(payload[1])<<8 | uint16(payload[2])
	cod.LevelsX = payload[3]
	cod.LevelsY = payload[4]
	cod.LevelsZ = payload[5]
	cod.Filter = payload[6]
	cod.TilePartFlag = payload[7]
	return cod
}

func parseQCD(payload []byte) QCDSegment {
	qcd := QCDSegment{}
	if len(payload) < 1 {
		return qcd
	}
	sqcd := payload[0]
	qcd.Style = sqcd & 0x1F
	qcd.GuardBits = sqcd >> 5
	for i := 1; i+2 <= len(payload); i += 2 {
		qcd.StepSizes = append(qcd.StepSizes, uint16(payload[i])<<8|uint16(payload[i+1]))
	}
	return qcd
}

func parseQCC(payload []byte) (QCCSegment, error) {
	if len(payload) < 3 {
		return QCCSegment{}, fmt.Errorf("codestream: QCC payload too short")
	}
	idx := uint16(payload[0])<<8 | uint16(payload[1])
	sqcc := payload[2]
	qcc := QCCSegment{ComponentIndex: idx, Style: sqcc & 0x1F, GuardBits: sqcc >> 5}
	for i := 3; i+2 <= len(payload); i += 2 {
		qcc.StepSizes = append(qcc.StepSizes, uint16(payload[i])<<8|uint16(payload[i+1]))
	}
	return qcc, nil
}

func parseCAP(payload []byte) CAPSegment {
	cap_ := CAPSegment{}
	if len(payload) >= 8 {
		ccap15 := uint16(payload[6])<<8 | uint16(payload[7])
		cap_.AllowMixedTiles = ccap15&0x0002 != 0
	}
	return cap_
}

func parseCPF(payload []byte) CPFSegment {
	if len(payload) >= 1 {
		return CPFSegment{ProfileTag: payload[0]}
	}
	return CPFSegment{}
}

func parseTile(r *reader) (TilePart, bool, error) {
	marker, sotPayload, err := r.readSegment()
	if err != nil || marker != MarkerSOT {
		return TilePart{}, false, fmt.Errorf("expected SOT: %w", err)
	}
	if len(sotPayload) < 8 {
		return TilePart{}, false, fmt.Errorf("SOT payload too short")
	}
	tileIndex := uint16(sotPayload[0])<<8 | uint16(sotPayload[1])
	partLength := binary.BigEndian.Uint32(sotPayload[2:6])
	tpsot := sotPayload[6]
	tnsot := sotPayload[7]

	sodMarker, err := r.readU16()
	if err != nil || sodMarker != MarkerSOD {
		return TilePart{}, false, fmt.Errorf("expected SOD after SOT")
	}

	// dataLen = partLength - (SOT segment bytes) - (SOD marker bytes)
	dataLen := int(partLength) - (2 + len(sotPayload) + 2) - 2
	if dataLen < 0 {
		return TilePart{}, false, fmt.Errorf("SOT part_length too small for its own header")
	}
	tileBytes, err := r.readBytes(dataLen)
	if err != nil {
		return TilePart{}, false, err
	}
	if len(tileBytes) < 1 {
		return TilePart{}, false, fmt.Errorf("tile %d has empty payload", tileIndex)
	}
	return TilePart{
		TileIndex: tileIndex,
		TPSOT:     tpsot,
		TNSOT:     tnsot,
		IsHT:      tileBytes[0] == TileInfoHT,
		Data:      tileBytes[1:],
	}, true, nil
}

func tileGrid(siz SIZSegment, cod CODSegment) (gx, gy, gz int) {
	_ = cod
	if siz.TileWidth == 0 || siz.TileHeight == 0 || siz.TileDepth == 0 {
		return 0, 0, 0
	}
	gx = ceilDivU32(siz.Width, siz.TileWidth)
	gy = ceilDivU32(siz.Height, siz.TileHeight)
	gz = ceilDivU32(siz.Depth, siz.TileDepth)
	return
}

func ceilDivU32(a, b uint32) int {
	if b == 0 {
		return 0
	}
	return int((a + b - 1) / b)
}
