// Package codestream builds and parses the big-endian marker-segment
// wire format that carries a 3D tiled JPEG 2000-family codestream,
// including the Part-15 (HTJ2K) capability markers.
//
// Grounded on this codebase's jpeg2000/codestream/markers.go (marker
// code table) and types.go (segment struct shapes), extended from 2D
// SIZ/COD fields to 3D (a Z axis alongside X/Y throughout) and with
// the CAP/CPF Part-15 markers its predecessor does not carry, following
// this specification's HTJ2K extension.
package codestream

// Marker codes used by this codestream format. SOC/SIZ/COD/QCD/SOT/
// SOD/EOC match ISO/IEC 15444-1 Table A.1 exactly (same values as the
// teacher's marker table); CAP/CPF match ISO/IEC 15444-15 (HTJ2K).
const (
	MarkerSOC uint16 = 0xFF4F
	MarkerSIZ uint16 = 0xFF51
	MarkerCOD uint16 = 0xFF52
	MarkerQCD uint16 = 0xFF5C
	MarkerQCC uint16 = 0xFF5D
	MarkerCAP uint16 = 0xFF50
	MarkerCPF uint16 = 0xFF59
	MarkerSOT uint16 = 0xFF90
	MarkerSOD uint16 = 0xFF93
	MarkerEOC uint16 = 0xFFD9
)

// MarkerName returns the mnemonic for a marker code, or "UNKNOWN".
func MarkerName(marker uint16) string {
	switch marker {
	case MarkerSOC:
		return "SOC"
	case MarkerSIZ:
		return "SIZ"
	case MarkerCOD:
		return "COD"
	case MarkerQCD:
		return "QCD"
	case MarkerQCC:
		return "QCC"
	case MarkerCAP:
		return "CAP"
	case MarkerCPF:
		return "CPF"
	case MarkerSOT:
		return "SOT"
	case MarkerSOD:
		return "SOD"
	case MarkerEOC:
		return "EOC"
	default:
		return "UNKNOWN"
	}
}

// ProgressionOrder codes the five progression orders supported by the
// sequence package for wire transmission.
const (
	ProgressionLRCPS uint8 = iota
	ProgressionRLCPS
	ProgressionPCRLS
	ProgressionSLRCP
	ProgressionCPRLS
)

// Filter selector values carried by the COD segment.
const (
	FilterIrreversible97 uint8 = 0
	FilterReversible53   uint8 = 1
)

// Tile-info prefix byte carried as the first byte of every tile's
// coded payload.
const (
	TileInfoLegacy uint8 = 0x00
	TileInfoHT     uint8 = 0x01
)
