package decode

import (
	"context"

	"github.com/cocosip/go-jp3d"
	"github.com/cocosip/go-jp3d/codestream"
)

// ROIResult is the outcome of an ROIDecoder.Decode call.
type ROIResult struct {
	Volume        *jp3d.Volume
	DecodedRegion jp3d.Region
	TilesDecoded  int
	TilesTotal    int
	TilesSkipped  int
	Warnings      []string
}

// ROIDecoder decodes only the tiles intersecting a requested Region,
// returning a sub-volume sized to the clamped region.
//
// Grounded on jpeg2000/roi.go's ROIParams.Intersects contract,
// generalized from a 2D rectangle-vs-block test to a 3D region-vs-tile
// test, and wired to this package's tolerant Decoder rather than the
// in-place MaxShift bit-plane scaling (which belongs to the Part-1
// ROI-by-shift scheme, not the tile-skip ROI scheme implemented here).
type ROIDecoder struct {
	Decoder Decoder
}

// NewROIDecoder constructs an ROIDecoder from opts.
func NewROIDecoder(opts Options) *ROIDecoder {
	return &ROIDecoder{Decoder: Decoder{Options: opts}}
}

// Decode parses data, clamps region to the codestream's volume
// dimensions, decodes only tiles whose region intersects the clamped
// request, and returns a sub-volume covering exactly the clamped
// region. A region disjoint from every tile yields TilesDecoded == 0
// and a non-empty Warnings list.
func (rd *ROIDecoder) Decode(ctx context.Context, data []byte, region jp3d.Region) (*ROIResult, error) {
	full, err := peekDimensions(data, rd.Decoder.Options.TolerateErrors)
	if err != nil {
		return nil, err
	}
	clamped := region.Clamp(full.Width, full.Height, full.Depth)

	var warnings []string
	if clamped != region {
		warnings = append(warnings, "requested region was clamped to volume bounds")
	}

	filter := func(tile jp3d.Tile, _ int) bool {
		_, ok := tile.Region.Intersect(clamped)
		return ok
	}

	base, err := rd.Decoder.Decode(ctx, data, filter)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, base.Warnings...)

	if clamped.IsEmpty() || base.TilesDecoded == 0 {
		warnings = append(warnings, "ROI request intersected no decoded tiles")
		return &ROIResult{
			Volume:        nil,
			DecodedRegion: clamped,
			TilesDecoded:  0,
			TilesTotal:    base.TilesTotal,
			TilesSkipped:  base.TilesTotal,
			Warnings:      warnings,
		}, nil
	}

	sub, err := extractSubVolume(base.Volume, clamped)
	if err != nil {
		return nil, err
	}

	return &ROIResult{
		Volume:        sub,
		DecodedRegion: clamped,
		TilesDecoded:  base.TilesDecoded,
		TilesTotal:    base.TilesTotal,
		TilesSkipped:  base.TilesSkipped,
		Warnings:      warnings,
	}, nil
}

func extractSubVolume(v *jp3d.Volume, region jp3d.Region) (*jp3d.Volume, error) {
	w, h, d := region.Width(), region.Height(), region.Depth()
	comps := make([]*jp3d.Component, len(v.Components))
	for ci, c := range v.Components {
		sub := jp3d.NewComponent(ci, w, h, d, c.BitDepth, c.Signed, 1, 1, 1)
		i := 0
		for z := region.Z0; z < region.Z1; z++ {
			for y := region.Y0; y < region.Y1; y++ {
				for x := region.X0; x < region.X1; x++ {
					sub.SetSampleAt(i%w, (i/w)%h, i/(w*h), c.SignedSampleAt(x, y, z))
					i++
				}
			}
		}
		comps[ci] = sub
	}
	return jp3d.NewVolume(w, h, d, comps)
}

// dims carries just the volume extent recovered from a codestream's
// SIZ segment, without allocating component storage.
type dims struct{ Width, Height, Depth int }

func peekDimensions(data []byte, tolerant bool) (dims, error) {
	pc, err := codestream.Parse(data, tolerant)
	if err != nil {
		return dims{}, jp3d.WrapError(jp3d.KindParseError, "failed to parse codestream", err)
	}
	return dims{Width: int(pc.SIZ.Width), Height: int(pc.SIZ.Height), Depth: int(pc.SIZ.Depth)}, nil
}
