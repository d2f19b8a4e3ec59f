// Package sequence implements the packet sequencer: given the extent
// of each coding axis, it enumerates every (layer, resolution,
// component, precinct, slice) tuple exactly once, in one of five
// progression orders.
//
// Grounded on this codebase's jpeg2000/t2/packet_encoder.go, which
// walks the same five axes (layer/resolution/component/precinct) in
// nested-loop order to serialize packets; this package adds the
// slice axis (the spec's 3D extension of the 2D standard) as a sixth
// loop variable and generalizes the single fixed LRCP order the
// teacher hard-codes into a selectable Order.
package sequence

import "fmt"

// Order names one of the five supported progression orders — the
// nested loop ordering, outermost first.
type Order int

const (
	// LRCPS orders by layer, resolution, component, precinct, slice.
	LRCPS Order = iota
	// RLCPS orders by resolution, layer, component, precinct, slice.
	RLCPS
	// PCRLS orders by precinct, component, resolution, layer, slice.
	PCRLS
	// SLRCP orders by slice, layer, resolution, component, precinct.
	SLRCP
	// CPRLS orders by component, precinct, resolution, layer, slice.
	CPRLS
)

func (o Order) String() string {
	switch o {
	case LRCPS:
		return "LRCPS"
	case RLCPS:
		return "RLCPS"
	case PCRLS:
		return "PCRLS"
	case SLRCP:
		return "SLRCP"
	case CPRLS:
		return "CPRLS"
	default:
		return "UNKNOWN"
	}
}

// Tuple identifies one packet's coordinates along all five axes.
type Tuple struct {
	Layer, Resolution, Component, Precinct, Slice int
}

// Enumerate returns every (layer, resolution, component, precinct,
// slice) tuple exactly once, in the nested order order names.
// precinctsPerResolution[r] gives the precinct count at resolution r
// and must have length resolutions.
func Enumerate(order Order, layers, resolutions, components int, precinctsPerResolution []int, slices int) ([]Tuple, error) {
	if layers <= 0 || resolutions <= 0 || components <= 0 || slices <= 0 {
		return nil, fmt.Errorf("sequence: layers, resolutions, components and slices must all be positive")
	}
	if len(precinctsPerResolution) != resolutions {
		return nil, fmt.Errorf("sequence: precinctsPerResolution must have length %d, got %d", resolutions, len(precinctsPerResolution))
	}
	total := 0
	for _, p := range precinctsPerResolution {
		if p <= 0 {
			return nil, fmt.Errorf("sequence: precinct count must be positive")
		}
		total += p
	}

	out := make([]Tuple, 0, layers*total*components*slices)
	emit := func(l, r, c, p, s int) { out = append(out, Tuple{Layer: l, Resolution: r, Component: c, Precinct: p, Slice: s}) }

	switch order {
	case LRCPS:
		for l := 0; l < layers; l++ {
			for r := 0; r < resolutions; r++ {
				for c := 0; c < components; c++ {
					for p := 0; p < precinctsPerResolution[r]; p++ {
						for s := 0; s < slices; s++ {
							emit(l, r, c, p, s)
						}
					}
				}
			}
		}
	case RLCPS:
		for r := 0; r < resolutions; r++ {
			for l := 0; l < layers; l++ {
				for c := 0; c < components; c++ {
					for p := 0; p < precinctsPerResolution[r]; p++ {
						for s := 0; s < slices; s++ {
							emit(l, r, c, p, s)
						}
					}
				}
			}
		}
	case PCRLS:
		maxP := 0
		for _, p := range precinctsPerResolution {
			if p > maxP {
				maxP = p
			}
		}
		for p := 0; p < maxP; p++ {
			for c := 0; c < components; c++ {
				for r := 0; r < resolutions; r++ {
					if p >= precinctsPerResolution[r] {
						continue
					}
					for l := 0; l < layers; l++ {
						for s := 0; s < slices; s++ {
							emit(l, r, c, p, s)
						}
					}
				}
			}
		}
	case SLRCP:
		for s := 0; s < slices; s++ {
			for l := 0; l < layers; l++ {
				for r := 0; r < resolutions; r++ {
					for c := 0; c < components; c++ {
						for p := 0; p < precinctsPerResolution[r]; p++ {
							emit(l, r, c, p, s)
						}
					}
				}
			}
		}
	case CPRLS:
		maxP := 0
		for _, p := range precinctsPerResolution {
			if p > maxP {
				maxP = p
			}
		}
		for c := 0; c < components; c++ {
			for p := 0; p < maxP; p++ {
				for r := 0; r < resolutions; r++ {
					if p >= precinctsPerResolution[r] {
						continue
					}
					for l := 0; l < layers; l++ {
						for s := 0; s < slices; s++ {
							emit(l, r, c, p, s)
						}
					}
				}
			}
		}
	default:
		return nil, fmt.Errorf("sequence: unknown progression order %d", order)
	}

	return out, nil
}
