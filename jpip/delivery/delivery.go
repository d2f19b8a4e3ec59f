// Package delivery implements progressive JPIP delivery: given a
// volume/region pair and a progression mode, it schedules the
// precinct data bins a client should receive, against a simple
// instantaneous-bandwidth model, and supports adjusting quality and
// reacting to bandwidth changes mid-session.
//
// Grounded on the jpeg2000/t2 packet-emission loop
// (jpeg2000/t2/packet_encoder.go) for the five Part-1 progression
// orders' (layer, resolution, component) precedence, mirrored here
// over the sequence package's Order values, and on a simple
// bandwidth model (T/B = estimate_time). The additional progression
// modes (ResolutionFirst, QualityFirst, SliceForward/Reverse/
// Bidirectional, ViewDependent, DistanceOrdered, Adaptive) are new
// orderings over the same precinct set, since the Part-1 packet
// sequencer only models the five base progression orders.
package delivery

import (
	"sort"

	"github.com/cocosip/go-jp3d"
	"github.com/cocosip/go-jp3d/jpip/cache"
)

// Mode selects a delivery progression. The first five values alias
// sequence.Order's packet progressions; the rest are streaming-only
// orderings with no Part-1 codestream analogue.
type Mode int

const (
	ModeLRCPS Mode = iota
	ModeRLCPS
	ModePCRLS
	ModeSLRCP
	ModeCPRLS
	ModeResolutionFirst
	ModeQualityFirst
	ModeSliceForward
	ModeSliceReverse
	ModeSliceBidirectional
	ModeViewDependent
	ModeDistanceOrdered
	ModeAdaptive
)

// PrecinctUnit is one candidate unit of delivery: a precinct
// identity, its spatial hint, and an assumed encoded size in bytes.
type PrecinctUnit struct {
	Key        jp3d.Precinct3D
	RegionHint jp3d.Region
	QualityLayer int
	Bytes      int
}

// Schedule is an ordered sequence of data bins ready to send, plus the
// total byte count and the estimated delivery time at the delivery's
// current bandwidth.
type Schedule struct {
	Bins         []cache.DataBin
	TotalBytes   int64
	EstimateTime float64 // seconds; +Inf when bandwidth is 0
}

// Delivery schedules DataBins for a registered volume/region pair
// under a progression Mode, consulting a shared precinct Cache to
// avoid re-encoding, and models delivery time against an
// instantaneous-bandwidth estimate that callers can update.
type Delivery struct {
	Mode           Mode
	BandwidthBps   float64
	ViewCenterX, ViewCenterY, ViewCenterZ float64
	maxQualityLayer int
	hasMaxQuality   bool
}

// New constructs a Delivery in the given mode with an initial
// bandwidth estimate (bits/second).
func New(mode Mode, bandwidthBps float64) *Delivery {
	return &Delivery{Mode: mode, BandwidthBps: bandwidthBps}
}

// AdjustQuality filters quality layers above max out of subsequent
// schedules; max < 0 clears the filter.
func (d *Delivery) AdjustQuality(max int) {
	if max < 0 {
		d.hasMaxQuality = false
		return
	}
	d.hasMaxQuality = true
	d.maxQualityLayer = max
}

// HandleNetworkChange updates the delivery's bandwidth estimate.
func (d *Delivery) HandleNetworkChange(bandwidthBps float64) {
	d.BandwidthBps = bandwidthBps
}

// Schedule orders units according to d.Mode, builds a DataBin per
// surviving unit (consulting cacheRef to reuse an already-cached
// payload rather than re-encoding), and returns the resulting
// Schedule with an estimated delivery time at d.BandwidthBps.
func (d *Delivery) Schedule(units []PrecinctUnit, cacheRef *cache.Cache, encode func(jp3d.Precinct3D) []byte) Schedule {
	filtered := make([]PrecinctUnit, 0, len(units))
	for _, u := range units {
		if d.hasMaxQuality && u.QualityLayer > d.maxQualityLayer {
			continue
		}
		filtered = append(filtered, u)
	}

	ordered := d.order(filtered)

	bins := make([]cache.DataBin, 0, len(ordered))
	var total int64
	for i, u := range ordered {
		var payload []byte
		if cacheRef != nil {
			if cached, ok := cacheRef.Retrieve(u.Key); ok {
				payload = cached.Bytes
			}
		}
		if payload == nil {
			if encode != nil {
				payload = encode(u.Key)
			} else {
				payload = make([]byte, u.Bytes)
			}
			if cacheRef != nil {
				cacheRef.Store(u.Key, cache.DataBin{BinID: uint64(i), TileX: u.Key.IX, TileY: u.Key.IY, TileZ: u.Key.IZ,
					ResolutionLevel: u.Key.ResolutionLevel, QualityLayer: u.QualityLayer, Bytes: payload, IsComplete: true}, u.RegionHint)
			}
		}
		bin := cache.DataBin{
			BinID: uint64(i), TileX: u.Key.IX, TileY: u.Key.IY, TileZ: u.Key.IZ,
			ResolutionLevel: u.Key.ResolutionLevel, QualityLayer: u.QualityLayer,
			Bytes: payload, IsComplete: true,
		}
		bins = append(bins, bin)
		total += int64(len(payload))
	}

	estimate := 0.0
	if d.BandwidthBps <= 0 {
		estimate = posInf()
		bins = nil
	} else {
		estimate = float64(total*8) / d.BandwidthBps
	}

	return Schedule{Bins: bins, TotalBytes: total, EstimateTime: estimate}
}

func posInf() float64 {
	var zero float64
	return 1 / zero
}

// order sorts units according to d.Mode without mutating the input.
func (d *Delivery) order(units []PrecinctUnit) []PrecinctUnit {
	out := append([]PrecinctUnit(nil), units...)
	switch d.Mode {
	case ModeResolutionFirst:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Key.ResolutionLevel < out[j].Key.ResolutionLevel })
	case ModeQualityFirst:
		sort.SliceStable(out, func(i, j int) bool { return out[i].QualityLayer < out[j].QualityLayer })
	case ModeSliceForward:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Key.IZ < out[j].Key.IZ })
	case ModeSliceReverse:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Key.IZ > out[j].Key.IZ })
	case ModeSliceBidirectional:
		sort.SliceStable(out, func(i, j int) bool { return abs(out[i].Key.IZ) < abs(out[j].Key.IZ) })
	case ModeViewDependent, ModeDistanceOrdered:
		sort.SliceStable(out, func(i, j int) bool { return d.distance(out[i]) < d.distance(out[j]) })
	case ModeAdaptive:
		// Adaptive mixes resolution-first ordering with a distance tiebreak,
		// approximating a viewer that wants coarse detail everywhere before
		// fine detail nearby.
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Key.ResolutionLevel != out[j].Key.ResolutionLevel {
				return out[i].Key.ResolutionLevel < out[j].Key.ResolutionLevel
			}
			return d.distance(out[i]) < d.distance(out[j])
		})
	case ModeLRCPS, ModeRLCPS, ModePCRLS, ModeSLRCP, ModeCPRLS:
		sort.SliceStable(out, d.sequenceLess(out))
	}
	return out
}

func (d *Delivery) distance(u PrecinctUnit) float64 {
	mx := float64(u.RegionHint.X0+u.RegionHint.X1) / 2
	my := float64(u.RegionHint.Y0+u.RegionHint.Y1) / 2
	mz := float64(u.RegionHint.Z0+u.RegionHint.Z1) / 2
	dx, dy, dz := mx-d.ViewCenterX, my-d.ViewCenterY, mz-d.ViewCenterZ
	return dx*dx + dy*dy + dz*dz
}

// sequenceLess returns a less-function approximating one of the five
// Part-1 progression orders by comparing the mode's three outermost
// axes (precinct position is IX + 1000*IY + 1000000*IZ, slice is IZ);
// units tied on all three are left in their original relative order
// (sort.SliceStable), since this package's units already carry one
// precinct each.
func (d *Delivery) sequenceLess(units []PrecinctUnit) func(i, j int) bool {
	rank := func(u PrecinctUnit) [3]int {
		switch d.Mode {
		case ModeRLCPS:
			return [3]int{u.Key.ResolutionLevel, u.QualityLayer, u.Key.Component}
		case ModePCRLS:
			return [3]int{u.Key.IX + u.Key.IY*1000 + u.Key.IZ*1000000, u.Key.Component, u.Key.ResolutionLevel}
		case ModeSLRCP:
			return [3]int{u.Key.IZ, u.QualityLayer, u.Key.ResolutionLevel}
		case ModeCPRLS:
			return [3]int{u.Key.Component, u.Key.IX + u.Key.IY*1000 + u.Key.IZ*1000000, u.Key.ResolutionLevel}
		default: // ModeLRCPS
			return [3]int{u.QualityLayer, u.Key.ResolutionLevel, u.Key.Component}
		}
	}
	return func(i, j int) bool {
		ri, rj := rank(units[i]), rank(units[j])
		return ri[0] < rj[0] || (ri[0] == rj[0] && (ri[1] < rj[1] || (ri[1] == rj[1] && ri[2] < rj[2])))
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
