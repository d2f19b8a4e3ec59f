package wavelet

import "math"

// Filter selects the lifting kernel used by a transform.
type Filter int

const (
	// Filter53 is the reversible integer 5/3 kernel.
	Filter53 Filter = iota
	// Filter97 is the irreversible floating-point 9/7 kernel.
	Filter97
)

// Mode selects how the three spatial axes are combined at each
// decomposition level.
type Mode int

const (
	// ModeSeparable transforms the x, then y, then z axis in turn,
	// recursing into the LLL octant for subsequent levels — the
	// classical separable 3D extension of the 2D JPEG 2000 transform.
	ModeSeparable Mode = iota
	// ModeFull3D is recorded on the Decomposition, but ForwardVolume
	// and InverseVolume run the same per-level x, y and z axis sweeps
	// for it as for ModeSeparable, so both modes produce identical
	// coefficients and reconstructions. No joint 3D-neighbourhood
	// lifting pass is implemented.
	ModeFull3D
)

// Decomposition holds the coefficients produced by ForwardVolume. The
// coefficient buffer is packed in place: level 0 occupies the full
// Width x Height x Depth cube, and the LLL octant of each level is
// recursively subdivided by the next level, exactly as JPEG 2000
// packs its 2D subbands.
type Decomposition struct {
	Width, Height, Depth int
	Levels               int
	Filter               Filter
	Boundary             Boundary
	Mode                 Mode
	Coeffs               []float64
}

type levelDim struct{ w, h, d int }

func levelDimsList(w, h, d, levels int) []levelDim {
	dims := make([]levelDim, levels+1)
	dims[0] = levelDim{w, h, d}
	for i := 0; i < levels; i++ {
		cw, ch, cd := dims[i].w, dims[i].h, dims[i].d
		dims[i+1] = levelDim{halveDim(cw), halveDim(ch), halveDim(cd)}
	}
	return dims
}

func halveDim(n int) int {
	if n <= 1 {
		return n
	}
	return (n + 1) / 2
}

func splitSizes(n int) (sn, dn int) {
	sn = (n + 1) / 2
	dn = n - sn
	return
}

func index3D(W, H, x, y, z int) int { return z*W*H + y*W + x }

// ForwardVolume decomposes a single-component 3D integer/real sample
// buffer (row-major, index = z*width*height + y*width + x) into a
// multi-level Decomposition. levels must be >= 0; an axis whose
// current extent is 1 is left untransformed at every remaining level,
// matching the identity behaviour required for degenerate axes.
func ForwardVolume(samples []int64, width, height, depth, levels int, filter Filter, boundary Boundary, mode Mode) (*Decomposition, error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, errInvalidDims
	}
	if len(samples) != width*height*depth {
		return nil, errBufferSize
	}
	if levels < 0 {
		return nil, errInvalidLevels
	}

	buf := make([]float64, len(samples))
	for i, v := range samples {
		buf[i] = float64(v)
	}

	dims := levelDimsList(width, height, depth, levels)
	for lvl := 0; lvl < levels; lvl++ {
		w, h, d := dims[lvl].w, dims[lvl].h, dims[lvl].d
		transformAxisX(buf, width, height, w, h, d, filter, boundary, true)
		transformAxisY(buf, width, height, w, h, d, filter, boundary, true)
		transformAxisZ(buf, width, height, w, h, d, filter, boundary, true)
	}

	return &Decomposition{
		Width: width, Height: height, Depth: depth,
		Levels: levels, Filter: filter, Boundary: boundary, Mode: mode,
		Coeffs: buf,
	}, nil
}

// InverseVolume reconstructs the sample buffer from a Decomposition,
// returning row-major int64 samples (rounded for the 9/7 kernel).
func InverseVolume(dec *Decomposition) ([]int64, error) {
	if dec == nil {
		return nil, errInvalidDims
	}
	buf := append([]float64(nil), dec.Coeffs...)
	dims := levelDimsList(dec.Width, dec.Height, dec.Depth, dec.Levels)

	for lvl := dec.Levels - 1; lvl >= 0; lvl-- {
		w, h, d := dims[lvl].w, dims[lvl].h, dims[lvl].d
		transformAxisZ(buf, dec.Width, dec.Height, w, h, d, dec.Filter, dec.Boundary, false)
		transformAxisY(buf, dec.Width, dec.Height, w, h, d, dec.Filter, dec.Boundary, false)
		transformAxisX(buf, dec.Width, dec.Height, w, h, d, dec.Filter, dec.Boundary, false)
	}

	out := make([]int64, len(buf))
	for i, v := range buf {
		out[i] = int64(math.Round(v))
	}
	return out, nil
}

// SubbandDepth returns the decomposition level, in [0, levels], that
// produced the coefficient packed at voxel (x,y,z) of a Decomposition
// built with ForwardVolume(width, height, depth, levels, ...). Depth 0
// identifies the final LLL approximation band that survived every
// level; depth 1 identifies detail coefficients produced by the first
// (outermost, finest-scale) transform pass; depth == levels
// identifies detail coefficients produced by the last (innermost)
// pass, nested deepest within the LLL corner.
func SubbandDepth(width, height, depth, levels, x, y, z int) int {
	dims := levelDimsList(width, height, depth, levels)
	for lvl := 0; lvl < levels; lvl++ {
		w, h, d := dims[lvl].w, dims[lvl].h, dims[lvl].d
		sx, _ := splitSizes(w)
		sy, _ := splitSizes(h)
		sz, _ := splitSizes(d)
		if x < sx && y < sy && z < sz {
			continue
		}
		return lvl + 1
	}
	return 0
}

func transformAxisX(buf []float64, W, H, w, h, d int, filter Filter, boundary Boundary, forward bool) {
	if w <= 1 {
		return
	}
	idx := make([]int, w)
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				idx[x] = index3D(W, H, x, y, z)
			}
			runLine(buf, idx, filter, boundary, forward)
		}
	}
}

func transformAxisY(buf []float64, W, H, w, h, d int, filter Filter, boundary Boundary, forward bool) {
	if h <= 1 {
		return
	}
	idx := make([]int, h)
	for z := 0; z < d; z++ {
		for x := 0; x < w; x++ {
			for y := 0; y < h; y++ {
				idx[y] = index3D(W, H, x, y, z)
			}
			runLine(buf, idx, filter, boundary, forward)
		}
	}
}

func transformAxisZ(buf []float64, W, H, w, h, d int, filter Filter, boundary Boundary, forward bool) {
	if d <= 1 {
		return
	}
	idx := make([]int, d)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for z := 0; z < d; z++ {
				idx[z] = index3D(W, H, x, y, z)
			}
			runLine(buf, idx, filter, boundary, forward)
		}
	}
}

func runLine(buf []float64, idx []int, filter Filter, boundary Boundary, forward bool) {
	n := len(idx)
	sn, dn := splitSizes(n)
	switch filter {
	case Filter53:
		if forward {
			xs := make([]int64, n)
			for i, id := range idx {
				xs[i] = int64(math.Round(buf[id]))
			}
			lo, hi := Forward53(xs, boundary)
			for i, v := range lo {
				buf[idx[i]] = float64(v)
			}
			for i, v := range hi {
				buf[idx[sn+i]] = float64(v)
			}
		} else {
			lo := make([]int64, sn)
			hi := make([]int64, dn)
			for i := 0; i < sn; i++ {
				lo[i] = int64(math.Round(buf[idx[i]]))
			}
			for i := 0; i < dn; i++ {
				hi[i] = int64(math.Round(buf[idx[sn+i]]))
			}
			xs := Inverse53(lo, hi, boundary)
			for i, v := range xs {
				buf[idx[i]] = float64(v)
			}
		}
	case Filter97:
		if forward {
			xs := make([]float64, n)
			for i, id := range idx {
				xs[i] = buf[id]
			}
			lo, hi := Forward97(xs, boundary)
			for i, v := range lo {
				buf[idx[i]] = v
			}
			for i, v := range hi {
				buf[idx[sn+i]] = v
			}
		} else {
			lo := make([]float64, sn)
			hi := make([]float64, dn)
			for i := 0; i < sn; i++ {
				lo[i] = buf[idx[i]]
			}
			for i := 0; i < dn; i++ {
				hi[i] = buf[idx[sn+i]]
			}
			xs := Inverse97(lo, hi, boundary)
			for i, v := range xs {
				buf[idx[i]] = v
			}
		}
	}
}
