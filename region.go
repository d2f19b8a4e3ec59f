package jp3d

// Region is a half-open 3D box: x in [X0,X1), y in [Y0,Y1), z in [Z0,Z1).
// It is used for ROI decoding and streaming requests.
type Region struct {
	X0, Y0, Z0 int
	X1, Y1, Z1 int
}

// NewRegion constructs a Region from an origin and per-axis extents.
func NewRegion(x0, y0, z0, w, h, d int) Region {
	return Region{X0: x0, Y0: y0, Z0: z0, X1: x0 + w, Y1: y0 + h, Z1: z0 + d}
}

// Width, Height, and Depth return the region's extent along each axis.
// A malformed region (X1<X0 etc.) reports zero rather than negative.
func (r Region) Width() int  { return max0(r.X1 - r.X0) }
func (r Region) Height() int { return max0(r.Y1 - r.Y0) }
func (r Region) Depth() int  { return max0(r.Z1 - r.Z0) }

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// IsEmpty reports whether the region has zero volume.
func (r Region) IsEmpty() bool {
	return r.Width() == 0 || r.Height() == 0 || r.Depth() == 0
}

// Volume returns the number of voxels covered by the region.
func (r Region) Volume() int64 {
	return int64(r.Width()) * int64(r.Height()) * int64(r.Depth())
}

// Contains reports whether the point (x,y,z) lies within the region.
func (r Region) Contains(x, y, z int) bool {
	return x >= r.X0 && x < r.X1 && y >= r.Y0 && y < r.Y1 && z >= r.Z0 && z < r.Z1
}

// Intersect returns the overlap of r and other. ok is false when the two
// regions are disjoint, in which case the returned Region is the zero
// value and should not be used.
func (r Region) Intersect(other Region) (result Region, ok bool) {
	x0, x1 := maxInt(r.X0, other.X0), minInt(r.X1, other.X1)
	y0, y1 := maxInt(r.Y0, other.Y0), minInt(r.Y1, other.Y1)
	z0, z1 := maxInt(r.Z0, other.Z0), minInt(r.Z1, other.Z1)
	if x0 >= x1 || y0 >= y1 || z0 >= z1 {
		return Region{}, false
	}
	return Region{X0: x0, Y0: y0, Z0: z0, X1: x1, Y1: y1, Z1: z1}, true
}

// Clamp returns r restricted so its upper bounds do not exceed
// (w,h,d) and its lower bounds are not negative. The result may be
// empty if r lies entirely outside [0,w)x[0,h)x[0,d).
func (r Region) Clamp(w, h, d int) Region {
	return Region{
		X0: clampInt(r.X0, 0, w),
		Y0: clampInt(r.Y0, 0, h),
		Z0: clampInt(r.Z0, 0, d),
		X1: clampInt(r.X1, 0, w),
		Y1: clampInt(r.Y1, 0, h),
		Z1: clampInt(r.Z1, 0, d),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
