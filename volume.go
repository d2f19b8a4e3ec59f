package jp3d

// Volume is the top-level 3D image entity: a set of co-registered
// Components sharing reference-grid dimensions, optional physical voxel
// spacing, and an optional origin.
type Volume struct {
	Width, Height, Depth int
	Components           []*Component

	// SpacingX, SpacingY, SpacingZ are the physical voxel spacing along
	// each axis (> 0). Zero means "unspecified".
	SpacingX, SpacingY, SpacingZ float64
	// OriginX, OriginY, OriginZ is the physical origin of voxel (0,0,0).
	OriginX, OriginY, OriginZ float64
}

// Component is one scalar channel of a Volume: a bit depth, signedness,
// per-axis dimensions and subsampling factors, and packed little-endian
// sample bytes.
type Component struct {
	Index      int
	BitDepth   int
	Signed     bool
	Width      int
	Height     int
	Depth      int
	SubX       int
	SubY       int
	SubZ       int
	Data       []byte
}

// BytesPerSample returns ceil(BitDepth/8).
func (c *Component) BytesPerSample() int {
	return (c.BitDepth + 7) / 8
}

// MaxValue returns the largest representable sample value: 2^BitDepth-1
// for unsigned components, or 2^(BitDepth-1)-1 for signed ones.
func (c *Component) MaxValue() int64 {
	full := int64(1)<<uint(c.BitDepth) - 1
	if c.Signed {
		return int64(1)<<uint(c.BitDepth-1) - 1
	}
	return full
}

// MinValue returns the smallest representable sample value.
func (c *Component) MinValue() int64 {
	if c.Signed {
		return -(int64(1) << uint(c.BitDepth-1))
	}
	return 0
}

// voxelCount64 returns w*h*d as int64 to detect overflow before it
// corrupts an int-sized length.
func voxelCount64(w, h, d int) int64 {
	return int64(w) * int64(h) * int64(d)
}

// NewVolume validates and constructs a Volume from width/height/depth
// and a non-empty list of components. Each component's declared
// dimensions must equal the volume's when its subsampling is 1, or
// otherwise its subsampling factors must evenly divide the volume
// dimension along that axis.
func NewVolume(width, height, depth int, components []*Component) (*Volume, error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, NewError(KindInvalidDimensions, "volume dimensions must be positive")
	}
	if voxelCount64(width, height, depth) <= 0 {
		return nil, NewError(KindInvalidDimensions, "voxel count overflows")
	}
	if len(components) == 0 {
		return nil, NewError(KindInvalidComponentConfiguration, "volume requires at least one component")
	}
	for i, c := range components {
		if c.BitDepth < 1 || c.BitDepth > 38 {
			return nil, NewError(KindInvalidBitDepth, "component bit depth must be in [1,38]")
		}
		if c.SubX < 1 || c.SubY < 1 || c.SubZ < 1 {
			return nil, NewError(KindInvalidComponentConfiguration, "component subsampling factors must be >= 1")
		}
		if c.SubX == 1 && c.Width != width {
			return nil, NewError(KindInvalidComponentConfiguration, "unsubsampled component width must equal volume width")
		}
		if c.SubY == 1 && c.Height != height {
			return nil, NewError(KindInvalidComponentConfiguration, "unsubsampled component height must equal volume height")
		}
		if c.SubZ == 1 && c.Depth != depth {
			return nil, NewError(KindInvalidComponentConfiguration, "unsubsampled component depth must equal volume depth")
		}
		if c.SubX > 1 && width%c.SubX != 0 {
			return nil, NewError(KindInvalidComponentConfiguration, "subsampling factor must divide volume width")
		}
		if c.SubY > 1 && height%c.SubY != 0 {
			return nil, NewError(KindInvalidComponentConfiguration, "subsampling factor must divide volume height")
		}
		if c.SubZ > 1 && depth%c.SubZ != 0 {
			return nil, NewError(KindInvalidComponentConfiguration, "subsampling factor must divide volume depth")
		}
		wantLen := voxelCount64(c.Width, c.Height, c.Depth) * int64(c.BytesPerSample())
		if int64(len(c.Data)) != wantLen {
			return nil, NewError(KindInvalidComponentConfiguration, "component data length does not match dimensions and bit depth")
		}
		c.Index = i
	}
	return &Volume{Width: width, Height: height, Depth: depth, Components: components}, nil
}

// NewComponent allocates a Component with a freshly zeroed data buffer
// sized for (w,h,d) at the given bit depth. Non-positive dimensions and
// subsampling factors are clamped to 1 and bit depths are clamped into
// [1,38] rather than causing an error, matching this codebase's convenience-constructor
// behaviour for quickly building test fixtures.
func NewComponent(index, w, h, d, bitDepth int, signed bool, subX, subY, subZ int) *Component {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if d < 1 {
		d = 1
	}
	if bitDepth < 1 {
		bitDepth = 1
	}
	if bitDepth > 38 {
		bitDepth = 38
	}
	if subX < 1 {
		subX = 1
	}
	if subY < 1 {
		subY = 1
	}
	if subZ < 1 {
		subZ = 1
	}
	c := &Component{
		Index: index, Width: w, Height: h, Depth: d,
		BitDepth: bitDepth, Signed: signed, SubX: subX, SubY: subY, SubZ: subZ,
	}
	bps := c.BytesPerSample()
	c.Data = make([]byte, voxelCount64(w, h, d)*int64(bps))
	return c
}

// SampleAt returns the raw little-endian sample value at voxel
// (x,y,z) within the component, without sign extension.
func (c *Component) SampleAt(x, y, z int) uint64 {
	bps := c.BytesPerSample()
	idx := (int64(z)*int64(c.Height)+int64(y))*int64(c.Width) + int64(x)
	off := idx * int64(bps)
	var v uint64
	for i := 0; i < bps; i++ {
		v |= uint64(c.Data[off+int64(i)]) << uint(8*i)
	}
	return v
}

// SignedSampleAt returns the sample at (x,y,z) sign-extended according
// to the component's BitDepth and Signed flag.
func (c *Component) SignedSampleAt(x, y, z int) int64 {
	v := int64(c.SampleAt(x, y, z))
	if !c.Signed {
		return v
	}
	v &= int64(1)<<uint(c.BitDepth) - 1
	signBit := int64(1) << uint(c.BitDepth-1)
	if v&signBit != 0 {
		v -= int64(1) << uint(c.BitDepth)
	}
	return v
}

// SetSampleAt writes a little-endian sample value at voxel (x,y,z).
func (c *Component) SetSampleAt(x, y, z int, value int64) {
	bps := c.BytesPerSample()
	idx := (int64(z)*int64(c.Height)+int64(y))*int64(c.Width) + int64(x)
	off := idx * int64(bps)
	uv := uint64(value)
	for i := 0; i < bps; i++ {
		c.Data[off+int64(i)] = byte(uv >> uint(8*i))
	}
}
