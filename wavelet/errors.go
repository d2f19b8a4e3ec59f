package wavelet

import "errors"

var (
	errInvalidDims   = errors.New("wavelet: width, height and depth must all be positive")
	errBufferSize    = errors.New("wavelet: sample buffer length does not match width*height*depth")
	errInvalidLevels = errors.New("wavelet: levels must be >= 0")
)
