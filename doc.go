// Package jp3d implements the core data model and pipeline for a 3D
// (volumetric) extension of the JPEG 2000 family of codecs: the
// separable discrete wavelet transform, tile/precinct decomposition,
// rate control, the codestream builder/parser (including the
// High-Throughput JPEG 2000 marker extensions), the progressive/ROI
// decoder, and the JPIP-style streaming layer.
//
// The still-image box formats (JP2/JPX/JPM), the Motion JPEG 2000
// container, and GPU acceleration are treated as external collaborators
// through narrow interfaces in the container subpackage and are not
// otherwise part of this package.
package jp3d
