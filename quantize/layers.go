package quantize

import "math"

// QualityLayerTargets partitions a coded stream of totalBits bits
// over voxelCount voxels into layers quality layers, returning a
// non-decreasing sequence of length layers+1 whose first entry is 0
// and whose last entry is totalBits/voxelCount. Layer l's target is
// the cumulative bits-per-voxel a decoder holding layers [0..l] has
// received. layers < 1 is clamped to 1.
//
// The progression is a geometric ramp (each layer's budget is the next
// layer's divided by 2^(1/layers), anchored so the final layer lands
// exactly on the measured bitrate; entry 0 is then set to 0), mirroring the geometric
// layer-allocation approach this codebase's rate_distortion.go uses
// for 2D quality-layer construction.
func QualityLayerTargets(voxelCount, totalBits int64, layers int) []float64 {
	if layers < 1 {
		layers = 1
	}
	if voxelCount <= 0 {
		voxelCount = 1
	}
	finalBPV := float64(totalBits) / float64(voxelCount)

	targets := make([]float64, layers+1)
	targets[layers] = finalBPV
	if layers == 1 {
		targets[0] = 0
		return targets
	}

	ratio := math.Pow(2.0, 1.0/float64(layers))
	for i := layers - 1; i >= 1; i-- {
		targets[i] = targets[i+1] / ratio
	}
	targets[0] = 0
	return targets
}
