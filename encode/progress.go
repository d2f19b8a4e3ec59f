package encode

// Stage names one step of the per-tile encode pipeline at the moment a
// ProgressEvent is published.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageTransform Stage = "transform"
	StageQuantize  Stage = "quantize"
	StageAssemble  Stage = "assemble"
)

// ProgressEvent reports one pipeline stage completing for one tile.
type ProgressEvent struct {
	TileIdx    int
	TilesTotal int
	Stage      Stage
}

// ProgressFunc receives ProgressEvents. It is passed as a plain
// function value rather than stored on the Encoder, so concurrent
// tile goroutines never alias a captured callback environment; nil is
// a valid no-op.
type ProgressFunc func(ProgressEvent)

func (f ProgressFunc) emit(ev ProgressEvent) {
	if f != nil {
		f(ev)
	}
}
