package formats

import (
	"context"
)

// ProgressFunc receives a monotonically increasing fraction in [0,1] as the
// pipeline stages of an import complete. A nil callback is always allowed.
type ProgressFunc func(fraction float64)

// Format converts one source dataset (a directory or archive path) into the
// target model and loads it. The GTFS and BVG-XML pipelines plug in behind
// the same interface; only the VDV one lives in this repository.
type Format interface {
	Import(ctx context.Context, source string, progress ProgressFunc) error
}
