// Package pipeline runs effects with caching and instrumentation.
//
// The [Runner] sits between an editing session and the effect backend. It
// implements [effect.Processor] itself, so sessions use it exactly like the
// backend it wraps, and adds:
//
//  1. Cache lookup keyed by the input state's content hash and the effect
//  2. Observability hooks around each computation
//  3. Batch execution of an effect sequence ([Runner.Execute])
//
// # Usage
//
//	runner := pipeline.NewRunner(effect.NewImagingProcessor(), c, nil, logger)
//	result, err := runner.Execute(ctx, upload, []effect.Effect{
//	    effect.Grayscale(),
//	    effect.Crop(0, 0, 100, 100),
//	})
//	final := result.Final()
//
// Cache failures are logged and otherwise ignored: a cache outage degrades to
// recomputation, never to a failed edit.
package pipeline

import (
	"time"

	"github.com/matzehuels/retouch/pkg/effect"
	"github.com/matzehuels/retouch/pkg/imagestate"
)

// Result contains the outputs of an Execute run.
type Result struct {
	// States holds the input followed by one state per applied effect.
	States []imagestate.ImageState

	// Effects are the effects that were applied, in order.
	Effects []effect.Effect

	// Stats contains timing and cache information.
	Stats Stats
}

// Final returns the last state produced (the input if no effect ran).
func (r *Result) Final() imagestate.ImageState {
	return r.States[len(r.States)-1]
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Applied   int
	CacheHits int
	Duration  time.Duration
}
