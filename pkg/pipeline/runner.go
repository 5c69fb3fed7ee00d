package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/retouch/pkg/cache"
	"github.com/matzehuels/retouch/pkg/effect"
	"github.com/matzehuels/retouch/pkg/imagestate"
	"github.com/matzehuels/retouch/pkg/observability"
)

const keyTypeEffect = "effect"

// Runner encapsulates effect execution with caching.
// Both CLI and API use it so cache behavior is identical everywhere.
//
// The Runner is stateless except for its collaborators; multiple goroutines
// can safely share one Runner.
type Runner struct {
	Processor effect.Processor
	Cache     cache.Cache
	Keyer     cache.Keyer
	Logger    *log.Logger
	TTL       time.Duration
}

// NewRunner creates a runner around p.
// If c is nil, a NullCache is used (caching disabled).
// If keyer is nil, a DefaultKeyer is used.
func NewRunner(p effect.Processor, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Processor: p,
		Cache:     c,
		Keyer:     keyer,
		Logger:    logger,
		TTL:       cache.TTLEffect,
	}
}

// Available reports whether the wrapped processor is ready.
func (r *Runner) Available() bool {
	return r.Processor != nil && r.Processor.Available()
}

// UnavailableReason passes through the wrapped processor's reason.
func (r *Runner) UnavailableReason() string {
	if p, ok := r.Processor.(interface{ UnavailableReason() string }); ok {
		return p.UnavailableReason()
	}
	return ""
}

// Apply computes e on src, consulting the cache first.
func (r *Runner) Apply(ctx context.Context, src imagestate.ImageState, e effect.Effect) (imagestate.ImageState, error) {
	out, _, err := r.ApplyWithCacheInfo(ctx, src, e)
	return out, err
}

// ApplyWithCacheInfo is Apply that also reports whether the cache answered.
func (r *Runner) ApplyWithCacheInfo(ctx context.Context, src imagestate.ImageState, e effect.Effect) (imagestate.ImageState, bool, error) {
	hooks := observability.Effect()
	hooks.OnEffectStart(ctx, string(e.Kind))
	start := time.Now()

	out, hit, err := r.apply(ctx, src, e)
	hooks.OnEffectComplete(ctx, string(e.Kind), time.Since(start), hit, err)
	return out, hit, err
}

func (r *Runner) apply(ctx context.Context, src imagestate.ImageState, e effect.Effect) (imagestate.ImageState, bool, error) {
	if !r.Available() {
		return imagestate.ImageState{}, false, effect.ErrUnavailable(r)
	}
	if err := e.Validate(); err != nil {
		return imagestate.ImageState{}, false, err
	}

	key := r.Keyer.EffectKey(src.Hash(), e.KeyOpts())
	if data, hit, err := r.Cache.Get(ctx, key); err != nil {
		r.Logger.Warn("effect cache read failed", "effect", e, "err", err)
	} else if hit {
		if st, err := imagestate.New(data); err == nil {
			observability.Cache().OnCacheHit(ctx, keyTypeEffect)
			return st, true, nil
		}
		// Corrupt entry: recompute and overwrite.
		r.Logger.Debug("discarding unreadable cache entry", "effect", e)
	}
	observability.Cache().OnCacheMiss(ctx, keyTypeEffect)

	out, err := r.Processor.Apply(ctx, src, e)
	if err != nil {
		return imagestate.ImageState{}, false, err
	}
	if out.IsZero() {
		return imagestate.ImageState{}, false, fmt.Errorf("effect %s produced no image", e)
	}

	if err := r.Cache.Set(ctx, key, out.Bytes(), r.TTL); err != nil {
		r.Logger.Warn("effect cache write failed", "effect", e, "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, keyTypeEffect, out.Len())
	}
	return out, false, nil
}

// Execute applies effects in order starting from src.
// It stops at the first failure and returns that error; no partial Result is returned.
func (r *Runner) Execute(ctx context.Context, src imagestate.ImageState, effects []effect.Effect) (*Result, error) {
	start := time.Now()
	result := &Result{
		States:  []imagestate.ImageState{src},
		Effects: make([]effect.Effect, 0, len(effects)),
	}

	cur := src
	for i, e := range effects {
		out, hit, err := r.ApplyWithCacheInfo(ctx, cur, e)
		if err != nil {
			return nil, fmt.Errorf("effect %d (%s): %w", i+1, e, err)
		}
		if hit {
			result.Stats.CacheHits++
		}
		result.States = append(result.States, out)
		result.Effects = append(result.Effects, e)
		cur = out

		r.Logger.Debug("applied effect", "effect", e, "cached", hit)
	}

	result.Stats.Applied = len(result.Effects)
	result.Stats.Duration = time.Since(start)
	r.Logger.Info("applied effects",
		"count", result.Stats.Applied,
		"cache_hits", result.Stats.CacheHits,
		"duration", result.Stats.Duration)
	return result, nil
}

var _ effect.Processor = (*Runner)(nil)
