package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/retouch/pkg/cache"
	"github.com/matzehuels/retouch/pkg/effect"
	rterrors "github.com/matzehuels/retouch/pkg/errors"
	"github.com/matzehuels/retouch/pkg/imagestate"
)

func testImage(t *testing.T, w, h int) imagestate.ImageState {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(10 * x), G: uint8(10 * y), B: 50, A: 255})
		}
	}
	s, err := imagestate.FromImage(img)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func quiet() *log.Logger { return log.New(io.Discard) }

// countingProcessor counts calls to the wrapped processor.
type countingProcessor struct {
	inner effect.Processor
	mu    sync.Mutex
	calls int
}

func (c *countingProcessor) Apply(ctx context.Context, s imagestate.ImageState, e effect.Effect) (imagestate.ImageState, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.Apply(ctx, s, e)
}

func (c *countingProcessor) Available() bool { return c.inner.Available() }

// memCache is a minimal in-memory Cache for tests.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	fail bool
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, false, errors.New("cache down")
	}
	d, ok := m.data[key]
	return d, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("cache down")
	}
	m.data[key] = data
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memCache) Close() error { return nil }

var _ cache.Cache = (*memCache)(nil)

func TestRunnerCachesResults(t *testing.T) {
	proc := &countingProcessor{inner: effect.NewImagingProcessor()}
	r := NewRunner(proc, newMemCache(), nil, quiet())
	src := testImage(t, 4, 4)
	ctx := context.Background()

	first, hit, err := r.ApplyWithCacheInfo(ctx, src, effect.Grayscale())
	if err != nil || hit {
		t.Fatalf("first apply: hit %v err %v", hit, err)
	}
	second, hit, err := r.ApplyWithCacheInfo(ctx, src, effect.Grayscale())
	if err != nil || !hit {
		t.Fatalf("second apply: hit %v err %v", hit, err)
	}
	if !first.Equal(second) {
		t.Error("cached result differs from computed result")
	}
	if proc.calls != 1 {
		t.Errorf("processor called %d times, want 1", proc.calls)
	}

	// A different effect on the same state misses.
	if _, hit, _ := r.ApplyWithCacheInfo(ctx, src, effect.Sepia()); hit {
		t.Error("sepia should not hit the grayscale entry")
	}
}

func TestRunnerCacheFailureDegrades(t *testing.T) {
	c := newMemCache()
	c.fail = true
	r := NewRunner(effect.NewImagingProcessor(), c, nil, quiet())

	out, err := r.Apply(context.Background(), testImage(t, 2, 2), effect.Sepia())
	if err != nil {
		t.Fatalf("Apply with failing cache: %v", err)
	}
	if out.IsZero() {
		t.Error("expected a state")
	}
}

func TestRunnerCorruptEntryRecomputed(t *testing.T) {
	c := newMemCache()
	r := NewRunner(effect.NewImagingProcessor(), c, nil, quiet())
	src := testImage(t, 2, 2)
	key := r.Keyer.EffectKey(src.Hash(), effect.Grayscale().KeyOpts())
	c.data[key] = []byte("not an image")

	out, hit, err := r.ApplyWithCacheInfo(context.Background(), src, effect.Grayscale())
	if err != nil || hit {
		t.Fatalf("hit %v err %v", hit, err)
	}
	if _, err := out.Decode(); err != nil {
		t.Errorf("recomputed state undecodable: %v", err)
	}
}

func TestRunnerUnavailable(t *testing.T) {
	tests := []struct {
		name string
		p    effect.Processor
	}{
		{"unavailable processor", effect.Unavailable{Reason: "not loaded"}},
		{"nil processor", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunner(tt.p, nil, nil, quiet())
			if r.Available() {
				t.Error("Available() = true")
			}
			out, err := r.Apply(context.Background(), testImage(t, 1, 1), effect.Grayscale())
			if !rterrors.Is(err, rterrors.ErrCodeEffectUnavailable) {
				t.Errorf("error = %v", err)
			}
			if !out.IsZero() {
				t.Error("unavailable runner returned a state")
			}
		})
	}
}

func TestRunnerUnavailableSkipsProcessor(t *testing.T) {
	proc := &countingProcessor{inner: effect.Unavailable{}}
	r := NewRunner(proc, newMemCache(), nil, quiet())
	if _, err := r.Apply(context.Background(), testImage(t, 1, 1), effect.Sepia()); !rterrors.Is(err, rterrors.ErrCodeEffectUnavailable) {
		t.Errorf("error = %v", err)
	}
	if proc.calls != 0 {
		t.Errorf("processor called %d times while unavailable", proc.calls)
	}

	r = NewRunner(effect.Unavailable{Reason: "backend warming up"}, nil, nil, quiet())
	_, err := r.Apply(context.Background(), testImage(t, 1, 1), effect.Sepia())
	if got := rterrors.UserMessage(err); got != "backend warming up" {
		t.Errorf("message = %q, want the processor's reason", got)
	}
}

func TestRunnerValidatesBeforeCache(t *testing.T) {
	proc := &countingProcessor{inner: effect.NewImagingProcessor()}
	r := NewRunner(proc, newMemCache(), nil, quiet())
	_, err := r.Apply(context.Background(), testImage(t, 2, 2), effect.Crop(0, 0, 0, 0))
	if !rterrors.Is(err, rterrors.ErrCodeInvalidCrop) {
		t.Errorf("error = %v", err)
	}
	if proc.calls != 0 {
		t.Error("invalid effect reached the processor")
	}
}

func TestExecute(t *testing.T) {
	r := NewRunner(effect.NewImagingProcessor(), newMemCache(), nil, quiet())
	src := testImage(t, 10, 10)
	effects := []effect.Effect{effect.Grayscale(), effect.Sepia(), effect.Crop(0, 0, 5, 4)}

	res, err := r.Execute(context.Background(), src, effects)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if len(res.States) != 4 {
		t.Fatalf("len(States) = %d, want 4", len(res.States))
	}
	if !res.States[0].Equal(src) {
		t.Error("States[0] should be the input")
	}
	if res.Stats.Applied != 3 || res.Stats.CacheHits != 0 {
		t.Errorf("Stats = %+v", res.Stats)
	}
	cfg, err := res.Final().Config()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 5 || cfg.Height != 4 {
		t.Errorf("final size = %dx%d, want 5x4", cfg.Width, cfg.Height)
	}

	again, err := r.Execute(context.Background(), src, effects)
	if err != nil {
		t.Fatal(err)
	}
	if again.Stats.CacheHits != 3 {
		t.Errorf("second run CacheHits = %d, want 3", again.Stats.CacheHits)
	}
	if !again.Final().Equal(res.Final()) {
		t.Error("cached run produced a different final state")
	}
}

func TestExecuteStopsAtFailure(t *testing.T) {
	r := NewRunner(effect.NewImagingProcessor(), nil, nil, quiet())
	_, err := r.Execute(context.Background(), testImage(t, 4, 4), []effect.Effect{
		effect.Grayscale(),
		effect.Crop(50, 50, 2, 2),
		effect.Sepia(),
	})
	if !rterrors.Is(err, rterrors.ErrCodeInvalidCrop) {
		t.Errorf("error = %v, want INVALID_CROP", err)
	}
}

func TestExecuteNoEffects(t *testing.T) {
	r := NewRunner(effect.NewImagingProcessor(), nil, nil, quiet())
	src := testImage(t, 2, 2)
	res, err := r.Execute(context.Background(), src, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Final().Equal(src) || res.Stats.Applied != 0 {
		t.Errorf("unexpected result: %+v", res.Stats)
	}
}
