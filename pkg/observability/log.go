package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks implements every hook interface by writing debug-level log lines.
// Decode failures are logged as warnings since they surface to users.
type LogHooks struct {
	logger *log.Logger
}

// NewLogHooks creates hooks that log through l (log.Default() if nil).
func NewLogHooks(l *log.Logger) *LogHooks {
	if l == nil {
		l = log.Default()
	}
	return &LogHooks{logger: l}
}

// Register installs h for every hook category.
func (h *LogHooks) Register() {
	SetHistoryHooks(h)
	SetEffectHooks(h)
	SetRenderHooks(h)
	SetCacheHooks(h)
	SetHTTPHooks(h)
}

func (h *LogHooks) OnTransition(op string, seq uint64, cursor, length int) {
	h.logger.Debug("history", "op", op, "seq", seq, "cursor", cursor, "len", length)
}

func (h *LogHooks) OnEffectStart(_ context.Context, kind string) {
	h.logger.Debug("effect start", "kind", kind)
}

func (h *LogHooks) OnEffectComplete(_ context.Context, kind string, d time.Duration, cached bool, err error) {
	if err != nil {
		h.logger.Warn("effect failed", "kind", kind, "duration", d, "err", err)
		return
	}
	h.logger.Debug("effect done", "kind", kind, "duration", d, "cached", cached)
}

func (h *LogHooks) OnPaint(seq uint64, w, hgt int, d time.Duration) {
	h.logger.Debug("paint", "seq", seq, "size", [2]int{w, hgt}, "duration", d)
}

func (h *LogHooks) OnStale(seq, latest uint64) {
	h.logger.Debug("stale paint dropped", "seq", seq, "latest", latest)
}

func (h *LogHooks) OnDecodeError(seq uint64, err error) {
	h.logger.Warn("paint decode failed", "seq", seq, "err", err)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *LogHooks) OnRequest(_ context.Context, method, path string) {
	h.logger.Debug("request", "method", method, "path", path)
}

func (h *LogHooks) OnResponse(_ context.Context, method, path string, status int, d time.Duration) {
	h.logger.Info("response", "method", method, "path", path, "status", status, "duration", d)
}

var (
	_ HistoryHooks = (*LogHooks)(nil)
	_ EffectHooks  = (*LogHooks)(nil)
	_ RenderHooks  = (*LogHooks)(nil)
	_ CacheHooks   = (*LogHooks)(nil)
	_ HTTPHooks    = (*LogHooks)(nil)
)
