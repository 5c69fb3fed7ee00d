package render

import (
	"bytes"
	"context"
	"image"
	"image/draw"
	"image/png"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	xdraw "golang.org/x/image/draw"

	"github.com/matzehuels/retouch/pkg/errors"
	"github.com/matzehuels/retouch/pkg/history"
	"github.com/matzehuels/retouch/pkg/imagestate"
	"github.com/matzehuels/retouch/pkg/observability"
)

// DownloadFilename is the file name offered for downloads.
const DownloadFilename = "processed-image.png"

// Sink consumes states to display.
type Sink interface {
	Paint(seq uint64, state imagestate.ImageState)
}

// DecodeFunc decodes a state into pixels.
type DecodeFunc func(imagestate.ImageState) (image.Image, error)

// Option configures a Surface.
type Option func(*Surface)

// WithDecoder replaces the decoder (default imagestate.ImageState.Decode).
func WithDecoder(fn DecodeFunc) Option {
	return func(s *Surface) { s.decode = fn }
}

// WithLogger sets the logger used for decode failures.
func WithLogger(l *log.Logger) Option {
	return func(s *Surface) { s.logger = l }
}

// WithErrorHandler is called for every decode failure of a still-current request.
func WithErrorHandler(fn func(seq uint64, err error)) Option {
	return func(s *Surface) { s.onError = fn }
}

// Frame is a painted surface together with the request that produced it.
type Frame struct {
	Seq   uint64
	Image *image.RGBA
}

// Surface is the off-screen drawing target.
// It implements Sink and history.Observer and is safe for concurrent use.
type Surface struct {
	decode  DecodeFunc
	logger  *log.Logger
	onError func(uint64, error)

	mu      sync.Mutex
	latest  uint64 // highest sequence requested
	painted uint64 // sequence of the frame on the surface
	img     *image.RGBA
	lastErr error
	closed  bool

	inflight int
	idle     chan struct{} // closed when inflight drops to zero
}

// NewSurface creates an empty surface.
func NewSurface(opts ...Option) *Surface {
	s := &Surface{
		decode: imagestate.ImageState.Decode,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Observe paints the state of a history transition.
func (s *Surface) Observe(t history.Transition) {
	s.Paint(t.Seq, t.State)
}

// Paint requests that state be painted. It returns immediately; decoding
// runs on its own goroutine. Requests with a sequence not newer than one
// already requested are ignored.
func (s *Surface) Paint(seq uint64, state imagestate.ImageState) {
	s.mu.Lock()
	if s.closed || seq <= s.latest {
		s.mu.Unlock()
		return
	}
	s.latest = seq
	if s.inflight == 0 {
		s.idle = make(chan struct{})
	}
	s.inflight++
	s.mu.Unlock()

	go func() {
		start := time.Now()
		img, err := s.decode(state)
		s.complete(seq, img, err, time.Since(start))
	}()
}

func (s *Surface) complete(seq uint64, img image.Image, err error, took time.Duration) {
	s.mu.Lock()
	s.releaseLocked()
	if s.closed || seq != s.latest {
		latest := s.latest
		s.mu.Unlock()
		observability.Render().OnStale(seq, latest)
		return
	}
	if err != nil {
		if !errors.Is(err, errors.ErrCodeDecodeFailure) {
			err = errors.Wrap(errors.ErrCodeDecodeFailure, err, "paint state %d", seq)
		}
		s.lastErr = err
		s.mu.Unlock()

		s.logger.Error("decode failed, keeping last frame", "seq", seq, "err", err)
		observability.Render().OnDecodeError(seq, err)
		if s.onError != nil {
			s.onError(seq, err)
		}
		return
	}

	// Resize the surface to the natural dimensions, then paint.
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	s.img = dst
	s.painted = seq
	s.lastErr = nil
	s.mu.Unlock()

	observability.Render().OnPaint(seq, b.Dx(), b.Dy(), took)
}

// releaseLocked marks one decode finished; s.mu must be held.
func (s *Surface) releaseLocked() {
	s.inflight--
	if s.inflight == 0 {
		close(s.idle)
	}
}

// Wait blocks until no decode is in flight or ctx is done.
func (s *Surface) Wait(ctx context.Context) error {
	s.mu.Lock()
	if s.inflight == 0 {
		s.mu.Unlock()
		return nil
	}
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Frame returns a copy of the painted frame, or false before the first paint.
func (s *Surface) Frame() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return Frame{}, false
	}
	cp := image.NewRGBA(s.img.Rect)
	copy(cp.Pix, s.img.Pix)
	return Frame{Seq: s.painted, Image: cp}, true
}

// Bounds returns the surface size (empty before the first paint).
func (s *Surface) Bounds() image.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return image.Rectangle{}
	}
	return s.img.Rect
}

// Current reports whether the painted frame belongs to the newest request.
func (s *Surface) Current() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img != nil && s.painted == s.latest
}

// Err returns the decode error of the newest request, if any.
func (s *Surface) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Download encodes the painted frame as PNG.
func (s *Surface) Download() ([]byte, error) {
	f, ok := s.Frame()
	if !ok {
		return nil, errors.New(errors.ErrCodeDecodeFailure, "nothing has been painted yet")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, f.Image); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode png")
	}
	return buf.Bytes(), nil
}

// Preview returns the painted frame scaled by zoom (values below 1 are treated as 1).
func (s *Surface) Preview(zoom float64) (*image.RGBA, error) {
	f, ok := s.Frame()
	if !ok {
		return nil, errors.New(errors.ErrCodeDecodeFailure, "nothing has been painted yet")
	}
	if zoom <= 1 {
		return f.Image, nil
	}
	b := f.Image.Bounds()
	w := int(float64(b.Dx())*zoom + 0.5)
	h := int(float64(b.Dy())*zoom + 0.5)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), f.Image, b, xdraw.Src, nil)
	return dst, nil
}

// Close drops the frame and ignores all further requests.
// In-flight decodes finish in the background and are discarded.
func (s *Surface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.img = nil
	s.lastErr = nil
}

var (
	_ Sink             = (*Surface)(nil)
	_ history.Observer = (*Surface)(nil)
)
