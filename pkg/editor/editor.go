package editor

import (
	"context"
	"image"
	"io"
	"math"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/retouch/pkg/effect"
	"github.com/matzehuels/retouch/pkg/errors"
	"github.com/matzehuels/retouch/pkg/history"
	"github.com/matzehuels/retouch/pkg/imagestate"
	"github.com/matzehuels/retouch/pkg/render"
)

// DefaultMaxUploadBytes is the upload limit when Options leaves it unset.
const DefaultMaxUploadBytes = 2 * errors.MiB

// Zoom limits for previews.
const (
	ZoomStep = 0.1
	MinZoom  = 1.0
	MaxZoom  = 5.0
)

// Options configures a Session.
type Options struct {
	// MaxUploadBytes caps upload size. Zero means DefaultMaxUploadBytes.
	MaxUploadBytes int64

	// Processor computes effects. Nil means effect.NewImagingProcessor().
	Processor effect.Processor

	// Logger receives session events. Nil means log.Default().
	Logger *log.Logger

	// Decoder overrides how the surface decodes states (tests).
	Decoder render.DecodeFunc
}

// Status summarizes a session for enabling and disabling controls.
type Status struct {
	HasImage         bool    `json:"has_image"`
	Filename         string  `json:"filename,omitempty"`
	MIMEType         string  `json:"mime_type,omitempty"`
	Width            int     `json:"width,omitempty"`
	Height           int     `json:"height,omitempty"`
	Cursor           int     `json:"cursor"`
	Length           int     `json:"length"`
	CanUndo          bool    `json:"can_undo"`
	CanRedo          bool    `json:"can_redo"`
	Cropping         bool    `json:"cropping"`
	Zoom             float64 `json:"zoom"`
	EffectsAvailable bool    `json:"effects_available"`
}

// Session is one user's edit session. It is safe for concurrent use;
// edits are serialized in call order.
type Session struct {
	maxBytes  int64
	processor effect.Processor
	logger    *log.Logger
	decoder   render.DecodeFunc

	// opMu serializes edits, including the effect computation.
	opMu sync.Mutex

	mu       sync.Mutex
	hist     *history.Manager
	surface  *render.Surface
	filename string
	cropping bool
	zoom     float64
}

// New creates a session with no image loaded.
func New(opts Options) *Session {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.Processor == nil {
		opts.Processor = effect.NewImagingProcessor()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Session{
		maxBytes:  opts.MaxUploadBytes,
		processor: opts.Processor,
		logger:    opts.Logger,
		decoder:   opts.Decoder,
		zoom:      MinZoom,
	}
}

// MaxUploadBytes returns the configured upload limit.
func (s *Session) MaxUploadBytes() int64 { return s.maxBytes }

// Upload reads an image from r and starts a new history seeded with it,
// replacing any previous image. On failure the session is unchanged.
func (s *Session) Upload(ctx context.Context, filename string, r io.Reader) error {
	if filename != "" {
		if err := errors.ValidateUploadFilename(filename); err != nil {
			return err
		}
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "read upload")
	}
	if err := errors.ValidateUploadSize(int64(len(data)), s.maxBytes); err != nil {
		s.logger.Warn("upload rejected", "file", filename, "err", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	state, err := imagestate.New(data)
	if err != nil {
		s.logger.Warn("upload rejected", "file", filename, "err", err)
		return err
	}
	cfg, err := state.Config()
	if err != nil {
		s.logger.Warn("upload rejected", "file", filename, "err", err)
		return err
	}
	if _, err := state.Decode(); err != nil {
		s.logger.Warn("upload rejected", "file", filename, "err", err)
		return err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	opts := []render.Option{render.WithLogger(s.logger)}
	if s.decoder != nil {
		opts = append(opts, render.WithDecoder(s.decoder))
	}
	surface := render.NewSurface(opts...)
	hist := history.NewManager(state, surface)

	s.mu.Lock()
	old := s.surface
	s.hist, s.surface = hist, surface
	s.filename = filename
	s.cropping = false
	s.zoom = MinZoom
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	s.logger.Info("image uploaded", "file", filename, "mime", state.MIMEType(),
		"width", cfg.Width, "height", cfg.Height, "bytes", state.Len())
	return nil
}

// ApplyEffect applies a non-modal effect (grayscale or sepia) to the
// current state and commits the result.
func (s *Session) ApplyEffect(ctx context.Context, kind effect.Kind) error {
	if kind == effect.KindCrop {
		return errors.New(errors.ErrCodeInvalidEffect, "crop is applied through cropping mode")
	}
	if _, err := effect.ParseKind(string(kind)); err != nil {
		return err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	hist, err := s.editable()
	if err != nil {
		return err
	}
	return s.apply(ctx, hist, effect.Effect{Kind: kind})
}

// CommitResults commits states computed outside the session, such as a
// batch run of the effect pipeline starting from Current(). Each state must
// decode; if one does not, nothing is committed.
func (s *Session) CommitResults(states ...imagestate.ImageState) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	hist, err := s.editable()
	if err != nil {
		return err
	}
	for i, st := range states {
		if st.IsZero() {
			return errors.New(errors.ErrCodeInvalidInput, "result %d is empty", i+1)
		}
		if _, err := st.Config(); err != nil {
			return errors.Wrap(errors.ErrCodeDecodeFailure, err, "result %d", i+1)
		}
	}
	for _, st := range states {
		hist.Commit(st)
	}
	s.logger.Debug("committed results", "count", len(states), "cursor", hist.Cursor())
	return nil
}

// BeginCrop enters cropping mode. Entering it twice is a no-op.
func (s *Session) BeginCrop() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hist == nil {
		return errNoImage()
	}
	if !s.processor.Available() {
		err := effect.ErrUnavailable(s.processor)
		s.logger.Warn("crop requested while effects are unavailable", "err", err)
		return err
	}
	s.cropping = true
	return nil
}

// ConfirmCrop crops the current state to rect (image coordinates, clamped
// to the image) and leaves cropping mode. On failure cropping mode stays
// active and history is unchanged.
func (s *Session) ConfirmCrop(ctx context.Context, rect image.Rectangle) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	hist, cropping := s.hist, s.cropping
	s.mu.Unlock()
	if hist == nil {
		return errNoImage()
	}
	if !cropping {
		return errors.New(errors.ErrCodeCropInactive, "not in cropping mode")
	}

	if err := s.apply(ctx, hist, effect.Effect{Kind: effect.KindCrop, Rect: rect}); err != nil {
		return err
	}
	s.mu.Lock()
	s.cropping = false
	s.mu.Unlock()
	return nil
}

// CancelCrop leaves cropping mode without committing.
func (s *Session) CancelCrop() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hist == nil {
		return errNoImage()
	}
	s.cropping = false
	return nil
}

// Undo steps back one state. It reports false at the original.
func (s *Session) Undo() (bool, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	hist, err := s.editable()
	if err != nil {
		return false, err
	}
	_, ok := hist.Undo()
	return ok, nil
}

// Redo steps forward one state. It reports false at the newest state.
func (s *Session) Redo() (bool, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	hist, err := s.editable()
	if err != nil {
		return false, err
	}
	_, ok := hist.Redo()
	return ok, nil
}

// Reset discards all edits and returns to the uploaded image.
func (s *Session) Reset() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	hist, err := s.editable()
	if err != nil {
		return err
	}
	hist.Reset()
	return nil
}

// Current returns the state the history points at.
func (s *Session) Current() (imagestate.ImageState, error) {
	s.mu.Lock()
	hist := s.hist
	s.mu.Unlock()
	if hist == nil {
		return imagestate.ImageState{}, errNoImage()
	}
	return hist.Current(), nil
}

// History returns a snapshot of the edit history.
func (s *Session) History() (history.History, error) {
	s.mu.Lock()
	hist := s.hist
	s.mu.Unlock()
	if hist == nil {
		return history.History{}, errNoImage()
	}
	return hist.Snapshot(), nil
}

// Download waits for pending paints and returns the painted surface as PNG
// together with the file name to save it under.
func (s *Session) Download(ctx context.Context) (string, []byte, error) {
	surface, err := s.settled(ctx)
	if err != nil {
		return "", nil, err
	}
	data, err := surface.Download()
	if err != nil {
		return "", nil, err
	}
	return render.DownloadFilename, data, nil
}

// Preview waits for pending paints and returns the surface scaled by the
// session's zoom factor. If the newest paint failed, the last good frame
// is returned.
func (s *Session) Preview(ctx context.Context) (*image.RGBA, error) {
	return s.PreviewAt(ctx, s.Zoom())
}

// PreviewAt is Preview with an explicit zoom, clamped to [MinZoom, MaxZoom].
// It does not change the session's zoom.
func (s *Session) PreviewAt(ctx context.Context, zoom float64) (*image.RGBA, error) {
	surface, err := s.waitSurface(ctx)
	if err != nil {
		return nil, err
	}
	return surface.Preview(min(max(zoom, MinZoom), MaxZoom))
}

// waitSurface returns the surface once its newest paint request has completed.
func (s *Session) waitSurface(ctx context.Context) (*render.Surface, error) {
	s.mu.Lock()
	surface := s.surface
	s.mu.Unlock()
	if surface == nil {
		return nil, errNoImage()
	}
	if err := surface.Wait(ctx); err != nil {
		return nil, err
	}
	return surface, nil
}

// settled is waitSurface that also fails if the newest paint could not decode.
func (s *Session) settled(ctx context.Context) (*render.Surface, error) {
	surface, err := s.waitSurface(ctx)
	if err != nil {
		return nil, err
	}
	if err := surface.Err(); err != nil {
		return nil, err
	}
	return surface, nil
}

// ZoomIn increases the preview zoom by one step and returns the new value.
func (s *Session) ZoomIn() float64 { return s.adjustZoom(ZoomStep) }

// ZoomOut decreases the preview zoom by one step and returns the new value.
func (s *Session) ZoomOut() float64 { return s.adjustZoom(-ZoomStep) }

func (s *Session) adjustZoom(delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	z := math.Round((s.zoom+delta)*10) / 10
	s.zoom = min(max(z, MinZoom), MaxZoom)
	return s.zoom
}

// Zoom returns the preview zoom factor.
func (s *Session) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

// Status reports the session state.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		HasImage:         s.hist != nil,
		Filename:         s.filename,
		Cropping:         s.cropping,
		Zoom:             s.zoom,
		EffectsAvailable: s.processor.Available(),
	}
	hist := s.hist
	s.mu.Unlock()

	if hist == nil {
		return st
	}
	h := hist.Snapshot()
	cur := h.Current()
	st.Cursor, st.Length = h.Cursor(), h.Len()
	st.CanUndo, st.CanRedo = h.CanUndo(), h.CanRedo()
	st.MIMEType = cur.MIMEType()
	if cfg, err := cur.Config(); err == nil {
		st.Width, st.Height = cfg.Width, cfg.Height
	}
	return st
}

// Close discards the image and its history. The session can be reused
// with a new Upload.
func (s *Session) Close() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	surface := s.surface
	s.hist, s.surface = nil, nil
	s.filename = ""
	s.cropping = false
	s.zoom = MinZoom
	s.mu.Unlock()

	if surface != nil {
		surface.Close()
	}
}

// editable returns the history manager if edits are currently allowed.
func (s *Session) editable() (*history.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hist == nil {
		return nil, errNoImage()
	}
	if s.cropping {
		return nil, errors.New(errors.ErrCodeCropActive, "finish or cancel the crop first")
	}
	return s.hist, nil
}

// apply computes e from the current state and commits it. opMu must be held.
func (s *Session) apply(ctx context.Context, hist *history.Manager, e effect.Effect) error {
	if !s.processor.Available() {
		err := effect.ErrUnavailable(s.processor)
		s.logger.Warn("effect requested while unavailable", "effect", e, "err", err)
		return err
	}

	out, err := s.processor.Apply(ctx, hist.Current(), e)
	if err != nil {
		s.logger.Warn("effect failed", "effect", e, "err", err)
		return err
	}
	hist.Commit(out)
	s.logger.Debug("effect committed", "effect", e, "cursor", hist.Cursor(), "len", hist.Len())
	return nil
}

func errNoImage() error {
	return errors.New(errors.ErrCodeNoImage, "no image loaded")
}
