// Package server implements the retouch HTTP API.
//
// Every edit session lives in a [session.Store] under a UUID; the routes
// map one-to-one onto [editor.Session] methods. Responses are JSON except
// for image bodies. Errors carry a code from pkg/errors and an HTTP status
// chosen by [httputil.StatusFor].
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/retouch/pkg/config"
	"github.com/matzehuels/retouch/pkg/editor"
	"github.com/matzehuels/retouch/pkg/effect"
	"github.com/matzehuels/retouch/pkg/session"
)

// readHeaderTimeout bounds slow clients sending headers.
const readHeaderTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	// Config supplies addresses, timeouts and limits. Nil means config.Default().
	Config *config.Config

	// Processor computes effects for every session (usually a pipeline.Runner).
	// Nil means effect.NewImagingProcessor().
	Processor effect.Processor

	// Store holds sessions. Nil means an in-memory store built from Config.
	Store session.Store

	// Logger receives request and lifecycle logs. Nil means log.Default().
	Logger *log.Logger
}

// Server serves the edit-session API.
type Server struct {
	cfg    *config.Config
	store  session.Store
	logger *log.Logger
	router chi.Router
}

// New creates a server. It does not start listening.
func New(opts Options) *Server {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Processor == nil {
		opts.Processor = effect.NewImagingProcessor()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Store == nil {
		cfg, proc, logger := opts.Config, opts.Processor, opts.Logger
		opts.Store = session.NewMemoryStore(cfg.Session.TTL, func() *editor.Session {
			return editor.New(editor.Options{
				MaxUploadBytes: cfg.Upload.MaxBytes,
				Processor:      proc,
				Logger:         logger,
			})
		})
	}

	s := &Server{
		cfg:    opts.Config,
		store:  opts.Store,
		logger: opts.Logger,
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler for all routes.
func (s *Server) Handler() http.Handler { return s.router }

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully and
// closes every session. Expired sessions are swept in the background.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		s.sweep(gctx)
		return nil
	})

	err := g.Wait()
	if cerr := s.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// sweep removes expired sessions on every cleanup tick until ctx ends.
func (s *Server) sweep(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Session.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.Cleanup(ctx)
			if err != nil {
				s.logger.Warn("session cleanup failed", "err", err)
				continue
			}
			if n > 0 {
				s.logger.Debug("expired sessions removed", "count", n)
			}
		}
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/version", s.handleVersion)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.withSession(s.handleStatus))
			r.Delete("/", s.handleDelete)

			r.Get("/image", s.withSession(s.handleImage))
			r.Put("/image", s.withSession(s.handleReplace))
			r.Get("/preview", s.withSession(s.handlePreview))
			r.Get("/download", s.withSession(s.handleDownload))

			r.Post("/effects/{kind}", s.withSession(s.handleEffect))

			r.Post("/crop", s.withSession(s.handleCropBegin))
			r.Post("/crop/confirm", s.withSession(s.handleCropConfirm))
			r.Delete("/crop", s.withSession(s.handleCropCancel))

			r.Post("/undo", s.withSession(s.handleUndo))
			r.Post("/redo", s.withSession(s.handleRedo))
			r.Post("/reset", s.withSession(s.handleReset))

			r.Post("/zoom/in", s.withSession(s.handleZoomIn))
			r.Post("/zoom/out", s.withSession(s.handleZoomOut))
		})
	})
	return r
}
