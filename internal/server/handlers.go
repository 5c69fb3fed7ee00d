package server

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"image"
	"image/png"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/retouch/pkg/buildinfo"
	"github.com/matzehuels/retouch/pkg/editor"
	"github.com/matzehuels/retouch/pkg/effect"
	"github.com/matzehuels/retouch/pkg/errors"
	"github.com/matzehuels/retouch/pkg/httputil"
	"github.com/matzehuels/retouch/pkg/session"
)

// uploadField is the multipart field carrying the image.
const uploadField = "image"

// multipartOverhead is the allowance for multipart framing on top of the
// upload limit.
const multipartOverhead = 64 << 10

// sessionResponse is returned by every endpoint that reports session state.
type sessionResponse struct {
	ID      string `json:"id"`
	Changed *bool  `json:"changed,omitempty"`
	editor.Status
}

// cropRequest is the body of POST /sessions/{id}/crop/confirm.
type cropRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session) error

// withSession resolves {id} and writes any error the handler returns.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := h(w, r, sess); err != nil {
			s.writeError(w, r, err)
		}
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httputil.WriteError(w, err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
		return
	}
	s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
}

func writeStatus(w http.ResponseWriter, status int, sess *session.Session, changed *bool) error {
	return httputil.WriteJSON(w, status, sessionResponse{
		ID:      sess.ID,
		Changed: changed,
		Status:  sess.Editor.Status(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	_ = httputil.WriteJSON(w, http.StatusOK, buildinfo.Get())
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Create(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.upload(w, r, sess); err != nil {
		_ = s.store.Delete(r.Context(), sess.ID)
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+sess.ID)
	_ = writeStatus(w, http.StatusCreated, sess, nil)
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	if err := s.upload(w, r, sess); err != nil {
		return err
	}
	return writeStatus(w, http.StatusOK, sess, nil)
}

// upload streams the image part of a multipart body into the editor.
func (s *Server) upload(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	limit := sess.Editor.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "expected a multipart upload with field %q", uploadField)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return errors.New(errors.ErrCodeInvalidInput, "missing multipart field %q", uploadField)
		}
		if err != nil {
			return uploadReadError(err, limit)
		}
		if part.FormName() != uploadField {
			part.Close()
			continue
		}
		err = sess.Editor.Upload(r.Context(), part.FileName(), part)
		part.Close()
		if err != nil && errors.GetCode(err) == errors.ErrCodeInvalidInput {
			return uploadReadError(err, limit)
		}
		return err
	}
}

// uploadReadError reports a body cut off by MaxBytesReader as oversized.
func uploadReadError(err error, limit int64) error {
	var mbe *http.MaxBytesError
	if stderrors.As(err, &mbe) {
		return errors.ValidateUploadSize(limit+1, limit)
	}
	if errors.GetCode(err) != "" {
		return err
	}
	return errors.Wrap(errors.ErrCodeInvalidInput, err, "read upload")
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request, sess *session.Session) error {
	return writeStatus(w, http.StatusOK, sess, nil)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImage(w http.ResponseWriter, _ *http.Request, sess *session.Session) error {
	cur, err := sess.Editor.Current()
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", cur.MIMEType())
	w.Header().Set("Content-Length", strconv.Itoa(cur.Len()))
	w.Header().Set("ETag", strconv.Quote(cur.Hash()))
	_, err = w.Write(cur.Bytes())
	return err
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	var (
		img *image.RGBA
		err error
	)
	if q := r.URL.Query().Get("zoom"); q != "" {
		zoom, perr := strconv.ParseFloat(q, 64)
		if perr != nil || math.IsNaN(zoom) || math.IsInf(zoom, 0) {
			return errors.New(errors.ErrCodeInvalidInput, "zoom must be a number, got %q", q)
		}
		img, err = sess.Editor.PreviewAt(r.Context(), zoom)
	} else {
		img, err = sess.Editor.Preview(r.Context())
	}
	if err != nil {
		return err
	}
	return writePNG(w, img)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	name, data, err := sess.Editor.Download(r.Context())
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, err = w.Write(data)
	return err
}

func writePNG(w http.ResponseWriter, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode png")
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, err := w.Write(buf.Bytes())
	return err
}

func (s *Server) handleEffect(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	kind, err := effect.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return err
	}
	if err := sess.Editor.ApplyEffect(r.Context(), kind); err != nil {
		return err
	}
	return writeStatus(w, http.StatusOK, sess, nil)
}

func (s *Server) handleCropBegin(w http.ResponseWriter, _ *http.Request, sess *session.Session) error {
	if err := sess.Editor.BeginCrop(); err != nil {
		return err
	}
	return writeStatus(w, http.StatusOK, sess, nil)
}

func (s *Server) handleCropConfirm(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	var req cropRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "crop body must be {\"x\",\"y\",\"w\",\"h\"}")
	}
	if req.W <= 0 || req.H <= 0 {
		return errors.New(errors.ErrCodeInvalidCrop, "crop width and height must be positive")
	}
	rect := image.Rect(req.X, req.Y, req.X+req.W, req.Y+req.H)
	if err := sess.Editor.ConfirmCrop(r.Context(), rect); err != nil {
		return err
	}
	return writeStatus(w, http.StatusOK, sess, nil)
}

func (s *Server) handleCropCancel(w http.ResponseWriter, _ *http.Request, sess *session.Session) error {
	if err := sess.Editor.CancelCrop(); err != nil {
		return err
	}
	return writeStatus(w, http.StatusOK, sess, nil)
}

func (s *Server) handleUndo(w http.ResponseWriter, _ *http.Request, sess *session.Session) error {
	changed, err := sess.Editor.Undo()
	if err != nil {
		return err
	}
	return writeStatus(w, http.StatusOK, sess, &changed)
}

func (s *Server) handleRedo(w http.ResponseWriter, _ *http.Request, sess *session.Session) error {
	changed, err := sess.Editor.Redo()
	if err != nil {
		return err
	}
	return writeStatus(w, http.StatusOK, sess, &changed)
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request, sess *session.Session) error {
	if err := sess.Editor.Reset(); err != nil {
		return err
	}
	return writeStatus(w, http.StatusOK, sess, nil)
}

func (s *Server) handleZoomIn(w http.ResponseWriter, _ *http.Request, sess *session.Session) error {
	sess.Editor.ZoomIn()
	return writeStatus(w, http.StatusOK, sess, nil)
}

func (s *Server) handleZoomOut(w http.ResponseWriter, _ *http.Request, sess *session.Session) error {
	sess.Editor.ZoomOut()
	return writeStatus(w, http.StatusOK, sess, nil)
}
