// Package editor implements an image edit session.
//
// A [Session] ties together the pieces of an edit:
//
//   - upload validation (size limit, content sniffing, decode check)
//   - a [history.Manager] holding the linear undo/redo stack
//   - a [render.Surface] that paints whatever the history points at
//   - an [effect.Processor] that computes new states
//
// Every user action maps to one Session method and commits at most one
// state. Errors from collaborators are returned to the caller and never
// leave the history half-updated.
//
// # Cropping
//
// Crop is modal. [Session.BeginCrop] enters cropping mode, during which the
// other edits fail with CROP_ACTIVE. [Session.ConfirmCrop] commits the
// cropped state and leaves the mode; [Session.CancelCrop] leaves it without
// a commit. A crop that fails stays in cropping mode so it can be retried.
//
// # Usage
//
//	s := editor.New(editor.Options{Processor: runner, Logger: logger})
//	defer s.Close()
//
//	if err := s.Upload(ctx, "photo.jpg", f); err != nil {
//	    return err
//	}
//	_ = s.ApplyEffect(ctx, effect.KindGrayscale)
//	name, png, err := s.Download(ctx)
package editor
