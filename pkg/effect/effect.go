package effect

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/matzehuels/retouch/pkg/cache"
	"github.com/matzehuels/retouch/pkg/errors"
	"github.com/matzehuels/retouch/pkg/imagestate"
)

// Kind selects an effect.
type Kind string

// Supported effect kinds.
const (
	KindGrayscale Kind = "grayscale"
	KindSepia     Kind = "sepia"
	KindCrop      Kind = "crop"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{KindGrayscale, KindSepia, KindCrop}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindGrayscale, KindSepia, KindCrop:
		return k, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidEffect, "unknown effect %q (must be grayscale, sepia or crop)", s)
	}
}

// Effect is one requested transform.
type Effect struct {
	Kind Kind
	Rect image.Rectangle // crop only, in image coordinates
}

// Grayscale returns the grayscale effect.
func Grayscale() Effect { return Effect{Kind: KindGrayscale} }

// Sepia returns the sepia effect.
func Sepia() Effect { return Effect{Kind: KindSepia} }

// Crop returns a crop effect for the rectangle with origin (x, y) and size w x h.
func Crop(x, y, w, h int) Effect {
	return Effect{Kind: KindCrop, Rect: image.Rect(x, y, x+w, y+h)}
}

// Parse reads an effect from its command-line form:
// "grayscale", "sepia" or "crop=x:y:w:h".
func Parse(s string) (Effect, error) {
	name, args, hasArgs := strings.Cut(strings.TrimSpace(s), "=")
	kind, err := ParseKind(name)
	if err != nil {
		return Effect{}, err
	}
	if kind != KindCrop {
		if hasArgs {
			return Effect{}, errors.New(errors.ErrCodeInvalidEffect, "%s takes no arguments", kind)
		}
		return Effect{Kind: kind}, nil
	}
	if !hasArgs {
		return Effect{}, errors.New(errors.ErrCodeInvalidCrop, "crop needs a rectangle: crop=x:y:w:h")
	}
	parts := strings.Split(args, ":")
	if len(parts) != 4 {
		return Effect{}, errors.New(errors.ErrCodeInvalidCrop, "crop rectangle must be x:y:w:h, got %q", args)
	}
	var n [4]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return Effect{}, errors.Wrap(errors.ErrCodeInvalidCrop, err, "crop rectangle component %q", p)
		}
		n[i] = v
	}
	return Crop(n[0], n[1], n[2], n[3]), nil
}

// String renders e in the form accepted by Parse.
func (e Effect) String() string {
	if e.Kind != KindCrop {
		return string(e.Kind)
	}
	r := e.Rect
	return fmt.Sprintf("crop=%d:%d:%d:%d", r.Min.X, r.Min.Y, r.Dx(), r.Dy())
}

// KeyOpts converts e into cache key options.
func (e Effect) KeyOpts() cache.EffectKeyOpts {
	opts := cache.EffectKeyOpts{Kind: string(e.Kind)}
	if e.Kind == KindCrop {
		opts.X, opts.Y = e.Rect.Min.X, e.Rect.Min.Y
		opts.W, opts.H = e.Rect.Dx(), e.Rect.Dy()
	}
	return opts
}

// Validate checks e without looking at any image.
func (e Effect) Validate() error {
	if _, err := ParseKind(string(e.Kind)); err != nil {
		return err
	}
	if e.Kind == KindCrop && (e.Rect.Dx() <= 0 || e.Rect.Dy() <= 0) {
		return errors.New(errors.ErrCodeInvalidCrop, "crop rectangle %v is empty", e.Rect)
	}
	return nil
}

// ClampCrop intersects r with bounds, failing when nothing remains.
func ClampCrop(r, bounds image.Rectangle) (image.Rectangle, error) {
	c := r.Canon().Intersect(bounds)
	if c.Empty() {
		return image.Rectangle{}, errors.New(errors.ErrCodeInvalidCrop, "crop rectangle %v lies outside image %v", r, bounds)
	}
	return c, nil
}

// Processor computes the state an effect produces.
// Implementations never return a zero state without an error.
type Processor interface {
	Apply(ctx context.Context, src imagestate.ImageState, e Effect) (imagestate.ImageState, error)

	// Available reports whether Apply can currently succeed.
	Available() bool
}

// Unavailable is a Processor whose backend is not ready.
type Unavailable struct {
	Reason string
}

// Apply always fails with EFFECT_UNAVAILABLE.
func (u Unavailable) Apply(context.Context, imagestate.ImageState, Effect) (imagestate.ImageState, error) {
	return imagestate.ImageState{}, ErrUnavailable(u)
}

// Available reports false.
func (Unavailable) Available() bool { return false }

// UnavailableReason returns why effects cannot run.
func (u Unavailable) UnavailableReason() string { return u.Reason }

// ErrUnavailable returns the EFFECT_UNAVAILABLE error for p without calling
// Apply. Processors implementing UnavailableReason() string supply the message.
func ErrUnavailable(p Processor) error {
	reason := "image processing is not loaded"
	if r, ok := p.(interface{ UnavailableReason() string }); ok && r.UnavailableReason() != "" {
		reason = r.UnavailableReason()
	}
	return errors.New(errors.ErrCodeEffectUnavailable, "%s", reason)
}
