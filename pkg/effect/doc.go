// Package effect computes new image states from existing ones.
//
// The edit history never sees how an effect is computed; it receives the
// resulting [imagestate.ImageState] through a commit. This package defines
// the [Processor] capability interface and the default implementation backed
// by github.com/disintegration/imaging.
//
// # Effects
//
//   - grayscale: luminance conversion
//   - sepia: the classic 3x3 sepia matrix applied per pixel, alpha preserved
//   - crop: a rectangle in image coordinates, clamped to the image bounds
//
// Every result is PNG encoded.
//
// # Availability
//
// A processor may not be ready (for example while a native backend loads).
// [Unavailable] models that case: every call fails with EFFECT_UNAVAILABLE
// and nothing is committed.
package effect
