// Package render paints image states onto an off-screen surface and
// serializes that surface for download.
//
// # Ordering
//
// Decoding happens off the caller's goroutine, so completions can arrive out
// of order: a large original may finish decoding after a small crop that was
// requested later. Every paint request carries the sequence number of the
// history transition that produced it. The surface only ever moves forward:
// a completion is applied when its sequence is the newest requested, and
// dropped as stale otherwise.
//
// # Failures
//
// A state that cannot be decoded is reported through the error handler and
// the render hooks; the previously painted frame stays on the surface.
//
// # Download
//
// [Surface.Download] encodes the painted frame as PNG. [DownloadFilename] is
// the name offered to users.
package render
