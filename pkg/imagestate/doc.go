// Package imagestate defines ImageState, the immutable encoded snapshot of an
// image at one point of an editing history.
//
// An ImageState holds the encoded bytes together with the MIME type sniffed
// from those bytes. The bytes are copied when a state is created and whenever
// they are handed out, so a state can be shared freely between the history,
// the render surface and concurrent decoders.
//
// # Construction
//
// States come from three places:
//
//   - [New]: raw upload bytes; the MIME type is sniffed from content, never
//     from a file extension
//   - [FromImage]: a decoded image re-encoded as PNG (effect results)
//   - [ParseDataURI]: a "data:<mime>;base64,..." URI, the form browsers use
//
// Decoders for PNG, JPEG, GIF, BMP, TIFF and WebP are registered by this
// package, so any of those formats is accepted as upload input.
package imagestate
