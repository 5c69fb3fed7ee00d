package imagestate

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"net/http"
	"strings"

	// Registered decoders for image.Decode.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/matzehuels/retouch/pkg/cache"
	"github.com/matzehuels/retouch/pkg/errors"
)

// MIMEPNG is the MIME type of every state produced by an effect.
const MIMEPNG = "image/png"

// ImageState is an immutable encoded image.
// The zero value is an empty state; use IsZero to detect it.
type ImageState struct {
	data []byte
	mime string
	hash string
}

// New creates a state from encoded bytes, sniffing the MIME type from content.
// It fails with DECODE_FAILURE when the content is not an image.
// New does not decode the pixels; call Decode or Config for that.
func New(data []byte) (ImageState, error) {
	if len(data) == 0 {
		return ImageState{}, errors.New(errors.ErrCodeDecodeFailure, "image is empty")
	}
	mime := Sniff(data)
	if err := errors.ValidateImageMIME(mime); err != nil {
		return ImageState{}, err
	}
	return newState(data, mime), nil
}

// FromImage encodes img as PNG and returns the resulting state.
func FromImage(img image.Image) (ImageState, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return ImageState{}, errors.Wrap(errors.ErrCodeInternal, err, "encode png")
	}
	return ImageState{data: buf.Bytes(), mime: MIMEPNG, hash: cache.Hash(buf.Bytes())}, nil
}

// ParseDataURI parses a base64 data URI into a state.
// The declared MIME type must agree with the sniffed one when both name an image.
func ParseDataURI(uri string) (ImageState, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return ImageState{}, errors.New(errors.ErrCodeInvalidInput, "not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return ImageState{}, errors.New(errors.ErrCodeInvalidInput, "data URI has no payload")
	}
	declared, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return ImageState{}, errors.New(errors.ErrCodeInvalidInput, "data URI must be base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ImageState{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode data URI payload")
	}
	st, err := New(data)
	if err != nil {
		return ImageState{}, err
	}
	if declared != "" && declared != st.mime {
		return ImageState{}, errors.New(errors.ErrCodeInvalidInput,
			"data URI declares %s but content is %s", declared, st.mime)
	}
	return st, nil
}

// Sniff returns the MIME type of data as detected from its leading bytes.
// WebP is recognised explicitly since older sniffing tables lack it.
func Sniff(data []byte) string {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return "image/webp"
	}
	mime := http.DetectContentType(data)
	if mime == "application/octet-stream" && isTIFF(data) {
		return "image/tiff"
	}
	return mime
}

func isTIFF(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	h := string(data[:4])
	return h == "II*\x00" || h == "MM\x00*"
}

func newState(data []byte, mime string) ImageState {
	cp := bytes.Clone(data)
	return ImageState{data: cp, mime: mime, hash: cache.Hash(cp)}
}

// IsZero reports whether s is the empty state.
func (s ImageState) IsZero() bool { return len(s.data) == 0 }

// MIMEType returns the sniffed MIME type.
func (s ImageState) MIMEType() string { return s.mime }

// Len returns the encoded size in bytes.
func (s ImageState) Len() int { return len(s.data) }

// Bytes returns a copy of the encoded bytes.
func (s ImageState) Bytes() []byte { return bytes.Clone(s.data) }

// Hash returns the SHA-256 content hash of the encoded bytes.
func (s ImageState) Hash() string { return s.hash }

// Equal reports whether both states hold identical bytes.
func (s ImageState) Equal(o ImageState) bool {
	return s.mime == o.mime && s.hash == o.hash && bytes.Equal(s.data, o.data)
}

// DataURI renders s as a base64 data URI.
func (s ImageState) DataURI() string {
	return "data:" + s.mime + ";base64," + base64.StdEncoding.EncodeToString(s.data)
}

// Decode decodes the pixels. Failures are DECODE_FAILURE errors.
func (s ImageState) Decode() (image.Image, error) {
	if s.IsZero() {
		return nil, errors.New(errors.ErrCodeDecodeFailure, "image is empty")
	}
	img, _, err := image.Decode(bytes.NewReader(s.data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecodeFailure, err, "decode %s", s.mime)
	}
	return img, nil
}

// Config returns the natural dimensions without decoding every pixel.
func (s ImageState) Config() (image.Config, error) {
	if s.IsZero() {
		return image.Config{}, errors.New(errors.ErrCodeDecodeFailure, "image is empty")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(s.data))
	if err != nil {
		return image.Config{}, errors.Wrap(errors.ErrCodeDecodeFailure, err, "decode %s header", s.mime)
	}
	return cfg, nil
}

// String implements fmt.Stringer with a short, log-friendly description.
func (s ImageState) String() string {
	if s.IsZero() {
		return "ImageState(empty)"
	}
	return "ImageState(" + s.mime + ", " + s.hash[:12] + ")"
}
