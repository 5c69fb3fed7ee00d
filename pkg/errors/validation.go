package errors

import (
	"strconv"
	"strings"
	"unicode"
)

// MiB is one mebibyte.
const MiB = 1 << 20

// ValidateUploadFilename validates a client-supplied upload filename.
// Only the basename is ever used, so anything resembling a path is rejected.
//
// Validation rules:
//   - Name cannot be empty
//   - Maximum length of 255 characters
//   - No control characters or null bytes
//   - No path separators
func ValidateUploadFilename(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "filename cannot be empty")
	}

	if len(name) > 255 {
		return New(ErrCodeInvalidInput, "filename too long (max 255 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "filename contains invalid control characters")
		}
	}

	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidInput, "filename cannot contain path separators")
	}

	if name == "." || name == ".." {
		return New(ErrCodeInvalidInput, "filename %q is not allowed", name)
	}

	return nil
}

// ValidateUploadSize rejects uploads larger than limit bytes.
// A file of exactly limit bytes is accepted.
func ValidateUploadSize(size, limit int64) error {
	if size > limit {
		return Wrap(ErrCodeOversizedInput, &SizeLimitError{Size: size, Limit: limit},
			"file size exceeds %s", FormatBytes(limit))
	}
	return nil
}

// ValidateImageMIME checks that a sniffed content type names an image.
func ValidateImageMIME(mime string) error {
	if !strings.HasPrefix(mime, "image/") {
		return New(ErrCodeDecodeFailure, "unsupported content type %q (expected an image)", mime)
	}
	return nil
}

// FormatBytes renders a byte count the way upload errors present it ("2MB").
func FormatBytes(n int64) string {
	switch {
	case n >= MiB && n%MiB == 0:
		return strconv.FormatInt(n/MiB, 10) + "MB"
	case n >= 1<<10 && n%(1<<10) == 0:
		return strconv.FormatInt(n/(1<<10), 10) + "KB"
	default:
		return strconv.FormatInt(n, 10) + "B"
	}
}
