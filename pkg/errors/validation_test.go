package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateUploadFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid png", "photo.png", false},
		{"valid no extension", "photo", false},
		{"valid with spaces", "my photo.jpeg", false},
		{"valid hidden", ".photo.png", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 300), true},
		{"with path /", "path/to/photo.png", true},
		{"with path \\", "path\\photo.png", true},
		{"null byte", "photo\x00.png", true},
		{"newline", "photo\n.png", true},
		{"dot", ".", true},
		{"dot dot", "..", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUploadFilename(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUploadFilename(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateUploadSize(t *testing.T) {
	const limit = 2 * MiB

	tests := []struct {
		name    string
		size    int64
		wantErr bool
	}{
		{"empty", 0, false},
		{"small", 1024, false},
		{"exactly limit", limit, false},
		{"one byte over", limit + 1, true},
		{"far over", 10 * MiB, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUploadSize(tt.size, limit)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateUploadSize(%d) error = %v, wantErr %v", tt.size, err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if !Is(err, ErrCodeOversizedInput) {
				t.Errorf("code = %v, want %v", GetCode(err), ErrCodeOversizedInput)
			}
			var sl *SizeLimitError
			if !errors.As(err, &sl) {
				t.Fatal("expected SizeLimitError in chain")
			}
			if sl.Size != tt.size || sl.Limit != limit {
				t.Errorf("SizeLimitError = %+v", sl)
			}
			if UserMessage(err) != "file size exceeds 2MB" {
				t.Errorf("UserMessage() = %q", UserMessage(err))
			}
		})
	}
}

func TestValidateImageMIME(t *testing.T) {
	tests := []struct {
		mime    string
		wantErr bool
	}{
		{"image/png", false},
		{"image/jpeg", false},
		{"image/webp", false},
		{"text/plain; charset=utf-8", true},
		{"application/octet-stream", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			err := ValidateImageMIME(tt.mime)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateImageMIME(%q) error = %v, wantErr %v", tt.mime, err, tt.wantErr)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{2 * MiB, "2MB"},
		{512 << 10, "512KB"},
		{1500, "1500B"},
		{0, "0B"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
