package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/retouch/pkg/editor"
	rterrors "github.com/matzehuels/retouch/pkg/errors"
)

func quietEditor() *editor.Session {
	return editor.New(editor.Options{Logger: log.New(io.Discard)})
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCreateGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour, quietEditor)
	defer store.Close()

	s, err := store.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.ID == "" || s.Editor == nil {
		t.Fatalf("incomplete session: %+v", s)
	}

	got, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != s {
		t.Error("Get returned a different session")
	}

	if err := store.Delete(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	_, err = store.Get(ctx, s.ID)
	if !errors.Is(err, ErrNotFound) || !rterrors.Is(err, rterrors.ErrCodeSessionNotFound) {
		t.Errorf("Get after Delete = %v", err)
	}
	if err := store.Delete(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v", err)
	}
}

func TestIDsAreUnique(t *testing.T) {
	store := NewMemoryStore(time.Hour, quietEditor)
	defer store.Close()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s, err := store.Create(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if seen[s.ID] {
			t.Fatalf("duplicate ID %s", s.ID)
		}
		seen[s.ID] = true
	}
	if store.Len() != 100 {
		t.Errorf("Len = %d", store.Len())
	}
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(30*time.Millisecond, quietEditor)
	defer store.Close()

	s, _ := store.Create(ctx)
	if err := s.Editor.Upload(ctx, "a.png", bytes.NewReader(tinyPNG(t))); err != nil {
		t.Fatal(err)
	}
	time.Sleep(60 * time.Millisecond)

	_, err := store.Get(ctx, s.ID)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("Get expired = %v, want ErrExpired", err)
	}
	if s.Editor.Status().HasImage {
		t.Error("expired session's editor was not closed")
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d, want 0", store.Len())
	}
}

func TestGetExtendsExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour, quietEditor)
	defer store.Close()

	s, _ := store.Create(ctx)
	before := s.ExpiresAt()
	time.Sleep(5 * time.Millisecond)
	if _, err := store.Get(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	if !s.ExpiresAt().After(before) {
		t.Error("Get did not extend the deadline")
	}
}

func TestGetDecidesExpiryOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute, quietEditor)
	defer store.Close()

	// The clock jumps past the deadline right after Get first reads it.
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{t0, t0.Add(59 * time.Second)}
	store.now = func() time.Time {
		if len(times) == 0 {
			return t0.Add(2 * time.Minute)
		}
		next := times[0]
		times = times[1:]
		return next
	}

	s, _ := store.Create(ctx)
	if err := s.Editor.Upload(ctx, "a.png", bytes.NewReader(tinyPNG(t))); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get = %v, want the live session", err)
	}
	if got != s || !s.Editor.Status().HasImage {
		t.Error("live session was closed")
	}
	if want := t0.Add(59*time.Second + time.Minute); !s.ExpiresAt().Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", s.ExpiresAt(), want)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(30*time.Millisecond, quietEditor)
	defer store.Close()

	for i := 0; i < 3; i++ {
		if _, err := store.Create(ctx); err != nil {
			t.Fatal(err)
		}
	}
	n, err := store.Cleanup(ctx)
	if err != nil || n != 0 {
		t.Fatalf("Cleanup before expiry = %d, %v", n, err)
	}

	time.Sleep(60 * time.Millisecond)
	fresh, _ := store.Create(ctx)

	n, err = store.Cleanup(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("Cleanup removed %d, want 3", n)
	}
	if _, err := store.Get(ctx, fresh.ID); err != nil {
		t.Errorf("fresh session swept: %v", err)
	}
}

func TestCloseClosesEditors(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour, quietEditor)

	s, _ := store.Create(ctx)
	if err := s.Editor.Upload(ctx, "a.png", bytes.NewReader(tinyPNG(t))); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	if s.Editor.Status().HasImage {
		t.Error("editor still holds an image after Close")
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d", store.Len())
	}
}

func TestDefaults(t *testing.T) {
	store := NewMemoryStore(0, nil)
	defer store.Close()
	if store.ttl != DefaultTTL {
		t.Errorf("ttl = %v", store.ttl)
	}
	s, err := store.Create(context.Background())
	if err != nil || s.Editor == nil {
		t.Fatalf("Create = %+v, %v", s, err)
	}
}
