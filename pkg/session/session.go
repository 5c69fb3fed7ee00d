// Package session keeps editor sessions for the HTTP API.
//
// Each [Session] wraps one [editor.Session] under a random UUID together with
// an idle deadline. The [Store] interface hides where sessions live; the only
// implementation is [MemoryStore], since edit histories are never persisted.
//
// # Usage
//
//	store := session.NewMemoryStore(session.DefaultTTL, func() *editor.Session {
//	    return editor.New(editor.Options{Processor: runner, Logger: logger})
//	})
//
//	sess, err := store.Create(ctx)
//	...
//	sess, err = store.Get(ctx, id) // extends the idle deadline
//	if errors.Is(err, session.ErrNotFound) {
//	    // unknown or expired
//	}
//
// Expired sessions are closed lazily on access and eagerly by [Store.Cleanup],
// which the server runs on a ticker.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/retouch/pkg/editor"
	rterrors "github.com/matzehuels/retouch/pkg/errors"
)

// Sentinel errors for session operations.
var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExpired is returned when a session has exceeded its idle TTL.
	ErrExpired = errors.New("expired")
)

// Default durations.
const (
	// DefaultTTL is how long an untouched session lives.
	DefaultTTL = 30 * time.Minute

	// DefaultCleanupInterval is how often servers sweep expired sessions.
	DefaultCleanupInterval = time.Minute
)

// Session is one editor session with its bookkeeping.
type Session struct {
	ID        string
	Editor    *editor.Session
	CreatedAt time.Time

	mu        sync.Mutex
	expiresAt time.Time
}

// ExpiresAt returns the current idle deadline.
func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

// IsExpired reports whether the session has passed its idle deadline.
func (s *Session) IsExpired() bool {
	return s.expiredAt(time.Now())
}

func (s *Session) expiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt())
}

func (s *Session) touch(deadline time.Time) {
	s.mu.Lock()
	s.expiresAt = deadline
	s.mu.Unlock()
}

// Store is the interface for session storage backends.
type Store interface {
	// Create starts a new empty session.
	Create(ctx context.Context) (*Session, error)

	// Get retrieves a session by ID and extends its idle deadline.
	// Unknown and expired sessions yield SESSION_NOT_FOUND errors wrapping
	// ErrNotFound or ErrExpired.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete closes and removes a session.
	Delete(ctx context.Context, id string) error

	// Cleanup closes expired sessions and returns how many were removed.
	Cleanup(ctx context.Context) (int, error)

	// Close closes every session.
	Close() error
}

// GenerateID creates a random session ID.
func GenerateID() string {
	return uuid.NewString()
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	ttl       time.Duration
	newEditor func() *editor.Session
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewMemoryStore creates a store whose sessions expire after ttl without
// access. newEditor builds the editor for each new session; nil means
// editor.New with default options.
func NewMemoryStore(ttl time.Duration, newEditor func() *editor.Session) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if newEditor == nil {
		newEditor = func() *editor.Session { return editor.New(editor.Options{}) }
	}
	return &MemoryStore{
		ttl:       ttl,
		newEditor: newEditor,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

// Create implements Store.
func (m *MemoryStore) Create(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := m.now()
	s := &Session{
		ID:        GenerateID(),
		Editor:    m.newEditor(),
		CreatedAt: now,
		expiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	now := m.now()
	expired := ok && s.expiredAt(now)
	switch {
	case expired:
		delete(m.sessions, id)
	case ok:
		s.touch(now.Add(m.ttl))
	}
	m.mu.Unlock()

	switch {
	case !ok:
		return nil, rterrors.Wrap(rterrors.ErrCodeSessionNotFound, ErrNotFound, "session %q", id)
	case expired:
		s.Editor.Close()
		return nil, rterrors.Wrap(rterrors.ErrCodeSessionNotFound, ErrExpired, "session %q", id)
	}
	return s, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return rterrors.Wrap(rterrors.ErrCodeSessionNotFound, ErrNotFound, "session %q", id)
	}
	s.Editor.Close()
	return nil
}

// Cleanup implements Store.
func (m *MemoryStore) Cleanup(context.Context) (int, error) {
	var expired []*Session
	m.mu.Lock()
	now := m.now()
	for id, s := range m.sessions {
		if s.expiredAt(now) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Editor.Close()
	}
	return len(expired), nil
}

// Len returns the number of live or not yet swept sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Editor.Close()
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
