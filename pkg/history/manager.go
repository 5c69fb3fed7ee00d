package history

import (
	"sync"

	"github.com/matzehuels/retouch/pkg/imagestate"
	"github.com/matzehuels/retouch/pkg/observability"
)

// Op names a history transition.
type Op string

// Transition operations.
const (
	OpSeed   Op = "seed"
	OpCommit Op = "commit"
	OpUndo   Op = "undo"
	OpRedo   Op = "redo"
	OpReset  Op = "reset"
)

// Transition describes one state-changing operation.
type Transition struct {
	Op     Op
	Seq    uint64 // Monotonic per manager, starting at 1 for the seed
	State  imagestate.ImageState
	Cursor int
	Len    int
}

// Observer is notified after each state-changing transition, in transition
// order. Observers may read the manager but must not mutate it.
type Observer interface {
	Observe(Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Transition)

// Observe calls f(t).
func (f ObserverFunc) Observe(t Transition) { f(t) }

// Manager is the only mutation path for a session's history.
// All methods are safe for concurrent use.
type Manager struct {
	mu  sync.Mutex
	h   History
	seq uint64
	obs Observer

	// pending holds transitions not yet delivered, in Seq order. It is
	// guarded by mu; notifyMu serializes delivery so observers never run
	// concurrently and never while mu is held.
	pending  []Transition
	notifyMu sync.Mutex
}

// NewManager seeds a manager with original and immediately notifies obs
// (if non-nil) with an OpSeed transition so the surface shows the upload.
func NewManager(original imagestate.ImageState, obs Observer) *Manager {
	m := &Manager{h: New(original), obs: obs}
	m.mu.Lock()
	m.publishLocked(m.transitionLocked(OpSeed))
	return m
}

// Commit appends s after the cursor, pruning any redoable states.
func (m *Manager) Commit(s imagestate.ImageState) {
	m.mu.Lock()
	m.h = m.h.Commit(s)
	m.publishLocked(m.transitionLocked(OpCommit))
}

// Undo steps back. At the original it is a no-op and returns (current, false).
func (m *Manager) Undo() (imagestate.ImageState, bool) {
	m.mu.Lock()
	next, ok := m.h.Undo()
	if !ok {
		cur := m.h.Current()
		m.mu.Unlock()
		return cur, false
	}
	m.h = next
	t := m.transitionLocked(OpUndo)
	m.publishLocked(t)
	return t.State, true
}

// Redo steps forward. At the newest state it is a no-op and returns (current, false).
func (m *Manager) Redo() (imagestate.ImageState, bool) {
	m.mu.Lock()
	next, ok := m.h.Redo()
	if !ok {
		cur := m.h.Current()
		m.mu.Unlock()
		return cur, false
	}
	m.h = next
	t := m.transitionLocked(OpRedo)
	m.publishLocked(t)
	return t.State, true
}

// Reset returns to the original, discarding every other state.
func (m *Manager) Reset() imagestate.ImageState {
	m.mu.Lock()
	m.h = m.h.Reset()
	t := m.transitionLocked(OpReset)
	m.publishLocked(t)
	return t.State
}

// Current returns the displayed state.
func (m *Manager) Current() imagestate.ImageState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.h.Current()
}

// Snapshot returns the current History value.
func (m *Manager) Snapshot() History {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.h
}

// Len returns the number of states.
func (m *Manager) Len() int { return m.Snapshot().Len() }

// Cursor returns the index of the displayed state.
func (m *Manager) Cursor() int { return m.Snapshot().Cursor() }

// CanUndo reports whether Undo would change state.
func (m *Manager) CanUndo() bool { return m.Snapshot().CanUndo() }

// CanRedo reports whether Redo would change state.
func (m *Manager) CanRedo() bool { return m.Snapshot().CanRedo() }

// Seq returns the sequence number of the latest transition.
func (m *Manager) Seq() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq
}

// transitionLocked records a transition; m.mu must be held.
func (m *Manager) transitionLocked(op Op) Transition {
	m.seq++
	return Transition{
		Op:     op,
		Seq:    m.seq,
		State:  m.h.Current(),
		Cursor: m.h.Cursor(),
		Len:    m.h.Len(),
	}
}

// publishLocked queues t, releases mu and delivers queued transitions.
// When it returns, t has been delivered, by this goroutine or by another
// one that was already draining the queue.
func (m *Manager) publishLocked(t Transition) {
	m.pending = append(m.pending, t)
	m.mu.Unlock()
	m.drain()
}

func (m *Manager) drain() {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.pending = nil
			m.mu.Unlock()
			return
		}
		t := m.pending[0]
		m.pending = m.pending[1:]
		m.mu.Unlock()

		observability.History().OnTransition(string(t.Op), t.Seq, t.Cursor, t.Len)
		if m.obs != nil {
			m.obs.Observe(t)
		}
	}
}
