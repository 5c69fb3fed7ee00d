package history

import (
	"github.com/matzehuels/retouch/pkg/imagestate"
)

// History is an immutable snapshot of the edit log and its cursor.
// The zero value is not valid; use New.
type History struct {
	states []imagestate.ImageState
	cursor int
}

// New seeds a history with the original state.
func New(original imagestate.ImageState) History {
	return History{states: []imagestate.ImageState{original}}
}

// Commit truncates to [0..cursor], appends s and moves the cursor onto it.
func (h History) Commit(s imagestate.ImageState) History {
	next := make([]imagestate.ImageState, h.cursor+1, h.cursor+2)
	copy(next, h.states[:h.cursor+1])
	next = append(next, s)
	return History{states: next, cursor: len(next) - 1}
}

// Undo moves the cursor back one state.
// It reports false, returning h unchanged, when already at the original.
func (h History) Undo() (History, bool) {
	if !h.CanUndo() {
		return h, false
	}
	return History{states: h.states, cursor: h.cursor - 1}, true
}

// Redo moves the cursor forward one state.
// It reports false, returning h unchanged, when already at the newest state.
func (h History) Redo() (History, bool) {
	if !h.CanRedo() {
		return h, false
	}
	return History{states: h.states, cursor: h.cursor + 1}, true
}

// Reset discards everything except the original.
func (h History) Reset() History {
	return New(h.states[0])
}

// Current returns the state under the cursor.
func (h History) Current() imagestate.ImageState { return h.states[h.cursor] }

// Original returns the first state.
func (h History) Original() imagestate.ImageState { return h.states[0] }

// At returns the state at index i. It panics if i is out of range.
func (h History) At(i int) imagestate.ImageState { return h.states[i] }

// Cursor returns the index of the current state.
func (h History) Cursor() int { return h.cursor }

// Len returns the number of states.
func (h History) Len() int { return len(h.states) }

// CanUndo reports whether Undo would move the cursor.
func (h History) CanUndo() bool { return h.cursor > 0 }

// CanRedo reports whether Redo would move the cursor.
func (h History) CanRedo() bool { return h.cursor < len(h.states)-1 }

// States returns a copy of the state list.
func (h History) States() []imagestate.ImageState {
	out := make([]imagestate.ImageState, len(h.states))
	copy(out, h.states)
	return out
}
