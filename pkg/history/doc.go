// Package history implements the linear edit history behind undo, redo and
// reset.
//
// # Model
//
// A [History] is an ordered, never-empty list of [imagestate.ImageState]
// values plus a cursor naming the displayed state. Index 0 holds the original
// upload and is never replaced. History values are immutable: [History.Commit],
// [History.Undo], [History.Redo] and [History.Reset] are pure functions that
// return the next value and leave the receiver untouched.
//
// Committing while the cursor is behind the newest state prunes everything
// after the cursor before appending. The history is a stack, not a tree:
// after A, B, C, undo, undo, commit D the history is A, D and B and C are
// gone for good.
//
// Undo at the first state and redo at the last state are silent no-ops.
//
// # Manager
//
// A [Manager] owns the current History behind a mutex, so transitions are
// atomic even when HTTP handlers call in from several goroutines. After every
// state-changing transition it notifies its [Observer] (typically the render
// surface) with a [Transition] carrying a monotonic sequence number. No-ops
// notify nobody.
//
//	m := history.NewManager(original, surface)
//	m.Commit(grayscaled)
//	m.Undo()            // observer sees original again
//	cur := m.Current()
package history
