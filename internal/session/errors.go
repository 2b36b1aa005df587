package session

import "errors"

// Engine errors. Validation and conflict errors block only the attempted
// transition; collaborator failures are wrapped so handlers can
// distinguish them from engine state errors.
var (
	// ErrNoSelection is returned when confirm is attempted without a
	// selected option. The session stays active and the evaluator is
	// never invoked.
	ErrNoSelection = errors.New("no option selected")

	// ErrBusy is returned when a confirm or regenerate is issued while
	// another one is in flight for the session. The request is rejected,
	// not queued.
	ErrBusy = errors.New("another request is in flight")

	// ErrEmptySet means the generator returned no usable questions. The
	// session is terminal; only exit is possible.
	ErrEmptySet = errors.New("no usable questions in set")

	// ErrAlreadyConfirmed is returned when confirming a question whose
	// current identity already holds a verdict.
	ErrAlreadyConfirmed = errors.New("question already confirmed")

	// ErrInvalidStatus is returned when an action is not allowed in the
	// session's current status.
	ErrInvalidStatus = errors.New("action not allowed in current status")

	// ErrCompleted is returned for mutating actions on a completed session.
	ErrCompleted = errors.New("session already completed")

	// ErrClosed is returned once the session has been abandoned.
	ErrClosed = errors.New("session closed")

	// ErrNotCompleted is returned when results are requested before the
	// session reaches its terminal summary.
	ErrNotCompleted = errors.New("session not completed yet")
)
