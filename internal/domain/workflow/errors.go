package workflow

import "errors"

var (
	// ErrPersistFailed indicates the step-boundary write to the patient
	// store failed. The in-memory draft keeps the user's edits so the same
	// step completion can be retried as-is.
	ErrPersistFailed = errors.New("failed to persist patient")

	// ErrSendFailed indicates the final report send failed. The session
	// stays at the send step for a caller-initiated retry.
	ErrSendFailed = errors.New("failed to send report")

	// ErrInvalidTransition indicates navigation to a step beyond the
	// furthest step reached. Callers usually prevent this by disabling the
	// step control rather than surfacing the error.
	ErrInvalidTransition = errors.New("invalid step transition")

	// ErrNotConfirmed indicates Finish was called without the operator
	// confirmation flag set.
	ErrNotConfirmed = errors.New("send not confirmed")

	// ErrNotAtSendStep indicates Finish was called before the session
	// reached the send step.
	ErrNotAtSendStep = errors.New("session not at send step")

	// ErrSessionTerminated indicates an operation on a finished session.
	ErrSessionTerminated = errors.New("session already terminated")

	// ErrUnknownItemKind indicates a catalog selection with a kind other
	// than treatment or medicine.
	ErrUnknownItemKind = errors.New("unknown catalog item kind")
)
