package store

import "errors"

// Failure taxonomy exposed by every store operation. Callers branch with
// errors.Is instead of inspecting error text.
var (
	// ErrAlreadyExists reports a strict insert against an occupied ID.
	ErrAlreadyExists = errors.New("point already exists")

	// ErrNotFound reports a lookup or delete against a missing point or
	// collection.
	ErrNotFound = errors.New("not found")

	// ErrTransient reports a retryable condition such as a locked database.
	// The operation may succeed if repeated.
	ErrTransient = errors.New("transient store failure")
)
