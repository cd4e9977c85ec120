package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateRole indicates a role identifier collision on create.
	ErrDuplicateRole = errors.New("duplicate role identifier")
	// ErrVersionConflict indicates an optimistic-concurrency mismatch; the
	// caller should re-read and retry.
	ErrVersionConflict = errors.New("role version conflict")
	// ErrHasDescendants blocks deleting a role that still anchors a subtree.
	ErrHasDescendants = errors.New("role has descendants")
	// ErrInvalidAPIKey indicates a failed API key comparison.
	ErrInvalidAPIKey = errors.New("invalid api key")
)
