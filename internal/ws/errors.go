package ws

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict is matched by gateway errors reporting that the expected
	// content hash of a write is stale.
	ErrConflict = errors.New("remote version conflict")

	// ErrUnauthorized is matched by gateway errors reporting rejected credentials.
	ErrUnauthorized = errors.New("remote rejected credentials")

	// ErrNotAuthenticated is returned by operations that need a token when none is held.
	ErrNotAuthenticated = errors.New("not logged in")

	// ErrSnapshotChanged is returned when the persisted workspace document was
	// written by another instance since this one loaded it.
	ErrSnapshotChanged = errors.New("persisted workspace state changed externally")
)

// ConflictError is returned by a gateway when a conditional write is rejected
// because the remote file no longer has the expected hash.
type ConflictError struct {
	Ref         Ref
	ExpectedSHA string
	Message     string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("conflict writing %s (expected sha %s): %s", e.Ref, e.ExpectedSHA, e.Message)
	}
	return fmt.Sprintf("conflict writing %s (expected sha %s)", e.Ref, e.ExpectedSHA)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// TransportError wraps any gateway failure other than a version conflict.
// It is returned to the caller unchanged and never retried.
type TransportError struct {
	Op  string
	Ref Ref
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Ref, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AuthMismatchError is returned when an OAuth callback presents a state that
// does not match the pending nonce. The login attempt is aborted.
type AuthMismatchError struct{}

func (e *AuthMismatchError) Error() string {
	return "unable to authenticate: auth state doesn't match"
}
