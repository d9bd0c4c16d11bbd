package syncer

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated means no token is stored. No request was made.
	ErrNotAuthenticated = errors.New("not logged in")
	// ErrSessionExpired means the server rejected the token. The stored
	// config has been reset to the logged-out defaults.
	ErrSessionExpired = errors.New("session expired, please login again")
	// ErrInvalidInput wraps credential validation failures.
	ErrInvalidInput = errors.New("invalid input")
)

// SyncFailedError is any other failed sync: a non-2xx response, a transport
// failure, a cancelled call or an unreadable local tree. Nothing was
// persisted and the sync is safe to retry.
type SyncFailedError struct {
	Reason string
	Err    error
}

func (e *SyncFailedError) Error() string {
	if e.Err == nil || e.Reason == e.Err.Error() {
		return fmt.Sprintf("sync failed: %s", e.Reason)
	}
	return fmt.Sprintf("sync failed: %s: %v", e.Reason, e.Err)
}

func (e *SyncFailedError) Unwrap() error { return e.Err }

func syncFailed(reason string, err error) error {
	return &SyncFailedError{Reason: reason, Err: err}
}
