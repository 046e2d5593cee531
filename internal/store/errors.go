package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("no data found")
	ErrNotInitialized = errors.New("store not initialized")
	ErrSerialization  = errors.New("value is not serializable")
	ErrNoValidAdapter = errors.New("no valid adapter")
	ErrUnknownAdapter = errors.New("unknown adapter")
	ErrClosed         = errors.New("store closed")
)

// NotFound returns ErrNotFound annotated with the sanitized key.
func NotFound(key string) error {
	return fmt.Errorf("%w for key: %s", ErrNotFound, key)
}

// SelectionError reports that facade construction could not pick a backend.
// Err is ErrNoValidAdapter or ErrUnknownAdapter.
type SelectionError struct {
	AdapterID string
	Err       error
}

func (e *SelectionError) Error() string {
	if e.AdapterID == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.AdapterID)
}

func (e *SelectionError) Unwrap() error { return e.Err }

// InitError wraps a failure of the selected backend's Init.
type InitError struct {
	AdapterID string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init %s: %v", e.AdapterID, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }
