package store

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// State is the init lifecycle of a backend instance.
type State int32

const (
	Uninitialized State = iota
	Initializing
	Ready
	Failed
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Lifecycle tracks Uninitialized → Initializing → Ready | Failed.
// Failed is terminal for the instance; nothing retries.
type Lifecycle struct {
	mu    sync.Mutex // serializes Run
	state atomic.Int32
	err   error
}

// Run executes init exactly once. Concurrent and later callers block until
// the first run finishes and get its outcome.
func (l *Lifecycle) Run(init func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.State() {
	case Ready:
		return nil
	case Failed:
		return l.err
	case Closed:
		return ErrClosed
	}

	l.state.Store(int32(Initializing))
	if err := init(); err != nil {
		l.err = err
		l.state.Store(int32(Failed))
		return err
	}
	l.state.Store(int32(Ready))
	return nil
}

// State returns the current state without blocking on a running init.
func (l *Lifecycle) State() State {
	return State(l.state.Load())
}

// Check returns nil only in the Ready state.
func (l *Lifecycle) Check() error {
	switch l.State() {
	case Ready:
		return nil
	case Closed:
		return ErrClosed
	case Failed:
		l.mu.Lock()
		defer l.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrNotInitialized, l.err)
	default:
		return ErrNotInitialized
	}
}

// Close moves to Closed. It reports whether the instance was Ready, i.e.
// whether the caller holds engine resources to release.
func (l *Lifecycle) Close() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.State()
	l.state.Store(int32(Closed))
	return prev == Ready
}
