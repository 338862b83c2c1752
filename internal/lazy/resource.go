// Package lazy provides a lazily-initialized handle to a resource whose
// construction may fail.
package lazy

import (
	"errors"
	"fmt"
	"sync"
)

// ErrTerminated is returned by Get after Terminate until Reset is called.
var ErrTerminated = errors.New("resource terminated")

// State is the lifecycle state of a Resource.
type State int

const (
	NotAttempted State = iota
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case NotAttempted:
		return "not attempted"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Resource opens a value on first use. A failed open is remembered: later
// calls to Get return the same error without retrying until Reset.
type Resource[T any] struct {
	open  func() (T, error)
	close func(T) error

	mu         sync.Mutex
	state      State
	value      T
	err        error
	terminated bool
}

// New returns a Resource built by open. close, if non-nil, releases the value
// on Terminate.
func New[T any](open func() (T, error), close func(T) error) *Resource[T] {
	return &Resource[T]{open: open, close: close}
}

// Get returns the value, opening it on the first call.
func (r *Resource[T]) Get() (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.terminated {
		return zero, ErrTerminated
	}

	switch r.state {
	case Ready:
		return r.value, nil
	case Failed:
		return zero, r.err
	}

	v, err := r.open()
	if err != nil {
		r.state, r.err = Failed, err
		return zero, err
	}
	r.state, r.value = Ready, v
	return v, nil
}

// State reports the current state.
func (r *Resource[T]) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Terminate releases a ready value and makes Get fail with ErrTerminated.
func (r *Resource[T]) Terminate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.terminated = true
	return r.release()
}

// Reset releases any value and returns the resource to NotAttempted, so the
// next Get tries to open it again.
func (r *Resource[T]) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.terminated = false
	return r.release()
}

func (r *Resource[T]) release() error {
	var err error
	if r.state == Ready && r.close != nil {
		err = r.close(r.value)
	}
	var zero T
	r.state, r.value, r.err = NotAttempted, zero, nil
	return err
}
