package taskscope

import (
	"context"
	"errors"
	"fmt"
)

// Usage errors returned synchronously from the API surface.
var (
	// ErrScopeClosed is returned by Spawn once the scope has begun terminal
	// teardown (cancelled, failed, or fully drained).
	ErrScopeClosed = errors.New("taskscope: scope closed")

	// ErrInvalidPolicy is returned by New and ParsePolicy for an
	// unrecognized supervision policy.
	ErrInvalidPolicy = errors.New("taskscope: invalid policy")

	// ErrCancelled marks every cancellation outcome. CancelError unwraps to
	// it, so errors.Is(err, ErrCancelled) classifies any Await result.
	ErrCancelled = errors.New("taskscope: cancelled")
)

// WorkError is the failure outcome of a task: the body returned an error.
type WorkError struct {
	TaskID string
	Task   string // human name, may be empty
	Err    error  // original cause
}

func (e *WorkError) Error() string {
	if e.Task != "" {
		return fmt.Sprintf("task %s failed: %v", e.Task, e.Err)
	}
	return fmt.Sprintf("task %s failed: %v", e.TaskID, e.Err)
}

func (e *WorkError) Unwrap() error { return e.Err }

// CancelError is the cancellation outcome of a task. It is also the cause
// installed on a cancelled task's context, so context.Cause inside a body
// returns it.
type CancelError struct {
	TaskID string
	Task   string
	Reason string
}

func (e *CancelError) Error() string {
	name := e.Task
	if name == "" {
		name = e.TaskID
	}
	if e.Reason != "" {
		return fmt.Sprintf("task %s cancelled: %s", name, e.Reason)
	}
	return fmt.Sprintf("task %s cancelled", name)
}

func (e *CancelError) Unwrap() error { return ErrCancelled }

// PanicError is the failure cause recorded when a task body panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// IsCancelled reports whether err is a cancellation outcome rather than a
// failure. Both the package's own cancellations and plain context.Canceled
// qualify; context.DeadlineExceeded does not.
func IsCancelled(err error) bool {
	return err != nil && (errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled))
}
