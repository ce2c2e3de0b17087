package taskscope

import (
	"context"
	"runtime/debug"
)

// Work is the body of a task. It runs on its own goroutine and receives a
// context that is cancelled when the task should stop. Returning nil
// completes the task; returning an error fails it, unless the error is a
// cancellation (see IsCancelled), in which case the task ends Cancelled.
type Work func(ctx context.Context) error

// Task is the handle to one spawned unit of work. Handles are safe for
// concurrent use; all state reads go through the owning scope's lock.
type Task struct {
	id     string
	name   string
	scope  *Scope
	parent *Task // nil for the scope root

	ctx    context.Context
	cancel context.CancelCauseFunc
	work   Work

	// The fields below are guarded by scope.mu.
	state     State
	children  []*Task
	bodyDone  bool
	bodyErr   error
	cause     error  // failure cause; diagnostic only when the task ended Cancelled
	reason    string // cancellation reason
	result    error  // Await outcome, fixed at finalization
	exits     []func()
	finalized bool

	done chan struct{} // closed after finalization
}

type ctxKey struct{}

func withTask(ctx context.Context, t *Task) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext returns the task bound to ctx, if any. Work functions receive
// a context carrying their own task, so Spawn called with it attaches the
// new task as a child of the running one.
func FromContext(ctx context.Context) (*Task, bool) {
	t, ok := ctx.Value(ctxKey{}).(*Task)
	return t, ok
}

// ID returns the task's unique identifier.
func (t *Task) ID() string { return t.id }

// Name returns the human-readable name given at spawn, or "" if none.
func (t *Task) Name() string { return t.name }

// Context returns the task's own context. It is cancelled when the task is
// asked to stop; context.Cause returns the *CancelError.
func (t *Task) Context() context.Context { return t.ctx }

// Done returns a channel closed once the task reaches a terminal state and
// its exit callbacks have run.
func (t *Task) Done() <-chan struct{} { return t.done }

// State returns the task's current lifecycle state.
func (t *Task) State() State {
	t.scope.mu.Lock()
	defer t.scope.mu.Unlock()
	return t.state
}

// Cause returns the failure cause for a Failed task. For a task that ended
// Cancelled after its body returned a non-cancellation error, the late error
// is retained here as a diagnostic; it never propagated.
func (t *Task) Cause() error {
	t.scope.mu.Lock()
	defer t.scope.mu.Unlock()
	return t.cause
}

// Reason returns the cancellation reason, or "" if the task was never asked
// to cancel.
func (t *Task) Reason() string {
	t.scope.mu.Lock()
	defer t.scope.mu.Unlock()
	return t.reason
}

// Await blocks until the task reaches a terminal state and returns its
// outcome: nil for Completed, a *WorkError for Failed, a *CancelError for
// Cancelled. Await is an idempotent read; every call returns the same
// outcome. If ctx is cancelled first, Await returns context.Cause(ctx)
// without consuming the task's outcome.
func (t *Task) Await(ctx context.Context) error {
	select {
	case <-t.done:
		return t.result
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// Cancel requests cancellation of this task and its descendants, leaving the
// rest of the scope untouched. Idempotent; no effect on terminal tasks.
func (t *Task) Cancel(reason string) {
	s := t.scope
	s.mu.Lock()
	s.sweepLocked(t, nil, reason)
	exits := s.settleLocked(t)
	s.mu.Unlock()
	s.runExits(exits)
}

// OnExit registers fn to run exactly once when the task reaches a terminal
// state, after its subtree has drained. Callbacks run in reverse
// registration order, on every exit path including cancellation. If the task
// is already terminal, fn runs immediately.
func (t *Task) OnExit(fn func()) {
	if fn == nil {
		return
	}
	s := t.scope
	s.mu.Lock()
	if t.finalized {
		s.mu.Unlock()
		fn()
		return
	}
	t.exits = append(t.exits, fn)
	s.mu.Unlock()
}

// runBody executes work, converting a panic into a *PanicError so a
// panicking task fails instead of crashing the process.
func runBody(ctx context.Context, work Work) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return work(ctx)
}
