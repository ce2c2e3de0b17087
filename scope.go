package taskscope

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/aristath/taskscope/events"
)

// Scope owns a set of sibling task trees and supervises their failure and
// cancellation according to its Policy. A scope is destroyed only after
// every task it owns has reached a terminal state; Wait drains it and
// reports the outcome.
type Scope struct {
	id     string
	name   string
	policy Policy
	limit  int64

	log *slog.Logger
	bus *events.Bus
	sem *semaphore.Weighted

	mu      sync.Mutex
	root    *Task   // implicit root task; carries the scope outcome
	order   []*Task // non-root tasks in spawn order
	active  int     // non-root tasks not yet finalized
	closed  bool    // terminal teardown has begun; no further spawns
	cause   error   // first propagating failure
	waiters []chan struct{}
}

// New creates a scope whose tasks descend from ctx. Cancelling ctx cancels
// the scope. The default policy is Propagating; an out-of-range policy
// returns ErrInvalidPolicy.
func New(ctx context.Context, opts ...Option) (*Scope, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	s := &Scope{
		id:     uuid.NewString(),
		policy: Propagating,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(s)
	}
	if !s.policy.valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPolicy, int(s.policy))
	}
	if s.name == "" {
		s.name = "scope-" + shortID(s.id)
	}
	if s.limit > 0 {
		s.sem = semaphore.NewWeighted(s.limit)
	}

	sctx, cancel := context.WithCancelCause(ctx)
	root := &Task{
		id:    uuid.NewString(),
		name:  s.name,
		scope: s,
		state: StateStarting,
		done:  make(chan struct{}),
	}
	root.ctx = withTask(sctx, root)
	root.cancel = cancel
	s.root = root

	s.mu.Lock()
	s.publish(events.TopicScopes, events.ScopeCreatedEvent{
		Scope: s.id, Name: s.name, Policy: s.policy.String(), Timestamp: time.Now(),
	})
	s.publish(events.TopicTasks, events.TaskSpawnedEvent{
		Scope: s.id, ID: root.id, Name: root.name, Timestamp: time.Now(),
	})
	s.advanceLocked(root, StateRunning, "")
	s.mu.Unlock()

	go s.watch()
	s.log.Debug("scope created", "scope", s.name, "policy", s.policy.String())
	return s, nil
}

// watch ties the scope to its parent context: external cancellation tears
// the scope down the same way an explicit Cancel would.
func (s *Scope) watch() {
	select {
	case <-s.root.ctx.Done():
		s.Cancel(cancelCauseReason(context.Cause(s.root.ctx)))
	case <-s.root.done:
	}
}

// ID returns the scope's unique identifier.
func (s *Scope) ID() string { return s.id }

// Name returns the scope's human-readable name.
func (s *Scope) Name() string { return s.name }

// Policy returns the scope's supervision policy.
func (s *Scope) Policy() Policy { return s.policy }

// Context returns the scope's context. It carries the scope's root task, so
// Spawn called with it attaches top-level tasks, and it is cancelled when
// the scope is cancelled or fails.
func (s *Scope) Context() context.Context { return s.root.ctx }

// Done returns a channel closed when the scope is destroyed: every owned
// task terminal and the outcome fixed.
func (s *Scope) Done() <-chan struct{} { return s.root.done }

// Err returns the scope outcome: nil while the scope is alive or after a
// clean drain, the first *WorkError after a propagating failure, or a
// *CancelError after cancellation.
func (s *Scope) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root.result
}

// OnExit registers fn to run exactly once when the scope is destroyed, in
// reverse registration order.
func (s *Scope) OnExit(fn func()) { s.root.OnExit(fn) }

// Spawn starts work as a new task of the scope and returns its handle
// immediately; the body begins concurrently at the scheduler's discretion.
// If ctx carries a running task of this scope, the new task becomes its
// child; otherwise it attaches to the scope root. Returns ErrScopeClosed
// once terminal teardown has begun.
func (s *Scope) Spawn(ctx context.Context, work Work, opts ...SpawnOption) (*Task, error) {
	if work == nil {
		return nil, errors.New("taskscope: spawn requires a work function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var cfg spawnConfig
	for _, o := range opts {
		o(&cfg)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrScopeClosed
	}
	parent := s.root
	if cur, ok := FromContext(ctx); ok && cur.scope == s {
		parent = cur
	}
	if parent.state != StateStarting && parent.state != StateRunning {
		state := parent.state
		s.mu.Unlock()
		return nil, fmt.Errorf("parent task %s is %s: %w", shortID(parent.id), state, ErrScopeClosed)
	}

	t := &Task{
		id:     uuid.NewString(),
		name:   cfg.name,
		scope:  s,
		parent: parent,
		work:   work,
		state:  StateStarting,
		done:   make(chan struct{}),
	}
	tctx, cancel := context.WithCancelCause(parent.ctx)
	t.ctx = withTask(tctx, t)
	t.cancel = cancel

	parent.children = append(parent.children, t)
	s.order = append(s.order, t)
	s.active++

	parentID := ""
	if parent != s.root {
		parentID = parent.id
	}
	s.publish(events.TopicTasks, events.TaskSpawnedEvent{
		Scope: s.id, ID: t.id, Parent: parentID, Name: t.name, Timestamp: time.Now(),
	})
	s.log.Debug("task spawned", "scope", s.name, "task", t.id, "name", t.name)
	s.mu.Unlock()

	go s.runTask(t)
	return t, nil
}

// Cancel requests cancellation of the scope: every owned task is marked
// Cancelling and must observe it at its next suspension point, and the
// scope closes for new spawns. Idempotent; a no-op once teardown has begun
// for any reason.
func (s *Scope) Cancel(reason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.publish(events.TopicScopes, events.ScopeCancelledEvent{
		Scope: s.id, Reason: reason, Timestamp: time.Now(),
	})
	s.log.Debug("scope cancelled", "scope", s.name, "reason", reason)
	s.sweepLocked(s.root, nil, reason)
	if s.root.state == StateRunning {
		s.advanceLocked(s.root, StateCancelling, reason)
	}
	s.root.cancel(&CancelError{TaskID: s.root.id, Task: s.name, Reason: reason})
	exits := s.settleLocked(s.root)
	s.mu.Unlock()
	s.runExits(exits)
}

// CancelChildren cancels every descendant task while leaving the scope
// itself open: the caller keeps its context and may spawn new work under
// the same scope afterwards.
func (s *Scope) CancelChildren(reason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.publish(events.TopicScopes, events.ChildrenCancelledEvent{
		Scope: s.id, Reason: reason, Timestamp: time.Now(),
	})
	s.log.Debug("children cancelled", "scope", s.name, "reason", reason)
	s.sweepLocked(s.root, nil, reason)
	s.mu.Unlock()
}

// Wait blocks until every owned task is terminal, then closes the scope and
// returns its outcome: nil after a clean drain, the first *WorkError after
// a propagating failure, a *CancelError after cancellation. Failures under
// Isolating do not surface here; they are delivered through Await only.
// When Wait returns, every OnExit callback has finished too.
// If ctx is cancelled first, Wait returns context.Cause(ctx) and the scope
// stays open.
func (s *Scope) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		s.mu.Lock()
		if s.root.finalized {
			err := s.root.result
			s.mu.Unlock()
			s.drainFinalizers()
			return err
		}
		if !s.closed && s.active == 0 {
			if s.root.ctx.Err() != nil {
				// External cancellation the watch goroutine has not observed
				// yet; close through the cancel path so the outcome is a
				// cancellation, not a clean drain.
				s.mu.Unlock()
				s.Cancel(cancelCauseReason(context.Cause(s.root.ctx)))
				continue
			}
			s.closed = true
			exits := s.settleLocked(s.root)
			err := s.root.result
			s.mu.Unlock()
			s.runExits(exits)
			s.drainFinalizers()
			return err
		}
		w := make(chan struct{})
		s.waiters = append(s.waiters, w)
		s.mu.Unlock()

		select {
		case <-w:
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}
}

// TaskInfo is a point-in-time view of one task in a scope.
type TaskInfo struct {
	ID     string
	Name   string
	Parent string // parent task ID; empty for top-level tasks
	State  State
	Reason string
	Err    error
}

// Snapshot returns every task spawned into the scope, in spawn order.
func (s *Scope) Snapshot() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskInfo, 0, len(s.order))
	for _, t := range s.order {
		info := TaskInfo{ID: t.id, Name: t.name, State: t.state, Reason: t.reason, Err: t.cause}
		if t.parent != nil && t.parent != s.root {
			info.Parent = t.parent.id
		}
		out = append(out, info)
	}
	return out
}

// runTask is the worker goroutine for one task: slot acquisition, the
// pre-run cancellation check, the body, and outcome recording.
func (s *Scope) runTask(t *Task) {
	if s.sem != nil {
		if err := s.sem.Acquire(t.ctx, 1); err != nil {
			// cancelled while waiting for a slot
			s.mu.Lock()
			if t.state == StateStarting {
				s.advanceLocked(t, StateCancelling, cancelCauseReason(context.Cause(t.ctx)))
			}
			t.bodyDone = true
			t.bodyErr = err
			exits := s.settleLocked(t)
			s.mu.Unlock()
			s.runExits(exits)
			return
		}
		defer s.sem.Release(1)
	}

	s.mu.Lock()
	if t.state != StateStarting || t.ctx.Err() != nil {
		// cancellation arrived before the body ran
		if t.state == StateStarting {
			s.advanceLocked(t, StateCancelling, cancelCauseReason(context.Cause(t.ctx)))
		}
		t.bodyDone = true
		t.bodyErr = context.Cause(t.ctx)
		exits := s.settleLocked(t)
		s.mu.Unlock()
		s.runExits(exits)
		return
	}
	s.advanceLocked(t, StateRunning, "")
	s.mu.Unlock()

	s.bodyReturned(t, runBody(t.ctx, t.work))
}

// bodyReturned records the body outcome, applies the supervision policy for
// failures, and finalizes whatever became finalizable.
func (s *Scope) bodyReturned(t *Task, err error) {
	s.mu.Lock()
	t.bodyDone = true
	t.bodyErr = err

	if err != nil && t.state == StateRunning {
		if IsCancelled(err) {
			s.sweepLocked(t, nil, cancelCauseReason(err))
		} else {
			t.cause = &WorkError{TaskID: t.id, Task: t.name, Err: err}
			s.log.Warn("task failed", "scope", s.name, "task", t.id, "name", t.name, "err", err)
			reason := "task " + t.display() + " failed"
			s.sweepLocked(t, t, reason)
			if s.policy == Propagating {
				s.failScopeLocked(t, t.cause, reason)
			}
		}
	}

	exits := s.settleLocked(t)
	s.mu.Unlock()
	s.runExits(exits)
}

// sweepLocked marks every Starting/Running task in t's subtree (including t
// itself, unless t is the root or equals skip) as Cancelling and cancels its
// context. skip protects a task that is failing and must reach Failed.
func (s *Scope) sweepLocked(t *Task, skip *Task, reason string) {
	for _, c := range t.children {
		s.sweepLocked(c, skip, reason)
	}
	if t == s.root || t == skip {
		return
	}
	if t.state == StateStarting || t.state == StateRunning {
		s.advanceLocked(t, StateCancelling, reason)
		t.cancel(&CancelError{TaskID: t.id, Task: t.name, Reason: reason})
	}
}

// failScopeLocked begins scope-wide teardown after a propagating failure.
// The first failure wins as the scope cause; origin keeps its Failed state.
func (s *Scope) failScopeLocked(origin *Task, cause error, reason string) {
	if s.cause == nil {
		s.cause = cause
	}
	if s.closed {
		return
	}
	s.closed = true
	s.sweepLocked(s.root, origin, reason)
	s.root.cancel(s.cause)
}

// settleLocked finalizes t if it has become finalizable, then walks toward
// the root finalizing every ancestor the drain unblocked. Returns exit
// callbacks to run after the lock is released.
func (s *Scope) settleLocked(t *Task) []func() {
	var exits []func()
	for cur := t; cur != nil; cur = cur.parent {
		if !s.finalizableLocked(cur) {
			break
		}
		exits = append(exits, s.finalizeLocked(cur)...)
	}
	return exits
}

// finalizableLocked reports whether t can take its terminal state now: body
// finished (for the root: scope closed) and every child terminal.
func (s *Scope) finalizableLocked(t *Task) bool {
	if t.finalized {
		return false
	}
	if t == s.root {
		if !s.closed {
			return false
		}
	} else if !t.bodyDone {
		return false
	}
	for _, c := range t.children {
		if !c.state.Terminal() {
			return false
		}
	}
	return true
}

// finalizeLocked resolves t's terminal state, fixes its Await outcome, and
// emits terminal events. Caller must have checked finalizableLocked.
func (s *Scope) finalizeLocked(t *Task) []func() {
	switch {
	case t.state == StateCancelling:
		// A real error returned during cancellation stays on the handle as a
		// diagnostic; the lifecycle does not allow Cancelling -> Failed.
		if t.bodyErr != nil && !IsCancelled(t.bodyErr) && t.cause == nil {
			t.cause = &WorkError{TaskID: t.id, Task: t.name, Err: t.bodyErr}
		}
		s.advanceLocked(t, StateCancelled, "")
	case t == s.root && s.cause != nil:
		t.cause = s.cause
		s.advanceLocked(t, StateFailed, "")
	case t.bodyErr != nil && !IsCancelled(t.bodyErr):
		s.advanceLocked(t, StateFailed, "")
	default:
		s.advanceLocked(t, StateCompleted, "")
	}

	t.finalized = true
	switch t.state {
	case StateFailed:
		t.result = t.cause
	case StateCancelled:
		t.result = &CancelError{TaskID: t.id, Task: t.name, Reason: t.reason}
	default:
		t.result = nil
	}
	// Release the context registration with the parent; a no-op for tasks
	// that were already cancelled.
	t.cancel(nil)
	if t != s.root {
		s.active--
	}

	errStr := ""
	if t.state == StateFailed && t.cause != nil {
		errStr = t.cause.Error()
	}
	s.publish(events.TopicTasks, events.TaskFinishedEvent{
		Scope: s.id, ID: t.id, Name: t.name, State: t.state.String(), Err: errStr, Timestamp: time.Now(),
	})
	if t == s.root {
		s.publish(events.TopicScopes, events.ScopeFinishedEvent{
			Scope: s.id, Outcome: t.state.String(), Err: errStr, Timestamp: time.Now(),
		})
		s.log.Debug("scope finished", "scope", s.name, "outcome", t.state.String())
	}

	exits := make([]func(), 0, len(t.exits)+1)
	for i := len(t.exits) - 1; i >= 0; i-- {
		exits = append(exits, t.exits[i])
	}
	t.exits = nil
	done := t.done
	exits = append(exits, func() { close(done) })

	for _, w := range s.waiters {
		close(w)
	}
	s.waiters = nil

	return exits
}

// advanceLocked applies one state transition if the lifecycle allows it.
func (s *Scope) advanceLocked(t *Task, to State, reason string) bool {
	if !allowedTransition(t.state, to) {
		return false
	}
	from := t.state
	t.state = to

	evReason := ""
	if to == StateCancelling {
		if reason != "" && t.reason == "" {
			t.reason = reason
		}
		evReason = t.reason
	}

	s.log.Debug("task transition", "scope", s.name, "task", t.id, "from", from.String(), "to", to.String())
	s.publish(events.TopicTasks, events.TaskTransitionEvent{
		Scope: s.id, ID: t.id, Name: t.name,
		From: from.String(), To: to.String(), Reason: evReason, Timestamp: time.Now(),
	})
	return true
}

func (s *Scope) publish(topic string, e events.Event) {
	if s.bus != nil {
		s.bus.Publish(topic, e)
	}
}

// runExits invokes exit callbacks outside the scope lock, containing panics
// so a bad callback cannot take down a worker goroutine.
func (s *Scope) runExits(exits []func()) {
	for _, fn := range exits {
		s.runExit(fn)
	}
}

// drainFinalizers blocks until every task's exit batch has run. Each done
// channel closes as the last element of its task's batch, so after the drain
// no OnExit callback is still in flight. Callable only once the root is
// finalized: every done channel is then guaranteed to close.
func (s *Scope) drainFinalizers() {
	s.mu.Lock()
	tasks := append([]*Task(nil), s.order...)
	s.mu.Unlock()
	for _, t := range tasks {
		<-t.done
	}
	<-s.root.done
}

func (s *Scope) runExit(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("exit callback panicked", "scope", s.name, "panic", r)
		}
	}()
	fn()
}

func (t *Task) display() string {
	if t.name != "" {
		return t.name
	}
	return shortID(t.id)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// cancelCauseReason renders a context cause as a cancellation reason.
func cancelCauseReason(err error) string {
	var ce *CancelError
	switch {
	case err == nil:
		return "cancelled"
	case errors.As(err, &ce):
		return ce.Reason
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline exceeded"
	case errors.Is(err, context.Canceled):
		return "context cancelled"
	default:
		return err.Error()
	}
}
