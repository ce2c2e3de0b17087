package taskscope

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// Scenario: two children under the default Propagating policy. The first
// fails immediately, the second is mid-sleep. The sleeper must end
// Cancelled and the scope must fail with the first child's cause.
func TestPropagatingSiblingFailure(t *testing.T) {
	ctx := testCtx(t)
	errBoom := errors.New("boom")

	s, err := New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sleeper, err := s.Spawn(ctx, func(ctx context.Context) error {
		return Sleep(ctx, 100*time.Millisecond)
	}, Named("sleeper"))
	if err != nil {
		t.Fatalf("spawn sleeper: %v", err)
	}

	failer, err := s.Spawn(ctx, func(ctx context.Context) error {
		return errBoom
	}, Named("failer"))
	if err != nil {
		t.Fatalf("spawn failer: %v", err)
	}

	if err := sleeper.Await(ctx); !errors.Is(err, ErrCancelled) {
		t.Errorf("sleeper outcome = %v, want cancellation", err)
	}
	if err := failer.Await(ctx); !errors.Is(err, errBoom) {
		t.Errorf("failer outcome = %v, want wrapped %v", err, errBoom)
	}

	waitErr := s.Wait(ctx)
	if !errors.Is(waitErr, errBoom) {
		t.Errorf("scope outcome = %v, want wrapped %v", waitErr, errBoom)
	}
	var we *WorkError
	if !errors.As(waitErr, &we) {
		t.Fatalf("scope outcome = %T, want *WorkError", waitErr)
	}
	if we.Task != "failer" {
		t.Errorf("scope cause came from %q, want failer", we.Task)
	}

	if got := sleeper.State(); got != StateCancelled {
		t.Errorf("sleeper state = %s, want cancelled", got)
	}
	if got := failer.State(); got != StateFailed {
		t.Errorf("failer state = %s, want failed", got)
	}
	if !errors.Is(failer.Cause(), errBoom) {
		t.Errorf("failer cause = %v, want wrapped %v", failer.Cause(), errBoom)
	}
	if got := s.Err(); !errors.Is(got, errBoom) {
		t.Errorf("Err() = %v, want the Wait outcome", got)
	}
}

// Scenario: the same two children under Isolating. The failure stays with
// its awaiter; the sleeper completes with its value and the scope drains
// cleanly.
func TestIsolatingSiblingFailure(t *testing.T) {
	ctx := testCtx(t)
	errBoom := errors.New("boom")

	s, err := New(ctx, WithPolicy(Isolating))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sleeper, err := Go(ctx, s, func(ctx context.Context) (int, error) {
		if err := Sleep(ctx, 100*time.Millisecond); err != nil {
			return 0, err
		}
		return 42, nil
	}, Named("sleeper"))
	if err != nil {
		t.Fatalf("spawn sleeper: %v", err)
	}

	failer, err := s.Spawn(ctx, func(ctx context.Context) error {
		return errBoom
	}, Named("failer"))
	if err != nil {
		t.Fatalf("spawn failer: %v", err)
	}

	if err := failer.Await(ctx); !errors.Is(err, errBoom) {
		t.Errorf("failer outcome = %v, want wrapped %v", err, errBoom)
	}
	v, err := sleeper.Await(ctx)
	if err != nil {
		t.Fatalf("sleeper outcome = %v, want value", err)
	}
	if v != 42 {
		t.Errorf("sleeper value = %d, want 42", v)
	}

	// The scope is unaffected: it still accepts work.
	extra, err := s.Spawn(ctx, func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("spawn after isolated failure: %v", err)
	}
	if err := extra.Await(ctx); err != nil {
		t.Errorf("extra task outcome = %v, want nil", err)
	}

	if err := s.Wait(ctx); err != nil {
		t.Errorf("scope outcome = %v, want nil under isolating", err)
	}
}

// Scenario: CancelChildren stops in-flight descendants but leaves the scope
// open, so the issuing code can spawn replacement work.
func TestCancelChildrenThenRespawn(t *testing.T) {
	ctx := testCtx(t)

	s, err := New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	child, err := s.Spawn(ctx, func(ctx context.Context) error {
		return Sleep(ctx, 10*time.Second)
	}, Named("long"))
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	s.CancelChildren("rotating workers")

	err = child.Await(ctx)
	var ce *CancelError
	if !errors.As(err, &ce) {
		t.Fatalf("child outcome = %v, want *CancelError", err)
	}
	if ce.Reason != "rotating workers" {
		t.Errorf("cancel reason = %q, want %q", ce.Reason, "rotating workers")
	}
	if got := child.Reason(); got != "rotating workers" {
		t.Errorf("Reason() = %q, want %q", got, "rotating workers")
	}

	replacement, err := s.Spawn(ctx, func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("spawn after CancelChildren = %v, want success", err)
	}
	if err := replacement.Await(ctx); err != nil {
		t.Errorf("replacement outcome = %v, want nil", err)
	}
	if err := s.Wait(ctx); err != nil {
		t.Errorf("scope outcome = %v, want nil", err)
	}
}

func TestCancelIdempotent(t *testing.T) {
	ctx := testCtx(t)

	s, err := New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	child, err := s.Spawn(ctx, func(ctx context.Context) error {
		return Sleep(ctx, 10*time.Second)
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	s.Cancel("first")
	s.Cancel("second")

	err = child.Await(ctx)
	var ce *CancelError
	if !errors.As(err, &ce) {
		t.Fatalf("child outcome = %v, want *CancelError", err)
	}
	if ce.Reason != "first" {
		t.Errorf("cancel reason = %q, the first call must win", ce.Reason)
	}

	first := s.Snapshot()
	s.Cancel("third")
	second := s.Snapshot()
	if len(first) != len(second) {
		t.Fatalf("snapshot length changed: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i].State != second[i].State {
			t.Errorf("task %s state changed by repeated cancel: %s -> %s",
				first[i].ID, first[i].State, second[i].State)
		}
	}

	waitErr := s.Wait(ctx)
	if !errors.Is(waitErr, ErrCancelled) {
		t.Errorf("scope outcome = %v, want cancellation", waitErr)
	}
}

func TestAwaitIdempotent(t *testing.T) {
	ctx := testCtx(t)

	s, err := New(ctx, WithPolicy(Isolating))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	f, err := Go(ctx, s, func(ctx context.Context) (string, error) {
		return "done", nil
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	v1, err1 := f.Await(ctx)
	v2, err2 := f.Await(ctx)
	if err1 != nil || err2 != nil {
		t.Fatalf("awaits returned %v, %v", err1, err2)
	}
	if v1 != "done" || v2 != "done" {
		t.Errorf("awaits returned %q, %q, want identical values", v1, v2)
	}

	errBoom := errors.New("boom")
	failed, err := s.Spawn(ctx, func(ctx context.Context) error { return errBoom })
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	e1 := failed.Await(ctx)
	e2 := failed.Await(ctx)
	if e1 != e2 {
		t.Errorf("await returned distinct outcomes %v, %v", e1, e2)
	}
	if !errors.Is(e1, errBoom) {
		t.Errorf("outcome = %v, want wrapped %v", e1, errBoom)
	}

	if err := s.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestSpawnAfterCancelReturnsScopeClosed(t *testing.T) {
	ctx := testCtx(t)

	s, err := New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Cancel("done with it")

	if _, err := s.Spawn(ctx, func(ctx context.Context) error { return nil }); !errors.Is(err, ErrScopeClosed) {
		t.Errorf("spawn after cancel = %v, want ErrScopeClosed", err)
	}
}

func TestWaitClosesEmptyScope(t *testing.T) {
	ctx := testCtx(t)

	s, err := New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("wait on empty scope = %v, want nil", err)
	}
	if _, err := s.Spawn(ctx, func(ctx context.Context) error { return nil }); !errors.Is(err, ErrScopeClosed) {
		t.Errorf("spawn after drain = %v, want ErrScopeClosed", err)
	}
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Error("Done() not closed after Wait returned")
	}
}

// A parent task is never more terminal than its children: the parent's
// handle resolves only after the nested child drains.
func TestNestedSpawnParentWaitsForChild(t *testing.T) {
	ctx := testCtx(t)

	s, err := New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var child *Task
	start := time.Now()
	parent, err := s.Spawn(ctx, func(ctx context.Context) error {
		var spawnErr error
		child, spawnErr = s.Spawn(ctx, func(ctx context.Context) error {
			return Sleep(ctx, 100*time.Millisecond)
		}, Named("inner"))
		return spawnErr
	}, Named("outer"))
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	if err := parent.Await(ctx); err != nil {
		t.Fatalf("parent outcome = %v, want nil", err)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("parent resolved after %v, before its child could finish", elapsed)
	}
	if got := child.State(); got != StateCompleted {
		t.Errorf("child state at parent resolution = %s, want completed", got)
	}

	infos := s.Snapshot()
	if len(infos) != 2 {
		t.Fatalf("snapshot has %d tasks, want 2", len(infos))
	}
	if infos[1].Parent != parent.ID() {
		t.Errorf("inner task parent = %q, want %q", infos[1].Parent, parent.ID())
	}

	if err := s.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

// A grandchild failure under Propagating fails the whole scope; the
// intermediate parent, already being wound down, ends Cancelled.
func TestNestedFailurePropagates(t *testing.T) {
	ctx := testCtx(t)
	errDeep := errors.New("deep failure")

	s, err := New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sibling, err := s.Spawn(ctx, func(ctx context.Context) error {
		return Sleep(ctx, 10*time.Second)
	}, Named("sibling"))
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	parent, err := s.Spawn(ctx, func(ctx context.Context) error {
		if _, err := s.Spawn(ctx, func(ctx context.Context) error {
			return errDeep
		}, Named("grandchild")); err != nil {
			return err
		}
		return Sleep(ctx, 10*time.Second)
	}, Named("parent"))
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	if err := parent.Await(ctx); !errors.Is(err, ErrCancelled) {
		t.Errorf("intermediate parent outcome = %v, want cancellation", err)
	}
	if err := sibling.Await(ctx); !errors.Is(err, ErrCancelled) {
		t.Errorf("sibling outcome = %v, want cancellation", err)
	}
	if err := s.Wait(ctx); !errors.Is(err, errDeep) {
		t.Errorf("scope outcome = %v, want wrapped %v", err, errDeep)
	}
}

// Under Isolating a task can supervise its own children: the grandchild's
// failure reaches only its awaiter, and the parent completes normally.
func TestNestedFailureIsolated(t *testing.T) {
	ctx := testCtx(t)
	errDeep := errors.New("deep failure")

	s, err := New(ctx, WithPolicy(Isolating))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	parent, err := s.Spawn(ctx, func(ctx context.Context) error {
		g, err := s.Spawn(ctx, func(ctx context.Context) error {
			return errDeep
		})
		if err != nil {
			return err
		}
		if err := g.Await(ctx); !errors.Is(err, errDeep) {
			return errors.New("grandchild failure not delivered")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	if err := parent.Await(ctx); err != nil {
		t.Errorf("parent outcome = %v, want nil", err)
	}
	if err := s.Wait(ctx); err != nil {
		t.Errorf("scope outcome = %v, want nil", err)
	}
}

func TestLimitBoundsConcurrency(t *testing.T) {
	ctx := testCtx(t)

	s, err := New(ctx, WithLimit(2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var running, peak atomic.Int64
	for i := 0; i < 8; i++ {
		if _, err := s.Spawn(ctx, func(ctx context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			defer running.Add(-1)
			return Sleep(ctx, 20*time.Millisecond)
		}); err != nil {
			t.Fatalf("spawn %d: %v", i, err)
		}
	}

	if err := s.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
}

// A task cancelled while queued for a slot never runs its body.
func TestLimitCancelWhileQueued(t *testing.T) {
	ctx := testCtx(t)

	s, err := New(ctx, WithLimit(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	holder, err := s.Spawn(ctx, func(ctx context.Context) error {
		close(started)
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	})
	if err != nil {
		t.Fatalf("spawn holder: %v", err)
	}
	// Make sure the holder owns the only slot before queueing the next task.
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("holder never started")
	}

	var ran atomic.Bool
	queued, err := s.Spawn(ctx, func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	if err != nil {
		t.Fatalf("spawn queued: %v", err)
	}

	s.Cancel("shutting down")
	close(release)

	if err := queued.Await(ctx); !errors.Is(err, ErrCancelled) {
		t.Errorf("queued outcome = %v, want cancellation", err)
	}
	if ran.Load() {
		t.Error("queued body ran despite cancellation before a slot freed")
	}
	if err := holder.Await(ctx); !errors.Is(err, ErrCancelled) {
		t.Errorf("holder outcome = %v, want cancellation", err)
	}
	if err := s.Wait(ctx); !errors.Is(err, ErrCancelled) {
		t.Errorf("scope outcome = %v, want cancellation", err)
	}
}

func TestPanicBecomesFailure(t *testing.T) {
	ctx := testCtx(t)

	s, err := New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	task, err := s.Spawn(ctx, func(ctx context.Context) error {
		panic("unexpected state")
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	awaitErr := task.Await(ctx)
	var pe *PanicError
	if !errors.As(awaitErr, &pe) {
		t.Fatalf("outcome = %v, want wrapped *PanicError", awaitErr)
	}
	if len(pe.Stack) == 0 {
		t.Error("panic error carries no stack")
	}
	if err := s.Wait(ctx); !errors.As(err, &pe) {
		t.Errorf("scope outcome = %v, want the panic failure", err)
	}
}

func TestDeadlineIsFailureNotCancellation(t *testing.T) {
	ctx := testCtx(t)

	s, err := New(ctx, WithPolicy(Isolating))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	task, err := s.Spawn(ctx, func(ctx context.Context) error {
		return context.DeadlineExceeded
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	awaitErr := task.Await(ctx)
	if errors.Is(awaitErr, ErrCancelled) {
		t.Error("deadline exceeded was classified as cancellation")
	}
	var we *WorkError
	if !errors.As(awaitErr, &we) {
		t.Fatalf("outcome = %T, want *WorkError", awaitErr)
	}
	if got := task.State(); got != StateFailed {
		t.Errorf("state = %s, want failed", got)
	}
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestOnExitRunsOnEveryPath(t *testing.T) {
	ctx := testCtx(t)

	s, err := New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var order []string
	task, err := s.Spawn(ctx, func(ctx context.Context) error {
		return Sleep(ctx, 10*time.Second)
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	task.OnExit(func() { order = append(order, "first") })
	task.OnExit(func() { order = append(order, "second") })

	s.Cancel("release resources")

	// Done closes only after the exit callbacks have run.
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("task did not finish after cancellation")
	}
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Errorf("exit order = %v, want reverse registration order", order)
	}

	// Registration after the task is terminal runs immediately.
	ran := false
	task.OnExit(func() { ran = true })
	if !ran {
		t.Error("OnExit on a terminal task did not run immediately")
	}
}

// A body that never observes its context runs to completion, but a task
// already marked Cancelling still terminates as Cancelled.
func TestCancelledBodyThatIgnoresContext(t *testing.T) {
	ctx := testCtx(t)

	s, err := New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	running := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	task, err := s.Spawn(ctx, func(ctx context.Context) error {
		close(running)
		<-release
		finished.Store(true)
		return nil
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	<-running
	s.Cancel("stop everything")

	if got := task.State(); got != StateCancelling {
		t.Errorf("mid-flight state = %s, want cancelling", got)
	}
	close(release)

	if err := task.Await(ctx); !errors.Is(err, ErrCancelled) {
		t.Errorf("task outcome = %v, want cancellation despite clean return", err)
	}
	if !finished.Load() {
		t.Error("body did not run to completion")
	}
	if got := task.State(); got != StateCancelled {
		t.Errorf("final state = %s, want cancelled", got)
	}
}

func TestExternalContextCancelsScope(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx := testCtx(t)

	s, err := New(parent)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	task, err := s.Spawn(ctx, func(ctx context.Context) error {
		return Sleep(ctx, 10*time.Second)
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	cancel()

	if err := task.Await(ctx); !errors.Is(err, ErrCancelled) {
		t.Errorf("task outcome = %v, want cancellation", err)
	}
	if err := s.Wait(ctx); !errors.Is(err, ErrCancelled) {
		t.Errorf("scope outcome = %v, want cancellation", err)
	}
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Error("scope Done() not closed after external cancellation")
	}
}

func TestInvalidPolicyRejected(t *testing.T) {
	if _, err := New(context.Background(), WithPolicy(Policy(99))); !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("New with bad policy = %v, want ErrInvalidPolicy", err)
	}
}

func TestSpawnOnTerminalParentRejected(t *testing.T) {
	ctx := testCtx(t)

	s, err := New(ctx, WithPolicy(Isolating))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var captured context.Context
	task, err := s.Spawn(ctx, func(ctx context.Context) error {
		captured = ctx
		return nil
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := task.Await(ctx); err != nil {
		t.Fatalf("await: %v", err)
	}

	if _, err := s.Spawn(captured, func(ctx context.Context) error { return nil }); !errors.Is(err, ErrScopeClosed) {
		t.Errorf("spawn on terminal parent = %v, want wrapped ErrScopeClosed", err)
	}

	if err := s.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

// Cancelling one handle stops only that subtree.
func TestTaskCancelLeavesSiblingsAlone(t *testing.T) {
	ctx := testCtx(t)

	s, err := New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	victim, err := s.Spawn(ctx, func(ctx context.Context) error {
		return Sleep(ctx, 10*time.Second)
	}, Named("victim"))
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	survivor, err := Go(ctx, s, func(ctx context.Context) (string, error) {
		if err := Sleep(ctx, 50*time.Millisecond); err != nil {
			return "", err
		}
		return "alive", nil
	}, Named("survivor"))
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	victim.Cancel("not needed")

	if err := victim.Await(ctx); !errors.Is(err, ErrCancelled) {
		t.Errorf("victim outcome = %v, want cancellation", err)
	}
	v, err := survivor.Await(ctx)
	if err != nil || v != "alive" {
		t.Errorf("survivor outcome = %q, %v, want alive", v, err)
	}
	if err := s.Wait(ctx); err != nil {
		t.Errorf("scope outcome = %v, want nil", err)
	}
}

func TestAwaitHonoursCallerContext(t *testing.T) {
	ctx := testCtx(t)

	s, err := New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	task, err := s.Spawn(ctx, func(ctx context.Context) error {
		return Sleep(ctx, 10*time.Second)
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	short, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := task.Await(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("await with expired context = %v, want deadline exceeded", err)
	}
	// The task itself is untouched by the awaiter's deadline.
	if got := task.State(); got.Terminal() {
		t.Errorf("task state = %s, awaiter context must not affect the task", got)
	}

	s.Cancel("test over")
	if err := s.Wait(ctx); !errors.Is(err, ErrCancelled) {
		t.Fatalf("wait: %v", err)
	}
}

func TestConcurrentSpawnAndAwait(t *testing.T) {
	ctx := testCtx(t)

	s, err := New(ctx, WithPolicy(Isolating), WithLimit(16))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var completed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			for j := 0; j < 10; j++ {
				f, err := Go(gctx, s, func(ctx context.Context) (int, error) {
					return j, nil
				})
				if err != nil {
					return err
				}
				if _, err := f.Await(gctx); err != nil {
					return err
				}
				completed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent spawners: %v", err)
	}
	if got := completed.Load(); got != 200 {
		t.Errorf("completed = %d, want 200", got)
	}
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}
