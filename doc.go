// Package taskscope provides structured concurrency for Go: scopes that own
// trees of concurrently running tasks and supervise their failure and
// cancellation.
//
// A Scope groups sibling tasks under an implicit root and applies one of two
// supervision policies. Under Propagating (the default), any task failure
// cancels every other task in the scope and the scope itself fails with the
// first failure's cause. Under Isolating, a failure is delivered only to
// whoever awaits the failed task; the rest of the scope keeps running.
//
// Tasks move through a fixed lifecycle:
//
//	Starting -> Running -> Completed
//	                    -> Failed
//	         \_________ -> Cancelling -> Cancelled
//
// Cancellation is cooperative. Each task receives a context.Context that is
// cancelled when the task should stop, and the task observes it at suspension
// points (Await, Sleep, or any select on ctx.Done()). A body that never
// suspends runs to completion, but a task that was asked to cancel still
// terminates as Cancelled.
//
// A minimal session:
//
//	s, err := taskscope.New(ctx)
//	if err != nil {
//		return err
//	}
//	t, err := s.Spawn(ctx, func(ctx context.Context) error {
//		return doWork(ctx)
//	})
//	if err != nil {
//		return err
//	}
//	if err := t.Await(ctx); err != nil {
//		// *WorkError: the body failed; *CancelError: the task was cancelled.
//	}
//	return s.Wait(ctx)
package taskscope
