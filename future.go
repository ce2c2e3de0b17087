package taskscope

import "context"

// Future is the typed handle to a task spawned with Go. The value is
// available once the task completes; failure and cancellation outcomes are
// the same errors Task.Await returns.
type Future[T any] struct {
	task *Task
	val  T
}

// Go spawns fn as a task of s and returns a typed future for its result.
// Spawn's parent-attachment and ErrScopeClosed rules apply unchanged.
func Go[T any](ctx context.Context, s *Scope, fn func(context.Context) (T, error), opts ...SpawnOption) (*Future[T], error) {
	f := &Future[T]{}
	t, err := s.Spawn(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		f.val = v
		return nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	f.task = t
	return f, nil
}

// Await blocks until the task is terminal and returns its value, or the
// zero value and a *WorkError / *CancelError. Idempotent, like Task.Await.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	if err := f.task.Await(ctx); err != nil {
		var zero T
		return zero, err
	}
	return f.val, nil
}

// Task returns the untyped handle behind the future.
func (f *Future[T]) Task() *Task { return f.task }
