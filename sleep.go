package taskscope

import (
	"context"
	"time"
)

// Sleep pauses for d or until ctx is cancelled, whichever comes first. It is
// the package's cancellable delay: a suspension point at which a task
// observes cancellation. Returns nil after a full sleep, context.Cause(ctx)
// otherwise.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return context.Cause(ctx)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
