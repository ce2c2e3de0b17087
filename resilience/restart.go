package resilience

import (
	"context"
	"io"
	"log/slog"
	"math"
	"time"

	taskscope "github.com/aristath/taskscope"
)

// Strategy selects what the restart supervisor does when a child fails.
type Strategy int

const (
	// OneForOne restarts only the failed child.
	OneForOne Strategy = iota
	// OneForAll cancels every child and restarts the full set, including
	// children that had already finished.
	OneForAll
)

// ChildSpec declares one supervised child.
type ChildSpec struct {
	Name string
	Work taskscope.Work
}

// Options configures Run.
type Options struct {
	Strategy  Strategy
	Intensity int           // failures tolerated per Period before giving up (default 1)
	Period    time.Duration // decay window for the failure budget (default 1s)
	Logger    *slog.Logger
}

// Run supervises children until they all complete, the failure budget is
// exhausted, or ctx is cancelled. Children run as tasks of an isolating
// scope, so a failure reaches only the supervisor, which restarts according
// to the strategy. The budget accumulates one per failure and halves for
// every Period of quiet between failures; once it exceeds Intensity the
// supervisor cancels everything and returns the last failure. A child that
// ends cancelled is not a failure and is not restarted on its own.
// Cancelling ctx is an orderly stop: children are drained and Run returns
// nil.
func Run(ctx context.Context, opts Options, children ...ChildSpec) error {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Period <= 0 {
		opts.Period = time.Second
	}
	if opts.Intensity <= 0 {
		opts.Intensity = 1
	}
	if len(children) == 0 {
		return nil
	}

	scope, err := taskscope.New(ctx,
		taskscope.WithPolicy(taskscope.Isolating),
		taskscope.WithLogger(log),
		taskscope.WithName("restart"))
	if err != nil {
		return err
	}

	type exit struct {
		child ChildSpec
		err   error
	}
	// Buffered to the child count: at most one outstanding exit per live
	// child, so the awaiter goroutines never block.
	exits := make(chan exit, len(children))

	start := func(c ChildSpec) error {
		t, err := scope.Spawn(ctx, c.Work, taskscope.Named(c.Name))
		if err != nil {
			return err
		}
		go func() {
			exits <- exit{child: c, err: t.Await(context.Background())}
		}()
		return nil
	}

	stop := func(reason string) {
		scope.Cancel(reason)
		scope.Wait(context.Background())
	}

	abort := func(spawnErr error) error {
		stop("supervisor stopped")
		if ctx.Err() != nil {
			return nil
		}
		return spawnErr
	}

	for _, c := range children {
		if err := start(c); err != nil {
			return abort(err)
		}
	}

	running := len(children)
	var failures float64
	var lastFailure time.Time

	for running > 0 {
		var e exit
		select {
		case <-ctx.Done():
			stop("supervisor stopped")
			return nil
		case e = <-exits:
		}
		running--

		if e.err == nil || taskscope.IsCancelled(e.err) {
			continue
		}

		now := time.Now()
		if !lastFailure.IsZero() {
			failures *= math.Pow(0.5, float64(now.Sub(lastFailure)/opts.Period))
		}
		failures++
		lastFailure = now
		log.Warn("supervised child failed",
			"child", e.child.Name, "failures", failures, "err", e.err)

		if failures > float64(opts.Intensity) {
			stop("restart budget exhausted")
			return e.err
		}

		switch opts.Strategy {
		case OneForAll:
			scope.CancelChildren("restarting all children")
			for running > 0 {
				<-exits
				running--
			}
			for _, c := range children {
				if err := start(c); err != nil {
					return abort(err)
				}
				running++
			}
		default: // OneForOne
			if err := start(e.child); err != nil {
				return abort(err)
			}
			running++
		}
	}

	// Every child completed; drain the scope. The only error Wait can
	// report here is a cancellation racing in from ctx, which is still an
	// orderly stop.
	if err := scope.Wait(context.Background()); err != nil && !taskscope.IsCancelled(err) {
		return err
	}
	return nil
}
