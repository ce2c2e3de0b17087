package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	taskscope "github.com/aristath/taskscope"
	"github.com/aristath/taskscope/events"
)

// Options configures a plan run.
type Options struct {
	// Policy decides what a unit failure means for the rest of the plan.
	// Propagating aborts everything still pending; Isolating lets branches
	// that do not depend on the failure finish, skipping only dependents.
	Policy taskscope.Policy

	// Limit caps how many units run concurrently. Zero means no cap. Only
	// units past their dependency waits count against the cap, so a chain
	// longer than the limit still drains.
	Limit int64

	// Logger receives the scope's lifecycle logging. Nil discards.
	Logger *slog.Logger

	// Bus, when set, receives the underlying scope and task events, so a
	// plan can be journalled or observed like any other scope.
	Bus *events.Bus

	// Locks serializes units that share lock keys. When nil each run gets a
	// private set; pass a shared LockSet to serialize across plans.
	Locks *LockSet
}

// UnitResult is the outcome of a single unit.
type UnitResult struct {
	// Err is the error the unit's Run returned, a cancellation cause, or
	// for a skipped unit the reason it was skipped. Nil means success.
	Err error

	// Skipped is true when the unit never ran: a dependency failed, was
	// skipped itself, or the plan was torn down before the unit started.
	Skipped bool

	StartedAt  time.Time
	FinishedAt time.Time
}

// Results maps unit ID to outcome. Run returns one entry per unit.
type Results map[string]UnitResult

// Err joins the errors of every unit that genuinely failed, in unit ID
// order. Skipped and cancelled units are not failures.
func (r Results) Err() error {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		res := r[id]
		if res.Err == nil || res.Skipped || taskscope.IsCancelled(res.Err) {
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", id, res.Err))
	}
	return errors.Join(errs...)
}

// Run executes every unit of the graph as a task of one scope, honouring
// dependency order and lock keys. It blocks until the plan settles and
// returns the per-unit outcomes plus the scope's own verdict: nil when every
// spawned unit was allowed to finish, the first failure under Propagating,
// or a cancellation cause when the plan was torn down. Under Isolating,
// per-unit failures live in Results; use Results.Err to collect them.
func Run(ctx context.Context, g *Graph, opts Options) (Results, error) {
	order, err := g.Validate()
	if err != nil {
		return nil, err
	}

	locks := opts.Locks
	if locks == nil {
		locks = NewLockSet()
	}

	scopeOpts := []taskscope.Option{
		taskscope.WithPolicy(opts.Policy),
		taskscope.WithName("plan"),
	}
	if opts.Logger != nil {
		scopeOpts = append(scopeOpts, taskscope.WithLogger(opts.Logger))
	}
	if opts.Bus != nil {
		scopeOpts = append(scopeOpts, taskscope.WithBus(opts.Bus))
	}
	scope, err := taskscope.New(ctx, scopeOpts...)
	if err != nil {
		return nil, err
	}

	// The cap is owned by the plan, not the scope: every unit spawns
	// immediately so its handle exists for dependents, and an execution
	// slot is only contended once a unit's dependency waits are over.
	var sem *semaphore.Weighted
	if opts.Limit > 0 {
		sem = semaphore.NewWeighted(opts.Limit)
	}

	var (
		mu      sync.Mutex
		results = make(Results, len(order))
		tasks   = make(map[string]*taskscope.Task, len(order))
	)
	record := func(id string, res UnitResult) {
		mu.Lock()
		results[id] = res
		mu.Unlock()
	}
	recorded := func(id string) (UnitResult, bool) {
		mu.Lock()
		defer mu.Unlock()
		res, ok := results[id]
		return res, ok
	}
	handle := func(id string) *taskscope.Task {
		mu.Lock()
		defer mu.Unlock()
		return tasks[id]
	}

	body := func(u Unit) taskscope.Work {
		return func(ctx context.Context) error {
			// Dependencies were spawned earlier in topological order, so
			// their handles exist before this body runs.
			for _, need := range u.Needs {
				if err := handle(need).Await(ctx); err != nil {
					if ctx.Err() != nil {
						// The plan itself is going down; which select arm
						// delivered err is scheduler-dependent, the check
						// is not.
						return context.Cause(ctx)
					}
					record(u.ID, UnitResult{
						Skipped: true,
						Err:     fmt.Errorf("needs %s: %w", need, err),
					})
					return nil
				}
				if res, ok := recorded(need); ok && res.Skipped {
					record(u.ID, UnitResult{
						Skipped: true,
						Err:     fmt.Errorf("needs %s, which was skipped", need),
					})
					return nil
				}
			}

			if sem != nil {
				// A unit still waiting on dependencies holds no slot, so
				// the units it waits for can always be admitted.
				if err := sem.Acquire(ctx, 1); err != nil {
					return context.Cause(ctx)
				}
				defer sem.Release(1)
			}

			locks.LockAll(u.Locks)
			defer locks.UnlockAll(u.Locks)
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}

			started := time.Now()
			err := u.Run(ctx)
			record(u.ID, UnitResult{Err: err, StartedAt: started, FinishedAt: time.Now()})
			return err
		}
	}

	for _, id := range order {
		t, err := scope.Spawn(ctx, body(g.units[id]), taskscope.Named(id))
		if err != nil {
			// Teardown began while spawning: the plan was cancelled, or an
			// early unit already failed under Propagating. Remaining units
			// never start.
			break
		}
		mu.Lock()
		tasks[id] = t
		mu.Unlock()
	}

	werr := scope.Wait(context.Background())

	// Every task is terminal now; fill in outcomes the bodies did not record
	// themselves (units cancelled before their work began, units never
	// spawned).
	mu.Lock()
	for id, t := range tasks {
		if _, ok := results[id]; !ok {
			results[id] = UnitResult{Err: t.Await(context.Background())}
		}
	}
	for _, id := range order {
		if _, ok := results[id]; !ok {
			results[id] = UnitResult{Skipped: true}
		}
	}
	mu.Unlock()

	return results, werr
}
