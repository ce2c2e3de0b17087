// Package resource tracks acquisitions so work releases everything it
// obtained on every exit path. Register a release function as each resource
// is acquired, then release them individually or all at once in reverse
// acquisition order; BindTo arranges the latter to happen automatically when
// a task or scope exits, cancellation included.
package resource

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ErrNotTracked is returned by Release for an ID with no live registration.
var ErrNotTracked = errors.New("resource: not tracked")

// Tracker records release functions for acquired resources and runs each at
// most once. Safe for concurrent use; release functions run outside the
// tracker's lock.
type Tracker struct {
	mu    sync.Mutex
	order []string // acquisition order
	funcs map[string]func() error
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{funcs: make(map[string]func() error)}
}

// Acquire registers release to run when id is released. Re-acquiring a live
// ID is an error: silently replacing the function would orphan the first
// resource.
func (t *Tracker) Acquire(id string, release func() error) error {
	if id == "" {
		return errors.New("resource: acquire requires an ID")
	}
	if release == nil {
		return fmt.Errorf("resource: acquire %s requires a release function", id)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.funcs[id]; exists {
		return fmt.Errorf("resource: %s already tracked", id)
	}
	t.funcs[id] = release
	t.order = append(t.order, id)
	return nil
}

// Release runs and forgets one resource's release function.
func (t *Tracker) Release(id string) error {
	t.mu.Lock()
	release, ok := t.funcs[id]
	if ok {
		t.removeLocked(id)
	}
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotTracked, id)
	}
	if err := release(); err != nil {
		return fmt.Errorf("resource: release %s: %w", id, err)
	}
	return nil
}

// ReleaseAll releases every tracked resource in reverse acquisition order
// and joins the failures. The tracker is empty afterwards, even when some
// releases fail.
func (t *Tracker) ReleaseAll() error {
	t.mu.Lock()
	order := t.order
	funcs := t.funcs
	t.order = nil
	t.funcs = make(map[string]func() error)
	t.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		if err := funcs[id](); err != nil {
			errs = append(errs, fmt.Errorf("resource: release %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of live registrations.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.funcs)
}

// Tracked returns the live IDs in acquisition order.
func (t *Tracker) Tracked() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.order...)
}

func (t *Tracker) removeLocked(id string) {
	delete(t.funcs, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Finalizer is anything whose exit can trigger release. Both a task and a
// scope of the root package satisfy it through their OnExit methods.
type Finalizer interface {
	OnExit(func())
}

// BindTo arranges for ReleaseAll to run when f exits, on every exit path
// including cancellation. Release failures are logged at Warn; a nil logger
// discards them.
func (t *Tracker) BindTo(f Finalizer, log *slog.Logger) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	f.OnExit(func() {
		if err := t.ReleaseAll(); err != nil {
			log.Warn("resource release failed", "error", err)
		}
	})
}
