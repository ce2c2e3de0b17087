package journal

import (
	"context"
	"io"
	"log/slog"

	"github.com/aristath/taskscope/events"
)

// Recorder drains a bus subscription into the store. It runs in its own
// goroutine; a slow or broken database never blocks the supervision core
// because the bus drops rather than waits.
type Recorder struct {
	store *Store
	bus   *events.Bus
	log   *slog.Logger

	ch   <-chan events.Event
	done chan struct{}
}

// NewRecorder wires a store to a bus. Call Start to begin consuming.
func NewRecorder(store *Store, bus *events.Bus, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Recorder{
		store: store,
		bus:   bus,
		log:   logger,
		done:  make(chan struct{}),
	}
}

// Start subscribes to every topic and begins journaling in the background.
func (r *Recorder) Start(ctx context.Context) {
	r.ch = r.bus.SubscribeAll(1024)
	go r.run(ctx)
}

// Stop unsubscribes and waits for buffered events to be written. Stopping a
// recorder that was never started is a no-op.
func (r *Recorder) Stop() {
	if r.ch == nil {
		return
	}
	r.bus.Unsubscribe(r.ch)
	<-r.done
}

func (r *Recorder) run(ctx context.Context) {
	defer close(r.done)

	// Unsubscribe closes the channel but buffered events still drain,
	// so nothing observed before Stop is lost.
	for e := range r.ch {
		r.handle(ctx, e)
	}
}

func (r *Recorder) handle(ctx context.Context, e events.Event) {
	var err error

	switch ev := e.(type) {
	case events.ScopeCreatedEvent:
		err = r.store.CreateScope(ctx, ev.Scope, ev.Name, ev.Policy)
	case events.ScopeFinishedEvent:
		err = r.store.FinishScope(ctx, ev.Scope, ev.Outcome, ev.Err)
	case events.TaskSpawnedEvent:
		err = r.store.CreateTask(ctx, ev.ID, ev.Scope, ev.Parent, ev.Name)
	case events.TaskTransitionEvent:
		err = r.store.RecordTransition(ctx, ev.ID, ev.From, ev.To, ev.Reason)
	case events.TaskFinishedEvent:
		err = r.store.FinishTask(ctx, ev.ID, ev.State, ev.Err)
	default:
		// Cancellation announcements carry no state of their own; the
		// transitions they trigger are journaled individually.
		return
	}

	if err != nil {
		r.log.Warn("journal write failed",
			"event", e.EventType(),
			"scope", e.ScopeID(),
			"error", err)
	}
}
