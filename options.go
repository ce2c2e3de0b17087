package taskscope

import (
	"log/slog"

	"github.com/aristath/taskscope/events"
)

// Option configures a Scope at creation time.
type Option func(*Scope)

// WithPolicy sets the scope's supervision policy. New rejects values outside
// the Policy enum with ErrInvalidPolicy.
func WithPolicy(p Policy) Option {
	return func(s *Scope) { s.policy = p }
}

// WithLimit caps how many tasks of the scope run concurrently. Tasks beyond
// the limit wait in Starting until a slot frees. n <= 0 means unlimited.
//
// A body holds its slot until it returns, including while it awaits another
// task of the same scope. On a limited scope a task must not wait for a
// sibling that may still be queued: once every slot is held by waiters, the
// awaited tasks can never start.
func WithLimit(n int64) Option {
	return func(s *Scope) { s.limit = n }
}

// WithLogger attaches a logger for lifecycle diagnostics. The default
// discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scope) {
		if l != nil {
			s.log = l
		}
	}
}

// WithBus attaches an event bus; every spawn, state transition, and scope
// outcome is published to it. Publishing is non-blocking and best-effort.
func WithBus(b *events.Bus) Option {
	return func(s *Scope) { s.bus = b }
}

// WithName sets a human-readable scope name for logs, events, and the
// journal. Defaults to a short form of the scope ID.
func WithName(name string) Option {
	return func(s *Scope) {
		if name != "" {
			s.name = name
		}
	}
}

// SpawnOption configures a single task at spawn time.
type SpawnOption func(*spawnConfig)

type spawnConfig struct {
	name string
}

// Named sets a human-readable task name for Await errors, logs, and events.
func Named(name string) SpawnOption {
	return func(c *spawnConfig) { c.name = name }
}
