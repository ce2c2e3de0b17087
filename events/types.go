package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	ScopeID() string
}

// Topic constants
const (
	TopicTasks  = "tasks"
	TopicScopes = "scopes"
)

// Event type constants
const (
	EventTypeScopeCreated      = "scope.created"
	EventTypeScopeCancelled    = "scope.cancelled"
	EventTypeChildrenCancelled = "scope.children_cancelled"
	EventTypeScopeFinished     = "scope.finished"
	EventTypeTaskSpawned       = "task.spawned"
	EventTypeTaskTransition    = "task.transition"
	EventTypeTaskFinished      = "task.finished"
)

// ScopeCreatedEvent is published when a scope is created.
type ScopeCreatedEvent struct {
	Scope     string
	Name      string
	Policy    string
	Timestamp time.Time
}

func (e ScopeCreatedEvent) EventType() string { return EventTypeScopeCreated }
func (e ScopeCreatedEvent) ScopeID() string   { return e.Scope }

// ScopeCancelledEvent is published when a whole scope is cancelled.
type ScopeCancelledEvent struct {
	Scope     string
	Reason    string
	Timestamp time.Time
}

func (e ScopeCancelledEvent) EventType() string { return EventTypeScopeCancelled }
func (e ScopeCancelledEvent) ScopeID() string   { return e.Scope }

// ChildrenCancelledEvent is published when a scope's descendants are
// cancelled while the scope itself stays open.
type ChildrenCancelledEvent struct {
	Scope     string
	Reason    string
	Timestamp time.Time
}

func (e ChildrenCancelledEvent) EventType() string { return EventTypeChildrenCancelled }
func (e ChildrenCancelledEvent) ScopeID() string   { return e.Scope }

// ScopeFinishedEvent is published when every task a scope owns has reached a
// terminal state and the scope is destroyed.
type ScopeFinishedEvent struct {
	Scope     string
	Outcome   string // final state of the scope root: completed, failed, or cancelled
	Err       string // cause for a failed scope, empty otherwise
	Timestamp time.Time
}

func (e ScopeFinishedEvent) EventType() string { return EventTypeScopeFinished }
func (e ScopeFinishedEvent) ScopeID() string   { return e.Scope }

// TaskSpawnedEvent is published when a task is attached to a scope.
type TaskSpawnedEvent struct {
	Scope     string
	ID        string
	Parent    string // parent task ID, empty for the scope root itself
	Name      string
	Timestamp time.Time
}

func (e TaskSpawnedEvent) EventType() string { return EventTypeTaskSpawned }
func (e TaskSpawnedEvent) ScopeID() string   { return e.Scope }

// TaskTransitionEvent is published on every task state transition.
type TaskTransitionEvent struct {
	Scope     string
	ID        string
	Name      string
	From      string
	To        string
	Reason    string // cancellation reason when To is cancelling
	Timestamp time.Time
}

func (e TaskTransitionEvent) EventType() string { return EventTypeTaskTransition }
func (e TaskTransitionEvent) ScopeID() string   { return e.Scope }

// TaskFinishedEvent is published once per task when it reaches a terminal
// state.
type TaskFinishedEvent struct {
	Scope     string
	ID        string
	Name      string
	State     string // completed, failed, or cancelled
	Err       string // failure cause, empty unless failed
	Timestamp time.Time
}

func (e TaskFinishedEvent) EventType() string { return EventTypeTaskFinished }
func (e TaskFinishedEvent) ScopeID() string   { return e.Scope }
