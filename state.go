package taskscope

import "fmt"

// State represents the current lifecycle state of a task.
type State int

const (
	StateStarting   State = iota // Created, not yet running (may be waiting for a slot)
	StateRunning                 // Body executing
	StateCompleted               // Body returned nil, subtree drained
	StateFailed                  // Body returned an error, subtree drained
	StateCancelling              // Cancellation requested, not yet terminal
	StateCancelled               // Cancellation took effect
)

// String returns the lowercase name used in events and the journal.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelling:
		return "cancelling"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether s is one of the three final states.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// allowedTransition is the full set of legal state moves. Transitions are
// one-directional: Cancelling is reachable from Starting or Running only,
// Completed and Failed from Running only, Cancelled from Cancelling only.
func allowedTransition(from, to State) bool {
	switch from {
	case StateStarting:
		return to == StateRunning || to == StateCancelling
	case StateRunning:
		return to == StateCompleted || to == StateFailed || to == StateCancelling
	case StateCancelling:
		return to == StateCancelled
	default:
		return false
	}
}
