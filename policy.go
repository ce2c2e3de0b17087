package taskscope

import "fmt"

// Policy determines how a scope reacts when one of its tasks fails.
type Policy int

const (
	// Propagating cancels every other task in the scope and fails the scope
	// with the first failure's cause. This is the default.
	Propagating Policy = iota
	// Isolating confines a failure to the task that failed. The cause is
	// delivered only through Await; siblings and the scope are unaffected.
	Isolating
)

// String returns the lowercase name used in configuration and events.
func (p Policy) String() string {
	switch p {
	case Propagating:
		return "propagating"
	case Isolating:
		return "isolating"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

func (p Policy) valid() bool {
	return p == Propagating || p == Isolating
}

// ParsePolicy converts a configuration string into a Policy.
// Unrecognized values return ErrInvalidPolicy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "propagating", "":
		return Propagating, nil
	case "isolating":
		return Isolating, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}
