// Package plan executes a dependency-ordered set of work units on a task
// scope. Every unit becomes one task; dependency edges are enforced by
// awaiting the dependency tasks before the unit's own work runs, so the
// scope's supervision policy decides what a failure means for the rest of
// the plan: Propagating aborts it, Isolating lets independent branches
// finish and skips only the dependents of the failure.
package plan

import (
	"fmt"

	"github.com/gammazero/toposort"

	taskscope "github.com/aristath/taskscope"
)

// Unit is one node of a plan: named work plus the units it needs first and
// the lock keys it holds while running.
type Unit struct {
	ID    string
	Needs []string // IDs of units that must complete first
	Locks []string // keys held for the duration of Run
	Run   taskscope.Work
}

// Graph is a set of units indexed by ID. Not safe for concurrent mutation;
// build it, validate it, then hand it to Run.
type Graph struct {
	units map[string]Unit
	order []string // insertion order, keeps spawning deterministic
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{units: make(map[string]Unit)}
}

// Add inserts a unit. Returns an error for a missing ID or Run, a duplicate
// ID, or a self-dependency.
func (g *Graph) Add(u Unit) error {
	if u.ID == "" {
		return fmt.Errorf("plan: unit needs an ID")
	}
	if u.Run == nil {
		return fmt.Errorf("plan: unit %q needs a Run function", u.ID)
	}
	if _, exists := g.units[u.ID]; exists {
		return fmt.Errorf("plan: unit %q already exists", u.ID)
	}
	for _, dep := range u.Needs {
		if dep == u.ID {
			return fmt.Errorf("plan: unit %q depends on itself", u.ID)
		}
	}

	g.units[u.ID] = u
	g.order = append(g.order, u.ID)
	return nil
}

// Len returns the number of units.
func (g *Graph) Len() int { return len(g.units) }

// Validate checks that every dependency exists and the graph is acyclic.
// Returns unit IDs in a valid execution order.
func (g *Graph) Validate() ([]string, error) {
	for _, id := range g.order {
		for _, dep := range g.units[id].Needs {
			if _, exists := g.units[dep]; !exists {
				return nil, fmt.Errorf("plan: unit %q needs unknown unit %q", id, dep)
			}
		}
	}

	var edges []toposort.Edge
	for _, id := range g.order {
		u := g.units[id]
		if len(u.Needs) == 0 {
			// No dependencies - edge from nil keeps the unit in the sort
			edges = append(edges, toposort.Edge{nil, id})
		} else {
			for _, dep := range u.Needs {
				// Edge (dep, id) means dep must come before id
				edges = append(edges, toposort.Edge{dep, id})
			}
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("plan: cycle detected: %w", err)
	}

	order := make([]string, 0, len(g.units))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	return order, nil
}
