package workflow

import (
	"fmt"

	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
)

// Table is an immutable view of the active transitions
type Table struct {
	edges map[int64][]entity.Transition
}

// Permits reports whether an active transition from -> to exists
func (t *Table) Permits(from, to int64) bool {
	for _, e := range t.edges[from] {
		if e.ToStateID == to {
			return true
		}
	}
	return false
}

// From returns the active transitions leaving a state, ordered by transition id
func (t *Table) From(from int64) []entity.Transition {
	return append([]entity.Transition(nil), t.edges[from]...)
}

// Targets returns the ids of the states reachable in one step, ordered by transition id
func (t *Table) Targets(from int64) []int64 {
	targets := make([]int64, 0, len(t.edges[from]))
	for _, e := range t.edges[from] {
		targets = append(targets, e.ToStateID)
	}
	return targets
}

// Machine returns a state machine positioned at the given state
func (t *Table) Machine(current int64) StateMachine {
	return &stateMachine{current: current, table: t}
}

// StateMachine tracks a current state and validates moves against the table
type StateMachine interface {
	// State returns the current state id
	State() int64

	// Fire moves to the target state. On error the current state is unchanged.
	Fire(to int64) error

	// Permitted returns the reachable target state ids
	Permitted() []int64
}

type stateMachine struct {
	current int64
	table   *Table
}

func (m *stateMachine) State() int64 {
	return m.current
}

func (m *stateMachine) Fire(to int64) error {
	if !m.table.Permits(m.current, to) {
		return fmt.Errorf("%w: %d -> %d", ErrInvalidTransition, m.current, to)
	}
	m.current = to
	return nil
}

func (m *stateMachine) Permitted() []int64 {
	return m.table.Targets(m.current)
}
