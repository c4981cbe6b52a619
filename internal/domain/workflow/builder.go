package workflow

import (
	"sort"

	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
)

// TableBuilder accumulates transitions into an immutable Table
type TableBuilder interface {
	// Permit registers a transition. Inactive transitions are ignored.
	Permit(t entity.Transition) TableBuilder

	// Build returns a snapshot of the registered transitions
	Build() *Table
}

type tableBuilder struct {
	edges map[int64][]entity.Transition
}

// NewBuilder creates a new transition table builder
func NewBuilder() TableBuilder {
	return &tableBuilder{
		edges: make(map[int64][]entity.Transition),
	}
}

// Permit registers an active transition; duplicates of the same pair are collapsed
func (b *tableBuilder) Permit(t entity.Transition) TableBuilder {
	if !t.Active {
		return b
	}
	for _, existing := range b.edges[t.FromStateID] {
		if existing.ToStateID == t.ToStateID {
			return b
		}
	}
	b.edges[t.FromStateID] = append(b.edges[t.FromStateID], t)
	return b
}

// Build creates a Table. Later calls to Permit do not affect tables already built.
func (b *tableBuilder) Build() *Table {
	edges := make(map[int64][]entity.Transition, len(b.edges))
	for from, list := range b.edges {
		cp := append([]entity.Transition(nil), list...)
		sort.SliceStable(cp, func(i, j int) bool { return cp[i].ID < cp[j].ID })
		edges[from] = cp
	}
	return &Table{edges: edges}
}

// BuildTable is a shorthand for building a table from a transition listing
func BuildTable(transitions []*entity.Transition) *Table {
	b := NewBuilder()
	for _, t := range transitions {
		if t != nil {
			b.Permit(*t)
		}
	}
	return b.Build()
}
