package entity

import "time"

// State is one node of the configurable lifecycle graph
type State struct {
	ID           int64     `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	IsInitial    bool      `json:"is_initial"`
	IsFinal      bool      `json:"is_final"`
	DisplayOrder int       `json:"display_order"`
	Active       bool      `json:"active"`
	Icon         string    `json:"icon,omitempty"`
	Color        string    `json:"color,omitempty"`
	Category     string    `json:"category,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Transition is a directed edge of the lifecycle graph.
// Condition and Action are descriptive only and never evaluated.
type Transition struct {
	ID          int64     `json:"id"`
	FromStateID int64     `json:"from_state_id"`
	ToStateID   int64     `json:"to_state_id"`
	Condition   string    `json:"condition,omitempty"`
	Action      string    `json:"action,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// StateComment is a predefined annotation attachable to entries into its state
type StateComment struct {
	ID        int64     `json:"id"`
	StateID   int64     `json:"state_id"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// StateHistoryEntry is an append-only ledger row recording one state change.
// FromStateID is nil only for the initialization entry.
type StateHistoryEntry struct {
	ID          int64     `json:"id"`
	VehicleID   int64     `json:"vehicle_id"`
	FromStateID *int64    `json:"from_state_id"`
	ToStateID   int64     `json:"to_state_id"`
	UserID      int64     `json:"user_id"`
	CommentID   *int64    `json:"comment_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// IsInitialization reports whether the entry records the first state assignment
func (h *StateHistoryEntry) IsInitialization() bool {
	return h.FromStateID == nil
}
