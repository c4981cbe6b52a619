package workflow

import "errors"

var (
	// ErrNotFound is returned when the referenced vehicle does not exist
	ErrNotFound = errors.New("vehicle not found")

	// ErrInvalidState is returned when a target state id does not exist
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidTransition is returned when no active transition connects the current state to the target
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidComment is returned when a comment is missing or belongs to another state
	ErrInvalidComment = errors.New("invalid comment for target state")

	// ErrConfiguration is returned when the catalog cannot serve an operation, e.g. no initial state
	ErrConfiguration = errors.New("workflow configuration error")

	// ErrStateNotFound is returned when a state id queried for its comments does not exist
	ErrStateNotFound = errors.New("state not found")

	// ErrNoCommentsForState is returned when a state exists but has no predefined comments
	ErrNoCommentsForState = errors.New("no comments defined for state")

	// ErrConcurrentModification is returned when the vehicle state changed under a pending transition
	ErrConcurrentModification = errors.New("vehicle state was modified concurrently")

	// ErrAlreadyInitialized is returned when initialization targets a vehicle that already has a state
	ErrAlreadyInitialized = errors.New("vehicle state already initialized")

	// ErrBrokenHistory is returned when a ledger does not form a contiguous chain
	ErrBrokenHistory = errors.New("state history chain is broken")
)
