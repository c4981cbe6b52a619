package workflow

import (
	"fmt"

	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
)

// InitialState picks the unique state flagged as initial
func InitialState(states []*entity.State) (*entity.State, error) {
	var initial *entity.State
	for _, s := range states {
		if s == nil || !s.IsInitial {
			continue
		}
		if initial != nil {
			return nil, fmt.Errorf("%w: multiple initial states (%s, %s)", ErrConfiguration, initial.Code, s.Code)
		}
		initial = s
	}
	if initial == nil {
		return nil, fmt.Errorf("%w: no initial state configured", ErrConfiguration)
	}
	return initial, nil
}

// VerifyHistory checks that a ledger ordered by (timestamp, id) forms a chain:
// the first entry starts from no state and each later entry starts where the previous ended.
// The returned error names the first offending entry.
func VerifyHistory(entries []*entity.StateHistoryEntry) error {
	for i, e := range entries {
		if i == 0 {
			if e.FromStateID != nil {
				return fmt.Errorf("%w: entry %d does not start from the initialization", ErrBrokenHistory, e.ID)
			}
			continue
		}
		if e.FromStateID == nil {
			return fmt.Errorf("%w: entry %d re-initializes the vehicle", ErrBrokenHistory, e.ID)
		}
		if *e.FromStateID != entries[i-1].ToStateID {
			return fmt.Errorf("%w: entry %d starts at state %d, previous entry ended at %d",
				ErrBrokenHistory, e.ID, *e.FromStateID, entries[i-1].ToStateID)
		}
	}
	return nil
}

// ReplayHistory runs a chained ledger through the transition table and returns
// the machine positioned where the ledger ends. The first entry must land on
// initialID and every later entry must be a permitted move from the one before.
// An empty ledger yields a nil machine.
func ReplayHistory(entries []*entity.StateHistoryEntry, initialID int64, table *Table) (StateMachine, error) {
	if err := VerifyHistory(entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	if entries[0].ToStateID != initialID {
		return nil, fmt.Errorf("%w: entry %d initializes to state %d, initial state is %d",
			ErrBrokenHistory, entries[0].ID, entries[0].ToStateID, initialID)
	}

	m := table.Machine(initialID)
	for _, e := range entries[1:] {
		permitted := m.Permitted()
		if err := m.Fire(e.ToStateID); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w (permitted: %v)", ErrBrokenHistory, e.ID, err, permitted)
		}
	}
	return m, nil
}
