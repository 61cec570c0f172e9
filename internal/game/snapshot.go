package game

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// SnapshotVersion is bumped whenever State changes shape.
const SnapshotVersion = 1

// Snapshot is a serialisable copy of an engine's state.
type Snapshot struct {
	Version int       `json:"version"`
	TakenAt time.Time `json:"taken_at"`
	State   *State    `json:"state"`
}

// Snapshot captures the current state.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Version: SnapshotVersion,
		TakenAt: e.clock.Now(),
		State:   e.state.Clone(),
	}
}

// Restore rebuilds an engine from a snapshot. The game account must hold
// exactly the snapshot's pot; anything else means the snapshot is stale.
func Restore(ctx context.Context, snap Snapshot, clock quartz.Clock, treasury Treasury, logger *log.Logger) (*Engine, error) {
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: snapshot version %d, want %d", ErrInternal, snap.Version, SnapshotVersion)
	}
	if snap.State == nil {
		return nil, fmt.Errorf("%w: snapshot has no state", ErrInternal)
	}
	st := snap.State.Clone()
	if err := st.Config.Validate(); err != nil {
		return nil, err
	}
	available, err := treasury.Available(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read game account: %w", err)
	}
	if available != st.Pot {
		return nil, fmt.Errorf("%w: account holds %d, snapshot pot is %d", ErrPotMismatch, available, st.Pot)
	}
	tx := &txn{state: st, available: available}
	if err := tx.checkInvariants(); err != nil {
		return nil, err
	}
	return newEngine(st, clock, treasury, logger), nil
}
