// Package synchronizer implements the priority-lane snapshot/delta
// protocol (spec §4.3): per-subscription cursors across the
// Foreground/Recent/History lanes, lane budgets, and the Hello/Grid/
// Snapshot/SnapshotComplete/Delta/HistoryBackfill/Heartbeat/InputAck
// frame sequence.
//
// Grounded on pkg/termsocket/manager.go, whose
// scheduleBufferNotification debounces change notifications per
// subscriber; here that becomes an explicit pull-based
// snapshot-chunk/delta-batch step function so the caller's task loop
// (§5: "single-threaded per subscription... loops
// (snapshot_chunk|delta_batch)") controls pacing and back-pressure
// directly rather than via a timer callback.
package synchronizer

import "github.com/beachsh/beach/internal/wire"

// Config mirrors the negotiated per-lane budgets carried in Hello.
type Config struct {
	// ForegroundBudget/RecentBudget/HistoryBudget bound the number of
	// updates (style + row) emitted per snapshot chunk for that lane.
	ForegroundBudget uint32
	RecentBudget     uint32
	HistoryBudget    uint32

	// DeltaBudget bounds updates per delta batch.
	DeltaBudget uint32

	// InitialSnapshotLines sizes the Foreground window: rows from
	// last_row_id down to last_row_id-InitialSnapshotLines+1.
	InitialSnapshotLines uint32
}

// DefaultConfig matches a reasonably small interactive terminal.
func DefaultConfig() Config {
	return Config{
		ForegroundBudget:     64,
		RecentBudget:         256,
		HistoryBudget:        512,
		DeltaBudget:          128,
		InitialSnapshotLines: 64,
	}
}

func (c Config) budgetFor(lane wire.Lane) uint32 {
	switch lane {
	case wire.LaneForeground:
		return c.ForegroundBudget
	case wire.LaneRecent:
		return c.RecentBudget
	case wire.LaneHistory:
		return c.HistoryBudget
	default:
		return 0
	}
}
