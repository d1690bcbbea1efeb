package synchronizer

import (
	"github.com/beachsh/beach/internal/cell"
	"github.com/beachsh/beach/internal/deltastream"
	"github.com/beachsh/beach/internal/wire"
)

// snapshotStage orders the lanes a subscription walks through once,
// in the sequence the wire protocol requires (spec §4.3: "snapshots
// are delivered Foreground → Recent → History").
type snapshotStage int

const (
	stageForeground snapshotStage = iota
	stageRecent
	stageHistory
	stageDone
)

// laneCursor walks one lane's resident rows in the lane's required
// direction, tracking which StyleIds have already been published so
// each is only emitted once per lane (first-reference-wins).
type laneCursor struct {
	lane Lane

	// next is the next absolute row id to emit; lo/hi bound the
	// traversal (inclusive). Foreground/Recent walk next downward to
	// lo; History walks next upward to hi.
	next, lo, hi int64
	descending   bool

	emittedStyles map[cell.StyleID]bool
	done          bool
}

// Lane is a re-export of wire.Lane so callers of this package don't
// need to import internal/wire for the common case.
type Lane = wire.Lane

const (
	LaneForeground = wire.LaneForeground
	LaneRecent     = wire.LaneRecent
	LaneHistory    = wire.LaneHistory
)

func newDescendingCursor(lane Lane, hi, lo int64) *laneCursor {
	c := &laneCursor{lane: lane, next: hi, lo: lo, hi: hi, descending: true, emittedStyles: map[cell.StyleID]bool{}}
	if hi < lo {
		c.done = true
	}
	return c
}

func newAscendingCursor(lane Lane, lo, hi int64) *laneCursor {
	c := &laneCursor{lane: lane, next: lo, lo: lo, hi: hi, descending: false, emittedStyles: map[cell.StyleID]bool{}}
	if lo > hi {
		c.done = true
	}
	return c
}

func (c *laneCursor) hasMore() bool {
	if c.done {
		return false
	}
	if c.descending {
		return c.next >= c.lo
	}
	return c.next <= c.hi
}

func (c *laneCursor) advance() {
	if c.descending {
		c.next--
	} else {
		c.next++
	}
	if !c.hasMore() {
		c.done = true
	}
}

// Subscription is a single client's server-driven synchronization
// state: lane cursors for the baseline snapshot, the delta watermark,
// and the underlying delta-stream subscription feeding its deltas.
type Subscription struct {
	ID  string
	cfg Config

	maxSeq uint64
	stage  snapshotStage

	foreground *laneCursor
	recent     *laneCursor
	history    *laneCursor

	lastDeliveredSeq uint64
	pendingTrims     []deltastream.Update
	pendingDeltas    []deltastream.Update

	stream *deltastream.Subscription
}

// SnapshotComplete reports whether the baseline snapshot phase has
// finished.
func (s *Subscription) SnapshotComplete() bool { return s.stage == stageDone }

// Notify yields a signal whenever the underlying delta-stream
// subscription has buffered updates, so a caller's send loop can block
// on it between NextDeltaBatch calls instead of polling.
func (s *Subscription) Notify() <-chan struct{} { return s.stream.Notify() }

func (s *Subscription) currentCursor() (Lane, *laneCursor) {
	switch s.stage {
	case stageForeground:
		return LaneForeground, s.foreground
	case stageRecent:
		return LaneRecent, s.recent
	case stageHistory:
		return LaneHistory, s.history
	default:
		return 0, nil
	}
}
