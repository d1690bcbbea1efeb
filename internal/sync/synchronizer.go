package synchronizer

import (
	"sort"

	"go.uber.org/zap"

	"github.com/beachsh/beach/internal/cell"
	"github.com/beachsh/beach/internal/deltastream"
	"github.com/beachsh/beach/internal/grid"
	"github.com/beachsh/beach/internal/logging"
	"github.com/beachsh/beach/internal/wire"
)

// Synchronizer produces the Hello/Grid/Snapshot/SnapshotComplete/Delta/
// HistoryBackfill frame sequence for every subscriber of one
// TerminalGrid (spec §4.3). It holds no per-subscription state itself;
// all cursor bookkeeping lives on the Subscription, which the
// Synchronizer is exclusively handed for each step call.
type Synchronizer struct {
	grid *grid.TerminalGrid
	bus  *deltastream.Bus
	cfg  Config
	log  *zap.Logger
}

// New constructs a Synchronizer over g, fed by bus, configured per cfg.
func New(g *grid.TerminalGrid, bus *deltastream.Bus, cfg Config, log *zap.Logger) *Synchronizer {
	return &Synchronizer{grid: g, bus: bus, cfg: cfg, log: logging.OrNop(log)}
}

// Subscribe registers a new subscription, capturing max_seq and
// resetting its Foreground/Recent cursors from current grid residency
// (spec §4.3 step 1-2).
func (sy *Synchronizer) Subscribe(id string) *Subscription {
	maxSeq := sy.grid.MaxSeq()
	if latest := sy.bus.LatestSeq(); latest > maxSeq {
		maxSeq = latest
	}
	sub := &Subscription{
		ID:     id,
		cfg:    sy.cfg,
		maxSeq: maxSeq,
		stage:  stageForeground,
		stream: sy.bus.Subscribe(id),
	}
	sy.resetSnapshotCursors(sub)
	return sub
}

// Unsubscribe releases the subscription's delta-stream registration.
func (sy *Synchronizer) Unsubscribe(sub *Subscription) {
	sy.bus.Unsubscribe(sub.ID)
}

func (sy *Synchronizer) resetSnapshotCursors(sub *Subscription) {
	first, last := sy.grid.FirstRowID(), sy.grid.LastRowID()
	if last < first {
		sub.foreground = newDescendingCursor(LaneForeground, first-1, first)
		sub.foreground.done = true
		sub.recent = newDescendingCursor(LaneRecent, first-1, first)
		sub.recent.done = true
		sub.history = newAscendingCursor(LaneHistory, first, first-1)
		sub.history.done = true
		sub.stage = stageForeground
		return
	}

	floor := last - int64(sub.cfg.InitialSnapshotLines) + 1
	if floor < first {
		floor = first
	}
	sub.foreground = newDescendingCursor(LaneForeground, last, floor)
	sub.recent = newDescendingCursor(LaneRecent, floor-1, first)
	// History is empty in the baseline snapshot; it is populated only
	// via explicit RequestBackfill (spec §4.3).
	sub.history = newAscendingCursor(LaneHistory, first, first-1)
	sub.history.done = true
	sub.stage = stageForeground
}

// HelloFrame builds the initial greeting (spec §4.3).
func (sy *Synchronizer) HelloFrame(sub *Subscription) wire.HostFrame {
	return wire.HostFrame{
		Tag: wire.TagHello,
		Hello: &wire.HelloBody{
			SubscriptionID:  sub.ID,
			MaxSeq:          sub.maxSeq,
			Features:        wire.FeatureHistoryBackfill | wire.FeatureExtensions,
			ForegroundRows:  sub.cfg.ForegroundBudget,
			RecentBudget:    sub.cfg.RecentBudget,
			HistoryBudget:   sub.cfg.HistoryBudget,
			DeltaBudget:     sub.cfg.DeltaBudget,
			InitialSnapshot: sub.cfg.InitialSnapshotLines,
		},
	}
}

// GridFrame builds the dimensions frame (spec §4.3).
func (sy *Synchronizer) GridFrame() wire.HostFrame {
	return wire.HostFrame{
		Tag: wire.TagGrid,
		Grid: &wire.GridBody{
			Cols:        uint32(sy.grid.Cols()),
			HistoryRows: uint32(sy.grid.HistoryRows()),
			BaseRow:     sy.grid.FirstRowID(),
		},
	}
}

// NextSnapshotFrame advances the subscription's baseline snapshot by
// one step, returning either a Snapshot chunk or a SnapshotComplete
// marker. done is true once History's SnapshotComplete has been
// produced, i.e. the whole baseline snapshot phase is finished.
func (sy *Synchronizer) NextSnapshotFrame(sub *Subscription) (wire.HostFrame, bool, error) {
	if sub.stage == stageDone {
		return wire.HostFrame{}, true, nil
	}

	lane, cursor := sub.currentCursor()

	if !cursor.hasMore() {
		frame := wire.HostFrame{
			Tag: wire.TagSnapshotComplete,
			SnapshotComplete: &wire.SnapshotCompleteBody{
				SubscriptionID: sub.ID,
				Lane:           lane,
			},
		}
		sub.stage++
		return frame, sub.stage == stageDone, nil
	}

	budget := sub.cfg.budgetFor(lane)
	updates, err := sy.fillLaneChunk(cursor, budget, sub.maxSeq)
	if err != nil {
		return wire.HostFrame{}, false, err
	}
	frame := wire.HostFrame{
		Tag: wire.TagSnapshot,
		Snapshot: &wire.SnapshotBody{
			SubscriptionID: sub.ID,
			Lane:           lane,
			Watermark:      sub.maxSeq,
			HasMore:        cursor.hasMore(),
			Updates:        updates,
		},
	}
	return frame, false, nil
}

// fillLaneChunk emits style-then-row updates for as many rows as fit
// in budget, walking cursor in its configured direction. A row whose
// referenced styles plus itself can't fit in a fresh chunk is still
// emitted alone (budget of 0 would otherwise stall forever).
func (sy *Synchronizer) fillLaneChunk(cursor *laneCursor, budget uint32, seq uint64) ([]deltastream.Update, error) {
	var updates []deltastream.Update
	var used uint32

	for cursor.hasMore() {
		row := cursor.next
		need, err := sy.styleNeedsForRow(row, cursor.emittedStyles)
		if err != nil {
			return nil, err
		}

		cost := uint32(len(need)) + 1
		if used > 0 && used+cost > budget {
			break
		}

		for _, id := range need {
			style, err := sy.grid.Styles().Get(id)
			if err != nil {
				return nil, err
			}
			updates = append(updates, deltastream.NewStyle(id, seq, style))
			cursor.emittedStyles[id] = true
		}

		rowUpdate, err := sy.grid.SnapshotRow(row, seq)
		if err != nil {
			return nil, err
		}
		updates = append(updates, *rowUpdate)
		used += cost
		cursor.advance()

		if used >= budget {
			break
		}
	}

	return updates, nil
}

// styleNeedsForRow returns the distinct non-default style ids
// referenced by row that aren't in alreadyEmitted, in a deterministic
// (ascending) order.
func (sy *Synchronizer) styleNeedsForRow(row int64, alreadyEmitted map[cell.StyleID]bool) ([]cell.StyleID, error) {
	cols := sy.grid.Cols()
	seen := map[cell.StyleID]bool{}
	var need []cell.StyleID
	for col := 0; col < cols; col++ {
		id, err := sy.grid.StyleIDAt(row, uint32(col))
		if err != nil {
			return nil, err
		}
		if id == cell.DefaultStyleID || seen[id] || alreadyEmitted[id] {
			continue
		}
		seen[id] = true
		need = append(need, id)
	}
	sort.Slice(need, func(i, j int) bool { return need[i] < need[j] })
	return need, nil
}

// RequestBackfill serves a client-initiated History gap fill (spec
// §4.3, §6.1 RequestBackfill{from_row,count}).
func (sy *Synchronizer) RequestBackfill(sub *Subscription, fromRow int64, count uint32) wire.HostFrame {
	var updates []deltastream.Update
	end := fromRow + int64(count)
	for row := fromRow; row < end; row++ {
		need, err := sy.styleNeedsForRow(row, sub.history.emittedStyles)
		if err != nil {
			break // row not resident or out of range; stop without error
		}
		for _, id := range need {
			style, err := sy.grid.Styles().Get(id)
			if err != nil {
				continue
			}
			updates = append(updates, deltastream.NewStyle(id, sub.maxSeq, style))
			sub.history.emittedStyles[id] = true
		}
		rowUpdate, err := sy.grid.SnapshotRow(row, sub.maxSeq)
		if err != nil {
			break
		}
		updates = append(updates, *rowUpdate)
	}
	return wire.HostFrame{
		Tag:             wire.TagHistoryBackfill,
		HistoryBackfill: &wire.HistoryBackfillBody{Updates: updates},
	}
}

// ResetOnResize recomputes the Foreground/Recent cursors from current
// grid residency, discarding any in-flight snapshot progress (spec
// §4.3: "An OOB cursor after a resize resets the affected lane
// cursor").
func (sy *Synchronizer) ResetOnResize(sub *Subscription) {
	sy.resetSnapshotCursors(sub)
}

// refillPending pulls everything currently buffered on the bus
// subscription into sub's own trim/delta queues, so NextDeltaBatch can
// hand out updates in delta_budget-sized slices without losing the
// remainder between calls (deltastream.Subscription.Drain always
// empties its whole ring).
func (sy *Synchronizer) refillPending(sub *Subscription) {
	if len(sub.pendingDeltas) > 0 || len(sub.pendingTrims) > 0 {
		return
	}
	raw, dropped := sub.stream.Drain()
	if dropped {
		// The subscriber's ring overflowed: rows it never saw were
		// retired. Replace whatever it missed with a single Trim
		// covering the grid's current resident window, forcing a
		// HistoryBackfill round-trip to recover lost context.
		first := sy.grid.FirstRowID()
		if last := sy.grid.LastRowID(); last >= first {
			sub.pendingTrims = append(sub.pendingTrims, deltastream.NewTrim(first, int(last-first+1), sy.grid.MaxSeq()))
		}
	}
	for _, u := range raw {
		if u.Kind == deltastream.KindTrim {
			sub.pendingTrims = append(sub.pendingTrims, u)
		} else {
			sub.pendingDeltas = append(sub.pendingDeltas, u)
		}
	}
}

// coalesceTrims merges adjacent Trim records (trims [start,
// start+count) immediately followed by [start+count, ...)) into one,
// keeping the highest seq among the merged records.
func coalesceTrims(trims []deltastream.Update) []deltastream.Update {
	var out []deltastream.Update
	for _, t := range trims {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.TrimStart+int64(last.TrimCount) == t.TrimStart {
				last.TrimCount += t.TrimCount
				if t.Seq > last.Seq {
					last.Seq = t.Seq
				}
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// NextDeltaBatch drains trims first (coalesced into as few records as
// possible), then fills the rest of DeltaBudget with ordinary delta
// updates (trim records count against the budget), per spec
// §4.3/§8: "delta batch stream is strictly increasing in seq".
func (sy *Synchronizer) NextDeltaBatch(sub *Subscription) wire.HostFrame {
	sy.refillPending(sub)

	budget := int(sub.cfg.DeltaBudget)
	var batch []deltastream.Update

	if len(sub.pendingTrims) > 0 {
		batch = append(batch, coalesceTrims(sub.pendingTrims)...)
		sub.pendingTrims = nil
	}

	remaining := budget - len(batch)
	if remaining < 0 {
		remaining = 0
	}
	take := remaining
	if take > len(sub.pendingDeltas) {
		take = len(sub.pendingDeltas)
	}
	batch = append(batch, sub.pendingDeltas[:take]...)
	sub.pendingDeltas = sub.pendingDeltas[take:]

	hasMore := len(sub.pendingDeltas) > 0 || len(sub.pendingTrims) > 0

	watermark := sub.lastDeliveredSeq
	for _, u := range batch {
		if u.Seq > watermark {
			watermark = u.Seq
		}
	}
	sub.lastDeliveredSeq = watermark

	return wire.HostFrame{
		Tag: wire.TagDelta,
		Delta: &wire.DeltaBody{
			SubscriptionID: sub.ID,
			Watermark:      watermark,
			HasMore:        hasMore,
			Updates:        batch,
		},
	}
}
