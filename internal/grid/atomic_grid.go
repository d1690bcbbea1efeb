// Package grid implements the concurrent, lock-free(ish) grid store
// (spec §3.3, §4.2): a circular-history matrix of sequence-tagged
// packed-cell payloads with per-cell compare-and-swap writes, plus
// TerminalGrid, which layers style interning, row-id semantics and
// trim events on top (spec §3.3, §4.2 "Atomic Grid"; §4.2 "Terminal
// Grid" lives in terminal_grid.go).
//
// The per-cell atomic unit is modeled as an atomic.Pointer to an
// immutable {seq, payload} struct: a CAS-retry loop gives the
// lock-free, non-blocking semantics spec §5 requires without needing a
// true 128-bit CAS, matching the seqlock fallback design notes (§9)
// explicitly sanction. snapshot_row_into loads each cell's
// pointer once, so there is never a torn seq/payload pair within a
// cell, only relaxed ordering across cells, exactly the invariant
// spec §3.3 asks for.
//
// Grounded on pkg/terminal/buffer.go's TerminalBuffer,
// generalized from a single RWMutex-guarded 2D slice (and its
// scrollUp ring-shift) into per-cell atomics with an absolute-row-id
// ring.
package grid

import (
	"sync"
	"sync/atomic"

	"github.com/beachsh/beach/internal/cell"
	"github.com/beachsh/beach/internal/errs"
)

// WriteResult reports the outcome of a conditional write.
type WriteResult int

const (
	Written WriteResult = iota
	SkippedEqual
	SkippedOlder
)

// TrimEvent notifies that the oldest resident rows were evicted from
// history, per spec §3.3.
type TrimEvent struct {
	Start int64
	Count int
}

type slotValue struct {
	seq     uint64
	payload cell.Packed
}

// AtomicGrid is a rows x cols ring of sequence-tagged cells addressed
// both by physical index (0..rows-1) for the hot write/read path and
// by monotonically increasing absolute row id for scrollback.
type AtomicGrid struct {
	cols, rows int

	slots []atomic.Pointer[slotValue] // len = rows*cols, physIdx*cols+col
	frozen []atomic.Bool              // len = rows, emulator freeze/thaw guard

	mu         sync.Mutex // guards firstRowID/lastRowID during row advance only
	firstRowID int64
	lastRowID  int64 // -1 means no row has been advanced into yet
}

// NewAtomicGrid allocates a grid with the given column count and
// history-row capacity, with zero rows resident until AdvanceRow is
// called.
func NewAtomicGrid(cols, historyRows int) *AtomicGrid {
	g := &AtomicGrid{
		cols:       cols,
		rows:       historyRows,
		slots:      make([]atomic.Pointer[slotValue], cols*historyRows),
		frozen:     make([]atomic.Bool, historyRows),
		firstRowID: 0,
		lastRowID:  -1,
	}
	blank := &slotValue{seq: 0, payload: cell.Blank}
	for i := range g.slots {
		g.slots[i].Store(blank)
	}
	return g
}

// Dims returns (cols, historyRows).
func (g *AtomicGrid) Dims() (cols, historyRows int) { return g.cols, g.rows }

// FirstRowID returns the oldest resident absolute row id, or 0 if no
// row has ever been advanced into.
func (g *AtomicGrid) FirstRowID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.firstRowID
}

// LastRowID returns the newest resident absolute row id, or -1 if
// empty.
func (g *AtomicGrid) LastRowID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastRowID
}

func floorMod(a, m int64) int64 {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

// IndexOfRow maps an absolute row id to its physical index, if it is
// still resident.
func (g *AtomicGrid) IndexOfRow(abs int64) (int, bool) {
	g.mu.Lock()
	first, last := g.firstRowID, g.lastRowID
	g.mu.Unlock()
	if last < 0 || abs < first || abs > last {
		return 0, false
	}
	return int(floorMod(abs, int64(g.rows))), true
}

// RowIDAt maps a physical index back to its currently resident
// absolute row id, if any row is resident there.
func (g *AtomicGrid) RowIDAt(idx int) (int64, bool) {
	g.mu.Lock()
	first, last := g.firstRowID, g.lastRowID
	g.mu.Unlock()
	if last < 0 || idx < 0 || idx >= g.rows {
		return 0, false
	}
	abs := first + floorMod(int64(idx)-first, int64(g.rows))
	if abs < first || abs > last {
		return 0, false
	}
	return abs, true
}

// AdvanceRow brings one new absolute row into residency (e.g. on line
// feed), evicting the oldest row if the ring is already full, clearing
// the physical slot the new row reuses, and returning a TrimEvent if
// an eviction occurred.
func (g *AtomicGrid) AdvanceRow() (newRowID int64, trim *TrimEvent) {
	g.mu.Lock()
	g.lastRowID++
	newRowID = g.lastRowID
	if g.lastRowID-g.firstRowID+1 > int64(g.rows) {
		evicted := g.firstRowID
		g.firstRowID++
		trim = &TrimEvent{Start: evicted, Count: 1}
	}
	g.mu.Unlock()

	physIdx := int(floorMod(newRowID, int64(g.rows)))
	blank := &slotValue{seq: 0, payload: cell.Blank}
	base := physIdx * g.cols
	for c := 0; c < g.cols; c++ {
		g.slots[base+c].Store(blank)
	}
	g.frozen[physIdx].Store(false)
	return newRowID, trim
}

func (g *AtomicGrid) bounds(rowIdx, col int) error {
	if rowIdx < 0 || rowIdx >= g.rows || col < 0 || col >= g.cols {
		return errs.New(errs.KindOutOfBounds, "row/col index out of range")
	}
	return nil
}

// WriteCellIfNewer atomically writes (seq, payload) into the cell at
// (rowIdx, col) iff seq is strictly greater than the existing seq.
// Equal-seq writes are idempotent: if the payload matches, it's
// reported as SkippedEqual; if it differs, the existing write wins
// deterministically (first-wins), per spec §4.2's tie-breaking rule.
func (g *AtomicGrid) WriteCellIfNewer(rowIdx, col int, seq uint64, payload cell.Packed) (WriteResult, error) {
	if err := g.bounds(rowIdx, col); err != nil {
		return 0, err
	}
	idx := rowIdx*g.cols + col
	slot := &g.slots[idx]
	for {
		old := slot.Load()
		if old != nil {
			if seq < old.seq {
				return SkippedOlder, nil
			}
			if seq == old.seq {
				return SkippedEqual, nil
			}
		}
		next := &slotValue{seq: seq, payload: payload}
		if slot.CompareAndSwap(old, next) {
			return Written, nil
		}
		// Lost the race; retry against whatever is there now.
	}
}

// FillRectIfNewer applies WriteCellIfNewer to every cell in the
// half-open range [r0,r1) x [c0,c1). A cell already beyond this write
// is counted as skipped, never rolled back. OOB is reported without
// undoing completed cells (spec §4.2 "partial-failure").
func (g *AtomicGrid) FillRectIfNewer(r0, c0, r1, c1 int, seq uint64, payload cell.Packed) (written, skipped int, err error) {
	for r := r0; r < r1; r++ {
		for c := c0; c < c1; c++ {
			res, werr := g.WriteCellIfNewer(r, c, seq, payload)
			if werr != nil {
				return written, skipped, werr
			}
			if res == Written {
				written++
			} else {
				skipped++
			}
		}
	}
	return written, skipped, nil
}

// SnapshotRowInto copies the row's packed payloads into dst, which
// must have length == cols. Each cell read is internally consistent
// (no torn seq/payload pair) but cells are read independently, so the
// row as a whole may interleave with concurrent writers.
func (g *AtomicGrid) SnapshotRowInto(rowIdx int, dst []uint64) error {
	if rowIdx < 0 || rowIdx >= g.rows {
		return errs.New(errs.KindOutOfBounds, "row index out of range")
	}
	if len(dst) != g.cols {
		return errs.New(errs.KindOutOfBounds, "dst length must equal cols")
	}
	base := rowIdx * g.cols
	for c := 0; c < g.cols; c++ {
		s := g.slots[base+c].Load()
		if s == nil {
			dst[c] = uint64(cell.Blank)
			continue
		}
		dst[c] = uint64(s.payload)
	}
	return nil
}

// SeqAt returns the current seq stored at (rowIdx, col), for tests and
// diagnostics.
func (g *AtomicGrid) SeqAt(rowIdx, col int) (uint64, error) {
	if err := g.bounds(rowIdx, col); err != nil {
		return 0, err
	}
	s := g.slots[rowIdx*g.cols+col].Load()
	if s == nil {
		return 0, nil
	}
	return s.seq, nil
}

// FreezeRow marks a row immutable between emulator edits. Idempotent.
func (g *AtomicGrid) FreezeRow(rowIdx int) error {
	if rowIdx < 0 || rowIdx >= g.rows {
		return errs.New(errs.KindOutOfBounds, "row index out of range")
	}
	g.frozen[rowIdx].Store(true)
	return nil
}

// ThawRow releases a frozen row. The seq parameter is accepted for
// symmetry with FreezeRow's call sites (callers typically thaw at a
// specific seq boundary) but AtomicGrid itself doesn't gate writes on
// the frozen flag; the emulator adapter uses it as an advisory guard.
func (g *AtomicGrid) ThawRow(rowIdx int, seq uint64) error {
	if rowIdx < 0 || rowIdx >= g.rows {
		return errs.New(errs.KindOutOfBounds, "row index out of range")
	}
	_ = seq
	g.frozen[rowIdx].Store(false)
	return nil
}

// IsFrozen reports a row's freeze state.
func (g *AtomicGrid) IsFrozen(rowIdx int) bool {
	if rowIdx < 0 || rowIdx >= g.rows {
		return false
	}
	return g.frozen[rowIdx].Load()
}
