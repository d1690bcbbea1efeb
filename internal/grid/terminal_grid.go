package grid

import (
	"sync/atomic"

	"github.com/beachsh/beach/internal/cell"
	"github.com/beachsh/beach/internal/deltastream"
	"github.com/beachsh/beach/internal/errs"
)

// TerminalGrid wraps an AtomicGrid with a shared style table and
// row-id semantics, translating cell/rect/row writes into
// deltastream.Update records for the delta stream (spec §4.2 "Terminal
// Grid"). Grounded on TerminalBuffer, whose Write/Resize
// pair with an in-struct style table; here the style table is a
// dedicated, separately-owned Table shared by reference (spec §3.9).
type TerminalGrid struct {
	grid  *AtomicGrid
	styles *cell.Table

	seq atomic.Uint64
}

// NewTerminalGrid constructs a grid of the given dimensions with a
// fresh style table.
func NewTerminalGrid(cols, historyRows int) *TerminalGrid {
	return &TerminalGrid{
		grid:   NewAtomicGrid(cols, historyRows),
		styles: cell.NewTable(),
	}
}

// Styles returns the shared style table (lifetime = TerminalGrid, per
// spec §3.9).
func (t *TerminalGrid) Styles() *cell.Table { return t.styles }

// Atomic exposes the underlying AtomicGrid for direct low-level access
// (used by the synchronizer's snapshot cursors).
func (t *TerminalGrid) Atomic() *AtomicGrid { return t.grid }

// NextSeq allocates the next monotonic sequence number for a caller
// (typically the emulator adapter) to stamp onto a batch of writes.
func (t *TerminalGrid) NextSeq() uint64 { return t.seq.Add(1) }

// MaxSeq returns the highest seq allocated so far.
func (t *TerminalGrid) MaxSeq() uint64 { return t.seq.Load() }

// ObserveSeq folds an externally-generated seq into the monotonic
// counter so NextSeq never regresses after e.g. a backfill replay.
func (t *TerminalGrid) ObserveSeq(seq uint64) {
	for {
		cur := t.seq.Load()
		if seq <= cur {
			return
		}
		if t.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}

// WriteCell interns style, writes the cell at the given absolute row
// id if still resident, and returns the resulting CacheUpdate (nil if
// the write was skipped), or an OutOfBounds error if the row is no
// longer resident.
func (t *TerminalGrid) WriteCell(absRow int64, col uint32, r rune, style cell.Style, attrs uint8, seq uint64) (*deltastream.Update, error) {
	idx, ok := t.grid.IndexOfRow(absRow)
	if !ok {
		return nil, errs.New(errs.KindOutOfBounds, "row not resident")
	}
	styleID := t.styles.EnsureID(style)
	payload := cell.Pack(r, styleID, attrs)
	res, err := t.grid.WriteCellIfNewer(idx, int(col), seq, payload)
	if err != nil {
		return nil, err
	}
	if res != Written {
		return nil, nil
	}
	u := deltastream.NewCell(uint32(absRow), col, seq, payload)
	return &u, nil
}

// FillRect interns style once and fills the half-open row/col range at
// the given absolute row range, returning the resulting CacheUpdate
// plus written/skipped counts. Rows outside current residency are
// treated as OutOfBounds, consistent with AtomicGrid.
func (t *TerminalGrid) FillRect(absR0, absR1 int64, c0, c1 uint32, r rune, style cell.Style, attrs uint8, seq uint64) (*deltastream.Update, int, int, error) {
	i0, ok0 := t.grid.IndexOfRow(absR0)
	i1end, ok1 := t.grid.IndexOfRow(absR1 - 1)
	if !ok0 || !ok1 {
		return nil, 0, 0, errs.New(errs.KindOutOfBounds, "row range not fully resident")
	}
	styleID := t.styles.EnsureID(style)
	payload := cell.Pack(r, styleID, attrs)

	// Physical indices may wrap around the ring; iterate by absolute
	// row id and resolve each row's physical index individually rather
	// than assuming i0..i1end is contiguous.
	written, skipped := 0, 0
	for abs := absR0; abs < absR1; abs++ {
		idx, ok := t.grid.IndexOfRow(abs)
		if !ok {
			return nil, written, skipped, errs.New(errs.KindOutOfBounds, "row left residency mid-fill")
		}
		w, s, err := t.grid.FillRectIfNewer(idx, int(c0), idx+1, int(c1), seq, payload)
		if err != nil {
			return nil, written, skipped, err
		}
		written += w
		skipped += s
	}
	_ = i1end
	u := deltastream.NewRect(uint32(absR0), uint32(absR1), c0, c1, seq, payload)
	return &u, written, skipped, nil
}

// AdvanceRow starts a new absolute row (e.g. on line feed), returning
// the new row id and a Trim CacheUpdate if history eviction occurred.
func (t *TerminalGrid) AdvanceRow(seq uint64) (int64, *deltastream.Update) {
	newID, trim := t.grid.AdvanceRow()
	if trim == nil {
		return newID, nil
	}
	u := deltastream.NewTrim(trim.Start, trim.Count, seq)
	return newID, &u
}

// SnapshotRow copies the row at absRow into a fresh CacheUpdate Row
// update, suitable for the synchronizer's snapshot phase.
func (t *TerminalGrid) SnapshotRow(absRow int64, seq uint64) (*deltastream.Update, error) {
	idx, ok := t.grid.IndexOfRow(absRow)
	if !ok {
		return nil, errs.New(errs.KindOutOfBounds, "row not resident")
	}
	cols, _ := t.grid.Dims()
	raw := make([]uint64, cols)
	if err := t.grid.SnapshotRowInto(idx, raw); err != nil {
		return nil, err
	}
	cells := make([]cell.Packed, cols)
	for i, v := range raw {
		cells[i] = cell.Packed(v)
	}
	u := deltastream.NewRow(uint32(absRow), seq, cells)
	return &u, nil
}

// FirstRowID / LastRowID mirror AtomicGrid for convenience.
func (t *TerminalGrid) FirstRowID() int64 { return t.grid.FirstRowID() }
func (t *TerminalGrid) LastRowID() int64  { return t.grid.LastRowID() }

// Cols returns the fixed column count.
func (t *TerminalGrid) Cols() int {
	cols, _ := t.grid.Dims()
	return cols
}

// HistoryRows returns the ring capacity.
func (t *TerminalGrid) HistoryRows() int {
	_, rows := t.grid.Dims()
	return rows
}

// StyleIDAt returns the interned style id referenced by the packed
// cell at (absRow, col), used by the synchronizer to decide whether a
// Style update must precede a Row/Cell update.
func (t *TerminalGrid) StyleIDAt(absRow int64, col uint32) (cell.StyleID, error) {
	idx, ok := t.grid.IndexOfRow(absRow)
	if !ok {
		return 0, errs.New(errs.KindOutOfBounds, "row not resident")
	}
	cols, _ := t.grid.Dims()
	if int(col) >= cols {
		return 0, errs.New(errs.KindOutOfBounds, "col out of range")
	}
	raw := make([]uint64, cols)
	if err := t.grid.SnapshotRowInto(idx, raw); err != nil {
		return 0, err
	}
	return cell.Packed(raw[col]).StyleID(), nil
}
