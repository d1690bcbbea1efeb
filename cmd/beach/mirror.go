package main

import (
	"sync"

	"github.com/beachsh/beach/internal/cell"
	"github.com/beachsh/beach/internal/deltastream"
	"github.com/beachsh/beach/internal/wire"
)

// mirror is the join side's local reconstruction of the host's grid.
// It carries no style-interning concurrency concerns of its own (one
// goroutine applies updates), unlike internal/grid's AtomicGrid, so it
// is just a plain mutex-guarded map of absolute row id to packed cells.
type mirror struct {
	mu sync.Mutex

	cols    int
	baseRow int64
	rows    map[uint32][]cell.Packed
	styles  map[cell.StyleID]cell.Style

	cursor     deltastream.CursorState
	haveCursor bool
	dirty      map[uint32]bool
}

func newMirror() *mirror {
	return &mirror{
		rows:   make(map[uint32][]cell.Packed),
		styles: map[cell.StyleID]cell.Style{cell.DefaultStyleID: {}},
		dirty:  make(map[uint32]bool),
	}
}

func (m *mirror) applyGrid(body *wire.GridBody) {
	if body == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cols = int(body.Cols)
	m.baseRow = body.BaseRow
}

// applyUpdates applies a batch of updates in order, matching the
// transport's in-order delivery guarantee.
func (m *mirror) applyUpdates(updates []deltastream.Update) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range updates {
		m.apply(u)
	}
}

func (m *mirror) apply(u deltastream.Update) {
	switch u.Kind {
	case deltastream.KindCell:
		row := m.rowAt(u.Row)
		if int(u.Col) < len(row) {
			row[u.Col] = u.Payload
		}
		m.dirty[u.Row] = true
	case deltastream.KindRect:
		for r := u.R0; r < u.R1; r++ {
			row := m.rowAt(r)
			for c := u.C0; c < u.C1 && int(c) < len(row); c++ {
				row[c] = u.Payload
			}
			m.dirty[r] = true
		}
	case deltastream.KindRow:
		row := make([]cell.Packed, len(u.Cells))
		copy(row, u.Cells)
		m.rows[u.RowID] = row
		m.dirty[u.RowID] = true
	case deltastream.KindRowSegment:
		row := m.rowAt(u.RowID)
		for i, c := range u.Cells {
			col := int(u.SegStart) + i
			if col < len(row) {
				row[col] = c
			}
		}
		m.dirty[u.RowID] = true
	case deltastream.KindTrim:
		for i := int64(0); i < int64(u.TrimCount); i++ {
			row := uint32(u.TrimStart + i)
			delete(m.rows, row)
			delete(m.dirty, row)
		}
	case deltastream.KindStyle:
		m.styles[u.StyleID] = u.Style
	case deltastream.KindCursor:
		m.cursor = u.Cursor
		m.haveCursor = true
	}
}

// rowAt returns the row slice for absRow, allocating a blank one sized
// to the current column count if it doesn't exist yet.
func (m *mirror) rowAt(absRow uint32) []cell.Packed {
	row, ok := m.rows[absRow]
	if !ok || len(row) < m.cols {
		fresh := make([]cell.Packed, m.cols)
		for i := range fresh {
			fresh[i] = cell.Blank
		}
		copy(fresh, row)
		row = fresh
		m.rows[absRow] = row
	}
	return row
}

// takeDirty returns and clears the set of row ids touched since the
// last call, for incremental redraw.
func (m *mirror) takeDirty() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]uint32, 0, len(m.dirty))
	for r := range m.dirty {
		rows = append(rows, r)
	}
	m.dirty = make(map[uint32]bool)
	return rows
}

func (m *mirror) styleFor(id cell.StyleID) cell.Style {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.styles[id]
}

func (m *mirror) rowSnapshot(absRow uint32) ([]cell.Packed, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[absRow]
	return row, ok
}

func (m *mirror) cursorSnapshot() (deltastream.CursorState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor, m.haveCursor
}
