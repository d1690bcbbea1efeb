package ptyadapter

import (
	"sync"

	"github.com/beachsh/beach/internal/cell"
	"github.com/beachsh/beach/internal/deltastream"
	"github.com/beachsh/beach/internal/grid"
)

// Emulator applies PTY output bytes to a grid.TerminalGrid, tracking
// cursor position, SGR state, and scroll, and yields the
// deltastream.Update batch each call produced (spec §4.10
// emulator.handle_output/flush/resize).
//
// Grounded on pkg/terminal/buffer.go's TerminalBuffer,
// whose handlePrint/handleExecute/handleCsi/handleSGR/clear*/scrollUp
// this reimplements against TerminalGrid's absolute-row-id ring
// instead of a BufferCell 2D slice. buffer.go itself delegated byte
// scanning to an AnsiParser type that is not present anywhere in the
// reference fragment, so the scanning state machine in parser.go below
// is written from scratch to feed the same handler shapes
// (params []int, intermediate []byte, final byte) those methods
// expect.
type Emulator struct {
	mu sync.Mutex

	g      *grid.TerminalGrid
	styles *cell.Table

	cols, rows int

	// topRowID is the absolute row id currently at viewport row 0;
	// TerminalGrid's ring already holds scrollback+viewport as one
	// continuous sequence of row ids, so a separate screen buffer isn't
	// needed; cursorAbsRow() below is topRowID+cursorY.
	topRowID int64
	cursorX  int
	cursorY  int

	savedX, savedY int

	curFg, curBg cell.Color
	curAttrs     uint8

	// announcedStyles tracks which style ids this emulator has already
	// published a Style update for for (cell.Table.EnsureIDNew also
	// reports this, but a local set guards against reordering within
	// one batch: the Style update must be appended to pending before the
	// Cell/Row update that first references it, spec §8 "Style updates
	// precede any Row/Cell update referencing them").
	announcedStyles map[cell.StyleID]bool

	parser  parser
	pending []deltastream.Update
}

// NewEmulator constructs an emulator bound to g's first `rows` rows as
// its initial viewport. g starts with zero rows resident (LastRowID
// == -1), so this brings at least `rows` blank rows into residency
// before computing the viewport's top row.
func NewEmulator(g *grid.TerminalGrid, cols, rows int) *Emulator {
	for g.LastRowID()-g.FirstRowID()+1 < int64(rows) {
		g.AdvanceRow(g.NextSeq())
	}

	e := &Emulator{
		g:               g,
		styles:          g.Styles(),
		cols:            cols,
		rows:            rows,
		topRowID:        g.LastRowID() - int64(rows) + 1,
		announcedStyles: make(map[cell.StyleID]bool),
	}
	if e.topRowID < g.FirstRowID() {
		e.topRowID = g.FirstRowID()
	}
	e.parser.reset()
	return e
}

// HandleOutput applies PTY output bytes to the model and returns the
// resulting batch of grid updates, in emission order.
func (e *Emulator) HandleOutput(data []byte) []deltastream.Update {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pending = e.pending[:0]
	for _, b := range data {
		e.parser.feed(b, e)
	}
	out := make([]deltastream.Update, len(e.pending))
	copy(out, e.pending)
	e.pending = e.pending[:0]
	return out
}

// Flush returns any updates buffered but not yet returned (HandleOutput
// hands back every update it produces and clears the buffer, so Flush
// normally returns nil).
func (e *Emulator) Flush() []deltastream.Update {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pending) == 0 {
		return nil
	}
	out := make([]deltastream.Update, len(e.pending))
	copy(out, e.pending)
	e.pending = e.pending[:0]
	return out
}

// Resize adjusts the viewport: both rows and cols are applied to the
// emulator's cursor bounds and line wrapping. The underlying
// AtomicGrid's column count is fixed and is not changed here, so with
// cols wider than the grid, cells past the grid width are not written
// (WriteCell reports OutOfBounds). A full column-width change is the caller's
// responsibility: rebuild a new TerminalGrid and replay a backfill,
// which is out of scope for the emulator itself.
func (e *Emulator) Resize(cols, rows int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rows > 0 {
		e.rows = rows
		if e.cursorY >= e.rows {
			e.cursorY = e.rows - 1
		}
	}
	if cols > 0 {
		e.cols = cols
		if e.cursorX >= e.cols {
			e.cursorX = e.cols - 1
		}
	}
}

// Cols/Rows report the current viewport dimensions.
func (e *Emulator) Cols() int { e.mu.Lock(); defer e.mu.Unlock(); return e.cols }
func (e *Emulator) Rows() int { e.mu.Lock(); defer e.mu.Unlock(); return e.rows }

func (e *Emulator) cursorAbsRow() int64 { return e.topRowID + int64(e.cursorY) }

// CursorPosition reports the cursor's current absolute row and column,
// for callers outside the hot path (the MCP cursor resource) that need
// a point-in-time read without subscribing to the delta stream.
func (e *Emulator) CursorPosition() (row int64, col int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursorAbsRow(), e.cursorX
}

func (e *Emulator) emit(u deltastream.Update) {
	e.pending = append(e.pending, u)
}

func (e *Emulator) style() cell.Style {
	return cell.Style{Fg: e.curFg, Bg: e.curBg, Attrs: e.curAttrs}
}

// ensureStyle interns the current style and, if newly interned,
// appends its Style update to pending before returning the id, so
// callers can immediately follow with a Cell/Row update safely.
func (e *Emulator) ensureStyle() cell.StyleID {
	s := e.style()
	id, isNew := e.styles.EnsureIDNew(s)
	if isNew && !e.announcedStyles[id] {
		e.announcedStyles[id] = true
		e.emit(deltastream.NewStyle(id, e.g.NextSeq(), s))
	}
	return id
}

func (e *Emulator) cursorUpdate() {
	e.emit(deltastream.NewCursor(deltastream.CursorState{
		Row:     uint32(e.cursorAbsRow()),
		Col:     uint32(e.cursorX),
		Seq:     e.g.NextSeq(),
		Visible: true,
	}))
}
