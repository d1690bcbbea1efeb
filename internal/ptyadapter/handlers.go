package ptyadapter

import "github.com/beachsh/beach/internal/cell"

// handlePrint writes r at the cursor and advances it, wrapping to the
// next line (scrolling if already at the bottom row) on overflow.
// Grounded on TerminalBuffer.handlePrint.
func (e *Emulator) handlePrint(r rune) {
	id := e.ensureStyle()
	payload, err := e.g.WriteCell(e.cursorAbsRow(), uint32(e.cursorX), r, e.styleFor(id), e.curAttrs, e.g.NextSeq())
	if err == nil && payload != nil {
		e.emit(*payload)
	}

	e.cursorX++
	if e.cursorX >= e.cols {
		e.cursorX = 0
		e.lineFeed()
	}
}

// styleFor looks up the Style an already-interned id maps to; used
// only to avoid re-deriving e.style() after ensureStyle may have
// changed nothing (kept distinct from e.style() for readability at
// call sites that already hold an id).
func (e *Emulator) styleFor(id cell.StyleID) cell.Style {
	s, err := e.styles.Get(id)
	if err != nil {
		return cell.Style{}
	}
	return s
}

// handleExecute handles C0 control bytes: CR, LF, BS, TAB.
// Grounded on TerminalBuffer.handleExecute.
func (e *Emulator) handleExecute(b byte) {
	switch b {
	case '\r':
		e.cursorX = 0
	case '\n':
		e.lineFeed()
	case '\b':
		if e.cursorX > 0 {
			e.cursorX--
		}
	case '\t':
		next := (e.cursorX/8 + 1) * 8
		if next >= e.cols {
			next = e.cols - 1
		}
		e.cursorX = next
	}
}

// lineFeed advances the cursor to the next row, scrolling the
// viewport (via grid.AdvanceRow, which owns its own ring eviction) when
// already at the bottom row.
func (e *Emulator) lineFeed() {
	if e.cursorY < e.rows-1 {
		e.cursorY++
		return
	}
	newID, trim := e.g.AdvanceRow(e.g.NextSeq())
	if trim != nil {
		e.emit(*trim)
	}
	e.topRowID = newID - int64(e.rows) + 1
}

// handleCSI dispatches a decoded CSI sequence. Grounded on the
// TerminalBuffer.handleCsi switch on final byte.
func (e *Emulator) handleCSI(params []int, intermediate []byte, final byte) {
	p := func(i, def int) int {
		if i < len(params) && params[i] != 0 {
			return params[i]
		}
		return def
	}

	switch final {
	case 'A': // cursor up
		n := p(0, 1)
		if e.cursorY-n != e.cursorY {
			e.cursorY -= n
			if e.cursorY < 0 {
				e.cursorY = 0
			}
			e.cursorUpdate()
		}
	case 'B': // cursor down
		n := p(0, 1)
		old := e.cursorY
		e.cursorY += n
		if e.cursorY >= e.rows {
			e.cursorY = e.rows - 1
		}
		if e.cursorY != old {
			e.cursorUpdate()
		}
	case 'C': // cursor forward
		n := p(0, 1)
		old := e.cursorX
		e.cursorX += n
		if e.cursorX >= e.cols {
			e.cursorX = e.cols - 1
		}
		if e.cursorX != old {
			e.cursorUpdate()
		}
	case 'D': // cursor back
		n := p(0, 1)
		old := e.cursorX
		e.cursorX -= n
		if e.cursorX < 0 {
			e.cursorX = 0
		}
		if e.cursorX != old {
			e.cursorUpdate()
		}
	case 'H', 'f': // cursor position (1-based)
		row := p(0, 1) - 1
		col := p(1, 1) - 1
		if row < 0 {
			row = 0
		}
		if row >= e.rows {
			row = e.rows - 1
		}
		if col < 0 {
			col = 0
		}
		if col >= e.cols {
			col = e.cols - 1
		}
		e.cursorY, e.cursorX = row, col
		e.cursorUpdate()
	case 'J': // erase in display
		switch p(0, 0) {
		case 0:
			e.clearFromCursor()
		case 1:
			e.clearToCursor()
		default:
			e.clearScreen()
		}
	case 'K': // erase in line
		switch p(0, 0) {
		case 0:
			e.clearLineFromCursor()
		case 1:
			e.clearLineToCursor()
		default:
			e.clearLine()
		}
	case 's': // save cursor position
		e.savedX, e.savedY = e.cursorX, e.cursorY
	case 'u': // restore cursor position
		e.cursorX, e.cursorY = e.savedX, e.savedY
		e.cursorUpdate()
	case 'm':
		e.handleSGR(params)
	}
}

// handleSGR applies Select Graphic Rendition parameters to the current
// pen state. Grounded on TerminalBuffer.handleSGR,
// re-targeted at cell.Color's Default/Indexed/RGB discriminated union
// instead of a raw uint32 palette slot, and adding 256-color/truecolor
// (SGR 38/48 ;5; and ;2;) support the original 8-color-only version
// didn't have.
func (e *Emulator) handleSGR(params []int) {
	if len(params) == 0 {
		params = []int{0}
	}
	for i := 0; i < len(params); i++ {
		switch v := params[i]; {
		case v == 0:
			e.curFg = cell.DefaultColor
			e.curBg = cell.DefaultColor
			e.curAttrs = 0
		case v == 1:
			e.curAttrs |= cell.AttrBold
		case v == 3:
			e.curAttrs |= cell.AttrItalic
		case v == 4:
			e.curAttrs |= cell.AttrUnderline
		case v == 7:
			e.curAttrs |= cell.AttrInverse
		case v == 21 || v == 22:
			e.curAttrs &^= cell.AttrBold
		case v == 23:
			e.curAttrs &^= cell.AttrItalic
		case v == 24:
			e.curAttrs &^= cell.AttrUnderline
		case v == 27:
			e.curAttrs &^= cell.AttrInverse
		case v == 39:
			e.curFg = cell.DefaultColor
		case v == 49:
			e.curBg = cell.DefaultColor
		case v >= 30 && v <= 37:
			e.curFg = cell.Indexed(uint8(v - 30))
		case v >= 40 && v <= 47:
			e.curBg = cell.Indexed(uint8(v - 40))
		case v >= 90 && v <= 97:
			e.curFg = cell.Indexed(uint8(v-90) + 8)
		case v >= 100 && v <= 107:
			e.curBg = cell.Indexed(uint8(v-100) + 8)
		case v == 38 || v == 48:
			consumed, col := parseExtendedColor(params, i)
			if consumed == 0 {
				continue
			}
			if v == 38 {
				e.curFg = col
			} else {
				e.curBg = col
			}
			i += consumed
		}
	}
}

// parseExtendedColor decodes an SGR 38/48 extended color sequence
// starting at params[i+1] (the mode selector: 5=indexed, 2=rgb),
// returning how many extra params it consumed and the decoded color.
// consumed==0 signals a malformed/short sequence the caller should
// skip without advancing further.
func parseExtendedColor(params []int, i int) (consumed int, col cell.Color) {
	if i+1 >= len(params) {
		return 0, cell.DefaultColor
	}
	switch params[i+1] {
	case 5:
		if i+2 >= len(params) {
			return 0, cell.DefaultColor
		}
		return 2, cell.Indexed(uint8(params[i+2]))
	case 2:
		if i+4 >= len(params) {
			return 0, cell.DefaultColor
		}
		return 4, cell.RGB(uint8(params[i+2]), uint8(params[i+3]), uint8(params[i+4]))
	default:
		return 0, cell.DefaultColor
	}
}

// handleOSC and handleEscape are intentionally minimal: beach's grid
// model has no title bar or clipboard surface to apply OSC payloads
// to, matching the original's own "for now, ignore" stance for
// sequences with no observable effect on the cell grid.
func (e *Emulator) handleOSC(payload []byte) {}
func (e *Emulator) handleEscape(b byte)      {}

// clearScreen blanks the full viewport.
func (e *Emulator) clearScreen() {
	e.fillViewport(0, e.rows)
}

// clearFromCursor blanks from the cursor to the end of the viewport.
func (e *Emulator) clearFromCursor() {
	e.clearLineFromCursor()
	if e.cursorY+1 < e.rows {
		e.fillViewport(e.cursorY+1, e.rows)
	}
}

// clearToCursor blanks from the start of the viewport to the cursor.
func (e *Emulator) clearToCursor() {
	if e.cursorY > 0 {
		e.fillViewport(0, e.cursorY)
	}
	e.clearLineToCursor()
}

// clearLine blanks the entire current row.
func (e *Emulator) clearLine() {
	e.fillRowRange(e.cursorY, 0, e.cols)
}

// clearLineFromCursor blanks from the cursor to the end of the current
// row.
func (e *Emulator) clearLineFromCursor() {
	e.fillRowRange(e.cursorY, e.cursorX, e.cols)
}

// clearLineToCursor blanks from the start of the current row to the
// cursor, inclusive.
func (e *Emulator) clearLineToCursor() {
	e.fillRowRange(e.cursorY, 0, e.cursorX+1)
}

func (e *Emulator) fillRowRange(screenRow, c0, c1 int) {
	if c0 >= c1 {
		return
	}
	abs := e.topRowID + int64(screenRow)
	u, _, _, err := e.g.FillRect(abs, abs+1, uint32(c0), uint32(c1), ' ', cell.Style{}, 0, e.g.NextSeq())
	if err == nil && u != nil {
		e.emit(*u)
	}
}

func (e *Emulator) fillViewport(y0, y1 int) {
	if y0 >= y1 {
		return
	}
	abs0 := e.topRowID + int64(y0)
	abs1 := e.topRowID + int64(y1)
	u, _, _, err := e.g.FillRect(abs0, abs1, 0, uint32(e.cols), ' ', cell.Style{}, 0, e.g.NextSeq())
	if err == nil && u != nil {
		e.emit(*u)
	}
}
