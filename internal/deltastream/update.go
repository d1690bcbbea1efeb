// Package deltastream defines the CacheUpdate tagged union (spec §3.5)
// and the single-producer, multi-consumer bus that carries updates
// from the terminal grid to every synchronizer subscription (spec
// §4.3, §5).
package deltastream

import (
	"github.com/beachsh/beach/internal/cell"
)

// Kind discriminates a CacheUpdate variant.
type Kind int

const (
	KindCell Kind = iota + 1
	KindRect
	KindRow
	KindRowSegment
	KindTrim
	KindStyle
	KindCursor
)

// CursorState is the cursor position/visibility record (spec §3.4).
type CursorState struct {
	Row, Col     uint32
	Seq          uint64
	Visible      bool
	Blink        bool
}

// Update is the tagged union described in spec §3.5. Exactly one field
// group is meaningful per Kind; helpers below construct each variant.
type Update struct {
	Kind Kind
	Seq  uint64

	// Cell
	Row, Col uint32
	Payload  cell.Packed

	// Rect
	R0, R1 uint32
	C0, C1 uint32

	// Row / RowSegment
	RowID    uint32
	SegStart uint32
	Cells    []cell.Packed

	// Trim
	TrimStart int64
	TrimCount int

	// Style
	StyleID cell.StyleID
	Style   cell.Style

	// Cursor
	Cursor CursorState
}

func NewCell(row, col uint32, seq uint64, payload cell.Packed) Update {
	return Update{Kind: KindCell, Seq: seq, Row: row, Col: col, Payload: payload}
}

func NewRect(r0, r1, c0, c1 uint32, seq uint64, payload cell.Packed) Update {
	return Update{Kind: KindRect, Seq: seq, R0: r0, R1: r1, C0: c0, C1: c1, Payload: payload}
}

func NewRow(row uint32, seq uint64, cells []cell.Packed) Update {
	return Update{Kind: KindRow, Seq: seq, RowID: row, Cells: cells}
}

func NewRowSegment(row uint32, startCol uint32, seq uint64, cells []cell.Packed) Update {
	return Update{Kind: KindRowSegment, Seq: seq, RowID: row, SegStart: startCol, Cells: cells}
}

func NewTrim(start int64, count int, seq uint64) Update {
	return Update{Kind: KindTrim, Seq: seq, TrimStart: start, TrimCount: count}
}

func NewStyle(id cell.StyleID, seq uint64, s cell.Style) Update {
	return Update{Kind: KindStyle, Seq: seq, StyleID: id, Style: s}
}

func NewCursor(c CursorState) Update {
	return Update{Kind: KindCursor, Seq: c.Seq, Cursor: c}
}
