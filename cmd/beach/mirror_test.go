package main

import (
	"testing"

	"github.com/beachsh/beach/internal/cell"
	"github.com/beachsh/beach/internal/deltastream"
	"github.com/beachsh/beach/internal/wire"
)

func TestMirrorApplyGridSetsDimensions(t *testing.T) {
	m := newMirror()
	m.applyGrid(&wire.GridBody{Cols: 80, BaseRow: 12})
	if m.cols != 80 || m.baseRow != 12 {
		t.Fatalf("applyGrid: got cols=%d baseRow=%d", m.cols, m.baseRow)
	}
}

func TestMirrorApplyRowThenCellOverwritesSingleColumn(t *testing.T) {
	m := newMirror()
	m.applyGrid(&wire.GridBody{Cols: 4})

	row := []cell.Packed{cell.Pack('a', cell.DefaultStyleID, 0), cell.Pack('b', cell.DefaultStyleID, 0), cell.Pack('c', cell.DefaultStyleID, 0), cell.Pack('d', cell.DefaultStyleID, 0)}
	m.applyUpdates([]deltastream.Update{deltastream.NewRow(5, 1, row)})

	got, ok := m.rowSnapshot(5)
	if !ok || len(got) != 4 || got[1].Rune() != 'b' {
		t.Fatalf("row snapshot after NewRow: %+v ok=%v", got, ok)
	}

	m.applyUpdates([]deltastream.Update{deltastream.NewCell(5, 1, 2, cell.Pack('X', cell.DefaultStyleID, 0))})
	got, ok = m.rowSnapshot(5)
	if !ok || got[1].Rune() != 'X' || got[0].Rune() != 'a' {
		t.Fatalf("row snapshot after NewCell: %+v", got)
	}

	dirty := m.takeDirty()
	if len(dirty) != 1 || dirty[0] != 5 {
		t.Fatalf("takeDirty: got %v", dirty)
	}
	if dirty2 := m.takeDirty(); len(dirty2) != 0 {
		t.Fatalf("takeDirty should drain: got %v", dirty2)
	}
}

func TestMirrorRowAtPadsShortRowToCurrentWidth(t *testing.T) {
	m := newMirror()
	m.applyGrid(&wire.GridBody{Cols: 6})
	m.applyUpdates([]deltastream.Update{deltastream.NewRow(0, 1, []cell.Packed{cell.Pack('z', cell.DefaultStyleID, 0)})})

	row := m.rowAt(0)
	if len(row) != 6 {
		t.Fatalf("expected row padded to 6 cols, got %d", len(row))
	}
	if row[0].Rune() != 'z' {
		t.Fatalf("expected existing content preserved, got rune %q", row[0].Rune())
	}
	if row[1] != cell.Blank {
		t.Fatalf("expected padding cells to be blank, got %v", row[1])
	}
}

func TestMirrorTrimDeletesRows(t *testing.T) {
	m := newMirror()
	m.applyGrid(&wire.GridBody{Cols: 2})
	m.applyUpdates([]deltastream.Update{
		deltastream.NewRow(0, 1, []cell.Packed{cell.Blank, cell.Blank}),
		deltastream.NewRow(1, 2, []cell.Packed{cell.Blank, cell.Blank}),
		deltastream.NewTrim(0, 2, 3),
	})
	if _, ok := m.rowSnapshot(0); ok {
		t.Fatal("row 0 should have been trimmed")
	}
	if _, ok := m.rowSnapshot(1); ok {
		t.Fatal("row 1 should have been trimmed")
	}
}

func TestMirrorStyleAndCursorUpdates(t *testing.T) {
	m := newMirror()
	style := cell.Style{Fg: cell.RGB(10, 20, 30), Attrs: cell.AttrBold}
	m.applyUpdates([]deltastream.Update{
		deltastream.NewStyle(7, 1, style),
		deltastream.NewCursor(deltastream.CursorState{Row: 3, Col: 4, Visible: true, Seq: 2}),
	})

	if got := m.styleFor(7); got != style {
		t.Fatalf("styleFor(7): got %+v want %+v", got, style)
	}
	cur, ok := m.cursorSnapshot()
	if !ok || cur.Row != 3 || cur.Col != 4 || !cur.Visible {
		t.Fatalf("cursorSnapshot: got %+v ok=%v", cur, ok)
	}
}

func TestMirrorRowSegmentWritesSubrange(t *testing.T) {
	m := newMirror()
	m.applyGrid(&wire.GridBody{Cols: 5})
	m.applyUpdates([]deltastream.Update{
		deltastream.NewRowSegment(0, 2, 1, []cell.Packed{cell.Pack('Y', cell.DefaultStyleID, 0), cell.Pack('Z', cell.DefaultStyleID, 0)}),
	})
	row := m.rowAt(0)
	if row[2].Rune() != 'Y' || row[3].Rune() != 'Z' {
		t.Fatalf("row segment write: got %v", row)
	}
	if row[0] != cell.Blank || row[4] != cell.Blank {
		t.Fatalf("row segment should not touch cells outside its range: got %v", row)
	}
}
