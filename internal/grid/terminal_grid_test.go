package grid

import (
	"testing"

	"github.com/beachsh/beach/internal/cell"
)

func TestTerminalGridWriteAndSnapshotRow(t *testing.T) {
	tg := NewTerminalGrid(5, 10)
	row, _ := tg.AdvanceRow(tg.NextSeq())

	style := cell.Style{Fg: cell.RGB(200, 0, 0), Attrs: cell.AttrBold}
	for col := uint32(0); col < 5; col++ {
		seq := tg.NextSeq()
		u, err := tg.WriteCell(row, col, rune('a'+col), style, cell.AttrBold, seq)
		if err != nil {
			t.Fatalf("WriteCell: %v", err)
		}
		if u == nil {
			t.Fatalf("expected a CacheUpdate for col %d", col)
		}
	}

	snap, err := tg.SnapshotRow(row, tg.NextSeq())
	if err != nil {
		t.Fatalf("SnapshotRow: %v", err)
	}
	if len(snap.Cells) != 5 {
		t.Fatalf("snapshot cells = %d, want 5", len(snap.Cells))
	}
	for col, c := range snap.Cells {
		if c.Rune() != rune('a'+col) {
			t.Fatalf("cell %d rune = %q, want %q", col, c.Rune(), rune('a'+col))
		}
	}
}

func TestTerminalGridStyleInterning(t *testing.T) {
	tg := NewTerminalGrid(3, 3)
	row, _ := tg.AdvanceRow(tg.NextSeq())

	s1 := cell.Style{Fg: cell.RGB(1, 2, 3)}
	_, err := tg.WriteCell(row, 0, 'a', s1, 0, tg.NextSeq())
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	id1, err := tg.StyleIDAt(row, 0)
	if err != nil {
		t.Fatalf("styleIDAt: %v", err)
	}
	if id1 == cell.DefaultStyleID {
		t.Fatalf("expected a non-default interned style id")
	}
	got, err := tg.Styles().Get(id1)
	if err != nil || got != s1 {
		t.Fatalf("Get(%d) = %+v,%v want %+v", id1, got, err, s1)
	}
}

func TestTerminalGridFillRectCounts(t *testing.T) {
	tg := NewTerminalGrid(10, 10)
	for i := 0; i < 10; i++ {
		tg.AdvanceRow(tg.NextSeq())
	}
	first := tg.FirstRowID()
	_, written, skipped, err := tg.FillRect(first, first+5, 0, 10, '#', cell.Style{}, 0, tg.NextSeq())
	if err != nil {
		t.Fatalf("fillrect: %v", err)
	}
	if written+skipped != 5*10 {
		t.Fatalf("written+skipped=%d want %d", written+skipped, 5*10)
	}
}

func TestTerminalGridAdvanceRowTrim(t *testing.T) {
	tg := NewTerminalGrid(2, 3)
	var lastTrim *struct{}
	_ = lastTrim
	for i := 0; i < 3; i++ {
		_, trim := tg.AdvanceRow(tg.NextSeq())
		if trim != nil {
			t.Fatalf("unexpected trim at i=%d", i)
		}
	}
	_, trim := tg.AdvanceRow(tg.NextSeq())
	if trim == nil {
		t.Fatalf("expected a trim update on the 4th row in a 3-row history")
	}
}
