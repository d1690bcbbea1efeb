package cell

import "testing"

func TestPackRoundTrip(t *testing.T) {
	p := Pack('A', StyleID(12345), AttrBold|AttrUnderline)
	if p.Rune() != 'A' {
		t.Fatalf("rune = %q, want A", p.Rune())
	}
	if p.StyleID() != 12345 {
		t.Fatalf("styleID = %d, want 12345", p.StyleID())
	}
	if p.Attrs() != AttrBold|AttrUnderline {
		t.Fatalf("attrs = %x, want %x", p.Attrs(), AttrBold|AttrUnderline)
	}
}

func TestPackTruncatesStyleID(t *testing.T) {
	p := Pack('x', StyleID(1<<24+7), 0)
	if p.StyleID() != 7 {
		t.Fatalf("styleID = %d, want 7 (truncated)", p.StyleID())
	}
}

func TestPackedEqualityIsBitwise(t *testing.T) {
	a := Pack('z', 1, AttrBold)
	b := Pack('z', 1, AttrBold)
	if a != b {
		t.Fatalf("expected bitwise-equal packed cells")
	}
	c := Pack('z', 2, AttrBold)
	if a == c {
		t.Fatalf("expected distinct style id to produce distinct payload")
	}
}

func TestStyleTableInterningRoundTrip(t *testing.T) {
	tbl := NewTable()

	if id := tbl.EnsureID(Style{}); id != DefaultStyleID {
		t.Fatalf("default style should intern to id 0, got %d", id)
	}

	s1 := Style{Fg: RGB(255, 0, 0), Bg: DefaultColor, Attrs: AttrBold}
	s2 := Style{Fg: Indexed(5), Bg: DefaultColor}

	id1 := tbl.EnsureID(s1)
	id2 := tbl.EnsureID(s2)
	if id1 == id2 {
		t.Fatalf("distinct styles must intern to distinct ids")
	}
	if again := tbl.EnsureID(s1); again != id1 {
		t.Fatalf("re-interning s1 must return the same id")
	}

	got1, err := tbl.Get(id1)
	if err != nil || got1 != s1 {
		t.Fatalf("Get(%d) = %+v, %v; want %+v, nil", id1, got1, err, s1)
	}
}

func TestStyleTableEquivalence(t *testing.T) {
	tbl := NewTable()
	a := Style{Fg: RGB(1, 2, 3)}
	b := Style{Fg: RGB(1, 2, 3)}
	c := Style{Fg: RGB(1, 2, 4)}

	if tbl.EnsureID(a) != tbl.EnsureID(b) {
		t.Fatalf("equal styles must map to the same id")
	}
	if tbl.EnsureID(a) == tbl.EnsureID(c) {
		t.Fatalf("unequal styles must map to different ids")
	}
}

func TestStyleTableSaturationFailsOpen(t *testing.T) {
	tbl := NewTable()
	tbl.saturated = true // simulate exhaustion without allocating 16M entries

	id := tbl.EnsureID(Style{Attrs: 9})
	if id != DefaultStyleID {
		t.Fatalf("saturated table must fail open to default id, got %d", id)
	}
	if !tbl.Saturated() {
		t.Fatalf("table should report saturated")
	}
}

func TestColorDecode(t *testing.T) {
	kind, _, _, _ := DefaultColor.Decode()
	if kind != KindDefault {
		t.Fatalf("default color kind = %v", kind)
	}

	kind, r, _, _ := Indexed(200).Decode()
	if kind != KindIndexed || r != 200 {
		t.Fatalf("indexed decode = %v %d", kind, r)
	}

	kind, r, g, b := RGB(10, 20, 30).Decode()
	if kind != KindRGB || r != 10 || g != 20 || b != 30 {
		t.Fatalf("rgb decode = %v %d %d %d", kind, r, g, b)
	}
}
