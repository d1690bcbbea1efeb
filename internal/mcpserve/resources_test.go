package mcpserve

import (
	"testing"

	"github.com/beachsh/beach/internal/deltastream"
	"github.com/beachsh/beach/internal/grid"
	"github.com/beachsh/beach/internal/ptyadapter"
)

func newTestSession(t *testing.T, cols, rows int) *Session {
	t.Helper()
	g := grid.NewTerminalGrid(cols, 200)
	emu := ptyadapter.NewEmulator(g, cols, rows)
	bus := deltastream.NewBus(64, nil)
	return NewSession("sess-1", g, emu, bus)
}

func TestReadGridSnapshotRendersPrintedText(t *testing.T) {
	s := newTestSession(t, 10, 5)
	s.Emu.HandleOutput([]byte("hello"))

	result, err := s.readGridSnapshot(gridSnapshotRequest{})
	if err != nil {
		t.Fatalf("readGridSnapshot: %v", err)
	}
	lines, ok := result["lines"].([]lineView)
	if !ok || len(lines) == 0 {
		t.Fatalf("expected lines, got %#v", result["lines"])
	}
	if got := lines[0].Text[:5]; got != "hello" {
		t.Fatalf("line text = %q, want prefix 'hello'", got)
	}
}

func TestReadGridSnapshotRespectsExplicitTopAndRows(t *testing.T) {
	s := newTestSession(t, 10, 5)
	for i := 0; i < 10; i++ {
		s.Emu.HandleOutput([]byte("x\r\n"))
	}
	top := s.Grid.FirstRowID()
	rows := 3
	result, err := s.readGridSnapshot(gridSnapshotRequest{Top: &top, Rows: &rows})
	if err != nil {
		t.Fatalf("readGridSnapshot: %v", err)
	}
	lines := result["lines"].([]lineView)
	if len(lines) != rows {
		t.Fatalf("len(lines) = %d, want %d", len(lines), rows)
	}
	if lines[0].Row != top {
		t.Fatalf("lines[0].Row = %d, want %d", lines[0].Row, top)
	}
}

func TestReadHistorySegmentClampsCount(t *testing.T) {
	s := newTestSession(t, 10, 5)
	result, err := s.readHistorySegment(historyReadRequest{StartRow: 0, Count: 5000})
	if err != nil {
		t.Fatalf("readHistorySegment: %v", err)
	}
	if result["count"].(int) > 1000 {
		t.Fatalf("count = %v, want <= 1000", result["count"])
	}
}

func TestReadCursorReportsCurrentPosition(t *testing.T) {
	s := newTestSession(t, 10, 5)
	s.Emu.HandleOutput([]byte("abc"))
	cursor := s.readCursor()
	if cursor["col"] != 3 {
		t.Fatalf("cursor col = %v, want 3", cursor["col"])
	}
}

func TestParseResourceURI(t *testing.T) {
	cases := []struct {
		uri     string
		wantOK  bool
		wantRes terminalResource
	}{
		{"beach://session/abc/terminal/grid", true, resourceGrid},
		{"beach://session/abc/terminal/history", true, resourceHistory},
		{"beach://session/abc/terminal/cursor", true, resourceCursor},
		{"beach://session/abc/terminal/unknown", false, 0},
		{"beach://session//terminal/grid", false, 0},
		{"not-a-beach-uri", false, 0},
	}
	for _, tc := range cases {
		sessionID, res, ok := parseResourceURI(tc.uri)
		if ok != tc.wantOK {
			t.Fatalf("parseResourceURI(%q) ok = %v, want %v", tc.uri, ok, tc.wantOK)
		}
		if ok {
			if sessionID != "abc" {
				t.Fatalf("parseResourceURI(%q) sessionID = %q, want abc", tc.uri, sessionID)
			}
			if res != tc.wantRes {
				t.Fatalf("parseResourceURI(%q) res = %v, want %v", tc.uri, res, tc.wantRes)
			}
		}
	}
}

func TestDescriptorsForSessionNamesAllThreeResources(t *testing.T) {
	descs := descriptorsForSession("sess-1")
	if len(descs) != 3 {
		t.Fatalf("len(descriptors) = %d, want 3", len(descs))
	}
	for _, d := range descs {
		if !d.ReadOnly {
			t.Fatalf("descriptor %q should be read-only", d.URI)
		}
	}
}
