package mcpserve

import (
	"fmt"
	"strings"

	"github.com/beachsh/beach/internal/cell"
)

// resourceDescriptor mirrors the MCP resources/list entry shape:
// a URI, a human label, and whether writes through this resource are
// permitted (the grid/history/cursor resources beach exposes are all
// read-only views of the synchronizer's state).
type resourceDescriptor struct {
	URI          string `json:"uri"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	ResourceType string `json:"resourceType"`
	ReadOnly     bool   `json:"readOnly"`
}

// terminalResource identifies one of the three resource kinds a
// session publishes under beach://session/{id}/terminal/{kind}.
type terminalResource int

const (
	resourceGrid terminalResource = iota + 1
	resourceHistory
	resourceCursor
)

// parseResourceURI extracts the session id and resource kind from a
// beach://session/{id}/terminal/{grid,history,cursor} URI.
func parseResourceURI(uri string) (sessionID string, res terminalResource, ok bool) {
	const prefix = "beach://session/"
	rest, found := strings.CutPrefix(uri, prefix)
	if !found {
		return "", 0, false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] != "terminal" {
		return "", 0, false
	}
	switch parts[2] {
	case "grid":
		return parts[0], resourceGrid, true
	case "history":
		return parts[0], resourceHistory, true
	case "cursor":
		return parts[0], resourceCursor, true
	default:
		return "", 0, false
	}
}

func descriptorsForSession(sessionID string) []resourceDescriptor {
	base := fmt.Sprintf("beach://session/%s/terminal", sessionID)
	return []resourceDescriptor{
		{
			URI:          base + "/grid",
			Name:         "Terminal Grid",
			Description:  "Current terminal viewport snapshot",
			ResourceType: "terminal.grid",
			ReadOnly:     true,
		},
		{
			URI:          base + "/history",
			Name:         "Terminal History",
			Description:  "Scrollback history snapshot",
			ResourceType: "terminal.history",
			ReadOnly:     true,
		},
		{
			URI:          base + "/cursor",
			Name:         "Cursor",
			Description:  "Latest cursor position",
			ResourceType: "terminal.cursor",
			ReadOnly:     true,
		},
	}
}

// gridSnapshotRequest are the optional resources/read params for the
// grid resource: top row to start from (defaults to a window ending at
// the last row) and row count (defaults to the emulator's viewport
// height).
type gridSnapshotRequest struct {
	Top  *int64 `json:"top"`
	Rows *int   `json:"rows"`
}

type historyReadRequest struct {
	StartRow int64 `json:"startRow"`
	Count    int   `json:"count"`
}

type lineView struct {
	Row   int64      `json:"row"`
	Text  string     `json:"text"`
	Cells []cellView `json:"cells"`
}

type cellView struct {
	Rune  string `json:"rune"`
	Fg    uint32 `json:"fg"`
	Bg    uint32 `json:"bg"`
	Attrs uint8  `json:"attrs"`
}

// renderRow decodes a row of packed cells the same way the host's own
// emulator would read them back: rune, resolved fg/bg from the style
// table, and raw SGR attribute bits.
func renderRow(session *Session, cells []cell.Packed) lineView {
	var sb strings.Builder
	views := make([]cellView, len(cells))
	for i, c := range cells {
		r := c.Rune()
		if r == 0 {
			r = ' '
		}
		sb.WriteRune(r)
		style, err := session.Grid.Styles().Get(c.StyleID())
		cv := cellView{Rune: string(r), Attrs: c.Attrs()}
		if err == nil {
			cv.Fg = uint32(style.Fg)
			cv.Bg = uint32(style.Bg)
		}
		views[i] = cv
	}
	return lineView{Text: sb.String(), Cells: views}
}

func (s *Session) readGridSnapshot(req gridSnapshotRequest) (map[string]interface{}, error) {
	g := s.Grid
	cols := g.Cols()
	firstRow := g.FirstRowID()
	lastRow := g.LastRowID()

	desiredRows := s.Emu.Rows()
	if req.Rows != nil && *req.Rows > 0 {
		desiredRows = *req.Rows
	}
	if desiredRows < 1 {
		desiredRows = 1
	}

	var top int64
	if req.Top != nil {
		top = *req.Top
	} else {
		top = lastRow - int64(desiredRows) + 1
		if top < firstRow {
			top = firstRow
		}
	}
	bottom := top + int64(desiredRows)

	lines := make([]lineView, 0, desiredRows)
	for abs := top; abs < bottom; abs++ {
		u, err := g.SnapshotRow(abs, 0)
		if err != nil {
			continue
		}
		lv := renderRow(s, u.Cells)
		lv.Row = abs
		lines = append(lines, lv)
	}

	cursorRow, cursorCol := s.Emu.CursorPosition()

	return map[string]interface{}{
		"sessionId": s.ID,
		"cols":      cols,
		"rows":      desiredRows,
		"baseRow":   firstRow,
		"lastRow":   lastRow,
		"viewport":  map[string]interface{}{"top": top, "rows": desiredRows},
		"lines":     lines,
		"cursor":    map[string]interface{}{"row": cursorRow, "col": cursorCol},
	}, nil
}

func (s *Session) readHistorySegment(req historyReadRequest) (map[string]interface{}, error) {
	count := req.Count
	if count <= 0 {
		count = 120
	}
	if count > 1000 {
		count = 1000
	}
	g := s.Grid
	lines := make([]lineView, 0, count)
	for abs := req.StartRow; abs < req.StartRow+int64(count); abs++ {
		u, err := g.SnapshotRow(abs, 0)
		if err != nil {
			continue
		}
		lv := renderRow(s, u.Cells)
		lv.Row = abs
		lines = append(lines, lv)
	}
	return map[string]interface{}{
		"sessionId": s.ID,
		"startRow":  req.StartRow,
		"count":     len(lines),
		"lines":     lines,
	}, nil
}

func (s *Session) readCursor() map[string]interface{} {
	row, col := s.Emu.CursorPosition()
	return map[string]interface{}{
		"sessionId": s.ID,
		"row":       row,
		"col":       col,
	}
}
