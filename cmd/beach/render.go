package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/beachsh/beach/internal/cell"
)

// renderRows redraws each dirty row in place using cursor-save/restore
// sequences, so the rest of the local terminal's scrollback is left
// undisturbed (the mirror only ever reflects the host's viewport).
func renderRows(w io.Writer, m *mirror, rows []uint32) {
	if len(rows) == 0 {
		return
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i] < rows[j] })

	var sb strings.Builder
	sb.WriteString("\x1b7") // save cursor
	for _, absRow := range rows {
		row, ok := m.rowSnapshot(absRow)
		if !ok {
			continue
		}
		screenRow := int64(absRow) - m.baseRow
		if screenRow < 0 {
			continue
		}
		fmt.Fprintf(&sb, "\x1b[%d;1H\x1b[2K", screenRow+1)
		writeRow(&sb, m, row)
	}
	sb.WriteString("\x1b8") // restore cursor
	io.WriteString(w, sb.String())
}

// writeRow emits one row as a run-length sequence of SGR-styled spans,
// the way a VT emulator would produce output in reverse:
// state diffed cell-by-cell instead of rebuilding escape codes from
// scratch per glyph.
func writeRow(sb *strings.Builder, m *mirror, row []cell.Packed) {
	var curStyle cell.Style
	var curAttrs uint8
	haveStyle := false

	for _, c := range row {
		style := m.styleFor(c.StyleID())
		attrs := c.Attrs()
		if !haveStyle || style != curStyle || attrs != curAttrs {
			sb.WriteString(sgrFor(style, attrs))
			curStyle, curAttrs, haveStyle = style, attrs, true
		}
		r := c.Rune()
		if r == 0 {
			r = ' '
		}
		sb.WriteRune(r)
	}
	sb.WriteString("\x1b[0m")
}

// sgrFor renders one SGR escape sequence for a style+attrs pair.
// Grounded on pkg/terminal/buffer.go's handleSGR, reversed:
// that code parses SGR into cell state, this emits cell state as SGR.
func sgrFor(s cell.Style, attrs uint8) string {
	codes := []string{"0"}
	if attrs&cell.AttrBold != 0 {
		codes = append(codes, "1")
	}
	if attrs&cell.AttrItalic != 0 {
		codes = append(codes, "3")
	}
	if attrs&cell.AttrUnderline != 0 {
		codes = append(codes, "4")
	}
	if attrs&cell.AttrInverse != 0 {
		codes = append(codes, "7")
	}
	codes = append(codes, colorCodes(s.Fg, 38)...)
	codes = append(codes, colorCodes(s.Bg, 48)...)
	return "\x1b[" + strings.Join(codes, ";") + "m"
}

// colorCodes emits the extended (38/48) SGR sequence for an indexed or
// true-color value; the default color contributes nothing, leaving the
// terminal's own default in place.
func colorCodes(c cell.Color, sgrBase int) []string {
	kind, r, g, b := c.Decode()
	switch kind {
	case cell.KindIndexed:
		return []string{fmt.Sprintf("%d;5;%d", sgrBase, r)}
	case cell.KindRGB:
		return []string{fmt.Sprintf("%d;2;%d;%d;%d", sgrBase, r, g, b)}
	default:
		return nil
	}
}

// renderCursor positions the local cursor at the mirror's last known
// cursor state.
func renderCursor(w io.Writer, m *mirror) {
	cur, ok := m.cursorSnapshot()
	if !ok {
		return
	}
	fmt.Fprintf(w, "\x1b[%d;%dH", cur.Row+1, cur.Col+1)
	if cur.Visible {
		io.WriteString(w, "\x1b[?25h")
	} else {
		io.WriteString(w, "\x1b[?25l")
	}
}
