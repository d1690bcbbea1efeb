package mcpserve

import (
	"github.com/beachsh/beach/internal/deltastream"
	"github.com/beachsh/beach/internal/grid"
	"github.com/beachsh/beach/internal/ptyadapter"
)

// Session is the single host session an MCP listener exposes. beach
// host runs exactly one PTY-backed session per process (spec §6.5), so
// unlike a multi-session MCP registry there is no lookup table here,
// Server holds one Session and every resource URI's session id is
// matched against it.
type Session struct {
	ID   string
	Grid *grid.TerminalGrid
	Emu  *ptyadapter.Emulator
	Bus  *deltastream.Bus
}

// NewSession wraps the running host session's grid, emulator, and
// delta-stream bus for MCP resource reads.
func NewSession(id string, g *grid.TerminalGrid, emu *ptyadapter.Emulator, bus *deltastream.Bus) *Session {
	return &Session{ID: id, Grid: g, Emu: emu, Bus: bus}
}
