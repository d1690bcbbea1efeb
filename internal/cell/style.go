package cell

import (
	"sync"

	"github.com/beachsh/beach/internal/errs"
)

// Style is the immutable (fg, bg, attrs) triple interned by StyleID.
type Style struct {
	Fg    Color
	Bg    Color
	Attrs uint8
}

// StyleID is a 24-bit interned identifier; 0 is the reserved default
// style and must never be rewritten.
type StyleID uint32

// DefaultStyleID is always the zero-value style (no color, no attrs).
const DefaultStyleID StyleID = 0

// maxStyleID is the largest value a 24-bit id can hold.
const maxStyleID = 1<<24 - 1

// Table interns Style values to StyleID and supports reverse lookup. It
// is guarded by a sync.RWMutex: lookups share the read lock and run
// concurrently with each other, but wait while an insert holds the
// write lock. An insert is published
// (via the mutex's happens-before edge) before any cell referencing the
// new id becomes observable, satisfying spec §4.1's publication-barrier
// requirement.
//
// Grounded on pkg/terminal buffer's in-place style state
// (currentFg/currentBg/currentFlags) generalized into a proper
// interning table, the way pkg/session/manager.go generalizes a single
// session into a concurrent registry.
type Table struct {
	mu       sync.RWMutex
	byStyle  map[Style]StyleID
	byID     []Style
	saturated bool
}

// NewTable constructs a style table with id 0 pre-reserved for the
// default style.
func NewTable() *Table {
	t := &Table{
		byStyle: make(map[Style]StyleID),
		byID:    make([]Style, 1),
	}
	t.byStyle[Style{}] = DefaultStyleID
	return t
}

// EnsureID interns s, returning its stable StyleID. Concurrent
// EnsureID calls for the same new style are serialized by the table
// mutex; on 24-bit overflow the table fails open and returns
// DefaultStyleID, signaling degraded styling to the caller.
func (t *Table) EnsureID(s Style) StyleID {
	t.mu.RLock()
	if id, ok := t.byStyle[s]; ok {
		t.mu.RUnlock()
		return id
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Re-check under the write lock: another writer may have interned
	// this exact style while we waited.
	if id, ok := t.byStyle[s]; ok {
		return id
	}

	if t.saturated || len(t.byID) > maxStyleID {
		t.saturated = true
		return DefaultStyleID
	}

	id := StyleID(len(t.byID))
	t.byID = append(t.byID, s)
	t.byStyle[s] = id
	return id
}

// EnsureIDNew behaves like EnsureID but also reports whether s was
// newly interned by this call, so a single-producer caller (the PTY
// emulator) knows when it must publish a Style update to the delta
// stream before any Cell/Row update that references the returned id.
func (t *Table) EnsureIDNew(s Style) (StyleID, bool) {
	t.mu.RLock()
	if id, ok := t.byStyle[s]; ok {
		t.mu.RUnlock()
		return id, false
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.byStyle[s]; ok {
		return id, false
	}

	if t.saturated || len(t.byID) > maxStyleID {
		t.saturated = true
		return DefaultStyleID, false
	}

	id := StyleID(len(t.byID))
	t.byID = append(t.byID, s)
	t.byStyle[s] = id
	return id, true
}

// Get returns the Style for id, or an errs.KindOutOfBounds error if id
// was never assigned. Get never reports saturation; that is visible only
// through Saturated and the insert path.
func (t *Table) Get(id StyleID) (Style, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.byID) {
		return Style{}, errs.New(errs.KindOutOfBounds, "unknown style id")
	}
	return t.byID[id], nil
}

// Saturated reports whether the table has stopped accepting new styles.
func (t *Table) Saturated() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.saturated
}

// Len returns the number of distinct interned styles, including the
// default.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}
