package ptyadapter

import "sync"

// localEcho tracks bytes the local user most recently sent to the
// PTY, so the reader task can recognize and drop the PTY's own echo
// of those bytes before forwarding raw output to a low-latency local
// viewer; the grid itself is unaffected, since the emulator always
// sees the full, unsuppressed byte stream (spec §4.10 "Local echo").
type localEcho struct {
	mu    sync.Mutex
	queue []byte
}

// Expect records bytes about to be written to the PTY on behalf of the
// local user.
func (l *localEcho) Expect(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queue = append(l.queue, b...)
}

// Consume strips a leading run of chunk that matches the front of the
// pending-echo queue, returning the remainder of chunk that should
// still be forwarded raw. Matching stops at the first mismatch; any
// unmatched queued bytes stay queued for a later chunk (the PTY may
// split one written line's echo across multiple reads).
func (l *localEcho) Consume(chunk []byte) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := 0
	for i < len(chunk) && len(l.queue) > 0 && chunk[i] == l.queue[0] {
		l.queue = l.queue[1:]
		i++
	}
	return chunk[i:]
}

// Pending reports how many bytes are still queued awaiting an echo,
// for diagnostics.
func (l *localEcho) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}
