// Package ptyadapter bridges a real pseudo-terminal and a VT/ANSI
// emulator onto a grid.TerminalGrid, producing deltastream.Update
// batches for the delta stream (spec §4.10). Grounded on
// pkg/terminal/buffer.go (byte handlers) and pkg/termsocket/manager.go
// (reader task lifecycle), generalized onto TerminalGrid instead of a
// BufferCell slice.
package ptyadapter

import (
	"context"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"

	"github.com/beachsh/beach/internal/errs"
)

// PTY is the capability surface spec §4.10 names: read_chunk, write,
// resize, wait. Implemented here by realPTY (creack/pty) and faked by
// tests with a pipe-backed stub.
type PTY interface {
	// ReadChunk blocks for at most one chunk of output, returning
	// io.EOF-wrapped as a nil slice + nil error once the PTY master is
	// closed (matching spec's "Option<Bytes>").
	ReadChunk(ctx context.Context) ([]byte, error)
	Write(b []byte) (int, error)
	Resize(cols, rows int) error
	Wait() error
	Close() error
}

// realPTY wraps the master side of a creack/pty session spawned with
// the given command, mirroring pkg/session/manager.go's spawn pattern
// of owning one *os.File per running session (pkg/session/manager.go
// Session.ptyFile) but as a standalone, dependency-injectable type.
type realPTY struct {
	master *os.File
	cmd    *exec.Cmd

	readMu  sync.Mutex
	readBuf []byte
}

// StartCommand launches cmd attached to a new pty of the given size.
func StartCommand(cmd *exec.Cmd, cols, rows int) (PTY, error) {
	master, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
	if err != nil {
		return nil, errs.Wrap(errs.KindSetup, "start pty", err)
	}
	return &realPTY{master: master, cmd: cmd, readBuf: make([]byte, 32*1024)}, nil
}

func (p *realPTY) ReadChunk(ctx context.Context) ([]byte, error) {
	p.readMu.Lock()
	defer p.readMu.Unlock()

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := p.master.Read(p.readBuf)
		done <- result{n, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			if r.n == 0 {
				return nil, nil
			}
		}
		if r.n == 0 {
			return nil, nil
		}
		out := make([]byte, r.n)
		copy(out, p.readBuf[:r.n])
		return out, nil
	}
}

func (p *realPTY) Write(b []byte) (int, error) {
	n, err := p.master.Write(b)
	if err != nil {
		return n, errs.Wrap(errs.KindNetwork, "pty write", err)
	}
	return n, nil
}

func (p *realPTY) Resize(cols, rows int) error {
	if err := pty.Setsize(p.master, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}); err != nil {
		return errs.Wrap(errs.KindSetup, "pty resize", err)
	}
	return nil
}

func (p *realPTY) Wait() error {
	if p.cmd == nil {
		return nil
	}
	return p.cmd.Wait()
}

func (p *realPTY) Close() error {
	return p.master.Close()
}
