package ptyadapter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/beachsh/beach/internal/deltastream"
	"github.com/beachsh/beach/internal/grid"
)

type fakePTY struct {
	chunks chan []byte
	wait   chan error

	mu     sync.Mutex
	writes [][]byte
}

func newFakePTY() *fakePTY {
	return &fakePTY{chunks: make(chan []byte, 8), wait: make(chan error, 1)}
}

func (f *fakePTY) ReadChunk(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case b, ok := <-f.chunks:
		if !ok {
			return nil, nil
		}
		return b, nil
	}
}

func (f *fakePTY) Write(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), b...)
	f.writes = append(f.writes, cp)
	return len(b), nil
}

func (f *fakePTY) Resize(cols, rows int) error { return nil }

func (f *fakePTY) Wait() error { return <-f.wait }

func (f *fakePTY) Close() error { return nil }

func TestReaderPublishesEmulatorUpdates(t *testing.T) {
	g := grid.NewTerminalGrid(20, 20)
	e := NewEmulator(g, 20, 5)
	bus := deltastream.NewBus(32, nil)
	sub := bus.Subscribe("client-1")

	p := newFakePTY()
	r := NewReader(p, e, bus, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	p.chunks <- []byte("hello")

	deadline := time.After(2 * time.Second)
	for {
		updates, _ := sub.Drain()
		if len(updates) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for published updates")
		case <-time.After(5 * time.Millisecond):
		}
	}

	close(p.chunks)
	p.wait <- nil
	cancel()
	<-done
}

func TestReaderSuppressesLocalEchoFromRawForward(t *testing.T) {
	g := grid.NewTerminalGrid(20, 20)
	e := NewEmulator(g, 20, 5)
	bus := deltastream.NewBus(32, nil)

	var mu sync.Mutex
	var forwarded []byte
	rawFwd := func(b []byte) {
		mu.Lock()
		defer mu.Unlock()
		forwarded = append(forwarded, b...)
	}

	p := newFakePTY()
	r := NewReader(p, e, bus, rawFwd, nil)

	if err := r.WriteLocal([]byte("echo hi\r")); err != nil {
		t.Fatalf("WriteLocal: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// The PTY echoes back exactly what was locally written, then prints
	// output that was never locally typed and so must be forwarded raw.
	p.chunks <- []byte("echo hi\r\nhi\r\n")

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(forwarded)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for raw-forwarded bytes")
		case <-time.After(5 * time.Millisecond):
		}
	}

	mu.Lock()
	got := string(forwarded)
	mu.Unlock()
	if got != "\nhi\r\n" {
		t.Fatalf("forwarded raw bytes = %q, want %q (echoed input suppressed)", got, "\nhi\r\n")
	}

	close(p.chunks)
	p.wait <- nil
	cancel()
	<-done
}
