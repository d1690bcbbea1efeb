package ptyadapter

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/beachsh/beach/internal/deltastream"
	"github.com/beachsh/beach/internal/logging"
)

// RawForwardFunc receives PTY output bytes with any local-echo prefix
// already stripped, for a low-latency raw mirror of the host's own
// terminal (pkg/session/manager.go's NotifyRawPTY path;
// this is the structured-grid-bypassing sibling of the delta stream).
type RawForwardFunc func(b []byte)

// Reader runs the PTY output loop described in spec §4.10: read a
// chunk, strip any local-echo prefix, hand the full chunk to the
// emulator, publish the resulting updates to the delta stream, and
// forward the echo-stripped bytes to an optional raw mirror.
//
// Grounded on pkg/termsocket/manager.go's monitorSession (the
// read-notify-loop shape) and pkg/session/manager.go's dual-callback
// design (debounced structured updates vs synchronous raw bytes); the
// supervising errgroup follows the same "reader task + a second
// supervised task" shape spec §5 calls out for the PTY reader and
// synchronizer send loop, here covering the PTY reader and the
// process-exit watcher.
type Reader struct {
	pty      PTY
	emulator *Emulator
	bus      *deltastream.Bus
	echo     localEcho
	rawFwd   RawForwardFunc
	log      *zap.Logger
}

// NewReader builds a Reader over an already-started PTY, emulator, and
// delta stream bus. rawFwd may be nil if no raw mirror is wired.
func NewReader(p PTY, e *Emulator, bus *deltastream.Bus, rawFwd RawForwardFunc, log *zap.Logger) *Reader {
	return &Reader{pty: p, emulator: e, bus: bus, rawFwd: rawFwd, log: logging.OrNop(log)}
}

// WriteLocal writes b to the PTY on behalf of the local user and
// records it for echo suppression.
func (r *Reader) WriteLocal(b []byte) error {
	r.echo.Expect(b)
	_, err := r.pty.Write(b)
	return err
}

// Write forwards bytes from a remote controller straight to the PTY,
// bypassing echo suppression bookkeeping: remote input isn't locally
// echoed by this host's own terminal, so there's nothing to suppress.
func (r *Reader) Write(b []byte) error {
	_, err := r.pty.Write(b)
	return err
}

// Run drives the reader loop until ctx is canceled or the PTY process
// exits, whichever comes first. It supervises two tasks: the read loop
// itself, and a watcher that waits on process exit to unblock a reader
// stuck on a ReadChunk that ctx cancellation alone wouldn't interrupt
// on some platforms.
func (r *Reader) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.readLoop(gctx)
	})

	g.Go(func() error {
		err := r.pty.Wait()
		cancel()
		return err
	})

	return g.Wait()
}

func (r *Reader) readLoop(ctx context.Context) error {
	for {
		chunk, err := r.pty.ReadChunk(ctx)
		if err != nil {
			r.log.Debug("pty read loop stopped", zap.Error(err))
			return err
		}
		if len(chunk) == 0 {
			if updates := r.emulator.Flush(); len(updates) > 0 {
				r.bus.PublishBatch(updates)
			}
			r.log.Debug("pty reached eof")
			return nil
		}

		updates := r.emulator.HandleOutput(chunk)
		if len(updates) > 0 {
			r.bus.PublishBatch(updates)
		}

		if r.rawFwd != nil {
			if raw := r.echo.Consume(chunk); len(raw) > 0 {
				r.rawFwd(raw)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}
