package ptyadapter

import (
	"bufio"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/beachsh/beach/internal/errs"
	"github.com/beachsh/beach/internal/logging"
)

// castHeader is the first line of an asciinema v2 cast file.
type castHeader struct {
	Version   int    `json:"version"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Timestamp int64  `json:"timestamp"`
	Command   string `json:"command,omitempty"`
}

// CastRecorder appends raw PTY output to an asciinema v2 cast file, the
// inverse of pkg/termsocket/manager.go's readStreamContent: that
// function tails a cast file and decodes "[timestamp, \"o\", data]"
// output events back into a terminal buffer; this writes those same
// events forward as they're produced. A bounded channel and a
// dedicated goroutine keep a slow disk out of the PTY read loop's hot
// path, matching notifySubscribers' drop-rather-than-block policy for
// a full channel.
type castEvent struct {
	kind string
	data string
}

type CastRecorder struct {
	f     *os.File
	w     *bufio.Writer
	start time.Time

	in   chan castEvent
	done chan struct{}
	log  *zap.Logger
}

// NewCastRecorder creates path and writes the asciinema header line,
// then starts the background writer goroutine. Call Forward to feed it
// output bytes and Close to flush and stop it.
func NewCastRecorder(path string, cols, rows int, log *zap.Logger) (*CastRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindSetup, "create cast file", err)
	}
	w := bufio.NewWriter(f)
	header := castHeader{Version: 2, Width: cols, Height: rows, Timestamp: time.Now().Unix()}
	line, err := json.Marshal(header)
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.KindSetup, "encode cast header", err)
	}
	if _, err := w.Write(line); err != nil || w.WriteByte('\n') != nil {
		f.Close()
		return nil, errs.Wrap(errs.KindSetup, "write cast header", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return nil, errs.Wrap(errs.KindSetup, "flush cast header", err)
	}

	cr := &CastRecorder{
		f:     f,
		w:     w,
		start: time.Now(),
		in:    make(chan castEvent, 256),
		done:  make(chan struct{}),
		log:   logging.OrNop(log),
	}
	go cr.run()
	return cr, nil
}

// Forward enqueues b as an "o" (output) event. It matches
// RawForwardFunc's signature so a CastRecorder can be passed straight
// to NewReader. A full queue drops the write rather than blocking the
// caller; the recorder is a best-effort sink, never the path of
// record.
func (cr *CastRecorder) Forward(b []byte) {
	cr.enqueue(castEvent{kind: "o", data: string(b)})
}

// Resize records a "r" (resize) event.
func (cr *CastRecorder) Resize(cols, rows int) {
	cr.enqueue(castEvent{kind: "r", data: strDims(cols, rows)})
}

func (cr *CastRecorder) enqueue(ev castEvent) {
	select {
	case cr.in <- ev:
	default:
		cr.log.Warn("cast recorder queue full, dropping event", zap.String("kind", ev.kind))
	}
}

// run is the sole writer of cr.w, so every event (output or resize)
// must flow through cr.in rather than calling writeEvent directly.
func (cr *CastRecorder) run() {
	defer close(cr.done)
	for ev := range cr.in {
		cr.writeEvent(ev.kind, ev.data)
	}
}

func (cr *CastRecorder) writeEvent(kind, data string) {
	elapsed := time.Since(cr.start).Seconds()
	line, err := json.Marshal([]interface{}{elapsed, kind, data})
	if err != nil {
		return
	}
	if _, err := cr.w.Write(line); err != nil {
		cr.log.Warn("cast recorder write failed", zap.Error(err))
		return
	}
	if err := cr.w.WriteByte('\n'); err != nil {
		return
	}
	if err := cr.w.Flush(); err != nil {
		cr.log.Warn("cast recorder flush failed", zap.Error(err))
	}
}

// Close stops accepting new events, drains whatever is already queued,
// and closes the underlying file.
func (cr *CastRecorder) Close() error {
	close(cr.in)
	<-cr.done
	return cr.f.Close()
}

func strDims(cols, rows int) string {
	return strconv.Itoa(cols) + "x" + strconv.Itoa(rows)
}
