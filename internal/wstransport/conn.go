// Package wstransport is the client-facing wire transport: a
// gorilla/websocket connection carrying Noise-sealed, chunked wire
// frames (spec §4.4 wire codec, §4.5 chunker, §4.6 Noise session).
//
// Grounded on pkg/api/raw_websocket.go for the
// ping/pong/writer-goroutine shape (upgrade, read-deadline/pong-handler
// reset, a buffered send channel drained by a dedicated writer
// goroutine, a ticker driving periodic pings), adapted from its
// JSON-control-message-plus-raw-binary-PTY-mirror design to a single
// binary channel carrying sealed chunk.Frame-encoded fragments of
// wire.HostFrame/wire.ClientFrame payloads. raw_websocket.go itself
// referenced maxMessageSize/pongWait/pingPeriod/writeWait/upgrader/
// safeSend from a sibling file not present in the reference fragment;
// the values below are the standard gorilla/websocket chat-example
// constants, sized up for this protocol's larger binary frames.
package wstransport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/beachsh/beach/internal/chunk"
	"github.com/beachsh/beach/internal/errs"
	"github.com/beachsh/beach/internal/logging"
	"github.com/beachsh/beach/internal/noisecore"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds a single websocket message, which carries
	// exactly one chunk.Frame; chunk.Config.MaxChunkBytes already caps
	// fragment size well below this, so this is a generous outer guard
	// against a misbehaving peer rather than the operative limit.
	maxMessageSize = 256 * 1024
)

// Conn wraps one websocket connection carrying the sealed/chunked wire
// protocol in either direction (host or client side; the frame
// plumbing is symmetric, only which wire.*Frame type is sent/expected
// differs and is left to the caller).
type Conn struct {
	ws  *websocket.Conn
	log *zap.Logger

	chunkCfg    chunk.Config
	reassembler *chunk.Reassembler

	// sealer/opener are nil until ActivateSecureSession is called after
	// a successful Handshake; frames written/read before that point are
	// sent/received as plaintext (used only during the handshake itself,
	// via WriteMessage/ReadMessage directly on ws, never through
	// WriteFrame/Inbound).
	mu     sync.Mutex
	sealer *noisecore.Sealer
	opener *noisecore.Opener

	send    chan []byte
	inbound chan []byte
	done    chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an already-established *websocket.Conn (either the
// server side of an Upgrade or the client side of a Dial).
func NewConn(ws *websocket.Conn, chunkCfg chunk.Config, log *zap.Logger) *Conn {
	ws.SetReadLimit(maxMessageSize)
	return &Conn{
		ws:          ws,
		log:         logging.OrNop(log),
		chunkCfg:    chunkCfg,
		reassembler: chunk.NewReassembler(chunkCfg),
		send:        make(chan []byte, 256),
		inbound:     make(chan []byte, 64),
		done:        make(chan struct{}),
	}
}

// ActivateSecureSession installs the post-handshake AEAD sealer/opener
// pair. Must be called before any WriteFrame/Inbound traffic and
// before Run starts.
func (c *Conn) ActivateSecureSession(sealer *noisecore.Sealer, opener *noisecore.Opener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealer = sealer
	c.opener = opener
}

// Inbound yields fully reassembled (and, once ActivateSecureSession
// has run, decrypted) frame payloads in arrival order.
func (c *Conn) Inbound() <-chan []byte { return c.inbound }

// Handshake drives hs to completion over this connection's raw
// websocket messages, unsealed and unchunked (handshake messages are a
// few hundred bytes at most). Must run to completion before Run is
// started. initiator must match the role hs was constructed with.
func (c *Conn) Handshake(hs *noisecore.HandshakeState, initiator bool) error {
	for i := 0; i < 3; i++ {
		myTurn := (i % 2) == 0
		if !initiator {
			myTurn = !myTurn
		}
		if myTurn {
			msg, err := hs.WriteMessage(nil)
			if err != nil {
				return err
			}
			if err := c.ws.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				return errs.Wrap(errs.KindNetwork, "write handshake message", err)
			}
			continue
		}
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return errs.Wrap(errs.KindNetwork, "read handshake message", err)
		}
		if _, err := hs.ReadMessage(raw); err != nil {
			return err
		}
	}
	return nil
}

// SendPreamble writes v as plaintext JSON directly over the raw
// websocket connection, the same way Handshake writes its own raw
// messages. Callers use this to agree on a handshake_id and peer ids
// before Handshake begins, since WriteFrame/Inbound aren't available
// until Run is started and Run can't start until the handshake (which
// owns the raw connection exclusively) has completed.
func (c *Conn) SendPreamble(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errs.Wrap(errs.KindMalformed, "encode preamble", err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return errs.Wrap(errs.KindNetwork, "write preamble", err)
	}
	return nil
}

// ReadPreamble reads one plaintext JSON message into v, the peer side
// of SendPreamble.
func (c *Conn) ReadPreamble(v interface{}) error {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return errs.Wrap(errs.KindNetwork, "read preamble", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errs.Wrap(errs.KindMalformed, "decode preamble", err)
	}
	return nil
}

// WriteFrame seals (if a sealer is active) and chunks payload, then
// queues each fragment for the writer goroutine. Safe for concurrent
// use by multiple callers; fragments from concurrent WriteFrame calls
// may interleave, but each carries its own msg_id so the peer's
// Reassembler keeps them separate.
func (c *Conn) WriteFrame(payload []byte) error {
	c.mu.Lock()
	sealer := c.sealer
	c.mu.Unlock()

	body := payload
	if sealer != nil {
		body = sealer.Seal(payload)
	}

	frames, err := chunk.SplitMessage(body, uuid.New(), c.chunkCfg)
	if err != nil {
		return err
	}
	for _, f := range frames {
		encoded, err := chunk.EncodeChunk(f)
		if err != nil {
			return err
		}
		select {
		case c.send <- encoded:
		case <-c.done:
			return errs.New(errs.KindNetwork, "connection closed")
		}
	}
	return nil
}

// Run drives the connection until ctx is canceled, the peer closes, or
// an unrecoverable read/write error occurs. It starts the writer
// goroutine (ping ticker + send-channel drain) and then reads messages
// until Close is called or the underlying socket errors.
func (c *Conn) Run(ctx context.Context) error {
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return errs.Wrap(errs.KindNetwork, "set read deadline", err)
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(ctx)
	}()

	readErr := c.readLoop()
	c.Close()
	<-writerDone
	if readErr != nil {
		return readErr
	}
	return nil
}

func (c *Conn) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Debug("set write deadline failed", zap.Error(err))
				return
			}
			if err := c.ws.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				c.log.Debug("write message failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			if c.reassembler.Inflight() > 0 {
				for _, ev := range c.reassembler.GC(time.Now()) {
					c.log.Debug("reassembly abandoned", zap.String("msg_id", ev.MsgID.String()), zap.Int("reason", int(ev.Reason)))
				}
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-c.done:
			return
		}
	}
}

func (c *Conn) readLoop() error {
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			return errs.Wrap(errs.KindNetwork, "read message", err)
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		frame, ok, err := chunk.DecodeChunk(data)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		outcome, err := c.reassembler.Ingest(frame, time.Now())
		if err != nil {
			return err
		}
		for _, ev := range outcome.GCEvents {
			c.log.Debug("reassembly abandoned", zap.String("msg_id", ev.MsgID.String()), zap.Int("reason", int(ev.Reason)))
		}
		if !outcome.HasResult {
			continue
		}

		plaintext := outcome.Completed
		c.mu.Lock()
		opener := c.opener
		c.mu.Unlock()
		if opener != nil {
			plaintext, err = opener.Open(plaintext)
			if err != nil {
				return err
			}
		}

		select {
		case c.inbound <- plaintext:
		case <-c.done:
			return nil
		}
	}
}

// Close shuts the connection down and unblocks any pending WriteFrame
// or Run caller. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
