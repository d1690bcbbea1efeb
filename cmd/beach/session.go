package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beachsh/beach/internal/deltastream"
	"github.com/beachsh/beach/internal/errs"
	"github.com/beachsh/beach/internal/grid"
	"github.com/beachsh/beach/internal/lease"
	"github.com/beachsh/beach/internal/noisecore"
	synchronizer "github.com/beachsh/beach/internal/sync"
	"github.com/beachsh/beach/internal/ptyadapter"
	"github.com/beachsh/beach/internal/wire"
	"github.com/beachsh/beach/internal/wstransport"
)

const heartbeatInterval = 15 * time.Second

// hostSession is the single running session a `beach host` process
// serves. One per process (spec §6.5), shared between the HTTP
// upgrade handler, the optional MCP listener, and the PTY reader.
type hostSession struct {
	id         string
	passphrase string
	readOnly   bool

	grid     *grid.TerminalGrid
	bus      *deltastream.Bus
	emulator *ptyadapter.Emulator
	pty      ptyadapter.PTY
	reader   *ptyadapter.Reader
	sy       *synchronizer.Synchronizer
	leases   *lease.Manager
	wsCfg    wstransport.ServerConfig
	recorder *ptyadapter.CastRecorder

	hostID     string
	hostStatic noisecore.KeyPair

	log *zap.Logger

	subsMu sync.Mutex
	subs   map[string]*clientConn
}

// clientConn tracks the live state of one joined peer: its secure
// connection and its synchronizer subscription.
type clientConn struct {
	id   string
	conn *wstransport.Conn
	sub  *synchronizer.Subscription
}

// handleUpgrade is the http.HandlerFunc backing the host's /ws
// endpoint. Each call accepts one websocket, negotiates identities and
// a Noise_XXpsk2 secure channel, then drives that peer's session loop
// until it disconnects.
func (hs *hostSession) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := wstransport.Accept(w, r, hs.wsCfg, hs.log)
	if err != nil {
		hs.log.Warn("ws accept failed", zap.Error(err))
		return
	}

	sealer, opener, clientID, err := serverNoiseHandshake(conn, hs.hostStatic, hs.hostID, hs.passphrase, hs.id)
	if err != nil {
		hs.log.Warn("handshake failed", zap.Error(err))
		_ = conn.Close()
		return
	}
	conn.ActivateSecureSession(sealer, opener)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- conn.Run(ctx) }()

	cc := &clientConn{id: clientID, conn: conn, sub: hs.sy.Subscribe(clientID)}
	hs.addClient(cc)
	defer hs.removeClient(cc)

	hs.log.Info("peer joined", zap.String("session_id", hs.id), zap.String("client_id", clientID))

	if err := hs.serveClient(ctx, cc); err != nil {
		hs.log.Info("peer session ended", zap.String("client_id", clientID), zap.Error(err))
	}

	cancel()
	<-runErrCh
}

func (hs *hostSession) addClient(cc *clientConn) {
	hs.subsMu.Lock()
	defer hs.subsMu.Unlock()
	hs.subs[cc.id] = cc
}

func (hs *hostSession) removeClient(cc *clientConn) {
	hs.subsMu.Lock()
	delete(hs.subs, cc.id)
	hs.subsMu.Unlock()
	hs.sy.Unsubscribe(cc.sub)
}

// serveClient runs the bidirectional per-peer loop: an inbound reader
// dispatching client frames, and an outbound sender walking the
// synchronizer snapshot/delta protocol, until ctx is canceled or the
// connection fails.
func (hs *hostSession) serveClient(ctx context.Context, cc *clientConn) error {
	inboundDone := make(chan error, 1)
	go func() { inboundDone <- hs.readClientFrames(ctx, cc) }()

	if err := cc.conn.WriteHostFrame(hs.sy.HelloFrame(cc.sub)); err != nil {
		return err
	}
	if err := cc.conn.WriteHostFrame(hs.sy.GridFrame()); err != nil {
		return err
	}
	for {
		frame, done, err := hs.sy.NextSnapshotFrame(cc.sub)
		if err != nil {
			return err
		}
		if err := cc.conn.WriteHostFrame(frame); err != nil {
			return err
		}
		if done {
			break
		}
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	var hbSeq uint64

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-inboundDone:
			return err
		case <-heartbeat.C:
			hbSeq++
			frame := wire.HostFrame{Tag: wire.TagHeartbeat, Heartbeat: &wire.HeartbeatBody{Seq: hbSeq, TimestampMS: time.Now().UnixMilli()}}
			if err := cc.conn.WriteHostFrame(frame); err != nil {
				return err
			}
		case <-cc.sub.Notify():
			for {
				frame := hs.sy.NextDeltaBatch(cc.sub)
				if err := cc.conn.WriteHostFrame(frame); err != nil {
					return err
				}
				if frame.Delta == nil || !frame.Delta.HasMore {
					break
				}
			}
		}
	}
}

// readClientFrames decodes inbound client->host frames and dispatches
// each to the matching mutation: Input is gated by the controller
// lease, Resize reshapes the shared grid and fans out to every
// subscriber, RequestBackfill pulls extra history for the lane.
func (hs *hostSession) readClientFrames(ctx context.Context, cc *clientConn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-cc.conn.Inbound():
			if !ok {
				return errs.New(errs.KindChannelClosed, "connection closed")
			}
			frame, err := wstransport.DecodeInboundClientFrame(payload)
			if err != nil {
				hs.log.Warn("malformed client frame", zap.Error(err))
				continue
			}
			hs.dispatchClientFrame(cc, frame)
		}
	}
}

func (hs *hostSession) dispatchClientFrame(cc *clientConn, frame wire.ClientFrame) {
	switch frame.Tag {
	case wire.TagInput:
		hs.handleInput(cc, frame.Input)
	case wire.TagResize:
		hs.handleResize(frame.Resize)
	case wire.TagRequestBackfill:
		if frame.RequestBackfill == nil {
			return
		}
		if err := cc.conn.WriteHostFrame(hs.sy.RequestBackfill(cc.sub, frame.RequestBackfill.FromRow, frame.RequestBackfill.Count)); err != nil {
			hs.log.Warn("backfill write failed", zap.String("client_id", cc.id), zap.Error(err))
		}
	case wire.TagAck:
		// Input acks carry no server-side action and are ignored.
	}
}

func (hs *hostSession) handleInput(cc *clientConn, body *wire.InputBody) {
	if body == nil || hs.readOnly {
		return
	}
	now := time.Now()
	if _, err := hs.leases.AcquireLease(hs.id, cc.id, cc.id, now); err != nil {
		// Another controller holds the lease: queue the action rather
		// than forwarding it straight to the PTY.
		_ = hs.leases.Enqueue(hs.id, lease.Action{ID: uuid.NewString(), ActionType: "input", Payload: body.Bytes})
		return
	}
	if err := hs.reader.Write(body.Bytes); err != nil {
		hs.log.Warn("pty write failed", zap.Error(err))
	}
}

func (hs *hostSession) handleResize(body *wire.ResizeBody) {
	if body == nil {
		return
	}
	hs.emulator.Resize(int(body.Cols), int(body.Rows))
	if err := hs.pty.Resize(int(body.Cols), int(body.Rows)); err != nil {
		hs.log.Warn("pty resize failed", zap.Error(err))
	}
	if hs.recorder != nil {
		hs.recorder.Resize(int(body.Cols), int(body.Rows))
	}

	hs.subsMu.Lock()
	conns := make([]*clientConn, 0, len(hs.subs))
	for _, cc := range hs.subs {
		conns = append(conns, cc)
	}
	hs.subsMu.Unlock()

	for _, cc := range conns {
		hs.sy.ResetOnResize(cc.sub)
	}
}
