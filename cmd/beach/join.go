package main

import (
	"bufio"
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/beachsh/beach/internal/deltastream"
	"github.com/beachsh/beach/internal/errs"
	"github.com/beachsh/beach/internal/noisecore"
	"github.com/beachsh/beach/internal/signaling"
	"github.com/beachsh/beach/internal/wire"
	"github.com/beachsh/beach/internal/wstransport"
)

type joinFlags struct {
	sessionID    string
	joinCode     string
	signalingURL string
	connect      string
	passphrase   string
}

func newJoinCmd() *cobra.Command {
	var f joinFlags
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a shared terminal session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoin(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.sessionID, "session-id", "", "session id to join (via the signaling service)")
	cmd.Flags().StringVar(&f.joinCode, "join-code", "", "join code issued by the host")
	cmd.Flags().StringVar(&f.signalingURL, "signaling-url", "", "signaling service base URL")
	cmd.Flags().StringVar(&f.connect, "connect", "", "dial a websocket URL directly, bypassing the signaling service")
	cmd.Flags().StringVar(&f.passphrase, "passphrase", "", "shared passphrase (overrides the config's passphrase env var)")
	return cmd
}

func runJoin(ctx context.Context, f joinFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return errs.Wrap(errs.KindInvalidConfig, "load config", err)
	}
	if f.signalingURL != "" {
		cfg.Server.SignalingURL = f.signalingURL
	}
	passphrase := f.passphrase
	if passphrase == "" {
		passphrase = cfg.Passphrase()
	}
	if passphrase == "" {
		return errs.New(errs.KindInvalidConfig, "no passphrase set (flag or "+cfg.PassphraseEnvVar+")")
	}

	log := zapLogger()

	wsURL, err := resolveJoinURL(ctx, f, cfg.Server.SignalingURL)
	if err != nil {
		return err
	}

	conn, err := wstransport.Dial(ctx, wsURL, http.Header{}, chunkConfigFrom(cfg.Chunk), log)
	if err != nil {
		return errs.Wrap(errs.KindNetwork, "dial session", err)
	}

	clientStatic, err := noisecore.GenerateKeyPair()
	if err != nil {
		return errs.Wrap(errs.KindSetup, "generate client key", err)
	}
	clientID := "client-" + uuid.NewString()

	sealer, opener, err := clientNoiseHandshake(conn, clientStatic, clientID, passphrase, f.sessionID)
	if err != nil {
		_ = conn.Close()
		return errs.Wrap(errs.KindHandshake, "handshake failed", err)
	}
	conn.ActivateSecureSession(sealer, opener)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- conn.Run(ctx) }()

	m := newMirror()

	restore, err := enterRawMode()
	if err == nil {
		defer restore()
	} else {
		log.Warn("failed to enter raw terminal mode, continuing without it")
	}

	inboundDone := make(chan error, 1)
	go func() { inboundDone <- readHostFrames(ctx, conn, m) }()

	stdinDone := make(chan error, 1)
	go func() { stdinDone <- forwardStdin(ctx, conn) }()

	resizeCh := make(chan os.Signal, 1)
	signal.Notify(resizeCh, syscall.SIGWINCH)
	defer signal.Stop(resizeCh)
	go forwardResizes(ctx, conn, resizeCh)

	select {
	case <-ctx.Done():
		return nil
	case err := <-runErrCh:
		cancel()
		return err
	case err := <-inboundDone:
		cancel()
		return err
	case err := <-stdinDone:
		cancel()
		return err
	}
}

// resolveJoinURL picks the websocket URL this process dials: a direct
// --connect override, or the first WebSocket-kind transport offer the
// signaling service returns for this session (WebRTC/IPC offers are
// out of scope for this CLI; see DESIGN.md).
func resolveJoinURL(ctx context.Context, f joinFlags, signalingURL string) (string, error) {
	if f.connect != "" {
		return f.connect, nil
	}
	if signalingURL == "" || f.sessionID == "" || f.joinCode == "" {
		return "", errs.New(errs.KindInvalidConfig, "join requires --connect, or --signaling-url/--session-id/--join-code")
	}
	client, err := signaling.NewClient(signalingURL)
	if err != nil {
		return "", err
	}
	result, err := client.Join(ctx, f.sessionID, f.joinCode)
	if err != nil {
		return "", err
	}
	preferred := signaling.PreferredOffer(result.Offers, "client")
	for _, offer := range preferred {
		if offer.Kind == signaling.TransportWebSocket && offer.WebSocket != nil {
			return offer.WebSocket.URL, nil
		}
	}
	if result.WebsocketURL != "" {
		return result.WebsocketURL, nil
	}
	return "", errs.New(errs.KindSetup, "signaling service offered no websocket transport")
}

// readHostFrames decodes inbound host->client frames, applies each to
// the local mirror, and redraws the rows it touched.
func readHostFrames(ctx context.Context, conn *wstransport.Conn, m *mirror) error {
	out := os.Stdout
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-conn.Inbound():
			if !ok {
				return errs.New(errs.KindChannelClosed, "connection closed")
			}
			frame, err := wstransport.DecodeInboundHostFrame(payload)
			if err != nil {
				continue
			}
			applyHostFrame(m, frame)
			renderRows(out, m, m.takeDirty())
			renderCursor(out, m)
		}
	}
}

func applyHostFrame(m *mirror, frame wire.HostFrame) {
	switch frame.Tag {
	case wire.TagGrid:
		m.applyGrid(frame.Grid)
	case wire.TagSnapshot:
		if frame.Snapshot != nil {
			m.applyUpdates(frame.Snapshot.Updates)
		}
	case wire.TagDelta:
		if frame.Delta != nil {
			m.applyUpdates(frame.Delta.Updates)
		}
	case wire.TagHistoryBackfill:
		if frame.HistoryBackfill != nil {
			m.applyUpdates(frame.HistoryBackfill.Updates)
		}
	case wire.TagCursor:
		if frame.Cursor != nil {
			m.apply(deltastream.NewCursor(*frame.Cursor))
		}
	}
}

// forwardStdin reads raw terminal input and forwards it as Input
// frames, one per read, relying on the PTY/emulator on the host side to
// interpret control sequences.
func forwardStdin(ctx context.Context, conn *wstransport.Conn) error {
	reader := bufio.NewReaderSize(os.Stdin, 4096)
	buf := make([]byte, 4096)
	var seq uint64
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := reader.Read(buf)
		if n > 0 {
			seq++
			payload := make([]byte, n)
			copy(payload, buf[:n])
			frame := wire.ClientFrame{Tag: wire.TagInput, Input: &wire.InputBody{Seq: seq, Bytes: payload}}
			if werr := conn.WriteClientFrame(frame); werr != nil {
				return werr
			}
		}
		if err != nil {
			return errs.Wrap(errs.KindNetwork, "read stdin", err)
		}
	}
}

// forwardResizes watches for local terminal resize signals and relays
// the new size to the host.
func forwardResizes(ctx context.Context, conn *wstransport.Conn, sigCh <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			cols, rows, err := term.GetSize(int(os.Stdout.Fd()))
			if err != nil {
				continue
			}
			frame := wire.ClientFrame{Tag: wire.TagResize, Resize: &wire.ResizeBody{Cols: uint32(cols), Rows: uint32(rows)}}
			_ = conn.WriteClientFrame(frame)
		}
	}
}

// enterRawMode puts the local terminal into raw mode for the duration
// of the join session, returning a restore func.
func enterRawMode() (func(), error) {
	fd := int(os.Stdin.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, errs.Wrap(errs.KindSetup, "enter raw mode", err)
	}
	return func() { _ = term.Restore(fd, state) }, nil
}
