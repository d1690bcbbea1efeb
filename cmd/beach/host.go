package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/caddyserver/certmagic"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/beachsh/beach/internal/deltastream"
	"github.com/beachsh/beach/internal/errs"
	"github.com/beachsh/beach/internal/grid"
	"github.com/beachsh/beach/internal/lease"
	"github.com/beachsh/beach/internal/mcpserve"
	"github.com/beachsh/beach/internal/noisecore"
	"github.com/beachsh/beach/internal/ptyadapter"
	"github.com/beachsh/beach/internal/signaling"
	synchronizer "github.com/beachsh/beach/internal/sync"
	"github.com/beachsh/beach/internal/wstransport"
)

// defaultHistoryRows bounds the scrollback ring kept per session; spec
// §4 leaves the exact ring depth to the implementation, budgeting lane
// delivery (foreground/recent/history) separately via SyncBudgets.
const defaultHistoryRows = 10000

// leaseQueueDepth bounds the number of queued input actions held for a
// controller waiting on someone else's lease (spec §4.7).
const leaseQueueDepth = 64

type hostFlags struct {
	passphrase   string
	readOnly     bool
	signalingURL string
	listen       string
	shell        string
	cols         int
	rows         int
	sessionID    string
	mcp          bool
	mcpSocket    string
	recordCast   string
}

func newHostCmd() *cobra.Command {
	var f hostFlags
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Start a session and mirror the local PTY to joined peers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.passphrase, "passphrase", "", "shared passphrase (overrides the config's passphrase env var)")
	cmd.Flags().BoolVar(&f.readOnly, "read-only", false, "reject all input from joined peers")
	cmd.Flags().StringVar(&f.signalingURL, "signaling-url", "", "signaling service base URL, for join-code issuance")
	cmd.Flags().StringVar(&f.listen, "listen", "", "address the websocket transport listens on")
	cmd.Flags().StringVar(&f.shell, "shell", "", "shell to run under the pty")
	cmd.Flags().IntVar(&f.cols, "cols", 0, "initial terminal columns")
	cmd.Flags().IntVar(&f.rows, "rows", 0, "initial terminal rows")
	cmd.Flags().StringVar(&f.sessionID, "session-id", "", "session id to advertise (random uuid if unset)")
	cmd.Flags().BoolVar(&f.mcp, "mcp", false, "expose an MCP listener over stdio")
	cmd.Flags().StringVar(&f.mcpSocket, "mcp-socket", "", "expose an MCP listener over a unix socket at this path, instead of stdio")
	cmd.Flags().StringVar(&f.recordCast, "record-cast", "", "record the session to an asciinema v2 cast file at this path")
	return cmd
}

func runHost(ctx context.Context, f hostFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return errs.Wrap(errs.KindInvalidConfig, "load config", err)
	}
	if f.signalingURL != "" {
		cfg.Server.SignalingURL = f.signalingURL
	}
	if f.listen != "" {
		cfg.Server.ListenAddr = f.listen
	}
	if f.shell != "" {
		cfg.Session.Shell = f.shell
	}
	if f.cols > 0 {
		cfg.Session.Cols = f.cols
	}
	if f.rows > 0 {
		cfg.Session.Rows = f.rows
	}
	if err := cfg.Validate(); err != nil {
		return errs.Wrap(errs.KindInvalidConfig, "validate config", err)
	}

	passphrase := f.passphrase
	if passphrase == "" {
		passphrase = cfg.Passphrase()
	}
	if passphrase == "" {
		return errs.New(errs.KindInvalidConfig, "no passphrase set (flag or "+cfg.PassphraseEnvVar+")")
	}

	sessionID := f.sessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	log := zapLogger()

	g := grid.NewTerminalGrid(cfg.Session.Cols, defaultHistoryRows)
	bus := deltastream.NewBus(int(cfg.Sync.DeltaBudget)*4, log)
	emulator := ptyadapter.NewEmulator(g, cfg.Session.Cols, cfg.Session.Rows)

	shellCmd := exec.CommandContext(ctx, cfg.Session.Shell)
	shellCmd.Env = append(os.Environ(), "TERM=xterm-256color")
	pty, err := ptyadapter.StartCommand(shellCmd, cfg.Session.Cols, cfg.Session.Rows)
	if err != nil {
		return errs.Wrap(errs.KindSetup, "start shell", err)
	}

	var recorder *ptyadapter.CastRecorder
	var rawFwd ptyadapter.RawForwardFunc
	if f.recordCast != "" {
		recorder, err = ptyadapter.NewCastRecorder(f.recordCast, cfg.Session.Cols, cfg.Session.Rows, log)
		if err != nil {
			return errs.Wrap(errs.KindSetup, "start cast recorder", err)
		}
		rawFwd = recorder.Forward
	}

	reader := ptyadapter.NewReader(pty, emulator, bus, rawFwd, log)

	sy := synchronizer.New(g, bus, syncConfigFrom(cfg.Sync), log)

	persistAdapter, err := buildPersistenceAdapter(cfg.Persistence)
	if err != nil {
		return err
	}
	leases := lease.New(lease.DefaultTTL, leaseQueueDepth, persistAdapter, log)

	hostStatic, err := noisecore.GenerateKeyPair()
	if err != nil {
		return errs.Wrap(errs.KindSetup, "generate host key", err)
	}

	hs := &hostSession{
		id:         sessionID,
		passphrase: passphrase,
		readOnly:   f.readOnly,
		grid:       g,
		bus:        bus,
		emulator:   emulator,
		pty:        pty,
		reader:     reader,
		sy:         sy,
		leases:     leases,
		wsCfg:      wstransport.ServerConfig{ChunkConfig: chunkConfigFrom(cfg.Chunk)},
		hostID:     "host-" + sessionID,
		hostStatic: hostStatic,
		recorder:   recorder,
		log:        log,
		subs:       make(map[string]*clientConn),
	}
	if recorder != nil {
		defer recorder.Close()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := reader.Run(ctx); err != nil {
			errCh <- errs.Wrap(errs.KindSetup, "pty reader stopped", err)
		}
	}()

	if f.mcp || f.mcpSocket != "" {
		mcpSession := mcpserve.NewSession(sessionID, g, emulator, bus)
		mcpCfg := mcpserve.Config{UseStdio: f.mcp && f.mcpSocket == "", SocketPath: f.mcpSocket}
		mcpSrv := mcpserve.NewServer(mcpCfg, mcpSession, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mcpSrv.Run(ctx); err != nil {
				errCh <- errs.Wrap(errs.KindSetup, "mcp server stopped", err)
			}
		}()
	}

	if cfg.Server.SignalingURL != "" {
		if joinCode, joinErr := registerWithSignaling(ctx, cfg.Server.SignalingURL, sessionID, passphrase); joinErr != nil {
			log.Warn("signaling registration failed, continuing with direct connect only", zap.Error(joinErr))
		} else {
			fmt.Fprintf(os.Stdout, "session id:  %s\njoin code:   %s\n", sessionID, joinCode)
		}
	} else {
		fmt.Fprintf(os.Stdout, "session id:  %s\nlisten addr: %s\n", sessionID, cfg.Server.ListenAddr)
	}

	router := mux.NewRouter()
	router.HandleFunc("/ws", hs.handleUpgrade)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	srv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: router}

	wg.Add(1)
	go func() {
		defer wg.Done()
		errCh <- serveHost(ctx, srv, cfg.Server.CertMagicDomain, cfg.Server.NgrokEnabled, log)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
	case err := <-errCh:
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		shutdownCancel()
		wg.Wait()
		return err
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = srv.Shutdown(shutdownCtx)
	shutdownCancel()
	wg.Wait()
	return nil
}

// serveHost runs the host's HTTP(S) listener. A configured certmagic
// domain gets automatic TLS; a configured ngrok tunnel fronts the
// listener with a public endpoint for NAT traversal; otherwise it is a
// plain local listener, matching spec §6.5's default direct-connect
// flow.
func serveHost(ctx context.Context, srv *http.Server, certDomain string, ngrokEnabled bool, log *zap.Logger) error {
	if certDomain != "" {
		if err := certmagic.HTTPS([]string{certDomain}, srv.Handler); err != nil {
			return errs.Wrap(errs.KindSetup, "certmagic listen", err)
		}
		return nil
	}
	if ngrokEnabled {
		tun, err := signaling.StartNgrokTunnel(ctx)
		if err != nil {
			return err
		}
		log.Info("ngrok tunnel ready", zap.String("url", tun.URL()))
		if err := srv.Serve(tun.Listener()); err != nil && err != http.ErrServerClosed {
			return errs.Wrap(errs.KindNetwork, "serve over ngrok", err)
		}
		return nil
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return errs.Wrap(errs.KindSetup, "listen", err)
	}
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return errs.Wrap(errs.KindNetwork, "serve", err)
	}
	return nil
}

// registerWithSignaling advertises this session to the signaling
// service purely for join-code UX; the actual data-plane transport is
// this process's own websocket listener (§4.9 scope decision recorded
// in DESIGN.md).
func registerWithSignaling(ctx context.Context, baseURL, sessionID, passphrase string) (string, error) {
	client, err := signaling.NewClient(baseURL)
	if err != nil {
		return "", err
	}
	result, err := client.Register(ctx, sessionID, passphrase)
	if err != nil {
		return "", err
	}
	return result.JoinCode, nil
}
