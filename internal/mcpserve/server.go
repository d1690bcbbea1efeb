package mcpserve

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"os"

	"go.uber.org/zap"

	"github.com/beachsh/beach/internal/errs"
	"github.com/beachsh/beach/internal/logging"
)

// Config selects the MCP listener's transport (spec §6.5 `--mcp`:
// stdio or a UNIX socket, never both).
type Config struct {
	UseStdio   bool
	SocketPath string
}

// Server is the MCP listener for one host session. Grounded on the
// original terminal-sharing server's McpServer/run_stdio/run_socket
// split, reworked onto net.Listener + bufio.Scanner instead of tokio's
// UnixListener/BufReader.
type Server struct {
	cfg Config
	svc *service
	log *zap.Logger
}

// NewServer builds a Server exposing session's resources.
func NewServer(cfg Config, session *Session, log *zap.Logger) *Server {
	return &Server{cfg: cfg, svc: newService(session), log: logging.OrNop(log)}
}

// Run blocks, serving MCP connections until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.UseStdio {
		return s.runStdio(ctx)
	}
	return s.runSocket(ctx)
}

func (s *Server) runStdio(ctx context.Context) error {
	s.handleConnection(ctx, os.Stdin, os.Stdout)
	return nil
}

func (s *Server) runSocket(ctx context.Context) error {
	if s.cfg.SocketPath == "" {
		return errs.New(errs.KindInvalidConfig, "mcp socket path missing")
	}
	_ = os.Remove(s.cfg.SocketPath)
	ln, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return errs.Wrap(errs.KindSetup, "bind mcp socket", err)
	}
	defer func() {
		ln.Close()
		if rmErr := os.Remove(s.cfg.SocketPath); rmErr != nil && !os.IsNotExist(rmErr) {
			s.log.Warn("failed to clean mcp socket", zap.String("path", s.cfg.SocketPath), zap.Error(rmErr))
		}
	}()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Info("mcp server listening", zap.String("socket", s.cfg.SocketPath))
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return errs.Wrap(errs.KindNetwork, "accept mcp connection", err)
			}
		}
		go s.handleConnection(ctx, conn, conn)
	}
}

// handleConnection runs the read/dispatch/write loop for one
// connection: a dedicated writer goroutine drains outgoing JSON lines
// (responses and resources/updated pushes) so a slow reader never
// blocks a subscription's notification delivery.
func (s *Server) handleConnection(ctx context.Context, r io.Reader, w io.Writer) {
	outCh := make(chan []byte, 64)
	conn := newConnState(outCh)
	defer conn.closeAll()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		bw := bufio.NewWriter(w)
		for line := range outCh {
			bw.Write(line)
			bw.WriteByte('\n')
			if err := bw.Flush(); err != nil {
				return
			}
		}
	}()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(trimSpace(line)) == 0 {
			continue
		}
		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			r := errorResponse(nil, errCodeParseError, "invalid json")
			emit(outCh, r)
			continue
		}
		if req.JSONRPC != jsonrpcVersion {
			if req.ID != nil {
				r := errorResponse(req.ID, errCodeInvalidRequest, "jsonrpc version must be 2.0")
				emit(outCh, r)
			}
			continue
		}
		if resp := s.svc.handle(conn, req); resp != nil {
			emit(outCh, *resp)
		}
	}

	close(outCh)
	<-writerDone
}

func emit(outCh chan<- []byte, r response) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	outCh <- data
}

func trimSpace(b []byte) []byte {
	start := 0
	for start < len(b) && isSpace(b[start]) {
		start++
	}
	end := len(b)
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}
