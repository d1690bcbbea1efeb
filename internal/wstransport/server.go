package wstransport

import (
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/beachsh/beach/internal/chunk"
	"github.com/beachsh/beach/internal/errs"
)

// ServerConfig controls the HTTP->websocket upgrade performed by
// Accept.
type ServerConfig struct {
	// AllowedOrigins lists acceptable Origin header values. Empty means
	// same-origin-or-absent only, rejecting cross-origin upgrade
	// attempts (the opposite of the permissive "allow all" default
	// gorilla/websocket examples often ship with).
	AllowedOrigins []string
	ChunkConfig    chunk.Config
}

func (cfg ServerConfig) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}
	for _, allowed := range cfg.AllowedOrigins {
		if allowed == origin {
			return true
		}
	}
	return false
}

// Accept upgrades an incoming HTTP request to a websocket connection
// and wraps it as a Conn, matching the upgrade step of
// RawTerminalWebSocketHandler.ServeHTTP.
func Accept(w http.ResponseWriter, r *http.Request, cfg ServerConfig, log *zap.Logger) (*Conn, error) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     cfg.checkOrigin,
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindNetwork, "upgrade", err)
	}
	return NewConn(ws, cfg.ChunkConfig, log), nil
}
