package wstransport

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/beachsh/beach/internal/chunk"
	"github.com/beachsh/beach/internal/errs"
)

// Dial connects to a beach host's websocket endpoint (ws:// or wss://)
// and wraps the resulting connection as a Conn.
func Dial(ctx context.Context, url string, header http.Header, chunkCfg chunk.Config, log *zap.Logger) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, errs.Wrap(errs.KindNetwork, "dial "+url, err)
	}
	return NewConn(ws, chunkCfg, log), nil
}
