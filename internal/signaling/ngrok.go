package signaling

import (
	"context"
	"net"

	"golang.ngrok.com/ngrok"
	"golang.ngrok.com/ngrok/config"

	"github.com/beachsh/beach/internal/errs"
)

// NgrokTunnel fronts a local listener with a public ngrok HTTPS
// endpoint, offered as a NAT-traversal fallback transport when neither a
// direct WebRTC ICE path nor a reachable WebSocket relay is available
// (spec §4.9 "transport_offers[]"; golang.ngrok.com/ngrok
// as a direct dependency for exactly this kind of public-endpoint
// exposure).
type NgrokTunnel struct {
	tun ngrok.Tunnel
}

// StartNgrokTunnel opens a public HTTP(S) endpoint forwarding to
// whatever the caller Serves on the returned Listener. The authtoken is
// read from the environment (NGROK_AUTHTOKEN), matching ngrok-go's own
// convention so no beach-specific config plumbing is required.
func StartNgrokTunnel(ctx context.Context) (*NgrokTunnel, error) {
	tun, err := ngrok.Listen(ctx, config.HTTPEndpoint(), ngrok.WithAuthtokenFromEnv())
	if err != nil {
		return nil, errs.Wrap(errs.KindSetup, "start ngrok tunnel", err)
	}
	return &NgrokTunnel{tun: tun}, nil
}

// URL returns the public endpoint clients should dial.
func (t *NgrokTunnel) URL() string { return t.tun.URL() }

// Listener exposes the tunnel as a net.Listener, suitable for
// http.Serve or http.Server.Serve.
func (t *NgrokTunnel) Listener() net.Listener { return t.tun }

// Offer wraps the tunnel's public URL as a WebSocket transport offer: a
// tunnel fronts plain HTTP(S)/WS traffic rather than negotiating its own
// WebRTC session.
func (t *NgrokTunnel) Offer() TransportOffer {
	return TransportOffer{Kind: TransportWebSocket, WebSocket: &WebSocketOffer{URL: t.tun.URL()}}
}

// Close tears down the tunnel.
func (t *NgrokTunnel) Close() error {
	return t.tun.CloseWithContext(context.Background())
}
