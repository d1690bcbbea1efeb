package signaling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/beachsh/beach/internal/errs"
)

func TestRegisterReturnsJoinCodeAndOffers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		var req registerRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(registerResponse{
			Success:   true,
			SessionID: req.SessionID,
			JoinCode:  "654321",
			Transports: []wireTransport{
				{Kind: "websocket", URL: "ws://mock/signal"},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	res, err := c.Register(context.Background(), "sess-1", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.JoinCode != "654321" {
		t.Fatalf("join code = %q, want 654321", res.JoinCode)
	}
	if len(res.Offers) != 1 || res.Offers[0].Kind != TransportWebSocket {
		t.Fatalf("offers = %+v", res.Offers)
	}
}

func TestJoinWithValidCodeYieldsOffers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/sessions":
			json.NewEncoder(w).Encode(registerResponse{Success: true, SessionID: "sess-1", JoinCode: "111111"})
		case r.URL.Path == "/sessions/sess-1/join":
			var req joinRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Passphrase != "111111" {
				json.NewEncoder(w).Encode(joinResponse{Success: false, Message: "invalid code"})
				return
			}
			json.NewEncoder(w).Encode(joinResponse{
				Success: true,
				Transports: []wireTransport{
					{Kind: "webrtc", SignalingURL: "http://mock/signal", Role: "viewer", PollIntervalMS: 200},
					{Kind: "websocket", URL: "ws://mock/relay"},
				},
			})
		default:
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	reg, err := c.Register(context.Background(), "sess-1", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	joined, err := c.Join(context.Background(), "sess-1", reg.JoinCode)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if len(joined.Offers) != 2 {
		t.Fatalf("offers = %+v", joined.Offers)
	}

	ordered := PreferredOffer(joined.Offers, "viewer")
	if ordered[0].Kind != TransportWebRTC || ordered[0].WebRTC.Role != "viewer" {
		t.Fatalf("expected role-matching webrtc offer first, got %+v", ordered[0])
	}
}

func TestJoinWithInvalidCodeFailsAuthentication(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sessions":
			json.NewEncoder(w).Encode(registerResponse{Success: true, SessionID: "sess-1", JoinCode: "222222"})
		case "/sessions/sess-1/join":
			json.NewEncoder(w).Encode(joinResponse{Success: false, Message: "invalid code"})
		}
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.Register(context.Background(), "sess-1", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err = c.Join(context.Background(), "sess-1", "000000")
	if !errs.Is(err, errs.KindAuthenticationFailed) {
		t.Fatalf("expected AuthenticationFailed, got %v", err)
	}
}

func TestJoinRejectsMalformedCodeLocally(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.Join(context.Background(), "sess-1", "abc")
	if !errs.Is(err, errs.KindInvalidJoinCode) {
		t.Fatalf("expected InvalidJoinCode, got %v", err)
	}
	if called {
		t.Fatal("expected no network call for a malformed join code")
	}
}

func TestRegisterSurfacesHTTPStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.Register(context.Background(), "sess-1", "")
	if !errs.Is(err, errs.KindHTTPStatus) {
		t.Fatalf("expected HTTPStatus, got %v", err)
	}
}

func TestNewClientRejectsEmptyBaseURL(t *testing.T) {
	_, err := NewClient("   ")
	if !errs.Is(err, errs.KindInvalidConfig) {
		t.Fatalf("expected InvalidConfig, got %v", err)
	}
}

func TestPreferredOfferOrdersWebRTCBeforeWebSocketBeforeIPC(t *testing.T) {
	offers := []TransportOffer{
		{Kind: TransportIPC},
		{Kind: TransportWebSocket, WebSocket: &WebSocketOffer{URL: "ws://x"}},
		{Kind: TransportWebRTC, WebRTC: &WebRTCOffer{Role: "host"}},
	}
	ordered := PreferredOffer(offers, "viewer")
	if ordered[0].Kind != TransportWebRTC {
		t.Fatalf("expected webrtc first even without a role match, got %+v", ordered[0])
	}
	if ordered[1].Kind != TransportWebSocket {
		t.Fatalf("expected websocket second, got %+v", ordered[1])
	}
	if ordered[2].Kind != TransportIPC {
		t.Fatalf("expected ipc last, got %+v", ordered[2])
	}
}
