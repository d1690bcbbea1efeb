// Package signaling implements the register/join HTTP client against a
// signaling server base URL (spec §4.9, §6.3), grounded on the
// a reqwest-based SessionManager in original_source's
// apps/beach-human/src/session/mod.rs: a thin backend interface wrapping
// one *http.Client, a join-code format check done client-side before any
// network call, and a success/message envelope distinguishing
// AuthenticationFailed from a generic Server error.
package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/beachsh/beach/internal/errs"
)

const (
	connectTimeout = 3 * time.Second
	requestTimeout = 8 * time.Second
)

// Client talks to one signaling server base URL.
type Client struct {
	http    *http.Client
	baseURL *url.URL
}

// NewClient builds a Client against baseURL, adding an "http://" scheme
// if one is missing (spec and original both accept a bare host:port).
func NewClient(baseURL string) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errs.New(errs.KindInvalidConfig, "signaling base url cannot be empty")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidConfig, "invalid signaling base url", err)
	}
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &Client{
		http: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: dialer.DialContext,
			},
		},
		baseURL: u,
	}, nil
}

// RegisterResult is the outcome of Register.
type RegisterResult struct {
	SessionID    string
	SessionURL   string
	JoinCode     string
	WebsocketURL string
	Offers       []TransportOffer
}

type registerRequest struct {
	SessionID  string `json:"session_id,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`
}

type registerResponse struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message,omitempty"`
	SessionID    string          `json:"session_id,omitempty"`
	SessionURL   string          `json:"session_url,omitempty"`
	JoinCode     string          `json:"join_code,omitempty"`
	Transports   []wireTransport `json:"transports,omitempty"`
	WebsocketURL string          `json:"websocket_url,omitempty"`
}

// Register creates a new session, optionally pinned to sessionID, and
// returns its six-digit join code and advertised transports (spec §6.3:
// POST /sessions).
func (c *Client) Register(ctx context.Context, sessionID, passphrase string) (*RegisterResult, error) {
	var resp registerResponse
	if err := c.post(ctx, "sessions", registerRequest{SessionID: sessionID, Passphrase: passphrase}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, serverError(resp.Message, "session registration failed")
	}
	if resp.JoinCode == "" {
		return nil, errs.New(errs.KindInvalidResponse, "register response missing join_code")
	}
	if err := validateJoinCode(resp.JoinCode); err != nil {
		return nil, err
	}
	return &RegisterResult{
		SessionID:    resp.SessionID,
		SessionURL:   resp.SessionURL,
		JoinCode:     resp.JoinCode,
		WebsocketURL: resp.WebsocketURL,
		Offers:       decodeTransports(resp.Transports),
	}, nil
}

// JoinResult is the outcome of Join.
type JoinResult struct {
	SessionURL   string
	WebsocketURL string
	Offers       []TransportOffer
}

type joinRequest struct {
	Passphrase string `json:"passphrase"`
}

type joinResponse struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message,omitempty"`
	SessionURL   string          `json:"session_url,omitempty"`
	Transports   []wireTransport `json:"transports,omitempty"`
	WebsocketURL string          `json:"websocket_url,omitempty"`
}

// Join attempts to join sessionID using joinCode, a six-digit passphrase
// (spec §6.3: POST /sessions/{id}/join). An invalid-format code is
// rejected locally without a network round trip; a server-rejected code
// surfaces as KindAuthenticationFailed so callers can prompt for retry.
func (c *Client) Join(ctx context.Context, sessionID, joinCode string) (*JoinResult, error) {
	if err := validateJoinCode(joinCode); err != nil {
		return nil, err
	}
	var resp joinResponse
	path := fmt.Sprintf("sessions/%s/join", url.PathEscape(sessionID))
	if err := c.post(ctx, path, joinRequest{Passphrase: joinCode}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		lower := strings.ToLower(resp.Message)
		if strings.Contains(lower, "invalid") || strings.Contains(lower, "code") {
			msg := resp.Message
			if msg == "" {
				msg = "session join failed"
			}
			return nil, errs.New(errs.KindAuthenticationFailed, msg)
		}
		return nil, serverError(resp.Message, "session join failed")
	}
	return &JoinResult{
		SessionURL:   resp.SessionURL,
		WebsocketURL: resp.WebsocketURL,
		Offers:       decodeTransports(resp.Transports),
	}, nil
}

func serverError(message, fallback string) error {
	if message == "" {
		message = fallback
	}
	return errs.New(errs.KindServer, message)
}

func validateJoinCode(code string) error {
	if len(code) != 6 {
		return errs.New(errs.KindInvalidJoinCode, "join code must be six numeric digits")
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return errs.New(errs.KindInvalidJoinCode, "join code must be six numeric digits")
		}
	}
	return nil
}

func (c *Client) post(ctx context.Context, relPath string, body, out any) error {
	endpoint, err := c.baseURL.Parse(relPath)
	if err != nil {
		return errs.Wrap(errs.KindInvalidConfig, "invalid endpoint "+relPath, err)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return errs.Wrap(errs.KindMalformed, "encode request body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return errs.Wrap(errs.KindInvalidConfig, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Wrap(errs.KindNetwork, "signaling request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.KindNetwork, "read response body", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errs.New(errs.KindHTTPStatus, "unexpected http status "+strconv.Itoa(resp.StatusCode))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errs.Wrap(errs.KindInvalidResponse, "decode response body", err)
	}
	return nil
}
