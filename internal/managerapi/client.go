// Package managerapi is the HTTP client surface against a beach manager
// service: reading/writing a private beach's pane layout, batch-applying
// controller assignments, and minting viewer credentials (spec §6.4).
package managerapi

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

// Client talks to one manager base URL.
type Client struct {
	http    *http.Client
	baseURL *url.URL
}

// NewClient builds a Client against baseURL.
func NewClient(baseURL string) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errs.New(errs.KindInvalidConfig, "manager base url cannot be empty")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidConfig, "invalid manager base url", err)
	}
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &Client{
		http: &http.Client{
			Timeout:   requestTimeout,
			Transport: &http.Transport{DialContext: dialer.DialContext},
		},
		baseURL: u,
	}, nil
}

// PaneLayout positions one host session's pane within a beach's grid of
// panes.
type PaneLayout struct {
	HostSessionID string `json:"host_session_id"`
	X             int    `json:"x"`
	Y             int    `json:"y"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
}

// Layout is a private beach's full pane arrangement, versioned so
// concurrent editors can detect a stale write.
type Layout struct {
	Version int          `json:"version"`
	Panes   []PaneLayout `json:"panes"`
}

// GetLayout fetches the current layout for beachID.
func (c *Client) GetLayout(ctx context.Context, beachID string) (*Layout, error) {
	var layout Layout
	path := fmt.Sprintf("private_beaches/%s", url.PathEscape(beachID))
	if err := c.do(ctx, http.MethodGet, path, nil, &layout); err != nil {
		return nil, err
	}
	return &layout, nil
}

// PutLayout replaces beachID's layout.
func (c *Client) PutLayout(ctx context.Context, beachID string, layout Layout) error {
	path := fmt.Sprintf("private_beaches/%s/layout", url.PathEscape(beachID))
	return c.do(ctx, http.MethodPut, path, layout, nil)
}

// Assignment requests that hostSessionID be owned by managerInstanceID.
type Assignment struct {
	HostSessionID     string `json:"host_session_id"`
	ManagerInstanceID string `json:"manager_instance_id"`
}

// AssignmentResult is the per-item outcome of a batch assignment call.
type AssignmentResult struct {
	HostSessionID string `json:"host_session_id"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
}

type batchAssignmentsRequest struct {
	Assignments []Assignment `json:"assignments"`
}

type batchAssignmentsResponse struct {
	Results []AssignmentResult `json:"results"`
}

// BatchAssignments applies a batch of host-session-to-manager
// assignments in one request.
func (c *Client) BatchAssignments(ctx context.Context, beachID string, assignments []Assignment) ([]AssignmentResult, error) {
	var resp batchAssignmentsResponse
	path := fmt.Sprintf("private_beaches/%s/assignments:batch", url.PathEscape(beachID))
	if err := c.do(ctx, http.MethodPost, path, batchAssignmentsRequest{Assignments: assignments}, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// ViewerCredential is either a short-lived bearer token or the viewer
// passcode, per spec §6.4 ("returns either a short-lived viewer token or
// the viewer passcode"); exactly one of Token/Passcode is set.
type ViewerCredential struct {
	Token     string     `json:"token,omitempty"`
	Passcode  string     `json:"passcode,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ViewerCredential fetches a viewer credential for sessionID within
// beachID.
func (c *Client) ViewerCredential(ctx context.Context, beachID, sessionID string) (*ViewerCredential, error) {
	var cred ViewerCredential
	path := fmt.Sprintf("private_beaches/%s/sessions/%s/viewer_credential",
		url.PathEscape(beachID), url.PathEscape(sessionID))
	if err := c.do(ctx, http.MethodGet, path, nil, &cred); err != nil {
		return nil, err
	}
	if cred.Token == "" && cred.Passcode == "" {
		return nil, errs.New(errs.KindInvalidResponse, "viewer credential response has neither token nor passcode")
	}
	return &cred, nil
}

func (c *Client) do(ctx context.Context, method, relPath string, body, out any) error {
	endpoint, err := c.baseURL.Parse(relPath)
	if err != nil {
		return errs.Wrap(errs.KindInvalidConfig, "invalid endpoint "+relPath, err)
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errs.Wrap(errs.KindMalformed, "encode request body", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reqBody)
	if err != nil {
		return errs.Wrap(errs.KindInvalidConfig, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Wrap(errs.KindNetwork, "manager request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.KindNetwork, "read response body", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errs.New(errs.KindHTTPStatus, "unexpected http status "+strconv.Itoa(resp.StatusCode))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errs.Wrap(errs.KindInvalidResponse, "decode response body", err)
	}
	return nil
}
