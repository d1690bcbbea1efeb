package mcpserve

import (
	"encoding/json"
	"sync"

	"github.com/beachsh/beach/internal/deltastream"
)

// service implements the MCP method dispatch against a single Session.
// Grounded on the original terminal-sharing server's handle_request
// match over initialize/ping/resources/{list,read,subscribe,unsubscribe}
// tools/list and tools/call are intentionally omitted: no write
// operation is exposed over MCP in this scope (spec §6.5 names only
// grid/history/cursor resources), so there are no tools to list.
type service struct {
	session *Session
}

func newService(session *Session) *service {
	return &service{session: session}
}

// connState tracks a single connection's live resource subscriptions,
// each backed by its own deltastream.Subscription draining goroutine.
type connState struct {
	mu    sync.Mutex
	subs  map[string]func()
	outCh chan<- []byte
}

func newConnState(outCh chan<- []byte) *connState {
	return &connState{subs: make(map[string]func()), outCh: outCh}
}

func (c *connState) addSubscription(id string, cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.subs[id]; ok {
		prev()
	}
	c.subs[id] = cancel
}

func (c *connState) removeSubscription(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cancel, ok := c.subs[id]
	if ok {
		cancel()
		delete(c.subs, id)
	}
	return ok
}

func (c *connState) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cancel := range c.subs {
		cancel()
	}
	c.subs = make(map[string]func())
}

func (s *service) handle(conn *connState, req request) *response {
	switch req.Method {
	case "initialize":
		return resp(req.ID, resultResponse(req.ID, map[string]interface{}{
			"protocolVersion": "2024-10-01",
			"capabilities": map[string]interface{}{
				"resources":     true,
				"tools":         false,
				"notifications": []string{"resources/updated"},
			},
		}))

	case "ping":
		if req.ID == nil {
			return nil
		}
		return resp(req.ID, resultResponse(req.ID, map[string]bool{"ok": true}))

	case "resources/list":
		result := map[string]interface{}{"resources": descriptorsForSession(s.session.ID)}
		return resp(req.ID, resultResponse(req.ID, result))

	case "resources/read":
		value, err := s.resourcesRead(req.Params)
		return s.finish(req.ID, value, err)

	case "resources/subscribe":
		value, err := s.resourcesSubscribe(conn, req.Params)
		return s.finish(req.ID, value, err)

	case "resources/unsubscribe":
		value, err := s.resourcesUnsubscribe(conn, req.Params)
		return s.finish(req.ID, value, err)

	default:
		if req.ID == nil {
			return nil
		}
		r := errorResponse(req.ID, errCodeMethodNotFound, "method not found: "+req.Method)
		return &r
	}
}

func (s *service) finish(id json.RawMessage, value interface{}, err error) *response {
	if id == nil {
		return nil
	}
	if err != nil {
		if me, ok := err.(*mcpError); ok {
			r := errorResponse(id, me.code, me.message)
			return &r
		}
		r := errorResponse(id, errCodeInternal, err.Error())
		return &r
	}
	return resp(id, resultResponse(id, value))
}

func resp(id json.RawMessage, r response) *response {
	if id == nil {
		return nil
	}
	return &r
}

type readParams struct {
	URI     string          `json:"uri"`
	Options json.RawMessage `json:"options"`
}

func (s *service) resourcesRead(params json.RawMessage) (interface{}, error) {
	var p readParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, invalidParamsErr("malformed resources/read params")
		}
	}
	sessionID, res, ok := parseResourceURI(p.URI)
	if !ok {
		return nil, invalidParamsErr("unrecognized resource uri: " + p.URI)
	}
	if sessionID != s.session.ID {
		return nil, notFoundErr("no such session: " + sessionID)
	}
	switch res {
	case resourceGrid:
		var req gridSnapshotRequest
		if len(p.Options) > 0 {
			if err := json.Unmarshal(p.Options, &req); err != nil {
				return nil, invalidParamsErr("malformed grid options")
			}
		}
		return s.session.readGridSnapshot(req)
	case resourceHistory:
		var req historyReadRequest
		if len(p.Options) > 0 {
			if err := json.Unmarshal(p.Options, &req); err != nil {
				return nil, invalidParamsErr("malformed history options")
			}
		}
		return s.session.readHistorySegment(req)
	case resourceCursor:
		return s.session.readCursor(), nil
	default:
		return nil, notFoundErr("unknown resource")
	}
}

type subscribeParams struct {
	URI string `json:"uri"`
}

// resourcesSubscribe registers a deltastream subscription that
// forwards a resources/updated notification to the connection's
// outgoing channel on every published update touching the subscribed
// resource's session (grid/history share the same underlying bus;
// cursor updates are filtered to KindCursor so cursor subscribers
// don't wake on every cell write).
func (s *service) resourcesSubscribe(conn *connState, params json.RawMessage) (interface{}, error) {
	var p subscribeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParamsErr("malformed resources/subscribe params")
	}
	sessionID, res, ok := parseResourceURI(p.URI)
	if !ok || sessionID != s.session.ID {
		return nil, notFoundErr("no such resource: " + p.URI)
	}

	subID := "sub-" + p.URI
	sub := s.session.Bus.Subscribe(subID)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-sub.Notify():
				updates, _ := sub.Drain()
				if res == resourceCursor && !anyCursor(updates) {
					continue
				}
				if len(updates) == 0 {
					continue
				}
				notif := newNotification("resources/updated", map[string]string{"uri": p.URI})
				data, err := json.Marshal(notif)
				if err != nil {
					continue
				}
				select {
				case conn.outCh <- data:
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()

	conn.addSubscription(p.URI, func() {
		close(done)
		s.session.Bus.Unsubscribe(subID)
	})

	return map[string]bool{"subscribed": true}, nil
}

func anyCursor(updates []deltastream.Update) bool {
	for _, u := range updates {
		if u.Kind == deltastream.KindCursor {
			return true
		}
	}
	return false
}

func (s *service) resourcesUnsubscribe(conn *connState, params json.RawMessage) (interface{}, error) {
	var p subscribeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParamsErr("malformed resources/unsubscribe params")
	}
	removed := conn.removeSubscription(p.URI)
	return map[string]bool{"unsubscribed": removed}, nil
}
