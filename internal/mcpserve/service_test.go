package mcpserve

import (
	"encoding/json"
	"testing"
	"time"
)

func req(id string, method string, params interface{}) request {
	var raw json.RawMessage
	if params != nil {
		raw, _ = json.Marshal(params)
	}
	var idRaw json.RawMessage
	if id != "" {
		idRaw, _ = json.Marshal(id)
	}
	return request{JSONRPC: jsonrpcVersion, ID: idRaw, Method: method, Params: raw}
}

func TestHandleInitializeReturnsCapabilities(t *testing.T) {
	s := newService(newTestSession(t, 10, 5))
	conn := newConnState(make(chan []byte, 1))
	resp := s.handle(conn, req("1", "initialize", nil))
	if resp == nil || resp.Error != nil {
		t.Fatalf("initialize response = %#v", resp)
	}
}

func TestHandleUnknownMethodReturnsMethodNotFound(t *testing.T) {
	s := newService(newTestSession(t, 10, 5))
	conn := newConnState(make(chan []byte, 1))
	resp := s.handle(conn, req("1", "nonsense/method", nil))
	if resp == nil || resp.Error == nil || resp.Error.Code != errCodeMethodNotFound {
		t.Fatalf("resp = %#v", resp)
	}
}

func TestHandleNotificationWithoutIDReturnsNoResponse(t *testing.T) {
	s := newService(newTestSession(t, 10, 5))
	conn := newConnState(make(chan []byte, 1))
	resp := s.handle(conn, req("", "ping", nil))
	if resp != nil {
		t.Fatalf("expected nil response for notification, got %#v", resp)
	}
}

func TestResourcesListReturnsThreeDescriptors(t *testing.T) {
	sess := newTestSession(t, 10, 5)
	s := newService(sess)
	conn := newConnState(make(chan []byte, 1))
	resp := s.handle(conn, req("1", "resources/list", nil))
	if resp == nil || resp.Error != nil {
		t.Fatalf("resources/list response = %#v", resp)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result type = %T", resp.Result)
	}
	resources, ok := result["resources"].([]resourceDescriptor)
	if !ok || len(resources) != 3 {
		t.Fatalf("resources = %#v", result["resources"])
	}
}

func TestResourcesReadGridReturnsLinesForKnownSession(t *testing.T) {
	sess := newTestSession(t, 10, 5)
	sess.Emu.HandleOutput([]byte("hi"))
	s := newService(sess)
	conn := newConnState(make(chan []byte, 1))

	resp := s.handle(conn, req("1", "resources/read", map[string]string{
		"uri": "beach://session/sess-1/terminal/grid",
	}))
	if resp == nil || resp.Error != nil {
		t.Fatalf("resources/read response = %#v", resp)
	}
}

func TestResourcesReadUnknownSessionReturnsNotFound(t *testing.T) {
	sess := newTestSession(t, 10, 5)
	s := newService(sess)
	conn := newConnState(make(chan []byte, 1))

	resp := s.handle(conn, req("1", "resources/read", map[string]string{
		"uri": "beach://session/other/terminal/grid",
	}))
	if resp == nil || resp.Error == nil || resp.Error.Code != errCodeNotFound {
		t.Fatalf("resp = %#v", resp)
	}
}

func TestResourcesSubscribeThenUnsubscribe(t *testing.T) {
	sess := newTestSession(t, 10, 5)
	s := newService(sess)
	outCh := make(chan []byte, 8)
	conn := newConnState(outCh)

	sub := s.handle(conn, req("1", "resources/subscribe", map[string]string{
		"uri": "beach://session/sess-1/terminal/grid",
	}))
	if sub == nil || sub.Error != nil {
		t.Fatalf("subscribe response = %#v", sub)
	}

	sess.Bus.PublishBatch(sess.Emu.HandleOutput([]byte("x")))

	select {
	case msg := <-outCh:
		var n notification
		if err := json.Unmarshal(msg, &n); err != nil {
			t.Fatalf("unmarshal notification: %v", err)
		}
		if n.Method != "resources/updated" {
			t.Fatalf("notification method = %q", n.Method)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for resources/updated notification")
	}

	unsub := s.handle(conn, req("2", "resources/unsubscribe", map[string]string{
		"uri": "beach://session/sess-1/terminal/grid",
	}))
	if unsub == nil || unsub.Error != nil {
		t.Fatalf("unsubscribe response = %#v", unsub)
	}
}
