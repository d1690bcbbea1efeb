// Package fastpath implements the three-channel WebRTC controller
// transport (spec §4.8): a reliable/ordered "actions" channel
// (manager→host), a reliable/ordered "acks" channel (host→manager),
// and an unreliable/unordered "state" channel (host→manager,
// max_retransmits=0), each carrying a JSON envelope.
//
// Grounded on pkg/api/raw_websocket.go's message pump
// (JSON {"type":...} envelope dispatch over a send/done channel pair,
// ticker-driven keepalive) adapted from one WebSocket connection to
// three labeled WebRTC data channels.
package fastpath

import (
	"encoding/json"

	"github.com/beachsh/beach/internal/errs"
)

// MessageType discriminates an Envelope's payload (spec §4.8).
type MessageType string

const (
	MessageAction MessageType = "action"
	MessageAck    MessageType = "ack"
	MessageState  MessageType = "state"
	MessageHealth MessageType = "health"
)

// Envelope is the wire shape carried by every data channel message.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ActionCommand is a manager→host instruction delivered over the
// actions channel.
type ActionCommand struct {
	ID         string `json:"id"`
	ActionType string `json:"action_type"`
	Payload    []byte `json:"payload"`
	ExpiresAt  *int64 `json:"expires_at,omitempty"` // unix millis
}

// ActionAck is a host→manager acknowledgement over the acks channel.
type ActionAck struct {
	ID      string `json:"id"`
	Applied bool   `json:"applied"`
	Detail  string `json:"detail,omitempty"`
}

// StateDiff is a host→manager best-effort snapshot over the state
// channel.
type StateDiff struct {
	Seq     uint64 `json:"seq"`
	Summary string `json:"summary"`
}

// EncodeEnvelope marshals typ/payload into a wire-ready Envelope.
func EncodeEnvelope(typ MessageType, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidFrame, "marshal envelope payload", err)
	}
	out, err := json.Marshal(Envelope{Type: typ, Payload: body})
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidFrame, "marshal envelope", err)
	}
	return out, nil
}

// DecodeEnvelope parses the outer Envelope without touching Payload.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, errs.Wrap(errs.KindInvalidFrame, "unmarshal envelope", err)
	}
	switch env.Type {
	case MessageAction, MessageAck, MessageState, MessageHealth:
	default:
		return Envelope{}, errs.New(errs.KindUnsupportedFrame, string(env.Type))
	}
	return env, nil
}

// DecodeActionCommand unmarshals env.Payload as an ActionCommand.
func DecodeActionCommand(env Envelope) (ActionCommand, error) {
	var a ActionCommand
	if err := json.Unmarshal(env.Payload, &a); err != nil {
		return a, errs.Wrap(errs.KindInvalidFrame, "unmarshal action_command", err)
	}
	return a, nil
}

// DecodeActionAck unmarshals env.Payload as an ActionAck.
func DecodeActionAck(env Envelope) (ActionAck, error) {
	var a ActionAck
	if err := json.Unmarshal(env.Payload, &a); err != nil {
		return a, errs.Wrap(errs.KindInvalidFrame, "unmarshal action_ack", err)
	}
	return a, nil
}

// DecodeStateDiff unmarshals env.Payload as a StateDiff.
func DecodeStateDiff(env Envelope) (StateDiff, error) {
	var s StateDiff
	if err := json.Unmarshal(env.Payload, &s); err != nil {
		return s, errs.Wrap(errs.KindInvalidFrame, "unmarshal state_diff", err)
	}
	return s, nil
}
