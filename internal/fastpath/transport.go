package fastpath

import (
	"context"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/beachsh/beach/internal/errs"
	"github.com/beachsh/beach/internal/logging"
)

var (
	orderedTrue        = true
	orderedFalse       = false
	maxRetransmitsZero = uint16(0)
)

// Transport owns one peer connection and its three labeled data
// channels (spec §4.8). The manager side creates the offer; the host
// side answers.
type Transport struct {
	pc *webrtc.PeerConnection

	actions *webrtc.DataChannel
	acks    *webrtc.DataChannel
	state   *webrtc.DataChannel

	onAction func(ActionCommand)
	onAck    func(ActionAck)
	onState  func(StateDiff)

	log *zap.Logger
}

// NewTransport creates a PeerConnection with the three channels this
// protocol always needs: actions and acks reliable/ordered, state
// unreliable/unordered with max_retransmits=0.
func NewTransport(iceServers []webrtc.ICEServer, log *zap.Logger) (*Transport, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, errs.Wrap(errs.KindSetup, "create peer connection", err)
	}

	t := &Transport{pc: pc, log: logging.OrNop(log)}

	actions, err := pc.CreateDataChannel("actions", &webrtc.DataChannelInit{Ordered: &orderedTrue})
	if err != nil {
		return nil, errs.Wrap(errs.KindSetup, "create actions channel", err)
	}
	acks, err := pc.CreateDataChannel("acks", &webrtc.DataChannelInit{Ordered: &orderedTrue})
	if err != nil {
		return nil, errs.Wrap(errs.KindSetup, "create acks channel", err)
	}
	state, err := pc.CreateDataChannel("state", &webrtc.DataChannelInit{
		Ordered:        &orderedFalse,
		MaxRetransmits: &maxRetransmitsZero,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindSetup, "create state channel", err)
	}

	t.actions, t.acks, t.state = actions, acks, state
	t.wireHandlers()
	return t, nil
}

func (t *Transport) wireHandlers() {
	t.actions.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.dispatch(msg.Data)
	})
	t.acks.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.dispatch(msg.Data)
	})
	t.state.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.dispatch(msg.Data)
	})
}

func (t *Transport) dispatch(data []byte) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		t.log.Warn("fastpath: dropping unparseable message", zap.Error(err))
		return
	}
	switch env.Type {
	case MessageAction:
		if t.onAction == nil {
			return
		}
		a, err := DecodeActionCommand(env)
		if err != nil {
			t.log.Warn("fastpath: bad action_command", zap.Error(err))
			return
		}
		t.onAction(a)
	case MessageAck:
		if t.onAck == nil {
			return
		}
		a, err := DecodeActionAck(env)
		if err != nil {
			t.log.Warn("fastpath: bad action_ack", zap.Error(err))
			return
		}
		t.onAck(a)
	case MessageState:
		if t.onState == nil {
			return
		}
		s, err := DecodeStateDiff(env)
		if err != nil {
			t.log.Warn("fastpath: bad state_diff", zap.Error(err))
			return
		}
		t.onState(s)
	}
}

// OnAction/OnAck/OnState register callbacks invoked when the
// corresponding message type is received on any channel.
func (t *Transport) OnAction(fn func(ActionCommand)) { t.onAction = fn }
func (t *Transport) OnAck(fn func(ActionAck))         { t.onAck = fn }
func (t *Transport) OnState(fn func(StateDiff))       { t.onState = fn }

// SendAction/SendAck/SendState encode and send over the matching
// channel.
func (t *Transport) SendAction(a ActionCommand) error {
	return send(t.actions, MessageAction, a)
}

func (t *Transport) SendAck(a ActionAck) error {
	return send(t.acks, MessageAck, a)
}

func (t *Transport) SendState(s StateDiff) error {
	return send(t.state, MessageState, s)
}

func send(dc *webrtc.DataChannel, typ MessageType, payload any) error {
	body, err := EncodeEnvelope(typ, payload)
	if err != nil {
		return err
	}
	if err := dc.Send(body); err != nil {
		return errs.Wrap(errs.KindNetwork, "data channel send", err)
	}
	return nil
}

// CreateOffer produces an SDP offer for the manager side to exchange
// with the host over HTTP(S) (spec §4.8: "harness exchanges an SDP
// offer/answer ... over HTTP(S)").
func (t *Transport) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, errs.Wrap(errs.KindSetup, "create offer", err)
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, errs.Wrap(errs.KindSetup, "set local description", err)
	}
	return offer, nil
}

// AcceptOffer (host side) applies a remote offer and produces the
// answer.
func (t *Transport) AcceptOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := t.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, errs.Wrap(errs.KindSetup, "set remote description", err)
	}
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, errs.Wrap(errs.KindSetup, "create answer", err)
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, errs.Wrap(errs.KindSetup, "set local description", err)
	}
	return answer, nil
}

// AcceptAnswer (manager side) applies the host's answer to complete
// the SDP exchange.
func (t *Transport) AcceptAnswer(answer webrtc.SessionDescription) error {
	if err := t.pc.SetRemoteDescription(answer); err != nil {
		return errs.Wrap(errs.KindSetup, "set remote description", err)
	}
	return nil
}

// AddICECandidate feeds one out-of-band-exchanged ICE candidate in.
func (t *Transport) AddICECandidate(c webrtc.ICECandidateInit) error {
	if err := t.pc.AddICECandidate(c); err != nil {
		return errs.Wrap(errs.KindSetup, "add ice candidate", err)
	}
	return nil
}

// Connect is the Reconnector-compatible connect function. It only
// reports whether the peer connection is currently connected: it does
// not re-offer and does not wait for the channels to open, so retrying
// it does not by itself re-establish a lost peer connection.
func (t *Transport) Connect(ctx context.Context) error {
	// Placeholder hook point: the actual offer/answer/candidate
	// exchange happens over the signaling HTTP client
	// (internal/signaling), which calls CreateOffer/AcceptAnswer/
	// AddICECandidate directly. Connect exists so Reconnector has a
	// uniform retry target when that exchange fails.
	state := t.pc.ConnectionState()
	if state == webrtc.PeerConnectionStateConnected {
		return nil
	}
	return errs.New(errs.KindNetwork, "peer connection not yet established")
}

// Close releases the peer connection and its channels.
func (t *Transport) Close() error {
	if err := t.pc.Close(); err != nil {
		return errs.Wrap(errs.KindNetwork, "close peer connection", err)
	}
	return nil
}
