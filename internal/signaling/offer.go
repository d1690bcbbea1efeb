package signaling

// TransportKind discriminates the TransportOffer union.
type TransportKind string

const (
	TransportWebRTC    TransportKind = "webrtc"
	TransportWebSocket TransportKind = "websocket"
	TransportIPC       TransportKind = "ipc"
)

// WebRTCOffer tells the caller where to perform the SDP/ICE exchange for
// a given role (spec §4.9: "signaling_url, role, poll_interval_ms").
type WebRTCOffer struct {
	SignalingURL   string
	Role           string
	PollIntervalMS int
}

// WebSocketOffer is a plain relay endpoint.
type WebSocketOffer struct {
	URL string
}

// TransportOffer is one advertised transport, tagged by Kind. Exactly one
// of WebRTC/WebSocket is set, matching the Kind.
type TransportOffer struct {
	Kind      TransportKind
	WebRTC    *WebRTCOffer
	WebSocket *WebSocketOffer
}

// wireTransport mirrors the JSON shape of one entry in a signaling
// response's transports[] array (spec §6.3).
type wireTransport struct {
	Kind           string `json:"kind"`
	SignalingURL   string `json:"signaling_url,omitempty"`
	Role           string `json:"role,omitempty"`
	PollIntervalMS int    `json:"poll_interval_ms,omitempty"`
	URL            string `json:"url,omitempty"`
}

func decodeTransports(raw []wireTransport) []TransportOffer {
	offers := make([]TransportOffer, 0, len(raw))
	for _, w := range raw {
		switch TransportKind(w.Kind) {
		case TransportWebRTC:
			offers = append(offers, TransportOffer{
				Kind: TransportWebRTC,
				WebRTC: &WebRTCOffer{
					SignalingURL:   w.SignalingURL,
					Role:           w.Role,
					PollIntervalMS: w.PollIntervalMS,
				},
			})
		case TransportWebSocket:
			if w.URL == "" {
				continue
			}
			offers = append(offers, TransportOffer{
				Kind:      TransportWebSocket,
				WebSocket: &WebSocketOffer{URL: w.URL},
			})
		case TransportIPC:
			offers = append(offers, TransportOffer{Kind: TransportIPC})
		}
	}
	return offers
}

// PreferredOffer picks the first offer in preference order: a WebRTC
// offer matching role, then any WebRTC offer, then WebSocket, then IPC
// (spec §4.9: "iterate offers in a preference order ... the first
// successful handshake wins"; this only orders the candidates, the
// caller still attempts each in turn until one connects).
func PreferredOffer(offers []TransportOffer, role string) []TransportOffer {
	var roleMatch, otherWebRTC, webSocket, ipc []TransportOffer
	for _, o := range offers {
		switch o.Kind {
		case TransportWebRTC:
			if o.WebRTC != nil && o.WebRTC.Role == role {
				roleMatch = append(roleMatch, o)
			} else {
				otherWebRTC = append(otherWebRTC, o)
			}
		case TransportWebSocket:
			webSocket = append(webSocket, o)
		case TransportIPC:
			ipc = append(ipc, o)
		}
	}
	ordered := make([]TransportOffer, 0, len(offers))
	ordered = append(ordered, roleMatch...)
	ordered = append(ordered, otherWebRTC...)
	ordered = append(ordered, webSocket...)
	ordered = append(ordered, ipc...)
	return ordered
}
