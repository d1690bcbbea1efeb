package wstransport

import "github.com/beachsh/beach/internal/wire"

// WriteHostFrame encodes and sends a host->client frame (used by the
// host side of a Conn).
func (c *Conn) WriteHostFrame(f wire.HostFrame) error {
	b, err := wire.EncodeHostFrame(f)
	if err != nil {
		return err
	}
	return c.WriteFrame(b)
}

// WriteClientFrame encodes and sends a client->host frame (used by the
// joining side of a Conn).
func (c *Conn) WriteClientFrame(f wire.ClientFrame) error {
	b, err := wire.EncodeClientFrame(f)
	if err != nil {
		return err
	}
	return c.WriteFrame(b)
}

// DecodeInboundHostFrame decodes one payload already received on
// Inbound() as a host->client frame.
func DecodeInboundHostFrame(payload []byte) (wire.HostFrame, error) {
	return wire.DecodeHostFrame(payload)
}

// DecodeInboundClientFrame decodes one payload already received on
// Inbound() as a client->host frame.
func DecodeInboundClientFrame(payload []byte) (wire.ClientFrame, error) {
	return wire.DecodeClientFrame(payload)
}
