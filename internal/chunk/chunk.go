// Package chunk implements the fragmentation/reassembly layer that
// carries oversized wire payloads (snapshots) over a datagram
// transport with a small MTU and no in-order reliability (spec §4.5,
// §6.2). The splitter is a pure function; the reassembler is owned by
// a single receive task per connection, matching the ownership model
// in pkg/termsocket/manager.go's single-goroutine subscriber dispatch.
//
// Grounded on other_examples' g960059-agtmux ttyv2/protocol.go
// (envelope framing, explicit size-limit errors) and
// tenant/tnproto/chunked_http_writer.go (chunked writer with a fixed
// header laid out via encoding/binary), adapted from their
// length-prefixed/JSON envelopes to the 25-byte binary ChunkFrame
// header the wire protocol requires.
package chunk

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/beachsh/beach/internal/errs"
)

// HeaderLen is the fixed ChunkFrame header size: version(1) + msg_id(16)
// + seq(4) + total(4).
const HeaderLen = 25

// Version is the single recognized ChunkFrame version byte. A decoder
// seeing any other leading byte treats the datagram as unchunked.
const Version uint8 = 0xC1

// Frame is a single fragment of a larger message (spec §3.7).
type Frame struct {
	Version uint8
	MsgID   uuid.UUID
	Seq     uint32
	Total   uint32
	Payload []byte
}

// Config bounds chunking behavior; every field is env-overridable by
// the caller (spec §4.5).
type Config struct {
	MaxChunkBytes   int
	MaxMessageBytes int
	MaxInflight     int
	GCTimeout       time.Duration
}

// DefaultConfig matches the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxChunkBytes:   16 * 1024,
		MaxMessageBytes: 1 << 20,
		MaxInflight:     1024,
		GCTimeout:       10 * time.Second,
	}
}

func (c Config) payloadCap() int {
	return c.MaxChunkBytes - HeaderLen
}

// SplitMessage fragments payload into one or more Frames sharing msgID.
// A payload that fits in a single chunk yields {seq:0, total:1}.
func SplitMessage(payload []byte, msgID uuid.UUID, cfg Config) ([]Frame, error) {
	if cfg.MaxChunkBytes < HeaderLen+1 {
		return nil, errs.New(errs.KindMalformed, "max_chunk_bytes below header+1")
	}
	if len(payload) > cfg.MaxMessageBytes {
		return nil, errs.New(errs.KindMessageTooLarge, strconv.Itoa(len(payload)))
	}

	chunkCap := cfg.payloadCap()
	total := 1
	if len(payload) > 0 {
		total = (len(payload) + chunkCap - 1) / chunkCap
	}
	if total > int(^uint32(0)) {
		return nil, errs.New(errs.KindMalformed, "chunk count overflows u32")
	}

	frames := make([]Frame, 0, total)
	for seq := 0; seq < total; seq++ {
		start := seq * chunkCap
		end := start + chunkCap
		if end > len(payload) {
			end = len(payload)
		}
		frames = append(frames, Frame{
			Version: Version,
			MsgID:   msgID,
			Seq:     uint32(seq),
			Total:   uint32(total),
			Payload: payload[start:end],
		})
	}
	return frames, nil
}

// EncodeChunk serializes a Frame to its 25-byte-header wire form.
func EncodeChunk(f Frame) ([]byte, error) {
	buf := make([]byte, HeaderLen+len(f.Payload))
	buf[0] = Version
	copy(buf[1:17], f.MsgID[:])
	binary.BigEndian.PutUint32(buf[17:21], f.Seq)
	binary.BigEndian.PutUint32(buf[21:25], f.Total)
	copy(buf[HeaderLen:], f.Payload)
	return buf, nil
}

// DecodeChunk recognizes a ChunkFrame by its version byte. It returns
// ok=false (pass-through) if the first byte isn't Version, matching
// spec §4.5's "decoder recognizes version==0xC1, otherwise returns
// None" contract.
func DecodeChunk(data []byte) (frame Frame, ok bool, err error) {
	if len(data) == 0 || data[0] != Version {
		return Frame{}, false, nil
	}
	if len(data) < HeaderLen {
		return Frame{}, false, errs.New(errs.KindMalformed, "truncated chunk header")
	}
	var id uuid.UUID
	copy(id[:], data[1:17])
	f := Frame{
		Version: data[0],
		MsgID:   id,
		Seq:     binary.BigEndian.Uint32(data[17:21]),
		Total:   binary.BigEndian.Uint32(data[21:25]),
	}
	if len(data) > HeaderLen {
		f.Payload = append([]byte(nil), data[HeaderLen:]...)
	}
	return f, true, nil
}
