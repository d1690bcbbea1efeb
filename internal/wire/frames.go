// Package wire implements the bit-exact binary codec for host/client
// frames and CacheUpdate variants (spec §4.4, §6.1). Every numeric
// field is big-endian; frames are a 1-byte tag followed by a TLV body.
// Encoding/decoding is pure and deterministic, so decode(encode(f)) ==
// f for every frame, per spec §8.
//
// Grounded on pkg/terminal/buffer.go's SerializeToBinary
// (explicit byte-offset tracking, magic/version/flag header) and on
// other_examples' g960059-agtmux ttyv2 protocol.go (WriteFrame/
// ReadFrame length-prefixed envelope, ErrFrameTooLarge-style bounds
// checks), adapted from little-endian/JSON-body to a big-endian
// binary TLV layout.
package wire

import (
	"github.com/beachsh/beach/internal/deltastream"
)

// Lane identifies a synchronizer latency tier on the wire.
type Lane uint8

const (
	LaneForeground Lane = 0
	LaneRecent     Lane = 1
	LaneHistory    Lane = 2
)

// Host frame tags (spec §6.1).
const (
	TagHello             uint8 = 1
	TagGrid              uint8 = 2
	TagSnapshot          uint8 = 3
	TagSnapshotComplete  uint8 = 4
	TagDelta             uint8 = 5
	TagHistoryBackfill   uint8 = 6
	TagHeartbeat         uint8 = 7
	TagInputAck          uint8 = 8
	TagCursor            uint8 = 9
	TagShutdown          uint8 = 10
	TagExtension         uint8 = 11
)

// Client frame tags.
const (
	TagInput           uint8 = 0x81
	TagResize          uint8 = 0x82
	TagRequestBackfill uint8 = 0x83
	TagAck             uint8 = 0x84
	TagClientExtension uint8 = 0x85
)

// Update discriminators (spec §6.1).
const (
	UpdateCell       uint8 = 1
	UpdateRect       uint8 = 2
	UpdateRow        uint8 = 3
	UpdateRowSegment uint8 = 4
	UpdateTrim       uint8 = 5
	UpdateStyle      uint8 = 6
)

// Features is a bitset negotiated in Hello.
type Features uint32

const (
	FeatureRowSegment Features = 1 << iota
	FeatureHistoryBackfill
	FeatureExtensions
)

// HostFrame is the sum type of every frame the host may send.
type HostFrame struct {
	Tag uint8

	Hello            *HelloBody
	Grid             *GridBody
	Snapshot         *SnapshotBody
	SnapshotComplete *SnapshotCompleteBody
	Delta            *DeltaBody
	HistoryBackfill  *HistoryBackfillBody
	Heartbeat        *HeartbeatBody
	InputAck         *InputAckBody
	Cursor           *deltastream.CursorState
	Extension        *ExtensionBody
}

type HelloBody struct {
	SubscriptionID string
	MaxSeq         uint64
	Features       Features
	// Config mirrors the negotiated SyncConfig budgets so the client
	// can reason about pacing without a side channel.
	ForegroundRows  uint32
	RecentBudget    uint32
	HistoryBudget   uint32
	DeltaBudget     uint32
	InitialSnapshot uint32
}

type GridBody struct {
	Cols         uint32
	HistoryRows  uint32
	BaseRow      int64
	ViewportRows uint32 // 0 means "unset"
	HasViewport  bool
}

type SnapshotBody struct {
	SubscriptionID string
	Lane           Lane
	Watermark      uint64
	HasMore        bool
	Updates        []deltastream.Update
	HasCursor      bool
	Cursor         int64
}

type SnapshotCompleteBody struct {
	SubscriptionID string
	Lane           Lane
}

type DeltaBody struct {
	SubscriptionID string
	Watermark      uint64
	HasMore        bool
	Updates        []deltastream.Update
	HasCursor      bool
	Cursor         int64
}

type HistoryBackfillBody struct {
	Updates []deltastream.Update
}

type HeartbeatBody struct {
	Seq         uint64
	TimestampMS int64
}

type InputAckBody struct {
	Seq uint64
}

type ExtensionBody struct {
	Namespace string
	Kind      string
	Payload   []byte
}

// ClientFrame is the sum type of every frame a client may send.
type ClientFrame struct {
	Tag uint8

	Input           *InputBody
	Resize          *ResizeBody
	RequestBackfill *RequestBackfillBody
	Ack             *AckBody
	Extension       *ExtensionBody
}

type InputBody struct {
	Seq   uint64
	Bytes []byte
}

type ResizeBody struct {
	Cols, Rows uint32
}

type RequestBackfillBody struct {
	FromRow int64
	Count   uint32
}

type AckBody struct {
	Seq uint64
}
