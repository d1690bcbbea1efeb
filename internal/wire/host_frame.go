package wire

import (
	"github.com/beachsh/beach/internal/deltastream"
	"github.com/beachsh/beach/internal/errs"
)

// EncodeHostFrame serializes f into its bit-exact wire representation.
func EncodeHostFrame(f HostFrame) ([]byte, error) {
	w := &writer{}
	w.u8(f.Tag)

	switch f.Tag {
	case TagHello:
		b := f.Hello
		w.str(b.SubscriptionID)
		w.u64(b.MaxSeq)
		w.u32(uint32(b.Features))
		w.u32(b.ForegroundRows)
		w.u32(b.RecentBudget)
		w.u32(b.HistoryBudget)
		w.u32(b.DeltaBudget)
		w.u32(b.InitialSnapshot)

	case TagGrid:
		b := f.Grid
		w.u32(b.Cols)
		w.u32(b.HistoryRows)
		w.i64(b.BaseRow)
		w.bool(b.HasViewport)
		w.u32(b.ViewportRows)

	case TagSnapshot:
		b := f.Snapshot
		w.str(b.SubscriptionID)
		w.u8(uint8(b.Lane))
		w.u64(b.Watermark)
		w.bool(b.HasMore)
		encodeUpdates(w, b.Updates)
		w.bool(b.HasCursor)
		w.i64(b.Cursor)

	case TagSnapshotComplete:
		b := f.SnapshotComplete
		w.str(b.SubscriptionID)
		w.u8(uint8(b.Lane))

	case TagDelta:
		b := f.Delta
		w.str(b.SubscriptionID)
		w.u64(b.Watermark)
		w.bool(b.HasMore)
		encodeUpdates(w, b.Updates)
		w.bool(b.HasCursor)
		w.i64(b.Cursor)

	case TagHistoryBackfill:
		b := f.HistoryBackfill
		encodeUpdates(w, b.Updates)

	case TagHeartbeat:
		b := f.Heartbeat
		w.u64(b.Seq)
		w.i64(b.TimestampMS)

	case TagInputAck:
		w.u64(f.InputAck.Seq)

	case TagCursor:
		c := f.Cursor
		w.u32(c.Row)
		w.u32(c.Col)
		w.u64(c.Seq)
		w.bool(c.Visible)
		w.bool(c.Blink)

	case TagShutdown:
		// no body

	case TagExtension:
		b := f.Extension
		w.str(b.Namespace)
		w.str(b.Kind)
		w.blob(b.Payload)

	default:
		return nil, errs.New(errs.KindMalformed, "unknown host frame tag")
	}

	return w.buf, nil
}

// DecodeHostFrame parses a tag+body byte slice into a HostFrame.
func DecodeHostFrame(data []byte) (HostFrame, error) {
	r := &reader{buf: data}
	tag, err := r.u8()
	if err != nil {
		return HostFrame{}, err
	}
	f := HostFrame{Tag: tag}

	switch tag {
	case TagHello:
		b := &HelloBody{}
		if b.SubscriptionID, err = r.str(); err != nil {
			return f, err
		}
		if b.MaxSeq, err = r.u64(); err != nil {
			return f, err
		}
		feat, err := r.u32()
		if err != nil {
			return f, err
		}
		b.Features = Features(feat)
		if b.ForegroundRows, err = r.u32(); err != nil {
			return f, err
		}
		if b.RecentBudget, err = r.u32(); err != nil {
			return f, err
		}
		if b.HistoryBudget, err = r.u32(); err != nil {
			return f, err
		}
		if b.DeltaBudget, err = r.u32(); err != nil {
			return f, err
		}
		if b.InitialSnapshot, err = r.u32(); err != nil {
			return f, err
		}
		f.Hello = b

	case TagGrid:
		b := &GridBody{}
		if b.Cols, err = r.u32(); err != nil {
			return f, err
		}
		if b.HistoryRows, err = r.u32(); err != nil {
			return f, err
		}
		if b.BaseRow, err = r.i64(); err != nil {
			return f, err
		}
		if b.HasViewport, err = r.boolean(); err != nil {
			return f, err
		}
		if b.ViewportRows, err = r.u32(); err != nil {
			return f, err
		}
		f.Grid = b

	case TagSnapshot:
		b := &SnapshotBody{}
		if b.SubscriptionID, err = r.str(); err != nil {
			return f, err
		}
		lane, err := r.u8()
		if err != nil {
			return f, err
		}
		b.Lane = Lane(lane)
		if b.Watermark, err = r.u64(); err != nil {
			return f, err
		}
		if b.HasMore, err = r.boolean(); err != nil {
			return f, err
		}
		if b.Updates, err = decodeUpdates(r); err != nil {
			return f, err
		}
		if b.HasCursor, err = r.boolean(); err != nil {
			return f, err
		}
		if b.Cursor, err = r.i64(); err != nil {
			return f, err
		}
		f.Snapshot = b

	case TagSnapshotComplete:
		b := &SnapshotCompleteBody{}
		if b.SubscriptionID, err = r.str(); err != nil {
			return f, err
		}
		lane, err := r.u8()
		if err != nil {
			return f, err
		}
		b.Lane = Lane(lane)
		f.SnapshotComplete = b

	case TagDelta:
		b := &DeltaBody{}
		if b.SubscriptionID, err = r.str(); err != nil {
			return f, err
		}
		if b.Watermark, err = r.u64(); err != nil {
			return f, err
		}
		if b.HasMore, err = r.boolean(); err != nil {
			return f, err
		}
		if b.Updates, err = decodeUpdates(r); err != nil {
			return f, err
		}
		if b.HasCursor, err = r.boolean(); err != nil {
			return f, err
		}
		if b.Cursor, err = r.i64(); err != nil {
			return f, err
		}
		f.Delta = b

	case TagHistoryBackfill:
		b := &HistoryBackfillBody{}
		if b.Updates, err = decodeUpdates(r); err != nil {
			return f, err
		}
		f.HistoryBackfill = b

	case TagHeartbeat:
		b := &HeartbeatBody{}
		if b.Seq, err = r.u64(); err != nil {
			return f, err
		}
		if b.TimestampMS, err = r.i64(); err != nil {
			return f, err
		}
		f.Heartbeat = b

	case TagInputAck:
		b := &InputAckBody{}
		if b.Seq, err = r.u64(); err != nil {
			return f, err
		}
		f.InputAck = b

	case TagCursor:
		c := &deltastream.CursorState{}
		if c.Row, err = r.u32(); err != nil {
			return f, err
		}
		if c.Col, err = r.u32(); err != nil {
			return f, err
		}
		if c.Seq, err = r.u64(); err != nil {
			return f, err
		}
		if c.Visible, err = r.boolean(); err != nil {
			return f, err
		}
		if c.Blink, err = r.boolean(); err != nil {
			return f, err
		}
		f.Cursor = c

	case TagShutdown:
		// no body

	case TagExtension:
		b := &ExtensionBody{}
		if b.Namespace, err = r.str(); err != nil {
			return f, err
		}
		if b.Kind, err = r.str(); err != nil {
			return f, err
		}
		if b.Payload, err = r.blob(); err != nil {
			return f, err
		}
		f.Extension = b

	default:
		return f, errs.New(errs.KindMalformed, "unknown host frame tag")
	}

	return f, nil
}
