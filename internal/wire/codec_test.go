package wire

import (
	"reflect"
	"testing"

	"github.com/beachsh/beach/internal/cell"
	"github.com/beachsh/beach/internal/deltastream"
	"github.com/beachsh/beach/internal/errs"
)

func roundTripHost(t *testing.T, f HostFrame) HostFrame {
	t.Helper()
	data, err := EncodeHostFrame(f)
	if err != nil {
		t.Fatalf("EncodeHostFrame: %v", err)
	}
	got, err := DecodeHostFrame(data)
	if err != nil {
		t.Fatalf("DecodeHostFrame: %v", err)
	}
	return got
}

func TestHostFrameRoundTripHello(t *testing.T) {
	f := HostFrame{Tag: TagHello, Hello: &HelloBody{
		SubscriptionID:  "sub-1",
		MaxSeq:          42,
		Features:        FeatureRowSegment | FeatureHistoryBackfill,
		ForegroundRows:  24,
		RecentBudget:    200,
		HistoryBudget:   5000,
		DeltaBudget:     64,
		InitialSnapshot: 24,
	}}
	got := roundTripHost(t, f)
	if !reflect.DeepEqual(f.Hello, got.Hello) {
		t.Fatalf("got %+v want %+v", got.Hello, f.Hello)
	}
}

func TestHostFrameRoundTripGrid(t *testing.T) {
	f := HostFrame{Tag: TagGrid, Grid: &GridBody{
		Cols: 80, HistoryRows: 10000, BaseRow: -5, ViewportRows: 24, HasViewport: true,
	}}
	got := roundTripHost(t, f)
	if !reflect.DeepEqual(f.Grid, got.Grid) {
		t.Fatalf("got %+v want %+v", got.Grid, f.Grid)
	}
}

func TestHostFrameRoundTripSnapshotWithAllUpdateKinds(t *testing.T) {
	updates := []deltastream.Update{
		deltastream.NewCell(1, 2, 10, cell.Pack('x', 0, cell.AttrBold)),
		deltastream.NewRect(0, 5, 0, 5, 11, cell.Blank),
		deltastream.NewRow(3, 12, []cell.Packed{cell.Blank, cell.Pack('y', 0, 0)}),
		deltastream.NewRowSegment(3, 2, 13, []cell.Packed{cell.Pack('z', 0, 0)}),
		deltastream.NewTrim(0, 4, 14),
		deltastream.NewStyle(7, 15, cell.Style{Fg: cell.RGB(1, 2, 3), Bg: cell.Indexed(9), Attrs: cell.AttrUnderline}),
	}
	f := HostFrame{Tag: TagSnapshot, Snapshot: &SnapshotBody{
		SubscriptionID: "sub-2",
		Lane:           LaneRecent,
		Watermark:      99,
		HasMore:        true,
		Updates:        updates,
		HasCursor:      true,
		Cursor:         123,
	}}
	got := roundTripHost(t, f)
	if !reflect.DeepEqual(f.Snapshot, got.Snapshot) {
		t.Fatalf("got %+v want %+v", got.Snapshot, f.Snapshot)
	}
}

func TestHostFrameRoundTripSnapshotComplete(t *testing.T) {
	f := HostFrame{Tag: TagSnapshotComplete, SnapshotComplete: &SnapshotCompleteBody{
		SubscriptionID: "sub-3", Lane: LaneHistory,
	}}
	got := roundTripHost(t, f)
	if !reflect.DeepEqual(f.SnapshotComplete, got.SnapshotComplete) {
		t.Fatalf("got %+v want %+v", got.SnapshotComplete, f.SnapshotComplete)
	}
}

func TestHostFrameRoundTripDelta(t *testing.T) {
	f := HostFrame{Tag: TagDelta, Delta: &DeltaBody{
		SubscriptionID: "sub-4",
		Watermark:      1,
		HasMore:        false,
		Updates:        []deltastream.Update{deltastream.NewCell(0, 0, 1, cell.Blank)},
		HasCursor:      false,
	}}
	got := roundTripHost(t, f)
	if !reflect.DeepEqual(f.Delta, got.Delta) {
		t.Fatalf("got %+v want %+v", got.Delta, f.Delta)
	}
}

func TestHostFrameRoundTripHistoryBackfill(t *testing.T) {
	f := HostFrame{Tag: TagHistoryBackfill, HistoryBackfill: &HistoryBackfillBody{
		Updates: []deltastream.Update{deltastream.NewRow(5, 1, []cell.Packed{cell.Blank})},
	}}
	got := roundTripHost(t, f)
	if !reflect.DeepEqual(f.HistoryBackfill, got.HistoryBackfill) {
		t.Fatalf("got %+v want %+v", got.HistoryBackfill, f.HistoryBackfill)
	}
}

func TestHostFrameRoundTripHeartbeat(t *testing.T) {
	f := HostFrame{Tag: TagHeartbeat, Heartbeat: &HeartbeatBody{Seq: 7, TimestampMS: 1690000000000}}
	got := roundTripHost(t, f)
	if !reflect.DeepEqual(f.Heartbeat, got.Heartbeat) {
		t.Fatalf("got %+v want %+v", got.Heartbeat, f.Heartbeat)
	}
}

func TestHostFrameRoundTripInputAck(t *testing.T) {
	f := HostFrame{Tag: TagInputAck, InputAck: &InputAckBody{Seq: 55}}
	got := roundTripHost(t, f)
	if !reflect.DeepEqual(f.InputAck, got.InputAck) {
		t.Fatalf("got %+v want %+v", got.InputAck, f.InputAck)
	}
}

func TestHostFrameRoundTripCursor(t *testing.T) {
	f := HostFrame{Tag: TagCursor, Cursor: &deltastream.CursorState{
		Row: 3, Col: 9, Seq: 20, Visible: true, Blink: false,
	}}
	got := roundTripHost(t, f)
	if !reflect.DeepEqual(f.Cursor, got.Cursor) {
		t.Fatalf("got %+v want %+v", got.Cursor, f.Cursor)
	}
}

func TestHostFrameRoundTripShutdown(t *testing.T) {
	f := HostFrame{Tag: TagShutdown}
	got := roundTripHost(t, f)
	if got.Tag != TagShutdown {
		t.Fatalf("got tag %d want %d", got.Tag, TagShutdown)
	}
}

func TestHostFrameRoundTripExtension(t *testing.T) {
	f := HostFrame{Tag: TagExtension, Extension: &ExtensionBody{
		Namespace: "acme.sync", Kind: "cursor-hint", Payload: []byte{1, 2, 3, 4},
	}}
	got := roundTripHost(t, f)
	if !reflect.DeepEqual(f.Extension, got.Extension) {
		t.Fatalf("got %+v want %+v", got.Extension, f.Extension)
	}
}

func roundTripClient(t *testing.T, f ClientFrame) ClientFrame {
	t.Helper()
	data, err := EncodeClientFrame(f)
	if err != nil {
		t.Fatalf("EncodeClientFrame: %v", err)
	}
	got, err := DecodeClientFrame(data)
	if err != nil {
		t.Fatalf("DecodeClientFrame: %v", err)
	}
	return got
}

func TestClientFrameRoundTripInput(t *testing.T) {
	f := ClientFrame{Tag: TagInput, Input: &InputBody{Seq: 1, Bytes: []byte("ls -la\n")}}
	got := roundTripClient(t, f)
	if !reflect.DeepEqual(f.Input, got.Input) {
		t.Fatalf("got %+v want %+v", got.Input, f.Input)
	}
}

func TestClientFrameRoundTripResize(t *testing.T) {
	f := ClientFrame{Tag: TagResize, Resize: &ResizeBody{Cols: 120, Rows: 40}}
	got := roundTripClient(t, f)
	if !reflect.DeepEqual(f.Resize, got.Resize) {
		t.Fatalf("got %+v want %+v", got.Resize, f.Resize)
	}
}

func TestClientFrameRoundTripRequestBackfill(t *testing.T) {
	f := ClientFrame{Tag: TagRequestBackfill, RequestBackfill: &RequestBackfillBody{FromRow: -100, Count: 500}}
	got := roundTripClient(t, f)
	if !reflect.DeepEqual(f.RequestBackfill, got.RequestBackfill) {
		t.Fatalf("got %+v want %+v", got.RequestBackfill, f.RequestBackfill)
	}
}

func TestClientFrameRoundTripAck(t *testing.T) {
	f := ClientFrame{Tag: TagAck, Ack: &AckBody{Seq: 999}}
	got := roundTripClient(t, f)
	if !reflect.DeepEqual(f.Ack, got.Ack) {
		t.Fatalf("got %+v want %+v", got.Ack, f.Ack)
	}
}

func TestClientFrameRoundTripExtension(t *testing.T) {
	f := ClientFrame{Tag: TagClientExtension, Extension: &ExtensionBody{
		Namespace: "acme.client", Kind: "ping", Payload: nil,
	}}
	got := roundTripClient(t, f)
	if !reflect.DeepEqual(f.Extension, got.Extension) {
		t.Fatalf("got %+v want %+v", got.Extension, f.Extension)
	}
}

func TestDecodeHostFrameTruncatedIsMalformed(t *testing.T) {
	_, err := DecodeHostFrame([]byte{TagHello})
	if !errs.Is(err, errs.KindMalformed) {
		t.Fatalf("expected a Malformed error decoding a truncated Hello frame, got %v", err)
	}
}

func TestDecodeClientFrameUnknownTag(t *testing.T) {
	_, err := DecodeClientFrame([]byte{0xFF})
	if err == nil {
		t.Fatal("expected an error for an unknown client frame tag")
	}
}
