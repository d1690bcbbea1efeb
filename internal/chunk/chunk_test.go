package chunk

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/beachsh/beach/internal/errs"
)

func TestEncodeDecodeChunkRoundTrip(t *testing.T) {
	f := Frame{Version: Version, MsgID: uuid.New(), Seq: 3, Total: 9, Payload: []byte("hello")}
	data, err := EncodeChunk(f)
	if err != nil {
		t.Fatalf("EncodeChunk: %v", err)
	}
	if len(data) != HeaderLen+len(f.Payload) {
		t.Fatalf("len(data) = %d, want %d", len(data), HeaderLen+len(f.Payload))
	}
	got, ok, err := DecodeChunk(data)
	if err != nil || !ok {
		t.Fatalf("DecodeChunk: ok=%v err=%v", ok, err)
	}
	if got.MsgID != f.MsgID || got.Seq != f.Seq || got.Total != f.Total || !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("got %+v want %+v", got, f)
	}
}

func TestDecodeChunkPassThroughOnBadVersion(t *testing.T) {
	_, ok, err := DecodeChunk([]byte{0x00, 1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a non-chunk datagram")
	}
}

func TestSplitMessageSingleFrame(t *testing.T) {
	cfg := Config{MaxChunkBytes: 64, MaxMessageBytes: 1024, MaxInflight: 8, GCTimeout: time.Second}
	frames, err := SplitMessage([]byte("short"), uuid.New(), cfg)
	if err != nil {
		t.Fatalf("SplitMessage: %v", err)
	}
	if len(frames) != 1 || frames[0].Seq != 0 || frames[0].Total != 1 {
		t.Fatalf("expected single {seq:0,total:1} frame, got %+v", frames)
	}
}

func TestSplitMessageTooLarge(t *testing.T) {
	cfg := Config{MaxChunkBytes: 64, MaxMessageBytes: 10, MaxInflight: 8, GCTimeout: time.Second}
	_, err := SplitMessage(make([]byte, 11), uuid.New(), cfg)
	if !errs.Is(err, errs.KindMessageTooLarge) {
		t.Fatalf("expected MessageTooLarge, got %v", err)
	}
}

// TestChunkerRoundTripWithReorderingAndDuplication is spec §8 scenario 3.
func TestChunkerRoundTripWithReorderingAndDuplication(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog")
	cfg := Config{MaxChunkBytes: 32, MaxMessageBytes: 1024, MaxInflight: 8, GCTimeout: time.Second}
	msgID := uuid.New()
	frames, err := SplitMessage(payload, msgID, cfg)
	if err != nil {
		t.Fatalf("SplitMessage: %v", err)
	}
	if len(frames) < 2 {
		t.Fatalf("expected more than one chunk for a %d-byte payload with chunk=32", len(payload))
	}

	shuffled := []Frame{frames[len(frames)-1]}
	shuffled = append(shuffled, frames[:len(frames)-1]...)
	shuffled = append([]Frame{frames[0]}, shuffled...) // duplicate first chunk

	re := NewReassembler(cfg)
	now := time.Unix(0, 0)
	var completed [][]byte
	var gcEvents []GCEvent
	for _, f := range shuffled {
		out, err := re.Ingest(f, now)
		if err != nil {
			t.Fatalf("Ingest: %v", err)
		}
		if out.HasResult {
			completed = append(completed, out.Completed)
		}
		gcEvents = append(gcEvents, out.GCEvents...)
	}

	if len(completed) != 1 {
		t.Fatalf("expected exactly one completed message, got %d", len(completed))
	}
	if !bytes.Equal(completed[0], payload) {
		t.Fatalf("reassembled payload = %q, want %q", completed[0], payload)
	}
	if len(gcEvents) != 0 {
		t.Fatalf("expected no GC events, got %+v", gcEvents)
	}
	if re.Inflight() != 0 {
		t.Fatalf("expected no partials left resident, got %d", re.Inflight())
	}
}

// TestChunkerTimeout is spec §8 scenario 4.
func TestChunkerTimeout(t *testing.T) {
	cfg := Config{MaxChunkBytes: 64, MaxMessageBytes: 1024, MaxInflight: 8, GCTimeout: 25 * time.Millisecond}
	re := NewReassembler(cfg)
	start := time.Unix(0, 0)

	f := Frame{Version: Version, MsgID: uuid.New(), Seq: 0, Total: 2, Payload: []byte("partial")}
	out, err := re.Ingest(f, start)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if out.HasResult {
		t.Fatal("did not expect completion from a single partial chunk")
	}

	events := re.GC(start.Add(31 * time.Millisecond))
	if len(events) != 1 || events[0].Reason != GCTimeout {
		t.Fatalf("expected one GcEvent{Timeout}, got %+v", events)
	}
	if re.Inflight() != 0 {
		t.Fatalf("expected partials empty after GC, got %d", re.Inflight())
	}
}

func TestReassemblerDuplicateChunkDropped(t *testing.T) {
	cfg := DefaultConfig()
	re := NewReassembler(cfg)
	now := time.Unix(0, 0)
	msgID := uuid.New()

	f0 := Frame{Version: Version, MsgID: msgID, Seq: 0, Total: 2, Payload: []byte("AA")}
	f1 := Frame{Version: Version, MsgID: msgID, Seq: 1, Total: 2, Payload: []byte("BB")}

	if _, err := re.Ingest(f0, now); err != nil {
		t.Fatalf("Ingest f0: %v", err)
	}
	if _, err := re.Ingest(f0, now); err != nil {
		t.Fatalf("Ingest duplicate f0: %v", err)
	}
	out, err := re.Ingest(f1, now)
	if err != nil {
		t.Fatalf("Ingest f1: %v", err)
	}
	if !out.HasResult || !bytes.Equal(out.Completed, []byte("AABB")) {
		t.Fatalf("expected completed AABB, got %+v", out)
	}
}

func TestReassemblerTotalMismatchIsMalformed(t *testing.T) {
	cfg := DefaultConfig()
	re := NewReassembler(cfg)
	now := time.Unix(0, 0)
	msgID := uuid.New()

	if _, err := re.Ingest(Frame{MsgID: msgID, Seq: 0, Total: 3, Payload: []byte("x")}, now); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	_, err := re.Ingest(Frame{MsgID: msgID, Seq: 1, Total: 4, Payload: []byte("y")}, now)
	if !errs.Is(err, errs.KindMalformed) {
		t.Fatalf("expected Malformed, got %v", err)
	}
	if re.Inflight() != 0 {
		t.Fatalf("expected partial removed after mismatch, got %d", re.Inflight())
	}
}

func TestReassemblerCapacityEviction(t *testing.T) {
	cfg := Config{MaxChunkBytes: 64, MaxMessageBytes: 1024, MaxInflight: 1, GCTimeout: time.Second}
	re := NewReassembler(cfg)
	now := time.Unix(0, 0)

	first := uuid.New()
	if _, err := re.Ingest(Frame{MsgID: first, Seq: 0, Total: 2, Payload: []byte("a")}, now); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	second := uuid.New()
	out, err := re.Ingest(Frame{MsgID: second, Seq: 0, Total: 2, Payload: []byte("b")}, now)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(out.GCEvents) != 1 || out.GCEvents[0].Reason != GCCapacity || out.GCEvents[0].MsgID != first {
		t.Fatalf("expected capacity eviction of first partial, got %+v", out.GCEvents)
	}
	if re.Inflight() != 1 {
		t.Fatalf("expected exactly one resident partial, got %d", re.Inflight())
	}
}

func TestReassemblerMessageTooLarge(t *testing.T) {
	cfg := Config{MaxChunkBytes: 64, MaxMessageBytes: 4, MaxInflight: 8, GCTimeout: time.Second}
	re := NewReassembler(cfg)
	now := time.Unix(0, 0)
	msgID := uuid.New()

	_, err := re.Ingest(Frame{MsgID: msgID, Seq: 0, Total: 2, Payload: []byte("12345")}, now)
	if !errs.Is(err, errs.KindMessageTooLarge) {
		t.Fatalf("expected MessageTooLarge, got %v", err)
	}
}
