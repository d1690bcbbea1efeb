package chunk

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/beachsh/beach/internal/errs"
)

// GCReason identifies why a partial message was dropped.
type GCReason int

const (
	GCTimeout GCReason = iota + 1
	GCCapacity
)

// GCEvent reports a partial message that was evicted without completing.
type GCEvent struct {
	MsgID  uuid.UUID
	Reason GCReason
}

// IngestOutcome is the result of feeding one Frame to the Reassembler.
type IngestOutcome struct {
	// Completed holds the reconstructed payload if this frame finished
	// a message (including the single-frame fast path).
	Completed []byte
	HasResult bool
	GCEvents  []GCEvent
}

type partial struct {
	msgID     uuid.UUID
	total     uint32
	chunks    map[uint32][]byte
	received  int
	sizeBytes int
	createdAt time.Time
}

// Reassembler resequences Frames sharing a msg_id into their original
// payload. It is owned by a single receive task; concurrent calls to
// Ingest/GC from multiple goroutines are not supported, matching the
// single-consumer ownership spec §3.9 assigns to the reassembler.
type Reassembler struct {
	cfg Config

	order    []uuid.UUID // insertion order, oldest first, for capacity eviction
	partials map[uuid.UUID]*partial
}

// NewReassembler constructs a Reassembler bounded by cfg.
func NewReassembler(cfg Config) *Reassembler {
	return &Reassembler{
		cfg:      cfg,
		partials: make(map[uuid.UUID]*partial),
	}
}

// Ingest feeds a single Frame into the reassembler at time now.
func (re *Reassembler) Ingest(f Frame, now time.Time) (IngestOutcome, error) {
	var out IngestOutcome

	if len(f.Payload) > re.cfg.payloadCap() {
		return out, errs.New(errs.KindChunkTooLarge, strconv.Itoa(len(f.Payload)))
	}

	if f.Total == 1 {
		out.Completed = append([]byte(nil), f.Payload...)
		out.HasResult = true
		return out, nil
	}

	p, exists := re.partials[f.MsgID]
	if exists && p.total != f.Total {
		re.remove(f.MsgID)
		return out, errs.New(errs.KindMalformed, "chunk total mismatch")
	}

	if !exists {
		if len(re.partials) >= re.cfg.MaxInflight {
			if ev, ok := re.evictOldest(); ok {
				out.GCEvents = append(out.GCEvents, ev)
			}
		}
		p = &partial{
			msgID:     f.MsgID,
			total:     f.Total,
			chunks:    make(map[uint32][]byte),
			createdAt: now,
		}
		re.partials[f.MsgID] = p
		re.order = append(re.order, f.MsgID)
	}

	if _, dup := p.chunks[f.Seq]; dup {
		return out, nil
	}

	p.sizeBytes += len(f.Payload)
	if p.sizeBytes > re.cfg.MaxMessageBytes {
		re.remove(f.MsgID)
		return out, errs.New(errs.KindMessageTooLarge, strconv.Itoa(p.sizeBytes))
	}

	p.chunks[f.Seq] = f.Payload
	p.received++

	if p.received == int(p.total) {
		payload := make([]byte, 0, p.sizeBytes)
		for seq := uint32(0); seq < p.total; seq++ {
			payload = append(payload, p.chunks[seq]...)
		}
		re.remove(f.MsgID)
		out.Completed = payload
		out.HasResult = true
	}

	return out, nil
}

// GC drops partials whose age exceeds cfg.GCTimeout as of now.
func (re *Reassembler) GC(now time.Time) []GCEvent {
	var events []GCEvent
	for _, id := range re.order {
		p, ok := re.partials[id]
		if !ok {
			continue
		}
		if now.Sub(p.createdAt) > re.cfg.GCTimeout {
			events = append(events, GCEvent{MsgID: id, Reason: GCTimeout})
		}
	}
	for _, ev := range events {
		re.remove(ev.MsgID)
	}
	return events
}

// Inflight reports the number of partial messages currently held.
func (re *Reassembler) Inflight() int { return len(re.partials) }

func (re *Reassembler) evictOldest() (GCEvent, bool) {
	if len(re.order) == 0 {
		return GCEvent{}, false
	}
	oldest := re.order[0]
	re.remove(oldest)
	return GCEvent{MsgID: oldest, Reason: GCCapacity}, true
}

func (re *Reassembler) remove(id uuid.UUID) {
	delete(re.partials, id)
	for i, existing := range re.order {
		if existing == id {
			re.order = append(re.order[:i], re.order[i+1:]...)
			break
		}
	}
}
