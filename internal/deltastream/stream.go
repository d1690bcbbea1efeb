package deltastream

import (
	"sync"

	"go.uber.org/zap"

	"github.com/beachsh/beach/internal/logging"
)

// Subscription is a single consumer's bounded inbox. Overflow drops the
// oldest queued update and flags Dropped so the synchronizer can
// downgrade this subscription to a full resync, per spec §5.
//
// Grounded on pkg/termsocket/manager.go's subscriber
// channel map (subscribers map[string][]chan *terminal.BufferSnapshot)
// and its notifySubscribers "channel full, skip" drop policy,
// generalized here into a ring that drops the oldest update and records
// that a drop happened, rather than silently discarding the newest
// update.
type Subscription struct {
	id string

	mu      sync.Mutex
	buf     []Update
	cap     int
	dropped bool
	closed  bool
	notify  chan struct{}
}

func newSubscription(id string, capacity int) *Subscription {
	return &Subscription{
		id:     id,
		buf:    make([]Update, 0, capacity),
		cap:    capacity,
		notify: make(chan struct{}, 1),
	}
}

func (s *Subscription) push(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if len(s.buf) >= s.cap {
		// Drop-oldest: make room for the newest update.
		copy(s.buf, s.buf[1:])
		s.buf = s.buf[:len(s.buf)-1]
		s.dropped = true
	}
	s.buf = append(s.buf, u)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Drain removes and returns all currently queued updates plus whether
// any were dropped since the last Drain call.
func (s *Subscription) Drain() (updates []Update, dropped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updates = s.buf
	s.buf = make([]Update, 0, s.cap)
	dropped = s.dropped
	s.dropped = false
	return updates, dropped
}

// Notify returns a channel readable once whenever new updates arrive.
func (s *Subscription) Notify() <-chan struct{} { return s.notify }

// ID returns the subscription's identifier.
func (s *Subscription) ID() string { return s.id }

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Bus fans out CacheUpdates from a single producer (the PTY reader
// task) to many subscriptions. Publish must only be called from one
// goroutine at a time; Subscribe/Unsubscribe and subscriber Drain may
// be called concurrently from any goroutine.
type Bus struct {
	log *zap.Logger

	mu   sync.RWMutex
	subs map[string]*Subscription

	capacity int
	latest   uint64
}

// NewBus creates a delta stream bus where each subscription's inbox
// holds up to capacity queued updates before drop-oldest kicks in.
func NewBus(capacity int, log *zap.Logger) *Bus {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Bus{
		log:      logging.OrNop(log),
		subs:     make(map[string]*Subscription),
		capacity: capacity,
	}
}

// Subscribe registers a new subscription and returns its inbox handle.
func (b *Bus) Subscribe(id string) *Subscription {
	sub := newSubscription(id, b.capacity)
	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes and closes a subscription.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if ok {
		sub.close()
	}
}

// Publish fans u out to every current subscriber. Single-producer by
// contract (spec §5): callers must serialize their own Publish calls.
func (b *Bus) Publish(u Update) {
	if u.Seq > b.latest {
		b.latest = u.Seq
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		sub.push(u)
	}
}

// PublishBatch publishes each update in order.
func (b *Bus) PublishBatch(us []Update) {
	for _, u := range us {
		b.Publish(u)
	}
}

// LatestSeq returns the highest seq ever published.
func (b *Bus) LatestSeq() uint64 { return b.latest }

// Subscribers returns the number of active subscriptions, for tests
// and diagnostics.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
