// Package lease implements controller lease ownership and per-host
// action queues (spec §4.7): a manager instance grants at most one
// lease per host session, renews it on a TTL, reaps stale leases, and
// queues ActionCommands for the holding controller with bounded depth.
//
// Grounded on pkg/session/manager.go's Manager (a
// mutex-guarded map keyed by session id, with a periodic
// RemoveExitedSessions reaper) generalized from PTY sessions to
// controller leases.
package lease

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/beachsh/beach/internal/errs"
	"github.com/beachsh/beach/internal/logging"
)

// DefaultTTL matches spec §4.7's default lease lifetime.
const DefaultTTL = 30 * time.Second

// Lease is the exclusive right for one controller session to drive one
// host session, expiring unless renewed.
type Lease struct {
	LeaseID             string
	HostSessionID       string
	ControllerSessionID string
	ExpiresAt           time.Time
}

func (l Lease) expired(now time.Time) bool { return !now.Before(l.ExpiresAt) }

// Assignment is the persisted record of which manager instance
// currently coordinates a host session.
type Assignment struct {
	HostSessionID string
	ManagerID     string
	AssignedAt    time.Time
}

// ActionLogEntry records one dequeued action for audit/idempotency.
type ActionLogEntry struct {
	HostSessionID string
	ActionID      string
	ActionType    string
	DequeuedAt    time.Time
}

// Action is one queued command awaiting delivery to a host session.
type Action struct {
	ID         string
	ActionType string
	Payload    []byte
	ExpiresAt  *time.Time
}

func (a Action) expired(now time.Time) bool {
	return a.ExpiresAt != nil && !now.Before(*a.ExpiresAt)
}

// PersistenceAdapter is the capability interface through which lease
// state survives process restarts (spec §4.7, §9 "dynamic dispatch at
// ... persistence boundaries: expressed as a small capability
// interface"). In-memory, Redis, and SQL adapters satisfy it
// identically (internal/persist).
type PersistenceAdapter interface {
	UpsertLease(l Lease) error
	UpsertAssignment(a Assignment) error
	AppendActionLog(e ActionLogEntry) error
}

// Manager owns lease assignment and per-host action queues for every
// host session known to this process.
type Manager struct {
	ttl        time.Duration
	queueDepth int
	persist    PersistenceAdapter
	log        *zap.Logger

	mu     sync.RWMutex
	leases map[string]*Lease // keyed by host session id
	queues map[string]*actionQueue
}

// New constructs a Manager with the given lease TTL, per-host action
// queue depth, and persistence adapter.
func New(ttl time.Duration, queueDepth int, persist PersistenceAdapter, log *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if queueDepth <= 0 {
		queueDepth = 256
	}
	return &Manager{
		ttl:        ttl,
		queueDepth: queueDepth,
		persist:    persist,
		log:        logging.OrNop(log),
		leases:     make(map[string]*Lease),
		queues:     make(map[string]*actionQueue),
	}
}

// AcquireLease grants hostSessionID's lease to controllerSessionID,
// unless it is already held by a different controller and not yet
// expired (first-writer-wins per spec §4.7).
func (m *Manager) AcquireLease(hostSessionID, controllerSessionID, leaseID string, now time.Time) (Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.leases[hostSessionID]; ok && !cur.expired(now) && cur.ControllerSessionID != controllerSessionID {
		return Lease{}, errs.New(errs.KindWriteConflict, "lease held by another controller")
	}

	l := &Lease{
		LeaseID:             leaseID,
		HostSessionID:       hostSessionID,
		ControllerSessionID: controllerSessionID,
		ExpiresAt:           now.Add(m.ttl),
	}
	m.leases[hostSessionID] = l
	if _, ok := m.queues[hostSessionID]; !ok {
		m.queues[hostSessionID] = newActionQueue(m.queueDepth)
	}
	if m.persist != nil {
		if err := m.persist.UpsertLease(*l); err != nil {
			m.log.Warn("persist lease failed", zap.String("host_session_id", hostSessionID), zap.Error(err))
		}
	}
	return *l, nil
}

// RenewLease extends an existing lease's TTL, failing if it has
// already expired or is held by a different controller.
func (m *Manager) RenewLease(hostSessionID, controllerSessionID string, now time.Time) (Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.leases[hostSessionID]
	if !ok || cur.expired(now) {
		return Lease{}, errs.New(errs.KindWriteConflict, "no active lease to renew")
	}
	if cur.ControllerSessionID != controllerSessionID {
		return Lease{}, errs.New(errs.KindWriteConflict, "lease held by another controller")
	}
	cur.ExpiresAt = now.Add(m.ttl)
	if m.persist != nil {
		if err := m.persist.UpsertLease(*cur); err != nil {
			m.log.Warn("persist lease renewal failed", zap.String("host_session_id", hostSessionID), zap.Error(err))
		}
	}
	return *cur, nil
}

// Lease returns the current lease for a host session, if any and
// unexpired.
func (m *Manager) Lease(hostSessionID string, now time.Time) (Lease, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.leases[hostSessionID]
	if !ok || l.expired(now) {
		return Lease{}, false
	}
	return *l, true
}

// ReapExpired drops every lease (and its action queue) that has
// expired as of now, returning the host session ids reaped. Intended
// to be called by a background task at a configured interval (spec
// §4.7).
func (m *Manager) ReapExpired(now time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var reaped []string
	for id, l := range m.leases {
		if l.expired(now) {
			delete(m.leases, id)
			delete(m.queues, id)
			reaped = append(reaped, id)
		}
	}
	return reaped
}

// Enqueue appends an action to hostSessionID's queue, returning
// ActionQueueFull if the bounded queue is already at capacity.
func (m *Manager) Enqueue(hostSessionID string, a Action) error {
	m.mu.Lock()
	q, ok := m.queues[hostSessionID]
	if !ok {
		q = newActionQueue(m.queueDepth)
		m.queues[hostSessionID] = q
	}
	m.mu.Unlock()
	return q.push(a)
}

// Dequeue pops the next non-expired action for hostSessionID, if any.
// Expired actions are discarded silently per spec §4.7.
func (m *Manager) Dequeue(hostSessionID string, now time.Time) (Action, bool) {
	m.mu.RLock()
	q, ok := m.queues[hostSessionID]
	m.mu.RUnlock()
	if !ok {
		return Action{}, false
	}
	a, ok := q.pop(now)
	if ok && m.persist != nil {
		_ = m.persist.AppendActionLog(ActionLogEntry{
			HostSessionID: hostSessionID,
			ActionID:      a.ID,
			ActionType:    a.ActionType,
			DequeuedAt:    now,
		})
	}
	return a, ok
}

// QueueDepth reports the current number of queued actions for a host
// session (for diagnostics/tests).
func (m *Manager) QueueDepth(hostSessionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.queues[hostSessionID]
	if !ok {
		return 0
	}
	return q.len()
}
