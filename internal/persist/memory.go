// Package persist implements lease.PersistenceAdapter against three
// backing stores sharing one contract: in-memory (tests/single-process
// deployments), Redis, and Postgres (spec §4.7, §9 "dynamic dispatch at
// the ... persistence boundaries").
package persist

import (
	"sync"

	"github.com/beachsh/beach/internal/lease"
)

// Memory is an in-process PersistenceAdapter backed by plain maps,
// grounded on pkg/session/manager.go's Manager
// (runningSessions map[string]*Session guarded by a mutex), the same
// shape, repurposed for lease/assignment/action-log records instead of
// live PTY sessions.
type Memory struct {
	mu          sync.Mutex
	leases      map[string]lease.Lease
	assignments map[string]lease.Assignment
	actionLogs  []lease.ActionLogEntry
}

// NewMemory constructs an empty in-memory adapter.
func NewMemory() *Memory {
	return &Memory{
		leases:      make(map[string]lease.Lease),
		assignments: make(map[string]lease.Assignment),
	}
}

func (m *Memory) UpsertLease(l lease.Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leases[l.LeaseID] = l
	return nil
}

func (m *Memory) UpsertAssignment(a lease.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[a.HostSessionID] = a
	return nil
}

func (m *Memory) AppendActionLog(e lease.ActionLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actionLogs = append(m.actionLogs, e)
	return nil
}

// Lease returns the stored lease by id, for tests/inspection.
func (m *Memory) Lease(leaseID string) (lease.Lease, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leases[leaseID]
	return l, ok
}

// Assignment returns the stored assignment by host session id.
func (m *Memory) Assignment(hostSessionID string) (lease.Assignment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[hostSessionID]
	return a, ok
}

// ActionLogs returns a snapshot of every appended action log entry.
func (m *Memory) ActionLogs() []lease.ActionLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]lease.ActionLogEntry, len(m.actionLogs))
	copy(out, m.actionLogs)
	return out
}
