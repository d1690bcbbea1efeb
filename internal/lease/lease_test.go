package lease

import (
	"testing"
	"time"

	"github.com/beachsh/beach/internal/errs"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestAcquireLeaseFirstWriterWins(t *testing.T) {
	m := New(30*time.Second, 8, nil, nil)

	l, err := m.AcquireLease("host-1", "ctrl-a", "lease-1", epoch)
	if err != nil {
		t.Fatalf("AcquireLease: %v", err)
	}
	if l.ControllerSessionID != "ctrl-a" {
		t.Fatalf("controller = %q, want ctrl-a", l.ControllerSessionID)
	}

	_, err = m.AcquireLease("host-1", "ctrl-b", "lease-2", epoch.Add(time.Second))
	if !errs.Is(err, errs.KindWriteConflict) {
		t.Fatalf("expected WriteConflict from contending acquire, got %v", err)
	}

	// Same controller re-acquiring (e.g. reconnect) is not contention.
	if _, err := m.AcquireLease("host-1", "ctrl-a", "lease-1", epoch.Add(time.Second)); err != nil {
		t.Fatalf("re-acquire by same controller: %v", err)
	}
}

func TestLeaseExpiresAndCanBeReassigned(t *testing.T) {
	m := New(10*time.Second, 8, nil, nil)

	if _, err := m.AcquireLease("host-1", "ctrl-a", "lease-1", epoch); err != nil {
		t.Fatalf("AcquireLease: %v", err)
	}

	past := epoch.Add(11 * time.Second)
	if _, ok := m.Lease("host-1", past); ok {
		t.Fatal("expected lease to be expired")
	}

	if _, err := m.AcquireLease("host-1", "ctrl-b", "lease-2", past); err != nil {
		t.Fatalf("expected reassignment after expiry to succeed, got %v", err)
	}
}

func TestRenewLeaseExtendsTTLAndRejectsWrongController(t *testing.T) {
	m := New(10*time.Second, 8, nil, nil)
	if _, err := m.AcquireLease("host-1", "ctrl-a", "lease-1", epoch); err != nil {
		t.Fatalf("AcquireLease: %v", err)
	}

	renewed, err := m.RenewLease("host-1", "ctrl-a", epoch.Add(5*time.Second))
	if err != nil {
		t.Fatalf("RenewLease: %v", err)
	}
	if !renewed.ExpiresAt.Equal(epoch.Add(15 * time.Second)) {
		t.Fatalf("expires_at = %v, want %v", renewed.ExpiresAt, epoch.Add(15*time.Second))
	}

	if _, err := m.RenewLease("host-1", "ctrl-b", epoch.Add(6*time.Second)); !errs.Is(err, errs.KindWriteConflict) {
		t.Fatalf("expected WriteConflict renewing as wrong controller, got %v", err)
	}
}

func TestReapExpiredDropsOnlyStaleLeases(t *testing.T) {
	m := New(10*time.Second, 8, nil, nil)
	if _, err := m.AcquireLease("host-1", "ctrl-a", "lease-1", epoch); err != nil {
		t.Fatalf("AcquireLease host-1: %v", err)
	}
	if _, err := m.AcquireLease("host-2", "ctrl-b", "lease-2", epoch.Add(8*time.Second)); err != nil {
		t.Fatalf("AcquireLease host-2: %v", err)
	}

	reaped := m.ReapExpired(epoch.Add(11 * time.Second))
	if len(reaped) != 1 || reaped[0] != "host-1" {
		t.Fatalf("reaped = %v, want [host-1]", reaped)
	}
	if _, ok := m.Lease("host-2", epoch.Add(11*time.Second)); !ok {
		t.Fatal("host-2's lease should still be active")
	}
}

func TestActionQueueFullAndExpiredDiscarded(t *testing.T) {
	m := New(30*time.Second, 2, nil, nil)
	if _, err := m.AcquireLease("host-1", "ctrl-a", "lease-1", epoch); err != nil {
		t.Fatalf("AcquireLease: %v", err)
	}

	expired := epoch.Add(-time.Second)
	if err := m.Enqueue("host-1", Action{ID: "a1", ActionType: "keypress", ExpiresAt: &expired}); err != nil {
		t.Fatalf("Enqueue a1: %v", err)
	}
	if err := m.Enqueue("host-1", Action{ID: "a2", ActionType: "keypress"}); err != nil {
		t.Fatalf("Enqueue a2: %v", err)
	}
	if err := m.Enqueue("host-1", Action{ID: "a3", ActionType: "keypress"}); !errs.Is(err, errs.KindActionQueueFull) {
		t.Fatalf("expected ActionQueueFull enqueueing a3, got %v", err)
	}

	a, ok := m.Dequeue("host-1", epoch)
	if !ok || a.ID != "a2" {
		t.Fatalf("expected a1 (expired) skipped and a2 dequeued, got %+v ok=%v", a, ok)
	}
	if _, ok := m.Dequeue("host-1", epoch); ok {
		t.Fatal("expected queue to be empty")
	}
}

type fakePersist struct {
	leases      []Lease
	assignments []Assignment
	actionLogs  []ActionLogEntry
}

func (f *fakePersist) UpsertLease(l Lease) error           { f.leases = append(f.leases, l); return nil }
func (f *fakePersist) UpsertAssignment(a Assignment) error { f.assignments = append(f.assignments, a); return nil }
func (f *fakePersist) AppendActionLog(e ActionLogEntry) error {
	f.actionLogs = append(f.actionLogs, e)
	return nil
}

func TestManagerPersistsLeaseAndActionLog(t *testing.T) {
	p := &fakePersist{}
	m := New(30*time.Second, 4, p, nil)

	if _, err := m.AcquireLease("host-1", "ctrl-a", "lease-1", epoch); err != nil {
		t.Fatalf("AcquireLease: %v", err)
	}
	if len(p.leases) != 1 || p.leases[0].LeaseID != "lease-1" {
		t.Fatalf("expected one persisted lease, got %+v", p.leases)
	}

	if err := m.Enqueue("host-1", Action{ID: "a1", ActionType: "keypress"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, ok := m.Dequeue("host-1", epoch); !ok {
		t.Fatal("expected to dequeue a1")
	}
	if len(p.actionLogs) != 1 || p.actionLogs[0].ActionID != "a1" {
		t.Fatalf("expected one action log entry, got %+v", p.actionLogs)
	}
}
