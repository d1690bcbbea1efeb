package persist

import (
	"testing"
	"time"

	"github.com/beachsh/beach/internal/lease"
)

func TestMemoryUpsertLeaseIsIdempotentOnID(t *testing.T) {
	m := NewMemory()
	l := lease.Lease{LeaseID: "lease-1", HostSessionID: "host-1", ControllerSessionID: "ctrl-a", ExpiresAt: time.Unix(100, 0)}
	if err := m.UpsertLease(l); err != nil {
		t.Fatalf("UpsertLease: %v", err)
	}
	l.ExpiresAt = time.Unix(200, 0)
	if err := m.UpsertLease(l); err != nil {
		t.Fatalf("UpsertLease (update): %v", err)
	}

	got, ok := m.Lease("lease-1")
	if !ok {
		t.Fatal("expected lease to be present")
	}
	if !got.ExpiresAt.Equal(time.Unix(200, 0)) {
		t.Fatalf("expires_at = %v, want %v", got.ExpiresAt, time.Unix(200, 0))
	}
}

func TestMemoryAppendActionLogAccumulates(t *testing.T) {
	m := NewMemory()
	for i := 0; i < 3; i++ {
		if err := m.AppendActionLog(lease.ActionLogEntry{HostSessionID: "host-1", ActionID: "a"}); err != nil {
			t.Fatalf("AppendActionLog: %v", err)
		}
	}
	if len(m.ActionLogs()) != 3 {
		t.Fatalf("action logs = %d, want 3", len(m.ActionLogs()))
	}
}

func TestLeaseManagerWithMemoryAdapter(t *testing.T) {
	m := NewMemory()
	lm := lease.New(30*time.Second, 4, m, nil)

	now := time.Unix(0, 0)
	if _, err := lm.AcquireLease("host-1", "ctrl-a", "lease-1", now); err != nil {
		t.Fatalf("AcquireLease: %v", err)
	}
	stored, ok := m.Lease("lease-1")
	if !ok || stored.ControllerSessionID != "ctrl-a" {
		t.Fatalf("expected lease-1 persisted with ctrl-a, got %+v ok=%v", stored, ok)
	}
}
