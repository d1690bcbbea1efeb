package persist

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beachsh/beach/internal/errs"
	"github.com/beachsh/beach/internal/lease"
)

// Postgres is a PersistenceAdapter backed by a pgxpool.Pool, grounded
// on other_examples' DBAShand-cdc-sink-redshift types.go StagingQuerier
// (pgxpool.Pool satisfying a narrow Exec/Query/QueryRow capability
// interface). Upserts use ON CONFLICT DO UPDATE keyed by primary key,
// matching spec §4.7's "upserts keyed by id".
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps pool. Schema() returns the DDL the caller should
// apply via migration tooling before first use.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Schema is the DDL for the three tables this adapter maintains.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS controller_leases (
	lease_id              TEXT PRIMARY KEY,
	host_session_id       TEXT NOT NULL,
	controller_session_id TEXT NOT NULL,
	expires_at            TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS manager_assignments (
	host_session_id TEXT PRIMARY KEY,
	manager_id      TEXT NOT NULL,
	assigned_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS action_logs (
	host_session_id TEXT NOT NULL,
	action_id       TEXT NOT NULL,
	action_type     TEXT NOT NULL,
	dequeued_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (host_session_id, action_id)
);
`
}

func (p *Postgres) UpsertLease(l lease.Lease) error {
	_, err := p.pool.Exec(context.Background(), `
INSERT INTO controller_leases (lease_id, host_session_id, controller_session_id, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (lease_id) DO UPDATE SET
	host_session_id = EXCLUDED.host_session_id,
	controller_session_id = EXCLUDED.controller_session_id,
	expires_at = EXCLUDED.expires_at
`, l.LeaseID, l.HostSessionID, l.ControllerSessionID, l.ExpiresAt)
	if err != nil {
		return errs.Wrap(errs.KindNetwork, "upsert controller_leases", err)
	}
	return nil
}

func (p *Postgres) UpsertAssignment(a lease.Assignment) error {
	_, err := p.pool.Exec(context.Background(), `
INSERT INTO manager_assignments (host_session_id, manager_id, assigned_at)
VALUES ($1, $2, $3)
ON CONFLICT (host_session_id) DO UPDATE SET
	manager_id = EXCLUDED.manager_id,
	assigned_at = EXCLUDED.assigned_at
`, a.HostSessionID, a.ManagerID, a.AssignedAt)
	if err != nil {
		return errs.Wrap(errs.KindNetwork, "upsert manager_assignments", err)
	}
	return nil
}

func (p *Postgres) AppendActionLog(e lease.ActionLogEntry) error {
	_, err := p.pool.Exec(context.Background(), `
INSERT INTO action_logs (host_session_id, action_id, action_type, dequeued_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (host_session_id, action_id) DO UPDATE SET
	action_type = EXCLUDED.action_type,
	dequeued_at = EXCLUDED.dequeued_at
`, e.HostSessionID, e.ActionID, e.ActionType, e.DequeuedAt)
	if err != nil {
		return errs.Wrap(errs.KindNetwork, "upsert action_logs", err)
	}
	return nil
}
