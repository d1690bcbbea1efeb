package persist

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/beachsh/beach/internal/errs"
	"github.com/beachsh/beach/internal/lease"
)

// Redis is a PersistenceAdapter backed by a redis.Client, grounded on
// other_examples' GrokNexus-QuantatomAI tiered grid cache
// (NewTieredGridCache's *redis.Client field, JSON-encoded payloads over
// Set/Get). Records are JSON blobs under namespaced keys; upserts are
// plain SET and therefore naturally idempotent on key.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis wraps client. keyPrefix namespaces every key (e.g.
// "beach:lease:"); ttl bounds how long records persist past their
// logical expiry (0 disables expiration).
func NewRedis(client *redis.Client, keyPrefix string, ttl time.Duration) *Redis {
	if keyPrefix == "" {
		keyPrefix = "beach:"
	}
	return &Redis{client: client, prefix: keyPrefix, ttl: ttl}
}

func (r *Redis) set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errs.Wrap(errs.KindSetup, "marshal persisted record", err)
	}
	if err := r.client.Set(ctx, r.prefix+key, b, r.ttl).Err(); err != nil {
		return errs.Wrap(errs.KindNetwork, "redis set", err)
	}
	return nil
}

func (r *Redis) UpsertLease(l lease.Lease) error {
	return r.set(context.Background(), "lease:"+l.LeaseID, l)
}

func (r *Redis) UpsertAssignment(a lease.Assignment) error {
	return r.set(context.Background(), "assignment:"+a.HostSessionID, a)
}

func (r *Redis) AppendActionLog(e lease.ActionLogEntry) error {
	ctx := context.Background()
	key := r.prefix + "action_log:" + e.HostSessionID
	b, err := json.Marshal(e)
	if err != nil {
		return errs.Wrap(errs.KindSetup, "marshal action log entry", err)
	}
	if err := r.client.RPush(ctx, key, b).Err(); err != nil {
		return errs.Wrap(errs.KindNetwork, "redis rpush", err)
	}
	if r.ttl > 0 {
		r.client.Expire(ctx, key, r.ttl)
	}
	return nil
}

// Lease fetches and decodes a lease record by id.
func (r *Redis) Lease(ctx context.Context, leaseID string) (lease.Lease, error) {
	var l lease.Lease
	b, err := r.client.Get(ctx, r.prefix+"lease:"+leaseID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return l, errs.New(errs.KindInvalidResponse, "lease not found")
		}
		return l, errs.Wrap(errs.KindNetwork, "redis get", err)
	}
	if err := json.Unmarshal(b, &l); err != nil {
		return l, errs.Wrap(errs.KindInvalidResponse, "decode lease", err)
	}
	return l, nil
}
