package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/beachsh/beach/internal/config"
	"github.com/beachsh/beach/internal/errs"
	"github.com/beachsh/beach/internal/lease"
	"github.com/beachsh/beach/internal/persist"
)

// buildPersistenceAdapter selects the controller-lease PersistenceAdapter
// named by cfg.Persistence.Backend (spec §4.7, §6.6), already validated
// by BeachConfig.Validate.
func buildPersistenceAdapter(cfg config.PersistenceConfig) (lease.PersistenceAdapter, error) {
	switch cfg.Backend {
	case "", "memory":
		return persist.NewMemory(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return persist.NewRedis(client, cfg.RedisKeyPrefix, cfg.RedisTTL), nil
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
		if err != nil {
			return nil, errs.Wrap(errs.KindSetup, "connect postgres persistence", err)
		}
		return persist.NewPostgres(pool), nil
	default:
		return nil, errs.New(errs.KindInvalidConfig, "unknown persistence backend "+cfg.Backend)
	}
}
