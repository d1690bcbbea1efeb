package main

import (
	"go.uber.org/zap"

	"github.com/beachsh/beach/internal/chunk"
	"github.com/beachsh/beach/internal/config"
	"github.com/beachsh/beach/internal/logging"
	synchronizer "github.com/beachsh/beach/internal/sync"
)

// loadConfig loads a BeachConfig from flagConfigPath (or Default()
// when unset) and initializes the process logger.
func loadConfig() (*config.BeachConfig, error) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return nil, err
	}
	mode := string(cfg.LogMode)
	if flagLogMode != "" {
		mode = flagLogMode
	}
	logging.Init(logging.Mode(mode))
	return cfg, nil
}

func syncConfigFrom(b config.SyncBudgets) synchronizer.Config {
	return synchronizer.Config{
		ForegroundBudget:     b.ForegroundBudget,
		RecentBudget:         b.RecentBudget,
		HistoryBudget:        b.HistoryBudget,
		DeltaBudget:          b.DeltaBudget,
		InitialSnapshotLines: b.InitialSnapshotLines,
	}
}

func chunkConfigFrom(c config.ChunkLimits) chunk.Config {
	return chunk.Config{
		MaxChunkBytes:   c.MaxChunkBytes,
		MaxMessageBytes: c.MaxMessageBytes,
		MaxInflight:     c.MaxInflight,
		GCTimeout:       c.GCTimeout,
	}
}

func zapLogger() *zap.Logger {
	return logging.L()
}
