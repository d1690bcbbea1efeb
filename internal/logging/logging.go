// Package logging builds the shared zap.Logger used across beach
// components. Components accept a *zap.Logger field and fall back to a
// no-op logger when none is injected, so unit tests never need to wire
// one up.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

var (
	once   sync.Once
	global *zap.Logger
)

// Mode selects the zap preset used when building the global logger.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
	ModeJSON        Mode = "json"
)

// Init builds the process-wide logger. Safe to call once at startup;
// subsequent calls are no-ops, matching the style of the
// once-guarded package state (pkg/termsocket's notification map init).
func Init(mode Mode) {
	once.Do(func() {
		var l *zap.Logger
		var err error
		switch mode {
		case ModeProduction, ModeJSON:
			cfg := zap.NewProductionConfig()
			l, err = cfg.Build()
		default:
			l, err = zap.NewDevelopment()
		}
		if err != nil || l == nil {
			l = zap.NewNop()
		}
		global = l
	})
}

// L returns the process-wide logger, initializing a no-op logger if
// Init was never called.
func L() *zap.Logger {
	if global == nil {
		return zap.NewNop()
	}
	return global
}

// Sync flushes any buffered log entries.
func Sync() {
	if global != nil {
		_ = global.Sync()
	}
}

// OrNop returns l if non-nil, otherwise a no-op logger. Components use
// this to accept an injected logger without requiring callers to supply
// one.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
