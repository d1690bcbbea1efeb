package main

import (
	"testing"

	"github.com/beachsh/beach/internal/config"
	"github.com/beachsh/beach/internal/errs"
)

func TestBuildPersistenceAdapterMemoryDefault(t *testing.T) {
	for _, backend := range []string{"", "memory"} {
		adapter, err := buildPersistenceAdapter(config.PersistenceConfig{Backend: backend})
		if err != nil {
			t.Fatalf("backend %q: unexpected error %v", backend, err)
		}
		if adapter == nil {
			t.Fatalf("backend %q: expected a non-nil adapter", backend)
		}
	}
}

func TestBuildPersistenceAdapterUnknownBackend(t *testing.T) {
	_, err := buildPersistenceAdapter(config.PersistenceConfig{Backend: "carrier-pigeon"})
	if err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
	if errs.KindOf(err) != errs.KindInvalidConfig {
		t.Fatalf("expected KindInvalidConfig, got %v", errs.KindOf(err))
	}
}
