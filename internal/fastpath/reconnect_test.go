package fastpath

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestReconnectorSucceedsWithinMaxAttempts(t *testing.T) {
	attempts := 0
	r := NewReconnector(func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	}, nil)
	r.sleep = func(time.Duration) {}

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestReconnectorGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	r := NewReconnector(func(ctx context.Context) error {
		attempts++
		return errors.New("always fails")
	}, nil)
	r.sleep = func(time.Duration) {}

	err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != DefaultMaxAttempts {
		t.Fatalf("attempts = %d, want %d", attempts, DefaultMaxAttempts)
	}
}

func TestReconnectorRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	r := NewReconnector(func(ctx context.Context) error {
		attempts++
		return errors.New("fails")
	}, nil)
	r.sleep = func(time.Duration) {}

	err := r.Run(ctx)
	if err == nil {
		t.Fatal("expected error from canceled context")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (first attempt runs, second is blocked by ctx.Done)", attempts)
	}
}
