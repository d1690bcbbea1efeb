package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beach.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  listen_addr: \":1111\"\n"), 0o600))

	reloaded := make(chan *BeachConfig, 1)
	w, err := Watch(path, nil, func(cfg *BeachConfig) {
		reloaded <- cfg
	})
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  listen_addr: \":2222\"\n"), 0o600))

	select {
	case cfg := <-reloaded:
		require.Equal(t, ":2222", cfg.Server.ListenAddr)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}
}

func TestWatcherKeepsPreviousConfigOnParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beach.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  listen_addr: \":1111\"\n"), 0o600))

	reloaded := make(chan *BeachConfig, 1)
	w, err := Watch(path, nil, func(cfg *BeachConfig) {
		reloaded <- cfg
	})
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(path, []byte("server: [this is not a map\n"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("server:\n  listen_addr: \":3333\"\n"), 0o600))

	select {
	case cfg := <-reloaded:
		require.Equal(t, ":3333", cfg.Server.ListenAddr)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}
}
