package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadWithoutPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default().Server.ListenAddr, cfg.Server.ListenAddr)
}

func TestLoadParsesYAMLAndOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beach.yaml")
	yamlDoc := `
server:
  listen_addr: ":9999"
session:
  shell: /bin/zsh
  cols: 120
  rows: 40
persistence:
  backend: redis
  redis_addr: "127.0.0.1:6379"
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.Server.ListenAddr)
	require.Equal(t, "/bin/zsh", cfg.Session.Shell)
	require.Equal(t, 120, cfg.Session.Cols)
	require.Equal(t, "redis", cfg.Persistence.Backend)
	require.Equal(t, "127.0.0.1:6379", cfg.Persistence.RedisAddr)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsNonPositiveDimensions(t *testing.T) {
	cfg := Default()
	cfg.Session.Cols = 0
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownPersistenceBackend(t *testing.T) {
	cfg := Default()
	cfg.Persistence.Backend = "sqlite"
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresRedisAddrForRedisBackend(t *testing.T) {
	cfg := Default()
	cfg.Persistence.Backend = "redis"
	cfg.Persistence.RedisAddr = ""
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresPostgresDSNForPostgresBackend(t *testing.T) {
	cfg := Default()
	cfg.Persistence.Backend = "postgres"
	cfg.Persistence.PostgresDSN = ""
	require.Error(t, cfg.Validate())
}

func TestApplyEnvOverridesLayersOverLoadedConfig(t *testing.T) {
	t.Setenv("BEACH_LISTEN_ADDR", ":7070")
	t.Setenv("BEACH_SHELL", "/bin/fish")
	t.Setenv("BEACH_NGROK_ENABLED", "true")
	t.Setenv("BEACH_LOG_MODE", "json")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.Server.ListenAddr)
	require.Equal(t, "/bin/fish", cfg.Session.Shell)
	require.True(t, cfg.Server.NgrokEnabled)
	require.Equal(t, LogMode("json"), cfg.LogMode)
}

func TestApplyEnvOverridesIgnoresUnparsableBool(t *testing.T) {
	t.Setenv("BEACH_NGROK_ENABLED", "not-a-bool")
	cfg, err := Load("")
	require.NoError(t, err)
	require.False(t, cfg.Server.NgrokEnabled)
}

func TestPassphraseReadsConfiguredEnvVar(t *testing.T) {
	t.Setenv("BEACH_CUSTOM_PASSPHRASE", "correct-horse-battery-staple")
	cfg := Default()
	cfg.PassphraseEnvVar = "BEACH_CUSTOM_PASSPHRASE"
	require.Equal(t, "correct-horse-battery-staple", cfg.Passphrase())
}

func TestPassphraseFallsBackToDefaultEnvVar(t *testing.T) {
	t.Setenv("BEACH_PASSPHRASE", "fallback-secret")
	cfg := Default()
	cfg.PassphraseEnvVar = ""
	require.Equal(t, "fallback-secret", cfg.Passphrase())
}
