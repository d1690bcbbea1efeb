package config

import (
	"os"
	"strconv"
)

// applyEnvOverrides layers BEACH_* environment variables over a
// loaded config, generalizing the single VIBETUNNEL_DEBUG
// env-flag check into one override per config field that plausibly
// varies between deployments (never the passphrase itself, which is
// read fresh via Passphrase() at connection time instead of being
// captured into the struct).
func applyEnvOverrides(cfg *BeachConfig) {
	if v, ok := os.LookupEnv("BEACH_LISTEN_ADDR"); ok {
		cfg.Server.ListenAddr = v
	}
	if v, ok := os.LookupEnv("BEACH_SIGNALING_URL"); ok {
		cfg.Server.SignalingURL = v
	}
	if v, ok := os.LookupEnv("BEACH_CERTMAGIC_DOMAIN"); ok {
		cfg.Server.CertMagicDomain = v
	}
	if v, ok := os.LookupEnv("BEACH_NGROK_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Server.NgrokEnabled = b
		}
	}
	if v, ok := os.LookupEnv("BEACH_NGROK_AUTH_TOKEN"); ok {
		cfg.Server.NgrokAuthToken = v
	}
	if v, ok := os.LookupEnv("BEACH_SHELL"); ok {
		cfg.Session.Shell = v
	}
	if v, ok := os.LookupEnv("BEACH_LOG_MODE"); ok {
		cfg.LogMode = LogMode(v)
	}
	if v, ok := os.LookupEnv("BEACH_PASSPHRASE_ENV_VAR"); ok {
		cfg.PassphraseEnvVar = v
	}
	if v, ok := os.LookupEnv("BEACH_PERSISTENCE_BACKEND"); ok {
		cfg.Persistence.Backend = v
	}
	if v, ok := os.LookupEnv("BEACH_REDIS_ADDR"); ok {
		cfg.Persistence.RedisAddr = v
	}
	if v, ok := os.LookupEnv("BEACH_POSTGRES_DSN"); ok {
		cfg.Persistence.PostgresDSN = v
	}
}
