// Package config parses the runtime's environment configuration into a
// typed record. Only the enumerated keys below are recognized.
package config

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Recognized environment keys.
const (
	EnvReconnectGraceMs        = "RECONNECT_GRACE_MS"
	EnvGameRetentionMs         = "GAME_RETENTION_MS"
	EnvSessionTTLMs            = "SESSION_TTL_MS"
	EnvLobbyTTLMs              = "LOBBY_TTL_MS"
	EnvGameTTLMs               = "GAME_TTL_MS"
	EnvLifecycleSweepInterval  = "LIFECYCLE_SWEEP_INTERVAL_MS"
	EnvPersistenceMode         = "PERSISTENCE_MODE"
	EnvPersistencePath         = "PERSISTENCE_PATH"
	EnvReconnectTokenSecret    = "RECONNECT_TOKEN_SECRET"
)

// PersistenceMode selects whether snapshot checkpoints are written.
type PersistenceMode string

const (
	PersistenceDisabled PersistenceMode = "disabled"
	PersistenceFile     PersistenceMode = "file"
)

// Floors and defaults. Grace and retention have hard minimums so that a
// momentary network blip can never forfeit a game instantly.
const (
	MinReconnectGraceMs    = 60_000
	MinGameRetentionMs     = 300_000
	DefaultSweepIntervalMs = 1_000
	MinSweepIntervalMs     = 250
	secretBytes            = 32
)

// Config is the parsed runtime configuration. Nil TTL pointers mean the
// corresponding records never expire by TTL (retention still applies).
type Config struct {
	ReconnectGraceMs int64
	GameRetentionMs  int64
	SessionTTLMs     *int64
	LobbyTTLMs       *int64
	GameTTLMs        *int64
	SweepIntervalMs  int64
	PersistenceMode  PersistenceMode
	PersistencePath  string
	TokenSecret      []byte

	// GeneratedSecret records that TokenSecret was minted at startup, in
	// which case reconnect tokens do not survive a restart.
	GeneratedSecret bool
}

// FromEnv reads configuration through getenv (nil means os.Getenv). Values
// below their documented minimums are raised to the minimum; malformed
// values are errors rather than silent fallbacks.
func FromEnv(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := Config{
		ReconnectGraceMs: MinReconnectGraceMs,
		GameRetentionMs:  MinGameRetentionMs,
		SweepIntervalMs:  DefaultSweepIntervalMs,
		PersistenceMode:  PersistenceDisabled,
	}

	var err error
	if cfg.ReconnectGraceMs, err = msValue(getenv, EnvReconnectGraceMs, cfg.ReconnectGraceMs, MinReconnectGraceMs); err != nil {
		return Config{}, err
	}
	if cfg.GameRetentionMs, err = msValue(getenv, EnvGameRetentionMs, cfg.GameRetentionMs, MinGameRetentionMs); err != nil {
		return Config{}, err
	}
	if cfg.SweepIntervalMs, err = msValue(getenv, EnvLifecycleSweepInterval, cfg.SweepIntervalMs, MinSweepIntervalMs); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTLMs, err = optionalMs(getenv, EnvSessionTTLMs); err != nil {
		return Config{}, err
	}
	if cfg.LobbyTTLMs, err = optionalMs(getenv, EnvLobbyTTLMs); err != nil {
		return Config{}, err
	}
	if cfg.GameTTLMs, err = optionalMs(getenv, EnvGameTTLMs); err != nil {
		return Config{}, err
	}

	switch mode := getenv(EnvPersistenceMode); mode {
	case "", string(PersistenceDisabled):
		cfg.PersistenceMode = PersistenceDisabled
	case string(PersistenceFile):
		cfg.PersistenceMode = PersistenceFile
	default:
		return Config{}, fmt.Errorf("%s: unknown mode %q", EnvPersistenceMode, mode)
	}
	cfg.PersistencePath = getenv(EnvPersistencePath)
	if cfg.PersistenceMode == PersistenceFile && cfg.PersistencePath == "" {
		cfg.PersistencePath = filepath.Join(os.TempDir(), "fun-euchre.snapshot.json")
	}

	if secret := getenv(EnvReconnectTokenSecret); secret != "" {
		cfg.TokenSecret = []byte(secret)
	} else {
		cfg.TokenSecret = make([]byte, secretBytes)
		if _, err := rand.Read(cfg.TokenSecret); err != nil {
			return Config{}, fmt.Errorf("generating reconnect token secret: %w", err)
		}
		cfg.GeneratedSecret = true
	}
	return cfg, nil
}

// String renders the config for logging with the secret redacted.
func (c Config) String() string {
	secret := "(set)"
	if c.GeneratedSecret {
		secret = "(generated)"
	}
	return fmt.Sprintf(
		"reconnectGraceMs=%d gameRetentionMs=%d sweepIntervalMs=%d sessionTTLMs=%s lobbyTTLMs=%s gameTTLMs=%s persistence=%s path=%q tokenSecret=%s",
		c.ReconnectGraceMs, c.GameRetentionMs, c.SweepIntervalMs,
		fmtTTL(c.SessionTTLMs), fmtTTL(c.LobbyTTLMs), fmtTTL(c.GameTTLMs),
		c.PersistenceMode, c.PersistencePath, secret,
	)
}

func fmtTTL(p *int64) string {
	if p == nil {
		return "unset"
	}
	return strconv.FormatInt(*p, 10)
}

func msValue(getenv func(string) string, key string, def, min int64) (int64, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer millisecond value", key, raw)
	}
	if v < min {
		return min, nil
	}
	return v, nil
}

func optionalMs(getenv func(string) string, key string) (*int64, error) {
	raw := getenv(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return nil, fmt.Errorf("%s: %q is not a positive integer millisecond value", key, raw)
	}
	return &v, nil
}
