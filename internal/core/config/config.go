package config

import (
	"time"

	"github.com/vietddude/teamsync/internal/infra/redis"
	"github.com/vietddude/teamsync/internal/infra/remote"
	"github.com/vietddude/teamsync/internal/infra/storage/sqlstore"
)

// DriverMemory keeps records and the ledger in process memory.
const DriverMemory = "memory"

// Ledger backends.
const (
	LedgerBackendStore = "store"
	LedgerBackendRedis = "redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig    `yaml:"server"`
	Logging  LoggingConfig   `yaml:"logging"`
	Store    sqlstore.Config `yaml:"store"`
	Ledger   LedgerConfig    `yaml:"ledger"`
	Redis    redis.Config    `yaml:"redis"`
	Remote   remote.Config   `yaml:"remote"`
	Identity IdentityConfig  `yaml:"identity"`
	Sync     SyncConfig      `yaml:"sync"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// LedgerConfig selects where failure entries live.
type LedgerConfig struct {
	Backend string `yaml:"backend"` // store, redis
	Prefix  string `yaml:"prefix"`  // redis key prefix
}

// IdentityConfig holds the signed-in owner.
type IdentityConfig struct {
	OwnerID     string `yaml:"owner_id"`
	GuestPrefix string `yaml:"guest_prefix"`
}

// SyncConfig holds flush cycle and backoff settings.
type SyncConfig struct {
	Interval      time.Duration `yaml:"interval"`
	BatchSize     int           `yaml:"batch_size"`
	BaseDelay     time.Duration `yaml:"base_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	Jitter        *float64      `yaml:"jitter"` // nil = default 0.2
	ProbeInterval time.Duration `yaml:"probe_interval"`
	PruneInterval time.Duration `yaml:"prune_interval"` // negative disables
}

// JitterOrDefault returns the configured jitter fraction.
func (s SyncConfig) JitterOrDefault() float64 {
	if s.Jitter == nil {
		return 0.2
	}
	return *s.Jitter
}
