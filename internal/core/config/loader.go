package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vietddude/teamsync/internal/infra/redis"
	"github.com/vietddude/teamsync/internal/infra/storage/sqlstore"
	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	var cfg AppConfig
	cfg.applyDefaults()
	return &cfg
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Store.Driver == "" {
		c.Store.Driver = sqlstore.DriverSQLite
	}
	if c.Store.DSN == "" && c.Store.Driver == sqlstore.DriverSQLite {
		c.Store.DSN = "teamsync.db"
	}

	if c.Ledger.Backend == "" {
		c.Ledger.Backend = LedgerBackendStore
	}
	if c.Ledger.Prefix == "" {
		c.Ledger.Prefix = "teamsync"
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = redis.DefaultFlushChannel
	}

	if c.Remote.Timeout == 0 {
		c.Remote.Timeout = 10 * time.Second
	}
	if c.Remote.RequestsPerSecond == 0 {
		c.Remote.RequestsPerSecond = 5
	}
	if c.Remote.Burst == 0 {
		c.Remote.Burst = 5
	}

	if c.Identity.GuestPrefix == "" {
		c.Identity.GuestPrefix = "guest:"
	}

	if c.Sync.Interval == 0 {
		c.Sync.Interval = 15 * time.Second
	}
	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = 50
	}
	if c.Sync.BaseDelay == 0 {
		c.Sync.BaseDelay = 30 * time.Second
	}
	if c.Sync.MaxDelay == 0 {
		c.Sync.MaxDelay = 24 * time.Hour
	}
	if c.Sync.ProbeInterval == 0 {
		c.Sync.ProbeInterval = 10 * time.Second
	}
	if c.Sync.PruneInterval == 0 {
		c.Sync.PruneInterval = time.Hour
	}
}

// Validate checks settings that have no sensible default.
func (c *AppConfig) Validate() error {
	switch c.Store.Driver {
	case sqlstore.DriverSQLite, sqlstore.DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == sqlstore.DriverPostgres && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required for postgres")
	}

	switch c.Ledger.Backend {
	case LedgerBackendStore:
	case LedgerBackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required for the redis ledger")
		}
	default:
		return fmt.Errorf("unsupported ledger backend %q", c.Ledger.Backend)
	}

	if j := c.Sync.JitterOrDefault(); j < 0 || j >= 1 {
		return fmt.Errorf("sync.jitter must be in [0, 1), got %v", j)
	}
	if c.Sync.BaseDelay > c.Sync.MaxDelay {
		return fmt.Errorf("sync.base_delay %v exceeds sync.max_delay %v", c.Sync.BaseDelay, c.Sync.MaxDelay)
	}
	if strings.TrimSpace(c.Identity.GuestPrefix) == "" {
		return fmt.Errorf("identity.guest_prefix must not be blank")
	}
	return nil
}
