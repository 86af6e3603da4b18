package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/teamsync/internal/core/config"
	redisclient "github.com/vietddude/teamsync/internal/infra/redis"
	"github.com/vietddude/teamsync/internal/infra/storage"
	"github.com/vietddude/teamsync/internal/infra/storage/memory"
	"github.com/vietddude/teamsync/internal/infra/storage/sqlstore"
	"github.com/vietddude/teamsync/internal/syncing/backoff"
	"github.com/vietddude/teamsync/internal/syncing/ledger"
)

// Stores bundles the record store, the failure ledger backend and the
// connections behind them.
type Stores struct {
	Records  storage.RecordStore
	Failures storage.FailureRepository

	db    *sqlstore.DB
	redis *redisclient.Client
}

// OpenStores connects the configured storage backends.
func OpenStores(ctx context.Context, cfg *config.AppConfig) (*Stores, error) {
	s := &Stores{}

	if cfg.Store.Driver == config.DriverMemory {
		mem := memory.NewMemoryStorage()
		s.Records = memory.NewRecordRepo(mem)
		s.Failures = memory.NewFailureRepo(mem)
		slog.Info("Using Memory storage")
	} else {
		db, err := sqlstore.Open(ctx, cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		s.db = db
		s.Records = sqlstore.NewRecordRepo(db)
		s.Failures = sqlstore.NewFailureRepo(db)
		slog.Info("Using SQL storage", "driver", cfg.Store.Driver)
	}

	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		switch {
		case err != nil && cfg.Ledger.Backend == config.LedgerBackendRedis:
			_ = s.Close()
			return nil, fmt.Errorf("failed to init redis ledger: %w", err)
		case err != nil:
			slog.Warn("Failed to connect to Redis, flush requests disabled", "error", err)
		default:
			s.redis = client
		}
	}

	if cfg.Ledger.Backend == config.LedgerBackendRedis {
		s.Failures = redisclient.NewFailureRepo(s.redis, cfg.Ledger.Prefix)
		slog.Info("Using Redis failure ledger", "prefix", cfg.Ledger.Prefix)
	}
	return s, nil
}

// Redis returns the Redis client, or nil when Redis is not configured.
func (s *Stores) Redis() *redisclient.Client {
	return s.redis
}

// Close releases all connections.
func (s *Stores) Close() error {
	var errs []error
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	return errors.Join(errs...)
}

// NewLedger builds the failure ledger with the configured backoff policy and
// a fresh gate.
func NewLedger(cfg *config.AppConfig, failures storage.FailureRepository) *ledger.Ledger {
	policy := backoff.NewPolicy(cfg.Sync.BaseDelay, cfg.Sync.MaxDelay, cfg.Sync.JitterOrDefault())
	return ledger.New(failures, policy, backoff.NewGate())
}
