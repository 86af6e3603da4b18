package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vietddude/teamsync/internal/core/config"
	"github.com/vietddude/teamsync/internal/core/domain"
	"github.com/vietddude/teamsync/internal/core/session"
	"github.com/vietddude/teamsync/internal/core/worker"
	redisclient "github.com/vietddude/teamsync/internal/infra/redis"
	"github.com/vietddude/teamsync/internal/infra/remote"
	"github.com/vietddude/teamsync/internal/syncing/engine"
	"github.com/vietddude/teamsync/internal/syncing/guest"
	"github.com/vietddude/teamsync/internal/syncing/health"
	"github.com/vietddude/teamsync/internal/syncing/ledger"
	"github.com/vietddude/teamsync/internal/syncing/tables"
)

// Syncer is the main application struct that manages the sync engine lifecycle.
type Syncer struct {
	cfg          *config.AppConfig
	stores       *Stores
	engine       *engine.Engine
	session      *session.Static
	guests       *guest.Detector
	importer     *guest.Importer
	conn         *engine.ConnectivityMonitor
	healthMon    *health.Monitor
	healthServer *health.Server
	pruner       *worker.Pruner
	triggers     []engine.Trigger

	cancel context.CancelFunc
	done   chan struct{}
	log    *slog.Logger
}

// NewSyncer creates a Syncer with all dependencies initialized.
func NewSyncer(ctx context.Context, cfg *config.AppConfig) (*Syncer, error) {
	// 1. Storage
	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 2. Remote API
	client, err := remote.NewClient(cfg.Remote)
	if err != nil {
		_ = stores.Close()
		return nil, fmt.Errorf("failed to init remote client: %w", err)
	}

	// 3. Sync components
	l := NewLedger(cfg, stores.Failures)
	sess := session.NewStatic(cfg.Identity.OwnerID)
	guests := guest.NewDetector(stores.Records, cfg.Identity.GuestPrefix)
	conn := engine.NewConnectivityMonitor(client.Health, cfg.Sync.ProbeInterval)

	eng := engine.New(
		engine.Config{
			BatchSize:   cfg.Sync.BatchSize,
			GuestPrefix: cfg.Identity.GuestPrefix,
		},
		stores.Records,
		client,
		l,
		tables.MustDefaultRegistry(),
		sess,
		conn,
		guests,
	)

	// 4. Health server
	healthMon := health.NewMonitor(eng.Reporter(), conn, eng.Running)
	eng.OnProgress(healthMon.Observe)
	healthServer := health.NewServer(healthMon, eng, cfg.Server.Port)

	pruner := worker.NewPruner(cfg.Sync.PruneInterval, stores.Records, stores.Failures, domain.AllTables)

	// 5. Triggers
	triggers := []engine.Trigger{engine.NewTicker(cfg.Sync.Interval), conn}
	if rc := stores.Redis(); rc != nil {
		triggers = append(triggers, flushRequests(rc))
	}

	return &Syncer{
		cfg:          cfg,
		stores:       stores,
		engine:       eng,
		session:      sess,
		guests:       guests,
		importer:     guest.NewImporter(stores.Records, l, sess, cfg.Identity.GuestPrefix),
		conn:         conn,
		healthMon:    healthMon,
		healthServer: healthServer,
		pruner:       pruner,
		triggers:     triggers,
		log:          slog.Default(),
	}, nil
}

// Engine returns the sync engine.
func (s *Syncer) Engine() *engine.Engine { return s.engine }

// Ledger returns the failure ledger.
func (s *Syncer) Ledger() *ledger.Ledger { return s.engine.Ledger() }

// Session returns the identity provider.
func (s *Syncer) Session() *session.Static { return s.session }

// Guests returns the guest data detector.
func (s *Syncer) Guests() *guest.Detector { return s.guests }

// Importer returns the guest data importer.
func (s *Syncer) Importer() *guest.Importer { return s.importer }

// Stores returns the storage backends.
func (s *Syncer) Stores() *Stores { return s.stores }

// Start starts the health server and the trigger loop. It does not block.
func (s *Syncer) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	// Start Health Server
	go func() {
		if err := s.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Health server failed", "error", err)
		}
	}()

	// Start Pruner
	go s.pruner.Start(runCtx)

	// Start Engine
	go func() {
		defer close(s.done)
		if err := s.engine.Run(runCtx, s.triggers...); err != nil {
			s.log.Error("Sync engine failed", "error", err)
		}
	}()

	return nil
}

// Stop stops the trigger loop, waits for the running cycle, then releases
// the health server and storage.
func (s *Syncer) Stop(ctx context.Context) error {
	s.log.Info("Stopping Syncer...")

	if s.cancel != nil {
		s.cancel()
		select {
		case <-s.done:
		case <-ctx.Done():
			s.log.Warn("Timed out waiting for the running cycle")
		}
	}

	var errs []error
	if err := s.healthServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop health server: %w", err))
	}
	if err := s.stores.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close releases storage without starting anything. Used by one-shot commands.
func (s *Syncer) Close() error {
	return s.stores.Close()
}

// flushRequests subscribes to Redis flush requests. A failed subscription
// leaves the other triggers running.
func flushRequests(rc *redisclient.Client) engine.Trigger {
	return engine.TriggerFunc(func(ctx context.Context) (<-chan string, error) {
		events, err := rc.FlushRequests(ctx)
		if err != nil {
			slog.Warn("Redis flush requests disabled", "error", err)
			closed := make(chan string)
			close(closed)
			return closed, nil
		}
		return events, nil
	})
}
