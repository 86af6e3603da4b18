// Package engine runs flush cycles that push locally changed records to the
// remote API in dependency order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/teamsync/internal/core/domain"
	"github.com/vietddude/teamsync/internal/core/session"
	"github.com/vietddude/teamsync/internal/infra/storage"
	"github.com/vietddude/teamsync/internal/syncing/ledger"
	"github.com/vietddude/teamsync/internal/syncing/metrics"
	"github.com/vietddude/teamsync/internal/syncing/progress"
	"github.com/vietddude/teamsync/internal/syncing/tables"
)

// DefaultBatchSize caps eligible records per table per cycle.
const DefaultBatchSize = 50

// Connectivity reports whether the remote is reachable.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// GuestDetector reports unresolved guest data.
type GuestDetector interface {
	ImportPending(ctx context.Context) (bool, error)
}

// Config holds engine settings.
type Config struct {
	BatchSize   int
	GuestPrefix string
}

// Engine pushes unsynced records, one cycle at a time.
type Engine struct {
	cfg      Config
	store    storage.RecordStore
	ledger   *ledger.Ledger
	registry *tables.Registry
	adapters []*tables.Adapter
	session  session.Provider
	conn     Connectivity
	guests   GuestDetector
	reporter *progress.Reporter

	running atomic.Bool

	mu        sync.RWMutex
	listeners []Listener

	log *slog.Logger
}

// New creates an engine. guests may be nil.
func New(
	cfg Config,
	store storage.RecordStore,
	remote tables.Remote,
	l *ledger.Ledger,
	registry *tables.Registry,
	sess session.Provider,
	conn Connectivity,
	guests GuestDetector,
) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.GuestPrefix == "" {
		cfg.GuestPrefix = domain.DefaultGuestPrefix
	}
	if registry == nil {
		registry = tables.MustDefaultRegistry()
	}

	ordered := registry.Ordered()
	adapters := make([]*tables.Adapter, 0, len(ordered))
	for _, d := range ordered {
		adapters = append(adapters, tables.NewAdapter(d, store, remote, cfg.GuestPrefix))
	}

	return &Engine{
		cfg:      cfg,
		store:    store,
		ledger:   l,
		registry: registry,
		adapters: adapters,
		session:  sess,
		conn:     conn,
		guests:   guests,
		reporter: progress.NewReporter(store, l, sess, registry.Tables(), cfg.GuestPrefix),
		log:      slog.Default().With("component", "engine"),
	}
}

// Reporter returns the progress reporter sharing the engine's gate and ledger.
func (e *Engine) Reporter() *progress.Reporter {
	return e.reporter
}

// Ledger returns the engine's failure ledger.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}

// Running reports whether a cycle is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// OnProgress registers a listener for cycle start and end events.
func (e *Engine) OnProgress(l Listener) {
	e.mu.Lock()
	e.listeners = append(e.listeners, l)
	e.mu.Unlock()
}

func (e *Engine) emit(ev Event) {
	e.mu.RLock()
	ls := make([]Listener, len(e.listeners))
	copy(ls, e.listeners)
	e.mu.RUnlock()

	for _, l := range ls {
		l(ev)
	}
}

// Flush runs one cycle. A call while another cycle runs returns immediately
// with Skipped = SkipBusy. The only error is ErrGuestImportPending or a
// failing guest detector.
func (e *Engine) Flush(ctx context.Context) (*Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		metrics.CyclesTotal.WithLabelValues("skipped_" + string(SkipBusy)).Inc()
		return &Result{Skipped: SkipBusy}, nil
	}
	defer e.running.Store(false)

	res := &Result{CycleID: uuid.NewString()}
	log := e.log.With("cycle", res.CycleID)

	owner, reason, err := e.preconditions(ctx)
	if err != nil {
		return res, err
	}
	if reason != SkipNone {
		res.Skipped = reason
		metrics.CyclesTotal.WithLabelValues("skipped_" + string(reason)).Inc()
		if reason == SkipGuestImport {
			log.Warn("Guest data must be imported before sync can run")
			return res, ErrGuestImportPending
		}
		log.Debug("Flush skipped", "reason", reason)
		return res, nil
	}

	start := time.Now()
	e.emit(Event{Phase: PhaseStart, CycleID: res.CycleID, Snapshot: e.snapshot(ctx, log)})
	log.Debug("Flush started", "owner", owner)

	for _, a := range e.adapters {
		if e.gated() {
			log.Warn("Backoff gate raised, skipping remaining tables",
				"table", a.Table(),
				"until", e.ledger.Gate().Until(),
			)
			break
		}
		if aborted := e.syncTable(ctx, a, owner, res, log); aborted {
			res.Aborted = true
			log.Warn("Flush aborted on authentication failure", "table", a.Table())
			break
		}
	}

	res.Duration = time.Since(start)
	res.Progress = e.snapshot(ctx, log)
	e.emit(Event{Phase: PhaseEnd, CycleID: res.CycleID, Snapshot: res.Progress, Result: res})

	outcome := "completed"
	if res.Aborted {
		outcome = "aborted"
	}
	metrics.CyclesTotal.WithLabelValues(outcome).Inc()
	metrics.CycleDuration.Observe(res.Duration.Seconds())
	if until := e.ledger.Gate().Until(); !until.IsZero() {
		metrics.GateUntil.Set(float64(until.Unix()))
	}

	if res.Synced > 0 || res.Failed > 0 || res.Purged > 0 {
		log.Info("Flush finished",
			"synced", res.Synced,
			"purged", res.Purged,
			"failed", res.Failed,
			"aborted", res.Aborted,
			"duration", res.Duration,
		)
	}
	return res, nil
}

func (e *Engine) preconditions(ctx context.Context) (string, SkipReason, error) {
	if e.conn != nil && !e.conn.Online(ctx) {
		return "", SkipOffline, nil
	}

	owner, ok := e.session.Owner(ctx)
	if !ok || domain.IsGuestOwner(owner, e.cfg.GuestPrefix) {
		return "", SkipUnauthenticated, nil
	}

	if e.gated() {
		return "", SkipBackoff, nil
	}

	if e.guests != nil {
		pending, err := e.guests.ImportPending(ctx)
		if err != nil {
			return "", SkipNone, fmt.Errorf("failed to check guest data: %w", err)
		}
		if pending {
			return "", SkipGuestImport, nil
		}
	}
	return owner, SkipNone, nil
}

func (e *Engine) snapshot(ctx context.Context, log *slog.Logger) progress.Snapshot {
	snap, err := e.reporter.PendingCounts(ctx)
	if err != nil {
		log.Warn("Failed to compute pending counts", "error", err)
	}
	return snap
}

// syncTable processes one table and reports whether the cycle must abort.
func (e *Engine) syncTable(
	ctx context.Context,
	a *tables.Adapter,
	owner string,
	res *Result,
	log *slog.Logger,
) bool {
	table := a.Table()
	log = log.With("table", table)

	candidates, err := a.ListCandidates(ctx, owner)
	if err != nil {
		log.Error("Failed to list candidates", "error", err)
		return false
	}

	// Never-pushed soft deletes need no remote call, so they bypass the
	// ledger and the batch cap.
	var purges, deletes, upserts []*domain.Record
	selected := 0
	for _, rec := range candidates {
		if rec.IsDeleted && rec.NeverPushed() {
			purges = append(purges, rec)
			continue
		}
		if selected >= e.cfg.BatchSize {
			continue
		}
		ok, err := e.ledger.ShouldAttempt(ctx, table, rec.ID)
		if err != nil {
			log.Error("Failed to check ledger", "record", rec.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		selected++
		if rec.IsDeleted {
			deletes = append(deletes, rec)
		} else {
			upserts = append(upserts, rec)
		}
	}
	if selected == 0 && len(purges) == 0 {
		return false
	}
	log.Debug("Syncing table", "purges", len(purges), "deletes", len(deletes), "upserts", len(upserts))

	for _, rec := range purges {
		e.purge(ctx, table, rec, res, log)
	}
	for _, rec := range deletes {
		if e.gated() {
			return false
		}
		if e.syncDelete(ctx, a, rec, res, log) {
			return true
		}
	}
	for _, rec := range upserts {
		if e.gated() {
			return false
		}
		if e.syncUpsert(ctx, a, rec, res, log) {
			return true
		}
	}
	return false
}

func (e *Engine) gated() bool {
	return e.ledger.Gate().Active(e.ledger.Policy().Now())
}

// purge removes a soft-deleted record the remote never saw, along with any
// ledger entry it collected while pending.
func (e *Engine) purge(ctx context.Context, table domain.Table, rec *domain.Record, res *Result, log *slog.Logger) {
	if err := e.store.Delete(ctx, table, rec.ID); err != nil {
		log.Error("Failed to purge local record", "record", rec.ID, "error", err)
		res.fail(table, rec.ID, err)
		return
	}
	e.clear(ctx, table, rec.ID, log)
	res.Purged++
	metrics.RecordsPurged.WithLabelValues(string(table)).Inc()
}

func (e *Engine) syncDelete(
	ctx context.Context,
	a *tables.Adapter,
	rec *domain.Record,
	res *Result,
	log *slog.Logger,
) bool {
	table := a.Table()

	if err := a.Delete(ctx, rec.ID); err != nil {
		return e.recordFailure(ctx, table, rec.ID, err, res, log)
	}
	if err := e.store.Delete(ctx, table, rec.ID); err != nil {
		log.Error("Failed to delete local record", "record", rec.ID, "error", err)
		res.fail(table, rec.ID, err)
		return false
	}
	e.clear(ctx, table, rec.ID, log)
	res.Synced++
	metrics.RecordsSynced.WithLabelValues(string(table), "delete").Inc()
	return false
}

func (e *Engine) syncUpsert(
	ctx context.Context,
	a *tables.Adapter,
	rec *domain.Record,
	res *Result,
	log *slog.Logger,
) bool {
	table := a.Table()

	payload, err := a.Serialize(rec)
	if err != nil {
		return e.recordFailure(ctx, table, rec.ID, err, res, log)
	}

	op := "update"
	if rec.NeverPushed() {
		op = "create"
		remoteID, err := a.Create(ctx, payload)
		if err != nil {
			return e.recordFailure(ctx, table, rec.ID, err, res, log)
		}
		if remoteID != "" && remoteID != rec.ID {
			log.Warn("Remote assigned a different id", "record", rec.ID, "remote_id", remoteID)
		}
	} else if err := a.Update(ctx, rec.ID, payload); err != nil {
		return e.recordFailure(ctx, table, rec.ID, err, res, log)
	}

	if err := e.store.MarkSynced(ctx, table, rec.ID, e.ledger.Policy().Now()); err != nil {
		log.Error("Failed to mark record synced", "record", rec.ID, "error", err)
		res.fail(table, rec.ID, err)
		return false
	}
	e.clear(ctx, table, rec.ID, log)
	res.Synced++
	metrics.RecordsSynced.WithLabelValues(string(table), op).Inc()
	return false
}

// recordFailure stores the failure in the ledger and reports whether the
// cycle must abort.
func (e *Engine) recordFailure(
	ctx context.Context,
	table domain.Table,
	id string,
	cause error,
	res *Result,
	log *slog.Logger,
) bool {
	res.fail(table, id, cause)

	out, err := e.ledger.RecordFailure(ctx, table, id, cause)
	if err != nil {
		log.Error("Failed to record sync failure", "record", id, "error", err)
	}
	metrics.RecordsFailed.WithLabelValues(string(table), string(out.Classification.ReasonCode)).Inc()

	if out.AbortCycle {
		return true
	}

	level := slog.LevelWarn
	if errors.Is(cause, context.Canceled) {
		level = slog.LevelDebug
	}
	attrs := []any{
		"record", id,
		"reason", out.Classification.ReasonCode,
		"error", cause,
	}
	if out.Entry != nil {
		attrs = append(attrs,
			"attempt", out.Entry.AttemptCount,
			"permanent", out.Entry.Permanent,
			"next_retry_at", out.Entry.NextRetryAt,
		)
	}
	log.Log(ctx, level, "Record sync failed", attrs...)
	return false
}

func (e *Engine) clear(ctx context.Context, table domain.Table, id string, log *slog.Logger) {
	if err := e.ledger.ClearFailure(ctx, table, id); err != nil {
		log.Warn("Failed to clear ledger entry", "record", id, "error", err)
	}
}
