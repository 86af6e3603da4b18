package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vietddude/teamsync/internal/core/domain"
	"github.com/vietddude/teamsync/internal/infra/storage"
)

// Pruner deletes failure ledger entries that no longer describe pending
// work: the record was removed locally or has since been synced.
type Pruner struct {
	interval time.Duration
	records  storage.RecordStore
	failures storage.FailureRepository
	tables   []domain.Table
	log      *slog.Logger
}

// NewPruner creates a new Pruner worker. interval <= 0 disables the loop.
func NewPruner(
	interval time.Duration,
	records storage.RecordStore,
	failures storage.FailureRepository,
	tables []domain.Table,
) *Pruner {
	return &Pruner{
		interval: interval,
		records:  records,
		failures: failures,
		tables:   tables,
		log:      slog.Default().With("component", "pruner"),
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.interval <= 0 {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Initial prune
	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune runs one pass and returns the number of removed entries.
func (p *Pruner) Prune(ctx context.Context) int {
	removed := 0
	for _, t := range p.tables {
		entries, err := p.failures.List(ctx, t)
		if err != nil {
			p.log.Error("Failed to list ledger entries", "table", t, "error", err)
			continue
		}
		for _, e := range entries {
			rec, err := p.records.Get(ctx, t, e.RecordID)
			switch {
			case errors.Is(err, storage.ErrNotFound):
			case err != nil:
				p.log.Warn("Failed to load record", "table", t, "id", e.RecordID, "error", err)
				continue
			case !rec.Synced:
				continue
			}
			if err := p.failures.Delete(ctx, t, e.RecordID); err != nil {
				p.log.Warn("Failed to prune ledger entry", "table", t, "id", e.RecordID, "error", err)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		p.log.Info("Pruned stale ledger entries", "count", removed)
	}
	return removed
}
