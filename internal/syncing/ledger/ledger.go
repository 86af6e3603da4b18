// Package ledger tracks per-record sync failures and decides when a record
// may be attempted again.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/teamsync/internal/core/domain"
	"github.com/vietddude/teamsync/internal/infra/storage"
	"github.com/vietddude/teamsync/internal/syncing/backoff"
	"github.com/vietddude/teamsync/internal/syncing/classify"
)

// Outcome is the result of recording a failure.
type Outcome struct {
	// AbortCycle is set for auth failures; no entry was written.
	AbortCycle bool

	Classification classify.Classification
	Entry          *domain.FailureEntry
}

// Ledger owns the failure entries of every table.
type Ledger struct {
	repo   storage.FailureRepository
	policy *backoff.Policy
	gate   *backoff.Gate
	log    *slog.Logger
}

// New creates a ledger. The gate is shared with the engine and reporter.
func New(repo storage.FailureRepository, policy *backoff.Policy, gate *backoff.Gate) *Ledger {
	if policy == nil {
		policy = backoff.DefaultPolicy()
	}
	if gate == nil {
		gate = backoff.NewGate()
	}
	return &Ledger{
		repo:   repo,
		policy: policy,
		gate:   gate,
		log:    slog.Default().With("component", "ledger"),
	}
}

// Gate returns the global backoff gate.
func (l *Ledger) Gate() *backoff.Gate {
	return l.gate
}

// Policy returns the backoff policy.
func (l *Ledger) Policy() *backoff.Policy {
	return l.policy
}

// ShouldAttempt reports whether a record may be pushed now.
func (l *Ledger) ShouldAttempt(ctx context.Context, table domain.Table, id string) (bool, error) {
	now := l.policy.Now()
	if l.gate.Active(now) {
		return false, nil
	}

	entry, err := l.repo.Get(ctx, table, id)
	if err != nil {
		return false, fmt.Errorf("failed to read ledger for %s/%s: %w", table, id, err)
	}
	return Eligible(entry, now), nil
}

// Eligible applies the per-record part of ShouldAttempt to an entry (nil = no failures).
func Eligible(entry *domain.FailureEntry, now time.Time) bool {
	if entry == nil {
		return true
	}
	if entry.Permanent {
		return false
	}
	return !entry.Waiting(now)
}

// RecordFailure classifies err and schedules the next attempt of the record.
func (l *Ledger) RecordFailure(
	ctx context.Context,
	table domain.Table,
	id string,
	cause error,
) (Outcome, error) {
	c := classify.Classify(cause)
	if c.Disposition == domain.DispositionAuth {
		return Outcome{AbortCycle: true, Classification: c}, nil
	}

	entry, err := l.repo.Get(ctx, table, id)
	if err != nil {
		return Outcome{Classification: c}, fmt.Errorf("failed to read ledger for %s/%s: %w", table, id, err)
	}
	if entry == nil {
		entry = &domain.FailureEntry{Table: table, RecordID: id}
	}

	now := l.policy.Now()
	entry.AttemptCount++
	entry.LastAttemptAt = now
	entry.NextRetryAt = l.policy.NextRetryAt(now, entry.AttemptCount, c.RetryAfter)
	entry.LastStatus = c.Status
	entry.LastError = c.Message
	entry.Permanent = c.Disposition == domain.DispositionPermanent
	entry.ReasonCode = c.ReasonCode

	if err := l.repo.Upsert(ctx, entry); err != nil {
		return Outcome{Classification: c}, fmt.Errorf("failed to write ledger for %s/%s: %w", table, id, err)
	}

	if c.ReasonCode == domain.ReasonRateLimit && l.gate.Raise(entry.NextRetryAt) {
		l.log.Warn("Rate limited, pausing sync",
			"table", table,
			"record", id,
			"until", entry.NextRetryAt,
		)
	}

	return Outcome{Classification: c, Entry: entry}, nil
}

// ClearFailure forgets the failures of a record.
func (l *Ledger) ClearFailure(ctx context.Context, table domain.Table, id string) error {
	if err := l.repo.Delete(ctx, table, id); err != nil {
		return fmt.Errorf("failed to clear ledger for %s/%s: %w", table, id, err)
	}
	return nil
}

// Entries lists the ledger entries of a table.
func (l *Ledger) Entries(ctx context.Context, table domain.Table) ([]*domain.FailureEntry, error) {
	return l.repo.List(ctx, table)
}

// Reset removes entries of a table so their records are retried on the next
// cycle. With permanentOnly, transient entries keep their schedule.
func (l *Ledger) Reset(ctx context.Context, table domain.Table, permanentOnly bool) (int, error) {
	entries, err := l.repo.List(ctx, table)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if permanentOnly && !e.Permanent {
			continue
		}
		if err := l.repo.Delete(ctx, table, e.RecordID); err != nil {
			return removed, fmt.Errorf("failed to reset %s/%s: %w", table, e.RecordID, err)
		}
		removed++
	}
	return removed, nil
}
