// Package progress reports how much local data is still waiting to sync.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vietddude/teamsync/internal/core/domain"
	"github.com/vietddude/teamsync/internal/core/session"
	"github.com/vietddude/teamsync/internal/infra/storage"
	"github.com/vietddude/teamsync/internal/syncing/ledger"
	"github.com/vietddude/teamsync/internal/syncing/metrics"
)

// TableCounts are the pending records of one table.
type TableCounts struct {
	Count    int `json:"count"`
	Eligible int `json:"eligible"`
	Blocked  int `json:"blocked"`
}

// Snapshot is a point-in-time view of pending work.
type Snapshot struct {
	Tables        map[domain.Table]TableCounts
	Total         int
	Eligible      int
	Blocked       int
	NextRetryAt   *time.Time // gate deadline, else the soonest scheduled retry
	GateActive    bool
	Authenticated bool
	At            time.Time
}

type snapshotJSON struct {
	Tables        map[domain.Table]TableCounts `json:"tables"`
	Total         int                          `json:"total"`
	Eligible      int                          `json:"eligible"`
	Blocked       int                          `json:"blocked"`
	NextRetryAtMs *int64                       `json:"nextRetryAtMs,omitempty"`
	GateActive    bool                         `json:"gateActive"`
	Authenticated bool                         `json:"authenticated"`
	AtMs          int64                        `json:"atMs"`
}

// MarshalJSON encodes timestamps as unix milliseconds.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{
		Tables:        s.Tables,
		Total:         s.Total,
		Eligible:      s.Eligible,
		Blocked:       s.Blocked,
		GateActive:    s.GateActive,
		Authenticated: s.Authenticated,
		AtMs:          s.At.UnixMilli(),
	}
	if s.NextRetryAt != nil {
		ms := s.NextRetryAt.UnixMilli()
		out.NextRetryAtMs = &ms
	}
	return json.Marshal(out)
}

// Reporter computes snapshots. It never writes.
type Reporter struct {
	store       storage.RecordStore
	ledger      *ledger.Ledger
	session     session.Provider
	tables      []domain.Table
	guestPrefix string
}

// NewReporter creates a reporter over tables (processing order).
func NewReporter(
	store storage.RecordStore,
	l *ledger.Ledger,
	sess session.Provider,
	tables []domain.Table,
	guestPrefix string,
) *Reporter {
	if len(tables) == 0 {
		tables = domain.AllTables
	}
	if guestPrefix == "" {
		guestPrefix = domain.DefaultGuestPrefix
	}
	return &Reporter{
		store:       store,
		ledger:      l,
		session:     sess,
		tables:      tables,
		guestPrefix: guestPrefix,
	}
}

// PendingCounts joins unsynced records of the current owner with the
// failure ledger and the backoff gate.
func (r *Reporter) PendingCounts(ctx context.Context) (Snapshot, error) {
	now := r.ledger.Policy().Now()
	gate := r.ledger.Gate()

	snap := Snapshot{
		Tables:     make(map[domain.Table]TableCounts, len(r.tables)),
		GateActive: gate.Active(now),
		At:         now,
	}
	for _, t := range r.tables {
		snap.Tables[t] = TableCounts{}
	}
	if snap.GateActive {
		until := gate.Until()
		snap.NextRetryAt = &until
	}

	owner, ok := r.session.Owner(ctx)
	if !ok || domain.IsGuestOwner(owner, r.guestPrefix) {
		return snap, nil
	}
	snap.Authenticated = true

	var soonest time.Time
	for _, t := range r.tables {
		recs, err := r.store.List(ctx, t, storage.RecordFilter{UnsyncedOnly: true, Owner: owner})
		if err != nil {
			return snap, fmt.Errorf("failed to count %s: %w", t, err)
		}
		entries, err := r.ledger.Entries(ctx, t)
		if err != nil {
			return snap, fmt.Errorf("failed to read ledger for %s: %w", t, err)
		}
		byID := make(map[string]*domain.FailureEntry, len(entries))
		for _, e := range entries {
			byID[e.RecordID] = e
		}

		var c TableCounts
		for _, rec := range recs {
			c.Count++
			entry := byID[rec.ID]
			if entry != nil && entry.Permanent {
				c.Blocked++
				continue
			}
			if snap.GateActive {
				continue
			}
			if ledger.Eligible(entry, now) {
				c.Eligible++
				continue
			}
			if soonest.IsZero() || entry.NextRetryAt.Before(soonest) {
				soonest = entry.NextRetryAt
			}
		}

		snap.Tables[t] = c
		snap.Total += c.Count
		snap.Eligible += c.Eligible
		snap.Blocked += c.Blocked

		metrics.PendingRecords.WithLabelValues(string(t), "eligible").Set(float64(c.Eligible))
		metrics.PendingRecords.WithLabelValues(string(t), "blocked").Set(float64(c.Blocked))
		metrics.PendingRecords.WithLabelValues(string(t), "waiting").Set(float64(c.Count - c.Eligible - c.Blocked))
	}

	if !snap.GateActive && !soonest.IsZero() {
		snap.NextRetryAt = &soonest
	}
	return snap, nil
}
