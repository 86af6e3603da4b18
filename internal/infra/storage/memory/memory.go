package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/teamsync/internal/core/domain"
	"github.com/vietddude/teamsync/internal/infra/storage"
)

type MemoryStorage struct {
	records  map[domain.Table]map[string]*domain.Record
	failures map[domain.Table]map[string]*domain.FailureEntry
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	s := &MemoryStorage{
		records:  make(map[domain.Table]map[string]*domain.Record),
		failures: make(map[domain.Table]map[string]*domain.FailureEntry),
	}
	for _, t := range domain.AllTables {
		s.records[t] = make(map[string]*domain.Record)
		s.failures[t] = make(map[string]*domain.FailureEntry)
	}
	return s
}

// -----------------------------------------------------------------------------
// Record Repository
// -----------------------------------------------------------------------------

type RecordRepo struct {
	store *MemoryStorage
}

func NewRecordRepo(store *MemoryStorage) *RecordRepo {
	return &RecordRepo{store: store}
}

func (r *RecordRepo) rows(table domain.Table) (map[string]*domain.Record, error) {
	rows, ok := r.store.records[table]
	if !ok {
		return nil, storage.ErrUnknownTable
	}
	return rows, nil
}

func (r *RecordRepo) List(ctx context.Context, table domain.Table, f storage.RecordFilter) ([]*domain.Record, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	rows, err := r.rows(table)
	if err != nil {
		return nil, err
	}

	var out []*domain.Record
	for _, rec := range rows {
		if f.UnsyncedOnly && rec.Synced {
			continue
		}
		if f.Owner != "" && rec.CreatedByOwner != f.Owner {
			continue
		}
		if f.OwnerPrefix != "" && !strings.HasPrefix(rec.CreatedByOwner, f.OwnerPrefix) &&
			!(f.IncludeUnowned && rec.CreatedByOwner == "") {
			continue
		}
		out = append(out, rec.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *RecordRepo) Get(ctx context.Context, table domain.Table, id string) (*domain.Record, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	rows, err := r.rows(table)
	if err != nil {
		return nil, err
	}
	rec, ok := rows[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *RecordRepo) Put(ctx context.Context, table domain.Table, rec *domain.Record) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rows, err := r.rows(table)
	if err != nil {
		return err
	}
	rows[rec.ID] = rec.Clone()
	return nil
}

func (r *RecordRepo) MarkSynced(ctx context.Context, table domain.Table, id string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rows, err := r.rows(table)
	if err != nil {
		return err
	}
	rec, ok := rows[id]
	if !ok {
		return storage.ErrNotFound
	}
	rec.Synced = true
	rec.SyncedAt = &at
	return nil
}

func (r *RecordRepo) Delete(ctx context.Context, table domain.Table, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rows, err := r.rows(table)
	if err != nil {
		return err
	}
	delete(rows, id)
	return nil
}

func (r *RecordRepo) ReassignOwner(ctx context.Context, table domain.Table, from, to string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rows, err := r.rows(table)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, rec := range rows {
		if rec.CreatedByOwner == from {
			rec.CreatedByOwner = to
			rec.Synced = false
			n++
		}
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Failure Repository
// -----------------------------------------------------------------------------

type FailureRepo struct {
	store *MemoryStorage
}

func NewFailureRepo(store *MemoryStorage) *FailureRepo {
	return &FailureRepo{store: store}
}

func (r *FailureRepo) Get(ctx context.Context, table domain.Table, id string) (*domain.FailureEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	entries, ok := r.store.failures[table]
	if !ok {
		return nil, storage.ErrUnknownTable
	}
	e, ok := entries[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *FailureRepo) Upsert(ctx context.Context, e *domain.FailureEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	entries, ok := r.store.failures[e.Table]
	if !ok {
		return storage.ErrUnknownTable
	}
	cp := *e
	entries[e.RecordID] = &cp
	return nil
}

func (r *FailureRepo) Delete(ctx context.Context, table domain.Table, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	entries, ok := r.store.failures[table]
	if !ok {
		return storage.ErrUnknownTable
	}
	delete(entries, id)
	return nil
}

func (r *FailureRepo) List(ctx context.Context, table domain.Table) ([]*domain.FailureEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	entries, ok := r.store.failures[table]
	if !ok {
		return nil, storage.ErrUnknownTable
	}
	out := make([]*domain.FailureEntry, 0, len(entries))
	for _, e := range entries {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID < out[j].RecordID })
	return out, nil
}
