package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/teamsync/internal/core/domain"
)

var (
	// ErrNotFound is returned when a record doesn't exist
	ErrNotFound = errors.New("record not found")

	// ErrUnknownTable is returned for a table outside domain.AllTables
	ErrUnknownTable = errors.New("unknown table")
)

// RecordFilter narrows a List call. Zero values disable a clause.
type RecordFilter struct {
	// UnsyncedOnly keeps records with synced = false
	UnsyncedOnly bool

	// Owner keeps records created by this owner
	Owner string

	// OwnerPrefix keeps records whose owner starts with this prefix
	OwnerPrefix string

	// IncludeUnowned widens OwnerPrefix to records with an empty owner
	IncludeUnowned bool

	// Limit caps the number of rows (0 = unlimited)
	Limit int
}

// RecordStore is the local store holding one table per entity.
type RecordStore interface {
	// List returns records ordered by updated_at, then id
	List(ctx context.Context, table domain.Table, filter RecordFilter) ([]*domain.Record, error)

	// Get retrieves a record by id
	Get(ctx context.Context, table domain.Table, id string) (*domain.Record, error)

	// Put inserts or replaces a record
	Put(ctx context.Context, table domain.Table, rec *domain.Record) error

	// MarkSynced sets synced = true and synced_at = at
	MarkSynced(ctx context.Context, table domain.Table, id string, at time.Time) error

	// Delete physically removes a record
	Delete(ctx context.Context, table domain.Table, id string) error

	// ReassignOwner moves every record owned by from to owner to, marking them unsynced
	ReassignOwner(ctx context.Context, table domain.Table, from, to string) (int, error)
}

// FailureRepository persists the sync failure ledger.
type FailureRepository interface {
	// Get retrieves the entry for a record, or nil if none exists
	Get(ctx context.Context, table domain.Table, recordID string) (*domain.FailureEntry, error)

	// Upsert creates or replaces an entry
	Upsert(ctx context.Context, entry *domain.FailureEntry) error

	// Delete removes an entry (no-op if absent)
	Delete(ctx context.Context, table domain.Table, recordID string) error

	// List returns all entries of a table
	List(ctx context.Context, table domain.Table) ([]*domain.FailureEntry, error)
}
