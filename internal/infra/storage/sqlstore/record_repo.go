package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vietddude/teamsync/internal/core/domain"
	"github.com/vietddude/teamsync/internal/infra/storage"
)

// RecordRepo implements storage.RecordStore with one SQL table per entity.
type RecordRepo struct {
	db *DB
}

// NewRecordRepo creates a new SQL record repository.
func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

type recordRow struct {
	ID             string        `db:"id"`
	CreatedByOwner string        `db:"created_by_owner"`
	Synced         bool          `db:"synced"`
	SyncedAt       sql.NullInt64 `db:"synced_at"`
	IsDeleted      bool          `db:"is_deleted"`
	CreatedAt      int64         `db:"created_at"`
	UpdatedAt      int64         `db:"updated_at"`
	Data           string        `db:"data"`
}

const recordColumns = "id, created_by_owner, synced, synced_at, is_deleted, created_at, updated_at, data"

func (row *recordRow) toDomain() (*domain.Record, error) {
	rec := &domain.Record{
		ID:             row.ID,
		CreatedByOwner: row.CreatedByOwner,
		Synced:         row.Synced,
		IsDeleted:      row.IsDeleted,
		CreatedAt:      fromMillis(row.CreatedAt),
		UpdatedAt:      fromMillis(row.UpdatedAt),
	}
	if row.SyncedAt.Valid {
		t := fromMillis(row.SyncedAt.Int64)
		rec.SyncedAt = &t
	}
	if row.Data != "" {
		if err := json.Unmarshal([]byte(row.Data), &rec.Data); err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", row.ID, err)
		}
	}
	return rec, nil
}

func tableName(table domain.Table) (string, error) {
	if !table.Valid() {
		return "", fmt.Errorf("%w: %s", storage.ErrUnknownTable, table)
	}
	return string(table), nil
}

// List returns records matching the filter, oldest change first.
func (r *RecordRepo) List(
	ctx context.Context,
	table domain.Table,
	f storage.RecordFilter,
) ([]*domain.Record, error) {
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if f.UnsyncedOnly {
		where = append(where, "synced = ?")
		args = append(args, false)
	}
	if f.Owner != "" {
		where = append(where, "created_by_owner = ?")
		args = append(args, f.Owner)
	}
	if f.OwnerPrefix != "" {
		// substr instead of LIKE keeps % and _ in the prefix literal.
		clause := "substr(created_by_owner, 1, ?) = ?"
		if f.IncludeUnowned {
			clause = "(" + clause + " OR created_by_owner = '')"
		}
		where = append(where, clause)
		args = append(args, utf8.RuneCountInString(f.OwnerPrefix), f.OwnerPrefix)
	}

	query := "SELECT " + recordColumns + " FROM " + name
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at ASC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", name, err)
	}

	records := make([]*domain.Record, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Get retrieves a record by id.
func (r *RecordRepo) Get(ctx context.Context, table domain.Table, id string) (*domain.Record, error) {
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}

	var row recordRow
	query := "SELECT " + recordColumns + " FROM " + name + " WHERE id = ?"
	err = r.db.GetContext(ctx, &row, r.db.Rebind(query), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", name, id, err)
	}
	return row.toDomain()
}

// Put inserts or replaces a record.
func (r *RecordRepo) Put(ctx context.Context, table domain.Table, rec *domain.Record) error {
	name, err := tableName(table)
	if err != nil {
		return err
	}

	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
	}
	var syncedAt sql.NullInt64
	if rec.SyncedAt != nil {
		syncedAt = sql.NullInt64{Int64: toMillis(*rec.SyncedAt), Valid: true}
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	query := `
		INSERT INTO ` + name + ` (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			created_by_owner = excluded.created_by_owner,
			synced = excluded.synced,
			synced_at = excluded.synced_at,
			is_deleted = excluded.is_deleted,
			updated_at = excluded.updated_at,
			data = excluded.data
	`
	_, err = r.db.ExecContext(
		ctx,
		r.db.Rebind(query),
		rec.ID,
		rec.CreatedByOwner,
		rec.Synced,
		syncedAt,
		rec.IsDeleted,
		toMillis(createdAt),
		toMillis(updatedAt),
		string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", name, rec.ID, err)
	}
	return nil
}

// MarkSynced flags a record as pushed at the given time.
func (r *RecordRepo) MarkSynced(ctx context.Context, table domain.Table, id string, at time.Time) error {
	name, err := tableName(table)
	if err != nil {
		return err
	}

	query := "UPDATE " + name + " SET synced = ?, synced_at = ? WHERE id = ?"
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), true, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("failed to mark %s/%s synced: %w", name, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Delete physically removes a record.
func (r *RecordRepo) Delete(ctx context.Context, table domain.Table, id string) error {
	name, err := tableName(table)
	if err != nil {
		return err
	}

	query := "DELETE FROM " + name + " WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), id); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", name, id, err)
	}
	return nil
}

// ReassignOwner hands records of one owner to another and queues them for sync.
func (r *RecordRepo) ReassignOwner(ctx context.Context, table domain.Table, from, to string) (int, error) {
	name, err := tableName(table)
	if err != nil {
		return 0, err
	}

	query := "UPDATE " + name + " SET created_by_owner = ?, synced = ? WHERE created_by_owner = ?"
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), to, false, from)
	if err != nil {
		return 0, fmt.Errorf("failed to reassign %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
