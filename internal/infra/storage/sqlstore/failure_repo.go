package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vietddude/teamsync/internal/core/domain"
)

// FailureRepo implements storage.FailureRepository in the sync_failures table.
type FailureRepo struct {
	db *DB
}

// NewFailureRepo creates a new SQL failure ledger repository.
func NewFailureRepo(db *DB) *FailureRepo {
	return &FailureRepo{db: db}
}

type failureRow struct {
	TableName     string `db:"table_name"`
	RecordID      string `db:"record_id"`
	AttemptCount  int    `db:"attempt_count"`
	LastAttemptAt int64  `db:"last_attempt_at"`
	NextRetryAt   int64  `db:"next_retry_at"`
	LastStatus    int    `db:"last_status"`
	LastError     string `db:"last_error"`
	Permanent     bool   `db:"permanent"`
	ReasonCode    string `db:"reason_code"`
}

const failureColumns = `table_name, record_id, attempt_count, last_attempt_at, next_retry_at,
	last_status, last_error, permanent, reason_code`

func (row *failureRow) toDomain() *domain.FailureEntry {
	return &domain.FailureEntry{
		Table:         domain.Table(row.TableName),
		RecordID:      row.RecordID,
		AttemptCount:  row.AttemptCount,
		LastAttemptAt: fromMillis(row.LastAttemptAt),
		NextRetryAt:   fromMillis(row.NextRetryAt),
		LastStatus:    row.LastStatus,
		LastError:     row.LastError,
		Permanent:     row.Permanent,
		ReasonCode:    domain.ReasonCode(row.ReasonCode),
	}
}

// Get returns the ledger entry of a record, or nil if it has none.
func (r *FailureRepo) Get(
	ctx context.Context,
	table domain.Table,
	recordID string,
) (*domain.FailureEntry, error) {
	query := `
		SELECT ` + failureColumns + `
		FROM sync_failures
		WHERE table_name = ? AND record_id = ?
	`
	var row failureRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(query), string(table), recordID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get failure entry: %w", err)
	}
	return row.toDomain(), nil
}

// Upsert creates or replaces a ledger entry.
func (r *FailureRepo) Upsert(ctx context.Context, e *domain.FailureEntry) error {
	query := `
		INSERT INTO sync_failures (` + failureColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (table_name, record_id) DO UPDATE SET
			attempt_count = excluded.attempt_count,
			last_attempt_at = excluded.last_attempt_at,
			next_retry_at = excluded.next_retry_at,
			last_status = excluded.last_status,
			last_error = excluded.last_error,
			permanent = excluded.permanent,
			reason_code = excluded.reason_code
	`
	_, err := r.db.ExecContext(
		ctx,
		r.db.Rebind(query),
		string(e.Table),
		e.RecordID,
		e.AttemptCount,
		toMillis(e.LastAttemptAt),
		toMillis(e.NextRetryAt),
		e.LastStatus,
		e.LastError,
		e.Permanent,
		string(e.ReasonCode),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert failure entry: %w", err)
	}
	return nil
}

// Delete removes a ledger entry.
func (r *FailureRepo) Delete(ctx context.Context, table domain.Table, recordID string) error {
	query := `DELETE FROM sync_failures WHERE table_name = ? AND record_id = ?`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), string(table), recordID); err != nil {
		return fmt.Errorf("failed to delete failure entry: %w", err)
	}
	return nil
}

// List returns every ledger entry of a table.
func (r *FailureRepo) List(ctx context.Context, table domain.Table) ([]*domain.FailureEntry, error) {
	query := `
		SELECT ` + failureColumns + `
		FROM sync_failures
		WHERE table_name = ?
		ORDER BY record_id
	`
	var rows []failureRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), string(table)); err != nil {
		return nil, fmt.Errorf("failed to list failure entries: %w", err)
	}

	entries := make([]*domain.FailureEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].toDomain())
	}
	return entries, nil
}
