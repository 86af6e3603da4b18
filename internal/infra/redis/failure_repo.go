package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vietddude/teamsync/internal/core/domain"
)

// FailureRepo implements storage.FailureRepository using Redis.
// Entries are JSON blobs; a per-table sorted set scored by next retry time indexes them.
type FailureRepo struct {
	rdb    *redis.Client
	prefix string
}

// NewFailureRepo creates a new Redis-backed failure ledger repository.
func NewFailureRepo(client *Client, prefix string) *FailureRepo {
	if prefix == "" {
		prefix = "teamsync"
	}
	return &FailureRepo{
		rdb:    client.rdb,
		prefix: prefix,
	}
}

// Key helpers
func (r *FailureRepo) indexKey(table domain.Table) string {
	return fmt.Sprintf("%s:failures:%s", r.prefix, table)
}

func (r *FailureRepo) entryKey(table domain.Table, id string) string {
	return fmt.Sprintf("%s:failure:%s:%s", r.prefix, table, id)
}

// Get retrieves the entry of a record.
func (r *FailureRepo) Get(ctx context.Context, table domain.Table, id string) (*domain.FailureEntry, error) {
	data, err := r.rdb.Get(ctx, r.entryKey(table, id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get failure entry: %w", err)
	}

	var e domain.FailureEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal failure entry: %w", err)
	}
	return &e, nil
}

// Upsert stores the entry and re-scores it in the table index.
func (r *FailureRepo) Upsert(ctx context.Context, e *domain.FailureEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal failure entry: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.entryKey(e.Table, e.RecordID), data, 0)
	pipe.ZAdd(ctx, r.indexKey(e.Table), redis.Z{
		Score:  float64(e.NextRetryAt.UnixMilli()),
		Member: e.RecordID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to upsert failure entry: %w", err)
	}
	return nil
}

// Delete removes the entry and its index member.
func (r *FailureRepo) Delete(ctx context.Context, table domain.Table, id string) error {
	pipe := r.rdb.TxPipeline()
	pipe.ZRem(ctx, r.indexKey(table), id)
	pipe.Del(ctx, r.entryKey(table, id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete failure entry: %w", err)
	}
	return nil
}

// List returns the entries of a table, soonest retry first.
func (r *FailureRepo) List(ctx context.Context, table domain.Table) ([]*domain.FailureEntry, error) {
	ids, err := r.rdb.ZRange(ctx, r.indexKey(table), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}

	entries := make([]*domain.FailureEntry, 0, len(ids))
	for _, id := range ids {
		data, err := r.rdb.Get(ctx, r.entryKey(table, id)).Bytes()
		if err == redis.Nil {
			// Index member without data, drop it
			if err := r.rdb.ZRem(ctx, r.indexKey(table), id).Err(); err != nil {
				return nil, fmt.Errorf("failed to drop stale index member %s: %w", id, err)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get failure entry: %w", err)
		}

		var e domain.FailureEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal failure entry %s/%s: %w", table, id, err)
		}
		entries = append(entries, &e)
	}
	return entries, nil
}
