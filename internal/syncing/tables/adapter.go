package tables

import (
	"context"
	"fmt"

	"github.com/vietddude/teamsync/internal/core/domain"
	"github.com/vietddude/teamsync/internal/infra/storage"
)

// localOnlyFields never leave the device.
var localOnlyFields = []string{"synced", "syncedAt", "isDeleted", "createdByOwner"}

// Adapter binds a descriptor to the local store and the remote API.
type Adapter struct {
	desc        Descriptor
	store       storage.RecordStore
	remote      Remote
	guestPrefix string
}

// NewAdapter creates an adapter for one table.
func NewAdapter(desc Descriptor, store storage.RecordStore, remote Remote, guestPrefix string) *Adapter {
	if guestPrefix == "" {
		guestPrefix = domain.DefaultGuestPrefix
	}
	return &Adapter{
		desc:        desc,
		store:       store,
		remote:      remote,
		guestPrefix: guestPrefix,
	}
}

// Table returns the adapter's table.
func (a *Adapter) Table() domain.Table {
	return a.desc.Table
}

// Descriptor returns the adapter's descriptor.
func (a *Adapter) Descriptor() Descriptor {
	return a.desc
}

// ListCandidates returns unsynced records of owner, oldest change first.
// Guest-owned records are never candidates.
func (a *Adapter) ListCandidates(ctx context.Context, owner string) ([]*domain.Record, error) {
	if domain.IsGuestOwner(owner, a.guestPrefix) {
		return nil, nil
	}
	recs, err := a.store.List(ctx, a.desc.Table, storage.RecordFilter{
		UnsyncedOnly: true,
		Owner:        owner,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s candidates: %w", a.desc.Table, err)
	}

	out := recs[:0]
	for _, r := range recs {
		if r.Synced || domain.IsGuestOwner(r.CreatedByOwner, a.guestPrefix) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Serialize builds the remote payload of rec. Every payload carries the
// record id and its updatedAt for last-write-wins on the server.
func (a *Adapter) Serialize(rec *domain.Record) (map[string]any, error) {
	data := rec.Data
	if data == nil {
		data = map[string]any{}
	}
	payload, err := a.desc.Serialize(data)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", a.desc.Table, rec.ID, err)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	for _, k := range localOnlyFields {
		delete(payload, k)
	}
	payload["id"] = rec.ID
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = rec.CreatedAt
	}
	payload["updatedAt"] = formatTimestamp(updated)
	return payload, nil
}

// Create pushes a never-synced record and returns its remote id.
func (a *Adapter) Create(ctx context.Context, payload map[string]any) (string, error) {
	if a.desc.Upsert {
		id, _ := payload["id"].(string)
		if err := a.remote.Upsert(ctx, a.desc.Resource, id, payload); err != nil {
			return "", err
		}
		return id, nil
	}
	return a.remote.Create(ctx, a.desc.Resource, payload)
}

// Update pushes a change to a record the remote already knows.
func (a *Adapter) Update(ctx context.Context, id string, payload map[string]any) error {
	if a.desc.Upsert {
		return a.remote.Upsert(ctx, a.desc.Resource, id, payload)
	}
	return a.remote.Update(ctx, a.desc.Resource, id, payload)
}

// Delete removes a record from the remote.
func (a *Adapter) Delete(ctx context.Context, id string) error {
	return a.remote.Delete(ctx, a.desc.Resource, id)
}
