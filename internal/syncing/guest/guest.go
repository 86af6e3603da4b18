// Package guest finds data created before sign-in and hands it to the
// signed-in owner.
package guest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/vietddude/teamsync/internal/core/domain"
	"github.com/vietddude/teamsync/internal/core/session"
	"github.com/vietddude/teamsync/internal/infra/storage"
	"github.com/vietddude/teamsync/internal/syncing/ledger"
)

// ErrNotSignedIn is returned when importing without an authenticated owner.
var ErrNotSignedIn = errors.New("no authenticated owner")

// Detector reports whether guest-owned records are still waiting for import.
type Detector struct {
	store  storage.RecordStore
	prefix string
	tables []domain.Table
}

// NewDetector creates a detector scanning every table.
func NewDetector(store storage.RecordStore, guestPrefix string) *Detector {
	if guestPrefix == "" {
		guestPrefix = domain.DefaultGuestPrefix
	}
	return &Detector{store: store, prefix: guestPrefix, tables: domain.AllTables}
}

// ImportPending reports whether any record is owned by a guest identity or
// by nobody.
func (d *Detector) ImportPending(ctx context.Context) (bool, error) {
	for _, t := range d.tables {
		recs, err := d.store.List(ctx, t, storage.RecordFilter{OwnerPrefix: d.prefix, IncludeUnowned: true, Limit: 1})
		if err != nil {
			return false, fmt.Errorf("failed to scan %s for guest data: %w", t, err)
		}
		if len(recs) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Owners lists the distinct guest identities that own records. Records
// without an owner are reported as "".
func (d *Detector) Owners(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, t := range d.tables {
		recs, err := d.store.List(ctx, t, storage.RecordFilter{OwnerPrefix: d.prefix, IncludeUnowned: true})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s for guest data: %w", t, err)
		}
		for _, r := range recs {
			seen[r.CreatedByOwner] = struct{}{}
		}
	}
	owners := make([]string, 0, len(seen))
	for o := range seen {
		owners = append(owners, o)
	}
	sort.Strings(owners)
	return owners, nil
}

// Importer moves guest-owned records to the signed-in owner.
type Importer struct {
	store   storage.RecordStore
	ledger  *ledger.Ledger
	session session.Provider
	prefix  string
	log     *slog.Logger
}

// NewImporter creates an importer. l may be nil.
func NewImporter(store storage.RecordStore, l *ledger.Ledger, sess session.Provider, guestPrefix string) *Importer {
	if guestPrefix == "" {
		guestPrefix = domain.DefaultGuestPrefix
	}
	return &Importer{
		store:   store,
		ledger:  l,
		session: sess,
		prefix:  guestPrefix,
		log:     slog.Default().With("component", "guest-import"),
	}
}

// Import reassigns every record of guestID to the current owner and marks
// them unsynced. An empty guestID imports records that have no owner.
// Returns the number of records moved per table.
func (i *Importer) Import(ctx context.Context, guestID string) (map[domain.Table]int, error) {
	if !domain.IsGuestOwner(guestID, i.prefix) {
		return nil, fmt.Errorf("%q is not a guest identity", guestID)
	}
	owner, ok := i.session.Owner(ctx)
	if !ok || domain.IsGuestOwner(owner, i.prefix) {
		return nil, ErrNotSignedIn
	}

	moved := make(map[domain.Table]int)
	for _, t := range domain.AllTables {
		if i.ledger != nil {
			if err := i.clearLedger(ctx, t, guestID); err != nil {
				return moved, err
			}
		}
		n, err := i.store.ReassignOwner(ctx, t, guestID, owner)
		if err != nil {
			return moved, fmt.Errorf("failed to import %s: %w", t, err)
		}
		if n > 0 {
			moved[t] = n
		}
	}

	i.log.Info("Guest data imported", "guest", guestID, "owner", owner, "tables", len(moved))
	return moved, nil
}

// clearLedger drops failures recorded against the guest's rows.
func (i *Importer) clearLedger(ctx context.Context, table domain.Table, guestID string) error {
	// An empty Owner disables the clause, so unowned rows are matched here.
	recs, err := i.store.List(ctx, table, storage.RecordFilter{Owner: guestID})
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", table, err)
	}
	for _, r := range recs {
		if r.CreatedByOwner != guestID {
			continue
		}
		if err := i.ledger.ClearFailure(ctx, table, r.ID); err != nil {
			return err
		}
	}
	return nil
}
