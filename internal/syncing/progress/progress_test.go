package progress

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/teamsync/internal/core/domain"
	"github.com/vietddude/teamsync/internal/core/session"
	"github.com/vietddude/teamsync/internal/infra/storage/memory"
	"github.com/vietddude/teamsync/internal/syncing/backoff"
	"github.com/vietddude/teamsync/internal/syncing/ledger"
)

type fixture struct {
	now      time.Time
	store    *memory.RecordRepo
	ledger   *ledger.Ledger
	gate     *backoff.Gate
	reporter *Reporter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	mem := memory.NewMemoryStorage()
	f.store = memory.NewRecordRepo(mem)
	f.gate = backoff.NewGate()
	policy := backoff.DefaultPolicy().
		WithRand(func() float64 { return 0.5 }).
		WithClock(func() time.Time { return f.now })
	f.ledger = ledger.New(memory.NewFailureRepo(mem), policy, f.gate)
	f.reporter = NewReporter(f.store, f.ledger, session.NewStatic("user-1"), nil, "")
	return f
}

func (f *fixture) put(t *testing.T, table domain.Table, id, owner string, synced bool) {
	t.Helper()
	err := f.store.Put(context.Background(), table, &domain.Record{
		ID:             id,
		CreatedByOwner: owner,
		Synced:         synced,
		UpdatedAt:      f.now,
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
}

func TestPendingCounts_EligibleAndBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.put(t, domain.TableTeams, "ok", "user-1", false)
	f.put(t, domain.TableTeams, "waiting", "user-1", false)
	f.put(t, domain.TableTeams, "broken", "user-1", false)
	f.put(t, domain.TableTeams, "done", "user-1", true)
	f.put(t, domain.TableTeams, "guest", "guest:1", false)
	f.put(t, domain.TablePlayers, "other-owner", "user-2", false)

	_, _ = f.ledger.RecordFailure(ctx, domain.TableTeams, "waiting", &domain.APIError{Status: 500})
	_, _ = f.ledger.RecordFailure(ctx, domain.TableTeams, "broken", &domain.APIError{Status: 400})

	snap, err := f.reporter.PendingCounts(ctx)
	if err != nil {
		t.Fatalf("PendingCounts failed: %v", err)
	}

	teams := snap.Tables[domain.TableTeams]
	if teams.Count != 3 || teams.Eligible != 1 || teams.Blocked != 1 {
		t.Errorf("expected teams {3 1 1}, got %+v", teams)
	}
	if snap.Tables[domain.TablePlayers].Count != 0 {
		t.Errorf("expected other owner's players to be excluded, got %+v", snap.Tables[domain.TablePlayers])
	}
	if snap.Total != 3 || snap.Eligible != 1 || snap.Blocked != 1 {
		t.Errorf("expected totals {3 1 1}, got {%d %d %d}", snap.Total, snap.Eligible, snap.Blocked)
	}
	want := f.now.Add(30 * time.Second)
	if snap.NextRetryAt == nil || !snap.NextRetryAt.Equal(want) {
		t.Errorf("expected nextRetryAt %v, got %v", want, snap.NextRetryAt)
	}
}

func TestPendingCounts_GateZeroesEligible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.put(t, domain.TableSeasons, "s1", "user-1", false)
	f.put(t, domain.TableEvents, "e1", "user-1", false)

	hint := 5 * time.Minute
	_, _ = f.ledger.RecordFailure(ctx, domain.TableEvents, "e1", &domain.APIError{Status: 429, RetryAfter: &hint})

	snap, err := f.reporter.PendingCounts(ctx)
	if err != nil {
		t.Fatalf("PendingCounts failed: %v", err)
	}
	if snap.Eligible != 0 {
		t.Errorf("expected zero eligible while gated, got %d", snap.Eligible)
	}
	for table, c := range snap.Tables {
		if c.Eligible != 0 {
			t.Errorf("expected zero eligible for %s, got %d", table, c.Eligible)
		}
	}
	if !snap.GateActive || snap.NextRetryAt == nil || !snap.NextRetryAt.Equal(f.now.Add(hint)) {
		t.Errorf("expected gate until %v, got active=%v next=%v", f.now.Add(hint), snap.GateActive, snap.NextRetryAt)
	}

	f.now = f.now.Add(hint)
	snap, _ = f.reporter.PendingCounts(ctx)
	if snap.Eligible != 2 {
		t.Errorf("expected both records eligible after the gate, got %d", snap.Eligible)
	}
}

func TestPendingCounts_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	f.reporter.session = session.NewStatic("")
	f.put(t, domain.TableSeasons, "s1", "user-1", false)

	snap, err := f.reporter.PendingCounts(context.Background())
	if err != nil {
		t.Fatalf("PendingCounts failed: %v", err)
	}
	if snap.Authenticated || snap.Total != 0 {
		t.Errorf("expected empty unauthenticated snapshot, got %+v", snap)
	}
	if len(snap.Tables) != len(domain.AllTables) {
		t.Errorf("expected every table listed, got %d", len(snap.Tables))
	}
}

func TestSnapshot_MarshalJSON(t *testing.T) {
	next := time.UnixMilli(1750000000123)
	snap := Snapshot{
		Tables:      map[domain.Table]TableCounts{domain.TableTeams: {Count: 2, Eligible: 1}},
		Total:       2,
		Eligible:    1,
		NextRetryAt: &next,
		At:          time.UnixMilli(1750000000000),
	}
	b, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"nextRetryAtMs":1750000000123`, `"teams":{"count":2,"eligible":1,"blocked":0}`, `"total":2`} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %s in %s", want, s)
		}
	}

	b, _ = json.Marshal(Snapshot{})
	if strings.Contains(string(b), "nextRetryAtMs") {
		t.Errorf("expected nextRetryAtMs to be omitted, got %s", b)
	}
}
