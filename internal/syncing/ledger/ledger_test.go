package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/teamsync/internal/core/domain"
	"github.com/vietddude/teamsync/internal/infra/storage/memory"
	"github.com/vietddude/teamsync/internal/syncing/backoff"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestLedger(t *testing.T) (*Ledger, *testClock, *memory.FailureRepo) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)}
	policy := backoff.DefaultPolicy().
		WithRand(func() float64 { return 0.5 }).
		WithClock(clock.Now)
	repo := memory.NewFailureRepo(memory.NewMemoryStorage())
	return New(repo, policy, backoff.NewGate()), clock, repo
}

func TestLedger_ShouldAttemptWithoutEntry(t *testing.T) {
	l, _, _ := newTestLedger(t)

	ok, err := l.ShouldAttempt(context.Background(), domain.TableTeams, "t1")
	if err != nil {
		t.Fatalf("ShouldAttempt failed: %v", err)
	}
	if !ok {
		t.Error("expected record without failures to be eligible")
	}
}

func TestLedger_TransientFailureSchedulesRetry(t *testing.T) {
	l, clock, repo := newTestLedger(t)
	ctx := context.Background()

	out, err := l.RecordFailure(ctx, domain.TableTeams, "t1", &domain.APIError{Status: 503, Message: "down"})
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if out.AbortCycle {
		t.Fatal("expected no abort for 503")
	}

	entry, _ := repo.Get(ctx, domain.TableTeams, "t1")
	if entry == nil {
		t.Fatal("expected ledger entry")
	}
	if entry.AttemptCount != 1 || entry.LastStatus != 503 || entry.ReasonCode != domain.ReasonServerError {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if !entry.NextRetryAt.Equal(clock.now.Add(30 * time.Second)) {
		t.Errorf("expected retry in 30s, got %v", entry.NextRetryAt.Sub(clock.now))
	}

	ok, _ := l.ShouldAttempt(ctx, domain.TableTeams, "t1")
	if ok {
		t.Error("expected record to wait for its retry time")
	}

	clock.now = clock.now.Add(30 * time.Second)
	ok, _ = l.ShouldAttempt(ctx, domain.TableTeams, "t1")
	if !ok {
		t.Error("expected record eligible once nextRetryAt is reached")
	}

	// Second failure doubles the delay
	if _, err := l.RecordFailure(ctx, domain.TableTeams, "t1", errors.New("fetch failed")); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	entry, _ = repo.Get(ctx, domain.TableTeams, "t1")
	if entry.AttemptCount != 2 || entry.ReasonCode != domain.ReasonNetwork || entry.LastStatus != 0 {
		t.Errorf("unexpected entry after second failure: %+v", entry)
	}
	if got := entry.NextRetryAt.Sub(clock.now); got != time.Minute {
		t.Errorf("expected 1m delay, got %v", got)
	}
}

func TestLedger_PermanentFailureBlocksForever(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.RecordFailure(ctx, domain.TablePlayers, "p1", &domain.APIError{Status: 400, Message: "bad"})
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}

	clock.now = clock.now.Add(48 * time.Hour)
	ok, _ := l.ShouldAttempt(ctx, domain.TablePlayers, "p1")
	if ok {
		t.Error("expected permanent failure to stay blocked")
	}
}

func TestLedger_AuthAbortsWithoutWriting(t *testing.T) {
	l, _, repo := newTestLedger(t)
	ctx := context.Background()

	out, err := l.RecordFailure(ctx, domain.TableSeasons, "s1", &domain.APIError{Status: 401})
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if !out.AbortCycle {
		t.Error("expected abort for 401")
	}
	if entry, _ := repo.Get(ctx, domain.TableSeasons, "s1"); entry != nil {
		t.Errorf("expected no ledger entry, got %+v", entry)
	}
}

func TestLedger_RateLimitRaisesGate(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	ctx := context.Background()

	hint := 2 * time.Minute
	out, err := l.RecordFailure(ctx, domain.TableMatches, "m1", &domain.APIError{Status: 429, RetryAfter: &hint})
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	want := clock.now.Add(hint)
	if !out.Entry.NextRetryAt.Equal(want) {
		t.Errorf("expected nextRetryAt %v, got %v", want, out.Entry.NextRetryAt)
	}
	if !l.Gate().Until().Equal(want) {
		t.Errorf("expected gate at %v, got %v", want, l.Gate().Until())
	}

	// Every table is held back, not only the one that was throttled
	ok, _ := l.ShouldAttempt(ctx, domain.TableSeasons, "other")
	if ok {
		t.Error("expected unrelated record to be held by the gate")
	}

	clock.now = want
	ok, _ = l.ShouldAttempt(ctx, domain.TableSeasons, "other")
	if !ok {
		t.Error("expected gate to open at its deadline")
	}
}

func TestLedger_ClearAndReset(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, _ = l.RecordFailure(ctx, domain.TableEvents, "e1", &domain.APIError{Status: 400})
	_, _ = l.RecordFailure(ctx, domain.TableEvents, "e2", &domain.APIError{Status: 500})
	_, _ = l.RecordFailure(ctx, domain.TableEvents, "e3", &domain.APIError{Status: 500})

	if err := l.ClearFailure(ctx, domain.TableEvents, "e3"); err != nil {
		t.Fatalf("ClearFailure failed: %v", err)
	}

	n, err := l.Reset(ctx, domain.TableEvents, true)
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 permanent entry reset, got %d", n)
	}

	entries, _ := l.Entries(ctx, domain.TableEvents)
	if len(entries) != 1 || entries[0].RecordID != "e2" {
		t.Fatalf("expected only e2 left, got %d entries", len(entries))
	}

	n, _ = l.Reset(ctx, domain.TableEvents, false)
	if n != 1 {
		t.Errorf("expected 1 entry reset, got %d", n)
	}
}
