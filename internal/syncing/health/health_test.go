package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/teamsync/internal/core/domain"
	"github.com/vietddude/teamsync/internal/syncing/engine"
	"github.com/vietddude/teamsync/internal/syncing/progress"
)

// =============================================================================
// Fakes
// =============================================================================

type fakePending struct {
	snap progress.Snapshot
	err  error
}

func (f *fakePending) PendingCounts(ctx context.Context) (progress.Snapshot, error) {
	return f.snap, f.err
}

type fakeConn struct{ online bool }

func (f *fakeConn) Online(ctx context.Context) bool { return f.online }

type fakeFlusher struct {
	res   *engine.Result
	err   error
	calls int
}

func (f *fakeFlusher) Flush(ctx context.Context) (*engine.Result, error) {
	f.calls++
	return f.res, f.err
}

func authedSnapshot() progress.Snapshot {
	return progress.Snapshot{
		Tables:        map[domain.Table]progress.TableCounts{domain.TableTeams: {Count: 2, Eligible: 2}},
		Total:         2,
		Eligible:      2,
		Authenticated: true,
		At:            time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// Monitor
// =============================================================================

func TestMonitor_Status(t *testing.T) {
	gated := authedSnapshot()
	gated.GateActive = true
	blocked := authedSnapshot()
	blocked.Blocked = 1
	signedOut := authedSnapshot()
	signedOut.Authenticated = false

	tests := []struct {
		name    string
		snap    progress.Snapshot
		err     error
		online  bool
		aborted bool
		want    SystemStatus
	}{
		{"healthy", authedSnapshot(), nil, true, false, StatusHealthy},
		{"offline", authedSnapshot(), nil, false, false, StatusDegraded},
		{"gate active", gated, nil, true, false, StatusDegraded},
		{"blocked records", blocked, nil, true, false, StatusDegraded},
		{"signed out", signedOut, nil, true, false, StatusDegraded},
		{"auth abort", authedSnapshot(), nil, true, true, StatusCritical},
		{"store error", progress.Snapshot{}, errors.New("disk gone"), true, false, StatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(&fakePending{snap: tt.snap, err: tt.err}, &fakeConn{online: tt.online}, nil)
			if tt.aborted {
				m.Observe(engine.Event{
					Phase:  engine.PhaseEnd,
					Result: &engine.Result{CycleID: "c1", Aborted: true},
				})
			}

			report := m.CheckHealth(context.Background())
			if report.Status != tt.want {
				t.Errorf("expected %s, got %s", tt.want, report.Status)
			}
		})
	}
}

func TestMonitor_ObserveIgnoresStartEvents(t *testing.T) {
	m := NewMonitor(&fakePending{snap: authedSnapshot()}, nil, nil)

	m.Observe(engine.Event{Phase: engine.PhaseStart, CycleID: "c1"})
	if m.LastCycle() != nil {
		t.Fatal("expected no last cycle after a start event")
	}

	m.Observe(engine.Event{
		Phase:  engine.PhaseEnd,
		Result: &engine.Result{CycleID: "c1", Synced: 3, Duration: time.Second},
	})
	last := m.LastCycle()
	if last == nil || last.CycleID != "c1" || last.Synced != 3 {
		t.Errorf("expected cycle c1 with 3 synced, got %+v", last)
	}
}

// =============================================================================
// Server
// =============================================================================

func newTestServer(pending *fakePending, flusher *fakeFlusher) http.Handler {
	m := NewMonitor(pending, &fakeConn{online: true}, func() bool { return false })
	return NewServer(m, flusher, 0).Handler()
}

func TestServer_Health(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   SystemStatus
	}{
		{"healthy", nil, http.StatusOK, StatusHealthy},
		{"critical", errors.New("boom"), http.StatusServiceUnavailable, StatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&fakePending{snap: authedSnapshot(), err: tt.err}, &fakeFlusher{})

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			var body struct {
				Status SystemStatus `json:"status"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Status != tt.want {
				t.Errorf("expected %s, got %s", tt.want, body.Status)
			}
		})
	}
}

func TestServer_Pending(t *testing.T) {
	h := newTestServer(&fakePending{snap: authedSnapshot()}, &fakeFlusher{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pending", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Total  int                             `json:"total"`
		Tables map[string]progress.TableCounts `json:"tables"`
		AtMs   int64                           `json:"atMs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Total != 2 {
		t.Errorf("expected total 2, got %d", body.Total)
	}
	if body.Tables["teams"].Eligible != 2 {
		t.Errorf("expected 2 eligible teams, got %+v", body.Tables["teams"])
	}
	if body.AtMs == 0 {
		t.Error("expected atMs to be set")
	}
}

func TestServer_Flush(t *testing.T) {
	tests := []struct {
		name   string
		method string
		res    *engine.Result
		err    error
		status int
		calls  int
	}{
		{"get not allowed", http.MethodGet, nil, nil, http.StatusMethodNotAllowed, 0},
		{"completed", http.MethodPost, &engine.Result{CycleID: "c1", Synced: 4}, nil, http.StatusOK, 1},
		{"busy", http.MethodPost, &engine.Result{Skipped: engine.SkipBusy}, nil, http.StatusConflict, 1},
		{"guest import", http.MethodPost, &engine.Result{Skipped: engine.SkipGuestImport}, engine.ErrGuestImportPending, http.StatusConflict, 1},
		{"detector error", http.MethodPost, &engine.Result{CycleID: "c2"}, errors.New("store down"), http.StatusInternalServerError, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flusher := &fakeFlusher{res: tt.res, err: tt.err}
			h := newTestServer(&fakePending{snap: authedSnapshot()}, flusher)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/flush", nil))

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			if flusher.calls != tt.calls {
				t.Errorf("expected %d flush calls, got %d", tt.calls, flusher.calls)
			}
		})
	}
}

func TestServer_Metrics(t *testing.T) {
	h := newTestServer(&fakePending{snap: authedSnapshot()}, &fakeFlusher{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
