package health

import (
	"context"
	"sync"

	"github.com/vietddude/teamsync/internal/syncing/engine"
	"github.com/vietddude/teamsync/internal/syncing/progress"
)

// PendingSource reports pending work.
type PendingSource interface {
	PendingCounts(ctx context.Context) (progress.Snapshot, error)
}

// Monitor aggregates connectivity, pending counts and the last cycle result.
type Monitor struct {
	pending PendingSource
	conn    engine.Connectivity
	running func() bool

	mu   sync.RWMutex
	last *CycleSummary
}

// NewMonitor creates a monitor. running may be nil.
func NewMonitor(pending PendingSource, conn engine.Connectivity, running func() bool) *Monitor {
	return &Monitor{
		pending: pending,
		conn:    conn,
		running: running,
	}
}

// Observe is an engine.Listener that remembers finished cycles.
func (m *Monitor) Observe(ev engine.Event) {
	if ev.Phase != engine.PhaseEnd || ev.Result == nil {
		return
	}
	res := ev.Result
	summary := &CycleSummary{
		CycleID:  res.CycleID,
		Synced:   res.Synced,
		Purged:   res.Purged,
		Failed:   res.Failed,
		Aborted:  res.Aborted,
		Skipped:  string(res.Skipped),
		AtMs:     ev.Snapshot.At.UnixMilli(),
		Duration: res.Duration.String(),
	}

	m.mu.Lock()
	m.last = summary
	m.mu.Unlock()
}

// LastCycle returns the most recent finished cycle, if any.
func (m *Monitor) LastCycle() *CycleSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return nil
	}
	c := *m.last
	return &c
}

// CheckHealth builds a report. Worst condition wins:
//   - critical: pending counts unavailable, or the last cycle aborted on auth
//   - degraded: offline, signed out, gate active, or records blocked
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	report := Report{
		Status:    StatusHealthy,
		Online:    m.conn == nil || m.conn.Online(ctx),
		LastCycle: m.LastCycle(),
	}
	if m.running != nil {
		report.Running = m.running()
	}

	snap, err := m.pending.PendingCounts(ctx)
	if err != nil {
		report.Status = StatusCritical
		report.Error = err.Error()
		return report
	}
	report.Pending = snap

	switch {
	case report.LastCycle != nil && report.LastCycle.Aborted:
		report.Status = StatusCritical
	case !report.Online, !snap.Authenticated, snap.GateActive, snap.Blocked > 0:
		report.Status = StatusDegraded
	}
	return report
}
