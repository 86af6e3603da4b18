// Package health serves sync status, pending counts and manual flushes over HTTP.
package health

import "github.com/vietddude/teamsync/internal/syncing/progress"

// SystemStatus represents the overall health state of the sync daemon.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// CycleSummary is the outcome of the most recent finished cycle.
type CycleSummary struct {
	CycleID  string `json:"cycleId"`
	Synced   int    `json:"synced"`
	Purged   int    `json:"purged"`
	Failed   int    `json:"failed"`
	Aborted  bool   `json:"aborted"`
	Skipped  string `json:"skipped,omitempty"`
	AtMs     int64  `json:"atMs"`
	Duration string `json:"duration"`
}

// Report contains the full status report.
type Report struct {
	Status    SystemStatus      `json:"status"`
	Online    bool              `json:"online"`
	Running   bool              `json:"running"`
	Pending   progress.Snapshot `json:"pending"`
	LastCycle *CycleSummary     `json:"lastCycle,omitempty"`
	Error     string            `json:"error,omitempty"`
}
