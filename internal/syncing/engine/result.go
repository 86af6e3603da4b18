package engine

import (
	"errors"
	"time"

	"github.com/vietddude/teamsync/internal/core/domain"
	"github.com/vietddude/teamsync/internal/syncing/progress"
)

// ErrGuestImportPending is returned when guest-owned data must be imported
// before anything is pushed under the signed-in identity.
var ErrGuestImportPending = errors.New("guest data import pending")

// SkipReason explains why a cycle did no work.
type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipBusy            SkipReason = "busy"
	SkipOffline         SkipReason = "offline"
	SkipUnauthenticated SkipReason = "unauthenticated"
	SkipBackoff         SkipReason = "backoff"
	SkipGuestImport     SkipReason = "guest_import_pending"
)

// RecordError is a failed record push.
type RecordError struct {
	Table    domain.Table `json:"table"`
	RecordID string       `json:"recordId"`
	Message  string       `json:"message"`
}

// Result aggregates one flush cycle.
type Result struct {
	CycleID  string            `json:"cycleId,omitempty"`
	Synced   int               `json:"synced"`
	Purged   int               `json:"purged"`
	Failed   int               `json:"failed"`
	Errors   []RecordError     `json:"errors"`
	Aborted  bool              `json:"aborted"`
	Skipped  SkipReason        `json:"skipped,omitempty"`
	Progress progress.Snapshot `json:"progress"`
	Duration time.Duration     `json:"durationNs"`
}

// Err returns the sentinel matching a skipped cycle, if it has one.
func (r *Result) Err() error {
	if r.Skipped == SkipGuestImport {
		return ErrGuestImportPending
	}
	return nil
}

func (r *Result) fail(table domain.Table, id string, err error) {
	r.Failed++
	r.Errors = append(r.Errors, RecordError{
		Table:    table,
		RecordID: id,
		Message:  err.Error(),
	})
}

// Phase marks when a progress event was emitted.
type Phase string

const (
	PhaseStart Phase = "start"
	PhaseEnd   Phase = "end"
)

// Event is delivered to progress listeners at cycle start and end.
type Event struct {
	Phase    Phase
	CycleID  string
	Snapshot progress.Snapshot
	Result   *Result // set for PhaseEnd
}

// Listener receives progress events on the cycle goroutine.
type Listener func(Event)
