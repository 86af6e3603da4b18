package domain

import "time"

// FailureEntry tracks repeated sync failures of a single record.
type FailureEntry struct {
	Table         Table      `json:"table"`
	RecordID      string     `json:"record_id"`
	AttemptCount  int        `json:"attempt_count"`
	LastAttemptAt time.Time  `json:"last_attempt_at"`
	NextRetryAt   time.Time  `json:"next_retry_at"`
	LastStatus    int        `json:"last_status"` // 0 for non-HTTP failures
	LastError     string     `json:"last_error"`
	Permanent     bool       `json:"permanent"`
	ReasonCode    ReasonCode `json:"reason_code"`
}

// Waiting reports whether the entry still defers retries at now.
func (e *FailureEntry) Waiting(now time.Time) bool {
	return e.NextRetryAt.After(now)
}

// Disposition is the retry category of a failed remote call.
type Disposition string

const (
	DispositionAuth      Disposition = "auth"
	DispositionTransient Disposition = "transient"
	DispositionPermanent Disposition = "permanent"
)

// ReasonCode tags a failure for reporting.
type ReasonCode string

const (
	ReasonRateLimit      ReasonCode = "RATE_LIMIT"
	ReasonServerError    ReasonCode = "SERVER_ERROR"
	ReasonNetwork        ReasonCode = "NETWORK"
	ReasonTransient      ReasonCode = "TRANSIENT"
	ReasonInvalidPayload ReasonCode = "INVALID_PAYLOAD"
	ReasonAccessDenied   ReasonCode = "ACCESS_DENIED"
	ReasonQuotaExceeded  ReasonCode = "QUOTA_EXCEEDED"
	ReasonUnauthorized   ReasonCode = "UNAUTHORIZED"
)
