package domain

import (
	"fmt"
	"time"
)

// APIError is a structured failure returned by the remote API.
type APIError struct {
	Status     int
	Code       string
	Message    string
	RetryAfter *time.Duration // server-provided delay, rate limits only
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}
