package classify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"syscall"
	"testing"
	"time"

	"github.com/vietddude/teamsync/internal/core/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		disposition domain.Disposition
		reason      domain.ReasonCode
		status      int
	}{
		{"unauthorized", &domain.APIError{Status: 401}, domain.DispositionAuth, domain.ReasonUnauthorized, 401},
		{"rate limited", &domain.APIError{Status: 429}, domain.DispositionTransient, domain.ReasonRateLimit, 429},
		{"server error", &domain.APIError{Status: 503}, domain.DispositionTransient, domain.ReasonServerError, 503},
		{"bad request", &domain.APIError{Status: 400}, domain.DispositionPermanent, domain.ReasonInvalidPayload, 400},
		{"payment required", &domain.APIError{Status: 402}, domain.DispositionPermanent, domain.ReasonQuotaExceeded, 402},
		{"forbidden", &domain.APIError{Status: 403}, domain.DispositionPermanent, domain.ReasonAccessDenied, 403},
		{"not found", &domain.APIError{Status: 404}, domain.DispositionPermanent, "HTTP_404", 404},
		{"api code wins", &domain.APIError{Status: 422, Code: "SEASON_LOCKED"}, domain.DispositionPermanent, "SEASON_LOCKED", 422},
		{"wrapped api error", fmt.Errorf("create team: %w", &domain.APIError{Status: 401}), domain.DispositionAuth, domain.ReasonUnauthorized, 401},
		{"status zero", &domain.APIError{Message: "no response"}, domain.DispositionTransient, domain.ReasonNetwork, 0},
		{"connection refused", syscall.ECONNREFUSED, domain.DispositionTransient, domain.ReasonNetwork, 0},
		{"deadline", context.DeadlineExceeded, domain.DispositionTransient, domain.ReasonNetwork, 0},
		{"canceled", fmt.Errorf("wait: %w", context.Canceled), domain.DispositionTransient, domain.ReasonNetwork, 0},
		{"url error", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("boom")}, domain.DispositionTransient, domain.ReasonNetwork, 0},
		{"fetch failed", errors.New("TypeError: fetch failed"), domain.DispositionTransient, domain.ReasonNetwork, 0},
		{"invalid payload", errors.New("Invalid payload: name is required"), domain.DispositionPermanent, domain.ReasonInvalidPayload, 0},
		{"unknown", errors.New("something odd"), domain.DispositionTransient, domain.ReasonTransient, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Disposition != tt.disposition {
				t.Errorf("expected disposition %s, got %s", tt.disposition, got.Disposition)
			}
			if got.ReasonCode != tt.reason {
				t.Errorf("expected reason %s, got %s", tt.reason, got.ReasonCode)
			}
			if got.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, got.Status)
			}
			if got.Message != tt.err.Error() {
				t.Errorf("expected message %q, got %q", tt.err.Error(), got.Message)
			}
		})
	}
}

func TestClassify_RateLimitHint(t *testing.T) {
	hint := 90 * time.Second
	got := Classify(&domain.APIError{Status: 429, RetryAfter: &hint})
	if got.RetryAfter == nil || *got.RetryAfter != hint {
		t.Fatalf("expected retry-after %v, got %v", hint, got.RetryAfter)
	}

	// Hints on other statuses are ignored
	got = Classify(&domain.APIError{Status: 503, RetryAfter: &hint})
	if got.RetryAfter != nil {
		t.Errorf("expected no retry-after for 503, got %v", *got.RetryAfter)
	}
}
