// Package classify maps remote call failures to retry dispositions.
package classify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/vietddude/teamsync/internal/core/domain"
)

// Classification is the outcome of Classify.
type Classification struct {
	Disposition domain.Disposition
	Status      int // 0 for non-HTTP failures
	ReasonCode  domain.ReasonCode
	RetryAfter  *time.Duration // server hint, rate limits only
	Message     string
}

// networkPatterns are message fragments of transport-level failures that
// arrive without a structured error.
var networkPatterns = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
	"fetch failed",
	"timeout",
	"unexpected eof",
}

// Classify determines how the engine treats err. It is pure.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Disposition: domain.DispositionTransient, ReasonCode: domain.ReasonTransient}
	}
	msg := err.Error()

	var apiErr *domain.APIError
	if errors.As(err, &apiErr) && apiErr.Status > 0 {
		return classifyStatus(apiErr, msg)
	}

	if isNetworkError(err) {
		return Classification{
			Disposition: domain.DispositionTransient,
			ReasonCode:  domain.ReasonNetwork,
			Message:     msg,
		}
	}

	lower := strings.ToLower(msg)
	if strings.Contains(lower, "invalid") && strings.Contains(lower, "payload") {
		return Classification{
			Disposition: domain.DispositionPermanent,
			ReasonCode:  domain.ReasonInvalidPayload,
			Message:     msg,
		}
	}

	return Classification{
		Disposition: domain.DispositionTransient,
		ReasonCode:  domain.ReasonTransient,
		Message:     msg,
	}
}

func classifyStatus(apiErr *domain.APIError, msg string) Classification {
	c := Classification{Status: apiErr.Status, Message: msg}

	switch status := apiErr.Status; {
	case status == 401:
		c.Disposition = domain.DispositionAuth
		c.ReasonCode = domain.ReasonUnauthorized
	case status == 429:
		c.Disposition = domain.DispositionTransient
		c.ReasonCode = domain.ReasonRateLimit
		c.RetryAfter = apiErr.RetryAfter
	case status >= 500:
		c.Disposition = domain.DispositionTransient
		c.ReasonCode = domain.ReasonServerError
	case status >= 400:
		c.Disposition = domain.DispositionPermanent
		c.ReasonCode = reasonForStatus(apiErr)
	default:
		// 1xx-3xx reaching here means the client treated it as a failure
		c.Disposition = domain.DispositionTransient
		c.ReasonCode = domain.ReasonTransient
	}
	return c
}

func reasonForStatus(apiErr *domain.APIError) domain.ReasonCode {
	if apiErr.Code != "" {
		return domain.ReasonCode(apiErr.Code)
	}
	switch apiErr.Status {
	case 400:
		return domain.ReasonInvalidPayload
	case 402:
		return domain.ReasonQuotaExceeded
	case 403:
		return domain.ReasonAccessDenied
	default:
		return domain.ReasonCode(fmt.Sprintf("HTTP_%d", apiErr.Status))
	}
}

func isNetworkError(err error) bool {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) && apiErr.Status == 0 {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	lower := strings.ToLower(err.Error())
	for _, p := range networkPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
