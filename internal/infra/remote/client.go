// Package remote is the HTTP client of the team-management API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/teamsync/internal/core/domain"
	"github.com/vietddude/teamsync/internal/syncing/metrics"
	"golang.org/x/time/rate"
)

const apiPrefix = "/api/v1/"

// Config holds remote API settings.
type Config struct {
	BaseURL           string        `yaml:"base_url"`
	Token             string        `yaml:"token"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// Client implements tables.Remote over REST/JSON.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client. A zero RequestsPerSecond disables pacing.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("remote base_url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid remote base_url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(limit, burst),
	}, nil
}

// Create posts a new entity and returns the id the server reports.
func (c *Client) Create(ctx context.Context, resource string, payload map[string]any) (string, error) {
	body, err := c.do(ctx, http.MethodPost, resource, "", payload)
	if err != nil {
		return "", err
	}

	var created struct {
		ID   string `json:"id"`
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &created); err != nil {
			return "", fmt.Errorf("parse create response: %w", err)
		}
	}
	switch {
	case created.ID != "":
		return created.ID, nil
	case created.Data.ID != "":
		return created.Data.ID, nil
	default:
		id, _ := payload["id"].(string)
		return id, nil
	}
}

// Update replaces an entity.
func (c *Client) Update(ctx context.Context, resource, id string, payload map[string]any) error {
	_, err := c.do(ctx, http.MethodPut, resource, id, payload)
	return err
}

// Upsert stores an entity under the given id. The API treats PUT as
// create-or-replace, so this is the same request as Update.
func (c *Client) Upsert(ctx context.Context, resource, id string, payload map[string]any) error {
	_, err := c.do(ctx, http.MethodPut, resource, id, payload)
	return err
}

// Delete removes an entity. A 404 counts as success.
func (c *Client) Delete(ctx context.Context, resource, id string) error {
	_, err := c.do(ctx, http.MethodDelete, resource, id, nil)
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

// Health probes the API. It bypasses the rate limiter.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiPrefix+"health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return &domain.APIError{Status: resp.StatusCode, Message: "health check failed"}
	}
	return nil
}

func (c *Client) do(
	ctx context.Context,
	method, resource, id string,
	payload map[string]any,
) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := c.baseURL + apiPrefix + url.PathEscape(resource)
	if id != "" {
		endpoint += "/" + url.PathEscape(id)
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", resource, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RemoteLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%s %s: %w", method, resource, err)
	}
	defer resp.Body.Close()
	metrics.RemoteRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp, body)
	}
	return body, nil
}

// decodeError builds an APIError from {"error":{"code","message","retryAfterMs"}}
// and the Retry-After header.
func decodeError(resp *http.Response, body []byte) *domain.APIError {
	apiErr := &domain.APIError{Status: resp.StatusCode}

	var envelope struct {
		Error struct {
			Code         string `json:"code"`
			Message      string `json:"message"`
			RetryAfterMs *int64 `json:"retryAfterMs"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		if ms := envelope.Error.RetryAfterMs; ms != nil && *ms >= 0 {
			d := time.Duration(*ms) * time.Millisecond
			apiErr.RetryAfter = &d
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}

	if apiErr.RetryAfter == nil {
		if d, ok := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
			apiErr.RetryAfter = &d
		}
	}
	return apiErr
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
