// Package webhook implements an HTTP POST task notifier.
//
// Publishes task completion events as JSON to a configurable URL.
// Transient failures retry with exponential backoff, so a receiver
// may see the same event more than once; the X-Delivery-ID header
// carries the run ID for dedupe.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fazildgr8/stretch-ai/adapter"
	"github.com/fazildgr8/stretch-ai/types"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultRetries is the retry count the CLI passes for task
// completion notifications.
const DefaultRetries = 3

// backoffBase is the delay before the first retry. Each further retry
// doubles it.
const backoffBase = 500 * time.Millisecond

// Config configures the webhook notifier.
type Config struct {
	// URL is the HTTP endpoint to POST to (required).
	URL string
	// Headers are custom HTTP headers added to each request. Applied
	// after the standard delivery headers, so they may override them.
	Headers map[string]string
	// Timeout is the per-request timeout (default 10s).
	Timeout time.Duration
	// Retries is the number of retry attempts after the first request
	// (0 = single attempt).
	Retries int
}

// Notifier publishes task completion events via HTTP POST.
type Notifier struct {
	config Config
	client *http.Client
}

// New creates a webhook notifier from the given config.
// Returns an error if the URL is empty.
func New(cfg Config) (*Notifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook notifier requires a URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &Notifier{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Notify sends the event as a JSON POST request. 5xx responses and
// network errors retry with exponential backoff; 4xx responses fail
// immediately since resending the same payload cannot fix them.
func (n *Notifier) Notify(ctx context.Context, event *adapter.TaskCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= n.config.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("webhook: canceled during backoff: %w", ctx.Err())
			case <-time.After(backoffDelay(attempt)):
			}
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("webhook: canceled: %w", err)
		}

		lastErr = n.post(ctx, event, body)
		if lastErr == nil {
			return nil
		}
		if !retriable(lastErr) {
			return fmt.Errorf("webhook: non-retriable error: %w", lastErr)
		}
	}

	return fmt.Errorf("webhook: failed after %d attempts: %w", 1+n.config.Retries, lastErr)
}

// backoffDelay returns the wait before the given retry attempt,
// doubling per attempt: 500ms, 1s, 2s, ...
func backoffDelay(attempt int) time.Duration {
	return backoffBase << uint(attempt-1)
}

// retriable reports whether a delivery error is worth another
// attempt. Only 4xx responses are terminal.
func retriable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code < 400 || statusErr.Code >= 500
	}
	return true
}

// StatusError is returned for non-2xx HTTP responses. Carrying the
// status code lets callers distinguish retriable (5xx) from
// non-retriable (4xx) failures.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// post performs a single delivery and returns nil on 2xx.
func (n *Notifier) post(ctx context.Context, event *adapter.TaskCompletedEvent, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "stretch-ai/"+types.Version)
	req.Header.Set("X-Stretch-Event", event.EventType)
	req.Header.Set("X-Delivery-ID", event.RunID)
	for k, v := range n.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}

	return nil
}

// Close releases notifier resources.
func (n *Notifier) Close() error {
	n.client.CloseIdleConnections()
	return nil
}

// Verify Notifier implements the adapter interface.
var _ adapter.Notifier = (*Notifier)(nil)
