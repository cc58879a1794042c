// Package callback delivers JSON task notifications to operator URLs
// with bounded retries and exponential backoff. Delivery is best-effort
// at-least-once: the notifier reports success or failure as a boolean
// and never surfaces an error to its caller.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/vidra/vidra-api/internal/config"
)

// backoffBase is the wait before the second attempt; doubled for each
// subsequent one (30s, 60s, 120s, ...).
const backoffBase = 30 * time.Second

// Notifier posts JSON payloads to callback URLs.
type Notifier struct {
	client  *http.Client
	retries int
	timeout time.Duration
	logger  *slog.Logger

	// sleep is replaceable in tests; production uses a context-aware
	// wait.
	sleep func(ctx context.Context, d time.Duration)
}

// NewNotifier creates a Notifier from callback configuration.
func NewNotifier(cfg config.CallbackConfig, logger *slog.Logger) *Notifier {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &Notifier{
		client:  &http.Client{Timeout: timeout},
		retries: cfg.MaxRetries,
		timeout: timeout,
		logger:  logger,
		sleep: func(ctx context.Context, d time.Duration) {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		},
	}
}

// Send delivers payload to callbackURL, blocking through all retry
// attempts. Returns true when any attempt got a 2xx response.
func (n *Notifier) Send(ctx context.Context, callbackURL string, payload any) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("failed to marshal callback payload", "url", callbackURL, "error", err)
		return false
	}

	for attempt := 0; attempt < n.retries; attempt++ {
		if n.attempt(ctx, callbackURL, body, attempt) {
			n.logger.Info("callback sent successfully", "url", callbackURL, "attempt", attempt+1)
			return true
		}

		// Back off between attempts, never after the final one.
		if attempt < n.retries-1 {
			n.sleep(ctx, backoffBase*(1<<attempt))
		}
		if ctx.Err() != nil {
			break
		}
	}

	n.logger.Error("callback failed after all attempts",
		"url", callbackURL,
		"attempts", n.retries)
	return false
}

// SendAsync delivers payload without blocking the caller. The retry
// loop is identical to Send.
func (n *Notifier) SendAsync(ctx context.Context, callbackURL string, payload any) {
	go n.Send(ctx, callbackURL, payload)
}

// attempt performs one POST. Any transport error, timeout or non-2xx
// status is a failed attempt; all are logged and none propagate.
func (n *Notifier) attempt(ctx context.Context, callbackURL string, body []byte, attempt int) bool {
	attemptCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("callback request could not be built",
			"url", callbackURL,
			"attempt", attempt+1,
			"error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("callback request error",
			"url", callbackURL,
			"attempt", attempt+1,
			"max_attempts", n.retries,
			"error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true
	}

	n.logger.Warn("callback failed with non-2xx status",
		"url", callbackURL,
		"attempt", attempt+1,
		"status", resp.StatusCode)
	return false
}
