package actions

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/voxflow/voxflow/pkg/schema"
)

const (
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 10 * time.Second
)

// isTransient classifies whether a failed delivery is worth retrying.
// Validation and permission problems never are; network errors and
// upstream 5xx-style failures are.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var engErr *schema.EngineError
	if errors.As(err, &engErr) {
		switch engErr.Code {
		case schema.ErrCodeValidation, schema.ErrCodePrecondition,
			schema.ErrCodeBlockedExecutable, schema.ErrCodeProviderUnavailable:
			return false
		}
		// Delivery errors carry the upstream HTTP status.
		if status, ok := engErr.Details["status"].(int); ok {
			return status == 429 || status >= 500
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"service unavailable",
		"bad gateway",
		"gateway timeout",
		"internal server error",
		"too many requests",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// retryDelay doubles the base delay per attempt, capped at retryMaxDelay.
func retryDelay(attempt int) time.Duration {
	delay := retryBaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= retryMaxDelay {
			return retryMaxDelay
		}
	}
	return delay
}

// withRetries runs fn up to retries+1 times, sleeping between attempts
// and bailing out early on context cancellation or a permanent error.
func withRetries(ctx context.Context, retries int, fn func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay(attempt - 1)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		out, err := fn()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isTransient(err) {
			return "", err
		}
	}
	return "", lastErr
}
