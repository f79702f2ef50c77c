package llm

import (
	"context"
	"time"

	enginerr "github.com/aisavvy/aisavvy/internal/errors"
)

// retrying decorates a Service with a small, fixed retry budget for
// transient failures.
type retrying struct {
	svc      Service
	attempts int
	delay    time.Duration
}

func (r *retrying) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= r.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				// Caller abandonment is not a backend timeout.
				return "", enginerr.Wrap(ctx.Err(), enginerr.KindInternal,
					"inference cancelled while waiting to retry")
			case <-time.After(r.delay):
			}
		}

		text, err := r.svc.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}

		lastErr = err

		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}

	return "", lastErr
}

// retryable limits retries to failures where a second identical call can
// plausibly succeed.
func retryable(err error) bool {
	switch enginerr.KindOf(err) {
	case enginerr.KindInferenceTimeout, enginerr.KindInferenceUnavailable:
		return true
	default:
		return false
	}
}
