// ABOUTME: Provider error classification and retry with exponential backoff for image edit calls.
// ABOUTME: Rate limits and server faults are retried; bad requests and auth failures are not.

package retouch

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/2389-research/snapboard/blob"
	"github.com/2389-research/snapboard/board/edit"
)

// ProviderError is a failed call to an image model.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// IsRetryable reports whether another attempt could succeed. Transport errors
// with no status are treated as transient.
func (e *ProviderError) IsRetryable() bool {
	switch {
	case e.StatusCode == 0:
		return e.Cause != nil
	case e.StatusCode == 408, e.StatusCode == 429:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// RetryPolicy configures retries of edit calls.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Jitter randomizes each delay between zero and its backoff value.
	Jitter bool
	// OnRetry runs before each retry.
	OnRetry func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy makes exactly one attempt per request. Image generation
// is billed and not idempotent, so retries are opt-in; raising MaxRetries
// backs off from one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 0,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Jitter:     true,
	}
}

// Delay is the wait before retry number attempt (zero-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	delay := time.Duration(d)
	if p.Jitter && delay > 0 {
		delay = time.Duration(rand.Int64N(int64(delay) + 1))
	}
	return delay
}

func (p RetryPolicy) shouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.MaxRetries {
		return false
	}
	r, ok := err.(interface{ IsRetryable() bool })
	return ok && r.IsRetryable()
}

// Retrying wraps an editor so retryable failures are attempted again. It stops
// early when ctx ends and returns the last error.
func Retrying(next edit.Editor, policy RetryPolicy) edit.Editor {
	return edit.EditorFunc(func(ctx context.Context, img blob.Image, instruction string) (blob.Image, error) {
		for attempt := 0; ; attempt++ {
			out, err := next.Edit(ctx, img, instruction)
			if !policy.shouldRetry(err, attempt) {
				return out, err
			}
			delay := policy.Delay(attempt)
			if policy.OnRetry != nil {
				policy.OnRetry(err, attempt, delay)
			}
			select {
			case <-ctx.Done():
				return blob.Image{}, err
			case <-time.After(delay):
			}
		}
	})
}
