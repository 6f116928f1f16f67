// Package retry re-runs backing-store calls that failed for transient
// reasons (dropped connections, lock contention) with exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"familyregistry/internal/logger"
)

// Policy bounds how a failed call is retried. A nil *Policy runs the call once.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64

	// Classify decides whether an error is worth another attempt.
	// Defaults to IsTransient.
	Classify func(error) bool

	// ClassifyWrite replaces Classify for the policy returned by Writes.
	// Defaults to IsRetryableWrite.
	ClassifyWrite func(error) bool

	Log *logger.Logger
}

// DefaultPolicy returns the policy used when nothing is configured
func DefaultPolicy(log *logger.Logger) *Policy {
	return &Policy{
		MaxAttempts:     3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
		Log:             log,
	}
}

func (p *Policy) classify(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Classify != nil {
		return p.Classify(err)
	}
	return IsTransient(err)
}

// Writes returns the policy to use for statements that change data. A write
// is only retried when the error proves the statement never ran; a lost
// reply after the statement was sent is returned to the caller.
func (p *Policy) Writes() *Policy {
	if p == nil {
		return nil
	}
	w := *p
	w.Classify = p.ClassifyWrite
	if w.Classify == nil {
		w.Classify = IsRetryableWrite
	}
	return &w
}

func (p *Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}
	return b
}

// Do runs op until it succeeds, fails with a non-transient error, the
// attempts are exhausted, or ctx is done. The last error from op is
// returned unwrapped.
func Do[T any](ctx context.Context, p *Policy, op func() (T, error)) (T, error) {
	if p == nil || p.MaxAttempts <= 1 {
		return op()
	}

	attempt := 0
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op()
		if err != nil && !p.classify(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			if p.Log != nil {
				p.Log.Warn("retrying transient database error",
					"attempt", attempt, "max_attempts", p.MaxAttempts, "next_in", next, "error", err)
			}
		}),
	)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	return res, err
}

// Run is Do for operations without a result
func Run(ctx context.Context, p *Policy, op func() error) error {
	_, err := Do(ctx, p, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}
