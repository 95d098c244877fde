// Package retry runs an operation with per-attempt timeouts and capped
// exponential backoff between attempts.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/madelhuette/carvitra-sub001/constants"
)

// Policy configures Do. The zero value makes a single attempt without a
// per-attempt timeout; Default is the policy to start from.
type Policy struct {
	MaxRetries     int
	Base           time.Duration
	Cap            time.Duration
	AttemptTimeout time.Duration

	// Sleep waits between attempts; tests replace it to observe delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default returns the base policy of the text extractor and the structured
// engine: two retries, 1s doubling backoff capped at 10s, 60s per attempt.
func Default() Policy {
	return Policy{
		MaxRetries:     constants.DefaultMaxRetries,
		Base:           constants.BackoffBase,
		Cap:            constants.BackoffCap,
		AttemptTimeout: constants.DefaultTimeout,
	}
}

// Backoff returns the wait before retry number attempt (1-based):
// min(base * 2^(attempt-1), ceiling).
func Backoff(attempt int, base, ceiling time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	if d > ceiling {
		return ceiling
	}
	return d
}

// Do calls op until it succeeds, retryable(err) reports false, the parent ctx
// is done, or MaxRetries retries were spent. It returns the number of
// attempts made and the last error.
func (p Policy) Do(ctx context.Context, logger *slog.Logger, name string, retryable func(error) bool, op func(ctx context.Context, attempt int) error) (int, error) {
	p = p.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	var err error
	attempt := 0
	for {
		attempt++
		err = p.once(ctx, attempt, op)
		if err == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, err
		}
		if attempt > p.MaxRetries || !retryable(err) {
			return attempt, err
		}

		wait := Backoff(attempt, p.Base, p.Cap)
		logger.Warn(name+".retry",
			"attempt", attempt,
			"max_retries", p.MaxRetries,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
		if sErr := p.Sleep(ctx, wait); sErr != nil {
			return attempt, err
		}
	}
}

func (p Policy) once(ctx context.Context, attempt int, op func(ctx context.Context, attempt int) error) error {
	if p.AttemptTimeout <= 0 {
		return op(ctx, attempt)
	}
	actx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return op(actx, attempt)
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.Base <= 0 {
		p.Base = constants.BackoffBase
	}
	if p.Cap <= 0 {
		p.Cap = constants.BackoffCap
	}
	if p.Sleep == nil {
		p.Sleep = sleepCtx
	}
	return p
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
