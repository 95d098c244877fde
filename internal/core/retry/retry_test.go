package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func recordingPolicy(maxRetries int, waits *[]time.Duration) Policy {
	return Policy{
		MaxRetries: maxRetries,
		Base:       time.Second,
		Cap:        10 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			*waits = append(*waits, d)
			return nil
		},
	}
}

func always(error) bool { return true }

func TestBackoff(t *testing.T) {
	base, ceiling := time.Second, 10*time.Second
	assert.Equal(t, 1*time.Second, Backoff(1, base, ceiling))
	assert.Equal(t, 2*time.Second, Backoff(2, base, ceiling))
	assert.Equal(t, 4*time.Second, Backoff(3, base, ceiling))
	assert.Equal(t, 8*time.Second, Backoff(4, base, ceiling))
	assert.Equal(t, 10*time.Second, Backoff(5, base, ceiling))
	assert.Equal(t, 10*time.Second, Backoff(40, base, ceiling))
	assert.Equal(t, 1*time.Second, Backoff(0, base, ceiling))
}

func TestDo_RetriesNeverExceedMax(t *testing.T) {
	for _, maxRetries := range []int{0, 1, 2, 5} {
		var waits []time.Duration
		calls := 0
		attempts, err := recordingPolicy(maxRetries, &waits).Do(context.Background(), nil, "test", always,
			func(context.Context, int) error {
				calls++
				return errFlaky
			})
		require.ErrorIs(t, err, errFlaky)
		assert.Equal(t, maxRetries+1, calls)
		assert.Equal(t, calls, attempts)
		require.Len(t, waits, maxRetries)
		for n, w := range waits {
			assert.Equal(t, Backoff(n+1, time.Second, 10*time.Second), w)
		}
	}
}

func TestDo_StopsOnSuccess(t *testing.T) {
	var waits []time.Duration
	attempts, err := recordingPolicy(3, &waits).Do(context.Background(), nil, "test", always,
		func(_ context.Context, attempt int) error {
			if attempt < 2 {
				return errFlaky
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, []time.Duration{time.Second}, waits)
}

func TestDo_TerminalErrorIsNotRetried(t *testing.T) {
	terminal := errors.New("auth")
	var waits []time.Duration
	attempts, err := recordingPolicy(3, &waits).Do(context.Background(), nil, "test",
		func(err error) bool { return !errors.Is(err, terminal) },
		func(context.Context, int) error { return terminal })
	require.ErrorIs(t, err, terminal)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, waits)
}

func TestDo_AttemptTimeout(t *testing.T) {
	var waits []time.Duration
	p := recordingPolicy(1, &waits)
	p.AttemptTimeout = 10 * time.Millisecond

	attempts, err := p.Do(context.Background(), nil, "test", func(err error) bool {
		return errors.Is(err, context.DeadlineExceeded)
	}, func(ctx context.Context, _ int) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, attempts)
}

func TestDo_ParentCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var waits []time.Duration
	attempts, err := recordingPolicy(5, &waits).Do(ctx, nil, "test", always,
		func(context.Context, int) error {
			cancel()
			return errFlaky
		})
	require.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, attempts)
}

func TestZeroPolicyMakesOneAttempt(t *testing.T) {
	calls := 0
	attempts, err := Policy{}.Do(context.Background(), nil, "test", always, func(context.Context, int) error {
		calls++
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestDefault(t *testing.T) {
	p := Default()
	assert.Equal(t, 2, p.MaxRetries)
	assert.Equal(t, time.Second, p.Base)
	assert.Equal(t, 10*time.Second, p.Cap)
	assert.Equal(t, 60*time.Second, p.AttemptTimeout)

	var waits []time.Duration
	p.Sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	attempts, err := p.Do(context.Background(), nil, "test", always, func(context.Context, int) error { return errFlaky })
	require.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
}
