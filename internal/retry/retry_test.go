package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func alwaysRetryable(error) bool { return true }

func TestDo_SucceedsWithoutRetry(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), DefaultConfig(), alwaysRetryable, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestDo_RetriesUpToMaxAttempts(t *testing.T) {
	t.Parallel()

	cfg := Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Base: 2, Jitter: false}
	calls := 0
	boom := errors.New("boom")
	err := Do(context.Background(), cfg, alwaysRetryable, func(context.Context) error {
		calls++
		return boom
	})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 3, calls)
	require.Equal(t, 3, exhausted.Attempts)
	require.ErrorIs(t, exhausted.LastError, boom)
}

func TestDo_NonRetryableAbortsImmediately(t *testing.T) {
	t.Parallel()

	calls := 0
	boom := errors.New("fatal")
	err := Do(context.Background(), DefaultConfig(), func(error) bool { return false }, func(context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestDo_CancellationAbortsBeforeNextAttempt(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 5, InitialDelay: 50 * time.Millisecond, MaxDelay: time.Second, Base: 2, Jitter: false}

	calls := 0
	err := Do(ctx, cfg, alwaysRetryable, func(context.Context) error {
		calls++
		if calls == 1 {
			cancel()
		}
		return errors.New("retry me")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestDelayForAttempt_MatchesFormulaWithoutJitter(t *testing.T) {
	t.Parallel()

	cfg := Config{InitialDelay: time.Second, MaxDelay: 10 * time.Second, Base: 2, Jitter: false}
	require.Equal(t, time.Second, delayForAttempt(cfg, 1))
	require.Equal(t, 2*time.Second, delayForAttempt(cfg, 2))
	require.Equal(t, 4*time.Second, delayForAttempt(cfg, 3))
}

func TestDelayForAttempt_CapsAtMaxDelay(t *testing.T) {
	t.Parallel()

	cfg := Config{InitialDelay: time.Second, MaxDelay: 3 * time.Second, Base: 2, Jitter: false}
	require.Equal(t, 3*time.Second, delayForAttempt(cfg, 5))
}

func TestDelayForAttempt_JitterStaysWithinBounds(t *testing.T) {
	t.Parallel()

	cfg := Config{InitialDelay: time.Second, MaxDelay: 10 * time.Second, Base: 2, Jitter: true}
	for i := 0; i < 50; i++ {
		d := delayForAttempt(cfg, 2)
		require.GreaterOrEqual(t, d, time.Second)
		require.LessOrEqual(t, d, 4*time.Second)
	}
}
