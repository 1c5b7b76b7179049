package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/fiffu/versionwatch/config"
	"github.com/juju/clock"
	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) *RetryPolicy {
	return &RetryPolicy{
		Attempts:      attempts,
		Delay:         time.Nanosecond,
		MaxDelay:      time.Nanosecond,
		BackoffFactor: 2,
		Clock:         clock.WallClock,
	}
}

func TestRetryPolicy_SucceedsAfterFailures(t *testing.T) {
	var calls, notified int
	err := fastPolicy(5).Do(context.Background(),
		func() error {
			calls++
			if calls < 3 {
				return errors.New("flaky")
			}
			return nil
		},
		func(error, int) { notified++ },
	)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, notified)
}

func TestRetryPolicy_ReturnsLastError(t *testing.T) {
	calls := 0
	err := fastPolicy(4).Do(context.Background(),
		func() error {
			calls++
			return errors.Errorf("attempt %d", calls)
		},
		nil,
	)
	assert.EqualError(t, err, "attempt 4")
	assert.Equal(t, 4, calls)
}

func TestRetryPolicy_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := &RetryPolicy{
		Attempts: 10,
		Delay:    time.Hour,
		MaxDelay: time.Hour,
		Clock:    clock.WallClock,
	}

	calls := 0
	err := policy.Do(ctx,
		func() error {
			calls++
			cancel()
			return errors.New("down")
		},
		nil,
	)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Equal(t, 1, calls)
}

func TestNewRetryPolicy(t *testing.T) {
	cfg := &config.Config{}
	cfg.Retry.Attempts = 7
	cfg.Retry.Delay = time.Second
	cfg.Retry.MaxDelay = 10 * time.Second
	cfg.Retry.MaxDuration = time.Minute
	clk := testclock.NewClock(time.Time{})

	policy := NewRetryPolicy(cfg, clk)
	assert.Equal(t, 7, policy.Attempts)
	assert.Equal(t, time.Second, policy.Delay)
	assert.Equal(t, 10*time.Second, policy.MaxDelay)
	assert.Equal(t, time.Minute, policy.MaxDuration)
	assert.Equal(t, 2.0, policy.BackoffFactor)
	assert.Same(t, clk, policy.Clock)
}
