package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func fastConfig() Config {
	return Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return nil
	}, nil, fastConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("transient")
		}
		return nil
	}, nil, fastConfig())
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return fmt.Errorf("always")
	}, nil, fastConfig())
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnFatalError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return &FatalError{Err: fmt.Errorf("bad request")}
	}, nil, fastConfig())
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, func() error { return fmt.Errorf("never reached cleanly") }, nil, fastConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

type statusErr int

func (s statusErr) Error() string   { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

func TestAdaptiveLimiterFailureReducesRate(t *testing.T) {
	lim := NewAdaptiveLimiter(4, 1, 8, 1, 0.5)
	require.Equal(t, 4.0, lim.CurrentLimit())

	lim.Failure()
	assert.Equal(t, 2.0, lim.CurrentLimit())
	lim.Failure()
	lim.Failure()
	lim.Failure()
	assert.Equal(t, 1.0, lim.CurrentLimit()) // floored at min
}

func TestAdaptiveLimiterSuccessNeedsQuietPeriod(t *testing.T) {
	lim := NewAdaptiveLimiter(2, 1, 8, 1, 0.5)
	lim.Failure()
	before := lim.CurrentLimit()
	lim.Success() // inside the error cooldown, no increase
	assert.Equal(t, before, lim.CurrentLimit())
}

func TestAdaptiveLimiterSuccessRaisesUpToMax(t *testing.T) {
	lim := NewAdaptiveLimiter(7, 1, 8, 2, 0.5)
	lim.Success()
	assert.Equal(t, 8.0, lim.CurrentLimit()) // capped at max
}

func TestShouldRateLimit(t *testing.T) {
	assert.True(t, shouldRateLimit(statusErr(429)))
	assert.True(t, shouldRateLimit(statusErr(503)))
	assert.False(t, shouldRateLimit(statusErr(400)))
	assert.False(t, shouldRateLimit(fmt.Errorf("plain error")))
}

func TestDoWithLimiterStillCompletes(t *testing.T) {
	lim := NewAdaptiveLimiter(rate.Limit(100), 1, 100, 1, 0.5)
	err := Do(context.Background(), func() error { return nil }, lim, fastConfig())
	assert.NoError(t, err)
}
