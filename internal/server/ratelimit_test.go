package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newLimiter(cfg RateLimitConfig) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(cfg)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_NoLimits(t *testing.T) {
	rl, _ := newLimiter(RateLimitConfig{})
	for range 100 {
		require.NoError(t, rl.CheckRateLimit("c", 1000))
	}
	u := rl.GetUsage("c")
	assert.Equal(t, 100, u.Today)
	assert.Equal(t, int64(100000), u.BytesToday)
	assert.Equal(t, Usage{}, rl.GetUsage("unknown"))
}

func TestRateLimiter_PerMinute(t *testing.T) {
	rl, clock := newLimiter(RateLimitConfig{RequestsPerMinute: 2})

	require.NoError(t, rl.CheckRateLimit("c", 0))
	clock.advance(20 * time.Second)
	require.NoError(t, rl.CheckRateLimit("c", 0))

	err := rl.CheckRateLimit("c", 0)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "minute", rle.Window)
	assert.Equal(t, 2, rle.Limit)
	assert.Equal(t, 40*time.Second, rle.RetryAfter)

	// other clients are independent
	require.NoError(t, rl.CheckRateLimit("other", 0))

	// the window is anchored at its first request, so steady traffic cannot
	// keep it open forever
	clock.advance(40 * time.Second)
	assert.NoError(t, rl.CheckRateLimit("c", 0))
}

func TestRateLimiter_PerHour(t *testing.T) {
	rl, clock := newLimiter(RateLimitConfig{RequestsPerHour: 3})
	for range 3 {
		require.NoError(t, rl.CheckRateLimit("c", 0))
		clock.advance(2 * time.Minute)
	}
	var rle *RateLimitError
	require.ErrorAs(t, rl.CheckRateLimit("c", 0), &rle)
	assert.Equal(t, "hour", rle.Window)

	clock.advance(time.Hour)
	assert.NoError(t, rl.CheckRateLimit("c", 0))
}

func TestRateLimiter_DailyQuotas(t *testing.T) {
	rl, clock := newLimiter(RateLimitConfig{MaxRequestsPerDay: 2, MaxDataPerDay: 100})

	require.NoError(t, rl.CheckRateLimit("c", 60))
	var qe *QuotaExceededError
	require.ErrorAs(t, rl.CheckRateLimit("c", 60), &qe)
	assert.Equal(t, "data", qe.Quota)
	assert.Equal(t, int64(60), qe.Used)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), qe.Resets)

	require.NoError(t, rl.CheckRateLimit("c", 10))
	require.ErrorAs(t, rl.CheckRateLimit("c", 0), &qe)
	assert.Equal(t, "requests", qe.Quota)

	clock.advance(12 * time.Hour)
	assert.NoError(t, rl.CheckRateLimit("c", 60))
}

func TestRateLimitErrors(t *testing.T) {
	rle := &RateLimitError{Window: "minute", Limit: 5, RetryAfter: 30 * time.Second}
	assert.Equal(t, "rate limit exceeded for minute (limit: 5, retry after: 30s)", rle.Error())

	qe := &QuotaExceededError{Quota: "data", Limit: 10, Used: 9, Resets: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	assert.Contains(t, qe.Error(), "quota exceeded for data (used: 9, limit: 10")
}
