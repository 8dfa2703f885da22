package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitConfig sets per-client limits. Zero disables a limit.
type RateLimitConfig struct {
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64 // bytes
}

// RateLimiter tracks per-client usage in fixed minute, hour and day windows.
type RateLimiter struct {
	mu      sync.Mutex
	cfg     RateLimitConfig
	clients map[string]*clientUsage
	now     func() time.Time
}

type clientUsage struct {
	minuteStart, hourStart, dayStart time.Time

	minute, hour, day int
	bytesToday        int64
}

// Usage is a snapshot of one client's counters.
type Usage struct {
	LastMinute int
	LastHour   int
	Today      int
	BytesToday int64
}

// NewRateLimiter creates a rate limiter with the given limits.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{cfg: cfg, clients: make(map[string]*clientUsage), now: time.Now}
}

// CheckRateLimit admits one request of dataSize bytes from clientID or
// returns a *RateLimitError or *QuotaExceededError. Rejected requests are
// not counted.
func (rl *RateLimiter) CheckRateLimit(clientID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u, ok := rl.clients[clientID]
	if !ok {
		u = &clientUsage{minuteStart: now, hourStart: now, dayStart: startOfDay(now)}
		rl.clients[clientID] = u
	}
	u.roll(now)

	if rl.cfg.RequestsPerMinute > 0 && u.minute >= rl.cfg.RequestsPerMinute {
		return &RateLimitError{Window: "minute", Limit: rl.cfg.RequestsPerMinute, RetryAfter: u.minuteStart.Add(time.Minute).Sub(now)}
	}
	if rl.cfg.RequestsPerHour > 0 && u.hour >= rl.cfg.RequestsPerHour {
		return &RateLimitError{Window: "hour", Limit: rl.cfg.RequestsPerHour, RetryAfter: u.hourStart.Add(time.Hour).Sub(now)}
	}
	resets := u.dayStart.AddDate(0, 0, 1)
	if rl.cfg.MaxRequestsPerDay > 0 && u.day >= rl.cfg.MaxRequestsPerDay {
		return &QuotaExceededError{Quota: "requests", Limit: int64(rl.cfg.MaxRequestsPerDay), Used: int64(u.day), Resets: resets}
	}
	if rl.cfg.MaxDataPerDay > 0 && u.bytesToday+dataSize > rl.cfg.MaxDataPerDay {
		return &QuotaExceededError{Quota: "data", Limit: rl.cfg.MaxDataPerDay, Used: u.bytesToday, Resets: resets}
	}

	u.minute++
	u.hour++
	u.day++
	u.bytesToday += dataSize
	return nil
}

// roll starts new windows once the current ones have elapsed.
func (u *clientUsage) roll(now time.Time) {
	if now.Sub(u.minuteStart) >= time.Minute {
		u.minuteStart, u.minute = now, 0
	}
	if now.Sub(u.hourStart) >= time.Hour {
		u.hourStart, u.hour = now, 0
	}
	if day := startOfDay(now); !day.Equal(u.dayStart) {
		u.dayStart, u.day, u.bytesToday = day, 0, 0
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// GetUsage returns the counters of a client.
func (rl *RateLimiter) GetUsage(clientID string) Usage {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	u, ok := rl.clients[clientID]
	if !ok {
		return Usage{}
	}
	return Usage{LastMinute: u.minute, LastHour: u.hour, Today: u.day, BytesToday: u.bytesToday}
}

// RateLimitError reports an exceeded request rate.
type RateLimitError struct {
	Window     string // "minute" or "hour"
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Window, e.Limit, e.RetryAfter.Round(time.Second))
}

// QuotaExceededError reports an exhausted daily quota.
type QuotaExceededError struct {
	Quota  string // "requests" or "data"
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Quota, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
