package quota

import (
	"context"
	"sync"
	"time"

	"policy-digest/config"
)

// Limiter applies per-minute pacing and a daily cap to LLM summary calls.
// State is in-memory and resets when the process restarts, which matches a
// pipeline that runs once per external trigger.
type Limiter struct {
	mu sync.Mutex

	dailyLimit int
	usedToday  int
	dayKey     string

	interval time.Duration
	lastCall time.Time
}

// NewLimiterFromConfig builds a Limiter from the summary_quota section.
// Non-positive values disable the corresponding limit.
func NewLimiterFromConfig(cfg config.SummaryQuotaConfig) *Limiter {
	requestsPerDay := cfg.RequestsPerDay
	if requestsPerDay < 0 {
		requestsPerDay = 0
	}

	requestsPerMinute := cfg.RequestsPerMinute
	if requestsPerMinute < 0 {
		requestsPerMinute = 0
	}

	var interval time.Duration
	if requestsPerMinute > 0 {
		interval = time.Minute / time.Duration(requestsPerMinute)
	}

	return &Limiter{
		dailyLimit: requestsPerDay,
		interval:   interval,
	}
}

// WaitAndReserve blocks until the pacing interval allows another call.
// It returns (false, nil) when the daily cap is exhausted, in which case the
// caller must skip the call, and (false, err) when ctx is cancelled.
func (l *Limiter) WaitAndReserve(ctx context.Context) (bool, error) {
	for {
		l.mu.Lock()

		now := time.Now().UTC()
		todayKey := now.Format("2006-01-02")
		if l.dayKey != todayKey {
			l.dayKey = todayKey
			l.usedToday = 0
		}

		if l.dailyLimit > 0 && l.usedToday >= l.dailyLimit {
			l.mu.Unlock()
			return false, nil
		}

		var delay time.Duration
		if l.interval > 0 && !l.lastCall.IsZero() {
			nextAllowed := l.lastCall.Add(l.interval)
			delay = time.Until(nextAllowed)
		}

		if delay <= 0 {
			l.usedToday++
			l.lastCall = now
			l.mu.Unlock()
			return true, nil
		}

		l.mu.Unlock()
		select {
		case <-time.After(delay):
			// re-evaluate under the lock
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}
