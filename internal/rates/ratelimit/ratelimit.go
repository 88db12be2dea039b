package ratelimit

import (
	"context"
	"sync"
	"time"

	"pricesync/internal/rates"
)

// MinInterval wraps a provider and enforces a minimum time between calls.
type MinInterval struct {
	P        rates.Provider
	Interval time.Duration
	mu       sync.Mutex
	last     time.Time
}

func (m *MinInterval) Name() string { return m.P.Name() }

func (m *MinInterval) Rate(ctx context.Context, day time.Time) (rates.Quote, error) {
	if m.Interval > 0 {
		m.mu.Lock()
		wait := time.Until(m.last.Add(m.Interval))
		m.mu.Unlock()
		if wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return rates.Quote{}, ctx.Err()
			case <-t.C:
			}
		}
	}
	q, err := m.P.Rate(ctx, day)
	if m.Interval > 0 {
		m.mu.Lock()
		m.last = time.Now()
		m.mu.Unlock()
	}
	return q, err
}

// Wrap applies the limiter the settings ask for: a token bucket when rpm is
// set, else a fixed interval, else nothing.
func Wrap(p rates.Provider, rpm, burst int, interval time.Duration) rates.Provider {
	switch {
	case rpm > 0:
		return &TokenBucketProvider{P: p, TB: PerMinute(rpm, burst)}
	case interval > 0:
		return &MinInterval{P: p, Interval: interval}
	default:
		return p
	}
}
