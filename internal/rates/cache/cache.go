package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pricesync/internal/price"
	"pricesync/internal/rates"
)

// entry stores a cached quote for a single day with expiry.
type entry struct {
	expiresAt time.Time
	quote     rates.Quote
}

// Provider memoizes successful quotes per calendar day for a TTL and
// collapses concurrent lookups of the same day into one upstream call.
// Failures are never cached.
type Provider struct {
	P        rates.Provider
	TTL      time.Duration
	MaxItems int
	Now      func() time.Time

	mu    sync.RWMutex
	items map[string]entry // key: YYYY-MM-DD
	sf    singleflight.Group
}

func (c *Provider) Name() string { return c.P.Name() }

func (c *Provider) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Rate returns the cached quote for day when still valid.
func (c *Provider) Rate(ctx context.Context, day time.Time) (rates.Quote, error) {
	if c.TTL <= 0 {
		return c.P.Rate(ctx, day)
	}

	key := price.FormatDay(day)
	now := c.now()

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if ok && now.Before(e.expiresAt) {
		return e.quote, nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		return c.P.Rate(ctx, day)
	})
	if err != nil {
		return rates.Quote{}, err
	}
	q := v.(rates.Quote)

	c.mu.Lock()
	if c.items == nil {
		c.items = make(map[string]entry)
	}
	c.items[key] = entry{expiresAt: now.Add(c.TTL), quote: q}
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		// remove expired first, then arbitrary keys until under the cap
		for k, v := range c.items {
			if now.After(v.expiresAt) {
				delete(c.items, k)
			}
		}
		for k := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if k != key {
				delete(c.items, k)
			}
		}
	}
	c.mu.Unlock()

	return q, nil
}
