// Package rowcache keeps the last successful extraction for the rest of the
// calendar day.
//
// The cache is one slot with no locking. Two runs on the same slot race and
// the last writer wins; callers are expected to run one pipeline at a time.
package rowcache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pricesync/internal/price"
)

// Entry is what a Slot persists.
type Entry struct {
	ExtractionDate string         `json:"extraction_date"`
	Rows           []price.RawRow `json:"rows"`
}

// Slot stores a single Entry. Load reports ok=false when nothing is stored.
type Slot interface {
	Load(ctx context.Context) (Entry, bool, error)
	Store(ctx context.Context, e Entry) error
}

// Cache answers with the stored rows only while they were extracted today.
type Cache struct {
	Slot     Slot
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
}

func (c *Cache) today() string {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return price.FormatDay(price.Today(now(), c.Location))
}

// Get returns today's rows. A stale entry, an empty slot, or an unreadable
// slot are all misses; only the last is logged.
func (c *Cache) Get(ctx context.Context) ([]price.RawRow, bool) {
	e, ok, err := c.Slot.Load(ctx)
	if err != nil {
		c.logger().Warn("extraction cache unreadable, treating as miss", "error", err)
		return nil, false
	}
	if !ok || e.ExtractionDate != c.today() {
		return nil, false
	}
	return e.Rows, true
}

// Put replaces the slot with rows stamped with today's date.
func (c *Cache) Put(ctx context.Context, rows []price.RawRow) error {
	if err := c.Slot.Store(ctx, Entry{ExtractionDate: c.today(), Rows: rows}); err != nil {
		return fmt.Errorf("store extraction cache: %w", err)
	}
	return nil
}

func (c *Cache) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
