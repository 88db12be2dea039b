// Package store persists one price record per calendar day.
//
// Insert never overwrites: the first record for a day wins and later inserts
// for the same day are no-ops. Existing rows change only through Update.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"pricesync/internal/config"
	"pricesync/internal/database"
	"pricesync/internal/price"
)

// ErrClosed is returned by a Memory store after Close.
var ErrClosed = errors.New("store closed")

// Store is the price table contract.
type Store interface {
	// Insert adds rec unless its day already exists; inserted reports which.
	Insert(ctx context.Context, rec price.Record) (inserted bool, err error)
	Exists(ctx context.Context, day time.Time) (bool, error)
	// Read returns ok=false when the day has no record.
	Read(ctx context.Context, day time.Time) (price.Record, bool, error)
	// ReadRange returns records with start <= day <= end, oldest first.
	ReadRange(ctx context.Context, start, end time.Time) ([]price.Record, error)
	// ReadAll returns every record, oldest first.
	ReadAll(ctx context.Context) ([]price.Record, error)
	// Update changes the non-nil fields of an existing record; updated is
	// false when the day has no record.
	Update(ctx context.Context, day time.Time, f price.Fields) (updated bool, err error)
	Close() error
}

// Open returns the store the database config selects, with its table
// created if needed.
func Open(ctx context.Context, cfg config.Database, logger *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := database.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		pg := NewPostgres(pool, cfg.Schema, cfg.Table, logger)
		pg.Timeout = cfg.QueryTimeout
		pg.closePool = true
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	case "sqlite":
		lite, err := OpenSQLite(ctx, cfg.SQLitePath, cfg.Table, logger)
		if err != nil {
			return nil, err
		}
		lite.Timeout = cfg.QueryTimeout
		return lite, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// decimalFromText parses a stored numeric column; empty means NULL.
func decimalFromText(s *string) (*decimal.Decimal, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// textOrNil renders an optional decimal as a query argument.
func textOrNil(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
