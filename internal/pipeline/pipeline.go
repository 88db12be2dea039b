// Package pipeline runs the ingestion and reconciliation operations over the
// extractor, the extraction cache, the conversion chain and the store.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pricesync/internal/convert"
	"pricesync/internal/extract"
	"pricesync/internal/price"
	"pricesync/internal/store"
)

// RowSource produces the raw history rows. *extract.Extractor satisfies it.
type RowSource interface {
	Extract(ctx context.Context) (extract.Extraction, error)
}

// RowCache holds today's extraction. *rowcache.Cache satisfies it.
type RowCache interface {
	Get(ctx context.Context) ([]price.RawRow, bool)
	Put(ctx context.Context, rows []price.RawRow) error
}

// Converter prices a native amount for a day. *convert.Chain satisfies it.
type Converter interface {
	Convert(ctx context.Context, day time.Time, native decimal.Decimal) (price.Conversion, convert.Trace, error)
}

// RateTable is an externally supplied day to rate mapping.
type RateTable interface {
	Rate(day time.Time) (decimal.Decimal, bool)
}

// Orchestrator wires the collaborators for one process. Cache may be nil.
type Orchestrator struct {
	Extractor RowSource
	Cache     RowCache
	Chain     Converter
	Store     store.Store
	Columns   Columns
	Logger    *slog.Logger
	Now       func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) columns() Columns {
	c := o.Columns
	if c.Date == "" {
		c.Date = DefaultColumns.Date
	}
	if c.Price == "" {
		c.Price = DefaultColumns.Price
	}
	return c
}

func (o *Orchestrator) begin(op string) (*Report, *slog.Logger) {
	r := &Report{
		Operation: op,
		RunID:     uuid.NewString(),
		Started:   o.now(),
		Counts:    make(map[Status]int),
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("run_id", r.RunID, "operation", op)
	logger.Info("run started")
	return r, logger
}

func (o *Orchestrator) finish(r *Report, logger *slog.Logger) Report {
	r.Finished = o.now()
	logger.Info("run finished", "report", *r)
	return *r
}

// FullBackfill converts and inserts every day on the page. Days already
// stored are left untouched and reported as exists.
func (o *Orchestrator) FullBackfill(ctx context.Context) Report {
	r, logger := o.begin("full")
	points := o.points(ctx, r, logger)
	o.ingest(ctx, r, logger, points, false)
	return o.finish(r, logger)
}

// IncrementalBackfill converts and inserts only the days not yet stored.
// Stored days are never sent to a rate provider.
func (o *Orchestrator) IncrementalBackfill(ctx context.Context) Report {
	r, logger := o.begin("incremental")
	points := o.points(ctx, r, logger)
	o.ingest(ctx, r, logger, points, true)
	return o.finish(r, logger)
}

// Import ingests points from an external file the same way IncrementalBackfill
// ingests extracted ones.
func (o *Orchestrator) Import(ctx context.Context, points []price.Point) Report {
	r, logger := o.begin("import")
	r.RowSource = "file"
	o.ingest(ctx, r, logger, points, true)
	return o.finish(r, logger)
}

// RecomputeRates reconverts every stored record that carries a native price
// and overwrites its price and rate. Records without a native price are
// skipped; records whose day has no rate keep their old values.
func (o *Orchestrator) RecomputeRates(ctx context.Context) Report {
	r, logger := o.begin("recompute")
	r.RowSource = "store"

	recs, err := o.Store.ReadAll(ctx)
	if err != nil {
		logger.Error("cannot read stored records", "error", err)
		r.add(itemFor(time.Time{}, StatusFailed, "", err))
		return o.finish(r, logger)
	}

	for _, rec := range recs {
		if o.interrupted(ctx, r, logger) {
			break
		}
		if rec.Native == nil {
			r.add(itemFor(rec.Date, StatusSkipped, "", nil))
			continue
		}
		conv, _, err := o.Chain.Convert(ctx, rec.Date, *rec.Native)
		if err != nil {
			r.add(itemFor(rec.Date, conversionStatus(err), "", err))
			continue
		}
		updated, err := o.Store.Update(ctx, rec.Date, price.Fields{
			Price:  price.Ptr(conv.Target),
			FXRate: price.Ptr(conv.Rate),
		})
		r.add(withRateDay(updateItem(rec.Date, conv.Source, updated, err), conv))
	}
	return o.finish(r, logger)
}

// BackfillReference sets the stored rate of every record whose day appears in
// table. It never inserts and never changes prices.
func (o *Orchestrator) BackfillReference(ctx context.Context, table RateTable) Report {
	r, logger := o.begin("reference")
	r.RowSource = "store"

	recs, err := o.Store.ReadAll(ctx)
	if err != nil {
		logger.Error("cannot read stored records", "error", err)
		r.add(itemFor(time.Time{}, StatusFailed, "", err))
		return o.finish(r, logger)
	}

	for _, rec := range recs {
		if o.interrupted(ctx, r, logger) {
			break
		}
		rate, ok := table.Rate(rec.Date)
		if !ok {
			r.add(itemFor(rec.Date, StatusSkipped, "", nil))
			continue
		}
		updated, err := o.Store.Update(ctx, rec.Date, price.Fields{FXRate: price.Ptr(rate)})
		r.add(updateItem(rec.Date, "reference", updated, err))
	}
	return o.finish(r, logger)
}

// points returns today's parsed rows, from the cache when it is fresh.
// Extraction failure leaves an empty result and r.ExtractErr set.
func (o *Orchestrator) points(ctx context.Context, r *Report, logger *slog.Logger) []price.Point {
	var rows []price.RawRow
	if o.Cache != nil {
		if cached, ok := o.Cache.Get(ctx); ok {
			rows = cached
			r.RowSource = "cache"
			logger.Info("using cached extraction", "rows", len(rows))
		}
	}
	if r.RowSource == "" {
		r.RowSource = "extract"
		ex, err := o.Extractor.Extract(ctx)
		if err != nil {
			r.ExtractErr = err
			logger.Error("extraction failed, nothing to ingest", "attempts", ex.Attempts, "error", err)
			return nil
		}
		rows = ex.Rows
		logger.Info("extracted rows", "rows", len(rows), "attempts", ex.Attempts, "skipped", ex.Skipped)
		if o.Cache != nil && len(rows) > 0 {
			if err := o.Cache.Put(ctx, rows); err != nil {
				logger.Warn("could not cache extraction", "error", err)
			}
		}
	}

	points, bad := ParseRows(rows, o.columns())
	for _, it := range bad {
		logger.Warn("dropping malformed row", "error", it.Err)
		r.add(it)
	}
	return points
}

func (o *Orchestrator) ingest(ctx context.Context, r *Report, logger *slog.Logger, points []price.Point, skipStored bool) {
	for _, p := range points {
		if o.interrupted(ctx, r, logger) {
			return
		}
		if skipStored {
			exists, err := o.Store.Exists(ctx, p.Date)
			if err != nil {
				r.add(itemFor(p.Date, StatusFailed, "", err))
				continue
			}
			if exists {
				r.add(itemFor(p.Date, StatusExists, "", nil))
				continue
			}
		}

		conv, _, err := o.Chain.Convert(ctx, p.Date, p.Native)
		if err != nil {
			logger.Warn("no rate, day not stored", "date", price.FormatDay(p.Date), "error", err)
			r.add(itemFor(p.Date, conversionStatus(err), "", err))
			continue
		}

		inserted, err := o.Store.Insert(ctx, price.Record{
			Date:   p.Date,
			Price:  conv.Target,
			Native: price.Ptr(conv.Native),
			FXRate: price.Ptr(conv.Rate),
		})
		var it Item
		switch {
		case err != nil:
			it = itemFor(p.Date, StatusFailed, conv.Source, err)
		case inserted:
			it = itemFor(p.Date, StatusInserted, conv.Source, nil)
		default:
			it = itemFor(p.Date, StatusExists, conv.Source, nil)
		}
		r.add(withRateDay(it, conv))
	}
}

func (o *Orchestrator) interrupted(ctx context.Context, r *Report, logger *slog.Logger) bool {
	if err := ctx.Err(); err != nil {
		if r.Interrupted == nil {
			r.Interrupted = err
			logger.Warn("run interrupted", "error", err)
		}
		return true
	}
	return false
}

func conversionStatus(err error) Status {
	if errors.Is(err, convert.ErrUnavailable) {
		return StatusUnavailable
	}
	return StatusFailed
}

func updateItem(day time.Time, source string, updated bool, err error) Item {
	switch {
	case err != nil:
		return itemFor(day, StatusFailed, source, err)
	case updated:
		return itemFor(day, StatusUpdated, source, nil)
	default:
		return itemFor(day, StatusMissing, source, nil)
	}
}
