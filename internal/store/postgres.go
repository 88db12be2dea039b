package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pricesync/internal/price"
)

// PgxConn is the subset of *pgxpool.Pool the store uses.
type PgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Postgres stores records in schema.table:
//
//	price_date DATE PRIMARY KEY, price NUMERIC NOT NULL,
//	price_eur NUMERIC NULL, fx_rate NUMERIC NULL
//
// Numerics travel as text in both directions so no precision is lost.
type Postgres struct {
	db        PgxConn
	schema    string
	table     string
	ident     string
	logger    *slog.Logger
	closePool bool
	// Timeout bounds each statement; zero leaves it to the caller's context.
	Timeout time.Duration
}

func NewPostgres(db PgxConn, schema, table string, logger *slog.Logger) *Postgres {
	ident := pgx.Identifier{table}
	if schema != "" {
		ident = pgx.Identifier{schema, table}
	}
	return &Postgres{
		db:     db,
		schema: schema,
		table:  table,
		ident:  ident.Sanitize(),
		logger: orDefault(logger),
	}
}

// Migrate creates the schema and table if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, p.Timeout)
	defer cancel()

	var stmts []string
	if p.schema != "" {
		stmts = append(stmts, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pgx.Identifier{p.schema}.Sanitize()))
	}
	stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		price_date DATE PRIMARY KEY,
		price      NUMERIC NOT NULL,
		price_eur  NUMERIC,
		fx_rate    NUMERIC
	)`, p.ident))
	for _, s := range stmts {
		if _, err := p.db.Exec(ctx, s); err != nil {
			return fmt.Errorf("migrate %s: %w", p.ident, err)
		}
	}
	return nil
}

func (p *Postgres) Insert(ctx context.Context, rec price.Record) (bool, error) {
	ctx, cancel := withTimeout(ctx, p.Timeout)
	defer cancel()

	query := fmt.Sprintf(`INSERT INTO %s (price_date, price, price_eur, fx_rate)
		VALUES ($1, $2::numeric, $3::numeric, $4::numeric)
		ON CONFLICT (price_date) DO NOTHING`, p.ident)

	var inserted bool
	err := pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, price.Day(rec.Date), rec.Price.String(), textOrNil(rec.Native), textOrNil(rec.FXRate))
		if err != nil {
			return err
		}
		inserted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		p.logger.Error("insert rolled back", "date", price.FormatDay(rec.Date), "error", err)
		return false, fmt.Errorf("insert %s: %w", price.FormatDay(rec.Date), err)
	}
	return inserted, nil
}

func (p *Postgres) Exists(ctx context.Context, day time.Time) (bool, error) {
	ctx, cancel := withTimeout(ctx, p.Timeout)
	defer cancel()

	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE price_date = $1)`, p.ident)
	if err := p.db.QueryRow(ctx, query, price.Day(day)).Scan(&exists); err != nil {
		p.logger.Error("exists check failed", "date", price.FormatDay(day), "error", err)
		return false, fmt.Errorf("exists %s: %w", price.FormatDay(day), err)
	}
	return exists, nil
}

func (p *Postgres) Read(ctx context.Context, day time.Time) (price.Record, bool, error) {
	recs, err := p.selectRecords(ctx, `WHERE price_date = $1`, price.Day(day))
	if err != nil || len(recs) == 0 {
		return price.Record{}, false, err
	}
	return recs[0], true, nil
}

func (p *Postgres) ReadRange(ctx context.Context, start, end time.Time) ([]price.Record, error) {
	return p.selectRecords(ctx, `WHERE price_date BETWEEN $1 AND $2`, price.Day(start), price.Day(end))
}

func (p *Postgres) ReadAll(ctx context.Context) ([]price.Record, error) {
	return p.selectRecords(ctx, ``)
}

func (p *Postgres) selectRecords(ctx context.Context, where string, args ...any) ([]price.Record, error) {
	ctx, cancel := withTimeout(ctx, p.Timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT price_date, price::text, price_eur::text, fx_rate::text
		FROM %s %s ORDER BY price_date ASC`, p.ident, where)
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		p.logger.Error("read failed", "error", err)
		return []price.Record{}, fmt.Errorf("read %s: %w", p.ident, err)
	}
	defer rows.Close()

	out := []price.Record{}
	for rows.Next() {
		var (
			day                  time.Time
			priceText            string
			nativeText, rateText *string
		)
		if err := rows.Scan(&day, &priceText, &nativeText, &rateText); err != nil {
			p.logger.Warn("skipping unreadable row", "error", err)
			continue
		}
		rec, err := buildRecord(day, priceText, nativeText, rateText)
		if err != nil {
			p.logger.Warn("skipping malformed row", "date", price.FormatDay(day), "error", err)
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		p.logger.Error("read interrupted", "error", err)
		return []price.Record{}, fmt.Errorf("read %s: %w", p.ident, err)
	}
	return out, nil
}

func (p *Postgres) Update(ctx context.Context, day time.Time, f price.Fields) (bool, error) {
	if f.Empty() {
		return false, nil
	}
	ctx, cancel := withTimeout(ctx, p.Timeout)
	defer cancel()

	set, args := updateClause(f, func(i int) string { return fmt.Sprintf("$%d::numeric", i) })
	args = append(args, price.Day(day))
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE price_date = $%d`, p.ident, set, len(args))

	var updated bool
	err := pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		updated = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		p.logger.Error("update rolled back", "date", price.FormatDay(day), "error", err)
		return false, fmt.Errorf("update %s: %w", price.FormatDay(day), err)
	}
	return updated, nil
}

func (p *Postgres) Close() error {
	if pool, ok := p.db.(*pgxpool.Pool); ok && p.closePool {
		pool.Close()
	}
	return nil
}

// updateClause renders "col = <placeholder>, ..." for the non-nil fields.
// placeholder receives the 1-based argument position.
func updateClause(f price.Fields, placeholder func(int) string) (string, []any) {
	var (
		parts []string
		args  []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		parts = append(parts, col+" = "+placeholder(len(args)))
	}
	if f.Price != nil {
		add("price", f.Price.String())
	}
	if f.Native != nil {
		add("price_eur", f.Native.String())
	}
	if f.FXRate != nil {
		add("fx_rate", f.FXRate.String())
	}
	return strings.Join(parts, ", "), args
}

func buildRecord(day time.Time, priceText string, nativeText, rateText *string) (price.Record, error) {
	p, err := decimalFromText(&priceText)
	if err != nil {
		return price.Record{}, fmt.Errorf("price: %w", err)
	}
	if p == nil {
		return price.Record{}, fmt.Errorf("price is empty")
	}
	native, err := decimalFromText(nativeText)
	if err != nil {
		return price.Record{}, fmt.Errorf("price_eur: %w", err)
	}
	rate, err := decimalFromText(rateText)
	if err != nil {
		return price.Record{}, fmt.Errorf("fx_rate: %w", err)
	}
	return price.Record{Date: price.Day(day), Price: *p, Native: native, FXRate: rate}, nil
}
