package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"pricesync/internal/price"
)

// SQLite stores records in a local file. Days and numerics are TEXT;
// ISO dates sort correctly as strings.
type SQLite struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
	// Timeout bounds each statement; zero leaves it to the caller's context.
	Timeout time.Duration
}

// OpenSQLite opens (or creates) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path, table string, logger *slog.Logger) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLite{db: db, table: table, logger: orDefault(logger)}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
			price_date TEXT PRIMARY KEY,
			price      TEXT NOT NULL,
			price_eur  TEXT,
			fx_rate    TEXT
		)`, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Insert(ctx context.Context, rec price.Record) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	query := fmt.Sprintf(`INSERT INTO %q (price_date, price, price_eur, fx_rate) VALUES (?, ?, ?, ?)
		ON CONFLICT (price_date) DO NOTHING`, s.table)

	var inserted bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, price.FormatDay(rec.Date), rec.Price.String(), textOrNil(rec.Native), textOrNil(rec.FXRate))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = n > 0
		return nil
	})
	if err != nil {
		s.logger.Error("insert rolled back", "date", price.FormatDay(rec.Date), "error", err)
		return false, fmt.Errorf("insert %s: %w", price.FormatDay(rec.Date), err)
	}
	return inserted, nil
}

func (s *SQLite) Exists(ctx context.Context, day time.Time) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %q WHERE price_date = ?)`, s.table)
	if err := s.db.QueryRowContext(ctx, query, price.FormatDay(day)).Scan(&exists); err != nil {
		s.logger.Error("exists check failed", "date", price.FormatDay(day), "error", err)
		return false, fmt.Errorf("exists %s: %w", price.FormatDay(day), err)
	}
	return exists, nil
}

func (s *SQLite) Read(ctx context.Context, day time.Time) (price.Record, bool, error) {
	recs, err := s.selectRecords(ctx, `WHERE price_date = ?`, price.FormatDay(day))
	if err != nil || len(recs) == 0 {
		return price.Record{}, false, err
	}
	return recs[0], true, nil
}

func (s *SQLite) ReadRange(ctx context.Context, start, end time.Time) ([]price.Record, error) {
	return s.selectRecords(ctx, `WHERE price_date BETWEEN ? AND ?`, price.FormatDay(start), price.FormatDay(end))
}

func (s *SQLite) ReadAll(ctx context.Context) ([]price.Record, error) {
	return s.selectRecords(ctx, ``)
}

func (s *SQLite) selectRecords(ctx context.Context, where string, args ...any) ([]price.Record, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT price_date, price, price_eur, fx_rate FROM %q %s ORDER BY price_date ASC`, s.table, where)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("read failed", "error", err)
		return []price.Record{}, fmt.Errorf("read %s: %w", s.table, err)
	}
	defer rows.Close()

	out := []price.Record{}
	for rows.Next() {
		var (
			dayText, priceText   string
			nativeText, rateText *string
		)
		if err := rows.Scan(&dayText, &priceText, &nativeText, &rateText); err != nil {
			s.logger.Warn("skipping unreadable row", "error", err)
			continue
		}
		day, err := price.ParseDay(dayText)
		if err != nil {
			s.logger.Warn("skipping row with bad date", "value", dayText, "error", err)
			continue
		}
		rec, err := buildRecord(day, priceText, nativeText, rateText)
		if err != nil {
			s.logger.Warn("skipping malformed row", "date", dayText, "error", err)
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("read interrupted", "error", err)
		return []price.Record{}, fmt.Errorf("read %s: %w", s.table, err)
	}
	return out, nil
}

func (s *SQLite) Update(ctx context.Context, day time.Time, f price.Fields) (bool, error) {
	if f.Empty() {
		return false, nil
	}
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	set, args := updateClause(f, func(int) string { return "?" })
	args = append(args, price.FormatDay(day))
	query := fmt.Sprintf(`UPDATE %q SET %s WHERE price_date = ?`, s.table, set)

	var updated bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		updated = n > 0
		return nil
	})
	if err != nil {
		s.logger.Error("update rolled back", "date", price.FormatDay(day), "error", err)
		return false, fmt.Errorf("update %s: %w", price.FormatDay(day), err)
	}
	return updated, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
