package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"pricesync/internal/price"
	"pricesync/internal/series"
	"pricesync/internal/store"
)

// maxWindow bounds a single range request.
const maxWindow = 366 * 10 * 24 * time.Hour

type api struct {
	store      store.Store
	windowDays int
	timeout    time.Duration
	loc        *time.Location
	now        func() time.Time
	logger     *slog.Logger
}

type priceRow struct {
	Date     string `json:"date"`
	PriceUSD string `json:"price_usd"`
	PriceEUR string `json:"price_eur,omitempty"`
	FXRate   string `json:"fx_rate,omitempty"`
}

type pricesResponse struct {
	From   string       `json:"from"`
	To     string       `json:"to"`
	Prices []priceRow   `json:"prices"`
	Chart  series.Chart `json:"chart"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *api) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/api/prices", a.handlePrices)
	mux.HandleFunc("/api/summary", a.handleSummary)
	return mux
}

func (a *api) handlePrices(w http.ResponseWriter, r *http.Request) {
	start, end, err := a.window(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, ok := a.read(w, r.Context(), start, end)
	if !ok {
		return
	}

	rows := make([]priceRow, 0, len(recs))
	for _, rec := range recs {
		row := priceRow{Date: price.FormatDay(rec.Date), PriceUSD: rec.Price.String()}
		if rec.Native != nil {
			row.PriceEUR = rec.Native.String()
		}
		if rec.FXRate != nil {
			row.FXRate = rec.FXRate.String()
		}
		rows = append(rows, row)
	}
	writeJSON(w, http.StatusOK, pricesResponse{
		From:   price.FormatDay(start),
		To:     price.FormatDay(end),
		Prices: rows,
		Chart:  series.ToChart(recs),
	})
}

func (a *api) handleSummary(w http.ResponseWriter, r *http.Request) {
	start, end, err := a.window(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, ok := a.read(w, r.Context(), start, end)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, series.Summarize(recs))
}

func (a *api) read(w http.ResponseWriter, rctx context.Context, start, end time.Time) ([]price.Record, bool) {
	timeout := a.timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(rctx, timeout)
	defer cancel()
	recs, err := a.store.ReadRange(ctx, start, end)
	if err != nil {
		a.logger.Error("range read failed", "from", price.FormatDay(start), "to", price.FormatDay(end), "error", err)
		writeError(w, http.StatusServiceUnavailable, "price store unavailable")
		return nil, false
	}
	return series.Chronological(recs), true
}

// window reads start and end (YYYY-MM-DD). Missing end means today; missing
// start means windowDays before end.
func (a *api) window(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	end := price.Today(a.now(), a.loc)
	if s := q.Get("end"); s != "" {
		d, err := price.ParseDay(s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end %q: want YYYY-MM-DD", s)
		}
		end = d
	}
	start := end.AddDate(0, 0, -a.windowDays)
	if s := q.Get("start"); s != "" {
		d, err := price.ParseDay(s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start %q: want YYYY-MM-DD", s)
		}
		start = d
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, errors.New("start is after end")
	}
	if end.Sub(start) > maxWindow {
		return time.Time{}, time.Time{}, errors.New("range too large")
	}
	return start, end, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
