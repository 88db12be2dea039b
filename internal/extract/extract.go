// Package extract renders the exchange history page and reads its closing
// price table.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pricesync/internal/price"
	"pricesync/internal/retry"
)

var (
	// ErrBlocked means the page came back as a gateway or paywall response.
	ErrBlocked = errors.New("page blocked")
	// ErrContainerTimeout means the history container never appeared.
	ErrContainerTimeout = errors.New("container did not appear")
)

// Renderer returns the fully rendered HTML of url.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Extraction is the result of one Extract call.
type Extraction struct {
	Rows     []price.RawRow
	Attempts int
	Skipped  int
	// Reason explains an empty result when no attempt errored.
	Reason string
}

// Extractor renders URL with retries and parses the history table.
type Extractor struct {
	Renderer    Renderer
	URL         string
	ContainerID string
	Policy      retry.Policy
	Logger      *slog.Logger
}

// Extract never panics and never returns rows alongside an error. When every
// attempt fails it returns an empty Extraction and the last error; callers log
// it and carry on.
func (e *Extractor) Extract(ctx context.Context) (Extraction, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := e.Policy
	if policy.Logger == nil {
		policy.Logger = logger
	}

	var table Table
	res := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		html, err := e.Renderer.Render(ctx, e.URL)
		if err != nil {
			return fmt.Errorf("render %s: %w", e.URL, err)
		}
		t, err := ParseTable(html, e.ContainerID)
		if err != nil {
			return err
		}
		table = t
		return nil
	})
	if !res.OK() {
		logger.Error("extraction failed", "url", e.URL, "attempts", res.Attempts, "error", res.Err)
		return Extraction{Attempts: res.Attempts}, res.Err
	}

	if table.Reason != "" {
		logger.Warn("no rows extracted", "url", e.URL, "reason", table.Reason)
	}
	if table.Skipped > 0 {
		logger.Warn("dropped rows with mismatched cell count", "skipped", table.Skipped, "headers", len(table.Headers))
	}
	logger.Info("extraction complete", "rows", len(table.Rows), "attempts", res.Attempts)

	return Extraction{
		Rows:     table.Rows,
		Attempts: res.Attempts,
		Skipped:  table.Skipped,
		Reason:   table.Reason,
	}, nil
}
