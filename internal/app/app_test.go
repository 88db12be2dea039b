package app_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pricesync/internal/app"
	"pricesync/internal/config"
	"pricesync/internal/httpx"
	"pricesync/internal/price"
	"pricesync/internal/store"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func sqliteConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Database.SQLitePath = filepath.Join(t.TempDir(), "prices.db")
	cfg.Cache.Backend = "none"
	return cfg
}

func TestSteps_FallbackOrder(t *testing.T) {
	t.Parallel()
	// Arrange
	cfg := config.Default()
	cfg.Providers.CurrencyLayer.APIKey = "k"

	// Act
	steps := app.Steps(cfg, httpx.New(time.Second), quiet())

	// Assert
	require.Len(t, steps, 3)
	require.Equal(t, "frankfurter", steps[0].Provider.Name())
	require.False(t, steps[0].LiveOnly)
	require.Equal(t, "currencylayer-historical", steps[1].Provider.Name())
	require.False(t, steps[1].LiveOnly)
	require.Equal(t, "currencylayer-live", steps[2].Provider.Name())
	require.True(t, steps[2].LiveOnly)
}

func TestSteps_DisabledProvidersAreLeftOut(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Providers.Frankfurter.Enabled = false
	cfg.Providers.CurrencyLayer.Live = false

	steps := app.Steps(cfg, httpx.New(time.Second), quiet())

	require.Len(t, steps, 1)
	require.Equal(t, "currencylayer-historical", steps[0].Provider.Name())
}

func TestNewCache_Backends(t *testing.T) {
	t.Parallel()
	tests := []struct {
		backend string
		wantNil bool
		wantErr bool
	}{
		{backend: "none", wantNil: true},
		{backend: "file"},
		{backend: "redis"},
		{backend: "memcached", wantNil: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			cfg.Cache.Backend = tt.backend
			cfg.Cache.Path = filepath.Join(t.TempDir(), "cache.json")

			c, closeFn, err := app.NewCache(cfg, quiet())

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.wantNil, c == nil)
			if closeFn != nil {
				require.NoError(t, closeFn())
			}
		})
	}
}

func TestNew_WiresSQLiteStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a, err := app.New(ctx, sqliteConfig(t), quiet(), app.Options{})

	require.NoError(t, err)
	defer a.Close()
	require.IsType(t, &store.SQLite{}, a.Store)
	require.Nil(t, a.Orchestrator.Cache)
	require.Len(t, a.Chain.Steps, 3)
}

func TestNew_DryRunSeedsMemoryFromStore(t *testing.T) {
	t.Parallel()
	// Arrange
	ctx := context.Background()
	cfg := sqliteConfig(t)
	persisted, err := store.OpenSQLite(ctx, cfg.Database.SQLitePath, cfg.Database.Table, quiet())
	require.NoError(t, err)
	day, _ := price.ParseDay("2024-03-01")
	_, err = persisted.Insert(ctx, price.Record{Date: day, Price: decimal.RequireFromString("1333.26")})
	require.NoError(t, err)
	require.NoError(t, persisted.Close())

	// Act
	a, err := app.New(ctx, cfg, quiet(), app.Options{DryRun: true})
	require.NoError(t, err)
	defer a.Close()
	_, err = a.Store.Insert(ctx, price.Record{Date: day.AddDate(0, 0, 1), Price: decimal.NewFromInt(1)})
	require.NoError(t, err)

	// Assert
	require.IsType(t, &store.Memory{}, a.Store)
	exists, err := a.Store.Exists(ctx, day)
	require.NoError(t, err)
	require.True(t, exists)

	reopened, err := store.OpenSQLite(ctx, cfg.Database.SQLitePath, cfg.Database.Table, quiet())
	require.NoError(t, err)
	defer reopened.Close()
	all, err := reopened.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "dry run must not write through")
}

func TestNew_UnopenableStoreIsFatal(t *testing.T) {
	t.Parallel()
	cfg := sqliteConfig(t)
	cfg.Database.Driver = "oracle"

	_, err := app.New(context.Background(), cfg, quiet(), app.Options{})

	require.Error(t, err)
}
