// Package app assembles the process-wide components from config. Commands
// build one App and hand its parts to the operations they run.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"pricesync/internal/config"
	"pricesync/internal/convert"
	"pricesync/internal/extract"
	"pricesync/internal/httpx"
	"pricesync/internal/pipeline"
	"pricesync/internal/rates"
	"pricesync/internal/rates/cache"
	"pricesync/internal/rates/currencylayer"
	"pricesync/internal/rates/frankfurter"
	"pricesync/internal/rates/ratelimit"
	"pricesync/internal/retry"
	"pricesync/internal/rowcache"
	"pricesync/internal/store"
)

// Options tune how New wires the store.
type Options struct {
	// DryRun swaps the store for an in-memory copy; nothing is persisted.
	DryRun bool
}

type App struct {
	Config       config.Config
	Logger       *slog.Logger
	Store        store.Store
	Chain        *convert.Chain
	Cache        *rowcache.Cache
	Extractor    *extract.Extractor
	Orchestrator *pipeline.Orchestrator

	closers []func() error
}

// New wires every component. Failing to open the store is the only fatal
// error; a misconfigured cache backend degrades to no cache.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	st, err := openStore(ctx, cfg, logger, opts.DryRun)
	if err != nil {
		return nil, err
	}
	a.Store = st
	a.closers = append(a.closers, st.Close)

	hc := httpx.New(cfg.Providers.Timeout)
	a.Chain = NewChain(cfg, hc, logger)
	a.Extractor = NewExtractor(cfg, logger)

	c, closeCache, err := NewCache(cfg, logger)
	if err != nil {
		logger.Warn("extraction cache disabled", "backend", cfg.Cache.Backend, "error", err)
	} else if c != nil {
		a.Cache = c
		if closeCache != nil {
			a.closers = append(a.closers, closeCache)
		}
	}

	a.Orchestrator = &pipeline.Orchestrator{
		Extractor: a.Extractor,
		Chain:     a.Chain,
		Store:     a.Store,
		Columns:   pipeline.Columns{Date: cfg.Source.DateColumn, Price: cfg.Source.PriceColumn},
		Logger:    logger,
	}
	// A nil *rowcache.Cache must not become a non-nil interface.
	if a.Cache != nil {
		a.Orchestrator.Cache = a.Cache
	}
	return a, nil
}

// Close releases the store and cache connections in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger, dryRun bool) (store.Store, error) {
	if !dryRun {
		st, err := store.Open(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("open price store: %w", err)
		}
		return st, nil
	}

	mem := store.NewMemory()
	persisted, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Warn("dry run starts from an empty store", "error", err)
		return mem, nil
	}
	defer persisted.Close()
	recs, err := persisted.ReadAll(ctx)
	if err != nil {
		logger.Warn("dry run starts from an empty store", "error", err)
		return mem, nil
	}
	mem.Seed(recs)
	logger.Info("dry run seeded from store", "records", len(recs))
	return mem, nil
}

// Pair is the configured native/target currency pair.
func Pair(cfg config.Config) rates.Pair {
	return rates.Pair{Base: cfg.Currency.Native, Counter: cfg.Currency.Target}.OrDefault()
}

// NewChain builds the fallback chain: Frankfurter historical, then
// currencylayer historical, then currencylayer live for today only.
func NewChain(cfg config.Config, hc *httpx.Client, logger *slog.Logger) *convert.Chain {
	return &convert.Chain{
		Steps:    Steps(cfg, hc, logger),
		Timeout:  cfg.Providers.Timeout,
		Location: cfg.Location(),
		Logger:   logger,
	}
}

// Steps returns the enabled providers, each wrapped in its rate limiter and
// day cache, in fallback order.
func Steps(cfg config.Config, hc *httpx.Client, logger *slog.Logger) []convert.Step {
	pair := Pair(cfg)
	var steps []convert.Step

	if pc := cfg.Providers.Frankfurter; pc.Enabled {
		opts := []frankfurter.Option{
			frankfurter.WithHTTPClient(hc.HTTP),
			frankfurter.WithHeader(http.Header{"User-Agent": []string{hc.UserAgent}}),
			frankfurter.WithPair(pair),
		}
		if pc.BaseURL != "" {
			opts = append(opts, frankfurter.WithBaseURL(pc.BaseURL))
		}
		steps = append(steps, convert.Step{Provider: decorate(frankfurter.New(opts...), pc, true)})
	}

	if pc := cfg.Providers.CurrencyLayer; pc.Enabled {
		if pc.APIKey == "" {
			logger.Warn("currencylayer enabled but CURRENCYLAYER_API_KEY not set; it will always fall through")
		}
		clc := currencylayer.Config{Endpoint: pc.BaseURL, APIKey: pc.APIKey, Pair: pair}
		steps = append(steps, convert.Step{Provider: decorate(currencylayer.NewHistorical(clc, hc), pc.Provider, true)})
		if pc.Live {
			steps = append(steps, convert.Step{Provider: decorate(currencylayer.NewLive(clc, hc), pc.Provider, false), LiveOnly: true})
		}
	}
	return steps
}

// decorate applies rate limiting and, for historical providers, the day cache.
func decorate(p rates.Provider, pc config.Provider, cacheable bool) rates.Provider {
	p = ratelimit.Wrap(p, pc.MaxRequestsPerMinute, pc.Burst, pc.MinRequestInterval)
	if cacheable && pc.CacheTTL > 0 {
		p = &cache.Provider{P: p, TTL: pc.CacheTTL, MaxItems: pc.CacheMaxItems}
	}
	return p
}

// NewExtractor builds the headless-browser extractor for the source page.
func NewExtractor(cfg config.Config, logger *slog.Logger) *extract.Extractor {
	sc := cfg.Source
	return &extract.Extractor{
		Renderer: &extract.Browser{
			ContainerID: sc.ContainerID,
			LoadTimeout: sc.LoadTimeout,
			WaitTimeout: sc.WaitTimeout,
			DelayMin:    sc.DelayMin,
			DelayMax:    sc.DelayMax,
			UserAgents:  sc.UserAgents,
			ExecPath:    sc.ChromePath,
			Headless:    sc.Headless,
			Logger:      logger,
		},
		URL:         sc.URL,
		ContainerID: sc.ContainerID,
		Policy: retry.Policy{
			Attempts:   sc.Attempts,
			MinBackoff: sc.BackoffMin,
			MaxBackoff: sc.BackoffMax,
			Logger:     logger,
		},
		Logger: logger,
	}
}

// NewCache returns the configured extraction cache, or nil for backend
// "none". The returned func closes any connection the cache holds.
func NewCache(cfg config.Config, logger *slog.Logger) (*rowcache.Cache, func() error, error) {
	c := &rowcache.Cache{Location: cfg.Location(), Logger: logger}
	switch cfg.Cache.Backend {
	case "", "none":
		return nil, nil, nil
	case "file":
		c.Slot = rowcache.FileSlot{Path: cfg.Cache.Path}
		return c, nil, nil
	case "redis":
		rc := cfg.Cache.Redis
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		c.Slot = rowcache.RedisSlot{Client: client, Key: rc.Key, TTL: rc.TTL}
		return c, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
