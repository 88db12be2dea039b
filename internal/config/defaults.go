package config

import "time"

const (
	DefaultSourceURL   = "https://www.boerse-duesseldorf.de/etc/DE000A4AJWY5/encore-issuances-s-a-comp-102-oend-z-25-unl-swissone-idx/#instrument-historie"
	DefaultContainerID = "instrument-historie"
	DefaultDateColumn  = "Datum"
	DefaultPriceColumn = "Schluss [EUR]"
	DefaultCachePath   = "data/extraction_cache.json"
	DefaultRedisKey    = "pricesync:extraction"
	DefaultDBPort      = 5432
	DefaultDBSSLMode   = "allow"
	DefaultSchema      = "finance"
	DefaultTable       = "daily_prices"
	DefaultSQLitePath  = "data/prices.db"
	DefaultCron        = "0 19 11 * * *"
)

func Default() Config {
	return Config{
		Timezone: "UTC",
		Source: Source{
			URL:         DefaultSourceURL,
			ContainerID: DefaultContainerID,
			DateColumn:  DefaultDateColumn,
			PriceColumn: DefaultPriceColumn,
			LoadTimeout: 30 * time.Second,
			WaitTimeout: 15 * time.Second,
			Attempts:    3,
			BackoffMin:  2 * time.Second,
			BackoffMax:  6 * time.Second,
			DelayMin:    2 * time.Second,
			DelayMax:    5 * time.Second,
			Headless:    true,
		},
		Cache: Cache{
			Backend: "file",
			Path:    DefaultCachePath,
			Redis:   Redis{Addr: "localhost:6379", Key: DefaultRedisKey, TTL: 48 * time.Hour},
		},
		Currency: Currency{Native: "EUR", Target: "USD"},
		Providers: Providers{
			Timeout: 10 * time.Second,
			Frankfurter: Provider{
				Enabled:              true,
				BaseURL:              "https://api.frankfurter.app",
				MaxRequestsPerMinute: 60,
				Burst:                5,
				CacheTTL:             time.Hour,
				CacheMaxItems:        5000,
			},
			CurrencyLayer: CurrencyLayer{
				Provider: Provider{
					Enabled:              true,
					BaseURL:              "https://api.currencylayer.com",
					MaxRequestsPerMinute: 30,
					Burst:                2,
					CacheTTL:             time.Hour,
					CacheMaxItems:        5000,
				},
				Live: true,
			},
		},
		Database: Database{
			Driver:       "postgres",
			Host:         "localhost",
			Port:         DefaultDBPort,
			Name:         "postgres",
			User:         "postgres",
			SSLMode:      DefaultDBSSLMode,
			Schema:       DefaultSchema,
			Table:        DefaultTable,
			MinConns:     0,
			MaxConns:     4,
			SQLitePath:   DefaultSQLitePath,
			QueryTimeout: 15 * time.Second,
		},
		Schedule: Schedule{Cron: DefaultCron},
		Logging:  Logging{Level: "info", Format: "text"},
		Server:   Server{Port: "8080", RequestTimeout: 10 * time.Second, WindowDays: 30},
	}
}
