package config

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks that all required fields are set and values are valid.
// Missing provider credentials are not errors; those providers just never
// answer.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}

	if c.Source.URL == "" {
		return errors.New("source.url is required")
	}
	if c.Source.ContainerID == "" {
		return errors.New("source.container_id is required")
	}
	if c.Source.DateColumn == "" || c.Source.PriceColumn == "" {
		return errors.New("source.date_column and source.price_column are required")
	}
	if c.Source.LoadTimeout <= 0 || c.Source.WaitTimeout <= 0 {
		return errors.New("source.load_timeout and source.wait_timeout must be > 0")
	}
	if c.Source.Attempts < 1 {
		return errors.New("source.attempts must be >= 1")
	}
	if c.Source.BackoffMax < c.Source.BackoffMin {
		return errors.New("source.backoff_max must be >= source.backoff_min")
	}
	if c.Source.DelayMax < c.Source.DelayMin {
		return errors.New("source.delay_max must be >= source.delay_min")
	}

	switch c.Cache.Backend {
	case "file":
		if c.Cache.Path == "" {
			return errors.New("cache.path is required for the file backend")
		}
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return errors.New("cache.redis.addr is required for the redis backend")
		}
	case "none":
	default:
		return fmt.Errorf("cache.backend must be file, redis or none, got %q", c.Cache.Backend)
	}

	if len(c.Currency.Native) != 3 || len(c.Currency.Target) != 3 {
		return errors.New("currency.native and currency.target must be ISO codes")
	}
	if c.Providers.Timeout <= 0 {
		return errors.New("providers.timeout must be > 0")
	}

	return c.Database.validate("database")
}

func (db *Database) validate(prefix string) error {
	if !identRe.MatchString(db.Table) {
		return fmt.Errorf("%s.table %q is not a valid identifier", prefix, db.Table)
	}
	switch db.Driver {
	case "postgres":
		if db.Host == "" {
			return fmt.Errorf("%s.host is required", prefix)
		}
		if db.Name == "" {
			return fmt.Errorf("%s.name is required", prefix)
		}
		if db.User == "" {
			return fmt.Errorf("%s.user is required", prefix)
		}
		if db.Port < 1 || db.Port > 65535 {
			return fmt.Errorf("%s.port must be between 1 and 65535, got %d", prefix, db.Port)
		}
		if db.Schema != "" && !identRe.MatchString(db.Schema) {
			return fmt.Errorf("%s.schema %q is not a valid identifier", prefix, db.Schema)
		}
		if db.MaxConns < 1 {
			return fmt.Errorf("%s.max_conns must be >= 1", prefix)
		}
		if db.MinConns < 0 || db.MinConns > db.MaxConns {
			return fmt.Errorf("%s.min_conns must be between 0 and max_conns", prefix)
		}
	case "sqlite":
		if db.SQLitePath == "" {
			return fmt.Errorf("%s.sqlite_path is required", prefix)
		}
	default:
		return fmt.Errorf("%s.driver must be postgres or sqlite, got %q", prefix, db.Driver)
	}
	return nil
}
