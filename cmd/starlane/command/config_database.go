package command

import (
	"context"
	"fmt"

	"github.com/pixil98/go-errors"
	"golang.org/x/time/rate"

	"github.com/pixil98/go-starlane/internal/storage"
)

type DatabaseConfig struct {
	Driver          string  `json:"driver" env:"STARLANE_DATABASE_DRIVER"`
	DSN             string  `json:"dsn" env:"STARLANE_DATABASE_DSN"`
	MaxConns        int     `json:"max_conns"`
	WritesPerSecond float64 `json:"writes_per_second"`
}

func (c *DatabaseConfig) validate() error {
	el := errors.NewErrorList()

	switch c.Driver {
	case storage.DriverPostgres, storage.DriverSQLite:
	case "":
		el.Add(fmt.Errorf("database driver is required"))
	default:
		el.Add(fmt.Errorf("unknown database driver %q", c.Driver))
	}
	if c.DSN == "" {
		el.Add(fmt.Errorf("database dsn is required"))
	}
	if c.MaxConns < 0 {
		el.Add(fmt.Errorf("max_conns must not be negative"))
	}
	if c.WritesPerSecond < 0 {
		el.Add(fmt.Errorf("writes_per_second must not be negative"))
	}

	return el.Err()
}

func (c *DatabaseConfig) buildDB(ctx context.Context) (storage.DB, error) {
	return storage.Open(ctx, c.Driver, c.DSN, c.MaxConns)
}

// writeLimiter paces flush writes. Nil when unlimited.
func (c *DatabaseConfig) writeLimiter() *rate.Limiter {
	if c.WritesPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(c.WritesPerSecond), max(1, int(c.WritesPerSecond)))
}
