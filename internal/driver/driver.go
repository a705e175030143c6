package driver

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultTickLength = time.Second
)

// Ticker is anything advanced once per tick.
type Ticker interface {
	Tick(context.Context) error
}

// Driver runs its tickers in order on a fixed interval until its context is
// done. A failing ticker is logged and retried on the next tick.
type Driver struct {
	name       string
	tickLength time.Duration
	tickers    []Ticker
}

func NewDriver(name string, tickers []Ticker, opts ...DriverOpt) *Driver {
	d := &Driver{
		name:       name,
		tickLength: DefaultTickLength,
		tickers:    tickers,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *Driver) Start(ctx context.Context) error {
	ticker := time.NewTicker(d.tickLength)
	defer ticker.Stop()

	slog.InfoContext(ctx, "driver started", "driver", d.name, "tick", d.tickLength)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "driver stopped", "driver", d.name)
			return nil
		case <-ticker.C:
			if err := d.Tick(ctx); err != nil {
				slog.WarnContext(ctx, "tick failed", "driver", d.name, "error", err)
			}
		}
	}
}

// Tick runs every ticker once and returns the first error. Later tickers
// still run.
func (d *Driver) Tick(ctx context.Context) error {
	var first error
	for _, t := range d.tickers {
		if err := t.Tick(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
