package command

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pixil98/go-errors"

	"github.com/pixil98/go-starlane/internal/tuning"
)

const defaultFlushInterval = 30 * time.Second

type Config struct {
	FlushInterval  string          `json:"flush_interval"`
	BattleInterval string          `json:"battle_interval"`
	TuningPath     string          `json:"tuning_path" env:"STARLANE_TUNING_PATH"`
	Database       DatabaseConfig  `json:"database"`
	Nats           NatsConfig      `json:"nats"`
	Metrics        MetricsConfig   `json:"metrics"`
	Locks          LocksConfig     `json:"locks"`
	Telemetry      TelemetryConfig `json:"telemetry"`
}

// Validate overlays the environment onto the decoded file and checks the
// result.
func (c *Config) Validate() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}

	el := errors.NewErrorList()

	if _, err := parseInterval(c.FlushInterval, time.Second); err != nil {
		el.Add(fmt.Errorf("flush_interval: %w", err))
	}
	if _, err := parseInterval(c.BattleInterval, time.Second); err != nil {
		el.Add(fmt.Errorf("battle_interval: %w", err))
	}

	el.Add(c.Database.validate())
	el.Add(c.Nats.validate())
	el.Add(c.Locks.validate())

	return el.Err()
}

// buildTuning loads the tuning file, or the built-in tuning when none is
// configured.
func (c *Config) buildTuning() (*tuning.Tuning, error) {
	if c.TuningPath == "" {
		return tuning.Default(), nil
	}
	return tuning.Load(c.TuningPath)
}

func (c *Config) flushInterval() time.Duration {
	d, _ := parseInterval(c.FlushInterval, time.Second)
	if d == 0 {
		return defaultFlushInterval
	}
	return d
}

// parseInterval parses a tick interval. Empty means the driver default.
func parseInterval(s string, minimum time.Duration) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < minimum {
		return 0, fmt.Errorf("must be at least %s", minimum)
	}
	return d, nil
}
