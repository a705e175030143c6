package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"

	"github.com/pixil98/go-starlane/internal/locks"
)

type LocksConfig struct {
	DeadlockTimeout string `json:"deadlock_timeout"`
	DetectDeadlocks bool   `json:"detect_deadlocks" env:"STARLANE_DETECT_DEADLOCKS"`
}

func (c *LocksConfig) validate() error {
	el := errors.NewErrorList()

	if c.DeadlockTimeout != "" {
		_, err := time.ParseDuration(c.DeadlockTimeout)
		if err != nil {
			el.Add(fmt.Errorf("parsing deadlock_timeout: %w", err))
		}
	}

	return el.Err()
}

func (c *LocksConfig) apply() {
	var timeout time.Duration
	if c.DeadlockTimeout != "" {
		timeout, _ = time.ParseDuration(c.DeadlockTimeout)
	}
	locks.Configure(timeout, c.DetectDeadlocks)
}
