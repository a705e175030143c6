package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"

	"github.com/pixil98/go-starlane/internal/messaging"
)

// NatsConfig configures the embedded notification server. A port of -1 picks
// a free port.
type NatsConfig struct {
	Host         string `json:"host" env:"STARLANE_NATS_HOST"`
	Port         int    `json:"port" env:"STARLANE_NATS_PORT"`
	ServerName   string `json:"server_name"`
	ReadyTimeout string `json:"ready_timeout"`
	MaxPayload   int32  `json:"max_payload"`

	readyTimeout time.Duration
}

func (n *NatsConfig) validate() error {
	el := errors.NewErrorList()

	if n.Port < messaging.RandomPort || n.Port > 65535 {
		el.Add(fmt.Errorf("nats port %d out of range", n.Port))
	}
	if n.MaxPayload < 0 {
		el.Add(fmt.Errorf("max_payload must not be negative"))
	}

	n.readyTimeout = 0
	if n.ReadyTimeout != "" {
		d, err := time.ParseDuration(n.ReadyTimeout)
		switch {
		case err != nil:
			el.Add(fmt.Errorf("parsing ready_timeout: %w", err))
		case d <= 0:
			el.Add(fmt.Errorf("ready_timeout must be positive"))
		default:
			n.readyTimeout = d
		}
	}

	return el.Err()
}

// natsOpts turns the validated config into server options.
func (n *NatsConfig) natsOpts() []messaging.NatsServerOpt {
	opts := []messaging.NatsServerOpt{messaging.WithListenAddr(n.Host, n.Port)}
	if n.readyTimeout > 0 {
		opts = append(opts, messaging.WithReadyTimeout(n.readyTimeout))
	}
	if n.ServerName != "" {
		opts = append(opts, messaging.WithServerName(n.ServerName))
	}
	if n.MaxPayload > 0 {
		opts = append(opts, messaging.WithMaxPayload(n.MaxPayload))
	}
	return opts
}

func (n *NatsConfig) buildNatsServer() (*messaging.NatsServer, error) {
	return messaging.NewNatsServer(n.natsOpts()...)
}
