package combat

import (
	"time"

	"github.com/pixil98/go-starlane/internal/game"
)

// EngineOpt configures an Engine.
type EngineOpt func(*Engine)

// WithNotifier publishes every feed message the engine creates.
func WithNotifier(n Notifier) EngineOpt {
	return func(e *Engine) {
		e.notifier = n
	}
}

func WithRecorder(r Recorder) EngineOpt {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithRoll replaces the random source used for hit rolls. roll must return
// values in [0, 1).
func WithRoll(roll func() float64) EngineOpt {
	return func(e *Engine) {
		e.roll = roll
	}
}

// WithPlacement chooses where defeated ships are towed to.
func WithPlacement(place func(game.Bounds) (x, y float64)) EngineOpt {
	return func(e *Engine) {
		e.place = place
	}
}

func WithClock(now func() time.Time) EngineOpt {
	return func(e *Engine) {
		e.now = now
	}
}
