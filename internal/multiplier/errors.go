package multiplier

import "errors"

var (
	ErrInvalidMultiplier = errors.New("multiplier must be at least 1")
	ErrInvalidDuration   = errors.New("duration must be positive")
)
