package game

import "errors"

var (
	ErrInsufficientCharges = errors.New("no teleport charges available")
	ErrInsufficientIron    = errors.New("not enough iron")
	ErrInvalidPosition     = errors.New("position is not a finite number")
)
