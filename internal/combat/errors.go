package combat

import "errors"

var (
	ErrAlreadyInBattle = errors.New("already in battle")
	ErrSelfBattle      = errors.New("a ship cannot attack itself")
)
