package cache

import (
	"errors"
	"fmt"
)

var (
	ErrEntityNotFound = errors.New("entity not found")
	ErrNotInitialized = errors.New("cache manager not initialized")
	ErrBattleEnded    = errors.New("battle has ended")
	ErrEntityExists   = errors.New("entity already exists")
	ErrClosed         = errors.New("cache manager shut down")
)

// PersistError is a single entity that failed to flush. The entity stays
// dirty and is retried on the next flush.
type PersistError struct {
	Family string
	ID     string
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persisting %s %s: %v", e.Family, e.ID, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}
