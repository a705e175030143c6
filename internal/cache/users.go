package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/pixil98/go-starlane/internal/game"
	"github.com/pixil98/go-starlane/internal/locks"
	"github.com/pixil98/go-starlane/internal/tuning"
)

// UserCache holds commander records under the user lock.
type UserCache struct {
	cache    *Cache[game.UserID, *game.User]
	messages *MessageCache
	msgLock  *locks.Lock
	tuning   *tuning.Tuning
	scale    func(from, to time.Time) time.Duration
	now      func() time.Time
}

func newUserCache(ls *locks.Set, store Store[game.UserID, *game.User], messages *MessageCache, tn *tuning.Tuning, scale func(from, to time.Time) time.Duration, now func() time.Time, opts ...CacheOpt) *UserCache {
	return &UserCache{
		cache:    New[game.UserID, *game.User]("user", ls.User, ls.Database, store, opts...),
		messages: messages,
		msgLock:  ls.Message,
		tuning:   tn,
		scale:    scale,
		now:      now,
	}
}

// Get returns the user without bringing it up to date. lc must hold the user
// lock in either mode.
func (u *UserCache) Get(ctx context.Context, lc *locks.Context, id game.UserID) (*game.User, error) {
	return u.cache.Get(ctx, lc, id)
}

// GetForUpdate returns the user and marks it dirty. lc must hold the user
// lock exclusively.
func (u *UserCache) GetForUpdate(ctx context.Context, lc *locks.Context, id game.UserID) (*game.User, error) {
	return u.cache.GetForUpdate(ctx, lc, id)
}

// Set replaces a user record. Maxima are recomputed so pools stay in range.
func (u *UserCache) Set(lc *locks.Context, user *game.User) error {
	user.RecomputeMaxima(u.tuning)
	if err := user.Validate(); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}
	u.cache.Set(lc, user.ID, user)
	return nil
}

// Create registers a new commander.
func (u *UserCache) Create(ctx context.Context, lc *locks.Context, id game.UserID, username string) (*game.User, error) {
	lc.Require(u.cache.lock, locks.Exclusive)

	_, err := u.cache.Get(ctx, lc, id)
	if err == nil {
		return nil, fmt.Errorf("user %s: %w", id, ErrEntityExists)
	}
	if !isNotFound(err) {
		return nil, err
	}

	user := game.NewUser(id, username, u.tuning, u.now())
	u.cache.setUnsafe(id, user)
	return user, nil
}

// Refresh applies every elapsed-time effect to the user up to now. Each level
// gained is announced exactly once in the user's feed.
func (u *UserCache) Refresh(ctx context.Context, lc *locks.Context, id game.UserID) (*game.User, game.Progress, error) {
	user, err := u.cache.GetForUpdate(ctx, lc, id)
	if err != nil {
		return nil, game.Progress{}, err
	}

	p := user.Advance(u.now(), u.tuning, u.scale)
	if len(p.LevelsGained) == 0 && p.ResearchCompleted == "" && len(p.BuildsCompleted) == 0 {
		return user, p, nil
	}

	err = locks.With(lc, u.msgLock, locks.Exclusive, func(mc *locks.Context) error {
		for _, key := range p.BuildsCompleted {
			if _, err := u.messages.Notify(mc, id, game.MessageSystem, fmt.Sprintf("Construction of %s complete.", key)); err != nil {
				return err
			}
		}
		if p.ResearchCompleted != "" {
			text := fmt.Sprintf("Research of %s complete.", p.ResearchCompleted)
			if _, err := u.messages.Notify(mc, id, game.MessageSystem, text); err != nil {
				return err
			}
		}
		for _, level := range p.LevelsGained {
			if _, err := u.messages.Notify(mc, id, game.MessageLevelUp, fmt.Sprintf("You reached level %d.", level)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return user, p, fmt.Errorf("notifying user %s: %w", id, err)
	}

	return user, p, nil
}

// Remove drops the user and deletes it from the store on the next flush.
func (u *UserCache) Remove(lc *locks.Context, id game.UserID) {
	u.cache.Remove(lc, id)
}
