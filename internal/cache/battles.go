package cache

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/pixil98/go-starlane/internal/game"
	"github.com/pixil98/go-starlane/internal/locks"
)

// BattleStore persists battles.
type BattleStore interface {
	Store[game.BattleID, *game.Battle]
	LoadWhere(ctx context.Context, column string, value any) ([]*game.Battle, error)
}

// BattleCache holds battles under the battle lock. Ended battles are read
// only.
type BattleCache struct {
	cache *Cache[game.BattleID, *game.Battle]
	store BattleStore

	mu           sync.Mutex
	activeLoaded bool
}

func newBattleCache(ls *locks.Set, store BattleStore, opts ...CacheOpt) *BattleCache {
	return &BattleCache{
		cache: New[game.BattleID, *game.Battle]("battle", ls.Battle, ls.Database, store, opts...),
		store: store,
	}
}

// Get returns the battle. lc must hold the battle lock in either mode.
func (b *BattleCache) Get(ctx context.Context, lc *locks.Context, id game.BattleID) (*game.Battle, error) {
	return b.cache.Get(ctx, lc, id)
}

// GetForUpdate returns an active battle for mutation.
func (b *BattleCache) GetForUpdate(ctx context.Context, lc *locks.Context, id game.BattleID) (*game.Battle, error) {
	lc.Require(b.cache.lock, locks.Exclusive)

	battle, err := b.cache.Get(ctx, lc, id)
	if err != nil {
		return nil, err
	}
	if !battle.Active() {
		return nil, fmt.Errorf("battle %s: %w", id, ErrBattleEnded)
	}
	b.cache.markDirty(id)
	return battle, nil
}

// Create adds a new battle.
func (b *BattleCache) Create(lc *locks.Context, battle *game.Battle) error {
	lc.Require(b.cache.lock, locks.Exclusive)

	if err := battle.Validate(); err != nil {
		return fmt.Errorf("invalid battle: %w", err)
	}
	if _, ok := b.cache.peek(battle.ID); ok {
		return fmt.Errorf("battle %s: %w", battle.ID, ErrEntityExists)
	}
	b.cache.setUnsafe(battle.ID, battle)
	return nil
}

// Set replaces a battle. A battle that has already ended cannot be replaced.
func (b *BattleCache) Set(lc *locks.Context, battle *game.Battle) error {
	lc.Require(b.cache.lock, locks.Exclusive)

	if old, ok := b.cache.peek(battle.ID); ok && !old.Active() {
		return fmt.Errorf("battle %s: %w", battle.ID, ErrBattleEnded)
	}
	if err := battle.Validate(); err != nil {
		return fmt.Errorf("invalid battle: %w", err)
	}
	b.cache.setUnsafe(battle.ID, battle)
	return nil
}

// Active returns the ids of every battle still in progress, oldest first.
// Active battles that were never loaded are read from the store on the
// first call.
func (b *BattleCache) Active(ctx context.Context, lc *locks.Context) ([]game.BattleID, error) {
	lc.Require(b.cache.lock, locks.Shared)

	if err := b.ensureActiveLoaded(ctx, lc); err != nil {
		return nil, err
	}

	var active []*game.Battle
	for _, battle := range b.cache.All(lc) {
		if battle.Active() {
			active = append(active, battle)
		}
	}
	slices.SortFunc(active, func(x, y *game.Battle) int {
		if c := x.StartTime.Compare(y.StartTime); c != 0 {
			return c
		}
		return slices.Compare(x.ID[:], y.ID[:])
	})

	ids := make([]game.BattleID, len(active))
	for i, battle := range active {
		ids[i] = battle.ID
	}
	return ids, nil
}

func (b *BattleCache) ensureActiveLoaded(ctx context.Context, lc *locks.Context) error {
	b.mu.Lock()
	done := b.activeLoaded
	b.mu.Unlock()
	if done {
		return nil
	}

	var battles []*game.Battle
	err := locks.With(lc, b.cache.dbLock, locks.Shared, func(*locks.Context) error {
		var err error
		battles, err = b.store.LoadWhere(ctx, "active", true)
		return err
	})
	if err != nil {
		return fmt.Errorf("loading active battles: %w", err)
	}

	for _, battle := range battles {
		b.cache.insertClean(battle.ID, battle)
	}

	b.mu.Lock()
	b.activeLoaded = true
	b.mu.Unlock()
	return nil
}

func (b *BattleCache) resetActive() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.activeLoaded = false
}
