package cache

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/pixil98/go-starlane/internal/game"
	"github.com/pixil98/go-starlane/internal/locks"
)

// ObjectStore persists space objects.
type ObjectStore interface {
	Store[game.ObjectID, *game.SpaceObject]
	LoadAll(ctx context.Context) ([]*game.SpaceObject, error)
}

// normalizingStore wraps every loaded object back into the world bounds.
type normalizingStore struct {
	ObjectStore
	bounds game.Bounds
}

func (s normalizingStore) Load(ctx context.Context, id game.ObjectID) (*game.SpaceObject, bool, error) {
	o, ok, err := s.ObjectStore.Load(ctx, id)
	if ok {
		s.bounds.Normalize(o)
	}
	return o, ok, err
}

func (s normalizingStore) LoadAll(ctx context.Context) ([]*game.SpaceObject, error) {
	objs, err := s.ObjectStore.LoadAll(ctx)
	for _, o := range objs {
		s.bounds.Normalize(o)
	}
	return objs, err
}

// WorldCache holds every space object. It is governed by the world lock:
// shared for reads, exclusive for writes.
type WorldCache struct {
	cache  *Cache[game.ObjectID, *game.SpaceObject]
	store  normalizingStore
	bounds game.Bounds
	scale  func(from, to time.Time) time.Duration
}

func newWorldCache(ls *locks.Set, store ObjectStore, bounds game.Bounds, scale func(from, to time.Time) time.Duration, opts ...CacheOpt) *WorldCache {
	ns := normalizingStore{ObjectStore: store, bounds: bounds}
	return &WorldCache{
		cache:  New[game.ObjectID, *game.SpaceObject]("space_object", ls.World, ls.Database, ns, opts...),
		store:  ns,
		bounds: bounds,
		scale:  scale,
	}
}

// load reads the whole world from the store.
func (w *WorldCache) load(ctx context.Context, lc *locks.Context) error {
	lc.Require(w.cache.lock, locks.Exclusive)

	var objs []*game.SpaceObject
	err := locks.With(lc, w.cache.dbLock, locks.Shared, func(*locks.Context) error {
		var err error
		objs, err = w.store.LoadAll(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("loading world: %w", err)
	}

	for _, o := range objs {
		w.cache.insertClean(o.ID, o)
	}
	return nil
}

// Bounds returns the size of the world.
func (w *WorldCache) Bounds() game.Bounds {
	return w.bounds
}

// Objects returns every object ordered by id.
func (w *WorldCache) Objects(lc *locks.Context) []*game.SpaceObject {
	var objs []*game.SpaceObject
	for _, o := range w.cache.All(lc) {
		objs = append(objs, o)
	}
	slices.SortFunc(objs, func(a, b *game.SpaceObject) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return objs
}

// Object returns one space object. lc must hold the world lock in either mode.
func (w *WorldCache) Object(ctx context.Context, lc *locks.Context, id game.ObjectID) (*game.SpaceObject, error) {
	return w.cache.Get(ctx, lc, id)
}

// ShipOf returns the user's ship.
func (w *WorldCache) ShipOf(lc *locks.Context, userID game.UserID) (*game.SpaceObject, error) {
	for _, o := range w.cache.All(lc) {
		if o.Kind == game.KindPlayerShip && o.OwnerID == userID {
			return o, nil
		}
	}
	return nil, fmt.Errorf("ship of user %s: %w", userID, ErrEntityNotFound)
}

// Insert adds a new object.
func (w *WorldCache) Insert(lc *locks.Context, o *game.SpaceObject) error {
	lc.Require(w.cache.lock, locks.Exclusive)

	if err := o.Validate(); err != nil {
		return fmt.Errorf("invalid space object: %w", err)
	}
	if _, ok := w.cache.peek(o.ID); ok {
		return fmt.Errorf("space object %s: %w", o.ID, ErrEntityExists)
	}

	w.bounds.Normalize(o)
	w.cache.setUnsafe(o.ID, o)
	return nil
}

// Update applies fn to an object. The position is re-normalized afterwards
// even if fn fails, since partial changes stand.
func (w *WorldCache) Update(ctx context.Context, lc *locks.Context, id game.ObjectID, fn func(*game.SpaceObject) error) error {
	o, err := w.cache.GetForUpdate(ctx, lc, id)
	if err != nil {
		return err
	}
	defer w.bounds.Normalize(o)

	return fn(o)
}

// Remove drops the object and deletes it from the store on the next flush.
func (w *WorldCache) Remove(lc *locks.Context, id game.ObjectID) {
	w.cache.Remove(lc, id)
}

// Advance moves every object with a speed to where it is at now.
func (w *WorldCache) Advance(lc *locks.Context, now time.Time) int {
	lc.Require(w.cache.lock, locks.Exclusive)

	moved := 0
	for id, o := range w.cache.All(lc) {
		if o.Speed == 0 || !now.After(o.LastPositionUpdate) {
			continue
		}
		o.Move(w.scale(o.LastPositionUpdate, now), now, w.bounds)
		w.cache.markDirty(id)
		moved++
	}
	return moved
}

// Teleport puts the object at (x, y) and stops it.
func (w *WorldCache) Teleport(ctx context.Context, lc *locks.Context, id game.ObjectID, x, y float64, now time.Time) error {
	return w.Update(ctx, lc, id, func(o *game.SpaceObject) error {
		o.X, o.Y = x, y
		o.Speed = 0
		o.LastPositionUpdate = now
		return nil
	})
}
