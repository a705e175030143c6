package cache

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/pixil98/go-errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/pixil98/go-starlane/internal/locks"
	"github.com/pixil98/go-starlane/internal/storage"
	"github.com/pixil98/go-starlane/internal/telemetry"
)

var tracer = telemetry.Tracer("github.com/pixil98/go-starlane/internal/cache")

// Store is the persistence a Cache writes back to. Encode is called with the
// governing lock held; Load, Write and Delete are called under the database
// lock only.
type Store[K comparable, V any] interface {
	Load(ctx context.Context, id K) (V, bool, error)
	Encode(id K, v V) (storage.Record, error)
	Write(ctx context.Context, rec storage.Record) error
	Delete(ctx context.Context, id K) error
}

// Recorder receives cache metrics.
type Recorder interface {
	CacheMiss(family string)
	Flushed(family string, written, failed int, elapsed time.Duration)
	Cached(family string, n int)
}

type nopRecorder struct{}

func (nopRecorder) CacheMiss(string)                        {}
func (nopRecorder) Flushed(string, int, int, time.Duration) {}
func (nopRecorder) Cached(string, int)                      {}

type entry[V any] struct {
	value     V
	dirty     bool
	gen       uint64
	flushedAt time.Time
}

// Cache is a write-back map of one entity family. Every access is checked
// against the governing lock; the internal mutex only protects the maps and
// is never held across a call out of the cache.
type Cache[K comparable, V any] struct {
	family string
	lock   *locks.Lock
	dbLock *locks.Lock
	store  Store[K, V]

	limiter  *rate.Limiter
	recorder Recorder

	mu      sync.Mutex
	entries map[K]*entry[V]
	deleted map[K]uint64
	gen     uint64
}

// CacheOpt configures a Cache.
type CacheOpt func(*cacheOptions)

type cacheOptions struct {
	limiter  *rate.Limiter
	recorder Recorder
}

// WithWriteLimiter paces store writes during a flush.
func WithWriteLimiter(l *rate.Limiter) CacheOpt {
	return func(o *cacheOptions) {
		o.limiter = l
	}
}

// WithRecorder reports cache metrics to r. A nil r is ignored.
func WithRecorder(r Recorder) CacheOpt {
	return func(o *cacheOptions) {
		if r != nil {
			o.recorder = r
		}
	}
}

// New creates a cache for family governed by lock. Store access happens under
// dbLock.
func New[K comparable, V any](family string, lock, dbLock *locks.Lock, store Store[K, V], opts ...CacheOpt) *Cache[K, V] {
	o := cacheOptions{recorder: nopRecorder{}}
	for _, opt := range opts {
		opt(&o)
	}

	return &Cache[K, V]{
		family:   family,
		lock:     lock,
		dbLock:   dbLock,
		store:    store,
		limiter:  o.limiter,
		recorder: o.recorder,
		entries:  map[K]*entry[V]{},
		deleted:  map[K]uint64{},
	}
}

// Family returns the entity family name used in errors and metrics.
func (c *Cache[K, V]) Family() string {
	return c.family
}

// Get returns the entity, loading it from the store on a miss. lc must hold
// the governing lock in either mode.
func (c *Cache[K, V]) Get(ctx context.Context, lc *locks.Context, id K) (V, error) {
	lc.Require(c.lock, locks.Shared)
	return c.get(ctx, lc, id)
}

// GetForUpdate returns the entity and marks it dirty. lc must hold the
// governing lock exclusively for as long as the entity is being changed.
func (c *Cache[K, V]) GetForUpdate(ctx context.Context, lc *locks.Context, id K) (V, error) {
	lc.Require(c.lock, locks.Exclusive)

	v, err := c.get(ctx, lc, id)
	if err != nil {
		return v, err
	}
	c.markDirty(id)
	return v, nil
}

// Set inserts or replaces the entity and marks it dirty.
func (c *Cache[K, V]) Set(lc *locks.Context, id K, v V) {
	lc.Require(c.lock, locks.Exclusive)
	c.setUnsafe(id, v)
}

// MarkDirty flags an already cached entity for the next flush.
func (c *Cache[K, V]) MarkDirty(lc *locks.Context, id K) {
	lc.Require(c.lock, locks.Exclusive)
	c.markDirty(id)
}

// Remove drops the entity from memory and deletes it from the store on the
// next flush.
func (c *Cache[K, V]) Remove(lc *locks.Context, id K) {
	lc.Require(c.lock, locks.Exclusive)

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, id)
	c.gen++
	c.deleted[id] = c.gen
}

// Dirty yields every entity modified since its last successful flush.
func (c *Cache[K, V]) Dirty(lc *locks.Context) iter.Seq2[K, V] {
	lc.Require(c.lock, locks.Shared)
	return c.snapshot(true)
}

// All yields every cached entity.
func (c *Cache[K, V]) All(lc *locks.Context) iter.Seq2[K, V] {
	lc.Require(c.lock, locks.Shared)
	return c.snapshot(false)
}

// Len returns the number of cached entities.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[K, V]) snapshot(dirtyOnly bool) iter.Seq2[K, V] {
	c.mu.Lock()
	ids := make([]K, 0, len(c.entries))
	vals := make([]V, 0, len(c.entries))
	for id, e := range c.entries {
		if dirtyOnly && !e.dirty {
			continue
		}
		ids = append(ids, id)
		vals = append(vals, e.value)
	}
	c.mu.Unlock()

	return func(yield func(K, V) bool) {
		for i := range ids {
			if !yield(ids[i], vals[i]) {
				return
			}
		}
	}
}

type pendingWrite[K comparable] struct {
	id  K
	rec storage.Record
	gen uint64
}

// Flush persists every dirty entity and pending delete. The governing lock is
// held only while the entities are encoded; writes happen under the database
// lock alone. An entity changed while its write was in flight stays dirty.
// Failed entities stay dirty and are returned as *PersistError values.
func (c *Cache[K, V]) Flush(ctx context.Context, lc *locks.Context) error {
	ctx, span := tracer.Start(ctx, "cache.flush")
	defer span.End()
	span.SetAttributes(attribute.String("cache.family", c.family))

	start := time.Now()
	el := errors.NewErrorList()

	var writes, failed []pendingWrite[K]
	var deletes []pendingWrite[K]
	err := locks.With(lc, c.lock, locks.Shared, func(*locks.Context) error {
		c.mu.Lock()
		defer c.mu.Unlock()

		for id, e := range c.entries {
			if !e.dirty {
				continue
			}
			rec, err := c.store.Encode(id, e.value)
			if err != nil {
				el.Add(&PersistError{Family: c.family, ID: fmt.Sprint(id), Err: err})
				failed = append(failed, pendingWrite[K]{id: id, gen: e.gen})
				continue
			}
			writes = append(writes, pendingWrite[K]{id: id, rec: rec, gen: e.gen})
		}
		for id, gen := range c.deleted {
			deletes = append(deletes, pendingWrite[K]{id: id, gen: gen})
		}
		return nil
	})
	if err != nil {
		return err
	}

	span.SetAttributes(attribute.Int("cache.dirty", len(writes)), attribute.Int("cache.deleted", len(deletes)))
	if len(writes) == 0 && len(deletes) == 0 && len(failed) == 0 {
		return nil
	}

	var written []pendingWrite[K]
	var removed []pendingWrite[K]
	err = locks.With(lc, c.dbLock, locks.Shared, func(*locks.Context) error {
		for _, w := range writes {
			if err := c.wait(ctx); err != nil {
				return err
			}
			if err := c.store.Write(ctx, w.rec); err != nil {
				el.Add(&PersistError{Family: c.family, ID: w.rec.ID, Err: err})
				failed = append(failed, w)
				continue
			}
			written = append(written, w)
		}
		for _, d := range deletes {
			if err := c.wait(ctx); err != nil {
				return err
			}
			if err := c.store.Delete(ctx, d.id); err != nil {
				el.Add(&PersistError{Family: c.family, ID: fmt.Sprint(d.id), Err: err})
				failed = append(failed, d)
				continue
			}
			removed = append(removed, d)
		}
		return nil
	})
	if err != nil {
		el.Add(fmt.Errorf("flushing %s: %w", c.family, err))
	}

	now := time.Now()
	c.mu.Lock()
	for _, w := range written {
		if e, ok := c.entries[w.id]; ok && e.gen == w.gen {
			e.dirty = false
			e.flushedAt = now
		}
	}
	for _, d := range removed {
		if gen, ok := c.deleted[d.id]; ok && gen == d.gen {
			delete(c.deleted, d.id)
		}
	}
	c.mu.Unlock()

	c.recorder.Flushed(c.family, len(written)+len(removed), len(failed), time.Since(start))

	if err := el.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "flush incomplete")
		slog.WarnContext(ctx, "cache flush incomplete", "family", c.family, "written", len(written)+len(removed), "failed", len(failed), "error", err)
		return err
	}
	return nil
}

func (c *Cache[K, V]) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// Shutdown flushes and then drops every cached entity. If the flush fails
// the entities are kept so a later call can retry. Calling it on an empty or
// already shut down cache does nothing.
func (c *Cache[K, V]) Shutdown(ctx context.Context, lc *locks.Context) error {
	if err := c.Flush(ctx, lc); err != nil {
		return err
	}
	c.clear()
	return nil
}

// Reset makes a best-effort flush and then discards all state.
func (c *Cache[K, V]) Reset(ctx context.Context, lc *locks.Context) {
	if err := c.Flush(ctx, lc); err != nil {
		slog.WarnContext(ctx, "discarding unflushed entities on reset", "family", c.family, "error", err)
	}
	c.clear()
}

func (c *Cache[K, V]) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = map[K]*entry[V]{}
	c.deleted = map[K]uint64{}
	c.recorder.Cached(c.family, 0)
}

func (c *Cache[K, V]) get(ctx context.Context, lc *locks.Context, id K) (V, error) {
	if v, ok := c.peek(id); ok {
		return v, nil
	}

	var zero V
	c.mu.Lock()
	_, removed := c.deleted[id]
	c.mu.Unlock()
	if removed {
		return zero, fmt.Errorf("%s %v: %w", c.family, id, ErrEntityNotFound)
	}

	c.recorder.CacheMiss(c.family)

	var v V
	var found bool
	err := locks.With(lc, c.dbLock, locks.Shared, func(*locks.Context) error {
		var err error
		v, found, err = c.store.Load(ctx, id)
		return err
	})
	if err != nil {
		return zero, fmt.Errorf("loading %s %v: %w", c.family, id, err)
	}
	if !found {
		return zero, fmt.Errorf("%s %v: %w", c.family, id, ErrEntityNotFound)
	}

	return c.insertClean(id, v), nil
}

// peek reads the cached entity without a lock check. Callers inside the
// package pass a context they have already checked.
func (c *Cache[K, V]) peek(id K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// setUnsafe stores v as dirty without a lock check.
func (c *Cache[K, V]) setUnsafe(id K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	delete(c.deleted, id)
	if e, ok := c.entries[id]; ok {
		e.value = v
		e.dirty = true
		e.gen = c.gen
		return
	}
	c.entries[id] = &entry[V]{value: v, dirty: true, gen: c.gen}
	c.recorder.Cached(c.family, len(c.entries))
}

// insertClean caches a freshly loaded entity. If another reader loaded it
// first, that copy wins.
func (c *Cache[K, V]) insertClean(id K, v V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[id]; ok {
		return e.value
	}
	if _, removed := c.deleted[id]; removed {
		return v
	}
	c.entries[id] = &entry[V]{value: v, flushedAt: time.Now()}
	c.recorder.Cached(c.family, len(c.entries))
	return v
}

func (c *Cache[K, V]) markDirty(id K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[id]; ok {
		c.gen++
		e.dirty = true
		e.gen = c.gen
	}
}

func (c *Cache[K, V]) isDirty(id K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	return ok && e.dirty
}
