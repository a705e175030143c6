package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pixil98/go-errors"

	"github.com/pixil98/go-starlane/internal/game"
	"github.com/pixil98/go-starlane/internal/locks"
	"github.com/pixil98/go-starlane/internal/multiplier"
	"github.com/pixil98/go-starlane/internal/storage"
	"github.com/pixil98/go-starlane/internal/tuning"
)

const DefaultShutdownTimeout = 30 * time.Second

// Caches is one generation of the four entity caches. A Reset swaps in a new
// generation.
type Caches struct {
	World    *WorldCache
	Users    *UserCache
	Battles  *BattleCache
	Messages *MessageCache
}

// Manager owns the lock set and the entity caches. All access goes through
// the With methods, which take the cache-management lock (shared) before the
// requested tier so that Reset and Shutdown can exclude everyone else.
type Manager struct {
	locks  *locks.Set
	db     storage.DB
	tuning *tuning.Tuning
	mult   *multiplier.Service
	now    func() time.Time

	cacheOpts       []CacheOpt
	shutdownTimeout time.Duration

	ready atomic.Bool
	// closed is set by a successful Shutdown. A closed manager never
	// re-initializes.
	closed atomic.Bool
	// state is guarded by the cache-management lock.
	state *Caches
}

// ManagerOpt configures a Manager.
type ManagerOpt func(*Manager)

// WithClock replaces time.Now for timestamps written by the caches.
func WithClock(now func() time.Time) ManagerOpt {
	return func(m *Manager) {
		m.now = now
	}
}

// WithCacheOpts applies opts to every cache the manager builds.
func WithCacheOpts(opts ...CacheOpt) ManagerOpt {
	return func(m *Manager) {
		m.cacheOpts = append(m.cacheOpts, opts...)
	}
}

// WithShutdownTimeout bounds the final flush run by Start.
func WithShutdownTimeout(d time.Duration) ManagerOpt {
	return func(m *Manager) {
		m.shutdownTimeout = d
	}
}

// NewManager returns a Manager that initializes on first use.
func NewManager(ls *locks.Set, db storage.DB, tn *tuning.Tuning, mult *multiplier.Service, opts ...ManagerOpt) *Manager {
	m := &Manager{
		locks:           ls,
		db:              db,
		tuning:          tn,
		mult:            mult,
		now:             time.Now,
		shutdownTimeout: DefaultShutdownTimeout,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Locks returns the lock set shared by every cache.
func (m *Manager) Locks() *locks.Set { return m.locks }

// Tuning returns the game tuning the caches were built with.
func (m *Manager) Tuning() *tuning.Tuning { return m.tuning }

// Multiplier returns the time multiplier applied to game time.
func (m *Manager) Multiplier() *multiplier.Service { return m.mult }

func (m *Manager) newCaches() *Caches {
	messages := newMessageCache(m.locks,
		storage.NewDocumentStore[game.MessageID, *game.Message](m.db, storage.MessagesTable, func(msg *game.Message) []any {
			return []any{msg.RecipientID.String()}
		}),
		m.tuning.MessageSummaryThreshold, m.now, m.cacheOpts...)

	return &Caches{
		World: newWorldCache(m.locks,
			storage.NewDocumentStore[game.ObjectID, *game.SpaceObject](m.db, storage.SpaceObjectsTable, nil),
			game.Bounds{Width: m.tuning.World.Width, Height: m.tuning.World.Height},
			m.mult.Scaled, m.cacheOpts...),
		Users: newUserCache(m.locks,
			storage.NewDocumentStore[game.UserID, *game.User](m.db, storage.UsersTable, nil),
			messages, m.tuning, m.mult.Scaled, m.now, m.cacheOpts...),
		Battles: newBattleCache(m.locks,
			storage.NewDocumentStore[game.BattleID, *game.Battle](m.db, storage.BattlesTable, func(b *game.Battle) []any {
				return []any{b.Active()}
			}),
			m.cacheOpts...),
		Messages: messages,
	}
}

// Init builds the caches and loads the world. Calling it again is a no-op.
// After Shutdown it returns ErrClosed.
func (m *Manager) Init(ctx context.Context, lc *locks.Context) error {
	return locks.With(lc, m.locks.CacheManagement, locks.Exclusive, func(cm *locks.Context) error {
		if m.closed.Load() {
			return ErrClosed
		}
		if m.state != nil {
			return nil
		}

		st := m.newCaches()
		err := locks.With(cm, m.locks.World, locks.Exclusive, func(wc *locks.Context) error {
			return st.World.load(ctx, wc)
		})
		if err != nil {
			return err
		}

		m.state = st
		m.ready.Store(true)
		slog.InfoContext(ctx, "caches initialized", "space_objects", st.World.cache.Len())
		return nil
	})
}

// with runs fn holding the cache-management lock and, when l is not nil, l in
// mode. A context that holds no lock triggers lazy initialization unless the
// manager has been shut down.
func (m *Manager) with(ctx context.Context, lc *locks.Context, l *locks.Lock, mode locks.Mode, fn func(*locks.Context, *Caches) error) error {
	run := func(cm *locks.Context) error {
		if m.closed.Load() {
			return ErrClosed
		}
		st := m.state
		if st == nil {
			return ErrNotInitialized
		}
		if l == nil {
			return fn(cm, st)
		}
		return locks.With(cm, l, mode, func(c *locks.Context) error {
			return fn(c, st)
		})
	}

	if lc.Holds(m.locks.CacheManagement) {
		return run(lc)
	}

	if m.closed.Load() {
		return ErrClosed
	}
	if !m.ready.Load() {
		if !lc.Empty() {
			return ErrNotInitialized
		}
		if err := m.Init(ctx, lc); err != nil {
			return fmt.Errorf("initializing caches: %w", err)
		}
	}

	return locks.With(lc, m.locks.CacheManagement, locks.Shared, run)
}

// WithCacheManagement runs fn holding only the cache-management lock.
func (m *Manager) WithCacheManagement(ctx context.Context, lc *locks.Context, fn func(*locks.Context, *Caches) error) error {
	return m.with(ctx, lc, nil, locks.Shared, fn)
}

// WithWorld runs fn holding the world lock in mode.
func (m *Manager) WithWorld(ctx context.Context, lc *locks.Context, mode locks.Mode, fn func(*locks.Context, *Caches) error) error {
	return m.with(ctx, lc, m.locks.World, mode, fn)
}

// WithWorldRead runs fn holding the world lock shared.
func (m *Manager) WithWorldRead(ctx context.Context, lc *locks.Context, fn func(*locks.Context, *Caches) error) error {
	return m.WithWorld(ctx, lc, locks.Shared, fn)
}

// WithWorldWrite runs fn holding the world lock exclusively.
func (m *Manager) WithWorldWrite(ctx context.Context, lc *locks.Context, fn func(*locks.Context, *Caches) error) error {
	return m.WithWorld(ctx, lc, locks.Exclusive, fn)
}

// WithBattles runs fn holding the battle lock in mode.
func (m *Manager) WithBattles(ctx context.Context, lc *locks.Context, mode locks.Mode, fn func(*locks.Context, *Caches) error) error {
	return m.with(ctx, lc, m.locks.Battle, mode, fn)
}

// WithUsers runs fn holding the user lock in mode.
func (m *Manager) WithUsers(ctx context.Context, lc *locks.Context, mode locks.Mode, fn func(*locks.Context, *Caches) error) error {
	return m.with(ctx, lc, m.locks.User, mode, fn)
}

// WithMessages runs fn holding the message lock in mode.
func (m *Manager) WithMessages(ctx context.Context, lc *locks.Context, mode locks.Mode, fn func(*locks.Context, *Caches) error) error {
	return m.with(ctx, lc, m.locks.Message, mode, fn)
}

// WithDatabase runs fn with read access to the store for queries the caches
// do not cover.
func (m *Manager) WithDatabase(ctx context.Context, lc *locks.Context, fn func(*locks.Context, storage.DB) error) error {
	return m.with(ctx, lc, m.locks.Database, locks.Shared, func(c *locks.Context, _ *Caches) error {
		return fn(c, m.db)
	})
}

// Flush writes every dirty entity of every family. Failures of one family do
// not stop the others. A context already holding the cache-management lock
// flushes under it.
func (m *Manager) Flush(ctx context.Context, lc *locks.Context) error {
	flush := func(cm *locks.Context) error {
		st := m.state
		if st == nil {
			return nil
		}

		el := errors.NewErrorList()
		el.Add(st.World.cache.Flush(ctx, cm))
		el.Add(st.Battles.cache.Flush(ctx, cm))
		el.Add(st.Users.cache.Flush(ctx, cm))
		el.Add(st.Messages.cache.Flush(ctx, cm))
		return el.Err()
	}

	if lc.Holds(m.locks.CacheManagement) {
		return flush(lc)
	}
	return locks.With(lc, m.locks.CacheManagement, locks.Shared, flush)
}

// Shutdown flushes and releases every cache and closes the manager; later
// use returns ErrClosed. If any flush fails the caches are kept so Shutdown
// can be retried. It is safe to call before Init and more than once.
func (m *Manager) Shutdown(ctx context.Context, lc *locks.Context) error {
	return locks.With(lc, m.locks.CacheManagement, locks.Exclusive, func(cm *locks.Context) error {
		st := m.state
		if st == nil {
			m.closed.Store(true)
			return nil
		}

		el := errors.NewErrorList()
		el.Add(st.World.cache.Flush(ctx, cm))
		el.Add(st.Battles.cache.Flush(ctx, cm))
		el.Add(st.Users.cache.Flush(ctx, cm))
		el.Add(st.Messages.cache.Flush(ctx, cm))
		if err := el.Err(); err != nil {
			return fmt.Errorf("shutting down caches: %w", err)
		}

		st.World.cache.clear()
		st.Battles.cache.clear()
		st.Users.cache.clear()
		st.Messages.cache.clear()

		m.state = nil
		m.ready.Store(false)
		m.closed.Store(true)
		slog.InfoContext(ctx, "caches shut down")
		return nil
	})
}

// Reset makes a best-effort flush and discards every cache. The next use
// starts from a freshly loaded generation.
func (m *Manager) Reset(ctx context.Context, lc *locks.Context) error {
	return locks.With(lc, m.locks.CacheManagement, locks.Exclusive, func(cm *locks.Context) error {
		st := m.state
		if st == nil {
			return nil
		}

		st.World.cache.Reset(ctx, cm)
		st.Battles.cache.Reset(ctx, cm)
		st.Users.cache.Reset(ctx, cm)
		st.Messages.cache.Reset(ctx, cm)
		st.Messages.clearIndex()
		st.Battles.resetActive()

		m.state = nil
		m.ready.Store(false)
		slog.InfoContext(ctx, "caches reset")
		return nil
	})
}

// Start loads the caches and keeps them until ctx is done, then flushes and
// closes the store.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.Init(ctx, locks.NewContext()); err != nil {
		return fmt.Errorf("initializing caches: %w", err)
	}

	<-ctx.Done()

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.shutdownTimeout)
	defer cancel()

	err := m.Shutdown(sctx, locks.NewContext())
	if cerr := m.db.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("closing database: %w", cerr)
	}
	return err
}

// Tick flushes dirty entities. Failures are logged and retried on the next
// tick.
func (m *Manager) Tick(ctx context.Context) error {
	if err := m.Flush(ctx, locks.NewContext()); err != nil {
		slog.WarnContext(ctx, "periodic flush failed", "error", err)
	}
	return nil
}

// WorldTicker moves space objects along their headings every tick.
func (m *Manager) WorldTicker() *WorldTicker {
	return &WorldTicker{m: m}
}

// WorldTicker advances the world on each tick.
type WorldTicker struct {
	m *Manager
}

// Tick advances every moving space object to the current time.
func (t *WorldTicker) Tick(ctx context.Context) error {
	return t.m.WithWorldWrite(ctx, locks.NewContext(), func(lc *locks.Context, c *Caches) error {
		c.World.Advance(lc, t.m.now())
		return nil
	})
}
