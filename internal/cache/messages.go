package cache

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/pixil98/go-starlane/internal/game"
	"github.com/pixil98/go-starlane/internal/locks"
)

// MessageStore persists messages.
type MessageStore interface {
	Store[game.MessageID, *game.Message]
	LoadWhere(ctx context.Context, column string, value any) ([]*game.Message, error)
}

// MessageCache holds user feeds, indexed by recipient. A recipient's feed is
// read from the store the first time it is asked for.
type MessageCache struct {
	cache     *Cache[game.MessageID, *game.Message]
	store     MessageStore
	threshold int
	now       func() time.Time

	mu          sync.Mutex
	byRecipient map[game.UserID]map[game.MessageID]struct{}
	loaded      map[game.UserID]bool
}

func newMessageCache(ls *locks.Set, store MessageStore, threshold int, now func() time.Time, opts ...CacheOpt) *MessageCache {
	return &MessageCache{
		cache:       New[game.MessageID, *game.Message]("message", ls.Message, ls.Database, store, opts...),
		store:       store,
		threshold:   threshold,
		now:         now,
		byRecipient: map[game.UserID]map[game.MessageID]struct{}{},
		loaded:      map[game.UserID]bool{},
	}
}

// Create adds a new message to its recipient's feed.
func (m *MessageCache) Create(lc *locks.Context, msg *game.Message) error {
	lc.Require(m.cache.lock, locks.Exclusive)

	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	m.cache.setUnsafe(msg.ID, msg)
	m.index(msg)
	return nil
}

// Notify creates a message for to.
func (m *MessageCache) Notify(lc *locks.Context, to game.UserID, kind game.MessageKind, text string) (*game.Message, error) {
	msg := game.NewMessage(to, kind, text, m.now())
	if err := m.Create(lc, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Get returns one message by ID.
func (m *MessageCache) Get(ctx context.Context, lc *locks.Context, id game.MessageID) (*game.Message, error) {
	return m.cache.Get(ctx, lc, id)
}

// ForRecipient returns a user's feed, oldest first.
func (m *MessageCache) ForRecipient(ctx context.Context, lc *locks.Context, userID game.UserID) ([]*game.Message, error) {
	lc.Require(m.cache.lock, locks.Shared)

	if err := m.ensureLoaded(ctx, lc, userID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	ids := make([]game.MessageID, 0, len(m.byRecipient[userID]))
	for id := range m.byRecipient[userID] {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	msgs := make([]*game.Message, 0, len(ids))
	for _, id := range ids {
		if msg, ok := m.cache.peek(id); ok {
			msgs = append(msgs, msg)
		}
	}
	slices.SortFunc(msgs, func(a, b *game.Message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return msgs, nil
}

// MarkRead flags a message as read.
func (m *MessageCache) MarkRead(ctx context.Context, lc *locks.Context, id game.MessageID) error {
	msg, err := m.cache.GetForUpdate(ctx, lc, id)
	if err != nil {
		return err
	}
	msg.Read = true
	return nil
}

// UnreadCount returns how many of the user's messages are unread.
func (m *MessageCache) UnreadCount(ctx context.Context, lc *locks.Context, userID game.UserID) (int, error) {
	msgs, err := m.ForRecipient(ctx, lc, userID)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, msg := range msgs {
		if !msg.Read {
			n++
		}
	}
	return n, nil
}

// Summarize collapses a user's unread battle events into one summary once the
// unread backlog reaches the threshold. It returns nil when nothing was
// collapsed.
func (m *MessageCache) Summarize(ctx context.Context, lc *locks.Context, userID game.UserID) (*game.Message, error) {
	lc.Require(m.cache.lock, locks.Exclusive)

	msgs, err := m.ForRecipient(ctx, lc, userID)
	if err != nil {
		return nil, err
	}

	unread := 0
	var events []*game.Message
	for _, msg := range msgs {
		if msg.Read {
			continue
		}
		unread++
		if msg.Kind == game.MessageBattleEvent {
			events = append(events, msg)
		}
	}
	if unread < m.threshold || len(events) == 0 {
		return nil, nil
	}

	text := fmt.Sprintf("%d battle reports between %s and %s were summarized.",
		len(events), events[0].CreatedAt.Format(time.RFC3339), events[len(events)-1].CreatedAt.Format(time.RFC3339))
	summary, err := m.Notify(lc, userID, game.MessageSummary, text)
	if err != nil {
		return nil, err
	}

	for _, msg := range events {
		m.remove(lc, msg)
	}
	return summary, nil
}

// Remove deletes a message.
func (m *MessageCache) Remove(ctx context.Context, lc *locks.Context, id game.MessageID) error {
	lc.Require(m.cache.lock, locks.Exclusive)

	msg, err := m.cache.Get(ctx, lc, id)
	if err != nil {
		return err
	}
	m.remove(lc, msg)
	return nil
}

func (m *MessageCache) remove(lc *locks.Context, msg *game.Message) {
	m.cache.Remove(lc, msg.ID)

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byRecipient[msg.RecipientID], msg.ID)
}

func (m *MessageCache) ensureLoaded(ctx context.Context, lc *locks.Context, userID game.UserID) error {
	m.mu.Lock()
	done := m.loaded[userID]
	m.mu.Unlock()
	if done {
		return nil
	}

	var msgs []*game.Message
	err := locks.With(lc, m.cache.dbLock, locks.Shared, func(*locks.Context) error {
		var err error
		msgs, err = m.store.LoadWhere(ctx, "recipient", userID.String())
		return err
	})
	if err != nil {
		return fmt.Errorf("loading messages for %s: %w", userID, err)
	}

	// Rows removed since the last flush are not indexed.
	for _, msg := range msgs {
		m.cache.insertClean(msg.ID, msg)
		if cached, ok := m.cache.peek(msg.ID); ok {
			m.index(cached)
		}
	}

	m.mu.Lock()
	m.loaded[userID] = true
	m.mu.Unlock()
	return nil
}

func (m *MessageCache) index(msg *game.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids, ok := m.byRecipient[msg.RecipientID]
	if !ok {
		ids = map[game.MessageID]struct{}{}
		m.byRecipient[msg.RecipientID] = ids
	}
	ids[msg.ID] = struct{}{}
}

func (m *MessageCache) clearIndex() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byRecipient = map[game.UserID]map[game.MessageID]struct{}{}
	m.loaded = map[game.UserID]bool{}
}

func compareIDs(a, b game.MessageID) int {
	return slices.Compare(a[:], b[:])
}
