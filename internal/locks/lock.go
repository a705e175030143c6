package locks

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

// Mode selects how a lock is taken.
type Mode int

const (
	// Exclusive admits a single holder.
	Exclusive Mode = iota
	// Shared admits any number of concurrent holders.
	Shared
)

func (m Mode) String() string {
	if m == Shared {
		return "shared"
	}
	return "exclusive"
}

// Family groups locks that are ordered against each other. Locks in
// different families carry no ordering constraint between them.
type Family string

// FamilyCore orders the locks guarding the live game state.
const FamilyCore Family = "core"

// Rank is a lock's position in its family's total order. A context may only
// acquire a lock whose rank is strictly above every rank it already holds in
// the same family.
type Rank int

const (
	RankCacheManagement Rank = 0
	RankWorld           Rank = 10
	RankBattle          Rank = 15
	RankUser            Rank = 20
	RankMessage         Rank = 25
	RankDatabase        Rank = 30
)

// Lock is a named, ranked reader/writer lock. It is only ever taken through
// a Context so the ordering rules are checked on every acquisition.
type Lock struct {
	name   string
	family Family
	rank   Rank

	mu deadlock.RWMutex
}

// NewLock creates a lock in the given family.
func NewLock(name string, family Family, rank Rank) *Lock {
	return &Lock{name: name, family: family, rank: rank}
}

// Name returns the lock's name as reported in violations.
func (l *Lock) Name() string { return l.name }

// Family returns the family the lock is ordered in.
func (l *Lock) Family() Family { return l.family }

// Rank returns the lock's position within its family.
func (l *Lock) Rank() Rank { return l.rank }

func (l *Lock) lock(m Mode) {
	if m == Shared {
		l.mu.RLock()
		return
	}
	l.mu.Lock()
}

func (l *Lock) unlock(m Mode) {
	if m == Shared {
		l.mu.RUnlock()
		return
	}
	l.mu.Unlock()
}

// Set is the fixed collection of locks guarding the live game state.
type Set struct {
	CacheManagement *Lock
	World           *Lock
	Battle          *Lock
	User            *Lock
	Message         *Lock
	Database        *Lock
}

// NewSet creates the core lock chain.
func NewSet() *Set {
	return &Set{
		CacheManagement: NewLock("cache-management", FamilyCore, RankCacheManagement),
		World:           NewLock("world", FamilyCore, RankWorld),
		Battle:          NewLock("battle", FamilyCore, RankBattle),
		User:            NewLock("user", FamilyCore, RankUser),
		Message:         NewLock("message", FamilyCore, RankMessage),
		Database:        NewLock("database", FamilyCore, RankDatabase),
	}
}

// Configure sets up the runtime deadlock detector backing every Lock. A zero
// timeout leaves the detector's default in place.
func Configure(timeout time.Duration, enabled bool) {
	deadlock.Opts.Disable = !enabled
	if timeout > 0 {
		deadlock.Opts.DeadlockTimeout = timeout
	}
}
