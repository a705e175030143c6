package locks

// Context tracks the locks held by a single task. Each acquisition returns a
// child context holding one more lock; the parent is suspended until the
// child's guard is released, so only the innermost context is usable.
//
// A Context must not be shared between goroutines.
type Context struct {
	_ noCopy

	held      []heldLock
	parent    *Context
	suspended bool
	released  bool
}

type heldLock struct {
	lock *Lock
	mode Mode
}

// NewContext returns a context holding no locks.
func NewContext() *Context {
	return &Context{}
}

// Acquire takes l in mode m and returns the child context that holds it along
// with the guard that releases it. Acquiring a lock already held, or one
// ranked at or below a held lock of the same family, panics with an
// *OrderViolation before blocking.
func (c *Context) Acquire(l *Lock, m Mode) (*Context, *Guard) {
	c.mustBeUsable(l.name)

	for _, h := range c.held {
		if h.lock == l {
			panic(c.violation(l.name, "recursive acquisition of"))
		}
		if h.lock.family == l.family && h.lock.rank >= l.rank {
			panic(c.violation(l.name, "out of order acquisition of"))
		}
	}

	l.lock(m)

	held := make([]heldLock, len(c.held), len(c.held)+1)
	copy(held, c.held)
	child := &Context{
		held:   append(held, heldLock{lock: l, mode: m}),
		parent: c,
	}
	c.suspended = true

	return child, &Guard{ctx: child, lock: l, mode: m}
}

// Require panics unless c holds l in a mode at least as strong as m.
func (c *Context) Require(l *Lock, m Mode) {
	c.mustBeUsable(l.name)

	for _, h := range c.held {
		if h.lock != l {
			continue
		}
		if m == Exclusive && h.mode == Shared {
			panic(c.violation(l.name, "exclusive access required but shared lock held on"))
		}
		return
	}
	panic(c.violation(l.name, "lock not held"))
}

// Holds reports whether c holds l in any mode.
func (c *Context) Holds(l *Lock) bool {
	for _, h := range c.held {
		if h.lock == l {
			return true
		}
	}
	return false
}

// Empty reports whether c holds no locks.
func (c *Context) Empty() bool {
	return len(c.held) == 0
}

// MaxRank returns the highest rank held in family f.
func (c *Context) MaxRank(f Family) (Rank, bool) {
	var top Rank
	found := false
	for _, h := range c.held {
		if h.lock.family != f {
			continue
		}
		if !found || h.lock.rank > top {
			top = h.lock.rank
			found = true
		}
	}
	return top, found
}

func (c *Context) mustBeUsable(name string) {
	if c.released {
		panic(c.violation(name, "use of released context for"))
	}
	if c.suspended {
		panic(c.violation(name, "use of suspended context for"))
	}
}

// Guard releases one acquisition.
type Guard struct {
	ctx  *Context
	lock *Lock
	mode Mode
}

// Release unlocks the guarded lock and resumes the parent context. Releasing
// twice is a no-op; releasing while a nested acquisition is still live panics.
func (g *Guard) Release() {
	if g.ctx.released {
		return
	}
	if g.ctx.suspended {
		panic(g.ctx.violation(g.lock.name, "release with nested lock still held under"))
	}

	g.ctx.released = true
	g.lock.unlock(g.mode)
	if g.ctx.parent != nil {
		g.ctx.parent.suspended = false
	}
}

// With runs fn while holding l in mode m. The lock is released when fn
// returns or panics.
func With(c *Context, l *Lock, m Mode, fn func(*Context) error) error {
	child, g := c.Acquire(l, m)
	defer g.Release()

	return fn(child)
}

// noCopy makes go vet flag copies of Context values.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
