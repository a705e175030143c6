package locks

import (
	"errors"
	"testing"

	"github.com/pixil98/go-testutil"
)

// expectViolation runs fn and returns the violation it panicked with.
func expectViolation(t *testing.T, fn func()) *OrderViolation {
	t.Helper()

	var v *OrderViolation
	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			var ok bool
			v, ok = r.(*OrderViolation)
			if !ok {
				panic(r)
			}
		}()
		fn()
	}()

	if v == nil {
		t.Fatalf("expected lock order violation, got none")
	}
	return v
}

func TestContext_Acquire_ValidSequences(t *testing.T) {
	tests := map[string]struct {
		seq []string
	}{
		"full chain": {
			seq: []string{"cache-management", "world", "battle", "user", "message", "database"},
		},
		"skip world": {
			seq: []string{"cache-management", "user"},
		},
		"battle then user": {
			seq: []string{"battle", "user"},
		},
		"world then database": {
			seq: []string{"world", "database"},
		},
		"single lock": {
			seq: []string{"message"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			set := NewSet()
			byName := setByName(set)

			ctx := NewContext()
			var guards []*Guard
			for _, n := range tt.seq {
				var g *Guard
				ctx, g = ctx.Acquire(byName[n], Exclusive)
				guards = append(guards, g)
			}

			for _, n := range tt.seq {
				testutil.AssertEqual(t, "holds "+n, ctx.Holds(byName[n]), true)
			}

			for i := len(guards) - 1; i >= 0; i-- {
				guards[i].Release()
			}
		})
	}
}

func TestContext_Acquire_InvalidSequences(t *testing.T) {
	tests := map[string]struct {
		first  string
		second string
		reason string
	}{
		"user then world": {
			first:  "user",
			second: "world",
			reason: "out of order",
		},
		"database then user": {
			first:  "database",
			second: "user",
			reason: "out of order",
		},
		"message then battle": {
			first:  "message",
			second: "battle",
			reason: "out of order",
		},
		"world then cache management": {
			first:  "world",
			second: "cache-management",
			reason: "out of order",
		},
		"user twice": {
			first:  "user",
			second: "user",
			reason: "recursive",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			set := NewSet()
			byName := setByName(set)

			ctx, g := NewContext().Acquire(byName[tt.first], Exclusive)
			defer g.Release()

			v := expectViolation(t, func() {
				ctx.Acquire(byName[tt.second], Exclusive)
			})
			testutil.AssertErrorContains(t, v, tt.reason)
			testutil.AssertEqual(t, "requested", v.Requested, tt.second)
		})
	}
}

func TestContext_Acquire_WorldReadThenWrite(t *testing.T) {
	set := NewSet()

	ctx, g := NewContext().Acquire(set.World, Shared)
	defer g.Release()

	expectViolation(t, func() {
		ctx.Acquire(set.World, Exclusive)
	})
}

func TestContext_Acquire_IndependentFamilies(t *testing.T) {
	tests := map[string]struct {
		otherFirst bool
	}{
		"core lock first":  {otherFirst: false},
		"other lock first": {otherFirst: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			core := NewLock("user", FamilyCore, RankUser)
			other := NewLock("audit", Family("audit"), 0)

			first, second := core, other
			if tt.otherFirst {
				first, second = other, core
			}

			err := With(NewContext(), first, Exclusive, func(ctx *Context) error {
				return With(ctx, second, Exclusive, func(ctx *Context) error {
					testutil.AssertEqual(t, "holds core", ctx.Holds(core), true)
					testutil.AssertEqual(t, "holds other", ctx.Holds(other), true)
					return nil
				})
			})
			testutil.AssertEqual(t, "error", err, nil)
		})
	}
}

func TestContext_SuspendedParent(t *testing.T) {
	set := NewSet()
	root := NewContext()

	child, g := root.Acquire(set.CacheManagement, Shared)

	v := expectViolation(t, func() {
		root.Acquire(set.User, Exclusive)
	})
	testutil.AssertErrorContains(t, v, "suspended")

	g.Release()

	// The root is usable again and the child is not.
	_, g2 := root.Acquire(set.User, Exclusive)
	g2.Release()

	expectViolation(t, func() {
		child.Acquire(set.User, Exclusive)
	})
}

func TestContext_ReleaseRestoresParent(t *testing.T) {
	set := NewSet()
	root := NewContext()

	err := With(root, set.CacheManagement, Shared, func(ctx *Context) error {
		return With(ctx, set.User, Exclusive, func(ctx *Context) error {
			r, ok := ctx.MaxRank(FamilyCore)
			testutil.AssertEqual(t, "found", ok, true)
			testutil.AssertEqual(t, "max rank", r, RankUser)
			return nil
		})
	})
	testutil.AssertEqual(t, "error", err, nil)
	testutil.AssertEqual(t, "empty", root.Empty(), true)

	// After the scopes end a lower rank lock can be taken again.
	err = With(root, set.World, Exclusive, func(*Context) error { return nil })
	testutil.AssertEqual(t, "error", err, nil)
}

func TestWith_ReleasesOnError(t *testing.T) {
	set := NewSet()
	root := NewContext()
	errBoom := errors.New("boom")

	err := With(root, set.User, Exclusive, func(*Context) error { return errBoom })
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected boom, got %v", err)
	}

	// A second task can take the lock, so the first released it.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = With(NewContext(), set.User, Exclusive, func(*Context) error { return nil })
	}()
	<-done
}

func TestWith_ReleasesOnPanic(t *testing.T) {
	set := NewSet()
	root := NewContext()

	func() {
		defer func() { _ = recover() }()
		_ = With(root, set.User, Exclusive, func(*Context) error { panic("boom") })
	}()

	err := With(NewContext(), set.User, Exclusive, func(*Context) error { return nil })
	testutil.AssertEqual(t, "error", err, nil)
}

func TestContext_Require(t *testing.T) {
	set := NewSet()

	tests := map[string]struct {
		holdMode Mode
		hold     bool
		reqMode  Mode
		expPanic bool
	}{
		"exclusive satisfies exclusive": {hold: true, holdMode: Exclusive, reqMode: Exclusive},
		"exclusive satisfies shared":    {hold: true, holdMode: Exclusive, reqMode: Shared},
		"shared satisfies shared":       {hold: true, holdMode: Shared, reqMode: Shared},
		"shared does not satisfy write": {hold: true, holdMode: Shared, reqMode: Exclusive, expPanic: true},
		"not held":                      {hold: false, reqMode: Shared, expPanic: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := NewContext()
			if tt.hold {
				var g *Guard
				ctx, g = ctx.Acquire(set.World, tt.holdMode)
				defer g.Release()
			}

			if tt.expPanic {
				expectViolation(t, func() { ctx.Require(set.World, tt.reqMode) })
				return
			}
			ctx.Require(set.World, tt.reqMode)
		})
	}
}

func TestGuard_ReleaseWithNestedHeld(t *testing.T) {
	set := NewSet()

	ctx, outer := NewContext().Acquire(set.World, Exclusive)
	_, inner := ctx.Acquire(set.User, Exclusive)

	expectViolation(t, outer.Release)

	inner.Release()
	outer.Release()
	outer.Release()
}

func setByName(s *Set) map[string]*Lock {
	return map[string]*Lock{
		s.CacheManagement.Name(): s.CacheManagement,
		s.World.Name():           s.World,
		s.Battle.Name():          s.Battle,
		s.User.Name():            s.User,
		s.Message.Name():         s.Message,
		s.Database.Name():        s.Database,
	}
}
