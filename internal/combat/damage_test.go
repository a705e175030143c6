package combat

import (
	"testing"
	"time"

	"github.com/pixil98/go-testutil"

	"github.com/pixil98/go-starlane/internal/game"
)

// sequence returns a roll function yielding vals in order, then repeating the
// last one.
func sequence(vals ...float64) func() float64 {
	i := 0
	return func() float64 {
		v := vals[min(i, len(vals)-1)]
		i++
		return v
	}
}

func TestRollHits(t *testing.T) {
	tests := map[string]struct {
		count    int
		accuracy float64
		roll     func() float64
		exp      int
	}{
		"perfect accuracy always hits": {
			count:    5,
			accuracy: 1.0,
			exp:      5,
		},
		"zero accuracy never hits": {
			count:    5,
			accuracy: 0,
			exp:      0,
		},
		"rolls below accuracy hit": {
			count:    4,
			accuracy: 0.5,
			roll:     sequence(0.1, 0.9, 0.49, 0.5),
			exp:      2,
		},
		"no weapons": {
			count:    0,
			accuracy: 1,
			exp:      0,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, "hits", RollHits(tt.count, tt.accuracy, tt.roll), tt.exp)
		})
	}
}

func TestApplyDamage(t *testing.T) {
	// Pools are shield, armor, hull.
	tests := map[string]struct {
		before [3]float64
		raw    float64
		exp    Breakdown
		after  [3]float64
	}{
		"shield then armor": {
			before: [3]float64{10, 50, 100},
			raw:    35,
			exp:    Breakdown{Shield: 10, Armor: 25},
			after:  [3]float64{0, 25, 100},
		},
		"through to hull": {
			before: [3]float64{10, 50, 100},
			raw:    100,
			exp:    Breakdown{Shield: 10, Armor: 50, Hull: 40},
			after:  [3]float64{0, 0, 60},
		},
		"overkill stops at zero": {
			before: [3]float64{0, 0, 30},
			raw:    500,
			exp:    Breakdown{Hull: 30},
			after:  [3]float64{0, 0, 0},
		},
		"no damage": {
			before: [3]float64{5, 5, 5},
			raw:    0,
			exp:    Breakdown{},
			after:  [3]float64{5, 5, 5},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			u := &game.User{
				Shield: game.Pool{Current: tt.before[0], Max: tt.before[0]},
				Armor:  game.Pool{Current: tt.before[1], Max: tt.before[1]},
				Hull:   game.Pool{Current: tt.before[2], Max: tt.before[2]},
			}

			b := ApplyDamage(u, tt.raw)

			testutil.AssertEqual(t, "breakdown", b, tt.exp)
			testutil.AssertEqual(t, "pools", [3]float64{u.Shield.Current, u.Armor.Current, u.Hull.Current}, tt.after)
		})
	}
}

func TestNextReady(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		base       float64
		multiplier float64
		exp        time.Duration
	}{
		"unscaled":             {base: 720, multiplier: 1, exp: 720 * time.Second},
		"scaled by ten":        {base: 720, multiplier: 10, exp: 72 * time.Second},
		"rounds up":            {base: 7, multiplier: 2, exp: 4 * time.Second},
		"never below a second": {base: 12, multiplier: 1000, exp: time.Second},
		"no cooldown":          {base: 0, multiplier: 1, exp: time.Second},
		"multiplier below one": {base: 30, multiplier: 0.5, exp: 30 * time.Second},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, "next ready", NextReady(now, tt.base, tt.multiplier), now.Add(tt.exp))
		})
	}
}

func TestSafeHull(t *testing.T) {
	tests := map[string]struct {
		max      float64
		fraction float64
		exp      float64
	}{
		"tenth of max":    {max: 200, fraction: 0.1, exp: 20},
		"at least one":    {max: 5, fraction: 0.1, exp: 1},
		"never above max": {max: 0.5, fraction: 0.1, exp: 0.5},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, "hull", SafeHull(tt.max, tt.fraction), tt.exp)
		})
	}
}

func TestDamageVerb(t *testing.T) {
	tests := map[string]struct {
		damage float64
		exp    string
	}{
		"nothing":  {damage: 0, exp: "misses"},
		"light":    {damage: 8, exp: "grazes"},
		"heavy":    {damage: 1000, exp: "devastates"},
		"enormous": {damage: 5000, exp: "obliterates"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, "verb", DamageVerb(tt.damage), tt.exp)
		})
	}
}
