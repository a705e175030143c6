package game

import (
	"testing"
	"time"

	"github.com/pixil98/go-testutil"

	"github.com/pixil98/go-starlane/internal/tuning"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func unscaled(from, to time.Time) time.Duration {
	return to.Sub(from)
}

// switchAt applies factor 1 before at and factor mult after it.
func switchAt(at time.Time, mult float64) func(from, to time.Time) time.Duration {
	return func(from, to time.Time) time.Duration {
		var d time.Duration
		if from.Before(at) {
			end := to
			if end.After(at) {
				end = at
			}
			d += end.Sub(from)
		}
		if to.After(at) {
			start := from
			if start.Before(at) {
				start = at
			}
			d += time.Duration(float64(to.Sub(start)) * mult)
		}
		return d
	}
}

func TestUser_Advance_Iron(t *testing.T) {
	tests := map[string]struct {
		scale   func(from, to time.Time) time.Duration
		elapsed time.Duration
		expIron float64
	}{
		"unscaled": {
			scale:   unscaled,
			elapsed: 10 * time.Second,
			expIron: 20,
		},
		"multiplier switched mid interval": {
			scale:   switchAt(t0.Add(time.Second), 10),
			elapsed: 2 * time.Second,
			// 1s at base rate plus 1s at ten times base rate.
			expIron: 1*2 + 1*10*2,
		},
		"no time passed": {
			scale:   unscaled,
			elapsed: 0,
			expIron: 0,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			tn := tuning.Default()
			tn.IronPerSecond = 2
			u := NewUser(1, "ada", tn, t0)

			p := u.Advance(t0.Add(tt.elapsed), tn, tt.scale)

			testutil.AssertEqual(t, "iron", u.Iron, tt.expIron)
			testutil.AssertEqual(t, "progress iron", p.Iron, tt.expIron)
		})
	}
}

func TestUser_Advance_DefenseRegen(t *testing.T) {
	tests := map[string]struct {
		inBattle  bool
		expShield float64
		expHull   float64
	}{
		"regenerates up to max": {
			expShield: 60,
			expHull:   160,
		},
		"paused in battle": {
			inBattle:  true,
			expShield: 50,
			expHull:   150,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			tn := tuning.Default()
			tn.DefenseRegenPerSecond = 10
			u := NewUser(1, "ada", tn, t0)
			u.TechCounts["ship_hull"] = 1
			u.TechCounts["energy_shield"] = 1
			u.RecomputeMaxima(tn)
			u.Shield.Current = 50
			u.Hull.Current = 150
			if tt.inBattle {
				u.InBattle = true
				id := NewBattleID()
				u.CurrentBattleID = &id
			}

			u.Advance(t0.Add(time.Second), tn, unscaled)

			testutil.AssertEqual(t, "shield", u.Shield.Current, tt.expShield)
			testutil.AssertEqual(t, "hull", u.Hull.Current, tt.expHull)
			testutil.AssertEqual(t, "last regen", u.DefenseLastRegen, t0.Add(time.Second))
		})
	}
}

func TestUser_Advance_Builds(t *testing.T) {
	tests := map[string]struct {
		queue     []BuildItem
		elapsed   time.Duration
		expBuilt  []string
		expXP     int64
		expLevels []int
		expQueue  int
	}{
		"completes a build and awards xp": {
			queue:    []BuildItem{{Key: "auto_turret", Cost: 250, Duration: 5}},
			elapsed:  5 * time.Second,
			expBuilt: []string{"auto_turret"},
			expXP:    2,
		},
		"crossing a level emits one level": {
			queue:     []BuildItem{{Key: "pulse_laser", Cost: 5000, Duration: 1}},
			elapsed:   time.Second,
			expBuilt:  []string{"pulse_laser"},
			expXP:     50,
			expLevels: []int{2},
		},
		"crossing two levels emits each once": {
			queue: []BuildItem{
				{Key: "pulse_laser", Cost: 5000, Duration: 1},
				{Key: "gauss_rifle", Cost: 10000, Duration: 1},
			},
			elapsed:   2 * time.Second,
			expBuilt:  []string{"pulse_laser", "gauss_rifle"},
			expXP:     150,
			expLevels: []int{2, 3},
		},
		"partial progress keeps queue": {
			queue:    []BuildItem{{Key: "auto_turret", Cost: 100, Duration: 10}},
			elapsed:  4 * time.Second,
			expQueue: 1,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			tn := tuning.Default()
			u := NewUser(1, "ada", tn, t0)
			u.BuildQueue = tt.queue

			p := u.Advance(t0.Add(tt.elapsed), tn, unscaled)

			testutil.AssertEqual(t, "built", p.BuildsCompleted, tt.expBuilt)
			testutil.AssertEqual(t, "xp", u.Experience, tt.expXP)
			testutil.AssertEqual(t, "levels", p.LevelsGained, tt.expLevels)
			testutil.AssertEqual(t, "queue", len(u.BuildQueue), tt.expQueue)
			for _, key := range tt.expBuilt {
				if u.TechCounts[key] < 1 {
					t.Errorf("tech %s not counted", key)
				}
			}
		})
	}
}

func TestUser_Advance_LevelUpOnlyOnce(t *testing.T) {
	tn := tuning.Default()
	u := NewUser(1, "ada", tn, t0)
	u.BuildQueue = []BuildItem{{Key: "pulse_laser", Cost: 5000, Duration: 1}}

	first := u.Advance(t0.Add(time.Second), tn, unscaled)
	second := u.Advance(t0.Add(2*time.Second), tn, unscaled)

	testutil.AssertEqual(t, "first", first.LevelsGained, []int{2})
	testutil.AssertEqual(t, "second", len(second.LevelsGained), 0)
	testutil.AssertEqual(t, "level", u.Level, 2)
}

func TestUser_Advance_Research(t *testing.T) {
	tn := tuning.Default()
	u := NewUser(1, "ada", tn, t0)
	u.Research = &Research{Key: "iron_mining", Remaining: 30}

	u.Advance(t0.Add(20*time.Second), tn, unscaled)
	testutil.AssertEqual(t, "remaining", u.Research.Remaining, 10.0)

	p := u.Advance(t0.Add(30*time.Second), tn, unscaled)
	testutil.AssertEqual(t, "completed", p.ResearchCompleted, "iron_mining")
	testutil.AssertEqual(t, "level", u.ResearchLevels["iron_mining"], 1)
	if u.Research != nil {
		t.Errorf("research should be cleared")
	}
}

func TestUser_Advance_Teleport(t *testing.T) {
	tn := tuning.Default()
	tn.TeleportMaxCharges = 2
	tn.TeleportRechargeSeconds = 100
	u := NewUser(1, "ada", tn, t0)
	u.TeleportCharges = 0

	p := u.Advance(t0.Add(250*time.Second), tn, unscaled)
	testutil.AssertEqual(t, "gained", p.ChargesGained, 2)
	testutil.AssertEqual(t, "charges", u.TeleportCharges, 2)
	testutil.AssertEqual(t, "progress reset at max", u.TeleportProgress, 0.0)

	if err := u.UseTeleportCharge(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u.TeleportCharges = 0
	testutil.AssertErrorContains(t, u.UseTeleportCharge(), "no teleport charges")
}

func TestUser_EnqueueBuild(t *testing.T) {
	tn := tuning.Default()
	u := NewUser(1, "ada", tn, t0)
	u.Iron = 100

	err := u.EnqueueBuild(BuildItem{Key: "auto_turret", Cost: 60, Duration: 10}, t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "iron", u.Iron, 40.0)
	testutil.AssertEqual(t, "started", u.BuildQueue[0].Started, t0)

	err = u.EnqueueBuild(BuildItem{Key: "auto_turret", Cost: 60, Duration: 10}, t0)
	testutil.AssertErrorContains(t, err, "not enough iron")
}

func TestUser_RecomputeMaxima_Clamps(t *testing.T) {
	tn := tuning.Default()
	u := NewUser(1, "ada", tn, t0)
	u.TechCounts["ship_hull"] = 3
	u.RecomputeMaxima(tn)
	u.Hull.Current = u.Hull.Max

	u.TechCounts["ship_hull"] = 1
	u.RecomputeMaxima(tn)

	testutil.AssertEqual(t, "max", u.Hull.Max, 200.0)
	testutil.AssertEqual(t, "current", u.Hull.Current, 200.0)
	if err := u.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestPool_Absorb(t *testing.T) {
	p := Pool{Current: 10, Max: 50}

	testutil.AssertEqual(t, "partial", p.Absorb(35), 10.0)
	testutil.AssertEqual(t, "empty", p.Current, 0.0)
	testutil.AssertEqual(t, "nothing left", p.Absorb(5), 0.0)
}
