package game

import (
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

func TestBattle_Clone(t *testing.T) {
	laser := WeaponStats{Count: 2, Damage: 10, Accuracy: 0.5}

	tests := map[string]struct {
		ended bool
	}{
		"active": {},
		"ended":  {ended: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			start := ShipStats{Hull: 100, Weapons: map[string]WeaponStats{"laser": laser}}
			b := NewBattle(1, 2, start, start.Clone(), t0)
			if tt.ended {
				b.End(t0.Add(time.Minute), Defender, start.Clone(), start.Clone())
			}

			c := b.Clone()
			if c == b {
				t.Fatalf("expected a new battle")
			}
			testutil.AssertEqual(t, "copy", c, b)

			b.AddDamage(Attacker, 5)
			b.Ready(Attacker)["laser"] = t0.Add(time.Hour)
			b.AttackerStart.Weapons["laser"] = WeaponStats{Count: 9}
			if tt.ended {
				*b.EndTime = t0.Add(time.Hour)
				b.DefenderEnd.Hull = 0
				b.DefenderEnd.Weapons["laser"] = WeaponStats{}
			}

			testutil.AssertEqual(t, "damage", c.AttackerDamage, 0.0)
			testutil.AssertEqual(t, "ready", c.AttackerReady["laser"], t0)
			testutil.AssertEqual(t, "start weapons", c.AttackerStart.Weapons["laser"], laser)
			if tt.ended {
				testutil.AssertEqual(t, "end time", *c.EndTime, t0.Add(time.Minute))
				testutil.AssertEqual(t, "defender end hull", c.DefenderEnd.Hull, 100.0)
				testutil.AssertEqual(t, "defender end weapons", c.DefenderEnd.Weapons["laser"], laser)
			}
		})
	}
}
