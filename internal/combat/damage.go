package combat

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/pixil98/go-starlane/internal/game"
)

// MinCooldown is the shortest time a weapon can take to become ready again,
// however high the time multiplier.
const MinCooldown = time.Second

// RollHits rolls count independent shots, each hitting with probability
// accuracy. roll must return values in [0, 1).
func RollHits(count int, accuracy float64, roll func() float64) int {
	if roll == nil {
		roll = rand.Float64
	}

	hits := 0
	for range count {
		if roll() < accuracy {
			hits++
		}
	}
	return hits
}

// Breakdown is how much of a volley each defense layer absorbed.
type Breakdown struct {
	Shield float64
	Armor  float64
	Hull   float64
}

func (b Breakdown) Total() float64 {
	return b.Shield + b.Armor + b.Hull
}

// ApplyDamage takes raw damage out of the target's pools, shield first, then
// armor, then hull. Damage beyond the hull is lost.
func ApplyDamage(target *game.User, raw float64) Breakdown {
	var b Breakdown
	b.Shield = target.Shield.Absorb(raw)
	raw -= b.Shield
	b.Armor = target.Armor.Absorb(raw)
	raw -= b.Armor
	b.Hull = target.Hull.Absorb(raw)
	return b
}

// NextReady returns when a weapon fired at now can fire again. The base
// cooldown is in game-seconds and is shortened by the multiplier, rounded up
// to whole seconds.
func NextReady(now time.Time, baseSeconds, multiplier float64) time.Time {
	if multiplier < 1 || math.IsNaN(multiplier) {
		multiplier = 1
	}

	d := time.Duration(math.Ceil(baseSeconds/multiplier)) * time.Second
	if d < MinCooldown {
		d = MinCooldown
	}
	return now.Add(d)
}

var damageMessages = []struct {
	maxDamage float64
	verb      string // "{weapon} {verb} {target}"
}{
	{0, "misses"},
	{10, "grazes"},
	{50, "scorches"},
	{150, "hits"},
	{300, "pounds"},
	{600, "rips into"},
	{1200, "devastates"},
}

// DamageVerb describes a volley of the given damage.
func DamageVerb(damage float64) string {
	for _, msg := range damageMessages {
		if damage <= msg.maxDamage {
			return msg.verb
		}
	}
	return "obliterates"
}
