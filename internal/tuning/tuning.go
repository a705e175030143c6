package tuning

import (
	"fmt"
	"os"

	"github.com/pixil98/go-errors"
	"gopkg.in/yaml.v3"
)

// Tuning holds the game-rate constants every elapsed-time computation and
// the battle engine read. Values are game-seconds; the time multiplier is
// applied before they are used.
type Tuning struct {
	World WorldTuning `yaml:"world"`

	IronPerSecond           float64 `yaml:"iron_per_second"`
	DefenseRegenPerSecond   float64 `yaml:"defense_regen_per_second"`
	TeleportRechargeSeconds float64 `yaml:"teleport_recharge_seconds"`
	TeleportMaxCharges      int     `yaml:"teleport_max_charges"`

	Defense DefenseTuning         `yaml:"defense"`
	Weapons map[string]WeaponSpec `yaml:"weapons"`

	// MessageSummaryThreshold is the unread backlog that triggers collapsing
	// battle events into a single summary message.
	MessageSummaryThreshold int `yaml:"message_summary_threshold"`

	// SafeHullFraction is the share of max hull a defeated ship is restored to.
	SafeHullFraction float64 `yaml:"safe_hull_fraction"`
}

type WorldTuning struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// DefenseTuning maps tech counts onto defense pool maxima.
type DefenseTuning struct {
	Hull   PoolSpec `yaml:"hull"`
	Armor  PoolSpec `yaml:"armor"`
	Shield PoolSpec `yaml:"shield"`
}

type PoolSpec struct {
	Tech    string  `yaml:"tech"`
	Base    float64 `yaml:"base"`
	PerTech float64 `yaml:"per_tech"`
}

// Max returns the pool maximum for the given tech counts.
func (p PoolSpec) Max(techCounts map[string]int) float64 {
	return p.Base + p.PerTech*float64(techCounts[p.Tech])
}

// WeaponSpec is the base definition of a weapon tech. Cooldown is in
// game-seconds.
type WeaponSpec struct {
	Damage   float64 `yaml:"damage"`
	Accuracy float64 `yaml:"accuracy"`
	Cooldown float64 `yaml:"cooldown"`
}

// Default returns the built-in tuning.
func Default() *Tuning {
	return &Tuning{
		World:                   WorldTuning{Width: 5000, Height: 5000},
		IronPerSecond:           1,
		DefenseRegenPerSecond:   1,
		TeleportRechargeSeconds: 86400,
		TeleportMaxCharges:      1,
		Defense: DefenseTuning{
			Hull:   PoolSpec{Tech: "ship_hull", Base: 100, PerTech: 100},
			Armor:  PoolSpec{Tech: "kinetic_armor", Base: 0, PerTech: 100},
			Shield: PoolSpec{Tech: "energy_shield", Base: 0, PerTech: 100},
		},
		Weapons: map[string]WeaponSpec{
			"auto_turret":    {Damage: 10, Accuracy: 0.5, Cooldown: 12},
			"pulse_laser":    {Damage: 100, Accuracy: 0.95, Cooldown: 720},
			"gauss_rifle":    {Damage: 250, Accuracy: 0.8, Cooldown: 1440},
			"photon_torpedo": {Damage: 500, Accuracy: 0.7, Cooldown: 2880},
		},
		MessageSummaryThreshold: 50,
		SafeHullFraction:        0.1,
	}
}

// Load reads a YAML tuning file over the defaults.
func Load(path string) (*Tuning, error) {
	t := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tuning %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, t); err != nil {
		return nil, fmt.Errorf("parsing tuning %q: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("validating tuning %q: %w", path, err)
	}

	return t, nil
}

func (t *Tuning) Validate() error {
	el := errors.NewErrorList()

	if t.World.Width <= 0 || t.World.Height <= 0 {
		el.Add(fmt.Errorf("world dimensions must be positive"))
	}
	if t.IronPerSecond < 0 {
		el.Add(fmt.Errorf("iron_per_second must not be negative"))
	}
	if t.DefenseRegenPerSecond < 0 {
		el.Add(fmt.Errorf("defense_regen_per_second must not be negative"))
	}
	if t.TeleportRechargeSeconds <= 0 {
		el.Add(fmt.Errorf("teleport_recharge_seconds must be positive"))
	}
	if t.TeleportMaxCharges < 0 {
		el.Add(fmt.Errorf("teleport_max_charges must not be negative"))
	}
	if t.MessageSummaryThreshold < 1 {
		el.Add(fmt.Errorf("message_summary_threshold must be at least 1"))
	}
	if t.SafeHullFraction <= 0 || t.SafeHullFraction > 1 {
		el.Add(fmt.Errorf("safe_hull_fraction must be in (0, 1]"))
	}

	for key, w := range t.Weapons {
		if w.Accuracy < 0 || w.Accuracy > 1 {
			el.Add(fmt.Errorf("weapon %s: accuracy must be in [0, 1]", key))
		}
		if w.Damage < 0 {
			el.Add(fmt.Errorf("weapon %s: damage must not be negative", key))
		}
		if w.Cooldown <= 0 {
			el.Add(fmt.Errorf("weapon %s: cooldown must be positive", key))
		}
	}

	return el.Err()
}
