package game

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/pixil98/go-errors"

	"github.com/pixil98/go-starlane/internal/tuning"
)

// WeaponStats is one weapon type on a ship. Cooldown is in game-seconds; zero
// means the battle falls back to the tuning table.
type WeaponStats struct {
	Count    int     `json:"count"`
	Damage   float64 `json:"damage"`
	Accuracy float64 `json:"accuracy"`
	Cooldown float64 `json:"cooldown,omitempty"`
}

// ShipStats is a snapshot of a ship's defenses and weapons.
type ShipStats struct {
	Hull    float64                `json:"hull"`
	Armor   float64                `json:"armor"`
	Shield  float64                `json:"shield"`
	Weapons map[string]WeaponStats `json:"weapons"`
}

// ShipStats snapshots the user's current defenses and the weapons their tech
// counts grant.
func (u *User) ShipStats(tn *tuning.Tuning) ShipStats {
	s := ShipStats{
		Hull:    u.Hull.Current,
		Armor:   u.Armor.Current,
		Shield:  u.Shield.Current,
		Weapons: map[string]WeaponStats{},
	}
	for key, spec := range tn.Weapons {
		count := u.TechCounts[key]
		if count <= 0 {
			continue
		}
		s.Weapons[key] = WeaponStats{
			Count:    count,
			Damage:   spec.Damage,
			Accuracy: spec.Accuracy,
			Cooldown: spec.Cooldown,
		}
	}
	return s
}

// WeaponKeys returns the ship's weapon keys in a stable order.
func (s ShipStats) WeaponKeys() []string {
	return slices.Sorted(maps.Keys(s.Weapons))
}

// Clone returns a copy that shares no maps with s.
func (s ShipStats) Clone() ShipStats {
	s.Weapons = maps.Clone(s.Weapons)
	return s
}

// Side is one participant of a battle.
type Side int

const (
	Attacker Side = iota
	Defender
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == Attacker {
		return Defender
	}
	return Attacker
}

func (s Side) String() string {
	if s == Attacker {
		return "attacker"
	}
	return "defender"
}

// Battle is an engagement between two ships. It is mutated once per tick
// until EndTime is set and never again afterwards.
type Battle struct {
	ID         BattleID `json:"id"`
	AttackerID UserID   `json:"attacker_id"`
	DefenderID UserID   `json:"defender_id"`

	AttackerStart ShipStats `json:"attacker_start"`
	DefenderStart ShipStats `json:"defender_start"`

	AttackerReady map[string]time.Time `json:"attacker_ready"`
	DefenderReady map[string]time.Time `json:"defender_ready"`

	// Damage dealt by each side.
	AttackerDamage float64 `json:"attacker_damage"`
	DefenderDamage float64 `json:"defender_damage"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	AttackerEnd *ShipStats `json:"attacker_end,omitempty"`
	DefenderEnd *ShipStats `json:"defender_end,omitempty"`
	WinnerID    UserID     `json:"winner_id,omitempty"`
}

// NewBattle starts a battle at now with every weapon ready to fire.
func NewBattle(attacker, defender UserID, attackerStart, defenderStart ShipStats, now time.Time) *Battle {
	b := &Battle{
		ID:            NewBattleID(),
		AttackerID:    attacker,
		DefenderID:    defender,
		AttackerStart: attackerStart,
		DefenderStart: defenderStart,
		AttackerReady: map[string]time.Time{},
		DefenderReady: map[string]time.Time{},
		StartTime:     now,
	}
	for key := range attackerStart.Weapons {
		b.AttackerReady[key] = now
	}
	for key := range defenderStart.Weapons {
		b.DefenderReady[key] = now
	}
	return b
}

// Clone returns a deep copy of the battle.
func (b *Battle) Clone() *Battle {
	c := *b
	c.AttackerStart = b.AttackerStart.Clone()
	c.DefenderStart = b.DefenderStart.Clone()
	c.AttackerReady = maps.Clone(b.AttackerReady)
	c.DefenderReady = maps.Clone(b.DefenderReady)
	if b.EndTime != nil {
		end := *b.EndTime
		c.EndTime = &end
	}
	if b.AttackerEnd != nil {
		end := b.AttackerEnd.Clone()
		c.AttackerEnd = &end
	}
	if b.DefenderEnd != nil {
		end := b.DefenderEnd.Clone()
		c.DefenderEnd = &end
	}
	return &c
}

// Active reports whether the battle has not ended.
func (b *Battle) Active() bool {
	return b.EndTime == nil
}

// Participant returns the user fighting on side s.
func (b *Battle) Participant(s Side) UserID {
	if s == Attacker {
		return b.AttackerID
	}
	return b.DefenderID
}

// StartStats returns side s's snapshot from the start of the battle.
func (b *Battle) StartStats(s Side) ShipStats {
	if s == Attacker {
		return b.AttackerStart
	}
	return b.DefenderStart
}

// Ready returns the side's per-weapon next-ready timestamps.
func (b *Battle) Ready(s Side) map[string]time.Time {
	if s == Attacker {
		if b.AttackerReady == nil {
			b.AttackerReady = map[string]time.Time{}
		}
		return b.AttackerReady
	}
	if b.DefenderReady == nil {
		b.DefenderReady = map[string]time.Time{}
	}
	return b.DefenderReady
}

// AddDamage credits damage dealt by side s.
func (b *Battle) AddDamage(s Side, dmg float64) {
	if s == Attacker {
		b.AttackerDamage += dmg
		return
	}
	b.DefenderDamage += dmg
}

// End records the outcome. It is a no-op on an ended battle.
func (b *Battle) End(now time.Time, winner Side, attackerEnd, defenderEnd ShipStats) {
	if !b.Active() {
		return
	}
	b.EndTime = &now
	b.AttackerEnd = &attackerEnd
	b.DefenderEnd = &defenderEnd
	b.WinnerID = b.Participant(winner)
}

func (b *Battle) Validate() error {
	el := errors.NewErrorList()

	if b.AttackerID <= 0 || b.DefenderID <= 0 {
		el.Add(fmt.Errorf("participants must be set"))
	}
	if b.AttackerID == b.DefenderID {
		el.Add(fmt.Errorf("a ship cannot battle itself"))
	}
	if b.StartTime.IsZero() {
		el.Add(fmt.Errorf("start time must be set"))
	}
	if b.EndTime != nil {
		if b.AttackerEnd == nil || b.DefenderEnd == nil {
			el.Add(fmt.Errorf("ended battle missing end stats"))
		}
		if b.WinnerID != b.AttackerID && b.WinnerID != b.DefenderID {
			el.Add(fmt.Errorf("winner %s is not a participant", b.WinnerID))
		}
	}

	return el.Err()
}
