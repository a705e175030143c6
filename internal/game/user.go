package game

import (
	"fmt"
	"math"
	"time"

	"github.com/pixil98/go-errors"

	"github.com/pixil98/go-starlane/internal/tuning"
)

// Pool is a regenerating defense layer.
type Pool struct {
	Current float64 `json:"current"`
	Max     float64 `json:"max"`
}

// Add raises the pool by amount, capped at Max.
func (p *Pool) Add(amount float64) {
	p.Current = math.Min(p.Max, p.Current+amount)
	p.clamp()
}

// Absorb takes up to amount out of the pool and returns what it absorbed.
func (p *Pool) Absorb(amount float64) float64 {
	if amount <= 0 || p.Current <= 0 {
		return 0
	}
	absorbed := math.Min(p.Current, amount)
	p.Current -= absorbed
	return absorbed
}

func (p *Pool) clamp() {
	if p.Current > p.Max {
		p.Current = p.Max
	}
	if p.Current < 0 {
		p.Current = 0
	}
}

// Research is the tech currently being researched. Remaining is in
// game-seconds.
type Research struct {
	Key       string  `json:"key"`
	Remaining float64 `json:"remaining"`
}

// BuildItem is a queued build. Duration is in game-seconds.
type BuildItem struct {
	Key      string    `json:"key"`
	Cost     float64   `json:"cost"`
	Duration float64   `json:"duration"`
	Started  time.Time `json:"started"`
}

// User is a commander's live record.
type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`

	Iron       float64 `json:"iron"`
	Experience int64   `json:"experience"`
	Level      int     `json:"level"`

	TechCounts     map[string]int `json:"tech_counts"`
	ResearchLevels map[string]int `json:"research_levels"`
	Research       *Research      `json:"research,omitempty"`

	Hull             Pool      `json:"hull"`
	Armor            Pool      `json:"armor"`
	Shield           Pool      `json:"shield"`
	DefenseLastRegen time.Time `json:"defense_last_regen"`

	BuildQueue    []BuildItem `json:"build_queue"`
	BuildProgress float64     `json:"build_progress"`

	InBattle        bool      `json:"in_battle"`
	CurrentBattleID *BattleID `json:"current_battle_id,omitempty"`

	TeleportCharges   int       `json:"teleport_charges"`
	TeleportProgress  float64   `json:"teleport_progress"`
	TeleportLastRegen time.Time `json:"teleport_last_regen"`

	LastUpdated time.Time `json:"last_updated"`
}

// NewUser returns a level 1 commander with full defenses as of now.
func NewUser(id UserID, username string, tn *tuning.Tuning, now time.Time) *User {
	u := &User{
		ID:                id,
		Username:          username,
		Level:             1,
		TechCounts:        map[string]int{tn.Defense.Hull.Tech: 1},
		ResearchLevels:    map[string]int{},
		TeleportCharges:   tn.TeleportMaxCharges,
		DefenseLastRegen:  now,
		TeleportLastRegen: now,
		LastUpdated:       now,
	}
	u.RecomputeMaxima(tn)
	u.Hull.Current = u.Hull.Max
	u.Armor.Current = u.Armor.Max
	u.Shield.Current = u.Shield.Max
	return u
}

// RecomputeMaxima derives the pool maxima from tech counts and clamps the
// current values.
func (u *User) RecomputeMaxima(tn *tuning.Tuning) {
	u.Hull.Max = tn.Defense.Hull.Max(u.TechCounts)
	u.Armor.Max = tn.Defense.Armor.Max(u.TechCounts)
	u.Shield.Max = tn.Defense.Shield.Max(u.TechCounts)
	u.Hull.clamp()
	u.Armor.clamp()
	u.Shield.clamp()
}

// EnqueueBuild appends a build to the queue, debiting its cost.
func (u *User) EnqueueBuild(item BuildItem, now time.Time) error {
	if item.Cost > u.Iron {
		return fmt.Errorf("%w: need %.0f iron, have %.0f", ErrInsufficientIron, item.Cost, u.Iron)
	}
	u.Iron -= item.Cost
	if len(u.BuildQueue) == 0 {
		item.Started = now
	}
	u.BuildQueue = append(u.BuildQueue, item)
	return nil
}

// UseTeleportCharge spends one teleport charge.
func (u *User) UseTeleportCharge() error {
	if u.TeleportCharges <= 0 {
		return ErrInsufficientCharges
	}
	u.TeleportCharges--
	return nil
}

// Progress reports what a call to Advance changed.
type Progress struct {
	Iron              float64
	ResearchCompleted string
	BuildsCompleted   []string
	ExperienceGained  int64
	LevelsGained      []int
	ChargesGained     int
}

// Advance applies every elapsed-time effect up to now. scale converts a real
// interval into game time so the current and past multipliers apply to their
// own share of it.
func (u *User) Advance(now time.Time, tn *tuning.Tuning, scale func(from, to time.Time) time.Duration) Progress {
	var p Progress

	if now.After(u.LastUpdated) {
		game := scale(u.LastUpdated, now).Seconds()

		p.Iron = tn.IronPerSecond * game
		u.Iron += p.Iron

		p.ResearchCompleted = u.advanceResearch(game)
		p.BuildsCompleted = u.advanceBuilds(game, now, &p)
		u.LastUpdated = now
	}

	if now.After(u.DefenseLastRegen) {
		// Defenses do not regenerate mid-battle; the paused time is not
		// credited afterwards.
		if !u.InBattle {
			amount := tn.DefenseRegenPerSecond * scale(u.DefenseLastRegen, now).Seconds()
			u.Shield.Add(amount)
			u.Armor.Add(amount)
			u.Hull.Add(amount)
		}
		u.DefenseLastRegen = now
	}

	if now.After(u.TeleportLastRegen) {
		p.ChargesGained = u.advanceTeleport(scale(u.TeleportLastRegen, now).Seconds(), tn)
		u.TeleportLastRegen = now
	}

	if p.ExperienceGained > 0 {
		level := LevelForExp(u.Experience)
		for l := u.Level + 1; l <= level; l++ {
			p.LevelsGained = append(p.LevelsGained, l)
		}
		if level > u.Level {
			u.Level = level
		}
	}

	if len(p.BuildsCompleted) > 0 {
		u.RecomputeMaxima(tn)
	}

	return p
}

func (u *User) advanceResearch(game float64) string {
	if u.Research == nil {
		return ""
	}
	u.Research.Remaining -= game
	if u.Research.Remaining > 0 {
		return ""
	}
	key := u.Research.Key
	if u.ResearchLevels == nil {
		u.ResearchLevels = map[string]int{}
	}
	u.ResearchLevels[key]++
	u.Research = nil
	return key
}

func (u *User) advanceBuilds(game float64, now time.Time, p *Progress) []string {
	if len(u.BuildQueue) == 0 {
		u.BuildProgress = 0
		return nil
	}

	var done []string
	u.BuildProgress += game
	for len(u.BuildQueue) > 0 && u.BuildProgress >= u.BuildQueue[0].Duration {
		item := u.BuildQueue[0]
		u.BuildProgress -= item.Duration
		u.BuildQueue = u.BuildQueue[1:]

		if u.TechCounts == nil {
			u.TechCounts = map[string]int{}
		}
		u.TechCounts[item.Key]++
		xp := BuildExp(item.Cost)
		u.Experience += xp
		p.ExperienceGained += xp
		done = append(done, item.Key)

		if len(u.BuildQueue) > 0 {
			u.BuildQueue[0].Started = now
		}
	}
	if len(u.BuildQueue) == 0 {
		u.BuildProgress = 0
	}
	return done
}

func (u *User) advanceTeleport(game float64, tn *tuning.Tuning) int {
	if u.TeleportCharges >= tn.TeleportMaxCharges {
		u.TeleportProgress = 0
		return 0
	}

	gained := 0
	u.TeleportProgress += game
	for u.TeleportProgress >= tn.TeleportRechargeSeconds && u.TeleportCharges < tn.TeleportMaxCharges {
		u.TeleportProgress -= tn.TeleportRechargeSeconds
		u.TeleportCharges++
		gained++
	}
	if u.TeleportCharges >= tn.TeleportMaxCharges {
		u.TeleportProgress = 0
	}
	return gained
}

func (u *User) Validate() error {
	el := errors.NewErrorList()

	if u.ID <= 0 {
		el.Add(fmt.Errorf("id must be positive"))
	}
	if u.Level < 1 {
		el.Add(fmt.Errorf("level must be at least 1"))
	}
	if u.Experience < 0 {
		el.Add(fmt.Errorf("experience must not be negative"))
	}
	if u.TeleportCharges < 0 {
		el.Add(fmt.Errorf("teleport charges must not be negative"))
	}
	for name, p := range map[string]Pool{"hull": u.Hull, "armor": u.Armor, "shield": u.Shield} {
		if p.Current < 0 || p.Current > p.Max {
			el.Add(fmt.Errorf("%s %.1f outside [0, %.1f]", name, p.Current, p.Max))
		}
	}
	if u.InBattle && u.CurrentBattleID == nil {
		el.Add(fmt.Errorf("in battle without a battle id"))
	}

	return el.Err()
}
