package combat

import (
	"context"
	"fmt"

	"github.com/pixil98/go-starlane/internal/game"
)

// Notifier delivers feed messages to connected clients as they are created.
type Notifier interface {
	Notify(ctx context.Context, msg *game.Message) error
}

// Recorder receives battle metrics.
type Recorder interface {
	BattleStarted()
	BattleEnded()
	ShotsFired(shots, hits int)
}

type nopRecorder struct{}

func (nopRecorder) BattleStarted()      {}
func (nopRecorder) BattleEnded()        {}
func (nopRecorder) ShotsFired(_, _ int) {}

// volley is one weapon firing once during a tick.
type volley struct {
	side      game.Side
	weapon    string
	shots     int
	hits      int
	breakdown Breakdown
}

func (v volley) shooterText() string {
	if v.hits == 0 {
		return fmt.Sprintf("Your %s misses with all %d shots.", v.weapon, v.shots)
	}
	return fmt.Sprintf("Your %s %s the enemy: %d of %d shots hit for %.0f damage (shield %.0f, armor %.0f, hull %.0f).",
		v.weapon, DamageVerb(v.breakdown.Total()), v.hits, v.shots, v.breakdown.Total(),
		v.breakdown.Shield, v.breakdown.Armor, v.breakdown.Hull)
}

func (v volley) targetText() string {
	if v.hits == 0 {
		return fmt.Sprintf("The enemy %s misses you with all %d shots.", v.weapon, v.shots)
	}
	return fmt.Sprintf("The enemy %s %s you: %d of %d shots hit for %.0f damage (shield %.0f, armor %.0f, hull %.0f).",
		v.weapon, DamageVerb(v.breakdown.Total()), v.hits, v.shots, v.breakdown.Total(),
		v.breakdown.Shield, v.breakdown.Armor, v.breakdown.Hull)
}

func victoryText(b *game.Battle) string {
	return fmt.Sprintf("Victory! You won the battle after dealing %.0f damage.", damageBy(b, b.WinnerID))
}

func defeatText(b *game.Battle) string {
	return fmt.Sprintf("Defeat. Your ship was disabled after taking %.0f damage and towed to a safe location.", damageBy(b, b.WinnerID))
}

func damageBy(b *game.Battle, id game.UserID) float64 {
	if id == b.AttackerID {
		return b.AttackerDamage
	}
	return b.DefenderDamage
}
