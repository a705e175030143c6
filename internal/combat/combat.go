package combat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	goerrors "github.com/pixil98/go-errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pixil98/go-starlane/internal/cache"
	"github.com/pixil98/go-starlane/internal/game"
	"github.com/pixil98/go-starlane/internal/locks"
	"github.com/pixil98/go-starlane/internal/telemetry"
)

var tracer = telemetry.Tracer("github.com/pixil98/go-starlane/internal/combat")

var sides = []game.Side{game.Attacker, game.Defender}

// Engine resolves active battles one tick at a time.
type Engine struct {
	caches   *cache.Manager
	notifier Notifier
	recorder Recorder
	roll     func() float64
	place    func(game.Bounds) (x, y float64)
	now      func() time.Time
}

// NewEngine returns an Engine resolving battles held by caches.
func NewEngine(caches *cache.Manager, opts ...EngineOpt) *Engine {
	e := &Engine{
		caches:   caches,
		recorder: nopRecorder{},
		roll:     rand.Float64,
		place:    randomPosition,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func randomPosition(b game.Bounds) (float64, float64) {
	return rand.Float64() * b.Width, rand.Float64() * b.Height
}

// StartBattle engages two commanders. Both are brought up to date first so
// the battle starts from their current defenses. The returned battle is a
// copy taken under the battle lock.
func (e *Engine) StartBattle(ctx context.Context, lc *locks.Context, attackerID, defenderID game.UserID) (*game.Battle, error) {
	if attackerID == defenderID {
		return nil, ErrSelfBattle
	}

	var battle, started *game.Battle
	err := e.caches.WithBattles(ctx, lc, locks.Exclusive, func(bc *locks.Context, c *cache.Caches) error {
		err := e.caches.WithUsers(ctx, bc, locks.Exclusive, func(uc *locks.Context, c *cache.Caches) error {
			attacker, _, err := c.Users.Refresh(ctx, uc, attackerID)
			if err != nil {
				return err
			}
			defender, _, err := c.Users.Refresh(ctx, uc, defenderID)
			if err != nil {
				return err
			}
			for _, u := range []*game.User{attacker, defender} {
				if u.InBattle {
					return fmt.Errorf("user %s: %w", u.ID, ErrAlreadyInBattle)
				}
			}

			tn := e.caches.Tuning()
			battle = game.NewBattle(attackerID, defenderID, attacker.ShipStats(tn), defender.ShipStats(tn), e.now())
			for _, u := range []*game.User{attacker, defender} {
				u.InBattle = true
				u.CurrentBattleID = &battle.ID
			}
			return nil
		})
		if err != nil {
			return err
		}
		if err := c.Battles.Create(bc, battle); err != nil {
			return err
		}
		started = battle.Clone()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("starting battle: %w", err)
	}

	e.recorder.BattleStarted()
	slog.InfoContext(ctx, "battle started", "battle", started.ID, "attacker", attackerID, "defender", defenderID)
	return started, nil
}

// Tick resolves every active battle once. A failing battle does not stop the
// others.
func (e *Engine) Tick(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "combat.tick")
	defer span.End()

	var ids []game.BattleID
	err := e.caches.WithBattles(ctx, locks.NewContext(), locks.Shared, func(bc *locks.Context, c *cache.Caches) error {
		var err error
		ids, err = c.Battles.Active(ctx, bc)
		return err
	})
	if err != nil {
		return fmt.Errorf("listing active battles: %w", err)
	}
	span.SetAttributes(attribute.Int("combat.active", len(ids)))

	el := goerrors.NewErrorList()
	for _, id := range ids {
		if _, err := e.Resolve(ctx, locks.NewContext(), id); err != nil {
			el.Add(fmt.Errorf("resolving battle %s: %w", id, err))
		}
	}
	return el.Err()
}

// Outcome is what one call to Resolve did.
type Outcome struct {
	Volleys int
	Ended   bool
	Winner  game.UserID
	Loser   game.UserID
}

// Resolve fires every ready weapon of one battle and ends it if a hull has
// been destroyed. Resolving an ended battle does nothing.
func (e *Engine) Resolve(ctx context.Context, lc *locks.Context, id game.BattleID) (Outcome, error) {
	var out Outcome
	var feed []game.Message

	err := e.caches.WithBattles(ctx, lc, locks.Exclusive, func(bc *locks.Context, c *cache.Caches) error {
		b, err := c.Battles.GetForUpdate(ctx, bc, id)
		if errors.Is(err, cache.ErrBattleEnded) {
			return nil
		}
		if err != nil {
			return err
		}

		now := e.now()
		mult := e.caches.Multiplier().Multiplier()

		var volleys []volley
		for _, side := range sides {
			stats := b.StartStats(side)
			ready := b.Ready(side)
			for _, key := range stats.WeaponKeys() {
				if ready[key].After(now) {
					continue
				}

				v, err := e.fire(ctx, bc, b, side, key, stats.Weapons[key])
				if err != nil {
					return err
				}
				b.AddDamage(side, v.breakdown.Total())
				ready[key] = NextReady(now, e.cooldown(key, stats.Weapons[key]), mult)
				volleys = append(volleys, v)
			}
		}
		out.Volleys = len(volleys)

		return e.caches.WithUsers(ctx, bc, locks.Exclusive, func(uc *locks.Context, c *cache.Caches) error {
			attacker, err := c.Users.Get(ctx, uc, b.AttackerID)
			if err != nil {
				return err
			}
			defender, err := c.Users.Get(ctx, uc, b.DefenderID)
			if err != nil {
				return err
			}

			// A mutual kill goes against the defender.
			if defender.Hull.Current <= 0 || attacker.Hull.Current <= 0 {
				winner := game.Attacker
				if defender.Hull.Current > 0 {
					winner = game.Defender
				}
				if _, err := c.Users.GetForUpdate(ctx, uc, b.AttackerID); err != nil {
					return err
				}
				if _, err := c.Users.GetForUpdate(ctx, uc, b.DefenderID); err != nil {
					return err
				}
				e.end(b, now, winner, attacker, defender)

				out.Ended = true
				out.Winner = b.WinnerID
				out.Loser = b.AttackerID
				if b.WinnerID == b.AttackerID {
					out.Loser = b.DefenderID
				}
			}

			return e.caches.WithMessages(ctx, uc, locks.Exclusive, func(mc *locks.Context, c *cache.Caches) error {
				var err error
				feed, err = e.record(ctx, mc, c.Messages, b, volleys)
				return err
			})
		})
	})
	if err != nil {
		return out, err
	}

	if out.Ended {
		if err := e.rescue(ctx, lc, out.Loser, out.Winner); err != nil {
			return out, fmt.Errorf("rescuing loser %s: %w", out.Loser, err)
		}
		e.recorder.BattleEnded()
		slog.InfoContext(ctx, "battle ended", "battle", id, "winner", out.Winner, "loser", out.Loser)
	}

	e.publish(ctx, feed)
	return out, nil
}

// fire resolves one weapon. A miss is a volley with no hits.
func (e *Engine) fire(ctx context.Context, bc *locks.Context, b *game.Battle, side game.Side, key string, w game.WeaponStats) (volley, error) {
	v := volley{side: side, weapon: key, shots: w.Count}
	v.hits = RollHits(w.Count, w.Accuracy, e.roll)
	e.recorder.ShotsFired(v.shots, v.hits)

	raw := float64(v.hits) * w.Damage
	if raw <= 0 {
		return v, nil
	}

	err := e.caches.WithUsers(ctx, bc, locks.Exclusive, func(uc *locks.Context, c *cache.Caches) error {
		target, err := c.Users.GetForUpdate(ctx, uc, b.Participant(side.Opponent()))
		if err != nil {
			return err
		}
		v.breakdown = ApplyDamage(target, raw)
		return nil
	})
	return v, err
}

// cooldown is the weapon's base cooldown in game-seconds. A snapshot without
// one uses the weapon's tuning entry.
func (e *Engine) cooldown(key string, w game.WeaponStats) float64 {
	if w.Cooldown > 0 {
		return w.Cooldown
	}
	return e.caches.Tuning().Weapons[key].Cooldown
}

func (e *Engine) end(b *game.Battle, now time.Time, winner game.Side, attacker, defender *game.User) {
	attEnd := endStats(b.AttackerStart, attacker)
	defEnd := endStats(b.DefenderStart, defender)
	b.End(now, winner, attEnd, defEnd)

	for _, u := range []*game.User{attacker, defender} {
		u.InBattle = false
		u.CurrentBattleID = nil
	}
}

func endStats(start game.ShipStats, u *game.User) game.ShipStats {
	return game.ShipStats{
		Hull:    u.Hull.Current,
		Armor:   u.Armor.Current,
		Shield:  u.Shield.Current,
		Weapons: start.Weapons,
	}
}

// record writes the tick's events to both feeds, and the result once the
// battle is over. It returns copies of the new messages for publishing after
// the locks are released.
func (e *Engine) record(ctx context.Context, mc *locks.Context, mcache *cache.MessageCache, b *game.Battle, volleys []volley) ([]game.Message, error) {
	var feed []game.Message
	notify := func(to game.UserID, kind game.MessageKind, text string) error {
		msg, err := mcache.Notify(mc, to, kind, text)
		if err != nil {
			return err
		}
		feed = append(feed, *msg)
		return nil
	}

	for _, v := range volleys {
		if err := notify(b.Participant(v.side), game.MessageBattleEvent, v.shooterText()); err != nil {
			return nil, err
		}
		if err := notify(b.Participant(v.side.Opponent()), game.MessageBattleEvent, v.targetText()); err != nil {
			return nil, err
		}
	}

	if !b.Active() {
		loser := b.AttackerID
		if b.WinnerID == b.AttackerID {
			loser = b.DefenderID
		}
		if err := notify(b.WinnerID, game.MessageBattleResult, victoryText(b)); err != nil {
			return nil, err
		}
		if err := notify(loser, game.MessageBattleResult, defeatText(b)); err != nil {
			return nil, err
		}
	}

	for _, id := range []game.UserID{b.AttackerID, b.DefenderID} {
		summary, err := mcache.Summarize(ctx, mc, id)
		if err != nil {
			return nil, err
		}
		if summary != nil {
			feed = append(feed, *summary)
		}
	}

	return feed, nil
}

// rescue moves the loser's ship somewhere safe and patches its hull. A winner
// left without hull by a mutual kill is patched in place.
func (e *Engine) rescue(ctx context.Context, lc *locks.Context, loser, winner game.UserID) error {
	return e.caches.WithWorldWrite(ctx, lc, func(wc *locks.Context, c *cache.Caches) error {
		now := e.now()

		ship, err := c.World.ShipOf(wc, loser)
		switch {
		case errors.Is(err, cache.ErrEntityNotFound):
			slog.WarnContext(ctx, "defeated user has no ship in the world", "user", loser)
		case err != nil:
			return err
		default:
			x, y := e.place(c.World.Bounds())
			if err := c.World.Teleport(ctx, wc, ship.ID, x, y, now); err != nil {
				return err
			}
		}

		return e.caches.WithUsers(ctx, wc, locks.Exclusive, func(uc *locks.Context, c *cache.Caches) error {
			fraction := e.caches.Tuning().SafeHullFraction

			u, err := c.Users.GetForUpdate(ctx, uc, loser)
			if err != nil {
				return err
			}
			u.Hull.Current = math.Max(u.Hull.Current, SafeHull(u.Hull.Max, fraction))

			w, err := c.Users.Get(ctx, uc, winner)
			if err != nil {
				return err
			}
			if w.Hull.Current > 0 {
				return nil
			}
			if w, err = c.Users.GetForUpdate(ctx, uc, winner); err != nil {
				return err
			}
			w.Hull.Current = SafeHull(w.Hull.Max, fraction)
			return nil
		})
	})
}

// SafeHull is the hull a defeated ship is restored to.
func SafeHull(maxHull, fraction float64) float64 {
	return math.Min(maxHull, math.Max(1, maxHull*fraction))
}

func (e *Engine) publish(ctx context.Context, feed []game.Message) {
	if e.notifier == nil {
		return
	}
	for i := range feed {
		if err := e.notifier.Notify(ctx, &feed[i]); err != nil {
			slog.WarnContext(ctx, "publishing notification", "recipient", feed[i].RecipientID, "error", err)
		}
	}
}
