package game

import (
	"fmt"
	"math"
	"time"

	"github.com/pixil98/go-errors"
)

// ObjectKind is the type of a space object.
type ObjectKind string

const (
	KindPlayerShip ObjectKind = "player_ship"
	KindAsteroid   ObjectKind = "asteroid"
	KindShipwreck  ObjectKind = "shipwreck"
	KindEscapePod  ObjectKind = "escape_pod"
)

func (k ObjectKind) Valid() bool {
	switch k {
	case KindPlayerShip, KindAsteroid, KindShipwreck, KindEscapePod:
		return true
	}
	return false
}

// SpaceObject is anything with a position in the world. Angle is in degrees,
// speed in units per game-second.
type SpaceObject struct {
	ID      ObjectID   `json:"id"`
	Kind    ObjectKind `json:"kind"`
	OwnerID UserID     `json:"owner_id,omitempty"`

	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Speed float64 `json:"speed"`
	Angle float64 `json:"angle"`

	LastPositionUpdate time.Time `json:"last_position_update"`
}

func (o *SpaceObject) Validate() error {
	el := errors.NewErrorList()

	if o.ID <= 0 {
		el.Add(fmt.Errorf("id must be positive"))
	}
	if !o.Kind.Valid() {
		el.Add(fmt.Errorf("unknown kind %q", o.Kind))
	}
	if o.Kind == KindPlayerShip && o.OwnerID <= 0 {
		el.Add(fmt.Errorf("player ship must have an owner"))
	}
	for _, v := range []float64{o.X, o.Y, o.Speed, o.Angle} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			el.Add(ErrInvalidPosition)
			break
		}
	}

	return el.Err()
}

// Move advances the object along its heading by elapsed game time and wraps
// it back into the world.
func (o *SpaceObject) Move(elapsed time.Duration, now time.Time, b Bounds) {
	if o.Speed != 0 && elapsed > 0 {
		rad := o.Angle * math.Pi / 180
		dist := o.Speed * elapsed.Seconds()
		o.X += dist * math.Cos(rad)
		o.Y += dist * math.Sin(rad)
	}
	b.Normalize(o)
	o.LastPositionUpdate = now
}

// Bounds is the size of the wrap-around world.
type Bounds struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Normalize wraps the object's position into [0, Width) x [0, Height).
func (b Bounds) Normalize(o *SpaceObject) {
	o.X = Wrap(o.X, b.Width)
	o.Y = Wrap(o.Y, b.Height)
}

// Wrap maps v into [0, size).
func Wrap(v, size float64) float64 {
	if size <= 0 {
		return v
	}
	v = math.Mod(v, size)
	if v < 0 {
		v += size
	}
	// -tiny + size can round up to size itself.
	if v >= size {
		v = 0
	}
	return v
}
