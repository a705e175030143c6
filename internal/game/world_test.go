package game

import (
	"math"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

func TestWrap(t *testing.T) {
	tests := map[string]struct {
		v    float64
		size float64
		exp  float64
	}{
		"inside":        {v: 250, size: 500, exp: 250},
		"negative":      {v: -100, size: 500, exp: 400},
		"past the edge": {v: 600, size: 500, exp: 100},
		"exactly size":  {v: 500, size: 500, exp: 0},
		"many widths":   {v: -1600, size: 500, exp: 400},
		"zero size":     {v: 42, size: 0, exp: 42},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, "wrapped", Wrap(tt.v, tt.size), tt.exp)
		})
	}
}

func TestSpaceObject_Move(t *testing.T) {
	b := Bounds{Width: 500, Height: 500}
	o := &SpaceObject{ID: 1, Kind: KindAsteroid, X: 490, Y: 10, Speed: 5, Angle: 0}

	o.Move(4*time.Second, t0, b)

	testutil.AssertEqual(t, "x", o.X, 10.0)
	testutil.AssertEqual(t, "y", math.Round(o.Y), 10.0)
	testutil.AssertEqual(t, "updated", o.LastPositionUpdate, t0)
}

func TestSpaceObject_Validate(t *testing.T) {
	tests := map[string]struct {
		obj    SpaceObject
		expErr string
	}{
		"valid ship": {
			obj: SpaceObject{ID: 1, Kind: KindPlayerShip, OwnerID: 7},
		},
		"ship without owner": {
			obj:    SpaceObject{ID: 1, Kind: KindPlayerShip},
			expErr: "must have an owner",
		},
		"unknown kind": {
			obj:    SpaceObject{ID: 1, Kind: "moon"},
			expErr: "unknown kind",
		},
		"nan position": {
			obj:    SpaceObject{ID: 1, Kind: KindAsteroid, X: math.NaN()},
			expErr: "not a finite number",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.obj.Validate()
			if tt.expErr != "" {
				testutil.AssertErrorContains(t, err, tt.expErr)
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
