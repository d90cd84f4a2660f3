package sim

import (
	"github.com/yohamta/donburi"

	"github.com/Faultbox/tilecollide/pkg/math"
)

// BodyData is the collision box of an entity in world pixels.
type BodyData struct {
	Rect math.Rect
}

// VelocityData is the entity velocity in pixels per second.
type VelocityData struct {
	V math.Vec2
}

// WalkerData tracks what a wandering entity has run into.
type WalkerData struct {
	Hits  int // contacts with collision shapes
	Edges int // bounces off the map edge
}

var (
	Body     = donburi.NewComponentType[BodyData]()
	Velocity = donburi.NewComponentType[VelocityData]()
	Walker   = donburi.NewComponentType[WalkerData]()
)
