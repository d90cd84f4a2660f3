package collision

import (
	"fmt"

	"github.com/Faultbox/tilecollide/pkg/math"
)

// TileTypeID identifies a tile type across all loaded tilesets. Zero means
// "no tile".
type TileTypeID uint32

// NoTile marks an empty map cell.
const NoTile TileTypeID = 0

// InstanceID identifies one placed tile. Several layers can place tiles on
// the same cell, so the layer is part of the identity.
type InstanceID struct {
	Layer int
	Col   int
	Row   int
}

// String formats the id as layer:col,row.
func (id InstanceID) String() string {
	return fmt.Sprintf("%d:%d,%d", id.Layer, id.Col, id.Row)
}

// TileInstance is a map cell referencing a tile type.
type TileInstance struct {
	ID       InstanceID
	TileType TileTypeID
}

// Origin returns the world position of the instance's top-left corner.
func (ti TileInstance) Origin(tileW, tileH float64) math.Vec2 {
	return math.Vec2{X: float64(ti.ID.Col) * tileW, Y: float64(ti.ID.Row) * tileH}
}

// Shape is a tagged rectangle in tile-local coordinates.
type Shape struct {
	Rect math.Rect
	Tag  Tag
}

// ShapeID identifies a shape stored in an Index.
type ShapeID uint32

// Part records where a piece of a world shape came from: the Index-th
// catalog shape of the instance's tile type, placed at Rect.
type Part struct {
	Instance InstanceID
	Index    int
	Rect     math.Rect
}

// WorldShape is a collision rectangle in world coordinates. Merged shapes
// carry one Part per source rectangle. WorldShapes are never mutated once
// built.
type WorldShape struct {
	ID    ShapeID
	Rect  math.Rect
	Tag   Tag
	Parts []Part
}

// String formats the shape for logs and CLI output.
func (s WorldShape) String() string {
	return fmt.Sprintf("#%d %s {x:%g y:%g w:%g h:%g} parts=%d",
		s.ID, s.Tag, s.Rect.X, s.Rect.Y, s.Rect.W, s.Rect.H, len(s.Parts))
}

// shapeLess orders shapes by origin x, then y, then size, tag and id.
func shapeLess(a, b *WorldShape) bool {
	if a.Rect.X != b.Rect.X {
		return a.Rect.X < b.Rect.X
	}
	if a.Rect.Y != b.Rect.Y {
		return a.Rect.Y < b.Rect.Y
	}
	if a.Rect.W != b.Rect.W {
		return a.Rect.W < b.Rect.W
	}
	if a.Rect.H != b.Rect.H {
		return a.Rect.H < b.Rect.H
	}
	if a.Tag != b.Tag {
		return a.Tag < b.Tag
	}
	return a.ID < b.ID
}
