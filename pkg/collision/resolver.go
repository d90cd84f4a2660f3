package collision

import (
	"sort"

	"github.com/Faultbox/tilecollide/pkg/math"
)

// Resolver turns tile instances into world shapes using a catalog and the
// map's tile grid size.
type Resolver struct {
	Catalog    *Catalog
	TileWidth  float64
	TileHeight float64
}

// NewResolver creates a resolver for a map grid of tileW x tileH pixels.
func NewResolver(catalog *Catalog, tileW, tileH int) *Resolver {
	return &Resolver{
		Catalog:    catalog,
		TileWidth:  float64(tileW),
		TileHeight: float64(tileH),
	}
}

// Translate places every catalog shape of every instance in world space.
// The result is not merged; each shape carries a single Part. Instances are
// processed in row-major order so the output is stable for identical input.
func (r *Resolver) Translate(instances []TileInstance) []WorldShape {
	ordered := make([]TileInstance, len(instances))
	copy(ordered, instances)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].ID, ordered[j].ID
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		if a.Col != b.Col {
			return a.Col < b.Col
		}
		return a.Layer < b.Layer
	})

	var out []WorldShape
	for _, inst := range ordered {
		out = append(out, r.translateOne(inst)...)
	}
	return out
}

func (r *Resolver) translateOne(inst TileInstance) []WorldShape {
	shapes := r.Catalog.Lookup(inst.TileType)
	if len(shapes) == 0 {
		return nil
	}
	origin := inst.Origin(r.TileWidth, r.TileHeight)
	out := make([]WorldShape, 0, len(shapes))
	for i, s := range shapes {
		rect := s.Rect.Translate(origin)
		out = append(out, WorldShape{
			Rect:  rect,
			Tag:   s.Tag,
			Parts: []Part{{Instance: inst.ID, Index: i, Rect: rect}},
		})
	}
	return out
}

// Resolve translates and merges the instances.
func (r *Resolver) Resolve(instances []TileInstance) []WorldShape {
	return Merge(r.Translate(instances))
}

// Local converts a part back to the tile-local rectangle it came from.
func (r *Resolver) Local(p Part) math.Rect {
	origin := math.Vec2{X: float64(p.Instance.Col) * r.TileWidth, Y: float64(p.Instance.Row) * r.TileHeight}
	return p.Rect.Translate(origin.Neg())
}
