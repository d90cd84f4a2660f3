package formats

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/lafriks/go-tiled"

	"github.com/Faultbox/tilecollide/pkg/collision"
)

// DefaultCollisionLayers are the tile layers that collide when no list is
// configured: walls plus three furniture layers.
var DefaultCollisionLayers = []string{"wall/wall", "item/furniture1", "item/furniture2", "item/furniture3"}

// MapOptions selects which TMX layers feed collision.
type MapOptions struct {
	// CollisionLayers lists tile layers as "group/layer" paths, or plain
	// layer names for top-level layers. A layer's position in this list is
	// its InstanceID.Layer.
	CollisionLayers []string

	// ZoneGroup names the group whose tile layers become zones. Empty
	// disables zones.
	ZoneGroup string
}

// Zone is a named set of map cells taken from one tile layer.
type Zone struct {
	Name   string
	Width  int
	Height int
	cells  []bool
}

// NewZone creates an empty zone covering a width x height grid.
func NewZone(name string, width, height int) *Zone {
	return &Zone{Name: name, Width: width, Height: height, cells: make([]bool, width*height)}
}

// Set marks a cell as part of the zone. Out-of-range cells are ignored.
func (z *Zone) Set(col, row int) {
	if col < 0 || row < 0 || col >= z.Width || row >= z.Height {
		return
	}
	z.cells[row*z.Width+col] = true
}

// Has reports whether a cell belongs to the zone.
func (z *Zone) Has(col, row int) bool {
	if col < 0 || row < 0 || col >= z.Width || row >= z.Height {
		return false
	}
	return z.cells[row*z.Width+col]
}

// Cells returns the number of cells in the zone.
func (z *Zone) Cells() int {
	n := 0
	for _, c := range z.cells {
		if c {
			n++
		}
	}
	return n
}

// MapData is the collision view of a TMX map.
type MapData struct {
	Width      int // in tiles
	Height     int
	TileWidth  int
	TileHeight int

	Tilesets  []collision.TilesetDescriptor
	Instances []collision.TileInstance

	// Layers holds the collision layer paths found in the map, indexed by
	// InstanceID.Layer. Missing lists configured paths the map lacks.
	Layers  []string
	Missing []string

	Zones []*Zone
}

// LoadMap reads a TMX map and the tilesets it references from fsys.
func LoadMap(fsys fs.FS, name string, opts MapOptions) (*MapData, error) {
	m, err := tiled.LoadFile(name, tiled.WithFileSystem(fsys))
	if err != nil {
		return nil, fmt.Errorf("load TMX %s: %w", name, err)
	}
	return ConvertMap(m, opts)
}

// ConvertMap extracts tilesets, collision instances and zones from a parsed
// map.
func ConvertMap(m *tiled.Map, opts MapOptions) (*MapData, error) {
	layers := opts.CollisionLayers
	if len(layers) == 0 {
		layers = DefaultCollisionLayers
	}

	data := &MapData{
		Width:      m.Width,
		Height:     m.Height,
		TileWidth:  m.TileWidth,
		TileHeight: m.TileHeight,
	}

	for _, ts := range m.Tilesets {
		desc, err := TilesetDescriptor(ts)
		if err != nil {
			return nil, err
		}
		data.Tilesets = append(data.Tilesets, desc)
	}

	for _, p := range layers {
		layer := findLayer(m, p)
		if layer == nil {
			data.Missing = append(data.Missing, p)
			continue
		}
		index := len(data.Layers)
		data.Layers = append(data.Layers, p)

		for i, tile := range layer.Tiles {
			if tile == nil || tile.IsNil() || tile.Tileset == nil {
				continue
			}
			data.Instances = append(data.Instances, collision.TileInstance{
				ID: collision.InstanceID{
					Layer: index,
					Col:   i % m.Width,
					Row:   i / m.Width,
				},
				TileType: collision.TileTypeID(tile.Tileset.FirstGID + tile.ID),
			})
		}
	}

	if opts.ZoneGroup != "" {
		if g := findGroup(m.Groups, strings.Split(opts.ZoneGroup, "/")); g != nil {
			for _, layer := range g.Layers {
				zone := NewZone(layer.Name, m.Width, m.Height)
				for i, tile := range layer.Tiles {
					if tile != nil && !tile.IsNil() {
						zone.Set(i%m.Width, i/m.Width)
					}
				}
				data.Zones = append(data.Zones, zone)
			}
		}
	}

	return data, nil
}

// findLayer resolves a "group/.../layer" path.
func findLayer(m *tiled.Map, p string) *tiled.Layer {
	dir, name := path.Split(p)
	dir = strings.TrimSuffix(dir, "/")

	candidates := m.Layers
	if dir != "" {
		g := findGroup(m.Groups, strings.Split(dir, "/"))
		if g == nil {
			return nil
		}
		candidates = g.Layers
	}
	for _, layer := range candidates {
		if layer.Name == name {
			return layer
		}
	}
	return nil
}

func findGroup(groups []*tiled.Group, names []string) *tiled.Group {
	for _, g := range groups {
		if g.Name != names[0] {
			continue
		}
		if len(names) == 1 {
			return g
		}
		return findGroup(g.Groups, names[1:])
	}
	return nil
}
