package collision

import (
	"fmt"
	"sort"

	"github.com/Faultbox/tilecollide/pkg/math"
)

// RectDescriptor is one collision rectangle as authored in a tileset, in
// tile-local pixels.
type RectDescriptor struct {
	X, Y, W, H float64
	Tag        Tag
}

// TileDescriptor lists the collision rectangles of one tile. ID is local to
// its tileset.
type TileDescriptor struct {
	ID    uint32
	Rects []RectDescriptor
}

// TilesetDescriptor is the loader's view of one tileset. Tile type ids are
// FirstID + TileDescriptor.ID, matching Tiled's global ids.
type TilesetDescriptor struct {
	Name       string
	FirstID    TileTypeID
	TileWidth  int
	TileHeight int
	TileCount  int
	Tiles      []TileDescriptor
}

// TilesetInfo summarizes a tileset held by a Catalog.
type TilesetInfo struct {
	Name       string
	FirstID    TileTypeID
	LastID     TileTypeID
	TileWidth  int
	TileHeight int
	Tiles      int
	Shapes     int
}

// Catalog maps tile types to their collision shapes. It is immutable after
// BuildCatalog and safe for concurrent reads.
type Catalog struct {
	shapes   map[TileTypeID][]Shape
	tilesets []TilesetInfo
}

// BuildCatalog validates the tileset descriptors and builds a Catalog.
// Every failure wraps ErrMalformedTileset.
func BuildCatalog(tilesets ...TilesetDescriptor) (*Catalog, error) {
	c := &Catalog{
		shapes: make(map[TileTypeID][]Shape),
	}

	for _, ts := range tilesets {
		info, err := c.addTileset(ts)
		if err != nil {
			return nil, err
		}
		c.tilesets = append(c.tilesets, info)
	}

	// Id ranges of different tilesets must not overlap.
	sort.Slice(c.tilesets, func(i, j int) bool {
		return c.tilesets[i].FirstID < c.tilesets[j].FirstID
	})
	for i := 1; i < len(c.tilesets); i++ {
		prev, cur := c.tilesets[i-1], c.tilesets[i]
		if cur.FirstID <= prev.LastID {
			return nil, fmt.Errorf("%w: tileset %q ids [%d,%d] overlap tileset %q ids [%d,%d]",
				ErrMalformedTileset, cur.Name, cur.FirstID, cur.LastID, prev.Name, prev.FirstID, prev.LastID)
		}
	}

	return c, nil
}

func (c *Catalog) addTileset(ts TilesetDescriptor) (TilesetInfo, error) {
	info := TilesetInfo{
		Name:       ts.Name,
		FirstID:    ts.FirstID,
		LastID:     ts.FirstID,
		TileWidth:  ts.TileWidth,
		TileHeight: ts.TileHeight,
	}

	if ts.FirstID == NoTile {
		return info, fmt.Errorf("%w: tileset %q: first id must be at least 1", ErrMalformedTileset, ts.Name)
	}
	if ts.TileWidth <= 0 || ts.TileHeight <= 0 {
		return info, fmt.Errorf("%w: tileset %q: invalid tile size %dx%d",
			ErrMalformedTileset, ts.Name, ts.TileWidth, ts.TileHeight)
	}

	canvas := math.NewRect(0, 0, float64(ts.TileWidth), float64(ts.TileHeight))
	seen := make(map[uint32]bool, len(ts.Tiles))

	for _, tile := range ts.Tiles {
		if seen[tile.ID] {
			return info, fmt.Errorf("%w: tileset %q: duplicate tile id %d", ErrMalformedTileset, ts.Name, tile.ID)
		}
		seen[tile.ID] = true

		if ts.TileCount > 0 && int(tile.ID) >= ts.TileCount {
			return info, fmt.Errorf("%w: tileset %q: tile id %d outside tile count %d",
				ErrMalformedTileset, ts.Name, tile.ID, ts.TileCount)
		}

		id := ts.FirstID + TileTypeID(tile.ID)
		if id > info.LastID {
			info.LastID = id
		}

		if len(tile.Rects) == 0 {
			continue
		}

		shapes := make([]Shape, 0, len(tile.Rects))
		for i, rd := range tile.Rects {
			r := math.NewRect(rd.X, rd.Y, rd.W, rd.H)
			if !r.Valid() {
				return info, fmt.Errorf("%w: tileset %q tile %d rect %d: non-positive size %gx%g",
					ErrMalformedTileset, ts.Name, tile.ID, i, rd.W, rd.H)
			}
			if !r.Within(canvas) {
				return info, fmt.Errorf("%w: tileset %q tile %d rect %d: {x:%g y:%g w:%g h:%g} outside %dx%d tile",
					ErrMalformedTileset, ts.Name, tile.ID, i, rd.X, rd.Y, rd.W, rd.H, ts.TileWidth, ts.TileHeight)
			}
			if rd.Tag >= tagCount {
				return info, fmt.Errorf("%w: tileset %q tile %d rect %d: unknown tag %d",
					ErrMalformedTileset, ts.Name, tile.ID, i, rd.Tag)
			}
			shapes = append(shapes, Shape{Rect: r, Tag: rd.Tag})
		}

		c.shapes[id] = shapes
		info.Tiles++
		info.Shapes += len(shapes)
	}

	if ts.TileCount > 0 {
		info.LastID = ts.FirstID + TileTypeID(ts.TileCount) - 1
	}

	return info, nil
}

// Lookup returns the collision shapes of a tile type in authoring order.
// Tiles without collision return an empty slice. The slice is shared and
// must not be modified.
func (c *Catalog) Lookup(id TileTypeID) []Shape {
	if c == nil {
		return nil
	}
	return c.shapes[id]
}

// HasCollision reports whether the tile type carries any shape.
func (c *Catalog) HasCollision(id TileTypeID) bool {
	return len(c.Lookup(id)) > 0
}

// Tilesets returns the tilesets held by the catalog, ordered by first id.
func (c *Catalog) Tilesets() []TilesetInfo {
	out := make([]TilesetInfo, len(c.tilesets))
	copy(out, c.tilesets)
	return out
}

// Len returns the number of tile types with collision.
func (c *Catalog) Len() int {
	return len(c.shapes)
}
