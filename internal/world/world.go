// Package world is the runtime collision view of a loaded map: queries,
// bounds rules, zones, tile change notifications and hot reload.
package world

import (
	"errors"
	"fmt"
	gomath "math"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Faultbox/tilecollide/internal/config"
	"github.com/Faultbox/tilecollide/internal/logger"
	"github.com/Faultbox/tilecollide/pkg/collision"
	"github.com/Faultbox/tilecollide/pkg/formats"
	"github.com/Faultbox/tilecollide/pkg/math"
)

// Options controls how a map is turned into a World.
type Options struct {
	// Tile size used when the map does not carry one (GAT grids).
	TileWidth  int
	TileHeight int

	// BucketTiles is the index bucket edge in tiles; 0 picks one from the
	// shape density so buckets hold about TargetPerBucket shapes.
	BucketTiles     int
	TargetPerBucket int

	OutOfBoundsBlocked bool

	CollisionLayers []string
	ZoneGroup       string
}

// OptionsFromConfig extracts world options from the service config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TileWidth:          cfg.Collision.TileWidth,
		TileHeight:         cfg.Collision.TileHeight,
		BucketTiles:        cfg.Collision.BucketTiles,
		TargetPerBucket:    cfg.Collision.TargetPerBucket,
		OutOfBoundsBlocked: cfg.Collision.OutOfBoundsBlocked,
		CollisionLayers:    cfg.Assets.CollisionLayers,
		ZoneGroup:          cfg.Assets.ZoneGroup,
	}
}

// World is a loaded map. Queries are safe for any number of concurrent
// callers; tile changes are serialized by the underlying collision map.
type World struct {
	Name   string
	Width  int // in tiles
	Height int

	tileW, tileH float64
	catalog      *collision.Catalog
	coll         *collision.Map
	layers       []string
	zones        []*zone
	oobBlocked   bool

	log *zap.Logger
}

type zone struct {
	*formats.Zone
	active atomic.Bool
}

// New builds a World from converted map data.
func New(name string, data *formats.MapData, opts Options) (*World, error) {
	tileW, tileH := data.TileWidth, data.TileHeight
	if tileW <= 0 || tileH <= 0 {
		tileW, tileH = opts.TileWidth, opts.TileHeight
	}
	if tileW <= 0 || tileH <= 0 {
		return nil, fmt.Errorf("map %s: tile size %dx%d", name, tileW, tileH)
	}

	catalog, err := collision.BuildCatalog(data.Tilesets...)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", name, err)
	}
	resolver := collision.NewResolver(catalog, tileW, tileH)

	coll, bucketTiles, err := collision.NewMapAuto(resolver, data.Instances, opts.BucketTiles, opts.TargetPerBucket)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", name, err)
	}

	w := &World{
		Name:       name,
		Width:      data.Width,
		Height:     data.Height,
		tileW:      float64(tileW),
		tileH:      float64(tileH),
		catalog:    catalog,
		coll:       coll,
		layers:     data.Layers,
		oobBlocked: opts.OutOfBoundsBlocked,
		log:        logger.Named("world").With(zap.String("map", name)),
	}
	for _, z := range data.Zones {
		w.zones = append(w.zones, &zone{Zone: z})
	}

	st := coll.Index().Stats()
	w.log.Info("map loaded",
		zap.Int("width", data.Width),
		zap.Int("height", data.Height),
		zap.Int("tile_types", catalog.Len()),
		zap.Int("instances", coll.Instances()),
		zap.Int("raw_shapes", st.Parts),
		zap.Int("merged_shapes", st.Shapes),
		zap.Int("bucket_tiles", bucketTiles),
		zap.Int("buckets", st.Buckets),
		zap.Int("max_per_bucket", st.MaxPerBucket),
		zap.Float64("avg_per_bucket", st.AvgPerBucket),
		zap.Int("zones", len(w.zones)),
	)
	for _, missing := range data.Missing {
		w.log.Warn("collision layer not found", zap.String("layer", missing))
	}

	return w, nil
}

// FromGAT builds a World from a GAT walkability grid.
func FromGAT(name string, gat *formats.GAT, opts Options) (*World, error) {
	data := &formats.MapData{
		Width:      int(gat.Width),
		Height:     int(gat.Height),
		TileWidth:  opts.TileWidth,
		TileHeight: opts.TileHeight,
		Tilesets:   []collision.TilesetDescriptor{formats.GATTileset(opts.TileWidth, opts.TileHeight)},
		Instances:  gat.Instances(),
		Layers:     []string{"gat"},
	}
	return New(name, data, opts)
}

// Collision returns the underlying collision map.
func (w *World) Collision() *collision.Map {
	return w.coll
}

// Catalog returns the tile collision catalog.
func (w *World) Catalog() *collision.Catalog {
	return w.catalog
}

// Layers returns the collision layer paths, indexed by InstanceID.Layer.
func (w *World) Layers() []string {
	return w.layers
}

// TileSize returns the tile dimensions in pixels.
func (w *World) TileSize() (float64, float64) {
	return w.tileW, w.tileH
}

// Bounds returns the map rectangle in world coordinates.
func (w *World) Bounds() math.Rect {
	return math.NewRect(0, 0, float64(w.Width)*w.tileW, float64(w.Height)*w.tileH)
}

// CellAt returns the tile cell containing p.
func (w *World) CellAt(p math.Vec2) (col, row int) {
	return int(gomath.Floor(p.X / w.tileW)), int(gomath.Floor(p.Y / w.tileH))
}

// CellRect returns the world rectangle of a tile cell.
func (w *World) CellRect(col, row int) math.Rect {
	return math.NewRect(float64(col)*w.tileW, float64(row)*w.tileH, w.tileW, w.tileH)
}

// CellCenter returns the midpoint of a tile cell.
func (w *World) CellCenter(col, row int) math.Vec2 {
	return w.CellRect(col, row).Center()
}

func (w *World) inCells(col, row int) bool {
	return col >= 0 && row >= 0 && col < w.Width && row < w.Height
}

// PointBlocked reports whether p lies inside a shape with a tag in mask.
func (w *World) PointBlocked(p math.Vec2, mask collision.TagMask) bool {
	return w.coll.PointBlocked(p, mask)
}

// Overlaps returns the shapes with a tag in mask overlapping q.
func (w *World) Overlaps(q math.Rect, mask collision.TagMask) collision.Result {
	return w.coll.Overlaps(q, mask)
}

// Sweep moves r by displacement and reports the first contact.
func (w *World) Sweep(r math.Rect, displacement math.Vec2, mask collision.TagMask) (collision.Result, bool) {
	return w.coll.Sweep(r, displacement, mask)
}

// InsideMap reports whether p lies on the map.
func (w *World) InsideMap(p math.Vec2) bool {
	return w.Bounds().ContainsPoint(p)
}

// IsBorder reports whether p lies in the outermost ring of tiles.
func (w *World) IsBorder(p math.Vec2) bool {
	if !w.InsideMap(p) {
		return false
	}
	col, row := w.CellAt(p)
	return col == 0 || row == 0 || col == w.Width-1 || row == w.Height-1
}

// IsWall reports whether p blocks movement. Points off the map block when
// the world was built with OutOfBoundsBlocked.
func (w *World) IsWall(p math.Vec2) bool {
	if !w.InsideMap(p) {
		return w.oobBlocked
	}
	return w.coll.PointBlocked(p, collision.MaskAll)
}

// CircleBlocked reports whether a circle overlaps a shape with a tag in mask
// with positive area.
func (w *World) CircleBlocked(center math.Vec2, radius float64, mask collision.TagMask) bool {
	if radius <= 0 {
		return w.coll.PointBlocked(center, mask)
	}
	box := math.NewRect(center.X-radius, center.Y-radius, 2*radius, 2*radius)
	for _, s := range w.coll.Overlaps(box, mask).Shapes {
		if s.Rect.CircleOverlaps(center, radius) {
			return true
		}
	}
	return false
}

// OnTileChanged places tile on layer 0 at (col, row). NoTile clears the cell.
func (w *World) OnTileChanged(col, row int, tile collision.TileTypeID) error {
	return w.OnLayerTileChanged(0, col, row, tile)
}

// OnLayerTileChanged places tile on a collision layer. Notifications for
// cells or layers the map does not have are stale: they are logged and
// dropped. Other failures are returned.
func (w *World) OnLayerTileChanged(layer, col, row int, tile collision.TileTypeID) error {
	id := collision.InstanceID{Layer: layer, Col: col, Row: row}
	if !w.inCells(col, row) || layer < 0 || layer >= max(len(w.layers), 1) {
		return w.ignoreStale(fmt.Errorf("%w: %s outside the map", collision.ErrUnknownInstance, id))
	}

	st, err := w.coll.SetTile(id, tile)
	if err != nil {
		return w.ignoreStale(err)
	}
	w.log.Debug("tile changed",
		zap.Stringer("instance", id),
		zap.Uint32("tile", uint32(tile)),
		zap.Int("removed", st.Removed),
		zap.Int("added", st.Added),
		zap.Int("buckets", st.Buckets),
	)
	return nil
}

// ApplyEdit removes and adds tile instances in one step. A stale removal
// drops the whole edit with a warning.
func (w *World) ApplyEdit(removed []collision.InstanceID, added []collision.TileInstance) error {
	st, err := w.coll.Update(removed, added)
	if err != nil {
		return w.ignoreStale(err)
	}
	w.log.Debug("tiles edited",
		zap.Int("removed", st.Removed),
		zap.Int("added", st.Added),
		zap.Int("buckets", st.Buckets),
	)
	return nil
}

func (w *World) ignoreStale(err error) error {
	if errors.Is(err, collision.ErrUnknownInstance) {
		w.log.Warn("ignoring stale tile notification", zap.Error(err))
		return nil
	}
	return err
}

// Zones returns the zone names in map order.
func (w *World) Zones() []string {
	names := make([]string, len(w.zones))
	for i, z := range w.zones {
		names[i] = z.Name
	}
	return names
}

func (w *World) zone(name string) *zone {
	for _, z := range w.zones {
		if z.Name == name {
			return z
		}
	}
	return nil
}

// ActivateZone turns a zone on. It reports false for unknown zones.
func (w *World) ActivateZone(name string) bool {
	z := w.zone(name)
	if z == nil {
		return false
	}
	z.active.Store(true)
	return true
}

// DeactivateZone turns a zone off. It reports false for unknown zones.
func (w *World) DeactivateZone(name string) bool {
	z := w.zone(name)
	if z == nil {
		return false
	}
	z.active.Store(false)
	return true
}

// ZoneActive reports whether a zone is on.
func (w *World) ZoneActive(name string) bool {
	z := w.zone(name)
	return z != nil && z.active.Load()
}

// ZoneAt returns the first zone containing p.
func (w *World) ZoneAt(p math.Vec2) (string, bool) {
	return w.zoneAt(p, false)
}

// ActiveZoneAt returns the first active zone containing p.
func (w *World) ActiveZoneAt(p math.Vec2) (string, bool) {
	return w.zoneAt(p, true)
}

func (w *World) zoneAt(p math.Vec2, activeOnly bool) (string, bool) {
	if !w.InsideMap(p) {
		return "", false
	}
	col, row := w.CellAt(p)
	for _, z := range w.zones {
		if activeOnly && !z.active.Load() {
			continue
		}
		if z.Has(col, row) {
			return z.Name, true
		}
	}
	return "", false
}
