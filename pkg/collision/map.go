package collision

import (
	"fmt"
	"sync"

	"github.com/Faultbox/tilecollide/pkg/math"
)

// Map is the collision view of one loaded map: the placed tile instances and
// the index built from their shapes. Queries go straight to the lock-free
// index; edits are serialized.
type Map struct {
	resolver *Resolver
	index    *Index

	mu        sync.Mutex
	instances map[InstanceID]TileTypeID
}

// NewMap resolves the instances and indexes the merged shapes. Empty cells
// (NoTile) are skipped. Placing two instances with the same id fails with
// ErrDuplicateInstance.
func NewMap(r *Resolver, instances []TileInstance, opts IndexOptions) (*Map, error) {
	return newMap(r, instances, func([]WorldShape) IndexOptions { return opts })
}

// NewMapAuto is NewMap with the bucket edge, in tiles, picked by
// ChooseBucketTiles when bucketTiles is not positive. The instances are
// resolved once and the same merged shapes are measured and indexed. It
// returns the edge used.
func NewMapAuto(r *Resolver, instances []TileInstance, bucketTiles, targetPerBucket int) (*Map, int, error) {
	tileW, tileH := int(r.TileWidth), int(r.TileHeight)
	m, err := newMap(r, instances, func(merged []WorldShape) IndexOptions {
		if bucketTiles <= 0 {
			bucketTiles = ChooseBucketTiles(merged, tileW, tileH, targetPerBucket)
		}
		return BucketOptions(tileW, tileH, bucketTiles)
	})
	if err != nil {
		return nil, 0, err
	}
	return m, bucketTiles, nil
}

func newMap(r *Resolver, instances []TileInstance, options func(merged []WorldShape) IndexOptions) (*Map, error) {
	m := &Map{
		resolver:  r,
		instances: make(map[InstanceID]TileTypeID, len(instances)),
	}

	placed := make([]TileInstance, 0, len(instances))
	for _, inst := range instances {
		if inst.TileType == NoTile {
			continue
		}
		if _, dup := m.instances[inst.ID]; dup {
			return nil, fmt.Errorf("%w: %s placed twice", ErrDuplicateInstance, inst.ID)
		}
		m.instances[inst.ID] = inst.TileType
		placed = append(placed, inst)
	}

	merged := r.Resolve(placed)
	m.index = NewIndex(merged, options(merged))
	return m, nil
}

// Index returns the underlying index.
func (m *Map) Index() *Index {
	return m.index
}

// Resolver returns the resolver the map was built with.
func (m *Map) Resolver() *Resolver {
	return m.resolver
}

// Instance returns the tile type placed at id.
func (m *Map) Instance(id InstanceID) (TileTypeID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.instances[id]
	return t, ok
}

// Instances returns the number of placed tile instances.
func (m *Map) Instances() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.instances)
}

// Update removes and adds tile instances in one edit. It fails with
// ErrUnknownInstance, before changing anything, if a removed id is not
// placed. Adding an id that is already placed and not removed in the same
// edit is also rejected. Added NoTile instances only clear their cell.
func (m *Map) Update(removed []InstanceID, added []TileInstance) (UpdateStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.update(removed, added)
}

func (m *Map) update(removed []InstanceID, added []TileInstance) (UpdateStats, error) {
	removedSet := make(map[InstanceID]bool, len(removed))
	for _, id := range removed {
		if _, ok := m.instances[id]; !ok {
			return UpdateStats{}, fmt.Errorf("%w: %s", ErrUnknownInstance, id)
		}
		removedSet[id] = true
	}

	placed := make([]TileInstance, 0, len(added))
	addedSet := make(map[InstanceID]bool, len(added))
	for _, inst := range added {
		if addedSet[inst.ID] {
			return UpdateStats{}, fmt.Errorf("%w: %s added twice", ErrDuplicateInstance, inst.ID)
		}
		addedSet[inst.ID] = true
		if _, ok := m.instances[inst.ID]; ok && !removedSet[inst.ID] {
			return UpdateStats{}, fmt.Errorf("%w: %s already placed", ErrDuplicateInstance, inst.ID)
		}
		if inst.TileType != NoTile {
			placed = append(placed, inst)
		}
	}

	stats := m.index.Update(removed, m.resolver.Translate(placed))

	for id := range removedSet {
		delete(m.instances, id)
	}
	for _, inst := range placed {
		m.instances[inst.ID] = inst.TileType
	}
	return stats, nil
}

// SetTile replaces whatever is placed at id with tile. NoTile clears the
// cell; clearing an empty cell does nothing.
func (m *Map) SetTile(id InstanceID, tile TileTypeID) (UpdateStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []InstanceID
	if _, ok := m.instances[id]; ok {
		removed = []InstanceID{id}
	}
	if removed == nil && tile == NoTile {
		return UpdateStats{}, nil
	}
	return m.update(removed, []TileInstance{{ID: id, TileType: tile}})
}

// PointBlocked reports whether p lies inside a shape with a tag in mask.
func (m *Map) PointBlocked(p math.Vec2, mask TagMask) bool {
	return m.index.PointBlocked(p, mask)
}

// Overlaps returns the shapes with a tag in mask overlapping q.
func (m *Map) Overlaps(q math.Rect, mask TagMask) Result {
	return m.index.Overlaps(q, mask)
}

// Sweep moves r by displacement and reports the first contact.
func (m *Map) Sweep(r math.Rect, displacement math.Vec2, mask TagMask) (Result, bool) {
	return m.index.Sweep(r, displacement, mask)
}
