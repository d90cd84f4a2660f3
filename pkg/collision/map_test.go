package collision

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Faultbox/tilecollide/pkg/math"
)

func TestMapUpdate_OpenDoor(t *testing.T) {
	for _, bucketTiles := range []int{1, 2, 4} {
		m := testMap(t, stripInstances(), bucketTiles)
		door := InstanceID{Col: 1, Row: 0}
		probe := math.Vec2{X: 24, Y: 14}

		if !m.PointBlocked(probe, MaskWall) {
			t.Fatalf("buckets %d: wall not blocked before update", bucketTiles)
		}

		if _, err := m.Update([]InstanceID{door}, []TileInstance{{ID: door, TileType: tileDoor}}); err != nil {
			t.Fatalf("buckets %d: Update: %v", bucketTiles, err)
		}

		if m.PointBlocked(probe, MaskWall) {
			t.Errorf("buckets %d: door cell still blocked", bucketTiles)
		}
		if !m.PointBlocked(math.Vec2{X: 8, Y: 14}, MaskWall) || !m.PointBlocked(math.Vec2{X: 40, Y: 14}, MaskWall) {
			t.Errorf("buckets %d: neighbours lost their walls", bucketTiles)
		}
		if tile, ok := m.Instance(door); !ok || tile != tileDoor {
			t.Errorf("buckets %d: instance = %d,%v", bucketTiles, tile, ok)
		}

		got := resultRects(m.Overlaps(math.NewRect(0, 0, 64, 16), MaskAll))
		want := []taggedRect{
			{math.NewRect(0, 12, 16, 4), Wall},
			{math.NewRect(32, 12, 16, 4), Wall},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("buckets %d: after opening got %v, want %v", bucketTiles, got, want)
		}

		// Closing the door merges the strip again.
		if _, err := m.SetTile(door, tileStrip); err != nil {
			t.Fatalf("buckets %d: SetTile: %v", bucketTiles, err)
		}
		shapes := m.Index().Shapes()
		if len(shapes) != 1 || shapes[0].Rect != math.NewRect(0, 12, 48, 4) {
			t.Errorf("buckets %d: after closing got %v", bucketTiles, shapes)
		}
		if !m.PointBlocked(probe, MaskWall) {
			t.Errorf("buckets %d: closed door not blocked", bucketTiles)
		}
	}
}

func TestMapUpdate_UnknownInstance(t *testing.T) {
	m := testMap(t, stripInstances(), DefaultBucketTiles)

	_, err := m.Update(
		[]InstanceID{{Col: 0, Row: 0}, {Col: 9, Row: 9}},
		[]TileInstance{inst(5, 0, tileSolid)},
	)
	if !errors.Is(err, ErrUnknownInstance) {
		t.Fatalf("err = %v, want ErrUnknownInstance", err)
	}

	// Nothing changed.
	if !m.PointBlocked(math.Vec2{X: 4, Y: 14}, MaskWall) {
		t.Error("failed update removed a wall")
	}
	if m.PointBlocked(math.Vec2{X: 84, Y: 4}, MaskWall) {
		t.Error("failed update added a wall")
	}
	if m.Instances() != 3 {
		t.Errorf("Instances = %d, want 3", m.Instances())
	}
}

func TestMapUpdate_Rejects(t *testing.T) {
	m := testMap(t, stripInstances(), DefaultBucketTiles)

	if _, err := m.Update(nil, []TileInstance{inst(0, 0, tileSolid)}); !errors.Is(err, ErrDuplicateInstance) {
		t.Errorf("adding over a placed instance: error = %v, want ErrDuplicateInstance", err)
	}
	if _, err := m.Update(nil, []TileInstance{inst(4, 0, tileSolid), inst(4, 0, tileCrate)}); !errors.Is(err, ErrDuplicateInstance) {
		t.Errorf("adding the same id twice: error = %v, want ErrDuplicateInstance", err)
	}
	if m.Instances() != 3 || m.Index().Len() != 1 {
		t.Errorf("rejected edits changed the map: %d instances, %d shapes", m.Instances(), m.Index().Len())
	}

	r := NewResolver(testCatalog(t), testTileSz, testTileSz)
	if _, err := NewMap(r, []TileInstance{inst(0, 0, tileSolid), inst(0, 0, tileCrate)}, IndexOptions{}); !errors.Is(err, ErrDuplicateInstance) {
		t.Errorf("NewMap with duplicate instances: error = %v, want ErrDuplicateInstance", err)
	}
}

func TestNewMapAuto(t *testing.T) {
	r := NewResolver(testCatalog(t), testTileSz, testTileSz)
	layout := randomLayout(9, 32, 32)

	m, tiles, err := NewMapAuto(r, layout, 0, 4)
	if err != nil {
		t.Fatalf("NewMapAuto: %v", err)
	}
	if want := ChooseBucketTiles(r.Resolve(layout), testTileSz, testTileSz, 4); tiles != want {
		t.Errorf("picked %d tiles, want %d", tiles, want)
	}
	if w, h := m.Index().BucketSize(); w != float64(tiles*testTileSz) || h != float64(tiles*testTileSz) {
		t.Errorf("bucket size = %gx%g for %d tiles", w, h, tiles)
	}
	if st := m.Index().Stats(); st.Parts != len(r.Translate(layout)) {
		t.Errorf("Parts = %d, want %d", st.Parts, len(r.Translate(layout)))
	}

	m, tiles, err = NewMapAuto(r, layout, 3, 4)
	if err != nil {
		t.Fatalf("NewMapAuto: %v", err)
	}
	if w, _ := m.Index().BucketSize(); tiles != 3 || w != float64(3*testTileSz) {
		t.Errorf("explicit edge: got %d tiles, %g px", tiles, w)
	}

	if _, _, err := NewMapAuto(r, []TileInstance{inst(1, 1, tileSolid), inst(1, 1, tileSolid)}, 0, 4); !errors.Is(err, ErrDuplicateInstance) {
		t.Errorf("duplicate instances: error = %v", err)
	}
}

func TestMapSetTile(t *testing.T) {
	m := testMap(t, nil, DefaultBucketTiles)
	id := InstanceID{Col: 2, Row: 1}

	if _, err := m.SetTile(id, NoTile); err != nil {
		t.Errorf("clearing an empty cell: %v", err)
	}

	if _, err := m.SetTile(id, tileCrate); err != nil {
		t.Fatalf("SetTile: %v", err)
	}
	if !m.PointBlocked(math.Vec2{X: 40, Y: 24}, MaskObject) {
		t.Error("crate not blocking")
	}

	if _, err := m.SetTile(id, NoTile); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if m.PointBlocked(math.Vec2{X: 40, Y: 24}, MaskAll) {
		t.Error("cleared cell still blocking")
	}
	if _, ok := m.Instance(id); ok {
		t.Error("cleared instance still placed")
	}
}

func TestMapUpdate_LayersAreIndependent(t *testing.T) {
	ground := InstanceID{Layer: 0, Col: 0, Row: 0}
	deco := InstanceID{Layer: 1, Col: 0, Row: 0}
	m := testMap(t, []TileInstance{
		{ID: ground, TileType: tileStrip},
		{ID: deco, TileType: tileCrate},
	}, DefaultBucketTiles)

	if _, err := m.Update([]InstanceID{deco}, nil); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if m.PointBlocked(math.Vec2{X: 8, Y: 8}, MaskObject) {
		t.Error("crate still present")
	}
	if !m.PointBlocked(math.Vec2{X: 8, Y: 14}, MaskWall) {
		t.Error("removing the upper layer removed the ground wall")
	}
}

func TestIndexUpdate_NewBuckets(t *testing.T) {
	idx := NewIndex(nil, IndexOptions{BucketWidth: 32, BucketHeight: 32})

	far := WorldShape{
		Rect:  math.NewRect(1000, 1000, 16, 16),
		Tag:   Wall,
		Parts: []Part{{Instance: InstanceID{Col: 62, Row: 62}, Rect: math.NewRect(1000, 1000, 16, 16)}},
	}
	st := idx.Update(nil, []WorldShape{far})
	if st.Added != 1 || st.Buckets != 1 {
		t.Errorf("UpdateStats = %+v", st)
	}
	if !idx.PointBlocked(math.Vec2{X: 1008, Y: 1008}, MaskAll) {
		t.Error("shape in a new bucket not found")
	}

	st = idx.Update([]InstanceID{{Col: 62, Row: 62}}, nil)
	if st.Removed != 1 {
		t.Errorf("UpdateStats = %+v", st)
	}
	if idx.PointBlocked(math.Vec2{X: 1008, Y: 1008}, MaskAll) {
		t.Error("removed shape still found")
	}
	if idx.Len() != 0 {
		t.Errorf("Len = %d, want 0", idx.Len())
	}
}

func TestMapUpdate_ConcurrentReaders(t *testing.T) {
	m := testMap(t, stripInstances(), 1)
	door := InstanceID{Col: 1, Row: 0}

	var (
		stop     atomic.Bool
		failures atomic.Int64
		wg       sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				// The outer tiles never change, so they must stay blocked
				// through every swap.
				if !m.PointBlocked(math.Vec2{X: 8, Y: 14}, MaskWall) {
					failures.Add(1)
				}
				if !m.PointBlocked(math.Vec2{X: 40, Y: 14}, MaskWall) {
					failures.Add(1)
				}
				res := m.Overlaps(math.NewRect(0, 12, 48, 4), MaskWall)
				if res.Empty() {
					failures.Add(1)
				}
				if _, hit := m.Sweep(math.NewRect(0, -16, 16, 16), math.Vec2{Y: 20}, MaskWall); !hit {
					failures.Add(1)
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		tile := tileDoor
		if i%2 == 1 {
			tile = tileStrip
		}
		if _, err := m.SetTile(door, tile); err != nil {
			t.Errorf("SetTile: %v", err)
			break
		}
	}
	stop.Store(true)
	wg.Wait()

	if n := failures.Load(); n > 0 {
		t.Errorf("readers saw %d torn states", n)
	}
}
