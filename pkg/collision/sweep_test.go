package collision

import (
	gomath "math"
	"testing"

	"github.com/Faultbox/tilecollide/pkg/math"
)

func near(a, b float64) bool {
	return gomath.Abs(a-b) < 1e-9
}

func nearVec(a, b math.Vec2) bool {
	return near(a.X, b.X) && near(a.Y, b.Y)
}

func TestSweep_OntoStrip(t *testing.T) {
	m := testMap(t, stripInstances(), DefaultBucketTiles)

	// The box's bottom edge starts at y=0 and meets the wall top at y=12.
	res, hit := m.Sweep(math.NewRect(0, -16, 16, 16), math.Vec2{Y: 20}, MaskWall)
	if !hit {
		t.Fatal("expected a hit")
	}
	if !near(res.T, 0.6) {
		t.Errorf("T = %v, want 0.6", res.T)
	}
	if res.Normal != (math.Vec2{Y: -1}) {
		t.Errorf("Normal = %v, want (0,-1)", res.Normal)
	}
	if !nearVec(res.MTV, math.Vec2{Y: -8}) {
		t.Errorf("MTV = %v, want (0,-8)", res.MTV)
	}
	if len(res.Shapes) != 1 || res.Shapes[0].Rect != math.NewRect(0, 12, 48, 4) {
		t.Errorf("Shapes = %v", res.Shapes)
	}
}

func TestSweep_StartingInsideWall(t *testing.T) {
	m := testMap(t, stripInstances(), DefaultBucketTiles)
	box := math.NewRect(0, 0, 16, 16) // bottom 4px already inside the wall

	res, hit := m.Sweep(box, math.Vec2{Y: 20}, MaskWall)
	if !hit {
		t.Fatal("moving deeper into the wall should be blocked")
	}
	if res.T != 0 || res.Normal != (math.Vec2{Y: -1}) {
		t.Errorf("T=%v Normal=%v, want 0 and (0,-1)", res.T, res.Normal)
	}

	if _, hit := m.Sweep(box, math.Vec2{Y: -20}, MaskWall); hit {
		t.Error("moving out of the wall should not be blocked")
	}
}

func TestSweep_Misses(t *testing.T) {
	m := testMap(t, stripInstances(), DefaultBucketTiles)

	tests := []struct {
		name string
		box  math.Rect
		d    math.Vec2
		mask TagMask
	}{
		{"zero displacement", math.NewRect(0, 0, 16, 16), math.Vec2{}, MaskAll},
		{"parallel above", math.NewRect(0, -16, 16, 16), math.Vec2{X: 40}, MaskAll},
		{"sliding along top", math.NewRect(0, -4, 16, 16), math.Vec2{X: 40}, MaskAll},
		{"too short", math.NewRect(0, -16, 16, 16), math.Vec2{Y: 10}, MaskAll},
		{"filtered out", math.NewRect(0, -16, 16, 16), math.Vec2{Y: 20}, MaskObject},
		{"passes beside", math.NewRect(48, -16, 16, 16), math.Vec2{Y: 40}, MaskAll},
		{"moving away", math.NewRect(0, 16, 16, 16), math.Vec2{Y: 20}, MaskAll},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res, hit := m.Sweep(tt.box, tt.d, tt.mask); hit {
				t.Errorf("unexpected hit: T=%v shapes=%v", res.T, res.Shapes)
			}
		})
	}
}

func TestSweep_Horizontal(t *testing.T) {
	m := testMap(t, []TileInstance{inst(2, 0, tileSolid)}, 1)

	res, hit := m.Sweep(math.NewRect(0, 0, 16, 16), math.Vec2{X: 32, Y: 8}, MaskAll)
	if !hit {
		t.Fatal("expected a hit")
	}
	if !near(res.T, 0.5) || res.Normal != (math.Vec2{X: -1}) {
		t.Errorf("T=%v Normal=%v, want 0.5 and (-1,0)", res.T, res.Normal)
	}
	if slide := res.Slide(math.Vec2{X: 32, Y: 8}); !nearVec(slide, math.Vec2{Y: 4}) {
		t.Errorf("Slide = %v, want (0,4)", slide)
	}

	back, hit := m.Sweep(math.NewRect(64, 0, 16, 16), math.Vec2{X: -32}, MaskAll)
	if !hit || !near(back.T, 0.5) || back.Normal != (math.Vec2{X: 1}) {
		t.Errorf("leftward: hit=%v T=%v Normal=%v", hit, back.T, back.Normal)
	}
}

func TestSweep_NearestShapeWins(t *testing.T) {
	shapes := []WorldShape{
		{Rect: math.NewRect(0, 64, 64, 16), Tag: Wall},
		{Rect: math.NewRect(0, 32, 64, 16), Tag: Wall},
	}
	idx := NewIndex(shapes, IndexOptions{BucketWidth: 16, BucketHeight: 16})

	res, hit := idx.Sweep(math.NewRect(8, 0, 16, 16), math.Vec2{Y: 100}, MaskAll)
	if !hit {
		t.Fatal("expected a hit")
	}
	if res.Shapes[0].Rect.Y != 32 || !near(res.T, 0.16) {
		t.Errorf("hit %v at T=%v, want the y=32 wall at 0.16", res.Shapes[0], res.T)
	}
}

func TestSweep_TieBreak(t *testing.T) {
	// Two shapes whose tops are level; tags differ so they stay separate.
	shapes := []WorldShape{
		{Rect: math.NewRect(24, 12, 24, 4), Tag: Object},
		{Rect: math.NewRect(0, 12, 24, 4), Tag: Wall},
	}
	idx := NewIndex(shapes, IndexOptions{BucketWidth: 16, BucketHeight: 16})

	tests := []struct {
		name  string
		x     float64
		wantX float64
	}{
		{"larger overlap wins", 20, 24}, // 4px over the left shape, 12px over the right
		{"equal overlap, lower x", 16, 0},
		{"larger overlap on the left", 12, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, hit := idx.Sweep(math.NewRect(tt.x, -16, 16, 16), math.Vec2{Y: 20}, MaskAll)
			if !hit {
				t.Fatal("expected a hit")
			}
			if len(res.Shapes) != 2 {
				t.Fatalf("got %d tied shapes, want 2", len(res.Shapes))
			}
			if got := res.Shapes[0].Rect.X; got != tt.wantX {
				t.Errorf("resolved against x=%v, want x=%v", got, tt.wantX)
			}
			if !near(res.T, 0.6) || res.Normal != (math.Vec2{Y: -1}) {
				t.Errorf("T=%v Normal=%v", res.T, res.Normal)
			}
		})
	}
}

func TestSweep_CornerPrefersDominantAxis(t *testing.T) {
	idx := NewIndex([]WorldShape{{Rect: math.NewRect(16, 16, 16, 16), Tag: Wall}},
		IndexOptions{BucketWidth: 16, BucketHeight: 16})

	res, hit := idx.Sweep(math.NewRect(0, 0, 16, 16), math.Vec2{X: 8, Y: 16}, MaskAll)
	if !hit {
		t.Fatal("expected a hit")
	}
	// Both axes touch at T=0; y dominates the displacement.
	if res.T != 0 || res.Normal != (math.Vec2{Y: -1}) {
		t.Errorf("T=%v Normal=%v", res.T, res.Normal)
	}
}

func TestSweep_BucketSizeInvariance(t *testing.T) {
	r := NewResolver(testCatalog(t), testTileSz, testTileSz)
	shapes := r.Resolve(randomLayout(4, 20, 20))

	a := NewIndex(shapes, BucketOptions(testTileSz, testTileSz, 1))
	b := NewIndex(shapes, BucketOptions(testTileSz, testTileSz, 16))

	for y := -8.0; y < 320; y += 13 {
		for x := -8.0; x < 320; x += 17 {
			box := math.NewRect(x, y, 10, 10)
			for _, d := range []math.Vec2{{X: 37}, {Y: -29}, {X: -23, Y: 31}, {X: 5, Y: 5}} {
				ra, ha := a.Sweep(box, d, MaskAll)
				rb, hb := b.Sweep(box, d, MaskAll)
				if ha != hb {
					t.Fatalf("%v by %v: hit %v vs %v", box, d, ha, hb)
				}
				if !ha {
					continue
				}
				if ra.T != rb.T || ra.Normal != rb.Normal || ra.Shapes[0].Rect != rb.Shapes[0].Rect {
					t.Fatalf("%v by %v: %v/%v/%v vs %v/%v/%v", box, d,
						ra.T, ra.Normal, ra.Shapes[0], rb.T, rb.Normal, rb.Shapes[0])
				}
			}
		}
	}

	// Moves ending flush against a shape whose edge lies on a bucket
	// boundary, in all four directions.
	flush := []struct {
		name   string
		box    math.Rect
		d      math.Vec2
		normal math.Vec2
	}{
		{"left", math.NewRect(80, 0, 16, 16), math.Vec2{X: -16}, math.Vec2{X: 1}},
		{"right", math.NewRect(16, 0, 16, 16), math.Vec2{X: 16}, math.Vec2{X: -1}},
		{"up", math.NewRect(48, 32, 16, 16), math.Vec2{Y: -16}, math.Vec2{Y: 1}},
		{"down", math.NewRect(48, -32, 16, 16), math.Vec2{Y: 16}, math.Vec2{Y: -1}},
	}
	wall := []WorldShape{{Rect: math.NewRect(48, 0, 16, 16), Tag: Wall}}
	for _, size := range []float64{16, 32, 40, 64} {
		idx := NewIndex(wall, IndexOptions{BucketWidth: size, BucketHeight: size})
		for _, tt := range flush {
			res, hit := idx.Sweep(tt.box, tt.d, MaskAll)
			if !hit || res.T != 1 || res.Normal != tt.normal {
				t.Errorf("%s with %gpx buckets: hit=%v T=%v Normal=%v, want T=1 Normal=%v",
					tt.name, size, hit, res.T, res.Normal, tt.normal)
			}
		}
	}
}
