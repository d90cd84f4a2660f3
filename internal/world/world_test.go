package world

import (
	"bytes"
	"encoding/binary"
	"os"
	"reflect"
	"testing"

	"github.com/Faultbox/tilecollide/pkg/collision"
	"github.com/Faultbox/tilecollide/pkg/formats"
	"github.com/Faultbox/tilecollide/pkg/math"
)

const testdataDir = "../../pkg/formats/testdata"

// Tile ids in house.tmx: the floors-and-walls tileset starts at 1, the item
// tileset at 163.
const (
	houseWall  collision.TileTypeID = 2   // bottom 4px strip
	houseFloor collision.TileTypeID = 37  // no collision
	houseTable collision.TileTypeID = 164 // object {0,4,16,12}
)

func testOptions() Options {
	return Options{
		TileWidth:          16,
		TileHeight:         16,
		TargetPerBucket:    8,
		OutOfBoundsBlocked: true,
		CollisionLayers:    formats.DefaultCollisionLayers,
		ZoneGroup:          "fog",
	}
}

func loadHouse(t *testing.T, opts Options) *World {
	t.Helper()
	data, err := formats.LoadMap(os.DirFS(testdataDir), "house.tmx", formats.MapOptions{
		CollisionLayers: opts.CollisionLayers,
		ZoneGroup:       opts.ZoneGroup,
	})
	if err != nil {
		t.Fatalf("LoadMap: %v", err)
	}
	w, err := New("house", data, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

type taggedRect struct {
	Rect math.Rect
	Tag  collision.Tag
}

func shapesOf(w *World) []taggedRect {
	out := []taggedRect{}
	for _, s := range w.Collision().Index().Shapes() {
		out = append(out, taggedRect{s.Rect, s.Tag})
	}
	return out
}

// gatBytes encodes a GAT grid the way the client files store it.
func gatBytes(width, height uint32, cellTypes []formats.GATCellType) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString("GRAT")
	buf.WriteByte(2) // minor
	buf.WriteByte(1) // major
	binary.Write(buf, binary.LittleEndian, width)
	binary.Write(buf, binary.LittleEndian, height)
	for i := 0; i < int(width*height); i++ {
		for j := 0; j < 4; j++ {
			binary.Write(buf, binary.LittleEndian, float32(0))
		}
		cellType := formats.GATWalkable
		if i < len(cellTypes) {
			cellType = cellTypes[i]
		}
		binary.Write(buf, binary.LittleEndian, uint32(cellType))
	}
	return buf.Bytes()
}

// gatWorld builds a world from a walkable grid with the given cells blocked.
func gatWorld(t *testing.T, width, height int, blocked [][2]int) *World {
	t.Helper()
	gat := &formats.GAT{
		Width:  uint32(width),
		Height: uint32(height),
		Cells:  make([]formats.GATCell, width*height),
	}
	for _, b := range blocked {
		gat.Cells[b[1]*width+b[0]].Type = formats.GATBlocked
	}
	w, err := FromGAT("test.gat", gat, testOptions())
	if err != nil {
		t.Fatalf("FromGAT: %v", err)
	}
	return w
}

func TestNew_House(t *testing.T) {
	w := loadHouse(t, testOptions())

	if w.Width != 6 || w.Height != 4 {
		t.Errorf("size = %dx%d, want 6x4", w.Width, w.Height)
	}
	if w.Bounds() != math.NewRect(0, 0, 96, 64) {
		t.Errorf("Bounds = %v", w.Bounds())
	}

	want := []taggedRect{
		{math.NewRect(0, 12, 48, 4), collision.Wall},
		{math.NewRect(64, 36, 16, 12), collision.Object},
	}
	if got := shapesOf(w); !reflect.DeepEqual(got, want) {
		t.Errorf("shapes = %v, want %v", got, want)
	}
	if got := w.Zones(); !reflect.DeepEqual(got, []string{"hall", "kitchen"}) {
		t.Errorf("Zones = %v", got)
	}
	if got := w.Layers(); !reflect.DeepEqual(got, []string{"wall/wall", "item/furniture1"}) {
		t.Errorf("Layers = %v", got)
	}
}

func TestNew_BucketTiles(t *testing.T) {
	opts := testOptions()
	opts.BucketTiles = 2
	w := loadHouse(t, opts)
	if bw, bh := w.Collision().Index().BucketSize(); bw != 32 || bh != 32 {
		t.Errorf("BucketSize = %vx%v, want 32x32", bw, bh)
	}

	opts.BucketTiles = 0
	w = loadHouse(t, opts)
	if bw, _ := w.Collision().Index().BucketSize(); bw <= 0 {
		t.Errorf("automatic bucket size %v", bw)
	}
}

func TestNew_BadTileset(t *testing.T) {
	data := &formats.MapData{
		Width: 2, Height: 2, TileWidth: 16, TileHeight: 16,
		Tilesets: []collision.TilesetDescriptor{{
			Name: "bad", FirstID: 1, TileWidth: 16, TileHeight: 16, TileCount: 1,
			Tiles: []collision.TileDescriptor{{ID: 0, Rects: []collision.RectDescriptor{{X: 8, Y: 8, W: 16, H: 4}}}},
		}},
	}
	if _, err := New("bad", data, testOptions()); err == nil {
		t.Error("expected an error for an out-of-tile rectangle")
	}
}

func TestWorld_IsWall(t *testing.T) {
	w := loadHouse(t, testOptions())

	tests := []struct {
		name string
		p    math.Vec2
		want bool
	}{
		{"wall strip", math.Vec2{X: 24, Y: 14}, true},
		{"above the strip", math.Vec2{X: 24, Y: 4}, false},
		{"table", math.Vec2{X: 70, Y: 40}, true},
		{"floor", math.Vec2{X: 40, Y: 40}, false},
		{"left of map", math.Vec2{X: -1, Y: 5}, true},
		{"right edge is outside", math.Vec2{X: 96, Y: 10}, true},
		{"below map", math.Vec2{X: 10, Y: 64}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.IsWall(tt.p); got != tt.want {
				t.Errorf("IsWall(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}

	opts := testOptions()
	opts.OutOfBoundsBlocked = false
	open := loadHouse(t, opts)
	if open.IsWall(math.Vec2{X: -1, Y: 5}) {
		t.Error("out of bounds should be open when not blocked")
	}
}

func TestWorld_InsideAndBorder(t *testing.T) {
	w := loadHouse(t, testOptions())

	tests := []struct {
		p              math.Vec2
		inside, border bool
	}{
		{math.Vec2{X: 0, Y: 0}, true, true},
		{math.Vec2{X: 20, Y: 20}, true, false},
		{math.Vec2{X: 80, Y: 40}, true, true},  // last column
		{math.Vec2{X: 40, Y: 50}, true, true},  // last row
		{math.Vec2{X: 79, Y: 47}, true, false}, // one cell in
		{math.Vec2{X: 96, Y: 0}, false, false},
		{math.Vec2{X: -0.5, Y: 3}, false, false},
	}
	for _, tt := range tests {
		if got := w.InsideMap(tt.p); got != tt.inside {
			t.Errorf("InsideMap(%v) = %v, want %v", tt.p, got, tt.inside)
		}
		if got := w.IsBorder(tt.p); got != tt.border {
			t.Errorf("IsBorder(%v) = %v, want %v", tt.p, got, tt.border)
		}
	}
}

func TestWorld_CircleBlocked(t *testing.T) {
	w := loadHouse(t, testOptions())

	tests := []struct {
		name   string
		center math.Vec2
		radius float64
		want   bool
	}{
		{"clear of the strip", math.Vec2{X: 24, Y: 8}, 3, false},
		{"reaches the strip", math.Vec2{X: 24, Y: 8}, 5, true},
		{"touching is not blocked", math.Vec2{X: 24, Y: 8}, 4, false},
		{"near the corner", math.Vec2{X: 51, Y: 9}, 4, false}, // corner (48,12) is ~4.24 away
		{"over the corner", math.Vec2{X: 51, Y: 9}, 4.5, true},
		{"zero radius inside", math.Vec2{X: 70, Y: 40}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.CircleBlocked(tt.center, tt.radius, collision.MaskAll); got != tt.want {
				t.Errorf("CircleBlocked = %v, want %v", got, tt.want)
			}
		})
	}

	if w.CircleBlocked(math.Vec2{X: 70, Y: 40}, 2, collision.MaskWall) {
		t.Error("table should not match a wall-only filter")
	}
}

func TestWorld_OnTileChanged(t *testing.T) {
	w := loadHouse(t, testOptions())

	// Extending the strip merges it.
	if err := w.OnTileChanged(3, 0, houseWall); err != nil {
		t.Fatalf("OnTileChanged: %v", err)
	}
	if got := w.Overlaps(math.NewRect(0, 0, 96, 16), collision.MaskWall); len(got.Shapes) != 1 || got.Shapes[0].Rect != math.NewRect(0, 12, 64, 4) {
		t.Errorf("after extending: %v", got.Shapes)
	}

	// Swapping in a floor tile opens the cell.
	if err := w.OnTileChanged(1, 0, houseFloor); err != nil {
		t.Fatalf("OnTileChanged: %v", err)
	}
	if w.PointBlocked(math.Vec2{X: 24, Y: 14}, collision.MaskWall) {
		t.Error("cell (1,0) still blocked")
	}

	// Clearing the table on the furniture layer.
	if err := w.OnLayerTileChanged(1, 4, 2, collision.NoTile); err != nil {
		t.Fatalf("OnLayerTileChanged: %v", err)
	}
	if w.IsWall(math.Vec2{X: 70, Y: 40}) {
		t.Error("table still blocking")
	}
	if err := w.OnLayerTileChanged(1, 1, 1, houseTable); err != nil {
		t.Fatalf("OnLayerTileChanged: %v", err)
	}
	if !w.PointBlocked(math.Vec2{X: 24, Y: 24}, collision.MaskObject) {
		t.Error("moved table not blocking")
	}
}

func TestWorld_StaleNotifications(t *testing.T) {
	w := loadHouse(t, testOptions())
	before := shapesOf(w)

	stale := []struct {
		name            string
		layer, col, row int
	}{
		{"outside columns", 0, 6, 0},
		{"negative row", 0, 0, -1},
		{"unknown layer", 7, 0, 0},
	}
	for _, tt := range stale {
		if err := w.OnLayerTileChanged(tt.layer, tt.col, tt.row, houseWall); err != nil {
			t.Errorf("%s: err = %v, want nil", tt.name, err)
		}
	}

	err := w.ApplyEdit(
		[]collision.InstanceID{{Col: 0, Row: 0}, {Col: 5, Row: 3}},
		[]collision.TileInstance{{ID: collision.InstanceID{Col: 5, Row: 3}, TileType: houseWall}},
	)
	if err != nil {
		t.Errorf("ApplyEdit with a stale removal: %v", err)
	}

	if got := shapesOf(w); !reflect.DeepEqual(got, before) {
		t.Errorf("stale notifications changed the map: %v", got)
	}

	// Non-stale failures are still reported.
	dup := collision.TileInstance{ID: collision.InstanceID{Col: 0, Row: 0}, TileType: houseWall}
	if err := w.ApplyEdit(nil, []collision.TileInstance{dup}); err == nil {
		t.Error("adding over a placed tile should fail")
	}
}

func TestWorld_Zones(t *testing.T) {
	w := loadHouse(t, testOptions())
	hall := math.Vec2{X: 24, Y: 56}    // cell (1,3)
	kitchen := math.Vec2{X: 88, Y: 56} // cell (5,3)

	if name, ok := w.ZoneAt(hall); !ok || name != "hall" {
		t.Errorf("ZoneAt(hall) = %q,%v", name, ok)
	}
	if name, ok := w.ZoneAt(kitchen); !ok || name != "kitchen" {
		t.Errorf("ZoneAt(kitchen) = %q,%v", name, ok)
	}
	if _, ok := w.ZoneAt(math.Vec2{X: 40, Y: 56}); ok {
		t.Error("cell (2,3) is in no zone")
	}
	if _, ok := w.ZoneAt(math.Vec2{X: -5, Y: 56}); ok {
		t.Error("off-map point is in no zone")
	}

	if _, ok := w.ActiveZoneAt(hall); ok {
		t.Error("zones start inactive")
	}
	if !w.ActivateZone("hall") {
		t.Fatal("ActivateZone(hall) = false")
	}
	if name, ok := w.ActiveZoneAt(hall); !ok || name != "hall" {
		t.Errorf("ActiveZoneAt(hall) = %q,%v", name, ok)
	}
	if _, ok := w.ActiveZoneAt(kitchen); ok {
		t.Error("kitchen is not active")
	}

	if !w.DeactivateZone("hall") || w.ZoneActive("hall") {
		t.Error("DeactivateZone(hall) failed")
	}
	if w.ActivateZone("attic") || w.DeactivateZone("attic") {
		t.Error("unknown zones should report false")
	}
}

func TestFromGAT(t *testing.T) {
	w := gatWorld(t, 4, 3, [][2]int{{1, 1}, {2, 1}})

	if w.Width != 4 || w.Height != 3 {
		t.Errorf("size = %dx%d", w.Width, w.Height)
	}
	want := []taggedRect{{math.NewRect(16, 16, 32, 16), collision.Wall}}
	if got := shapesOf(w); !reflect.DeepEqual(got, want) {
		t.Errorf("shapes = %v, want %v", got, want)
	}
	if got := w.Layers(); !reflect.DeepEqual(got, []string{"gat"}) {
		t.Errorf("Layers = %v", got)
	}

	if err := w.OnTileChanged(0, 0, 2); err != nil { // GAT object tile
		t.Fatalf("OnTileChanged: %v", err)
	}
	if !w.PointBlocked(math.Vec2{X: 8, Y: 8}, collision.MaskObject) {
		t.Error("placed object not blocking")
	}
}
