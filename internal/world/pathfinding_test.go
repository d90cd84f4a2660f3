package world

import (
	"testing"

	"github.com/Faultbox/tilecollide/pkg/collision"
	"github.com/Faultbox/tilecollide/pkg/math"
)

// newTestPathFinder builds a pathfinder for a 12x12 footprint over a GAT
// grid with the given cells blocked.
func newTestPathFinder(t *testing.T, width, height int, blocked [][2]int) *PathFinder {
	t.Helper()
	return NewPathFinder(gatWorld(t, width, height, blocked), 12, 12, collision.MaskAll)
}

func TestPathFinder_FindPath_Simple(t *testing.T) {
	// 5x5 grid, no obstacles
	pf := newTestPathFinder(t, 5, 5, nil)

	path := pf.FindPath(0, 0, 4, 4)
	if path == nil {
		t.Fatal("expected path, got nil")
	}

	if path[0] != [2]int{0, 0} {
		t.Errorf("path should start at (0,0), got %v", path[0])
	}
	if last := path[len(path)-1]; last != [2]int{4, 4} {
		t.Errorf("path should end at (4,4), got %v", last)
	}
	if len(path) != 5 {
		t.Errorf("expected a straight diagonal of 5 cells, got %v", path)
	}
}

func TestPathFinder_FindPath_WithObstacle(t *testing.T) {
	// 5x5 grid with wall in the middle
	blocked := [][2]int{
		{2, 0}, {2, 1}, {2, 2}, {2, 3},
	}
	pf := newTestPathFinder(t, 5, 5, blocked)

	path := pf.FindPath(0, 2, 4, 2)
	if path == nil {
		t.Fatal("expected path around obstacle, got nil")
	}

	for _, p := range path {
		if p[0] == 2 && p[1] < 4 {
			t.Errorf("path went through blocked cell at (%d,%d)", p[0], p[1])
		}
	}
}

func TestPathFinder_FindPath_NoPath(t *testing.T) {
	// 5x5 grid with complete wall
	blocked := [][2]int{
		{2, 0}, {2, 1}, {2, 2}, {2, 3}, {2, 4},
	}
	pf := newTestPathFinder(t, 5, 5, blocked)

	if path := pf.FindPath(0, 2, 4, 2); path != nil {
		t.Errorf("expected no path, got %v", path)
	}
}

func TestPathFinder_FindPath_NoCornerCutting(t *testing.T) {
	// Two blocked cells meeting at a corner leave a diagonal gap that the
	// footprint could squeeze through only by cutting both corners.
	blocked := [][2]int{{1, 0}, {0, 1}}
	pf := newTestPathFinder(t, 3, 3, blocked)

	if path := pf.FindPath(0, 0, 1, 1); path != nil {
		t.Errorf("expected no path through the corner, got %v", path)
	}
}

func TestPathFinder_FindPath_SameStartGoal(t *testing.T) {
	pf := newTestPathFinder(t, 5, 5, nil)

	path := pf.FindPath(2, 2, 2, 2)
	if len(path) != 1 {
		t.Errorf("expected path length 1, got %v", path)
	}
}

func TestPathFinder_FindPath_OutOfBounds(t *testing.T) {
	pf := newTestPathFinder(t, 5, 5, nil)

	if path := pf.FindPath(-1, 0, 4, 4); path != nil {
		t.Error("expected nil for out of bounds start")
	}
	if path := pf.FindPath(0, 0, 10, 10); path != nil {
		t.Error("expected nil for out of bounds goal")
	}
}

func TestPathFinder_FindPath_BlockedGoal(t *testing.T) {
	pf := newTestPathFinder(t, 5, 5, [][2]int{{4, 4}})

	if path := pf.FindPath(0, 0, 4, 4); path != nil {
		t.Error("expected nil for blocked goal")
	}
}

func TestPathFinder_IsWalkable(t *testing.T) {
	pf := newTestPathFinder(t, 5, 5, [][2]int{{2, 2}})

	tests := []struct {
		x, y int
		want bool
	}{
		{2, 2, false},
		{0, 0, true},
		{1, 2, true}, // the 12px footprint stays clear of the neighbour
		{-1, 0, false},
		{5, 0, false},
	}
	for _, tt := range tests {
		if got := pf.IsWalkable(tt.x, tt.y); got != tt.want {
			t.Errorf("IsWalkable(%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}

	// A footprint wider than a tile overlaps the blocked neighbour.
	wide := NewPathFinder(pf.world, 20, 12, collision.MaskAll)
	if wide.IsWalkable(1, 2) {
		t.Error("20px footprint next to a wall should not fit")
	}
}

func TestPathFinder_PartialTiles(t *testing.T) {
	w := loadHouse(t, testOptions())
	pf := NewPathFinder(w, 8, 8, collision.MaskAll)

	// The wall strip only covers the bottom 4px of row 0; an 8px footprint
	// centered in the cell (4..12) just touches it.
	if !pf.IsWalkable(1, 0) {
		t.Error("cell (1,0) should fit an 8px footprint")
	}
	tall := NewPathFinder(w, 8, 10, collision.MaskAll)
	if tall.IsWalkable(1, 0) {
		t.Error("cell (1,0) should not fit a 10px tall footprint")
	}

	// The table blocks cell (4,2); walking around it still works.
	path := pf.FindPath(3, 2, 5, 2)
	if path == nil {
		t.Fatal("expected a path around the table")
	}
	for _, p := range path {
		if p == [2]int{4, 2} {
			t.Errorf("path crosses the table: %v", path)
		}
	}
	if c := w.CellCenter(path[len(path)-1][0], path[len(path)-1][1]); c != (math.Vec2{X: 88, Y: 40}) {
		t.Errorf("path ends at %v", c)
	}
}
