package world

import (
	"container/heap"

	"github.com/Faultbox/tilecollide/pkg/collision"
	"github.com/Faultbox/tilecollide/pkg/math"
)

// PathNode represents a node in the A* pathfinding algorithm.
type PathNode struct {
	X, Y   int     // Tile coordinates
	G      float64 // Cost from start
	H      float64 // Heuristic (estimated cost to goal)
	F      float64 // Total cost (G + H)
	Parent *PathNode
	Index  int // Index in heap
}

// PathHeap implements a priority queue for A* pathfinding.
type PathHeap []*PathNode

func (h PathHeap) Len() int           { return len(h) }
func (h PathHeap) Less(i, j int) bool { return h[i].F < h[j].F }
func (h PathHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].Index = i
	h[j].Index = j
}

func (h *PathHeap) Push(x any) {
	n := len(*h)
	node := x.(*PathNode)
	node.Index = n
	*h = append(*h, node)
}

func (h *PathHeap) Pop() any {
	old := *h
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	node.Index = -1
	*h = old[0 : n-1]
	return node
}

// PathFinder plans tile paths for an entity of a given footprint. A cell is
// walkable when the footprint centered in it overlaps no blocking shape.
type PathFinder struct {
	world     *World
	footprint math.Vec2
	mask      collision.TagMask
}

// NewPathFinder creates a pathfinder for entities of size footW x footH.
func NewPathFinder(w *World, footW, footH float64, mask collision.TagMask) *PathFinder {
	if w == nil {
		return nil
	}
	return &PathFinder{
		world:     w,
		footprint: math.Vec2{X: footW, Y: footH},
		mask:      mask,
	}
}

const (
	straightCost = 1.0
	diagonalCost = 1.414 // sqrt(2)
)

// Directions: 8-way movement, diagonals at odd indices.
var directions = [8][2]int{
	{0, 1},   // S
	{-1, 1},  // SW
	{-1, 0},  // W
	{-1, -1}, // NW
	{0, -1},  // N
	{1, -1},  // NE
	{1, 0},   // E
	{1, 1},   // SE
}

// FindPath finds a path of tile cells from start to goal using A*.
// Diagonal steps need both orthogonal neighbours walkable.
// Returns nil if no path exists.
func (pf *PathFinder) FindPath(startX, startY, goalX, goalY int) [][2]int {
	if pf == nil {
		return nil
	}

	if !pf.inBounds(startX, startY) || !pf.inBounds(goalX, goalY) {
		return nil
	}

	// Walkability is queried at most once per cell per search.
	walkable := make(map[int]bool)
	isWalkable := func(x, y int) bool {
		if !pf.inBounds(x, y) {
			return false
		}
		k := pf.key(x, y)
		ok, seen := walkable[k]
		if !seen {
			ok = pf.IsWalkable(x, y)
			walkable[k] = ok
		}
		return ok
	}

	if !isWalkable(goalX, goalY) {
		return nil
	}

	openSet := &PathHeap{}
	heap.Init(openSet)

	closedSet := make(map[int]bool)
	nodeMap := make(map[int]*PathNode)

	startNode := &PathNode{
		X: startX,
		Y: startY,
		H: heuristic(startX, startY, goalX, goalY),
	}
	startNode.F = startNode.G + startNode.H
	heap.Push(openSet, startNode)
	nodeMap[pf.key(startX, startY)] = startNode

	maxIterations := pf.world.Width * pf.world.Height
	iterations := 0

	for openSet.Len() > 0 && iterations < maxIterations {
		iterations++

		current := heap.Pop(openSet).(*PathNode)

		if current.X == goalX && current.Y == goalY {
			return reconstructPath(current)
		}

		closedSet[pf.key(current.X, current.Y)] = true

		for i, dir := range directions {
			nx, ny := current.X+dir[0], current.Y+dir[1]

			if !isWalkable(nx, ny) {
				continue
			}
			if closedSet[pf.key(nx, ny)] {
				continue
			}

			moveCost := straightCost
			if i%2 == 1 {
				moveCost = diagonalCost
				if !isWalkable(current.X+dir[0], current.Y) ||
					!isWalkable(current.X, current.Y+dir[1]) {
					continue
				}
			}

			g := current.G + moveCost

			neighbor, exists := nodeMap[pf.key(nx, ny)]
			if !exists {
				neighbor = &PathNode{
					X:      nx,
					Y:      ny,
					G:      g,
					H:      heuristic(nx, ny, goalX, goalY),
					Parent: current,
				}
				neighbor.F = neighbor.G + neighbor.H
				nodeMap[pf.key(nx, ny)] = neighbor
				heap.Push(openSet, neighbor)
			} else if g < neighbor.G {
				neighbor.G = g
				neighbor.F = neighbor.G + neighbor.H
				neighbor.Parent = current
				heap.Fix(openSet, neighbor.Index)
			}
		}
	}

	return nil
}

// IsWalkable checks if the footprint fits in a tile cell.
func (pf *PathFinder) IsWalkable(x, y int) bool {
	if pf == nil || !pf.inBounds(x, y) {
		return false
	}
	c := pf.world.CellCenter(x, y)
	box := math.NewRect(c.X-pf.footprint.X/2, c.Y-pf.footprint.Y/2, pf.footprint.X, pf.footprint.Y)
	return pf.world.Overlaps(box, pf.mask).Empty()
}

// heuristic calculates the estimated distance using octile distance.
func heuristic(x1, y1, x2, y2 int) float64 {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	if dx < dy {
		return float64(dx)*diagonalCost + float64(dy-dx)
	}
	return float64(dy)*diagonalCost + float64(dx-dy)
}

func (pf *PathFinder) inBounds(x, y int) bool {
	return pf.world.inCells(x, y)
}

func (pf *PathFinder) key(x, y int) int {
	return y*pf.world.Width + x
}

func reconstructPath(node *PathNode) [][2]int {
	var path [][2]int
	for node != nil {
		path = append(path, [2]int{node.X, node.Y})
		node = node.Parent
	}
	// Reverse path (it's built from goal to start)
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
