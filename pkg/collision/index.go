package collision

import (
	gomath "math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Faultbox/tilecollide/pkg/math"
)

// DefaultBucketTiles is the bucket edge, in tiles, used when no size is
// configured.
const DefaultBucketTiles = 4

// IndexOptions configures bucket geometry. Zero sizes fall back to
// DefaultBucketTiles 16-pixel tiles.
type IndexOptions struct {
	BucketWidth  float64
	BucketHeight float64
}

// BucketOptions returns options for buckets of n x n tiles.
func BucketOptions(tileW, tileH, n int) IndexOptions {
	if n <= 0 {
		n = DefaultBucketTiles
	}
	return IndexOptions{
		BucketWidth:  float64(tileW * n),
		BucketHeight: float64(tileH * n),
	}
}

type bucketKey struct {
	X, Y int
}

// bucket holds an immutable shape list that is replaced as a whole.
type bucket struct {
	shapes atomic.Pointer[[]*WorldShape]
}

func newBucket(shapes []*WorldShape) *bucket {
	b := &bucket{}
	b.shapes.Store(&shapes)
	return b
}

func (b *bucket) load() []*WorldShape {
	if b == nil {
		return nil
	}
	p := b.shapes.Load()
	if p == nil {
		return nil
	}
	return *p
}

// bucketTable maps bucket coordinates to buckets and remembers the extent
// of coordinates ever populated, so query ranges can be clamped to it.
// Buckets emptied by updates stay in the table.
type bucketTable struct {
	buckets  map[bucketKey]*bucket
	min, max bucketKey
}

func newBucketTable(size int) *bucketTable {
	return &bucketTable{buckets: make(map[bucketKey]*bucket, size)}
}

func (t *bucketTable) put(key bucketKey, b *bucket) {
	if len(t.buckets) == 0 {
		t.min, t.max = key, key
	} else {
		t.min = bucketKey{X: min(t.min.X, key.X), Y: min(t.min.Y, key.Y)}
		t.max = bucketKey{X: max(t.max.X, key.X), Y: max(t.max.Y, key.Y)}
	}
	t.buckets[key] = b
}

// clamp narrows an inclusive bucket range to the populated extent. ok is
// false when the two do not intersect.
func (t *bucketTable) clamp(x0, y0, x1, y1 int) (int, int, int, int, bool) {
	if len(t.buckets) == 0 {
		return 0, 0, 0, 0, false
	}
	x0, y0 = max(x0, t.min.X), max(y0, t.min.Y)
	x1, y1 = min(x1, t.max.X), min(y1, t.max.Y)
	return x0, y0, x1, y1, x0 <= x1 && y0 <= y1
}

// Index partitions world space into fixed-size buckets. Each bucket lists
// the shapes whose rectangle intersects it. Queries only visit the buckets
// covering their region.
//
// Reads are lock-free. Updates are serialized by an internal mutex and
// publish each changed bucket with a single atomic store, so a reader sees
// either the old or the new list of any given bucket.
type Index struct {
	bucketW float64
	bucketH float64

	table atomic.Pointer[bucketTable]

	// Writer-side bookkeeping, guarded by mu. Readers never touch it.
	mu         sync.Mutex
	shapes     map[ShapeID]*WorldShape
	byInstance map[InstanceID][]ShapeID
	nextID     ShapeID
}

// NewIndex builds an index over the given shapes. Shapes get ids in input
// order starting at 1.
func NewIndex(shapes []WorldShape, opts IndexOptions) *Index {
	if opts.BucketWidth <= 0 {
		opts.BucketWidth = 16 * DefaultBucketTiles
	}
	if opts.BucketHeight <= 0 {
		opts.BucketHeight = 16 * DefaultBucketTiles
	}

	idx := &Index{
		bucketW:    opts.BucketWidth,
		bucketH:    opts.BucketHeight,
		shapes:     make(map[ShapeID]*WorldShape, len(shapes)),
		byInstance: make(map[InstanceID][]ShapeID),
	}

	lists := make(map[bucketKey][]*WorldShape)
	for i := range shapes {
		s := idx.register(shapes[i])
		idx.eachBucket(s.Rect, func(key bucketKey) {
			lists[key] = append(lists[key], s)
		})
	}

	table := newBucketTable(len(lists))
	for key, list := range lists {
		table.put(key, newBucket(list))
	}
	idx.table.Store(table)
	return idx
}

// register assigns an id and records provenance. Caller holds mu or owns
// the index exclusively.
func (idx *Index) register(s WorldShape) *WorldShape {
	idx.nextID++
	s.ID = idx.nextID
	stored := &s
	idx.shapes[s.ID] = stored
	for _, p := range s.Parts {
		ids := idx.byInstance[p.Instance]
		if len(ids) == 0 || ids[len(ids)-1] != s.ID {
			idx.byInstance[p.Instance] = append(ids, s.ID)
		}
	}
	return stored
}

func (idx *Index) unregister(s *WorldShape) {
	delete(idx.shapes, s.ID)
	for _, p := range s.Parts {
		ids := idx.byInstance[p.Instance]
		kept := ids[:0]
		for _, id := range ids {
			if id != s.ID {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(idx.byInstance, p.Instance)
		} else {
			idx.byInstance[p.Instance] = kept
		}
	}
}

// BucketSize returns the bucket width and height in pixels.
func (idx *Index) BucketSize() (float64, float64) {
	return idx.bucketW, idx.bucketH
}

// bucketRange returns the inclusive bucket coordinates covered by r under
// the half-open rule. A zero extent covers the bucket of its coordinate.
func (idx *Index) bucketRange(r math.Rect) (x0, y0, x1, y1 int) {
	x0, x1 = spanBuckets(r.X, r.MaxX(), idx.bucketW)
	y0, y1 = spanBuckets(r.Y, r.MaxY(), idx.bucketH)
	return x0, y0, x1, y1
}

func spanBuckets(lo, hi, size float64) (int, int) {
	first := int(gomath.Floor(lo / size))
	if hi <= lo {
		return first, first
	}
	last := int(gomath.Ceil(hi/size)) - 1
	if last < first {
		last = first
	}
	return first, last
}

// closedRange covers every bucket that can hold a shape whose closed
// rectangle touches r, including shapes ending exactly on r's min edges or
// starting exactly on its max edges. Sweeps use it so flush contacts are
// found in both directions.
func (idx *Index) closedRange(r math.Rect) (x0, y0, x1, y1 int) {
	x0 = int(gomath.Ceil(r.X/idx.bucketW)) - 1
	y0 = int(gomath.Ceil(r.Y/idx.bucketH)) - 1
	x1 = int(gomath.Floor(r.MaxX() / idx.bucketW))
	y1 = int(gomath.Floor(r.MaxY() / idx.bucketH))
	return x0, y0, x1, y1
}

func (idx *Index) eachBucket(r math.Rect, fn func(bucketKey)) {
	x0, y0, x1, y1 := idx.bucketRange(r)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			fn(bucketKey{X: x, Y: y})
		}
	}
}

// firstVisit reports whether bucket (bx, by) is the first bucket in scan
// order shared by s and a query whose range starts at (qx0, qy0). Each
// candidate is reported from exactly one bucket without a seen-set.
func (idx *Index) firstVisit(s *WorldShape, bx, by, qx0, qy0 int) bool {
	sx0, sy0, _, _ := idx.bucketRange(s.Rect)
	return max(sx0, qx0) == bx && max(sy0, qy0) == by
}

// visit calls fn once for every shape stored in the buckets of the
// inclusive range. fn returns false to stop early. The range is clamped to
// the populated extent first, so a huge query costs no more than the map.
func (idx *Index) visit(x0, y0, x1, y1 int, fn func(s *WorldShape) bool) {
	table := idx.table.Load()
	x0, y0, x1, y1, ok := table.clamp(x0, y0, x1, y1)
	if !ok {
		return
	}
	for by := y0; by <= y1; by++ {
		for bx := x0; bx <= x1; bx++ {
			b, ok := table.buckets[bucketKey{X: bx, Y: by}]
			if !ok {
				continue
			}
			for _, s := range b.load() {
				if !idx.firstVisit(s, bx, by, x0, y0) {
					continue
				}
				if !fn(s) {
					return
				}
			}
		}
	}
}

// neighbours calls fn for every stored shape whose closed rectangle touches
// r. Caller holds mu.
func (idx *Index) neighbours(r math.Rect, fn func(*WorldShape)) {
	table := idx.table.Load()
	x0, y0, x1, y1, ok := table.clamp(idx.closedRange(r))
	if !ok {
		return
	}
	for by := y0; by <= y1; by++ {
		for bx := x0; bx <= x1; bx++ {
			for _, s := range table.buckets[bucketKey{X: bx, Y: by}].load() {
				o := s.Rect
				if o.X <= r.MaxX() && r.X <= o.MaxX() && o.Y <= r.MaxY() && r.Y <= o.MaxY() {
					fn(s)
				}
			}
		}
	}
}

// UpdateStats describes the effect of one Update.
type UpdateStats struct {
	Removed int
	Added   int
	Buckets int
}

// Update replaces the shapes contributed by the removed instances and adds
// the given unmerged shapes. Merged shapes that contain a removed instance,
// or that touch an added shape of the same tag, are dissolved into their
// remaining parts and merged again together with the added shapes. Only
// buckets whose lists change are rewritten.
//
// Instances without shapes are ignored; tracking which instances exist is
// the caller's job (see Map).
func (idx *Index) Update(removed []InstanceID, added []WorldShape) UpdateStats {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	removedSet := make(map[InstanceID]bool, len(removed))
	dissolved := make(map[ShapeID]*WorldShape)
	for _, id := range removed {
		removedSet[id] = true
		for _, sid := range idx.byInstance[id] {
			dissolved[sid] = idx.shapes[sid]
		}
	}

	// Same-tag shapes touching an added shape are merged again with it.
	for i := range added {
		a := &added[i]
		idx.neighbours(a.Rect, func(s *WorldShape) {
			if s.Tag == a.Tag {
				dissolved[s.ID] = s
			}
		})
	}

	old := make([]*WorldShape, 0, len(dissolved))
	for _, s := range dissolved {
		old = append(old, s)
	}
	sort.Slice(old, func(i, j int) bool { return old[i].ID < old[j].ID })

	var pieces []WorldShape
	for _, s := range old {
		for _, p := range s.Parts {
			if removedSet[p.Instance] {
				continue
			}
			pieces = append(pieces, WorldShape{Rect: p.Rect, Tag: s.Tag, Parts: []Part{p}})
		}
	}
	pieces = append(pieces, added...)
	merged := Merge(pieces)

	for _, s := range old {
		idx.unregister(s)
	}
	fresh := make([]*WorldShape, 0, len(merged))
	for i := range merged {
		fresh = append(fresh, idx.register(merged[i]))
	}

	additions := make(map[bucketKey][]*WorldShape)
	touched := make(map[bucketKey]bool)
	for _, s := range old {
		idx.eachBucket(s.Rect, func(key bucketKey) { touched[key] = true })
	}
	for _, s := range fresh {
		idx.eachBucket(s.Rect, func(key bucketKey) {
			touched[key] = true
			additions[key] = append(additions[key], s)
		})
	}

	idx.publish(touched, dissolved, additions)

	return UpdateStats{Removed: len(old), Added: len(fresh), Buckets: len(touched)}
}

// publish stages the new list of every touched bucket, then makes them
// visible. Buckets that did not exist yet are added by swapping in a copy of
// the table; existing buckets are swapped individually.
func (idx *Index) publish(touched map[bucketKey]bool, dissolved map[ShapeID]*WorldShape, additions map[bucketKey][]*WorldShape) {
	table := idx.table.Load()

	staged := make(map[bucketKey][]*WorldShape, len(touched))
	needsNewTable := false
	for key := range touched {
		b, exists := table.buckets[key]
		if !exists {
			needsNewTable = true
		}
		current := b.load()
		next := make([]*WorldShape, 0, len(current)+len(additions[key]))
		for _, s := range current {
			if _, gone := dissolved[s.ID]; !gone {
				next = append(next, s)
			}
		}
		next = append(next, additions[key]...)
		staged[key] = next
	}

	if needsNewTable {
		grown := newBucketTable(len(table.buckets) + len(staged))
		for key, b := range table.buckets {
			grown.put(key, b)
		}
		for key, list := range staged {
			if _, exists := table.buckets[key]; !exists {
				grown.put(key, newBucket(list))
			}
		}
		idx.table.Store(grown)
	}

	for key, list := range staged {
		if b, exists := table.buckets[key]; exists {
			l := list
			b.shapes.Store(&l)
		}
	}
}

// Shapes returns a snapshot of every stored shape ordered by origin.
func (idx *Index) Shapes() []*WorldShape {
	idx.mu.Lock()
	out := make([]*WorldShape, 0, len(idx.shapes))
	for _, s := range idx.shapes {
		out = append(out, s)
	}
	idx.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return shapeLess(out[i], out[j]) })
	return out
}

// Len returns the number of stored shapes.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.shapes)
}

// IndexStats summarizes bucket occupancy.
type IndexStats struct {
	Shapes       int
	Parts        int // unmerged shapes the stored shapes cover
	Buckets      int
	MaxPerBucket int
	AvgPerBucket float64
	BucketWidth  float64
	BucketHeight float64
}

// Stats reports occupancy over non-empty buckets.
func (idx *Index) Stats() IndexStats {
	st := IndexStats{
		BucketWidth:  idx.bucketW,
		BucketHeight: idx.bucketH,
	}
	idx.mu.Lock()
	st.Shapes = len(idx.shapes)
	for _, s := range idx.shapes {
		st.Parts += len(s.Parts)
	}
	idx.mu.Unlock()

	total := 0
	for _, b := range idx.table.Load().buckets {
		n := len(b.load())
		if n == 0 {
			continue
		}
		st.Buckets++
		total += n
		if n > st.MaxPerBucket {
			st.MaxPerBucket = n
		}
	}
	if st.Buckets > 0 {
		st.AvgPerBucket = float64(total) / float64(st.Buckets)
	}
	return st
}

// ChooseBucketTiles picks the largest power-of-two bucket edge, from 16 down
// to 1 tiles, whose average occupancy over non-empty buckets stays at or
// below target. The average depends on shape density, not map size.
func ChooseBucketTiles(shapes []WorldShape, tileW, tileH, target int) int {
	if target <= 0 {
		target = 8
	}
	for n := 16; n > 1; n /= 2 {
		probe := &Index{bucketW: float64(tileW * n), bucketH: float64(tileH * n)}
		counts := make(map[bucketKey]int)
		total := 0
		for i := range shapes {
			probe.eachBucket(shapes[i].Rect, func(key bucketKey) {
				counts[key]++
				total++
			})
		}
		if len(counts) == 0 || float64(total)/float64(len(counts)) <= float64(target) {
			return n
		}
	}
	return 1
}
