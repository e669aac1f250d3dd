package knngraph

import (
	"container/heap"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// DefaultMaxLeafSize is the number of points a KD-tree leaf holds before it
// is split.
const DefaultMaxLeafSize = 6

// KDTree is a dynamic KD-tree over a Dataset. It supports exact k-nearest
// neighbor queries, incremental insertion and removal, and amortized
// subtree rebuilds.
//
// Nodes live in an arena and are addressed by integer handles:
//   - interior nodes split on one attribute at a pivot (the mean for a
//     continuous attribute, the most frequent value for a categorical one)
//   - leaves hold up to maxLeafSize point indices
//   - leafOf[point] is the handle of the leaf holding that point
//
// Each interior node carries a rebuild budget of size²/36+6 insertions;
// when a node's budget runs out its subtree is gathered and rebuilt.
//
// KDTree is not safe for concurrent mutation. Queries do not modify the
// tree, so concurrent queries without writers are safe.
type KDTree struct {
	data        *Dataset
	k           int
	metric      AxisBoundedMetric
	maxLeafSize int
	logger      *Logger

	nodes  []kdNode
	free   []int // released node handles
	root   int
	leafOf []int

	// missing is set once any stored point has a NaN continuous value.
	// Such a point sits on the less side of every split on that attribute
	// and is at most 1 away along it, so continuous gaps are capped at 1.
	missing bool

	rebuilds int
}

type kdNode struct {
	leaf   bool
	parent int // -1 for the root

	// leaf
	indexes []int

	// interior
	less, greaterOrEqual int
	attr                 int
	pivot                float64
	size                 int
	timeLeft             int
}

// NewKDTree builds a KD-tree over every row of data for k-neighbor
// queries. A nil metric selects RowDistance. The metric must implement
// AxisBoundedMetric, otherwise ErrSchemaMismatch is returned.
// maxLeafSize < 1 selects DefaultMaxLeafSize.
func NewKDTree(data *Dataset, k int, metric Metric, maxLeafSize int) (*KDTree, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be >= 1, got %d", ErrInvalidConfig, k)
	}
	if metric == nil {
		metric = NewRowDistance(nil)
	}
	if err := metric.Init(data.Relation()); err != nil {
		return nil, err
	}
	bounded, ok := metric.(AxisBoundedMetric)
	if !ok {
		return nil, fmt.Errorf("%w: %T cannot bound distances along axes", ErrSchemaMismatch, metric)
	}
	if maxLeafSize < 1 {
		maxLeafSize = DefaultMaxLeafSize
	}

	n := data.Rows()
	t := &KDTree{
		data:        data,
		k:           k,
		metric:      bounded,
		maxLeafSize: maxLeafSize,
		logger:      NoopLogger(),
		leafOf:      make([]int, n),
	}
	indexes := make([]int, n)
	for i := range indexes {
		indexes[i] = i
		t.missing = t.missing || slices.ContainsFunc(data.Row(i), math.IsNaN)
	}
	t.root = t.build(indexes, -1)
	return t, nil
}

// SetLogger sets the logger used to report rebuilds.
func (t *KDTree) SetLogger(l *Logger) { t.logger = orNoop(l) }

func (t *KDTree) Data() *Dataset     { return t.data }
func (t *KDTree) Len() int           { return t.data.Rows() }
func (t *KDTree) NeighborCount() int { return t.k }

// Metric returns the metric the tree measures with.
func (t *KDTree) Metric() Metric { return t.metric }

// NodeCount returns the number of live nodes.
func (t *KDTree) NodeCount() int { return len(t.nodes) - len(t.free) }

// Rebuilds returns how many subtree rebuilds have happened since construction.
func (t *KDTree) Rebuilds() int { return t.rebuilds }

// Depth returns the number of nodes on the longest root-to-leaf path.
func (t *KDTree) Depth() int { return t.depth(t.root) }

func (t *KDTree) depth(h int) int {
	nd := &t.nodes[h]
	if nd.leaf {
		return 1
	}
	return 1 + max(t.depth(nd.less), t.depth(nd.greaterOrEqual))
}

// --- construction ---

// rebuildBudget is the number of insertions an interior node covering size
// points absorbs before it becomes eligible for rebuild.
func rebuildBudget(size int) int {
	b := float64(size)*float64(size)/36 + 6
	return int(math.Min(b, math.MaxInt32))
}

func (t *KDTree) alloc(nd kdNode) int {
	if n := len(t.free); n > 0 {
		h := t.free[n-1]
		t.free = t.free[:n-1]
		t.nodes[h] = nd
		return h
	}
	t.nodes = append(t.nodes, nd)
	return len(t.nodes) - 1
}

func (t *KDTree) release(h int) {
	nd := t.nodes[h]
	if !nd.leaf {
		t.release(nd.less)
		t.release(nd.greaterOrEqual)
	}
	t.nodes[h] = kdNode{}
	t.free = append(t.free, h)
}

func (t *KDTree) newLeaf(indexes []int, parent int) int {
	own := make([]int, len(indexes), max(len(indexes), t.maxLeafSize)+1)
	copy(own, indexes)
	h := t.alloc(kdNode{leaf: true, parent: parent, indexes: own})
	for _, idx := range own {
		t.leafOf[idx] = h
	}
	return h
}

// build partitions indexes (reordering it in place) and returns the handle
// of the new subtree's root.
func (t *KDTree) build(indexes []int, parent int) int {
	count := len(indexes)
	if count <= t.maxLeafSize || t.data.Cols() == 0 {
		return t.newLeaf(indexes, parent)
	}

	attr := 0
	pivot, goodness := t.pivotAndGoodness(indexes, 0)
	for a := 1; a < t.data.Cols(); a++ {
		p, g := t.pivotAndGoodness(indexes, a)
		if g > goodness {
			attr, pivot, goodness = a, p, g
		}
	}

	lessCount := t.splitIndexes(indexes, attr, pivot)
	if lessCount == 0 || lessCount == count {
		// Every attribute is constant (or the split is one-sided): stay a leaf.
		return t.newLeaf(indexes, parent)
	}

	h := t.alloc(kdNode{
		parent:   parent,
		attr:     attr,
		pivot:    pivot,
		size:     count,
		timeLeft: rebuildBudget(count),
	})
	less := t.build(indexes[:lessCount], h)
	greaterOrEqual := t.build(indexes[lessCount:], h)
	t.nodes[h].less = less
	t.nodes[h].greaterOrEqual = greaterOrEqual
	return h
}

// pivotAndGoodness scores a split on attr. Continuous attributes use the
// mean as pivot and the scaled population variance as goodness. Categorical
// attributes use the most frequent value as pivot and the scaled entropy.
func (t *KDTree) pivotAndGoodness(indexes []int, attr int) (pivot, goodness float64) {
	scale := 1.0
	if sf := t.metric.ScaleFactors(); sf != nil {
		scale = sf[attr] * sf[attr]
	}

	if vc := t.data.Relation().ValueCount(attr); vc > 0 {
		counts := make([]float64, vc)
		for _, idx := range indexes {
			v := t.data.Row(idx)[attr]
			if v >= 0 && int(v) < vc {
				counts[int(v)]++
			}
		}
		best := 0
		for i, c := range counts {
			if c > counts[best] {
				best = i
			}
		}
		p := make([]float64, vc)
		for i, c := range counts {
			p[i] = c / float64(len(indexes))
		}
		return float64(best), stat.Entropy(p) * scale
	}

	vals := make([]float64, 0, len(indexes))
	for _, idx := range indexes {
		if v := t.data.Row(idx)[attr]; !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 0, 0
	}
	mean, variance := stat.PopMeanVariance(vals, nil)
	return mean, variance * scale
}

// splitIndexes moves the points on the "less" side of the split to the
// front of indexes and returns how many there are.
func (t *KDTree) splitIndexes(indexes []int, attr int, pivot float64) int {
	beg, end := 0, len(indexes)-1
	for beg <= end {
		if t.isGreaterOrEqual(t.data.Row(indexes[beg]), attr, pivot) {
			indexes[beg], indexes[end] = indexes[end], indexes[beg]
			end--
		} else {
			beg++
		}
	}
	return beg
}

// isGreaterOrEqual is the split predicate: value >= pivot for continuous
// attributes, value == pivot for categorical ones.
func (t *KDTree) isGreaterOrEqual(row []float64, attr int, pivot float64) bool {
	if t.data.Relation().IsContinuous(attr) {
		return row[attr] >= pivot
	}
	return int(row[attr]) == int(pivot)
}

// --- mutation ---

// AddCopy adds a copy of vec to the dataset and inserts it into the tree.
func (t *KDTree) AddCopy(vec []float64) (int, error) {
	index, err := t.data.AddRow(vec)
	if err != nil {
		return 0, err
	}
	t.leafOf = append(t.leafOf, -1)
	t.missing = t.missing || slices.ContainsFunc(vec, math.IsNaN)
	t.insert(index)
	return index, nil
}

func (t *KDTree) insert(index int) {
	row := t.data.Row(index)
	var path []int
	h := t.root
	for !t.nodes[h].leaf {
		nd := &t.nodes[h]
		if nd.timeLeft > 0 {
			nd.timeLeft--
		}
		nd.size++
		path = append(path, h)
		if t.isGreaterOrEqual(row, nd.attr, nd.pivot) {
			h = nd.greaterOrEqual
		} else {
			h = nd.less
		}
	}
	t.nodes[h].indexes = append(t.nodes[h].indexes, index)
	t.leafOf[index] = h

	if len(t.nodes[h].indexes) > t.maxLeafSize {
		t.rebuild(h)
	}

	// Deepest first: a child whose budget ran out is rebuilt unless its
	// parent is itself close to a rebuild.
	for i := len(path) - 1; i >= 1; i-- {
		child, parent := &t.nodes[path[i]], &t.nodes[path[i-1]]
		if child.timeLeft == 0 && parent.timeLeft >= parent.size/4 {
			t.rebuild(path[i])
		}
	}
	if len(path) > 0 && !t.nodes[t.root].leaf && t.nodes[t.root].timeLeft == 0 {
		t.rebuild(t.root)
	}
}

// ReleaseVector removes point index from the tree and the dataset. The
// dataset's last point moves into the freed index; the tree is updated to
// match through the leaf side table.
func (t *KDTree) ReleaseVector(index int) ([]float64, error) {
	if err := checkIndex(index, t.data.Rows()); err != nil {
		return nil, err
	}
	t.remove(index)
	last := t.data.Rows() - 1
	if index != last {
		leaf := t.leafOf[last]
		t.renameInLeaf(leaf, last, index)
		t.leafOf[index] = leaf
	}
	t.leafOf = t.leafOf[:last]
	return t.data.ReleaseRow(index)
}

func (t *KDTree) remove(index int) {
	h := t.leafOf[index]
	nd := &t.nodes[h]
	pos := slices.Index(nd.indexes, index)
	if pos < 0 {
		panic(fmt.Sprintf("knngraph: point %d missing from its leaf", index))
	}
	last := len(nd.indexes) - 1
	nd.indexes[pos] = nd.indexes[last]
	nd.indexes = nd.indexes[:last]

	for p := nd.parent; p != -1; p = t.nodes[p].parent {
		anc := &t.nodes[p]
		anc.size--
		if anc.timeLeft > 0 {
			anc.timeLeft--
		}
	}
}

func (t *KDTree) renameInLeaf(h, oldIndex, newIndex int) {
	nd := &t.nodes[h]
	pos := slices.Index(nd.indexes, oldIndex)
	if pos < 0 {
		panic(fmt.Sprintf("knngraph: point %d missing from its leaf", oldIndex))
	}
	nd.indexes[pos] = newIndex
}

// Reoptimize rebuilds the whole tree.
func (t *KDTree) Reoptimize() {
	t.rebuild(t.root)
}

// rebuild gathers every point under h and replaces the subtree with a
// freshly built one.
func (t *KDTree) rebuild(h int) {
	nd := t.nodes[h]
	want := len(nd.indexes)
	if !nd.leaf {
		want = nd.size
	}
	indexes := t.gather(h, make([]int, 0, want))
	if len(indexes) != want {
		panic(fmt.Sprintf("knngraph: rebuild gathered %d points, node size is %d", len(indexes), want))
	}

	parent := nd.parent
	isLess := parent != -1 && t.nodes[parent].less == h
	t.release(h)
	nh := t.build(indexes, parent)
	switch {
	case parent == -1:
		t.root = nh
	case isLess:
		t.nodes[parent].less = nh
	default:
		t.nodes[parent].greaterOrEqual = nh
	}
	t.rebuilds++
	t.logger.Debug("kd-tree subtree rebuilt", "points", len(indexes), "nodes", t.NodeCount())
}

func (t *KDTree) gather(h int, out []int) []int {
	nd := &t.nodes[h]
	if nd.leaf {
		return append(out, nd.indexes...)
	}
	out = t.gather(nd.less, out)
	return t.gather(nd.greaterOrEqual, out)
}

// --- queries ---

func (t *KDTree) Neighbors(index int) ([]Neighbor, error) {
	if err := checkIndex(index, t.data.Rows()); err != nil {
		return nil, err
	}
	return t.search(t.data.Row(index), index), nil
}

func (t *KDTree) NeighborsOf(vec []float64) ([]Neighbor, error) {
	if len(vec) != t.data.Cols() {
		return nil, &DimensionError{Expected: t.data.Cols(), Actual: len(vec)}
	}
	return t.search(vec, NoNeighbor), nil
}

// search is a best-first branch-and-bound traversal. Each queued node
// carries the per-attribute gaps between the query and the node's region,
// derived from the splits on the path to it, and the lower bound those
// gaps imply. Nodes are expanded in order of that bound until it reaches
// the current k-th best distance.
func (t *KDTree) search(query []float64, exclude int) []Neighbor {
	best := newKBest(t.k)
	q := &kdQueue{}
	q.push(t.root, 0, make([]float64, t.data.Cols()))

	for q.Len() > 0 {
		item := heap.Pop(q).(kdQueueItem)
		if item.minDist >= best.worst() {
			break
		}
		nd := &t.nodes[item.node]
		if nd.leaf {
			for _, idx := range nd.indexes {
				if idx == exclude {
					continue
				}
				best.offer(idx, t.metric.SquaredDistance(query, t.data.Row(idx)))
			}
			continue
		}

		lessOff, lessDist := item.offsets, item.minDist
		geOff, geDist := item.offsets, item.minDist
		if gap, side := t.splitGap(query, nd); gap > item.offsets[nd.attr] {
			off := slices.Clone(item.offsets)
			off[nd.attr] = gap
			if side {
				geOff, geDist = off, t.metric.MinSquaredDistance(off)
			} else {
				lessOff, lessDist = off, t.metric.MinSquaredDistance(off)
			}
		}
		q.push(nd.less, lessDist, lessOff)
		q.push(nd.greaterOrEqual, geDist, geOff)
	}
	return best.result()
}

// splitGap returns the minimum gap along nd's split attribute between the
// query and the child on the far side, and which child that is (true for
// greaterOrEqual).
func (t *KDTree) splitGap(query []float64, nd *kdNode) (gap float64, greaterOrEqual bool) {
	v := query[nd.attr]
	if t.data.Relation().IsContinuous(nd.attr) {
		if math.IsNaN(v) {
			return 0, false
		}
		if v >= nd.pivot {
			gap = v - nd.pivot
		} else {
			gap, greaterOrEqual = nd.pivot-v, true
		}
		if t.missing {
			gap = min(gap, 1)
		}
		return gap, greaterOrEqual
	}
	// Categorical: the child that cannot share the query's value mismatches by 1.
	if int(v) == int(nd.pivot) {
		return 1, false
	}
	return 1, true
}

type kdQueueItem struct {
	node    int
	minDist float64
	offsets []float64
	seq     int
}

// kdQueue is a min-heap on (minDist, seq).
type kdQueue struct {
	items []kdQueueItem
	seq   int
}

func (q *kdQueue) push(node int, minDist float64, offsets []float64) {
	q.seq++
	heap.Push(q, kdQueueItem{node: node, minDist: minDist, offsets: offsets, seq: q.seq})
}

func (q *kdQueue) Len() int { return len(q.items) }
func (q *kdQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.minDist != b.minDist {
		return a.minDist < b.minDist
	}
	return a.seq < b.seq
}
func (q *kdQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }
func (q *kdQueue) Push(x any)    { q.items = append(q.items, x.(kdQueueItem)) }
func (q *kdQueue) Pop() any {
	n := len(q.items)
	item := q.items[n-1]
	q.items = q.items[:n-1]
	return item
}

// checkInvariants verifies sizes, split predicates, parent links and the
// leaf side table. It is used by tests.
func (t *KDTree) checkInvariants() error {
	seen := make([]bool, t.data.Rows())
	if _, err := t.checkNode(t.root, -1, seen); err != nil {
		return err
	}
	for i, ok := range seen {
		if !ok {
			return fmt.Errorf("point %d not in any leaf", i)
		}
	}
	return nil
}

func (t *KDTree) checkNode(h, parent int, seen []bool) (int, error) {
	nd := &t.nodes[h]
	if nd.parent != parent {
		return 0, fmt.Errorf("node %d: parent %d, want %d", h, nd.parent, parent)
	}
	if nd.leaf {
		for _, idx := range nd.indexes {
			if seen[idx] {
				return 0, fmt.Errorf("point %d in more than one leaf", idx)
			}
			seen[idx] = true
			if t.leafOf[idx] != h {
				return 0, fmt.Errorf("leafOf[%d] = %d, want %d", idx, t.leafOf[idx], h)
			}
		}
		return len(nd.indexes), nil
	}
	for _, side := range []struct {
		child int
		ge    bool
	}{{nd.less, false}, {nd.greaterOrEqual, true}} {
		for _, idx := range t.gather(side.child, nil) {
			if t.isGreaterOrEqual(t.data.Row(idx), nd.attr, nd.pivot) != side.ge {
				return 0, fmt.Errorf("node %d: point %d on wrong side of split", h, idx)
			}
		}
	}
	a, err := t.checkNode(nd.less, h, seen)
	if err != nil {
		return 0, err
	}
	b, err := t.checkNode(nd.greaterOrEqual, h, seen)
	if err != nil {
		return 0, err
	}
	if a+b != nd.size {
		return 0, fmt.Errorf("node %d: size %d, leaves hold %d", h, nd.size, a+b)
	}
	return nd.size, nil
}

// MedianDistanceToNeighbor returns the median, over all rows of data, of the
// Euclidean distance to the n-th nearest neighbor. It returns 0 for n < 1.
func MedianDistanceToNeighbor(data *Dataset, n int) (float64, error) {
	if n < 1 {
		return 0, nil
	}
	tree, err := NewKDTree(data, n, nil, DefaultMaxLeafSize)
	if err != nil {
		return 0, err
	}
	vals := make([]float64, 0, data.Rows())
	for i := 0; i < data.Rows(); i++ {
		hood, err := tree.Neighbors(i)
		if err != nil {
			return 0, err
		}
		if nb := hood[n-1]; nb.Valid() {
			vals = append(vals, math.Sqrt(nb.SqDist))
		}
	}
	if len(vals) == 0 {
		return 0, fmt.Errorf("%w: no point has %d neighbors", ErrInsufficientData, n)
	}
	slices.Sort(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid], nil
	}
	return 0.5 * (vals[mid-1] + vals[mid]), nil
}
