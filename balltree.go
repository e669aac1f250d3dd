package knngraph

import (
	"fmt"
	"math"
	"slices"
)

// BallTree is a static ball tree over a continuous Dataset. Each node stores
// a centroid and the radius of the smallest centroid-centered ball holding
// its points, and a query skips every ball that cannot beat the current
// k-th best distance.
//
// The tree is stored as a complete binary tree in array form:
//   - node i has children at 2*i+1 and 2*i+2
//   - idxArray[nodes[i].start:nodes[i].end] are the points under node i
//
// Unlike KDTree it does not follow additions to the dataset; call
// Reoptimize after changing the data.
type BallTree struct {
	data     *Dataset
	k        int
	metric   AxisBoundedMetric
	leafSize int

	idxArray  []int
	nodes     []ballNode
	centroids [][]float64
}

type ballNode struct {
	start, end int
	leaf       bool
	radius     float64
}

// NewBallTree builds a ball tree for k neighbors. The square root of the
// metric's distance must obey the triangle inequality, which holds for every
// AxisBoundedMetric in this package. A nil metric selects RowDistance and a
// leafSize below 1 selects DefaultMaxLeafSize. Categorical attributes and
// missing values are rejected with ErrSchemaMismatch.
func NewBallTree(data *Dataset, k int, metric Metric, leafSize int) (*BallTree, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be >= 1, got %d", ErrInvalidConfig, k)
	}
	if metric == nil {
		metric = NewRowDistance(nil)
	}
	bm, ok := metric.(AxisBoundedMetric)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a true metric", ErrSchemaMismatch, metric)
	}
	if err := requireContinuous("BallTree", data.Relation()); err != nil {
		return nil, err
	}
	if err := bm.Init(data.Relation()); err != nil {
		return nil, err
	}
	for i := 0; i < data.Rows(); i++ {
		if err := checkComplete(data.Row(i)); err != nil {
			return nil, fmt.Errorf("knngraph: row %d: %w", i, err)
		}
	}
	if leafSize < 1 {
		leafSize = DefaultMaxLeafSize
	}
	t := &BallTree{data: data, k: k, metric: bm, leafSize: leafSize}
	t.build()
	return t, nil
}

// checkComplete rejects a vector with missing values.
func checkComplete(vec []float64) error {
	if slices.ContainsFunc(vec, math.IsNaN) {
		return fmt.Errorf("%w: BallTree does not support missing values", ErrSchemaMismatch)
	}
	return nil
}

func (t *BallTree) Data() *Dataset     { return t.data }
func (t *BallTree) Len() int           { return t.data.Rows() }
func (t *BallTree) NeighborCount() int { return t.k }

// NodeCount returns the number of nodes in the tree.
func (t *BallTree) NodeCount() int {
	c := 0
	for _, nd := range t.nodes {
		if nd.end > nd.start {
			c++
		}
	}
	return c
}

func (t *BallTree) build() {
	n := t.data.Rows()
	t.idxArray = make([]int, n)
	for i := range t.idxArray {
		t.idxArray[i] = i
	}
	t.nodes = t.nodes[:0]
	t.centroids = t.centroids[:0]
	if n > 0 {
		t.buildNode(0, 0, n)
	}
}

// buildNode recursively builds the ball tree for points in idxArray[start:end].
func (t *BallTree) buildNode(id, start, end int) {
	for id >= len(t.nodes) {
		t.nodes = append(t.nodes, ballNode{})
		t.centroids = append(t.centroids, nil)
	}
	centroid := t.centroid(start, end)
	t.centroids[id] = centroid

	// Radius: max distance from centroid to any point in this node.
	var radius float64
	for _, idx := range t.idxArray[start:end] {
		radius = max(radius, math.Sqrt(t.metric.SquaredDistance(centroid, t.data.Row(idx))))
	}

	count := end - start
	if count <= t.leafSize {
		t.nodes[id] = ballNode{start: start, end: end, leaf: true, radius: radius}
		return
	}
	t.nodes[id] = ballNode{start: start, end: end, radius: radius}

	// Split at the median of the attribute with the greatest spread.
	dim := t.spreadDim(start, end)
	sub := t.idxArray[start:end]
	slices.SortFunc(sub, func(a, b int) int {
		va, vb := t.data.Row(a)[dim], t.data.Row(b)[dim]
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		}
		return a - b
	})
	mid := start + count/2
	t.buildNode(2*id+1, start, mid)
	t.buildNode(2*id+2, mid, end)
}

func (t *BallTree) centroid(start, end int) []float64 {
	c := make([]float64, t.data.Cols())
	for _, idx := range t.idxArray[start:end] {
		for d, v := range t.data.Row(idx) {
			c[d] += v
		}
	}
	count := float64(end - start)
	for d := range c {
		c[d] /= count
	}
	return c
}

func (t *BallTree) spreadDim(start, end int) int {
	best, bestSpread := 0, -1.0
	for d := 0; d < t.data.Cols(); d++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, idx := range t.idxArray[start:end] {
			v := t.data.Row(idx)[d]
			lo, hi = min(lo, v), max(hi, v)
		}
		if hi-lo > bestSpread {
			best, bestSpread = d, hi-lo
		}
	}
	return best
}

// --- queries ---

func (t *BallTree) Neighbors(index int) ([]Neighbor, error) {
	if err := checkIndex(index, t.data.Rows()); err != nil {
		return nil, err
	}
	return t.search(t.data.Row(index), index), nil
}

func (t *BallTree) NeighborsOf(vec []float64) ([]Neighbor, error) {
	if len(vec) != t.data.Cols() {
		return nil, &DimensionError{Expected: t.data.Cols(), Actual: len(vec)}
	}
	return t.search(vec, NoNeighbor), nil
}

func (t *BallTree) search(query []float64, exclude int) []Neighbor {
	best := newKBest(t.k)
	if len(t.nodes) > 0 {
		t.searchNode(0, query, exclude, best)
	}
	return best.result()
}

// minDist is a lower bound on the distance between query and any point
// under node id.
func (t *BallTree) minDist(id int, query []float64) float64 {
	d := math.Sqrt(t.metric.SquaredDistance(query, t.centroids[id])) - t.nodes[id].radius
	return max(d, 0)
}

// searchNode visits the nearer child first and skips the farther one when
// its ball cannot beat the k-th best distance.
func (t *BallTree) searchNode(id int, query []float64, exclude int, best *kBest) {
	if id >= len(t.nodes) {
		return
	}
	nd := t.nodes[id]
	if nd.end == nd.start {
		return
	}
	if nd.leaf {
		for _, idx := range t.idxArray[nd.start:nd.end] {
			if idx == exclude {
				continue
			}
			best.offer(idx, t.metric.SquaredDistance(query, t.data.Row(idx)))
		}
		return
	}

	left, right := 2*id+1, 2*id+2
	leftDist, rightDist := t.minDist(left, query), t.minDist(right, query)
	near, far, farDist := left, right, rightDist
	if rightDist < leftDist {
		near, far, farDist = right, left, leftDist
	}
	t.searchNode(near, query, exclude, best)
	if farDist*farDist <= best.worst() {
		t.searchNode(far, query, exclude, best)
	}
}

// AddCopy adds a copy of vec to the dataset and rebuilds the tree. A vector
// with missing values is rejected and the dataset is left unchanged.
func (t *BallTree) AddCopy(vec []float64) (int, error) {
	if err := checkComplete(vec); err != nil {
		return 0, err
	}
	idx, err := t.data.AddRow(vec)
	if err != nil {
		return 0, err
	}
	t.build()
	return idx, nil
}

// ReleaseVector removes point index from the dataset and rebuilds the tree.
func (t *BallTree) ReleaseVector(index int) ([]float64, error) {
	vec, err := t.data.ReleaseRow(index)
	if err != nil {
		return nil, err
	}
	t.build()
	return vec, nil
}

// Reoptimize rebuilds the tree from the current dataset.
func (t *BallTree) Reoptimize() { t.build() }
