package knngraph

import (
	"container/heap"
	"math"
	"sort"
)

// NoNeighbor marks an empty neighbor slot.
const NoNeighbor = -1

// Neighbor is one slot of a neighborhood: a point index (or NoNeighbor) and
// its squared distance from the query.
type Neighbor struct {
	Index  int
	SqDist float64
}

// Valid reports whether the slot holds a point.
func (n Neighbor) Valid() bool { return n.Index != NoNeighbor }

// SortNeighbors orders hood from least to most dissimilar, followed by any
// NoNeighbor slots. Equal distances keep their relative order.
func SortNeighbors(hood []Neighbor) {
	sort.SliceStable(hood, func(i, j int) bool {
		a, b := hood[i], hood[j]
		if !a.Valid() || !b.Valid() {
			return a.Valid() && !b.Valid()
		}
		return a.SqDist < b.SqDist
	})
}

// --- bounded k-best collector ---

type bestItem struct {
	index int
	dist  float64
	seq   int
}

// bestHeap is a max-heap on distance (largest on top). Among equal
// distances the later candidate sits higher, so it is evicted first.
type bestHeap []bestItem

func (h bestHeap) Len() int { return len(h) }
func (h bestHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist > h[j].dist
	}
	return h[i].seq > h[j].seq
}
func (h bestHeap) Swap(i, j int)  { h[i], h[j] = h[j], h[i] }
func (h *bestHeap) Push(x any)    { *h = append(*h, x.(bestItem)) }
func (h *bestHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// kBest keeps the k closest candidates offered to it.
type kBest struct {
	k    int
	seq  int
	heap bestHeap
}

func newKBest(k int) *kBest {
	return &kBest{k: k, heap: make(bestHeap, 0, k)}
}

// offer adds a candidate if it beats the current worst of the k kept. A NaN
// distance (a missing value under a metric that cannot score it) ranks as
// +Inf.
func (b *kBest) offer(index int, dist float64) {
	if math.IsNaN(dist) {
		dist = math.Inf(1)
	}
	b.seq++
	if len(b.heap) < b.k {
		heap.Push(&b.heap, bestItem{index: index, dist: dist, seq: b.seq})
		return
	}
	if b.k == 0 || dist >= b.heap[0].dist {
		return
	}
	b.heap[0] = bestItem{index: index, dist: dist, seq: b.seq}
	heap.Fix(&b.heap, 0)
}

// worst returns the k-th best distance so far, or +Inf while fewer than k
// candidates have been kept.
func (b *kBest) worst() float64 {
	if len(b.heap) < b.k || b.k == 0 {
		return math.Inf(1)
	}
	return b.heap[0].dist
}

// result returns exactly k slots sorted ascending, padding with NoNeighbor.
func (b *kBest) result() []Neighbor {
	out := make([]Neighbor, b.k)
	n := len(b.heap)
	for i := n - 1; i >= 0; i-- {
		item := heap.Pop(&b.heap).(bestItem)
		out[i] = Neighbor{Index: item.index, SqDist: item.dist}
	}
	for i := n; i < b.k; i++ {
		out[i] = Neighbor{Index: NoNeighbor, SqDist: math.Inf(1)}
	}
	return out
}
