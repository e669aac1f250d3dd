package knngraph

import (
	"slices"

	"github.com/bits-and-blooms/bitset"
)

// AtomicCycleFinder detects atomic (chordless, non-decomposable) cycles in
// an undirected graph.
//
// An outer breadth-first search marks vertices visited and edges crossed.
// Each time it meets an uncrossed edge (a, b) whose far end b is already
// visited, an inner breadth-first search restricted to crossed edges finds
// the shortest path from b back to a. That path closed by (a, b) is an
// atomic cycle. Cost is O(E·(V+E)) in the worst case; neighborhood graphs
// have degree about k, so this stays manageable.
type AtomicCycleFinder struct {
	neighbors [][]int
	// mirrors[a][i] is the position of a in the neighbor list of neighbors[a][i].
	mirrors [][]int
}

// NewAtomicCycleFinder returns a finder over n vertices and no edges.
func NewAtomicCycleFinder(n int) *AtomicCycleFinder {
	return &AtomicCycleFinder{
		neighbors: make([][]int, n),
		mirrors:   make([][]int, n),
	}
}

// AtomicCycleFinderFromTable builds the bidirectional graph of a neighbor
// table.
func AtomicCycleFinderFromTable(t *NeighborTable) *AtomicCycleFinder {
	g := NewAtomicCycleFinder(t.Len())
	for i := 0; i < t.Len(); i++ {
		for _, j := range t.Row(i) {
			if t.valid(j) && j != i {
				g.AddEdgeIfNotDupe(i, j)
			}
		}
	}
	return g
}

// NodeCount returns the number of vertices.
func (g *AtomicCycleFinder) NodeCount() int { return len(g.neighbors) }

// AddEdge adds the undirected edge (a, b).
func (g *AtomicCycleFinder) AddEdge(a, b int) {
	aSize, bSize := len(g.neighbors[a]), len(g.neighbors[b])
	g.neighbors[a] = append(g.neighbors[a], b)
	g.mirrors[a] = append(g.mirrors[a], bSize)
	g.neighbors[b] = append(g.neighbors[b], a)
	g.mirrors[b] = append(g.mirrors[b], aSize)
}

// AddEdgeIfNotDupe adds (a, b) unless it is already present.
func (g *AtomicCycleFinder) AddEdgeIfNotDupe(a, b int) {
	if len(g.neighbors[a]) < len(g.neighbors[b]) {
		if slices.Contains(g.neighbors[a], b) {
			return
		}
	} else if slices.Contains(g.neighbors[b], a) {
		return
	}
	g.AddEdge(a, b)
}

// Compute reports every atomic cycle to onCycle as a sequence of vertices
// where consecutive vertices (and the last and first) are adjacent.
// onCycle returns false to stop the search. Compute returns false if it
// was stopped, true if the whole graph was searched. Every connected
// component is searched.
func (g *AtomicCycleFinder) Compute(onCycle func(cycle []int) bool) bool {
	n := len(g.neighbors)
	edgeStarts := make([]int, n)
	edgeCount := 0
	for i, hood := range g.neighbors {
		edgeStarts[i] = edgeCount
		edgeCount += len(hood)
	}

	visited := bitset.New(uint(n))
	crossed := bitset.New(uint(edgeCount))
	visited2 := bitset.New(uint(n))
	prevs := make([]int, n)
	var q, q2 []int

	for seed := 0; seed < n; seed++ {
		if visited.Test(uint(seed)) {
			continue
		}
		visited.Set(uint(seed))
		q = append(q[:0], seed)
		for len(q) > 0 {
			a := q[0]
			q = q[1:]
			for index, b := range g.neighbors[a] {
				// The edge may already be flagged through its mirror.
				if crossed.Test(uint(edgeStarts[a] + index)) {
					continue
				}
				if visited.Test(uint(b)) {
					// Find the shortest path from b to a over crossed edges only.
					visited2.ClearAll()
					visited2.Set(uint(b))
					prevs[b] = -1
					q2 = append(q2[:0], b)
				inner:
					for len(q2) > 0 {
						a2 := q2[0]
						q2 = q2[1:]
						for index2, b2 := range g.neighbors[a2] {
							if !crossed.Test(uint(edgeStarts[a2]+index2)) || visited2.Test(uint(b2)) {
								continue
							}
							visited2.Set(uint(b2))
							prevs[b2] = a2
							if b2 == a {
								var cycle []int
								i := b2
								for prevs[i] != -1 {
									cycle = append(cycle, i)
									i = prevs[i]
								}
								if i != b {
									panic("knngraph: atomic cycle does not close")
								}
								cycle = append(cycle, i)
								if !onCycle(cycle) {
									return false
								}
								break inner
							}
							q2 = append(q2, b2)
						}
					}
				} else {
					visited.Set(uint(b))
					q = append(q, b)
				}
				crossed.Set(uint(edgeStarts[a] + index))
				crossed.Set(uint(edgeStarts[b] + g.mirrors[a][index]))
			}
		}
	}
	return true
}
