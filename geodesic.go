package knngraph

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/mat"
)

// GeodesicDistances returns the all-pairs shortest path distances through
// the neighborhood graph of t. Each valid entry is an undirected edge
// weighted by its (non-squared) distance; when both directions are present
// the shorter weight wins. The table is not modified. If some pair of
// points is not connected the error wraps ErrDisconnectedGraph.
func GeodesicDistances(t *NeighborTable) (*mat.SymDense, error) {
	n := t.Len()
	if n == 0 {
		return nil, fmt.Errorf("%w: empty neighbor table", ErrInsufficientData)
	}
	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	for i := 0; i < n; i++ {
		row, dists := t.Row(i), t.Dists(i)
		for s, j := range row {
			if !t.valid(j) || j == i {
				continue
			}
			w := math.Sqrt(dists[s])
			if e := g.WeightedEdge(int64(i), int64(j)); e != nil && e.Weight() <= w {
				continue
			}
			g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(i), simple.Node(j), w))
		}
	}

	paths := path.DijkstraAllPaths(g)
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			w := paths.Weight(int64(i), int64(j))
			if math.IsInf(w, 1) {
				return nil, fmt.Errorf("%w: no path from %d to %d", ErrDisconnectedGraph, i, j)
			}
			out.SetSym(i, j, w)
		}
	}
	return out, nil
}
