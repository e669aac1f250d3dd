package knngraph

import (
	"fmt"
	"slices"
)

// Betweenness computes vertex and edge betweenness centrality of an
// unweighted directed graph with Brandes' algorithm: a breadth-first
// search from every source counts shortest paths, then dependencies are
// accumulated back along the search order.
type Betweenness struct {
	neighbors [][]int
	vertex    []float64
	edge      [][]float64 // edge[v][i] is the betweenness of v -> neighbors[v][i]
}

// NewBetweenness returns a graph of n vertices and no edges.
func NewBetweenness(n int) *Betweenness {
	return &Betweenness{neighbors: make([][]int, n)}
}

// NodeCount returns the number of vertices.
func (g *Betweenness) NodeCount() int { return len(g.neighbors) }

// AddDirectedEdge adds from -> to.
func (g *Betweenness) AddDirectedEdge(from, to int) {
	g.neighbors[from] = append(g.neighbors[from], to)
}

// AddDirectedEdgeIfNotDupe adds from -> to unless it is already present.
func (g *Betweenness) AddDirectedEdgeIfNotDupe(from, to int) {
	if !slices.Contains(g.neighbors[from], to) {
		g.AddDirectedEdge(from, to)
	}
}

// Compute calculates all betweenness values.
func (g *Betweenness) Compute() {
	n := len(g.neighbors)
	g.vertex = make([]float64, n)
	g.edge = make([][]float64, n)
	for v, hood := range g.neighbors {
		g.edge[v] = make([]float64, len(hood))
	}

	type pred struct{ v, neighborIndex int }
	preds := make([][]pred, n)
	sigma := make([]float64, n)
	dist := make([]float64, n)
	delta := make([]float64, n)
	stack := make([]int, 0, n)
	q := make([]int, 0, n)

	for s := 0; s < n; s++ {
		for i := range preds {
			preds[i] = preds[i][:0]
			sigma[i] = 0
			dist[i] = -1
			delta[i] = 0
		}
		sigma[s] = 1
		dist[s] = 0

		// Count shortest paths from s.
		q = append(q[:0], s)
		for len(q) > 0 {
			v := q[0]
			q = q[1:]
			stack = append(stack, v)
			for ni, w := range g.neighbors[v] {
				if dist[w] < 0 {
					q = append(q, w)
					dist[w] = dist[v] + 1
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					preds[w] = append(preds[w], pred{v, ni})
				}
			}
		}

		// Accumulate dependencies in reverse search order.
		for len(stack) > 0 {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, p := range preds[w] {
				f := (sigma[p.v] / sigma[w]) * (1 + delta[w])
				delta[p.v] += f
				g.edge[p.v][p.neighborIndex] += f
			}
			if w != s {
				g.vertex[w] += delta[w]
			}
		}
	}
}

// VertexBetweenness returns the betweenness of vertex v. Compute must have
// been called.
func (g *Betweenness) VertexBetweenness(v int) float64 { return g.vertex[v] }

// NeighborIndex returns the position of to in from's neighbor list, or -1.
func (g *Betweenness) NeighborIndex(from, to int) int {
	return slices.Index(g.neighbors[from], to)
}

// EdgeBetweennessByNeighbor returns the betweenness of the edge from v to
// its neighborIndex-th neighbor. Compute must have been called.
func (g *Betweenness) EdgeBetweennessByNeighbor(v, neighborIndex int) float64 {
	return g.edge[v][neighborIndex]
}

// EdgeBetweennessByVertex returns the betweenness of the edge a -> b.
func (g *Betweenness) EdgeBetweennessByVertex(a, b int) (float64, error) {
	i := g.NeighborIndex(a, b)
	if i < 0 {
		return 0, fmt.Errorf("knngraph: no edge from %d to %d", a, b)
	}
	return g.EdgeBetweennessByNeighbor(a, i), nil
}
