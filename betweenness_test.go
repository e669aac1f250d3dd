package knngraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoTriangles is 0-1-2 and 3-4-5 joined by the bridge 2-3.
func twoTriangles() *Betweenness {
	g := NewBetweenness(6)
	for _, e := range [][2]int{{0, 1}, {1, 2}, {0, 2}, {2, 3}, {3, 4}, {4, 5}, {3, 5}} {
		g.AddDirectedEdge(e[0], e[1])
		g.AddDirectedEdge(e[1], e[0])
	}
	g.Compute()
	return g
}

func TestBetweenness_EdgeByNeighbor(t *testing.T) {
	g := twoTriangles()
	tests := []struct {
		v, i int
		want float64
	}{
		{0, 0, 1}, // 0 -> 1
		{0, 1, 4}, // 0 -> 2
		{2, 0, 4}, // 2 -> 1
		{2, 1, 4}, // 2 -> 0
		{2, 2, 9}, // 2 -> 3, the bridge
		{5, 0, 1}, // 5 -> 4
		{5, 1, 4}, // 5 -> 3
	}
	for _, tt := range tests {
		if got := g.EdgeBetweennessByNeighbor(tt.v, tt.i); !almostEqual(got, tt.want, floatTol) {
			t.Errorf("EdgeBetweennessByNeighbor(%d, %d) = %v, want %v", tt.v, tt.i, got, tt.want)
		}
	}
}

func TestBetweenness_EdgeByVertex(t *testing.T) {
	g := twoTriangles()
	d, err := g.EdgeBetweennessByVertex(3, 2)
	require.NoError(t, err)
	assert.InDelta(t, 9.0, d, floatTol)

	_, err = g.EdgeBetweennessByVertex(0, 5)
	assert.Error(t, err)
	assert.Equal(t, -1, g.NeighborIndex(0, 5))
}

func TestBetweenness_Vertex(t *testing.T) {
	g := twoTriangles()
	// Every ordered pair across the bridge passes through 2 and 3.
	assert.InDelta(t, 12.0, g.VertexBetweenness(2), floatTol)
	assert.InDelta(t, 12.0, g.VertexBetweenness(3), floatTol)
	assert.InDelta(t, 0.0, g.VertexBetweenness(0), floatTol)
	assert.InDelta(t, 0.0, g.VertexBetweenness(4), floatTol)
}

func TestBetweenness_SplitPaths(t *testing.T) {
	// A 4-cycle: the two shortest paths between opposite corners split.
	g := NewBetweenness(4)
	for _, e := range [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}} {
		g.AddDirectedEdgeIfNotDupe(e[0], e[1])
		g.AddDirectedEdgeIfNotDupe(e[1], e[0])
		g.AddDirectedEdgeIfNotDupe(e[1], e[0])
	}
	assert.Equal(t, 4, g.NodeCount())
	g.Compute()
	// Edge 0 -> 1 carries 0->1 fully and half of 0->2 and 3->1.
	d, err := g.EdgeBetweennessByVertex(0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, d, floatTol)
	assert.InDelta(t, 1.0, g.VertexBetweenness(1), floatTol)
}
