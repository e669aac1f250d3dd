package knngraph

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func collectCycles(g *AtomicCycleFinder) [][]int {
	var cycles [][]int
	g.Compute(func(cycle []int) bool {
		cycles = append(cycles, slices.Clone(cycle))
		return true
	})
	return cycles
}

// assertClosed checks that consecutive cycle vertices (and the last and
// first) are adjacent.
func assertClosed(t *testing.T, g *AtomicCycleFinder, cycle []int) {
	t.Helper()
	for i, a := range cycle {
		b := cycle[(i+1)%len(cycle)]
		assert.Contains(t, g.neighbors[a], b, "cycle %v: %d and %d are not adjacent", cycle, a, b)
	}
}

func TestAtomicCycleFinder_ThreeCycles(t *testing.T) {
	g := NewAtomicCycleFinder(8)
	for _, e := range [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 5}, {5, 6}, {6, 7}, {7, 0}, {0, 4}, {7, 5}} {
		g.AddEdge(e[0], e[1])
	}
	assert.Equal(t, 8, g.NodeCount())

	cycles := collectCycles(g)
	lengths := map[int]int{}
	for _, c := range cycles {
		lengths[len(c)]++
		assertClosed(t, g, c)
	}
	assert.Equal(t, map[int]int{3: 1, 4: 1, 5: 1}, lengths)
}

func TestAtomicCycleFinder_Tree(t *testing.T) {
	g := NewAtomicCycleFinder(5)
	g.AddEdge(0, 1)
	g.AddEdge(0, 2)
	g.AddEdge(2, 3)
	g.AddEdge(2, 4)
	assert.Empty(t, collectCycles(g))
}

func TestAtomicCycleFinder_EveryComponent(t *testing.T) {
	// Two disjoint triangles; the second does not contain vertex 0.
	g := NewAtomicCycleFinder(6)
	for _, e := range [][2]int{{0, 1}, {1, 2}, {2, 0}, {3, 4}, {4, 5}, {5, 3}} {
		g.AddEdge(e[0], e[1])
	}
	cycles := collectCycles(g)
	assert.Len(t, cycles, 2)
}

func TestAtomicCycleFinder_Stop(t *testing.T) {
	g := NewAtomicCycleFinder(6)
	for _, e := range [][2]int{{0, 1}, {1, 2}, {2, 0}, {3, 4}, {4, 5}, {5, 3}} {
		g.AddEdge(e[0], e[1])
	}
	calls := 0
	finished := g.Compute(func([]int) bool {
		calls++
		return false
	})
	assert.False(t, finished)
	assert.Equal(t, 1, calls)
}

func TestAtomicCycleFinder_NoDupes(t *testing.T) {
	g := NewAtomicCycleFinder(3)
	g.AddEdgeIfNotDupe(0, 1)
	g.AddEdgeIfNotDupe(1, 0)
	g.AddEdgeIfNotDupe(0, 1)
	assert.Equal(t, []int{1}, g.neighbors[0])
	assert.Equal(t, []int{0}, g.neighbors[1])
}

func TestAtomicCycleFinder_Grid(t *testing.T) {
	tbl, _ := gridWithShortcuts(t)
	g := AtomicCycleFinderFromTable(tbl)
	big := 0
	for _, c := range collectCycles(g) {
		assertClosed(t, g, c)
		if len(c) >= gridH {
			big++
		}
	}
	assert.Greater(t, big, 0, "the shortcuts close big cycles")
}
