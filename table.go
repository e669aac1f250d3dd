package knngraph

import (
	"iter"
	"slices"
)

// NeighborTable is an n × k table of neighbor indices and squared
// distances. Slot j of row i holds i's j-th neighbor or NoNeighbor.
// An edge (i, j) of the neighborhood graph exists when j appears in row i;
// the graph algorithms treat edges as bidirectional.
type NeighborTable struct {
	n, k  int
	idx   []int
	dists []float64
}

// NewNeighborTable returns an n × k table with every slot empty.
func NewNeighborTable(n, k int) *NeighborTable {
	t := &NeighborTable{
		n:     n,
		k:     k,
		idx:   make([]int, n*k),
		dists: make([]float64, n*k),
	}
	for i := range t.idx {
		t.idx[i] = NoNeighbor
	}
	return t
}

// NeighborTableFromRows builds a table from per-point index rows; all
// distances are zero. Rows shorter than k are padded with NoNeighbor.
func NeighborTableFromRows(k int, rows [][]int) *NeighborTable {
	t := NewNeighborTable(len(rows), k)
	for i, row := range rows {
		copy(t.Row(i), row)
	}
	return t
}

// Len returns n.
func (t *NeighborTable) Len() int { return t.n }

// K returns the number of slots per row.
func (t *NeighborTable) K() int { return t.k }

// Row returns the neighbor indices of point i. The slice aliases the table.
func (t *NeighborTable) Row(i int) []int { return t.idx[i*t.k : (i+1)*t.k] }

// Dists returns the squared distances of point i. The slice aliases the table.
func (t *NeighborTable) Dists(i int) []float64 { return t.dists[i*t.k : (i+1)*t.k] }

// SetRow stores hood as row i. hood must have exactly k slots.
func (t *NeighborTable) SetRow(i int, hood []Neighbor) {
	row, d := t.Row(i), t.Dists(i)
	for j, nb := range hood {
		row[j] = nb.Index
		d[j] = nb.SqDist
	}
}

// Neighbors returns row i as Neighbor slots.
func (t *NeighborTable) Neighbors(i int) []Neighbor {
	row, d := t.Row(i), t.Dists(i)
	out := make([]Neighbor, t.k)
	for j := range out {
		out[j] = Neighbor{Index: row[j], SqDist: d[j]}
	}
	return out
}

// SortRow sorts row i ascending by distance with empty slots last.
func (t *NeighborTable) SortRow(i int) {
	hood := t.Neighbors(i)
	SortNeighbors(hood)
	t.SetRow(i, hood)
}

// Slot returns the position of neighbor j in row i, or -1.
func (t *NeighborTable) Slot(i, j int) int {
	return slices.Index(t.Row(i), j)
}

// Cut replaces neighbor j in row i with NoNeighbor and returns the slot, or
// -1 if j was not in the row.
func (t *NeighborTable) Cut(i, j int) int {
	s := t.Slot(i, j)
	if s >= 0 {
		t.Row(i)[s] = NoNeighbor
	}
	return s
}

// ValidCount returns how many slots of row i hold a point.
func (t *NeighborTable) ValidCount(i int) int {
	c := 0
	for _, j := range t.Row(i) {
		if t.valid(j) {
			c++
		}
	}
	return c
}

// EdgeCount returns the number of valid directed entries.
func (t *NeighborTable) EdgeCount() int {
	c := 0
	for _, j := range t.idx {
		if t.valid(j) {
			c++
		}
	}
	return c
}

// Edges yields every valid entry as a (point, neighbor) pair, row by row.
func (t *NeighborTable) Edges() iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		for i := 0; i < t.n; i++ {
			for _, j := range t.Row(i) {
				if t.valid(j) && !yield(i, j) {
					return
				}
			}
		}
	}
}

// Clone returns a deep copy.
func (t *NeighborTable) Clone() *NeighborTable {
	return &NeighborTable{n: t.n, k: t.k, idx: slices.Clone(t.idx), dists: slices.Clone(t.dists)}
}

func (t *NeighborTable) valid(j int) bool { return j >= 0 && j < t.n }

// adjacency returns the bidirectional closure of the table, without
// duplicates or self-loops.
func (t *NeighborTable) adjacency() [][]int {
	adj := make([][]int, t.n)
	for i := 0; i < t.n; i++ {
		for _, j := range t.Row(i) {
			if !t.valid(j) || j == i {
				continue
			}
			if !slices.Contains(adj[i], j) {
				adj[i] = append(adj[i], j)
				adj[j] = append(adj[j], i)
			}
		}
	}
	return adj
}
