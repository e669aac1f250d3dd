package knngraph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Construction tests ---

func TestKDTree_Construction_BasicProperties(t *testing.T) {
	ds := randomDataset(t, 100, 3, 1)
	tree, err := NewKDTree(ds, 5, EuclideanMetric{}, 4)
	require.NoError(t, err)

	assert.Equal(t, 100, tree.Len())
	assert.Equal(t, 5, tree.NeighborCount())
	assert.Greater(t, tree.NodeCount(), 1)
	assert.Greater(t, tree.Depth(), 1)
	require.NoError(t, tree.checkInvariants())
}

func TestKDTree_Construction_LeafSizeLargerThanN(t *testing.T) {
	ds := randomDataset(t, 5, 2, 2)
	tree, err := NewKDTree(ds, 2, nil, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, tree.NodeCount())
	assert.Equal(t, 1, tree.Depth())
}

func TestKDTree_Construction_AllSamePoints(t *testing.T) {
	rows := make([][]float64, 30)
	for i := range rows {
		rows[i] = []float64{1, 1}
	}
	ds, err := DatasetFromRows(NewUniformRelation(2), rows)
	require.NoError(t, err)
	tree, err := NewKDTree(ds, 3, nil, 2)
	require.NoError(t, err)

	// No split separates identical points, so the tree degrades to a leaf.
	assert.Equal(t, 1, tree.NodeCount())
	hood, err := tree.Neighbors(0)
	require.NoError(t, err)
	for _, nb := range hood {
		assert.True(t, nb.Valid())
		assert.Equal(t, 0.0, nb.SqDist)
	}
}

func TestKDTree_Construction_Empty(t *testing.T) {
	tree, err := NewKDTree(NewDataset(NewUniformRelation(2)), 3, nil, 0)
	require.NoError(t, err)
	hood, err := tree.NeighborsOf([]float64{0, 0})
	require.NoError(t, err)
	for _, nb := range hood {
		assert.False(t, nb.Valid())
	}
}

func TestKDTree_RejectsUnboundedMetric(t *testing.T) {
	_, err := NewKDTree(randomDataset(t, 10, 2, 3), 2, CosineMetric{}, 0)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestKDTree_RejectsBadK(t *testing.T) {
	_, err := NewKDTree(randomDataset(t, 10, 2, 3), 0, nil, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// --- Query tests ---

func requireSameDistances(t *testing.T, want, got []Neighbor) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		require.Equal(t, want[i].Valid(), got[i].Valid(), "slot %d", i)
		if want[i].Valid() {
			require.InDelta(t, want[i].SqDist, got[i].SqDist, 1e-12, "slot %d", i)
		}
	}
}

func TestKDTree_KNN_BruteForceMatch(t *testing.T) {
	metrics := []Metric{nil, EuclideanMetric{}, ManhattanMetric{}, ChebyshevMetric{}, MinkowskiMetric{P: 3}}
	for _, m := range metrics {
		ds := randomDataset(t, 300, 4, 11)
		tree, err := NewKDTree(ds, 7, m, 0)
		require.NoError(t, err)
		bf, err := NewBruteForce(ds, 7, tree.Metric())
		require.NoError(t, err)

		for i := 0; i < ds.Rows(); i++ {
			want, err := bf.Neighbors(i)
			require.NoError(t, err)
			got, err := tree.Neighbors(i)
			require.NoError(t, err)
			require.Equal(t, want, got, "%T point %d", m, i)
		}
	}
}

func TestKDTree_KNN_Categorical(t *testing.T) {
	ds := mixedDataset(t, 250, 5)
	tree, err := NewKDTree(ds, 6, nil, 3)
	require.NoError(t, err)
	require.NoError(t, tree.checkInvariants())
	bf, err := NewBruteForce(ds, 6, nil)
	require.NoError(t, err)

	for i := 0; i < ds.Rows(); i++ {
		want, err := bf.Neighbors(i)
		require.NoError(t, err)
		got, err := tree.Neighbors(i)
		require.NoError(t, err)
		requireSameDistances(t, want, got)
	}
}

func TestKDTree_KNN_MissingValues(t *testing.T) {
	rows := randomRows(200, 2, 23)
	for i, row := range rows {
		row[0] *= 10
		row[1] *= 10
		if i%17 == 0 {
			row[i%2] = math.NaN()
		}
	}
	ds, err := DatasetFromRows(NewUniformRelation(2), rows)
	require.NoError(t, err)
	tree, err := NewKDTree(ds, 5, nil, 0)
	require.NoError(t, err)
	bf, err := NewBruteForce(ds, 5, nil)
	require.NoError(t, err)
	for i := 0; i < ds.Rows(); i++ {
		want, _ := bf.Neighbors(i)
		got, _ := tree.Neighbors(i)
		requireSameDistances(t, want, got)
	}
}

func TestKDTree_KNN_Scaled(t *testing.T) {
	ds := randomDataset(t, 200, 3, 17)
	m := NewRowDistance([]float64{5, 1, 0.1})
	tree, err := NewKDTree(ds, 4, m, 0)
	require.NoError(t, err)
	bf, err := NewBruteForce(ds, 4, m)
	require.NoError(t, err)
	for i := 0; i < ds.Rows(); i++ {
		want, _ := bf.Neighbors(i)
		got, _ := tree.Neighbors(i)
		requireSameDistances(t, want, got)
	}
}

func TestKDTree_KNN_KGreaterThanN(t *testing.T) {
	ds := randomDataset(t, 4, 2, 19)
	tree, err := NewKDTree(ds, 6, nil, 1)
	require.NoError(t, err)
	hood, err := tree.Neighbors(2)
	require.NoError(t, err)
	require.Len(t, hood, 6)
	valid := 0
	for _, nb := range hood {
		if nb.Valid() {
			valid++
			assert.NotEqual(t, 2, nb.Index, "a point is never its own neighbor")
		}
	}
	assert.Equal(t, 3, valid)
	assert.True(t, math.IsInf(hood[5].SqDist, 1))
}

func TestKDTree_NeighborsOf(t *testing.T) {
	ds := randomDataset(t, 150, 2, 23)
	tree, err := NewKDTree(ds, 5, nil, 0)
	require.NoError(t, err)
	bf, err := NewBruteForce(ds, 5, nil)
	require.NoError(t, err)

	for _, q := range randomRows(20, 2, 29) {
		want, err := bf.NeighborsOf(q)
		require.NoError(t, err)
		got, err := tree.NeighborsOf(q)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = tree.NeighborsOf([]float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestKDTree_Neighbors_OutOfRange(t *testing.T) {
	tree, err := NewKDTree(randomDataset(t, 10, 2, 31), 3, nil, 0)
	require.NoError(t, err)
	_, err = tree.Neighbors(10)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = tree.Neighbors(-1)
	var idxErr *IndexError
	assert.ErrorAs(t, err, &idxErr)
}

// --- Mutation tests ---

func TestKDTree_InsertRemove_RoundTrip(t *testing.T) {
	ds := randomDataset(t, 120, 3, 37)
	tree, err := NewKDTree(ds, 5, nil, 0)
	require.NoError(t, err)

	before := make([][]Neighbor, ds.Rows())
	for i := range before {
		before[i], err = tree.Neighbors(i)
		require.NoError(t, err)
	}

	idx, err := tree.AddCopy([]float64{0.5, 0.5, 0.5})
	require.NoError(t, err)
	assert.Equal(t, 120, idx)
	require.NoError(t, tree.checkInvariants())

	vec, err := tree.ReleaseVector(idx)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, vec)
	require.NoError(t, tree.checkInvariants())

	for i := range before {
		got, err := tree.Neighbors(i)
		require.NoError(t, err)
		assert.Equal(t, before[i], got, "point %d", i)
	}
}

func TestKDTree_IncrementalBuild_MatchesBruteForce(t *testing.T) {
	ds := NewDataset(NewUniformRelation(2))
	tree, err := NewKDTree(ds, 4, nil, 3)
	require.NoError(t, err)
	for _, row := range randomRows(400, 2, 41) {
		_, err := tree.AddCopy(row)
		require.NoError(t, err)
	}
	require.NoError(t, tree.checkInvariants())
	assert.Greater(t, tree.Rebuilds(), 0)
	assert.Greater(t, tree.NodeCount(), 1)

	bf, err := NewBruteForce(ds, 4, nil)
	require.NoError(t, err)
	for i := 0; i < ds.Rows(); i++ {
		want, _ := bf.Neighbors(i)
		got, _ := tree.Neighbors(i)
		require.Equal(t, want, got, "point %d", i)
	}
}

func TestKDTree_Release_RenamesLastPoint(t *testing.T) {
	ds := randomDataset(t, 80, 2, 43)
	tree, err := NewKDTree(ds, 3, nil, 2)
	require.NoError(t, err)
	lastRow := append([]float64(nil), ds.Row(79)...)

	for _, i := range []int{0, 10, 40, 5} {
		_, err := tree.ReleaseVector(i)
		require.NoError(t, err)
		require.NoError(t, tree.checkInvariants())
	}
	assert.Equal(t, 76, tree.Len())
	assert.Equal(t, lastRow, ds.Row(0), "the last point took over index 0")

	bf, err := NewBruteForce(ds, 3, nil)
	require.NoError(t, err)
	for i := 0; i < ds.Rows(); i++ {
		want, _ := bf.Neighbors(i)
		got, _ := tree.Neighbors(i)
		require.Equal(t, want, got, "point %d", i)
	}

	_, err = tree.ReleaseVector(500)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestKDTree_Reoptimize_Idempotent(t *testing.T) {
	ds := randomDataset(t, 200, 3, 47)
	tree, err := NewKDTree(ds, 5, nil, 0)
	require.NoError(t, err)
	nodes, depth := tree.NodeCount(), tree.Depth()

	tree.Reoptimize()
	require.NoError(t, tree.checkInvariants())
	assert.Equal(t, nodes, tree.NodeCount())
	assert.Equal(t, depth, tree.Depth())
	assert.Equal(t, 1, tree.Rebuilds())
}

func TestRebuildBudget(t *testing.T) {
	assert.Equal(t, 6, rebuildBudget(0))
	assert.Equal(t, 6+1, rebuildBudget(6))
	assert.Equal(t, 100*100/36+6, rebuildBudget(100))
	assert.Equal(t, math.MaxInt32, rebuildBudget(1<<20))
}

func TestMedianDistanceToNeighbor(t *testing.T) {
	// Points on a line, one unit apart: every nearest neighbor is 1 away.
	rows := make([][]float64, 10)
	for i := range rows {
		rows[i] = []float64{float64(i)}
	}
	ds, err := DatasetFromRows(NewUniformRelation(1), rows)
	require.NoError(t, err)
	med, err := MedianDistanceToNeighbor(ds, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, med, 1e-12)

	med, err = MedianDistanceToNeighbor(ds, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, med)
}
