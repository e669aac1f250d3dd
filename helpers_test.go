package knngraph

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// randomRows returns n points of dims uniform coordinates in [0, 1).
func randomRows(n, dims int, seed uint64) [][]float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, dims)
		for j := range rows[i] {
			rows[i][j] = rng.Float64()
		}
	}
	return rows
}

func randomDataset(t testing.TB, n, dims int, seed uint64) *Dataset {
	t.Helper()
	ds, err := DatasetFromRows(NewUniformRelation(dims), randomRows(n, dims, seed))
	require.NoError(t, err)
	return ds
}

// mixedDataset has a continuous, a categorical (3 values) and another
// continuous attribute.
func mixedDataset(t testing.TB, n int, seed uint64) *Dataset {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed+1))
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = []float64{rng.Float64(), float64(rng.IntN(3)), rng.Float64() * 2}
	}
	ds, err := DatasetFromRows(NewRelation(0, 3, 0), rows)
	require.NoError(t, err)
	return ds
}

const (
	gridW = 6
	gridH = 6
	gridK = 4
)

// gridWithShortcuts returns a 6×6 grid where every point lists its left,
// right, up and down neighbors (NoNeighbor at the border), plus three
// shortcut entries: 0 -> 35, 5 -> 35 and 35 -> 5 (replacing 35 -> 34).
// The points are the grid coordinates.
func gridWithShortcuts(t testing.TB) (*NeighborTable, *Dataset) {
	t.Helper()
	n := gridW * gridH
	tbl := NewNeighborTable(n, gridK)
	rows := make([][]float64, n)
	for y := 0; y < gridH; y++ {
		for x := 0; x < gridW; x++ {
			i := y*gridW + x
			rows[i] = []float64{float64(x), float64(y)}
			hood := tbl.Row(i)
			if x > 0 {
				hood[0] = i - 1
			}
			if x < gridW-1 {
				hood[1] = i + 1
			}
			if y > 0 {
				hood[2] = i - gridW
			}
			if y < gridH-1 {
				hood[3] = i + gridW
			}
		}
	}
	tbl.Row(0)[0] = n - 1
	tbl.Row(gridW - 1)[1] = n - 1
	tbl.Row(n - 1)[0] = gridW - 1

	ds, err := DatasetFromRows(NewUniformRelation(2), rows)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		for s, j := range tbl.Row(i) {
			if j != NoNeighbor {
				tbl.Dists(i)[s] = EuclideanMetric{}.SquaredDistance(rows[i], rows[j])
			}
		}
	}
	return tbl, ds
}

func requireShortcutsCut(t *testing.T, tbl *NeighborTable) {
	t.Helper()
	require.Equal(t, NoNeighbor, tbl.Row(0)[0], "missed shortcut 0 -> 35")
	require.Equal(t, NoNeighbor, tbl.Row(gridW - 1)[1], "missed shortcut 5 -> 35")
	require.Equal(t, NoNeighbor, tbl.Row(gridW*gridH - 1)[0], "missed shortcut 35 -> 5")
}

// spiralRows returns three entwined spirals in R³, 84 points each,
// interleaved so that rows 3i, 3i+1 and 3i+2 share a height.
func spiralRows() [][]float64 {
	const points, height = 250, 3.0
	third := 2 * math.Pi / 3
	var rows [][]float64
	for i := 0; i < points; i += 3 {
		rads := float64(i) * 2 * math.Pi / points
		y := float64(i) * height / points
		for s := 0; s < 3; s++ {
			a := rads + float64(s)*third
			rows = append(rows, []float64{math.Cos(a), y, math.Sin(a)})
		}
	}
	return rows
}

// countBigCycles returns how many atomic cycles of at least minLen vertices
// the table contains.
func countBigCycles(tbl *NeighborTable, minLen int) int {
	count := 0
	AtomicCycleFinderFromTable(tbl).Compute(func(cycle []int) bool {
		if len(cycle) >= minLen {
			count++
		}
		return true
	})
	return count
}
