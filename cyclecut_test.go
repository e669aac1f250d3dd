package knngraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCycleCut_Grid(t *testing.T) {
	tbl, ds := gridWithShortcuts(t)
	cc, err := NewCycleCut(tbl, ds)
	require.NoError(t, err)
	cc.SetCycleThreshold(gridH)

	cuts := cc.Cut()
	requireShortcutsCut(t, tbl)
	assert.Equal(t, 3, cuts)
	assert.ElementsMatch(t, []Cut{
		{From: 0, Slot: 0, To: gridW*gridH - 1},
		{From: gridW - 1, Slot: 1, To: gridW*gridH - 1},
		{From: gridW*gridH - 1, Slot: 0, To: gridW - 1},
	}, cc.Cuts())
	assert.Equal(t, 0, countBigCycles(tbl, gridH))
	assert.True(t, tableIsConnected(tbl))
}

func TestCycleCut_Grid_UnitCapacities(t *testing.T) {
	tbl, _ := gridWithShortcuts(t)
	cc, err := NewCycleCut(tbl, nil)
	require.NoError(t, err)
	cc.SetCycleThreshold(gridH)
	cc.Cut()
	assert.Equal(t, 0, countBigCycles(tbl, gridH))
	assert.True(t, tableIsConnected(tbl))
}

func TestCycleCut_Ring(t *testing.T) {
	// With equal capacities every ring edge hits zero at once; restoration
	// puts back all but the edge that closes the ring.
	rows := make([][]int, 12)
	for i := range rows {
		rows[i] = []int{(i + 1) % 12, (i + 11) % 12}
	}
	tbl := NeighborTableFromRows(2, rows)
	cc, err := NewCycleCut(tbl, nil)
	require.NoError(t, err)

	cuts := cc.Cut()
	assert.Equal(t, 2, cuts)
	assert.Len(t, cc.Cuts(), 2)
	assert.Equal(t, 22, tbl.EdgeCount())
	assert.True(t, tableIsConnected(tbl))
	assert.Equal(t, 0, countBigCycles(tbl, DefaultCycleThreshold))
}

func TestCycleCut_BelowThreshold(t *testing.T) {
	tbl := NeighborTableFromRows(2, [][]int{{1, 2}, {0, 2}, {0, 1}})
	cc, err := NewCycleCut(tbl, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, cc.Cut())
	assert.Empty(t, cc.Cuts())
}

func TestCycleCut_DatasetMismatch(t *testing.T) {
	tbl := NewNeighborTable(4, 2)
	_, err := NewCycleCut(tbl, randomDataset(t, 3, 2, 103))
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestCycleCut_Reconnect(t *testing.T) {
	// 0 - 1   2 - 3, with the 1 - 2 entries recorded as cuts.
	tbl := NeighborTableFromRows(2, [][]int{{1}, {0, NoNeighbor}, {NoNeighbor, 3}, {2}})
	cc, err := NewCycleCut(tbl, nil)
	require.NoError(t, err)
	cc.cuts = []Cut{{From: 1, Slot: 1, To: 2}, {From: 2, Slot: 0, To: 1}}
	cc.cutCount = 2

	cc.reconnect()
	assert.True(t, tableIsConnected(tbl))
	assert.Equal(t, 2, tbl.Row(1)[1])
	// The reverse entry is not needed once 1 -> 2 joins the components.
	assert.Equal(t, NoNeighbor, tbl.Row(2)[0])
	assert.Equal(t, 1, cc.cutCount)
	assert.Equal(t, []Cut{{From: 2, Slot: 0, To: 1}}, cc.Cuts())
}
