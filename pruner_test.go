package knngraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortcutPruner_Grid(t *testing.T) {
	tbl, _ := gridWithShortcuts(t)
	p := NewShortcutPruner(tbl)
	p.SetCycleThreshold(gridH)
	p.SetSubGraphRange(3)

	cuts, err := p.Prune()
	require.NoError(t, err)
	requireShortcutsCut(t, tbl)
	assert.Equal(t, 3, cuts)
	assert.Equal(t, 3, p.Cuts())
	assert.Equal(t, 0, countBigCycles(tbl, gridH))
	assert.True(t, tableIsConnected(tbl))
}

func TestShortcutPruner_NothingToCut(t *testing.T) {
	// A ring of five: its only cycle is below the threshold.
	tbl := NeighborTableFromRows(2, [][]int{{1, 4}, {0, 2}, {1, 3}, {2, 4}, {3, 0}})
	p := NewShortcutPruner(tbl)
	cuts, err := p.Prune()
	require.NoError(t, err)
	assert.Equal(t, 0, cuts)
	assert.Equal(t, 10, tbl.EdgeCount())
}

func TestShortcutPruner_Ring(t *testing.T) {
	// A chordless ring of twelve is one big atomic cycle. Cutting one edge
	// in both directions breaks it without disconnecting anything.
	rows := make([][]int, 12)
	for i := range rows {
		rows[i] = []int{(i + 1) % 12, (i + 11) % 12}
	}
	tbl := NeighborTableFromRows(2, rows)
	cuts, err := NewShortcutPruner(tbl).Prune()
	require.NoError(t, err)
	assert.Equal(t, 2, cuts)
	assert.Equal(t, 22, tbl.EdgeCount())
	assert.True(t, tableIsConnected(tbl))
	assert.Equal(t, 0, countBigCycles(tbl, 3))
}
