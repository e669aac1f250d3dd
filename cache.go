package knngraph

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/bits-and-blooms/bitset"
)

// CacheWrapper memoizes the neighbor rows of a Finder in a NeighborTable.
// A row is computed the first time it is requested (or by FillCache) and
// served from the table afterwards. The shortcut cutters edit the table in
// place, so later Neighbors calls see the pruned rows.
type CacheWrapper struct {
	finder Finder
	table  *NeighborTable
	filled *bitset.BitSet
	logger *Logger
}

// NewCacheWrapper wraps f. The point count of f is fixed for the lifetime
// of the wrapper.
func NewCacheWrapper(f Finder) *CacheWrapper {
	n := f.Len()
	return &CacheWrapper{
		finder: f,
		table:  NewNeighborTable(n, f.NeighborCount()),
		filled: bitset.New(uint(n)),
		logger: NoopLogger(),
	}
}

// SetLogger sets the logger used for fill and cut progress.
func (c *CacheWrapper) SetLogger(l *Logger) { c.logger = orNoop(l) }

// Wrapped returns the underlying finder.
func (c *CacheWrapper) Wrapped() Finder { return c.finder }

func (c *CacheWrapper) Len() int           { return c.table.Len() }
func (c *CacheWrapper) NeighborCount() int { return c.table.K() }

// Table returns the cached neighbor table. Call FillCache first to make
// sure every row is present.
func (c *CacheWrapper) Table() *NeighborTable { return c.table }

// IsFilled reports whether every row has been computed.
func (c *CacheWrapper) IsFilled() bool { return c.filled.Count() == uint(c.table.Len()) }

// Neighbors returns the cached row for index, computing it on first use.
func (c *CacheWrapper) Neighbors(index int) ([]Neighbor, error) {
	if err := checkIndex(index, c.table.Len()); err != nil {
		return nil, err
	}
	if err := c.fillRow(index); err != nil {
		return nil, err
	}
	return c.table.Neighbors(index), nil
}

func (c *CacheWrapper) fillRow(i int) error {
	if c.filled.Test(uint(i)) {
		return nil
	}
	hood, err := c.finder.Neighbors(i)
	if err != nil {
		return err
	}
	c.table.SetRow(i, hood)
	c.filled.Set(uint(i))
	return nil
}

// FillCache computes every row that is not cached yet.
func (c *CacheWrapper) FillCache() error {
	for i := 0; i < c.table.Len(); i++ {
		if err := c.fillRow(i); err != nil {
			return err
		}
	}
	c.logger.Debug("neighbor cache filled", "points", c.table.Len(), "k", c.table.K())
	return nil
}

// IsConnected reports whether every point is reachable from point 0 when
// each table entry is treated as a bidirectional edge.
func (c *CacheWrapper) IsConnected() bool {
	return tableIsConnected(c.table)
}

// Components returns the number of connected components of the table.
func (c *CacheWrapper) Components() int {
	return tableComponents(c.table).Count()
}

func tableIsConnected(t *NeighborTable) bool {
	n := t.Len()
	if n <= 1 {
		return true
	}
	adj := t.adjacency()
	visited := bitset.New(uint(n))
	visited.Set(0)
	q := []int{0}
	count := 1
	for len(q) > 0 {
		v := q[0]
		q = q[1:]
		for _, w := range adj[v] {
			if visited.Test(uint(w)) {
				continue
			}
			visited.Set(uint(w))
			count++
			if count == n {
				return true
			}
			q = append(q, w)
		}
	}
	return false
}

// PatchMissingSpots fills every empty slot with a copy of a randomly chosen
// valid neighbor of the same row. The cache must be filled. A row with no
// valid neighbor at all yields ErrInsufficientData.
func (c *CacheWrapper) PatchMissingSpots(rng *rand.Rand) error {
	if !c.IsFilled() {
		return ErrCacheNotFilled
	}
	k := c.table.K()
	for i := 0; i < c.table.Len(); i++ {
		row, dists := c.table.Row(i), c.table.Dists(i)
		for j := range row {
			if c.table.valid(row[j]) {
				continue
			}
			start := rng.IntN(k)
			l := -1
			for s := 0; s < k; s++ {
				if cand := (start + s) % k; c.table.valid(row[cand]) {
					l = cand
					break
				}
			}
			if l < 0 {
				return fmt.Errorf("%w: point %d has no valid neighbors", ErrInsufficientData, i)
			}
			row[j] = row[l]
			dists[j] = dists[l]
		}
	}
	return nil
}

// FillDistances recomputes every cached squared distance with metric. The
// wrapped finder must be a DenseFinder.
func (c *CacheWrapper) FillDistances(metric Metric) error {
	df, ok := c.finder.(DenseFinder)
	if !ok {
		return fmt.Errorf("%w: %T does not expose its dataset", ErrSchemaMismatch, c.finder)
	}
	if !c.IsFilled() {
		return ErrCacheNotFilled
	}
	data := df.Data()
	if err := metric.Init(data.Relation()); err != nil {
		return err
	}
	for i := 0; i < c.table.Len(); i++ {
		row, dists := c.table.Row(i), c.table.Dists(i)
		for j, nb := range row {
			if c.table.valid(nb) {
				dists[j] = metric.SquaredDistance(data.Row(i), data.Row(nb))
			}
		}
	}
	return nil
}

// NormalizeDistances rescales every neighborhood so that its neighbor
// distances sum to the mean neighborhood total, evening out density
// differences across the dataset. Distances stay squared.
func (c *CacheWrapper) NormalizeDistances() error {
	if !c.IsFilled() {
		return ErrCacheNotFilled
	}
	n := c.table.Len()
	if n == 0 {
		return nil
	}
	var total float64
	sums := make([]float64, n)
	for i := 0; i < n; i++ {
		row, dists := c.table.Row(i), c.table.Dists(i)
		for j := range dists {
			if !c.table.valid(row[j]) {
				continue
			}
			dists[j] = math.Sqrt(dists[j])
			sums[i] += dists[j]
		}
		total += sums[i]
	}
	mean := total / float64(n)
	for i := 0; i < n; i++ {
		row, dists := c.table.Row(i), c.table.Dists(i)
		for j := range dists {
			if !c.table.valid(row[j]) {
				continue
			}
			d := 0.0
			if sums[i] > 0 {
				d = dists[j] / sums[i] * mean
			}
			dists[j] = d * d
		}
	}
	return nil
}

// CutShortcuts fills the cache and removes shortcut edges with CycleCut
// (capacity reduction). It returns the number of entries cut.
func (c *CacheWrapper) CutShortcuts(cycleLen int) (int, error) {
	if err := c.FillCache(); err != nil {
		return 0, err
	}
	var data *Dataset
	if df, ok := c.finder.(DenseFinder); ok {
		data = df.Data()
	}
	cc, err := NewCycleCut(c.table, data)
	if err != nil {
		return 0, err
	}
	cc.SetCycleThreshold(cycleLen)
	cc.SetLogger(c.logger)
	return cc.Cut(), nil
}

// PruneShortcuts fills the cache and removes shortcut edges with
// ShortcutPruner (edge betweenness). It returns the number of entries cut.
func (c *CacheWrapper) PruneShortcuts(cycleLen, subGraphRange int) (int, error) {
	if err := c.FillCache(); err != nil {
		return 0, err
	}
	p := NewShortcutPruner(c.table)
	p.SetCycleThreshold(cycleLen)
	p.SetSubGraphRange(subGraphRange)
	p.SetLogger(c.logger)
	return p.Prune()
}
