package knngraph

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Cut records one table entry removed by CycleCut: slot Slot of row From
// held To.
type Cut struct {
	From, Slot, To int
}

type edgeKey struct{ from, to int }

// CycleCut removes shortcut edges from a neighbor table by capacity
// reduction. Every edge gets a capacity inversely related to its length.
// Whenever an atomic cycle of CycleThreshold or more vertices exists, the
// smallest capacity on the cycle is subtracted from every cycle edge and
// the edges that reach zero are cut. After no big cycle remains, each cut
// is tried again in reverse order and kept restored if it does not bring a
// big cycle back.
type CycleCut struct {
	table       *NeighborTable
	caps        map[edgeKey]float64
	cycleThresh int
	repair      bool
	cuts        []Cut
	cutCount    int
	logger      *Logger
}

// NewCycleCut prepares to cut shortcuts from t. Capacities are
// 1/(mean neighbor distance + edge distance), with Euclidean distances taken
// from data. A nil data gives every edge capacity 1.
func NewCycleCut(t *NeighborTable, data *Dataset) (*CycleCut, error) {
	if data != nil && data.Rows() != t.Len() {
		return nil, &DimensionError{Expected: t.Len(), Actual: data.Rows()}
	}
	c := &CycleCut{
		table:       t,
		caps:        make(map[edgeKey]float64),
		cycleThresh: DefaultCycleThreshold,
		repair:      true,
		logger:      NoopLogger(),
	}

	dist := func(i, j int) float64 { return 0 }
	aveDist := 1.0
	if data != nil {
		dist = func(i, j int) float64 { return floats.Distance(data.Row(i), data.Row(j), 2) }
		var sum float64
		count := 0
		for i := 0; i < t.Len(); i++ {
			for _, j := range t.Row(i) {
				if t.valid(j) {
					sum += dist(i, j)
					count++
				}
			}
		}
		if count > 0 {
			aveDist = sum / float64(count)
		}
	}

	for i := 0; i < t.Len(); i++ {
		for _, j := range t.Row(i) {
			if !t.valid(j) {
				continue
			}
			cp := 1 / (aveDist + dist(i, j))
			if math.IsInf(cp, 0) || math.IsNaN(cp) {
				cp = 1
			}
			c.caps[edgeKey{i, j}] = cp
			c.caps[edgeKey{j, i}] = cp
		}
	}
	return c, nil
}

// SetCycleThreshold sets the cycle length at which edges are cut.
func (c *CycleCut) SetCycleThreshold(n int) { c.cycleThresh = n }

// SetRepairConnectivity controls whether Cut restores cuts that split a
// previously connected table into components. It is on by default.
func (c *CycleCut) SetRepairConnectivity(on bool) { c.repair = on }

// SetLogger sets the logger used to report progress.
func (c *CycleCut) SetLogger(l *Logger) { c.logger = orNoop(l) }

// Cuts returns the entries that are still cut after the last call to Cut.
func (c *CycleCut) Cuts() []Cut {
	var out []Cut
	for _, cut := range c.cuts {
		if c.table.Row(cut.From)[cut.Slot] == NoNeighbor {
			out = append(out, cut)
		}
	}
	return out
}

// Cut removes shortcuts and returns the number of table entries left cut.
func (c *CycleCut) Cut() int {
	c.cuts = c.cuts[:0]
	c.cutCount = 0
	connected := tableIsConnected(c.table)

	for {
		old := c.cutCount
		AtomicCycleFinderFromTable(c.table).Compute(func(cycle []int) bool {
			if len(cycle) >= c.cycleThresh {
				c.reduce(cycle)
				return false
			}
			return true
		})
		if c.cutCount == old {
			break
		}
	}
	c.logger.Debug("capacity reduction done", "cuts", c.cutCount)

	// Put back every cut that is not needed to keep big cycles away.
	for i := len(c.cuts) - 1; i >= 0; i-- {
		cut := c.cuts[i]
		row := c.table.Row(cut.From)
		row[cut.Slot] = cut.To
		if c.anyBigCycle() {
			row[cut.Slot] = NoNeighbor
		} else {
			c.cutCount--
		}
	}

	if c.repair && connected && !tableIsConnected(c.table) {
		c.reconnect()
	}
	c.logger.Debug("shortcut cutting done", "cuts", c.cutCount)
	return c.cutCount
}

func (c *CycleCut) anyBigCycle() bool {
	found := false
	AtomicCycleFinderFromTable(c.table).Compute(func(cycle []int) bool {
		found = len(cycle) >= c.cycleThresh
		return !found
	})
	return found
}

// reconnect restores each remaining cut whose endpoints lie in different
// components.
func (c *CycleCut) reconnect() {
	uf := tableComponents(c.table)
	restored := 0
	for _, cut := range c.cuts {
		row := c.table.Row(cut.From)
		if row[cut.Slot] != NoNeighbor || uf.Connected(cut.From, cut.To) {
			continue
		}
		row[cut.Slot] = cut.To
		uf.Union(cut.From, cut.To)
		c.cutCount--
		restored++
	}
	c.logger.Warn("restored cuts to keep the neighbor graph connected", "restored", restored, "components", uf.Count())
}

func (c *CycleCut) reduce(cycle []int) {
	bottleneck := math.Inf(1)
	for i, from := range cycle {
		to := cycle[(i+1)%len(cycle)]
		bottleneck = min(bottleneck, c.caps[edgeKey{from, to}])
	}

	for i, from := range cycle {
		to := cycle[(i+1)%len(cycle)]
		fwd, rev := edgeKey{from, to}, edgeKey{to, from}
		d := c.caps[fwd]
		if d-bottleneck > 1e-12 {
			c.caps[fwd] = d - bottleneck
			c.caps[rev] = d - bottleneck
			continue
		}
		delete(c.caps, fwd)
		delete(c.caps, rev)
		f := c.table.Cut(from, to)
		r := c.table.Cut(to, from)
		if f < 0 && r < 0 {
			panic(fmt.Sprintf("knngraph: cycle edge %d-%d not found in neighbor table", from, to))
		}
		if f >= 0 {
			c.cuts = append(c.cuts, Cut{From: from, Slot: f, To: to})
			c.cutCount++
		}
		if r >= 0 {
			c.cuts = append(c.cuts, Cut{From: to, Slot: r, To: from})
			c.cutCount++
		}
	}
}
