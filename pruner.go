package knngraph

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

const (
	// DefaultCycleThreshold is the atomic cycle length at which a cycle is
	// taken to contain a shortcut.
	DefaultCycleThreshold = 10

	// DefaultSubGraphRange is how many hops around a big cycle ShortcutPruner
	// includes when measuring betweenness.
	DefaultSubGraphRange = 6
)

// ShortcutPruner removes shortcut edges from a neighbor table using edge
// betweenness. Whenever an atomic cycle of CycleThreshold or more vertices
// exists, it builds the subgraph of all vertices within SubGraphRange hops
// of the cycle, computes edge betweenness there, and cuts the cycle edge
// with the largest forward plus reverse betweenness. Cut entries become
// NoNeighbor; the table is never resized.
type ShortcutPruner struct {
	table         *NeighborTable
	cycleThresh   int
	subGraphRange int
	cuts          int
	logger        *Logger
}

// NewShortcutPruner returns a pruner that edits t in place.
func NewShortcutPruner(t *NeighborTable) *ShortcutPruner {
	return &ShortcutPruner{
		table:         t,
		cycleThresh:   DefaultCycleThreshold,
		subGraphRange: DefaultSubGraphRange,
		logger:        NoopLogger(),
	}
}

// SetCycleThreshold sets the cycle length treated as a shortcut symptom.
func (p *ShortcutPruner) SetCycleThreshold(n int) { p.cycleThresh = n }

// SetSubGraphRange sets the hop radius of the betweenness subgraph.
func (p *ShortcutPruner) SetSubGraphRange(n int) { p.subGraphRange = n }

// SetLogger sets the logger used to report cuts.
func (p *ShortcutPruner) SetLogger(l *Logger) { p.logger = orNoop(l) }

// Cuts returns the number of entries cut so far.
func (p *ShortcutPruner) Cuts() int { return p.cuts }

// Prune cuts shortcuts until no atomic cycle of the threshold length
// remains, and returns the number of table entries cut. If the table was
// connected before and a cut disconnects it, Prune stops and returns an
// error wrapping ErrDisconnectedGraph.
func (p *ShortcutPruner) Prune() (int, error) {
	connected := tableIsConnected(p.table)
	for {
		old := p.cuts
		AtomicCycleFinderFromTable(p.table).Compute(func(cycle []int) bool {
			if len(cycle) >= p.cycleThresh {
				p.cutShortcut(cycle)
				return false
			}
			return true
		})
		if connected && !tableIsConnected(p.table) {
			p.logger.Warn("shortcut pruning disconnected the neighbor graph", "cuts", p.cuts)
			return p.cuts, fmt.Errorf("%w: pruning separated the graph after %d cuts", ErrDisconnectedGraph, p.cuts)
		}
		if p.cuts == old {
			break
		}
	}
	p.logger.Debug("shortcut pruning done", "cuts", p.cuts)
	return p.cuts, nil
}

func (p *ShortcutPruner) cutShortcut(cycle []int) {
	adj := p.table.adjacency()

	// Collect every vertex within subGraphRange hops of the cycle.
	type entry struct{ v, depth int }
	inSub := roaring.New()
	mapIn := make(map[int]int)
	var mapOut []int
	q := make([]entry, 0, len(cycle))
	for _, v := range cycle {
		if inSub.CheckedAdd(uint32(v)) {
			q = append(q, entry{v, 1})
		}
	}
	for len(q) > 0 {
		cur := q[0]
		q = q[1:]
		mapIn[cur.v] = len(mapOut)
		mapOut = append(mapOut, cur.v)
		if cur.depth > p.subGraphRange {
			continue
		}
		for _, w := range adj[cur.v] {
			if inSub.CheckedAdd(uint32(w)) {
				q = append(q, entry{w, cur.depth + 1})
			}
		}
	}

	g := NewBetweenness(len(mapOut))
	for i, v := range mapOut {
		for _, w := range adj[v] {
			if inSub.Contains(uint32(w)) {
				g.AddDirectedEdgeIfNotDupe(i, mapIn[w])
				g.AddDirectedEdgeIfNotDupe(mapIn[w], i)
			}
		}
	}
	g.Compute()

	// The cycle edge carrying the most shortest paths is the shortcut.
	from, to := -1, -1
	var most float64
	for i, a := range cycle {
		b := cycle[(i+1)%len(cycle)]
		ia, ib := mapIn[a], mapIn[b]
		d := g.EdgeBetweennessByNeighbor(ia, g.NeighborIndex(ia, ib)) +
			g.EdgeBetweennessByNeighbor(ib, g.NeighborIndex(ib, ia))
		if i == 0 || d > most {
			most, from, to = d, a, b
		}
	}

	cut := 0
	if p.table.Cut(from, to) >= 0 {
		cut++
	}
	if p.table.Cut(to, from) >= 0 {
		cut++
	}
	if cut == 0 {
		panic(fmt.Sprintf("knngraph: shortcut %d-%d not found in neighbor table", from, to))
	}
	p.cuts += cut
	p.logger.Debug("cut shortcut", "from", from, "to", to, "betweenness", most, "cycle", len(cycle))
}
