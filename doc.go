// Package knngraph builds k-nearest-neighbor graphs and removes shortcut
// edges from them.
//
// A neighbor graph links every point to its k closest points. On data that
// lies on a curved manifold, a few of those links jump across a fold and
// make far-apart regions look close. Such shortcuts show up as long atomic
// cycles (cycles with no chord), and the package can find and cut them so
// that geodesic distances measured along the graph follow the manifold.
//
// Basic usage:
//
//	cfg := knngraph.DefaultConfig()
//	cfg.K = 12
//	res, err := knngraph.Repair(ctx, data, cfg)
//	// res.Table.Row(i) holds the neighbors of point i (NoNeighbor = cut)
//	// res.Cuts is how many entries were removed as shortcuts
//	geo, err := knngraph.GeodesicDistances(res.Table)
//
// The building blocks can also be used directly:
//
//	tree, err := knngraph.NewKDTree(ds, k, nil, 0)    // dynamic KD-tree
//	cache := knngraph.NewCacheWrapper(tree)            // n × k neighbor table
//	err = cache.FillCacheParallel(ctx, 0)
//	cuts, err := cache.CutShortcuts(10)                // capacity reduction
//	cuts, err = cache.PruneShortcuts(10, 6)            // edge betweenness
//
// # Finder selection
//
// By default (Algorithm: "auto"), Repair uses a KD-tree whenever the metric
// can bound distances per axis, and a brute-force scan otherwise (cosine).
// Set Config.Algorithm to force one:
//
//	cfg.Algorithm = knngraph.AlgorithmBrute   // O(n) scan per query
//	cfg.Algorithm = knngraph.AlgorithmKDTree  // best-first KD-tree search
//
// # Shortcut removal
//
// Two strategies are available. StrategyCycleCut gives each edge a capacity
// that shrinks with its length, repeatedly drains the smallest capacity
// from every big cycle and cuts the edges that run dry. StrategyBetweenness
// cuts, for each big cycle, the edge with the highest betweenness in a
// local sub-graph around it.
package knngraph
