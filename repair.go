package knngraph

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
)

// Result is the output of Repair.
type Result struct {
	// Table holds every point's neighbors after shortcut removal. Empty
	// entries are NoNeighbor unless Config.PatchMissing refilled them.
	Table *NeighborTable

	// Algorithm is the finder that was used.
	Algorithm Algorithm

	// Cuts is the number of table entries removed as shortcuts.
	Cuts int

	// ConnectedBefore and ConnectedAfter report whether the neighbor graph
	// connected every point before and after shortcut removal.
	ConnectedBefore bool
	ConnectedAfter  bool

	// Components is the number of connected components after removal.
	Components int
}

// selectAlgorithm resolves AlgorithmAuto and checks that a forced KD-tree
// can work with the metric.
func selectAlgorithm(cfg Config, m Metric) (Algorithm, error) {
	_, bounded := m.(AxisBoundedMetric)
	switch cfg.Algorithm {
	case AlgorithmAuto:
		if bounded {
			return AlgorithmKDTree, nil
		}
		return AlgorithmBrute, nil
	case AlgorithmKDTree, AlgorithmBallTree:
		if !bounded {
			return "", fmt.Errorf("%w: metric %q is not supported by %s", ErrSchemaMismatch, cfg.Metric, cfg.Algorithm)
		}
	}
	return cfg.Algorithm, nil
}

// Repair builds the k-nearest-neighbor table of data and removes shortcut
// edges from it with the configured strategy. All points must have the same
// dimensionality.
//
// If the betweenness strategy disconnects a previously connected graph,
// Repair returns the partial Result together with an error wrapping
// ErrDisconnectedGraph.
func Repair(ctx context.Context, data [][]float64, cfg Config) (*Result, error) {
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points, got %d", ErrInsufficientData, len(data))
	}

	ds, err := DatasetFromRows(NewUniformRelation(len(data[0])), data)
	if err != nil {
		return nil, err
	}
	m, err := cfg.metric()
	if err != nil {
		return nil, err
	}
	algo, err := selectAlgorithm(cfg, m)
	if err != nil {
		return nil, err
	}
	log := cfg.Logger.WithK(cfg.K).WithCount(ds.Rows())

	var finder Finder
	switch algo {
	case AlgorithmKDTree:
		tree, err := NewKDTree(ds, cfg.K, m, cfg.MaxLeafSize)
		if err != nil {
			return nil, err
		}
		tree.SetLogger(log)
		finder = tree
	case AlgorithmBallTree:
		tree, err := NewBallTree(ds, cfg.K, m, cfg.MaxLeafSize)
		if err != nil {
			return nil, err
		}
		finder = tree
	default:
		bf, err := NewBruteForce(ds, cfg.K, m)
		if err != nil {
			return nil, err
		}
		finder = bf
	}

	cache := NewCacheWrapper(finder)
	cache.SetLogger(log)
	if err := cache.FillCacheParallel(ctx, cfg.Workers); err != nil {
		return nil, err
	}
	res := &Result{
		Table:           cache.Table(),
		Algorithm:       algo,
		ConnectedBefore: cache.IsConnected(),
	}

	var cutErr error
	switch cfg.Strategy {
	case StrategyCycleCut:
		cc, err := NewCycleCut(cache.Table(), ds)
		if err != nil {
			return nil, err
		}
		cc.SetCycleThreshold(cfg.CycleThreshold)
		cc.SetRepairConnectivity(cfg.RepairConnectivity)
		cc.SetLogger(log)
		res.Cuts = cc.Cut()
	case StrategyBetweenness:
		res.Cuts, cutErr = cache.PruneShortcuts(cfg.CycleThreshold, cfg.SubGraphRange)
		if cutErr != nil && !errors.Is(cutErr, ErrDisconnectedGraph) {
			return nil, cutErr
		}
	}

	if cfg.PatchMissing {
		rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
		if err := cache.PatchMissingSpots(rng); err != nil {
			return nil, err
		}
	}

	res.ConnectedAfter = cache.IsConnected()
	res.Components = cache.Components()
	log.Info("neighbor graph repaired",
		"algorithm", algo, "strategy", cfg.Strategy, "cuts", res.Cuts,
		"connected", res.ConnectedAfter, "components", res.Components)
	return res, cutErr
}
