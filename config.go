package knngraph

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Algorithm selects the neighbor finder used by Repair.
type Algorithm string

const (
	AlgorithmAuto     Algorithm = "auto"
	AlgorithmBrute    Algorithm = "brute"
	AlgorithmKDTree   Algorithm = "kdtree"
	AlgorithmBallTree Algorithm = "balltree"
)

// Strategy selects how Repair removes shortcut edges.
type Strategy string

const (
	// StrategyCycleCut uses capacity reduction (CycleCut).
	StrategyCycleCut Strategy = "cyclecut"
	// StrategyBetweenness uses edge betweenness (ShortcutPruner).
	StrategyBetweenness Strategy = "betweenness"
	// StrategyNone builds the neighbor table without cutting anything.
	StrategyNone Strategy = "none"
)

// Config controls neighbor graph construction and repair.
// Start with [DefaultConfig] and override the fields you need.
type Config struct {
	// K is the number of neighbors per point. Must be >= 1. Default: 10.
	K int `yaml:"k"`

	// Metric names the distance: "row", "euclidean", "manhattan",
	// "chebyshev", "minkowski" or "cosine". Default: "row".
	Metric string `yaml:"metric"`

	// MinkowskiP is the order of the Minkowski metric. Must be >= 1 when
	// Metric is "minkowski". Default: 2.
	MinkowskiP float64 `yaml:"minkowski_p"`

	// Algorithm selects the finder. "auto" uses the KD-tree whenever the
	// metric can bound distances per axis. Default: "auto".
	Algorithm Algorithm `yaml:"algorithm"`

	// MaxLeafSize is the largest KD-tree or ball tree leaf. Default: 6.
	MaxLeafSize int `yaml:"max_leaf_size"`

	// Strategy selects the shortcut remover. Default: "cyclecut".
	Strategy Strategy `yaml:"strategy"`

	// CycleThreshold is the atomic cycle length treated as a shortcut.
	// Must be >= 3. Default: 10.
	CycleThreshold int `yaml:"cycle_threshold"`

	// SubGraphRange is the hop radius used by the betweenness strategy.
	// Default: 6.
	SubGraphRange int `yaml:"sub_graph_range"`

	// RepairConnectivity restores cuts that would split a connected graph
	// (cyclecut strategy). Its zero value turns the reconnect pass off, so a
	// Config not built from DefaultConfig must set it explicitly.
	// Default: true.
	RepairConnectivity bool `yaml:"repair_connectivity"`

	// PatchMissing fills every empty slot with copies of surviving neighbors,
	// whether a cut emptied it or fewer than K other points exist.
	// Default: false.
	PatchMissing bool `yaml:"patch_missing"`

	// Workers is the number of goroutines filling the neighbor table.
	// 0 means runtime.NumCPU(). Default: 0.
	Workers int `yaml:"workers"`

	// Seed seeds the random choices of PatchMissing. Default: 0.
	Seed uint64 `yaml:"seed"`

	// Logger receives progress records. Nil discards them.
	Logger *Logger `yaml:"-"`
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		K:                  10,
		Metric:             "row",
		MinkowskiP:         2,
		Algorithm:          AlgorithmAuto,
		MaxLeafSize:        DefaultMaxLeafSize,
		Strategy:           StrategyCycleCut,
		CycleThreshold:     DefaultCycleThreshold,
		SubGraphRange:      DefaultSubGraphRange,
		RepairConnectivity: true,
	}
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the result.
func ParseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("knngraph: read config: %w", err)
	}
	return ParseConfig(b)
}

// Validate checks that cfg fields are valid and returns a descriptive error
// wrapping ErrInvalidConfig if not.
func (cfg Config) Validate() error {
	if cfg.K < 1 {
		return fmt.Errorf("%w: K must be >= 1, got %d", ErrInvalidConfig, cfg.K)
	}
	if _, err := cfg.metric(); err != nil {
		return err
	}
	switch cfg.Algorithm {
	case AlgorithmAuto, AlgorithmBrute, AlgorithmKDTree, AlgorithmBallTree:
	default:
		return fmt.Errorf("%w: invalid Algorithm %q", ErrInvalidConfig, cfg.Algorithm)
	}
	if cfg.MaxLeafSize < 1 {
		return fmt.Errorf("%w: MaxLeafSize must be >= 1, got %d", ErrInvalidConfig, cfg.MaxLeafSize)
	}
	switch cfg.Strategy {
	case StrategyCycleCut, StrategyBetweenness, StrategyNone:
	default:
		return fmt.Errorf("%w: Strategy must be %q, %q or %q, got %q",
			ErrInvalidConfig, StrategyCycleCut, StrategyBetweenness, StrategyNone, cfg.Strategy)
	}
	if cfg.CycleThreshold < 3 {
		return fmt.Errorf("%w: CycleThreshold must be >= 3, got %d", ErrInvalidConfig, cfg.CycleThreshold)
	}
	if cfg.SubGraphRange < 1 {
		return fmt.Errorf("%w: SubGraphRange must be >= 1, got %d", ErrInvalidConfig, cfg.SubGraphRange)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("%w: Workers must be >= 0, got %d", ErrInvalidConfig, cfg.Workers)
	}
	return nil
}

// applyDefaults fills in zero-valued config fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.Metric == "" {
		cfg.Metric = "row"
	}
	if cfg.MinkowskiP == 0 {
		cfg.MinkowskiP = 2
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmAuto
	}
	if cfg.MaxLeafSize == 0 {
		cfg.MaxLeafSize = DefaultMaxLeafSize
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyCycleCut
	}
	if cfg.CycleThreshold == 0 {
		cfg.CycleThreshold = DefaultCycleThreshold
	}
	if cfg.SubGraphRange == 0 {
		cfg.SubGraphRange = DefaultSubGraphRange
	}
	cfg.Logger = orNoop(cfg.Logger)
}

// metric returns a fresh Metric for cfg.Metric.
func (cfg Config) metric() (Metric, error) {
	switch cfg.Metric {
	case "row", "":
		return NewRowDistance(nil), nil
	case "euclidean":
		return EuclideanMetric{}, nil
	case "manhattan":
		return ManhattanMetric{}, nil
	case "chebyshev":
		return ChebyshevMetric{}, nil
	case "minkowski":
		if cfg.MinkowskiP < 1 {
			return nil, fmt.Errorf("%w: MinkowskiP must be >= 1, got %g", ErrInvalidConfig, cfg.MinkowskiP)
		}
		return MinkowskiMetric{P: cfg.MinkowskiP}, nil
	case "cosine":
		return CosineMetric{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown Metric %q", ErrInvalidConfig, cfg.Metric)
	}
}
