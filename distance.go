package knngraph

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Metric computes a squared dissimilarity between two rows of a dataset.
// Init binds the metric to a relation and must be called before use; it
// returns ErrSchemaMismatch if the metric cannot handle the relation.
type Metric interface {
	Init(rel *Relation) error
	SquaredDistance(a, b []float64) float64
	// ScaleFactors returns the per-attribute scale vector, or nil.
	ScaleFactors() []float64
}

// AxisBoundedMetric is a Metric that can turn per-attribute gaps into a
// lower bound on the squared distance. The KD-tree requires it for pruning.
// offsets[attr] is the minimum absolute difference along attr between the
// query and any point in a region (1 for a guaranteed categorical mismatch).
type AxisBoundedMetric interface {
	Metric
	MinSquaredDistance(offsets []float64) float64
}

// RowDistance is the default metric. Continuous attributes contribute their
// squared difference, categorical attributes contribute 0 when equal and 1
// otherwise. Unknown values (NaN, or -1 for categorical) contribute 1.
// If Scale is set, attribute j's term is multiplied by Scale[j]².
type RowDistance struct {
	Scale []float64

	rel *Relation
}

// NewRowDistance returns a RowDistance with optional scale factors.
func NewRowDistance(scale []float64) *RowDistance {
	return &RowDistance{Scale: scale}
}

func (m *RowDistance) Init(rel *Relation) error {
	if m.Scale != nil && len(m.Scale) != rel.Size() {
		return fmt.Errorf("%w: %d scale factors for %d attributes", ErrSchemaMismatch, len(m.Scale), rel.Size())
	}
	m.rel = rel
	return nil
}

func (m *RowDistance) ScaleFactors() []float64 { return m.Scale }

func (m *RowDistance) SquaredDistance(a, b []float64) float64 {
	var sum float64
	for attr := range a {
		var d float64
		if m.rel != nil && m.rel.valueCounts[attr] != 0 {
			if a[attr] == -1 || b[attr] == -1 || int(a[attr]) != int(b[attr]) {
				d = 1
			}
		} else if math.IsNaN(a[attr]) || math.IsNaN(b[attr]) {
			d = 1
		} else {
			d = a[attr] - b[attr]
			d *= d
		}
		if m.Scale != nil {
			d *= m.Scale[attr] * m.Scale[attr]
		}
		sum += d
	}
	return sum
}

func (m *RowDistance) MinSquaredDistance(offsets []float64) float64 {
	var sum float64
	for attr, o := range offsets {
		if m.Scale != nil {
			o *= m.Scale[attr]
		}
		sum += o * o
	}
	return sum
}

func requireContinuous(name string, rel *Relation) error {
	if !rel.AllContinuous() {
		return fmt.Errorf("%w: %s supports continuous attributes only", ErrSchemaMismatch, name)
	}
	return nil
}

// EuclideanMetric is the L2 distance over continuous attributes.
type EuclideanMetric struct{}

func (EuclideanMetric) Init(rel *Relation) error { return requireContinuous("EuclideanMetric", rel) }
func (EuclideanMetric) ScaleFactors() []float64  { return nil }

func (EuclideanMetric) SquaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func (EuclideanMetric) MinSquaredDistance(offsets []float64) float64 {
	var sum float64
	for _, o := range offsets {
		sum += o * o
	}
	return sum
}

// ManhattanMetric is the L1 (city-block) distance. SquaredDistance returns
// the square of the L1 distance.
type ManhattanMetric struct{}

func (ManhattanMetric) Init(rel *Relation) error { return requireContinuous("ManhattanMetric", rel) }
func (ManhattanMetric) ScaleFactors() []float64  { return nil }

func (ManhattanMetric) SquaredDistance(a, b []float64) float64 {
	d := floats.Distance(a, b, 1)
	return d * d
}

func (ManhattanMetric) MinSquaredDistance(offsets []float64) float64 {
	s := floats.Sum(offsets)
	return s * s
}

// ChebyshevMetric is the L-infinity distance.
type ChebyshevMetric struct{}

func (ChebyshevMetric) Init(rel *Relation) error { return requireContinuous("ChebyshevMetric", rel) }
func (ChebyshevMetric) ScaleFactors() []float64  { return nil }

func (ChebyshevMetric) SquaredDistance(a, b []float64) float64 {
	d := floats.Distance(a, b, math.Inf(1))
	return d * d
}

func (ChebyshevMetric) MinSquaredDistance(offsets []float64) float64 {
	if len(offsets) == 0 {
		return 0
	}
	m := floats.Max(offsets)
	return m * m
}

// MinkowskiMetric is the Lp distance for P >= 1.
type MinkowskiMetric struct {
	P float64
}

func (m MinkowskiMetric) Init(rel *Relation) error {
	if m.P < 1 {
		return fmt.Errorf("%w: MinkowskiMetric P must be >= 1, got %v", ErrInvalidConfig, m.P)
	}
	return requireContinuous("MinkowskiMetric", rel)
}

func (MinkowskiMetric) ScaleFactors() []float64 { return nil }

func (m MinkowskiMetric) SquaredDistance(a, b []float64) float64 {
	d := floats.Distance(a, b, m.P)
	return d * d
}

func (m MinkowskiMetric) MinSquaredDistance(offsets []float64) float64 {
	var sum float64
	for _, o := range offsets {
		sum += math.Pow(o, m.P)
	}
	return math.Pow(sum, 2/m.P)
}

// CosineMetric is 1 - cosine similarity, squared. It does not decompose
// along axes, so it works with BruteForce but not with KDTree.
// Two zero vectors produce NaN.
type CosineMetric struct{}

func (CosineMetric) Init(rel *Relation) error { return requireContinuous("CosineMetric", rel) }
func (CosineMetric) ScaleFactors() []float64  { return nil }

func (CosineMetric) SquaredDistance(a, b []float64) float64 {
	dot := floats.Dot(a, b)
	d := 1.0 - dot/math.Sqrt(floats.Dot(a, a)*floats.Dot(b, b))
	return d * d
}
