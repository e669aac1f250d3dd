package knngraph

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// SparseVector holds the non-zero entries of a vector. Indices are strictly
// increasing and Values[i] belongs to Indices[i].
type SparseVector struct {
	Indices []int
	Values  []float64
}

// NewSparseVector builds a SparseVector from parallel slices, sorting them
// by index. Duplicate or negative indices yield ErrSchemaMismatch.
func NewSparseVector(indices []int, values []float64) (SparseVector, error) {
	if len(indices) != len(values) {
		return SparseVector{}, &DimensionError{Expected: len(indices), Actual: len(values)}
	}
	order := make([]int, len(indices))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int { return indices[a] - indices[b] })

	v := SparseVector{Indices: make([]int, len(indices)), Values: make([]float64, len(values))}
	for i, o := range order {
		v.Indices[i] = indices[o]
		v.Values[i] = values[o]
		if v.Indices[i] < 0 || (i > 0 && v.Indices[i] == v.Indices[i-1]) {
			return SparseVector{}, fmt.Errorf("%w: bad sparse index %d", ErrSchemaMismatch, v.Indices[i])
		}
	}
	return v, nil
}

// Dot returns the inner product of a and b.
func (a SparseVector) Dot(b SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] < b.Indices[j]:
			i++
		case a.Indices[i] > b.Indices[j]:
			j++
		default:
			sum += a.Values[i] * b.Values[j]
			i++
			j++
		}
	}
	return sum
}

// Norm returns the Euclidean length of a.
func (a SparseVector) Norm() float64 { return floats.Norm(a.Values, 2) }

// SparseMetric computes a squared dissimilarity between sparse vectors.
type SparseMetric interface {
	SquaredDistance(a, b SparseVector) float64
}

// SparseEuclidean is the squared Euclidean distance over sparse vectors.
type SparseEuclidean struct{}

func (SparseEuclidean) SquaredDistance(a, b SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.Indices) || j < len(b.Indices) {
		var d float64
		switch {
		case j >= len(b.Indices) || (i < len(a.Indices) && a.Indices[i] < b.Indices[j]):
			d = a.Values[i]
			i++
		case i >= len(a.Indices) || a.Indices[i] > b.Indices[j]:
			d = b.Values[j]
			j++
		default:
			d = a.Values[i] - b.Values[j]
			i++
			j++
		}
		sum += d * d
	}
	return sum
}

// SparseCosine measures 1 - cos(a, b), squared. A zero vector is at
// distance 1 from everything.
type SparseCosine struct{}

func (SparseCosine) SquaredDistance(a, b SparseVector) float64 {
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 1
	}
	d := 1 - a.Dot(b)/(na*nb)
	return d * d
}

// SparseBruteForce finds neighbors among sparse vectors by scanning them
// all. It does not support out-of-sample queries.
type SparseBruteForce struct {
	data   []SparseVector
	k      int
	metric SparseMetric
}

// NewSparseBruteForce returns a finder for k neighbors. A nil metric
// selects SparseCosine.
func NewSparseBruteForce(data []SparseVector, k int, metric SparseMetric) (*SparseBruteForce, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be >= 1, got %d", ErrInvalidConfig, k)
	}
	if metric == nil {
		metric = SparseCosine{}
	}
	return &SparseBruteForce{data: data, k: k, metric: metric}, nil
}

func (f *SparseBruteForce) Len() int           { return len(f.data) }
func (f *SparseBruteForce) NeighborCount() int { return f.k }

func (f *SparseBruteForce) Neighbors(index int) ([]Neighbor, error) {
	if err := checkIndex(index, len(f.data)); err != nil {
		return nil, err
	}
	best := newKBest(f.k)
	for i, v := range f.data {
		if i == index {
			continue
		}
		best.offer(i, f.metric.SquaredDistance(f.data[index], v))
	}
	return best.result(), nil
}
