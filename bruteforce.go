package knngraph

import "fmt"

// BruteForce finds neighbors by measuring the distance to every point.
// It is exact for any metric, including ones without the triangle
// inequality, and serves as the ground-truth oracle for KDTree.
type BruteForce struct {
	data   *Dataset
	k      int
	metric Metric
}

// NewBruteForce returns a brute-force finder for k neighbors. A nil metric
// selects RowDistance.
func NewBruteForce(data *Dataset, k int, metric Metric) (*BruteForce, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be >= 1, got %d", ErrInvalidConfig, k)
	}
	if metric == nil {
		metric = NewRowDistance(nil)
	}
	if err := metric.Init(data.Relation()); err != nil {
		return nil, err
	}
	return &BruteForce{data: data, k: k, metric: metric}, nil
}

func (bf *BruteForce) Data() *Dataset     { return bf.data }
func (bf *BruteForce) Len() int           { return bf.data.Rows() }
func (bf *BruteForce) NeighborCount() int { return bf.k }

// Metric returns the metric the finder measures with.
func (bf *BruteForce) Metric() Metric { return bf.metric }

func (bf *BruteForce) Neighbors(index int) ([]Neighbor, error) {
	if err := checkIndex(index, bf.data.Rows()); err != nil {
		return nil, err
	}
	return bf.scan(bf.data.Row(index), index), nil
}

func (bf *BruteForce) NeighborsOf(vec []float64) ([]Neighbor, error) {
	if len(vec) != bf.data.Cols() {
		return nil, &DimensionError{Expected: bf.data.Cols(), Actual: len(vec)}
	}
	return bf.scan(vec, NoNeighbor), nil
}

func (bf *BruteForce) scan(query []float64, exclude int) []Neighbor {
	best := newKBest(bf.k)
	for i := 0; i < bf.data.Rows(); i++ {
		if i == exclude {
			continue
		}
		best.offer(i, bf.metric.SquaredDistance(query, bf.data.Row(i)))
	}
	return best.result()
}

func (bf *BruteForce) AddCopy(vec []float64) (int, error) {
	return bf.data.AddRow(vec)
}

func (bf *BruteForce) ReleaseVector(index int) ([]float64, error) {
	return bf.data.ReleaseRow(index)
}

// Reoptimize is a no-op for BruteForce.
func (bf *BruteForce) Reoptimize() {}
