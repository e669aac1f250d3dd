package knngraph

import (
	"fmt"
	"math"
)

// SequenceFinder treats the rows of a dataset as a sequence: the neighbors
// of row i are i-1, i+1, i-2, i+2 and so on, with squared distance equal to
// the squared offset. The row contents are never read.
type SequenceFinder struct {
	data *Dataset
	k    int
}

// NewSequenceFinder returns a sequence finder for k neighbors.
func NewSequenceFinder(data *Dataset, k int) (*SequenceFinder, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be >= 1, got %d", ErrInvalidConfig, k)
	}
	return &SequenceFinder{data: data, k: k}, nil
}

func (f *SequenceFinder) Data() *Dataset     { return f.data }
func (f *SequenceFinder) Len() int           { return f.data.Rows() }
func (f *SequenceFinder) NeighborCount() int { return f.k }

func (f *SequenceFinder) Neighbors(index int) ([]Neighbor, error) {
	n := f.data.Rows()
	if err := checkIndex(index, n); err != nil {
		return nil, err
	}
	out := make([]Neighbor, 0, f.k)
	for off := 1; len(out) < f.k && (index-off >= 0 || index+off < n); off++ {
		d := float64(off * off)
		if index-off >= 0 {
			out = append(out, Neighbor{Index: index - off, SqDist: d})
		}
		if len(out) < f.k && index+off < n {
			out = append(out, Neighbor{Index: index + off, SqDist: d})
		}
	}
	for len(out) < f.k {
		out = append(out, Neighbor{Index: NoNeighbor, SqDist: math.Inf(1)})
	}
	return out, nil
}
