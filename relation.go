package knngraph

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Relation describes the attributes of a dataset. Each attribute is either
// continuous (value count 0) or categorical with a fixed cardinality.
type Relation struct {
	valueCounts []int
}

// NewUniformRelation returns a relation of dims continuous attributes.
func NewUniformRelation(dims int) *Relation {
	return &Relation{valueCounts: make([]int, dims)}
}

// NewRelation returns a relation with one attribute per value count.
// A value count of 0 marks a continuous attribute.
func NewRelation(valueCounts ...int) *Relation {
	vc := make([]int, len(valueCounts))
	copy(vc, valueCounts)
	return &Relation{valueCounts: vc}
}

// Size returns the number of attributes.
func (r *Relation) Size() int { return len(r.valueCounts) }

// ValueCount returns the cardinality of attr, or 0 if it is continuous.
func (r *Relation) ValueCount(attr int) int { return r.valueCounts[attr] }

// IsContinuous reports whether attr is continuous.
func (r *Relation) IsContinuous(attr int) bool { return r.valueCounts[attr] == 0 }

// AllContinuous reports whether every attribute is continuous.
func (r *Relation) AllContinuous() bool {
	for _, vc := range r.valueCounts {
		if vc != 0 {
			return false
		}
	}
	return true
}

// checkRow validates the width of row and the range of its categorical values.
// Missing values are NaN (continuous) or -1 (categorical).
func (r *Relation) checkRow(row []float64) error {
	if len(row) != len(r.valueCounts) {
		return &DimensionError{Expected: len(r.valueCounts), Actual: len(row)}
	}
	for attr, vc := range r.valueCounts {
		if vc == 0 {
			continue
		}
		v := row[attr]
		if v == -1 {
			continue
		}
		if math.IsNaN(v) || v < 0 || int(v) >= vc || v != math.Trunc(v) {
			return fmt.Errorf("%w: attribute %d value %v outside [0, %d)", ErrSchemaMismatch, attr, v, vc)
		}
	}
	return nil
}

// Dataset is the point store: an ordered set of rows bound to a Relation.
// Finders hold indices into it; rows are only added or released through
// the finder that owns the dataset.
type Dataset struct {
	rel  *Relation
	rows [][]float64
}

// NewDataset returns an empty dataset for rel.
func NewDataset(rel *Relation) *Dataset {
	return &Dataset{rel: rel}
}

// DatasetFromRows builds a dataset over rows without copying them.
// Every row is validated against rel.
func DatasetFromRows(rel *Relation, rows [][]float64) (*Dataset, error) {
	for i, row := range rows {
		if err := rel.checkRow(row); err != nil {
			return nil, fmt.Errorf("knngraph: row %d: %w", i, err)
		}
	}
	return &Dataset{rel: rel, rows: rows}, nil
}

// DatasetFromMatrix copies the rows of m into a new dataset. If rel is nil
// every column is treated as continuous.
func DatasetFromMatrix(m mat.Matrix, rel *Relation) (*Dataset, error) {
	r, c := m.Dims()
	if rel == nil {
		rel = NewUniformRelation(c)
	}
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, m)
	}
	return DatasetFromRows(rel, rows)
}

// Relation returns the attribute schema.
func (d *Dataset) Relation() *Relation { return d.rel }

// Rows returns the number of points.
func (d *Dataset) Rows() int { return len(d.rows) }

// Cols returns the number of attributes.
func (d *Dataset) Cols() int { return d.rel.Size() }

// Row returns the i-th point. The slice aliases the store.
func (d *Dataset) Row(i int) []float64 { return d.rows[i] }

// AddRow appends a copy of vec and returns its index.
func (d *Dataset) AddRow(vec []float64) (int, error) {
	if err := d.rel.checkRow(vec); err != nil {
		return 0, err
	}
	row := make([]float64, len(vec))
	copy(row, vec)
	d.rows = append(d.rows, row)
	return len(d.rows) - 1, nil
}

// ReleaseRow removes row i and returns it. The last row moves into slot i.
func (d *Dataset) ReleaseRow(i int) ([]float64, error) {
	if err := checkIndex(i, len(d.rows)); err != nil {
		return nil, err
	}
	row := d.rows[i]
	last := len(d.rows) - 1
	d.rows[i] = d.rows[last]
	d.rows[last] = nil
	d.rows = d.rows[:last]
	return row, nil
}
