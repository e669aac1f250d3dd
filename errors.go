package knngraph

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaMismatch is returned when a metric or operation does not
	// support the attribute kinds or dimensionality of the data.
	ErrSchemaMismatch = errors.New("knngraph: schema mismatch")

	// ErrOutOfRange is returned when a point index is outside [0, n).
	ErrOutOfRange = errors.New("knngraph: index out of range")

	// ErrInsufficientData is returned when there are not enough points (or
	// valid neighbors) to complete an operation.
	ErrInsufficientData = errors.New("knngraph: insufficient data")

	// ErrDisconnectedGraph reports that the neighbor graph does not connect
	// every point. Increasing k is the usual remedy.
	ErrDisconnectedGraph = errors.New("knngraph: neighbor graph is not connected")

	// ErrCacheNotFilled is returned by operations that need every row of a
	// CacheWrapper to be computed first.
	ErrCacheNotFilled = errors.New("knngraph: cache not filled")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("knngraph: invalid config")
)

// DimensionError indicates a vector whose length does not match the relation.
type DimensionError struct {
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("knngraph: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *DimensionError) Unwrap() error { return ErrSchemaMismatch }

// IndexError indicates a point index outside [0, Len).
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("knngraph: index %d out of range [0, %d)", e.Index, e.Len)
}

func (e *IndexError) Unwrap() error { return ErrOutOfRange }

func checkIndex(index, n int) error {
	if index < 0 || index >= n {
		return &IndexError{Index: index, Len: n}
	}
	return nil
}
