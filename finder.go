package knngraph

// Finder answers k-nearest-neighbor queries for the points it indexes.
// Neighbors never reports the query point itself. Results have exactly
// NeighborCount slots; slots that cannot be filled hold NoNeighbor.
//
// Implementations: BruteForce, KDTree, BallTree, SequenceFinder,
// SparseBruteForce and the CacheWrapper decorator.
type Finder interface {
	// Len returns the number of indexed points.
	Len() int

	// NeighborCount returns k.
	NeighborCount() int

	// Neighbors returns the k nearest neighbors of point index, sorted by
	// ascending squared distance.
	Neighbors(index int) ([]Neighbor, error)
}

// DenseFinder is a Finder over a Dataset.
type DenseFinder interface {
	Finder

	// Data returns the dataset the finder indexes.
	Data() *Dataset
}

// GeneralizingFinder is a DenseFinder that can also answer queries for
// vectors outside the dataset and owns additions to and removals from it.
type GeneralizingFinder interface {
	DenseFinder

	// NeighborsOf returns the k nearest points of the dataset to vec.
	NeighborsOf(vec []float64) ([]Neighbor, error)

	// AddCopy adds a copy of vec to the dataset and returns its index.
	AddCopy(vec []float64) (int, error)

	// ReleaseVector removes point index from the dataset and returns it.
	// The last point takes over the released index.
	ReleaseVector(index int) ([]float64, error)

	// Reoptimize rebuilds any acceleration structure.
	Reoptimize()
}

var (
	_ GeneralizingFinder = (*BruteForce)(nil)
	_ GeneralizingFinder = (*KDTree)(nil)
	_ GeneralizingFinder = (*BallTree)(nil)
	_ DenseFinder        = (*SequenceFinder)(nil)
	_ Finder             = (*SparseBruteForce)(nil)
	_ Finder             = (*CacheWrapper)(nil)
)
