package vector

import (
	"fmt"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/features"
	"github.com/hyperjump/osusume/internal/models"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// EuclideanIndex answers k-nearest-neighbor queries over a FeatureMatrix by
// brute force. Pairwise distances are precomputed once per snapshot, which is
// fine for catalogs in the hundreds of rows.
type EuclideanIndex struct {
	snapshotID string
	n          int
	dims       int
	points     *mat.Dense
	dist       *mat.SymDense
}

// NewEuclideanIndex copies the feature rows and computes all pairwise distances.
func NewEuclideanIndex(fm *features.FeatureMatrix) *EuclideanIndex {
	idx := &EuclideanIndex{snapshotID: fm.SnapshotID(), n: fm.Rows(), dims: fm.Cols()}
	if idx.n == 0 {
		return idx
	}
	idx.points = mat.DenseCopyOf(fm.Matrix())
	idx.dist = mat.NewSymDense(idx.n, nil)
	for i := 0; i < idx.n; i++ {
		a := idx.points.RawRowView(i)
		for j := i + 1; j < idx.n; j++ {
			idx.dist.SetSym(i, j, floats.Distance(a, idx.points.RawRowView(j), 2))
		}
	}
	return idx
}

// Strategy implements Provider.
func (e *EuclideanIndex) Strategy() Strategy { return StrategyKNN }

// SnapshotID implements Provider.
func (e *EuclideanIndex) SnapshotID() string { return e.snapshotID }

// Size implements Provider.
func (e *EuclideanIndex) Size() int { return e.n }

// Dims returns the feature dimension.
func (e *EuclideanIndex) Dims() int { return e.dims }

// Distance returns distance(a, b).
func (e *EuclideanIndex) Distance(a, b catalog.Row) (float64, error) {
	if err := e.check(a); err != nil {
		return 0, err
	}
	if err := e.check(b); err != nil {
		return 0, err
	}
	return e.dist.At(a.Index(), b.Index()), nil
}

// Score implements Provider.
func (e *EuclideanIndex) Score(a, b catalog.Row) (float64, error) {
	return e.Distance(a, b)
}

// Query returns the k nearest rows ascending by distance, excluding row itself.
// Ties go to the lower row index.
func (e *EuclideanIndex) Query(row catalog.Row, k int) ([]Neighbor, error) {
	if err := e.check(row); err != nil {
		return nil, err
	}
	i := row.Index()
	cands := make([]candidate, 0, e.n-1)
	for j := 0; j < e.n; j++ {
		if j != i {
			cands = append(cands, candidate{index: j, score: e.dist.At(i, j)})
		}
	}
	return toNeighbors(e.snapshotID, rank(cands, normalizeK(k), false)), nil
}

// Neighbors implements Provider.
func (e *EuclideanIndex) Neighbors(row catalog.Row, k int) ([]Neighbor, error) {
	return e.Query(row, k)
}

// QueryVector returns the k rows nearest to an arbitrary encoded vector, such
// as one produced by FeatureMatrix.EncodeRecord. No row is excluded.
func (e *EuclideanIndex) QueryVector(vec []float64, k int) ([]Neighbor, error) {
	if len(vec) != e.dims {
		return nil, fmt.Errorf("%w: vector dimension %d, index expects %d", models.ErrInvalidInput, len(vec), e.dims)
	}
	cands := make([]candidate, 0, e.n)
	for j := 0; j < e.n; j++ {
		cands = append(cands, candidate{index: j, score: floats.Distance(vec, e.points.RawRowView(j), 2)})
	}
	return toNeighbors(e.snapshotID, rank(cands, normalizeK(k), false)), nil
}

func (e *EuclideanIndex) check(row catalog.Row) error {
	if err := catalog.CheckRow(row, e.snapshotID, e.n); err != nil {
		return fmt.Errorf("euclidean index: %w", err)
	}
	return nil
}

var _ Provider = (*EuclideanIndex)(nil)
