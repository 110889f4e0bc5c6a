package vector

import (
	"fmt"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/features"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CosineIndex holds the full pairwise cosine similarity matrix of a
// GenreVectorMatrix.
type CosineIndex struct {
	snapshotID string
	n          int
	// sim is nil for an empty snapshot.
	sim *mat.SymDense
}

// NewCosineIndex computes every pairwise similarity. The diagonal is 1 for
// rows with non-zero norm and 0 for zero rows.
func NewCosineIndex(g *features.GenreVectorMatrix) *CosineIndex {
	n, _ := g.Dims()
	idx := &CosineIndex{snapshotID: g.SnapshotID(), n: n}
	if n == 0 {
		return idx
	}
	idx.sim = mat.NewSymDense(n, nil)
	vecs := g.Matrix()
	if vecs == nil {
		// No vocabulary: every row is zero.
		return idx
	}
	dense := mat.DenseCopyOf(vecs)
	norms := make([]float64, n)
	for i := 0; i < n; i++ {
		norms[i] = floats.Norm(dense.RawRowView(i), 2)
	}
	for i := 0; i < n; i++ {
		if norms[i] == 0 {
			continue
		}
		idx.sim.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			if norms[j] == 0 {
				continue
			}
			idx.sim.SetSym(i, j, CosineSimilarity(dense.RawRowView(i), dense.RawRowView(j)))
		}
	}
	return idx
}

// Strategy implements Provider.
func (c *CosineIndex) Strategy() Strategy { return StrategyTFIDF }

// SnapshotID implements Provider.
func (c *CosineIndex) SnapshotID() string { return c.snapshotID }

// Size implements Provider.
func (c *CosineIndex) Size() int { return c.n }

// Similarity returns sim(a, b).
func (c *CosineIndex) Similarity(a, b catalog.Row) (float64, error) {
	if err := c.check(a); err != nil {
		return 0, err
	}
	if err := c.check(b); err != nil {
		return 0, err
	}
	return c.sim.At(a.Index(), b.Index()), nil
}

// Score implements Provider.
func (c *CosineIndex) Score(a, b catalog.Row) (float64, error) {
	return c.Similarity(a, b)
}

// RankSimilar returns the k most similar rows, descending by score, excluding
// row itself. Ties go to the lower row index.
func (c *CosineIndex) RankSimilar(row catalog.Row, k int) ([]Neighbor, error) {
	if err := c.check(row); err != nil {
		return nil, err
	}
	i := row.Index()
	cands := make([]candidate, 0, c.n-1)
	for j := 0; j < c.n; j++ {
		if j != i {
			cands = append(cands, candidate{index: j, score: c.sim.At(i, j)})
		}
	}
	return toNeighbors(c.snapshotID, rank(cands, normalizeK(k), true)), nil
}

// Neighbors implements Provider.
func (c *CosineIndex) Neighbors(row catalog.Row, k int) ([]Neighbor, error) {
	return c.RankSimilar(row, k)
}

func (c *CosineIndex) check(row catalog.Row) error {
	if err := catalog.CheckRow(row, c.snapshotID, c.n); err != nil {
		return fmt.Errorf("cosine index: %w", err)
	}
	return nil
}

var _ Provider = (*CosineIndex)(nil)
