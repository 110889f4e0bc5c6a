package features

import (
	"fmt"
	"math"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/pkg/utils"
	"gonum.org/v1/gonum/mat"
)

// Options configures the genre vectorizer.
type Options struct {
	// StopWords drops English stop words from the token stream.
	StopWords bool
}

// GenreVectorMatrix holds one L2-normalized TF-IDF row per snapshot record.
type GenreVectorMatrix struct {
	snapshotID string
	rows       int
	vocab      *Vocabulary
	idf        []float64
	// data is nil when the matrix has no rows or no columns.
	data *mat.Dense
}

// VectorizeGenres weights each record's genre tokens by smoothed TF-IDF:
// idf(t) = ln((1+n)/(1+df(t))) + 1, tf is 0 or 1. An empty snapshot yields
// an empty matrix.
func VectorizeGenres(snap *catalog.Snapshot, opts Options) *GenreVectorMatrix {
	var keep func(string) bool
	if opts.StopWords {
		keep = func(t string) bool { return !IsStopWord(t) }
	}
	vocab := newVocabulary(snap, keep)
	n := snap.Len()
	g := &GenreVectorMatrix{snapshotID: snap.ID(), rows: n, vocab: vocab}
	if n == 0 || vocab.Len() == 0 {
		return g
	}

	df := make([]float64, vocab.Len())
	snap.Each(func(_ catalog.Row, m *models.MovieRecord) bool {
		for _, t := range m.Genres {
			if c, ok := vocab.Column(t); ok {
				df[c]++
			}
		}
		return true
	})
	g.idf = make([]float64, vocab.Len())
	for c := range df {
		g.idf[c] = math.Log((1+float64(n))/(1+df[c])) + 1
	}

	g.data = mat.NewDense(n, vocab.Len(), nil)
	snap.Each(func(row catalog.Row, m *models.MovieRecord) bool {
		vec := g.data.RawRowView(row.Index())
		for _, t := range m.Genres {
			if c, ok := vocab.Column(t); ok {
				vec[c] = g.idf[c]
			}
		}
		utils.NormalizeL2(vec)
		return true
	})
	return g
}

// SnapshotID returns the ID of the snapshot the matrix was built from.
func (g *GenreVectorMatrix) SnapshotID() string { return g.snapshotID }

// Dims returns the number of rows and columns.
func (g *GenreVectorMatrix) Dims() (rows, cols int) { return g.rows, g.vocab.Len() }

// Vocabulary returns the column vocabulary.
func (g *GenreVectorMatrix) Vocabulary() *Vocabulary { return g.vocab }

// IDF returns the inverse document frequency of term, or false if unknown.
func (g *GenreVectorMatrix) IDF(term string) (float64, bool) {
	c, ok := g.vocab.Column(term)
	if !ok || g.idf == nil {
		return 0, false
	}
	return g.idf[c], true
}

// Row returns a copy of the weights for row.
func (g *GenreVectorMatrix) Row(row catalog.Row) ([]float64, error) {
	if err := catalog.CheckRow(row, g.snapshotID, g.rows); err != nil {
		return nil, err
	}
	return g.rowAt(row.Index()), nil
}

func (g *GenreVectorMatrix) rowAt(i int) []float64 {
	out := make([]float64, g.vocab.Len())
	if g.data != nil {
		copy(out, g.data.RawRowView(i))
	}
	return out
}

// Matrix returns a read-only view of the weights, or nil for an empty matrix.
func (g *GenreVectorMatrix) Matrix() mat.Matrix {
	if g.data == nil {
		return nil
	}
	return g.data
}

// String implements fmt.Stringer.
func (g *GenreVectorMatrix) String() string {
	return fmt.Sprintf("GenreVectorMatrix(%dx%d)", g.rows, g.vocab.Len())
}
