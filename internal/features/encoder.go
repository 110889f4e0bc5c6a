package features

import (
	"fmt"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/models"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Names of the numeric feature columns that follow the genre indicators.
const (
	RatingColumn = "rating_z"
	YearColumn   = "year_z"
)

// Normalizer holds z-score parameters for one numeric column.
type Normalizer struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// fitNormalizer computes population mean and standard deviation. An empty
// sample gives the zero Normalizer.
func fitNormalizer(x []float64) Normalizer {
	if len(x) == 0 {
		return Normalizer{}
	}
	mean, std := stat.PopMeanStdDev(x, nil)
	return Normalizer{Mean: mean, StdDev: std}
}

// Apply returns the z-score of v, or 0 when the column is constant.
func (n Normalizer) Apply(v float64) float64 {
	if n.StdDev == 0 {
		return 0
	}
	return (v - n.Mean) / n.StdDev
}

// FeatureMatrix is the multi-hot genre plus normalized rating and year
// encoding of a snapshot.
type FeatureMatrix struct {
	snapshotID string
	rows       int
	vocab      *Vocabulary
	rating     Normalizer
	year       Normalizer
	// data is nil when the snapshot is empty.
	data *mat.Dense
}

// EncodeFeatures builds the feature matrix. Columns are the sorted genre
// indicators followed by rating_z and year_z. Unknown years (0) are left out of
// the year statistics and encode as the mean.
func EncodeFeatures(snap *catalog.Snapshot) *FeatureMatrix {
	vocab := newVocabulary(snap, nil)
	fm := &FeatureMatrix{snapshotID: snap.ID(), rows: snap.Len(), vocab: vocab}
	if snap.Empty() {
		return fm
	}

	ratings := make([]float64, 0, snap.Len())
	years := make([]float64, 0, snap.Len())
	snap.Each(func(_ catalog.Row, m *models.MovieRecord) bool {
		ratings = append(ratings, m.Rating)
		if m.ReleaseYear > 0 {
			years = append(years, float64(m.ReleaseYear))
		}
		return true
	})
	fm.rating = fitNormalizer(ratings)
	fm.year = fitNormalizer(years)

	fm.data = mat.NewDense(fm.rows, fm.Cols(), nil)
	snap.Each(func(row catalog.Row, m *models.MovieRecord) bool {
		fm.encodeInto(fm.data.RawRowView(row.Index()), m)
		return true
	})
	return fm
}

func (fm *FeatureMatrix) encodeInto(dst []float64, m *models.MovieRecord) {
	for _, g := range m.Genres {
		if c, ok := fm.vocab.Column(g); ok {
			dst[c] = 1
		}
	}
	k := fm.vocab.Len()
	dst[k] = fm.rating.Apply(m.Rating)
	if m.ReleaseYear > 0 {
		dst[k+1] = fm.year.Apply(float64(m.ReleaseYear))
	}
}

// EncodeRecord encodes a record that need not belong to the snapshot using the
// retained normalization parameters. Genres outside the vocabulary are ignored.
func (fm *FeatureMatrix) EncodeRecord(m models.MovieRecord) ([]float64, error) {
	if err := models.ValidateMinRating(m.Rating); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	m.Genres = models.NormalizeGenres(m.Genres)
	vec := make([]float64, fm.Cols())
	fm.encodeInto(vec, &m)
	return vec, nil
}

// SnapshotID returns the ID of the snapshot the matrix was built from.
func (fm *FeatureMatrix) SnapshotID() string { return fm.snapshotID }

// Rows returns the number of encoded records.
func (fm *FeatureMatrix) Rows() int { return fm.rows }

// Cols returns the feature dimension: genres plus the two numeric columns.
func (fm *FeatureMatrix) Cols() int { return fm.vocab.Len() + 2 }

// Vocabulary returns the genre columns.
func (fm *FeatureMatrix) Vocabulary() *Vocabulary { return fm.vocab }

// RatingNormalizer returns the fitted rating parameters.
func (fm *FeatureMatrix) RatingNormalizer() Normalizer { return fm.rating }

// YearNormalizer returns the fitted year parameters.
func (fm *FeatureMatrix) YearNormalizer() Normalizer { return fm.year }

// ColumnNames returns a label per column.
func (fm *FeatureMatrix) ColumnNames() []string {
	names := make([]string, 0, fm.Cols())
	for _, g := range fm.vocab.terms {
		names = append(names, "genre:"+g)
	}
	return append(names, RatingColumn, YearColumn)
}

// Row returns a copy of the encoded row.
func (fm *FeatureMatrix) Row(row catalog.Row) ([]float64, error) {
	if err := catalog.CheckRow(row, fm.snapshotID, fm.rows); err != nil {
		return nil, err
	}
	out := make([]float64, fm.Cols())
	copy(out, fm.data.RawRowView(row.Index()))
	return out, nil
}

// Matrix returns a read-only view of the features, or nil for an empty snapshot.
func (fm *FeatureMatrix) Matrix() mat.Matrix {
	if fm.data == nil {
		return nil
	}
	return fm.data
}
