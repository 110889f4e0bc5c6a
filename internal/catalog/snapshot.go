// Package catalog provides immutable catalog snapshots and the loaders that feed them.
package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/osusume/internal/models"
)

// Snapshot is an immutable, ordered collection of movie records. Row position is
// the index shared by every structure derived from the snapshot.
type Snapshot struct {
	id      string
	source  string
	builtAt time.Time
	movies  []models.MovieRecord
}

// NewSnapshot validates records and copies them into a new snapshot. Records
// with ID 0 are assigned their 1-based row position. Returns ErrInvalidInput
// naming the first offending row.
func NewSnapshot(records []models.MovieRecord, source string) (*Snapshot, error) {
	movies := make([]models.MovieRecord, len(records))
	seen := make(map[int64]int, len(records))
	for i, rec := range records {
		m := rec.Clone()
		m.Title = strings.TrimSpace(m.Title)
		m.Genres = models.NormalizeGenres(m.Genres)
		if m.ID == 0 {
			m.ID = int64(i + 1)
		}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if prev, dup := seen[m.ID]; dup {
			return nil, fmt.Errorf("row %d: %w: id %d already used by row %d", i, models.ErrInvalidInput, m.ID, prev)
		}
		seen[m.ID] = i
		movies[i] = m
	}
	return &Snapshot{
		id:      uuid.NewString(),
		source:  source,
		builtAt: time.Now(),
		movies:  movies,
	}, nil
}

// ID returns the unique snapshot identifier.
func (s *Snapshot) ID() string { return s.id }

// Source describes where the records came from.
func (s *Snapshot) Source() string { return s.source }

// BuiltAt returns when the snapshot was created.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Len returns the number of records.
func (s *Snapshot) Len() int { return len(s.movies) }

// Empty reports whether the snapshot has no records.
func (s *Snapshot) Empty() bool { return len(s.movies) == 0 }

// Row returns the handle for position i. Returns ErrNotFound when out of range.
func (s *Snapshot) Row(i int) (Row, error) {
	if i < 0 || i >= len(s.movies) {
		return Row{}, fmt.Errorf("%w: row %d outside [0, %d)", models.ErrNotFound, i, len(s.movies))
	}
	return Row{snapshotID: s.id, index: i}, nil
}

// Movie returns a copy of the record at row. The row must belong to s.
func (s *Snapshot) Movie(row Row) (models.MovieRecord, error) {
	if err := s.Check(row); err != nil {
		return models.MovieRecord{}, err
	}
	return s.movies[row.index].Clone(), nil
}

// Check verifies that row was issued by this snapshot and is in range.
func (s *Snapshot) Check(row Row) error {
	return CheckRow(row, s.id, len(s.movies))
}

// Movies returns a copy of all records in row order.
func (s *Snapshot) Movies() []models.MovieRecord {
	out := make([]models.MovieRecord, len(s.movies))
	for i := range s.movies {
		out[i] = s.movies[i].Clone()
	}
	return out
}

// Each calls fn for every row in order with a read-only view of the record.
// fn must not retain or modify the record. Iteration stops when fn returns false.
func (s *Snapshot) Each(fn func(row Row, m *models.MovieRecord) bool) {
	for i := range s.movies {
		if !fn(Row{snapshotID: s.id, index: i}, &s.movies[i]) {
			return
		}
	}
}

// FindTitle returns the first row whose title contains query, case-insensitively.
// Returns ErrNotFound when nothing matches.
func (s *Snapshot) FindTitle(query string) (Row, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return Row{}, fmt.Errorf("%w: empty title query", models.ErrInvalidInput)
	}
	if len(s.movies) == 0 {
		return Row{}, fmt.Errorf("%w: title %q: %v", models.ErrNotFound, query, models.ErrEmptyCorpus)
	}
	for i := range s.movies {
		if strings.Contains(strings.ToLower(s.movies[i].Title), needle) {
			return Row{snapshotID: s.id, index: i}, nil
		}
	}
	return Row{}, fmt.Errorf("%w: no title matches %q", models.ErrNotFound, query)
}
