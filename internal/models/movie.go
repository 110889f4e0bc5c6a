// Package models defines core data structures for movies, queries, and recommendation results.
package models

import (
	"fmt"
	"math"
	"strings"
)

// Rating bounds for MovieRecord.Rating and genre filters.
const (
	MinRating = 0.0
	MaxRating = 10.0
)

// MovieRecord is a single catalog entry.
type MovieRecord struct {
	ID          int64    `json:"id" db:"id"`
	Title       string   `json:"title" db:"title"`
	ReleaseYear int      `json:"release_year" db:"year"` // 0 when unknown
	Genres      []string `json:"genres" db:"-"`
	Rating      float64  `json:"rating" db:"rating"`
	VoteCount   int64    `json:"vote_count" db:"votes"`
}

// HasGenre reports whether genre is in the record's genre set (case-sensitive).
func (m *MovieRecord) HasGenre(genre string) bool {
	for _, g := range m.Genres {
		if g == genre {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers cannot mutate snapshot-owned slices.
func (m MovieRecord) Clone() MovieRecord {
	m.Genres = append([]string(nil), m.Genres...)
	return m
}

// Validate checks the record invariants.
func (m *MovieRecord) Validate() error {
	if strings.TrimSpace(m.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
	}
	if math.IsNaN(m.Rating) || m.Rating < MinRating || m.Rating > MaxRating {
		return fmt.Errorf("%w: rating %v outside [%g, %g]", ErrInvalidInput, m.Rating, MinRating, MaxRating)
	}
	if m.VoteCount < 0 {
		return fmt.Errorf("%w: vote count %d is negative", ErrInvalidInput, m.VoteCount)
	}
	if m.ReleaseYear < 0 {
		return fmt.Errorf("%w: release year %d is negative", ErrInvalidInput, m.ReleaseYear)
	}
	return nil
}

// ParseGenres splits a comma separated genre list ("Crime,Drama"), trimming
// whitespace and dropping empty and duplicate entries. Order of first
// appearance is kept.
func ParseGenres(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		g := strings.TrimSpace(p)
		if g == "" || g == `\N` {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}

// NormalizeGenres applies ParseGenres semantics to an already split list.
func NormalizeGenres(genres []string) []string {
	return ParseGenres(strings.Join(genres, ","))
}
