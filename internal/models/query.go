package models

import (
	"fmt"
	"math"
	"strings"
)

// Limits applied by Validate when the caller leaves them unset.
const (
	DefaultSimilarLimit = 5
	MaxQueryLimit       = 100
)

// SimilarQuery asks for movies similar to the first title containing Title.
type SimilarQuery struct {
	Title    string `json:"title"`
	Strategy string `json:"strategy,omitempty"` // "tfidf" or "knn"; empty = engine default
	Limit    int    `json:"limit,omitempty"`
}

// Validate ensures the query has a title and normalizes the limit.
func (q *SimilarQuery) Validate() error {
	q.Title = strings.TrimSpace(q.Title)
	if q.Title == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: limit %d is negative", ErrInvalidInput, q.Limit)
	}
	if q.Limit == 0 {
		q.Limit = DefaultSimilarLimit
	}
	if q.Limit > MaxQueryLimit {
		q.Limit = MaxQueryLimit
	}
	return nil
}

// GenreQuery asks for movies of Genre rated at least MinRating.
type GenreQuery struct {
	Genre     string  `json:"genre"`
	MinRating float64 `json:"min_rating"`
	Limit     int     `json:"limit,omitempty"` // 0 = all matches
}

// Validate checks the genre name and the rating filter range.
func (q *GenreQuery) Validate() error {
	q.Genre = strings.TrimSpace(q.Genre)
	if q.Genre == "" {
		return fmt.Errorf("%w: genre cannot be empty", ErrInvalidInput)
	}
	if err := ValidateMinRating(q.MinRating); err != nil {
		return err
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: limit %d is negative", ErrInvalidInput, q.Limit)
	}
	if q.Limit > MaxQueryLimit {
		q.Limit = MaxQueryLimit
	}
	return nil
}

// ValidateMinRating rejects NaN and values outside [MinRating, MaxRating].
func ValidateMinRating(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < MinRating || v > MaxRating {
		return fmt.Errorf("%w: min_rating %v outside [%g, %g]", ErrInvalidInput, v, MinRating, MaxRating)
	}
	return nil
}
