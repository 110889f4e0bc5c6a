// Package storage persists catalogs so they can be served without the
// original source files.
package storage

import (
	"context"

	"github.com/hyperjump/osusume/internal/models"
)

// Store defines catalog persistence operations.
type Store interface {
	// ReplaceMovies atomically replaces the stored catalog. Row order is kept.
	ReplaceMovies(ctx context.Context, movies []models.MovieRecord) error
	// ListMovies returns every stored movie in insertion order.
	ListMovies(ctx context.Context) ([]models.MovieRecord, error)
	CountMovies(ctx context.Context) (int64, error)
	// Genres returns the distinct genre names, sorted.
	Genres(ctx context.Context) ([]string, error)

	Close() error
}
