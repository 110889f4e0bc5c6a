package catalog

import (
	"context"
	"fmt"

	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/storage"
)

// SQLiteLoader reads a catalog previously written by `osusume import`.
// The database is opened per Load so the file may be replaced between reloads.
type SQLiteLoader struct {
	path string
}

// NewSQLiteLoader returns a loader for the database at path.
func NewSQLiteLoader(path string) *SQLiteLoader {
	return &SQLiteLoader{path: path}
}

// Load opens the database and lists every movie in stored order.
func (l *SQLiteLoader) Load(ctx context.Context) ([]models.MovieRecord, error) {
	store, err := storage.NewSQLiteStore(l.path)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	defer store.Close()
	return store.ListMovies(ctx)
}

// Describe implements Loader.
func (l *SQLiteLoader) Describe() string {
	return "sqlite:" + l.path
}

// StoreLoader serves the catalog held by an already open store.
type StoreLoader struct {
	Store storage.Store
	Name  string
}

// Load implements Loader.
func (l *StoreLoader) Load(ctx context.Context) ([]models.MovieRecord, error) {
	return l.Store.ListMovies(ctx)
}

// Describe implements Loader.
func (l *StoreLoader) Describe() string {
	if l.Name != "" {
		return l.Name
	}
	return "store"
}

// Import loads records from src and writes them to dst in one transaction.
// Records are validated through a snapshot first so invalid catalogs never
// reach the database. Returns the number of movies written.
func Import(ctx context.Context, src Loader, dst storage.Store) (int, error) {
	records, err := src.Load(ctx)
	if err != nil {
		return 0, err
	}
	snap, err := NewSnapshot(records, src.Describe())
	if err != nil {
		return 0, err
	}
	if err := dst.ReplaceMovies(ctx, snap.Movies()); err != nil {
		return 0, fmt.Errorf("store catalog: %w", err)
	}
	return snap.Len(), nil
}
