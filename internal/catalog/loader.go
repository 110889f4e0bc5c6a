package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hyperjump/osusume/internal/models"
)

// Loader supplies an ordered sequence of movie records from some source.
type Loader interface {
	Load(ctx context.Context) ([]models.MovieRecord, error)
	// Describe returns a short human-readable description of the source.
	Describe() string
}

// Format identifies a catalog source format.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatTSV    Format = "tsv"
	FormatXLSX   Format = "xlsx"
	FormatSQLite Format = "sqlite"
)

// DetectFormat returns the explicit format when set, otherwise one inferred
// from the path extension.
func DetectFormat(path, format string) (Format, error) {
	if format != "" {
		switch f := Format(strings.ToLower(format)); f {
		case FormatCSV, FormatTSV, FormatXLSX, FormatSQLite:
			return f, nil
		default:
			return "", fmt.Errorf("unknown catalog format: %s (supported: csv, tsv, xlsx, sqlite)", format)
		}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", "":
		return FormatCSV, nil
	case ".tsv":
		return FormatTSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("cannot infer catalog format from %q; set catalog.format", path)
	}
}

// NewLoader returns a loader for the catalog at path.
func NewLoader(path, format string) (Loader, error) {
	if path == "" {
		return nil, fmt.Errorf("catalog path is required")
	}
	f, err := DetectFormat(path, format)
	if err != nil {
		return nil, err
	}
	switch f {
	case FormatTSV:
		return NewCSVLoader(path, WithComma('\t')), nil
	case FormatXLSX:
		return NewXLSXLoader(path, ""), nil
	case FormatSQLite:
		return NewSQLiteLoader(path), nil
	default:
		return NewCSVLoader(path), nil
	}
}

// StaticLoader serves a fixed record list. Useful for tests and for callers
// that already hold the records in memory.
type StaticLoader struct {
	Records []models.MovieRecord
	Name    string
}

// Load returns a copy of the configured records.
func (s *StaticLoader) Load(ctx context.Context) ([]models.MovieRecord, error) {
	out := make([]models.MovieRecord, len(s.Records))
	for i := range s.Records {
		out[i] = s.Records[i].Clone()
	}
	return out, nil
}

// Describe implements Loader.
func (s *StaticLoader) Describe() string {
	if s.Name != "" {
		return s.Name
	}
	return "static"
}
