package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/hyperjump/osusume/internal/models"
)

// CSVOption configures a CSVLoader.
type CSVOption func(*CSVLoader)

// WithComma sets the field delimiter. Defaults to ','.
func WithComma(r rune) CSVOption {
	return func(l *CSVLoader) { l.comma = r }
}

// CSVLoader reads a delimited text catalog with a header row.
type CSVLoader struct {
	path  string
	comma rune
}

// NewCSVLoader returns a loader for the delimited file at path.
func NewCSVLoader(path string, opts ...CSVOption) *CSVLoader {
	l := &CSVLoader{path: path, comma: ','}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads and parses the whole file.
func (l *CSVLoader) Load(ctx context.Context) ([]models.MovieRecord, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return ReadCSV(ctx, f, l.comma)
}

// Describe implements Loader.
func (l *CSVLoader) Describe() string {
	if l.comma == '\t' {
		return "tsv:" + l.path
	}
	return "csv:" + l.path
}

// ReadCSV parses a delimited catalog from r.
func ReadCSV(ctx context.Context, r io.Reader, comma rune) ([]models.MovieRecord, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false
	if comma == '\t' {
		// IMDb dumps contain bare quotes inside titles.
		cr.LazyQuotes = true
	}

	var rows [][]string
	for {
		if len(rows)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		rows = append(rows, rec)
	}
	return parseTable(rows)
}
