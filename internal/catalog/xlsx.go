package catalog

import (
	"context"
	"fmt"
	"io"

	"github.com/hyperjump/osusume/internal/models"
	"github.com/xuri/excelize/v2"
)

// XLSXLoader reads a catalog from a spreadsheet. The sheet must start with a
// header row using the same column names as the CSV layout.
type XLSXLoader struct {
	path  string
	sheet string
}

// NewXLSXLoader returns a loader for path. An empty sheet selects the first one.
func NewXLSXLoader(path, sheet string) *XLSXLoader {
	return &XLSXLoader{path: path, sheet: sheet}
}

// Load reads the configured sheet.
func (l *XLSXLoader) Load(ctx context.Context) ([]models.MovieRecord, error) {
	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheet := l.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook %s has no sheets", models.ErrInvalidInput, l.path)
		}
		sheet = sheets[0]
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
	}
	return parseTable(rows)
}

// Describe implements Loader.
func (l *XLSXLoader) Describe() string {
	return "xlsx:" + l.path
}

// WriteXLSX writes records as a new workbook to w using the CSV column layout.
func WriteXLSX(w io.Writer, records []models.MovieRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := []interface{}{"id", "primaryTitle", "startYear", "genres", "averageRating", "numVotes"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, m := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{m.ID, m.Title, m.ReleaseYear, joinGenres(m.Genres), m.Rating, m.VoteCount}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
