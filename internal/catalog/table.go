package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperjump/osusume/internal/models"
)

type column int

const (
	colID column = iota
	colTitle
	colYear
	colGenres
	colRating
	colVotes
)

// headerAliases maps lower-cased header names to columns. The first group of
// names is the IMDb-derived layout written by `osusume prepare`.
var headerAliases = map[string]column{
	"primarytitle":   colTitle,
	"startyear":      colYear,
	"genres":         colGenres,
	"averagerating":  colRating,
	"numvotes":       colVotes,
	"title":          colTitle,
	"primary_title":  colTitle,
	"year":           colYear,
	"release_year":   colYear,
	"genre":          colGenres,
	"rating":         colRating,
	"average_rating": colRating,
	"votes":          colVotes,
	"vote_count":     colVotes,
	"id":             colID,
}

// tableLayout maps columns to positions in a header row.
type tableLayout map[column]int

func parseHeader(header []string) (tableLayout, error) {
	layout := make(tableLayout)
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if c, ok := headerAliases[name]; ok {
			if _, dup := layout[c]; !dup {
				layout[c] = i
			}
		}
	}
	for _, required := range []column{colTitle, colGenres, colRating} {
		if _, ok := layout[required]; !ok {
			return nil, fmt.Errorf("%w: header %v lacks a %s column", models.ErrInvalidInput, header, columnName(required))
		}
	}
	return layout, nil
}

func columnName(c column) string {
	switch c {
	case colID:
		return "id"
	case colTitle:
		return "title"
	case colYear:
		return "year"
	case colGenres:
		return "genres"
	case colRating:
		return "rating"
	case colVotes:
		return "votes"
	default:
		return "unknown"
	}
}

func (l tableLayout) cell(row []string, c column) string {
	i, ok := l[c]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseRecord converts one data row. line is the 1-based source line for errors.
func (l tableLayout) parseRecord(row []string, line int) (models.MovieRecord, error) {
	rec := models.MovieRecord{
		Title:       l.cell(row, colTitle),
		ReleaseYear: parseYear(l.cell(row, colYear)),
		Genres:      models.ParseGenres(l.cell(row, colGenres)),
	}
	if raw := l.cell(row, colID); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return rec, fmt.Errorf("line %d: %w: id %q", line, models.ErrInvalidInput, raw)
		}
		rec.ID = id
	}
	rating, err := strconv.ParseFloat(l.cell(row, colRating), 64)
	if err != nil {
		return rec, fmt.Errorf("line %d: %w: rating %q", line, models.ErrInvalidInput, l.cell(row, colRating))
	}
	rec.Rating = rating
	if raw := l.cell(row, colVotes); raw != "" && raw != `\N` {
		votes, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return rec, fmt.Errorf("line %d: %w: votes %q", line, models.ErrInvalidInput, raw)
		}
		rec.VoteCount = votes
	}
	return rec, nil
}

// parseYear returns 0 for missing or non-numeric years ("\N" in IMDb dumps).
func parseYear(raw string) int {
	y, err := strconv.Atoi(raw)
	if err != nil || y < 0 {
		return 0
	}
	return y
}

// parseTable converts a header row plus data rows into records. Blank rows are skipped.
func parseTable(rows [][]string) ([]models.MovieRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	layout, err := parseHeader(rows[0])
	if err != nil {
		return nil, err
	}
	out := make([]models.MovieRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		rec, err := layout.parseRecord(row, i+2)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func joinGenres(genres []string) string {
	return strings.Join(genres, ",")
}
