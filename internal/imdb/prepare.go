// Package imdb turns the public IMDb dataset dumps into a catalog file.
package imdb

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperjump/osusume/internal/models"
)

// DefaultTop is the number of movies Prepare keeps when top is not positive.
const DefaultTop = 100

const maxLineBytes = 1 << 20

// CatalogHeader is the header written by WriteCSV.
var CatalogHeader = []string{"primaryTitle", "startYear", "genres", "averageRating", "numVotes"}

type rating struct {
	average float64
	votes   int64
}

type candidate struct {
	tconst string
	record models.MovieRecord
}

// Prepare joins title.basics.tsv with title.ratings.tsv on tconst, keeps rows
// whose titleType is "movie", and returns the top movies ordered by average
// rating desc, then vote count desc, then tconst. Unknown years ("\N") become 0.
func Prepare(ctx context.Context, basics, ratings io.Reader, top int) ([]models.MovieRecord, error) {
	if top <= 0 {
		top = DefaultTop
	}
	byID, err := readRatings(ctx, ratings)
	if err != nil {
		return nil, err
	}

	var movies []candidate
	err = scanTSV(ctx, basics, []string{"tconst", "titleType", "primaryTitle", "startYear", "genres"}, func(line int, f []string) error {
		if f[1] != "movie" {
			return nil
		}
		r, ok := byID[f[0]]
		if !ok {
			return nil
		}
		movies = append(movies, candidate{
			tconst: f[0],
			record: models.MovieRecord{
				ID:          parseTconst(f[0]),
				Title:       f[2],
				ReleaseYear: parseYear(f[3]),
				Genres:      models.ParseGenres(f[4]),
				Rating:      r.average,
				VoteCount:   r.votes,
			},
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("title.basics: %w", err)
	}

	sort.Slice(movies, func(i, j int) bool {
		a, b := movies[i], movies[j]
		if a.record.Rating != b.record.Rating {
			return a.record.Rating > b.record.Rating
		}
		if a.record.VoteCount != b.record.VoteCount {
			return a.record.VoteCount > b.record.VoteCount
		}
		return a.tconst < b.tconst
	})
	if len(movies) > top {
		movies = movies[:top]
	}
	out := make([]models.MovieRecord, len(movies))
	for i, c := range movies {
		out[i] = c.record
	}
	return out, nil
}

func readRatings(ctx context.Context, r io.Reader) (map[string]rating, error) {
	byID := make(map[string]rating)
	err := scanTSV(ctx, r, []string{"tconst", "averageRating", "numVotes"}, func(line int, f []string) error {
		avg, err := strconv.ParseFloat(f[1], 64)
		if err != nil {
			return fmt.Errorf("line %d: %w: averageRating %q", line, models.ErrInvalidInput, f[1])
		}
		votes, err := strconv.ParseInt(f[2], 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: %w: numVotes %q", line, models.ErrInvalidInput, f[2])
		}
		byID[f[0]] = rating{average: avg, votes: votes}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("title.ratings: %w", err)
	}
	return byID, nil
}

// scanTSV streams a tab-separated dump with a header row, passing the named
// columns in the requested order to fn. IMDb dumps use no quoting, so fields
// are split on tabs only.
func scanTSV(ctx context.Context, r io.Reader, columns []string, fn func(line int, fields []string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%w: empty file", models.ErrInvalidInput)
	}
	header := strings.Split(strings.TrimSuffix(strings.TrimPrefix(sc.Text(), "\ufeff"), "\r"), "\t")
	pos := make([]int, len(columns))
	for i, name := range columns {
		pos[i] = -1
		for j, h := range header {
			if strings.TrimSpace(h) == name {
				pos[i] = j
				break
			}
		}
		if pos[i] < 0 {
			return fmt.Errorf("%w: missing column %s", models.ErrInvalidInput, name)
		}
	}

	fields := make([]string, len(columns))
	for line := 2; sc.Scan(); line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		text := strings.TrimSuffix(sc.Text(), "\r")
		if text == "" {
			continue
		}
		rec := strings.Split(text, "\t")
		for i, p := range pos {
			if p < len(rec) {
				fields[i] = rec[p]
			} else {
				fields[i] = ""
			}
		}
		if err := fn(line, fields); err != nil {
			return err
		}
	}
	return sc.Err()
}

func parseYear(raw string) int {
	y, err := strconv.Atoi(raw)
	if err != nil || y < 0 {
		return 0
	}
	return y
}

// parseTconst returns the numeric part of an IMDb identifier such as tt0111161.
func parseTconst(tconst string) int64 {
	n, err := strconv.ParseInt(strings.TrimPrefix(tconst, "tt"), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// WriteCSV writes records in the catalog layout read by catalog.CSVLoader.
// Unknown years are written as "\N".
func WriteCSV(w io.Writer, records []models.MovieRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CatalogHeader); err != nil {
		return err
	}
	for _, m := range records {
		year := `\N`
		if m.ReleaseYear > 0 {
			year = strconv.Itoa(m.ReleaseYear)
		}
		row := []string{
			m.Title,
			year,
			strings.Join(m.Genres, ","),
			strconv.FormatFloat(m.Rating, 'f', -1, 64),
			strconv.FormatInt(m.VoteCount, 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
