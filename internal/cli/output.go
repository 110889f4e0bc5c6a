// Package cli renders recommendation responses for the osusume command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one line per result.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const titleWidth = 48

// ParseOutputFormat validates a --output flag value. Empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return OutputText, nil
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown output format %q (use text, compact or json)", models.ErrInvalidInput, s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSimilar writes a similar-title response.
func WriteSimilar(w io.Writer, resp *models.SimilarResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, resp)
	case OutputCompact:
		writeCompact(w, resp.Results, scoreLabel(resp.Strategy))
		return nil
	}
	matched := ""
	if resp.Matched != nil {
		matched = describe(resp.Matched)
	}
	fmt.Fprintf(w, "\nMovies similar to %s (%s, %dms)\n\n", matched, resp.Strategy, resp.QueryTime)
	writeResults(w, resp.Results, scoreLabel(resp.Strategy))
	return nil
}

// WriteGenre writes a genre response.
func WriteGenre(w io.Writer, resp *models.GenreResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, resp)
	case OutputCompact:
		writeCompact(w, resp.Results, "")
		return nil
	}
	fmt.Fprintf(w, "\nTop %s movies rated %.1f or higher (%d of %d, %dms)\n\n",
		resp.Genre, resp.MinRating, len(resp.Results), resp.Total, resp.QueryTime)
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No movies match.")
		return nil
	}
	writeResults(w, resp.Results, "")
	return nil
}

// WriteSearch writes a title search response.
func WriteSearch(w io.Writer, resp *models.TitleSearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, resp)
	case OutputCompact:
		writeCompact(w, resp.Results, "relevance")
		return nil
	}
	fmt.Fprintf(w, "\nTitles matching %q\n\n", resp.Query)
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No titles match.")
		return nil
	}
	writeResults(w, resp.Results, "relevance")
	return nil
}

// WriteGenres writes the genre vocabulary.
func WriteGenres(w io.Writer, genres []string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string][]string{"genres": genres})
	}
	for _, g := range genres {
		fmt.Fprintln(w, g)
	}
	return nil
}

// WriteStatus writes catalog status.
func WriteStatus(w io.Writer, st *models.CatalogStatus, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	if format == OutputCompact {
		fmt.Fprintf(w, "%s v%d movies=%d genres=%d source=%s\n", st.SnapshotID, st.Version, st.Movies, st.Genres, st.Source)
		return nil
	}
	fmt.Fprintf(w, "Snapshot:        %s (version %d)\n", st.SnapshotID, st.Version)
	fmt.Fprintf(w, "Source:          %s\n", st.Source)
	fmt.Fprintf(w, "Movies:          %d\n", st.Movies)
	fmt.Fprintf(w, "Genres:          %d\n", st.Genres)
	fmt.Fprintf(w, "Feature columns: %d\n", st.FeatureColumns)
	fmt.Fprintf(w, "Built:           %s in %dms\n", st.BuiltAt.Format("2006-01-02 15:04:05"), st.BuildTimeMS)
	return nil
}

// WriteSuggestions prints "did you mean" hints carried by err, if any.
func WriteSuggestions(w io.Writer, err error) {
	sugs := models.SuggestionsOf(err)
	if len(sugs) == 0 {
		return
	}
	fmt.Fprintln(w, "Did you mean:")
	for _, s := range sugs {
		fmt.Fprintf(w, "  %s\n", s)
	}
}

func writeResults(w io.Writer, results []*models.Recommendation, label string) {
	for _, r := range results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		if label != "" {
			fmt.Fprintf(w, "#%d | %s: %.4f\n", r.Rank, label, r.Score)
		} else {
			fmt.Fprintf(w, "#%d\n", r.Rank)
		}
		fmt.Fprintf(w, "%s\n", describe(r.Movie))
		fmt.Fprintf(w, "Rating: %.1f (%d votes) | Genres: %s\n", r.Movie.Rating, r.Movie.VoteCount, strings.Join(r.Movie.Genres, ", "))
	}
	fmt.Fprintln(w)
}

func writeCompact(w io.Writer, results []*models.Recommendation, label string) {
	for _, r := range results {
		title := utils.Truncate(r.Movie.Title, titleWidth)
		if label != "" {
			fmt.Fprintf(w, "%2d. %-*s %4s  %.1f  %.4f\n", r.Rank, titleWidth+3, title, year(r.Movie), r.Movie.Rating, r.Score)
		} else {
			fmt.Fprintf(w, "%2d. %-*s %4s  %.1f\n", r.Rank, titleWidth+3, title, year(r.Movie), r.Movie.Rating)
		}
	}
}

func describe(m *models.MovieRecord) string {
	return fmt.Sprintf("%s (%s)", m.Title, year(m))
}

func year(m *models.MovieRecord) string {
	if m.ReleaseYear == 0 {
		return "----"
	}
	return fmt.Sprintf("%d", m.ReleaseYear)
}

func scoreLabel(strategy string) string {
	if strategy == "knn" {
		return "distance"
	}
	return "similarity"
}
