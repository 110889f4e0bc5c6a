package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/metrics"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/vector"
)

// RecommendBySimilarTitle resolves q.Title to the first catalog title that
// contains it (case-insensitive, row order) and ranks the rest of the catalog
// against it with the requested strategy. An unresolved title fails with a
// *models.LookupError matching models.ErrNotFound.
func (e *Engine) RecommendBySimilarTitle(ctx context.Context, q models.SimilarQuery) (resp *models.SimilarResponse, err error) {
	start := time.Now()
	strategy := e.defaultStrategy
	defer func() {
		e.metrics.ObserveQuery(metrics.KindSimilar, string(strategy), time.Since(start), err)
	}()

	if q.Limit == 0 {
		q.Limit = e.config.DefaultLimit
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if e.config.MaxLimit > 0 && q.Limit > e.config.MaxLimit {
		q.Limit = e.config.MaxLimit
	}
	if q.Strategy != "" {
		if strategy, err = vector.ParseStrategy(q.Strategy); err != nil {
			return nil, err
		}
	}

	gen := e.current.Load()
	key := cacheKey(strategy, q)
	if gen.cache != nil {
		if cached, ok := gen.cache.Get(key); ok {
			e.metrics.ObserveCache(true)
			out := cached.Clone()
			out.Query = q.Title
			out.Cached = true
			out.QueryTime = time.Since(start).Milliseconds()
			return out, nil
		}
		e.metrics.ObserveCache(false)
	}

	row, err := gen.snap.FindTitle(q.Title)
	if err != nil {
		return nil, e.titleNotFound(ctx, gen, q.Title, err)
	}
	provider, err := gen.provider(strategy)
	if err != nil {
		return nil, err
	}
	neighbors, err := provider.Neighbors(row, q.Limit)
	if err != nil {
		return nil, err
	}
	matched, err := gen.snap.Movie(row)
	if err != nil {
		return nil, err
	}
	results, err := toRecommendations(gen.snap, neighbors)
	if err != nil {
		return nil, err
	}

	resp = &models.SimilarResponse{
		Query:      q.Title,
		Strategy:   string(strategy),
		Matched:    &matched,
		Results:    results,
		Total:      len(results),
		QueryTime:  time.Since(start).Milliseconds(),
		SnapshotID: gen.snap.ID(),
	}
	if gen.cache != nil {
		gen.cache.Add(key, resp.Clone())
	}
	e.logger.Debug("similar titles",
		zap.String("query", q.Title),
		zap.String("matched", matched.Title),
		zap.String("strategy", string(strategy)),
		zap.Int("results", len(results)),
	)
	return resp, nil
}

// RecommendByGenre lists movies whose genre set contains q.Genre exactly
// (case-sensitive) and whose rating is at least q.MinRating, ordered by rating
// descending, then votes descending, then row. A genre missing from the
// catalog vocabulary fails with a *models.LookupError; a known genre whose
// movies are all below MinRating yields an empty result.
func (e *Engine) RecommendByGenre(ctx context.Context, q models.GenreQuery) (resp *models.GenreResponse, err error) {
	start := time.Now()
	defer func() {
		e.metrics.ObserveQuery(metrics.KindGenre, "", time.Since(start), err)
	}()

	if err := q.Validate(); err != nil {
		return nil, err
	}
	gen := e.current.Load()
	if _, known := gen.genreFreq[q.Genre]; !known {
		le := &models.LookupError{Kind: "genre", Query: q.Genre, Suggestions: gen.suggester.Terms(q.Genre)}
		if gen.snap.Empty() {
			le.Reason = models.ErrEmptyCorpus.Error()
		}
		return nil, le
	}

	type match struct {
		row int
		m   *models.MovieRecord
	}
	var matches []match
	gen.snap.Each(func(row catalog.Row, m *models.MovieRecord) bool {
		if m.HasGenre(q.Genre) && m.Rating >= q.MinRating {
			matches = append(matches, match{row: row.Index(), m: m})
		}
		return true
	})
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.m.Rating != b.m.Rating {
			return a.m.Rating > b.m.Rating
		}
		if a.m.VoteCount != b.m.VoteCount {
			return a.m.VoteCount > b.m.VoteCount
		}
		return a.row < b.row
	})

	total := len(matches)
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	results := make([]*models.Recommendation, len(matches))
	for i, mt := range matches {
		movie := mt.m.Clone()
		results[i] = &models.Recommendation{Movie: &movie, Rank: i + 1}
	}
	return &models.GenreResponse{
		Genre:      q.Genre,
		MinRating:  q.MinRating,
		Results:    results,
		Total:      total,
		QueryTime:  time.Since(start).Milliseconds(),
		SnapshotID: gen.snap.ID(),
	}, nil
}

// Genres returns the sorted distinct genres of the published catalog.
func (e *Engine) Genres() []string {
	return e.current.Load().genreFreq.Terms()
}

// GenreCounts returns the number of movies per genre.
func (e *Engine) GenreCounts() map[string]int {
	gen := e.current.Load()
	out := make(map[string]int, len(gen.genreFreq))
	for g, n := range gen.genreFreq {
		out[g] = n
	}
	return out
}

// SuggestGenres returns vocabulary genres close to name.
func (e *Engine) SuggestGenres(name string) []string {
	return e.current.Load().suggester.Terms(name)
}

// SearchTitles runs a fuzzy title search. Scores are search relevance.
func (e *Engine) SearchTitles(ctx context.Context, query string, limit int) (resp *models.TitleSearchResponse, err error) {
	start := time.Now()
	defer func() {
		e.metrics.ObserveQuery(metrics.KindSearch, "", time.Since(start), err)
	}()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query cannot be empty", models.ErrInvalidInput)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit %d is negative", models.ErrInvalidInput, limit)
	}
	if limit == 0 {
		limit = e.config.DefaultLimit
	}
	if e.config.MaxLimit > 0 && limit > e.config.MaxLimit {
		limit = e.config.MaxLimit
	}

	gen := e.current.Load()
	hits, err := gen.titles.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	results := make([]*models.Recommendation, 0, len(hits))
	for i, h := range hits {
		row, err := gen.snap.Row(h.Row)
		if err != nil {
			return nil, err
		}
		movie, err := gen.snap.Movie(row)
		if err != nil {
			return nil, err
		}
		results = append(results, &models.Recommendation{Movie: &movie, Score: h.Score, Rank: i + 1})
	}
	return &models.TitleSearchResponse{Query: query, Results: results, SnapshotID: gen.snap.ID()}, nil
}

// Movies returns one page of the catalog in row order.
func (e *Engine) Movies(offset, limit int) (*models.MoviePage, error) {
	if offset < 0 || limit < 0 {
		return nil, fmt.Errorf("%w: offset and limit must not be negative", models.ErrInvalidInput)
	}
	if limit == 0 || (e.config.MaxLimit > 0 && limit > e.config.MaxLimit) {
		limit = e.config.MaxLimit
	}
	snap := e.current.Load().snap
	page := &models.MoviePage{Total: snap.Len(), Offset: offset, Limit: limit, SnapshotID: snap.ID(), Movies: []*models.MovieRecord{}}
	snap.Each(func(row catalog.Row, m *models.MovieRecord) bool {
		i := row.Index()
		if i < offset {
			return true
		}
		if limit > 0 && i >= offset+limit {
			return false
		}
		movie := m.Clone()
		page.Movies = append(page.Movies, &movie)
		return true
	})
	return page, nil
}

func (e *Engine) titleNotFound(ctx context.Context, gen *generation, title string, cause error) error {
	le := &models.LookupError{Kind: "title", Query: title}
	if gen.snap.Empty() {
		le.Reason = models.ErrEmptyCorpus.Error()
		return le
	}
	n := e.config.Suggestions
	if n <= 0 {
		return le
	}
	hits, err := gen.titles.Search(ctx, title, n)
	if err != nil {
		e.logger.Debug("title suggestions failed", zap.Error(err), zap.NamedError("cause", cause))
		return le
	}
	for _, h := range hits {
		row, err := gen.snap.Row(h.Row)
		if err != nil {
			continue
		}
		if m, err := gen.snap.Movie(row); err == nil {
			le.Suggestions = append(le.Suggestions, m.Title)
		}
	}
	return le
}

func toRecommendations(snap *catalog.Snapshot, neighbors []vector.Neighbor) ([]*models.Recommendation, error) {
	out := make([]*models.Recommendation, len(neighbors))
	for i, n := range neighbors {
		movie, err := snap.Movie(n.Row)
		if err != nil {
			return nil, err
		}
		out[i] = &models.Recommendation{Movie: &movie, Score: n.Score, Rank: i + 1}
	}
	return out, nil
}

func cacheKey(s vector.Strategy, q models.SimilarQuery) string {
	return fmt.Sprintf("%s|%d|%s", s, q.Limit, strings.ToLower(q.Title))
}
