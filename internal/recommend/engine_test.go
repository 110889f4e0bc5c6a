package recommend

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/config"
	"github.com/hyperjump/osusume/internal/models"
)

func scenarioRecords() []models.MovieRecord {
	return []models.MovieRecord{
		{Title: "First Drama", Genres: []string{"Drama"}, Rating: 8.5, ReleaseYear: 2000, VoteCount: 100},
		{Title: "Second Drama", Genres: []string{"Drama", "Romance"}, Rating: 8.0, ReleaseYear: 1999, VoteCount: 50},
		{Title: "Loud Action", Genres: []string{"Action"}, Rating: 7.0, ReleaseYear: 2010, VoteCount: 10},
	}
}

func newTestEngine(t *testing.T, records []models.MovieRecord, opts ...Option) *Engine {
	t.Helper()
	cfg := config.Default().Engine
	e, err := NewEngine(&catalog.StaticLoader{Records: records, Name: "fixture"}, &cfg, opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if _, err := e.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	return e
}

func fixtureEngine(t *testing.T) *Engine {
	t.Helper()
	loader, err := catalog.NewLoader("../catalog/testdata/movies.csv", "")
	if err != nil {
		t.Fatal(err)
	}
	records, err := loader.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return newTestEngine(t, records)
}

func titles(recs []*models.Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Movie.Title
	}
	return out
}

func TestRecommendByGenre_Scenario(t *testing.T) {
	e := newTestEngine(t, scenarioRecords())
	resp, err := e.RecommendByGenre(context.Background(), models.GenreQuery{Genre: "Drama", MinRating: 8.0})
	if err != nil {
		t.Fatalf("RecommendByGenre: %v", err)
	}
	if got, want := titles(resp.Results), []string{"First Drama", "Second Drama"}; !reflect.DeepEqual(got, want) {
		t.Errorf("results = %v, want %v", got, want)
	}
	if resp.Results[0].Movie.Rating != 8.5 || resp.Results[1].Movie.Rating != 8.0 {
		t.Errorf("ratings out of order: %v, %v", resp.Results[0].Movie.Rating, resp.Results[1].Movie.Rating)
	}
	if resp.Total != 2 || resp.Results[1].Rank != 2 {
		t.Errorf("total = %d, rank = %d", resp.Total, resp.Results[1].Rank)
	}
}

func TestRecommendByGenre_UnknownGenre(t *testing.T) {
	e := newTestEngine(t, scenarioRecords())
	_, err := e.RecommendByGenre(context.Background(), models.GenreQuery{Genre: "Comedy"})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, err = e.RecommendByGenre(context.Background(), models.GenreQuery{Genre: "Dram"})
	if got := models.SuggestionsOf(err); len(got) == 0 || got[0] != "Drama" {
		t.Errorf("suggestions = %v, want Drama first", got)
	}
	// Exact match only.
	if _, err := e.RecommendByGenre(context.Background(), models.GenreQuery{Genre: "drama"}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("lower-case genre should not match, got %v", err)
	}
}

func TestRecommendByGenre_FilteredOutIsEmpty(t *testing.T) {
	e := newTestEngine(t, scenarioRecords())
	resp, err := e.RecommendByGenre(context.Background(), models.GenreQuery{Genre: "Action", MinRating: 9})
	if err != nil {
		t.Fatalf("known genre should succeed: %v", err)
	}
	if len(resp.Results) != 0 || resp.Total != 0 {
		t.Errorf("expected no results, got %v", titles(resp.Results))
	}
}

func TestRecommendByGenre_OrderAndLimit(t *testing.T) {
	e := fixtureEngine(t)
	resp, err := e.RecommendByGenre(context.Background(), models.GenreQuery{Genre: "Crime", Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	// 9.0 ties broken by votes: Dark Knight (2.8M) before Godfather II (1.3M).
	want := []string{"The Godfather", "The Dark Knight", "The Godfather Part II"}
	if got := titles(resp.Results); !reflect.DeepEqual(got, want) {
		t.Errorf("results = %v, want %v", got, want)
	}
	if resp.Total != 4 {
		t.Errorf("total = %d, want 4", resp.Total)
	}
}

func TestRecommendByGenre_InvalidRating(t *testing.T) {
	e := newTestEngine(t, scenarioRecords())
	for _, r := range []float64{-1, 10.1} {
		if _, err := e.RecommendByGenre(context.Background(), models.GenreQuery{Genre: "Drama", MinRating: r}); !errors.Is(err, models.ErrInvalidInput) {
			t.Errorf("min rating %v: expected ErrInvalidInput, got %v", r, err)
		}
	}
}

func TestRecommendBySimilarTitle(t *testing.T) {
	e := fixtureEngine(t)
	tests := []struct {
		name     string
		strategy string
		first    string
	}{
		{"tfidf", "tfidf", "The Godfather Part II"},
		{"knn", "knn", "The Godfather Part II"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := e.RecommendBySimilarTitle(context.Background(), models.SimilarQuery{Title: "godfather", Strategy: tt.strategy, Limit: 3})
			if err != nil {
				t.Fatalf("RecommendBySimilarTitle: %v", err)
			}
			if resp.Matched.Title != "The Godfather" {
				t.Errorf("matched = %q", resp.Matched.Title)
			}
			if len(resp.Results) != 3 {
				t.Fatalf("got %d results", len(resp.Results))
			}
			for i, r := range resp.Results {
				if r.Movie.Title == "The Godfather" {
					t.Error("query movie returned as its own recommendation")
				}
				if r.Rank != i+1 {
					t.Errorf("rank %d at position %d", r.Rank, i)
				}
			}
			if resp.Results[0].Movie.Title != tt.first {
				t.Errorf("first = %q, want %q", resp.Results[0].Movie.Title, tt.first)
			}
			if resp.Strategy != tt.strategy {
				t.Errorf("strategy = %q", resp.Strategy)
			}
		})
	}
}

func TestRecommendBySimilarTitle_NotFound(t *testing.T) {
	e := fixtureEngine(t)
	_, err := e.RecommendBySimilarTitle(context.Background(), models.SimilarQuery{Title: "nonexistent movie title"})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, err = e.RecommendBySimilarTitle(context.Background(), models.SimilarQuery{Title: "Incepton"})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("misspelled title must not resolve, got %v", err)
	}
	if got := models.SuggestionsOf(err); len(got) == 0 || got[0] != "Inception" {
		t.Errorf("suggestions = %v, want Inception first", got)
	}
}

func TestRecommendBySimilarTitle_InvalidInput(t *testing.T) {
	e := fixtureEngine(t)
	tests := []models.SimilarQuery{
		{Title: ""},
		{Title: "godfather", Limit: -1},
		{Title: "godfather", Strategy: "pagerank"},
	}
	for _, q := range tests {
		if _, err := e.RecommendBySimilarTitle(context.Background(), q); !errors.Is(err, models.ErrInvalidInput) {
			t.Errorf("%+v: expected ErrInvalidInput, got %v", q, err)
		}
	}
}

func TestRecommendBySimilarTitle_DefaultLimitAndCache(t *testing.T) {
	e := fixtureEngine(t)
	q := models.SimilarQuery{Title: "Spirited"}
	first, err := e.RecommendBySimilarTitle(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Results) != e.Config().DefaultLimit {
		t.Errorf("got %d results, want default %d", len(first.Results), e.Config().DefaultLimit)
	}
	if first.Cached {
		t.Error("first answer should not come from the cache")
	}

	second, err := e.RecommendBySimilarTitle(context.Background(), models.SimilarQuery{Title: "spirited"})
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached {
		t.Error("repeated query should be served from the cache")
	}
	if !reflect.DeepEqual(titles(first.Results), titles(second.Results)) {
		t.Error("cached answer differs")
	}
	if e.Status().CachedQueries != 1 {
		t.Errorf("cached queries = %d", e.Status().CachedQueries)
	}

	// A new generation starts with an empty cache.
	if _, err := e.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	third, err := e.RecommendBySimilarTitle(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if third.Cached || third.SnapshotID == first.SnapshotID {
		t.Error("answer leaked across generations")
	}
}

func TestRecommendBySimilarTitle_CachedAnswersAreIsolated(t *testing.T) {
	e := fixtureEngine(t)
	ctx := context.Background()
	first, err := e.RecommendBySimilarTitle(ctx, models.SimilarQuery{Title: "Spirited"})
	if err != nil {
		t.Fatal(err)
	}
	want := first.Results[0].Movie.Title
	first.Results[0].Movie.Title = "mutated"
	first.Results[0].Movie.Genres[0] = "mutated"
	first.Results[0].Score = -1
	first.Matched.Title = "mutated"

	second, err := e.RecommendBySimilarTitle(ctx, models.SimilarQuery{Title: "SPIRITED"})
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached {
		t.Fatal("expected a cache hit")
	}
	if second.Query != "SPIRITED" {
		t.Errorf("query = %q, want the caller's spelling", second.Query)
	}
	got := second.Results[0]
	if got.Movie.Title != want || got.Movie.Genres[0] == "mutated" || got.Score == -1 {
		t.Errorf("cached result was modified through an earlier response: %+v", got.Movie)
	}
	if second.Matched.Title == "mutated" {
		t.Error("cached matched record was modified through an earlier response")
	}

	second.Results[0].Movie.Title = "mutated again"
	third, err := e.RecommendBySimilarTitle(ctx, models.SimilarQuery{Title: "spirited"})
	if err != nil {
		t.Fatal(err)
	}
	if third.Results[0].Movie.Title != want {
		t.Errorf("cache hit shares records with earlier hits: %q", third.Results[0].Movie.Title)
	}
}

func TestRecommendBySimilarTitle_CacheDisabled(t *testing.T) {
	cfg := config.Default().Engine
	off := 0
	cfg.CacheSize = &off
	e, err := NewEngine(&catalog.StaticLoader{Records: scenarioRecords()}, &cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		resp, err := e.RecommendBySimilarTitle(context.Background(), models.SimilarQuery{Title: "First"})
		if err != nil {
			t.Fatal(err)
		}
		if resp.Cached {
			t.Fatalf("query %d served from a disabled cache", i)
		}
	}
	if n := e.Status().CachedQueries; n != 0 {
		t.Errorf("cached queries = %d, want 0", n)
	}
}

func TestEngine_Deterministic(t *testing.T) {
	a := fixtureEngine(t)
	b := fixtureEngine(t)
	for _, strategy := range []string{"tfidf", "knn"} {
		q := models.SimilarQuery{Title: "Life Is", Strategy: strategy, Limit: 10}
		ra, err := a.RecommendBySimilarTitle(context.Background(), q)
		if err != nil {
			t.Fatal(err)
		}
		rb, err := b.RecommendBySimilarTitle(context.Background(), q)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(titles(ra.Results), titles(rb.Results)) {
			t.Errorf("%s: %v != %v", strategy, titles(ra.Results), titles(rb.Results))
		}
		for i := range ra.Results {
			if ra.Results[i].Score != rb.Results[i].Score {
				t.Errorf("%s: score %d differs", strategy, i)
			}
		}
	}
}

func TestEngine_EmptyCatalog(t *testing.T) {
	cfg := config.Default().Engine
	e, err := NewEngine(nil, &cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got := e.Genres(); len(got) != 0 {
		t.Errorf("Genres() = %v", got)
	}
	if _, err := e.RecommendBySimilarTitle(context.Background(), models.SimilarQuery{Title: "x"}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := e.RecommendByGenre(context.Background(), models.GenreQuery{Genre: "Drama"}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	resp, err := e.SearchTitles(context.Background(), "anything", 5)
	if err != nil || len(resp.Results) != 0 {
		t.Errorf("SearchTitles on empty catalog = %v, %v", resp, err)
	}
	if _, err := e.Reload(context.Background()); err == nil {
		t.Error("Reload without a loader should fail")
	}
}

func TestEngine_RequireNonEmpty(t *testing.T) {
	cfg := config.Default().Engine
	e, err := NewEngine(&catalog.StaticLoader{}, &cfg, WithRequireNonEmpty())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Reload(context.Background()); !errors.Is(err, models.ErrEmptyCorpus) {
		t.Errorf("expected ErrEmptyCorpus, got %v", err)
	}
}

type failingLoader struct{ err error }

func (f failingLoader) Load(context.Context) ([]models.MovieRecord, error) { return nil, f.err }
func (f failingLoader) Describe() string                                 { return "failing" }

func TestEngine_FailedReloadKeepsGeneration(t *testing.T) {
	e := newTestEngine(t, scenarioRecords())
	before := e.Status()

	e.loader = failingLoader{err: errors.New("disk on fire")}
	if _, err := e.Reload(context.Background()); err == nil {
		t.Fatal("expected reload error")
	}
	bad := scenarioRecords()
	bad[1].Rating = 42
	if err := e.ReplaceRecords(context.Background(), bad, "bad"); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	after := e.Status()
	if after.SnapshotID != before.SnapshotID || after.Version != before.Version {
		t.Errorf("generation changed after failed reload: %+v -> %+v", before, after)
	}
	if _, err := e.RecommendByGenre(context.Background(), models.GenreQuery{Genre: "Drama"}); err != nil {
		t.Errorf("engine unusable after failed reload: %v", err)
	}
}

func TestEngine_ReplaceVersions(t *testing.T) {
	e := newTestEngine(t, scenarioRecords())
	if v := e.Status().Version; v != 1 {
		t.Fatalf("version = %d, want 1", v)
	}
	if err := e.ReplaceRecords(context.Background(), scenarioRecords()[:1], "one"); err != nil {
		t.Fatal(err)
	}
	st := e.Status()
	if st.Version != 2 || st.Movies != 1 || st.Source != "one" {
		t.Errorf("status = %+v", st)
	}
	if got := e.Genres(); !reflect.DeepEqual(got, []string{"Drama"}) {
		t.Errorf("Genres() = %v", got)
	}
}

func TestEngine_ConcurrentReplace(t *testing.T) {
	small := scenarioRecords()
	large := append(scenarioRecords(), models.MovieRecord{Title: "Extra", Genres: []string{"Drama"}, Rating: 9.9, VoteCount: 1})
	e := newTestEngine(t, small)

	ctx := context.Background()
	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			recs := small
			if i%2 == 0 {
				recs = large
			}
			if err := e.ReplaceRecords(ctx, recs, "swap"); err != nil {
				t.Error(err)
			}
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				resp, err := e.RecommendByGenre(ctx, models.GenreQuery{Genre: "Drama"})
				if err != nil {
					t.Error(err)
					return
				}
				// Both catalogs are internally consistent: the extra title only
				// appears with a total of three.
				hasExtra := len(resp.Results) > 0 && resp.Results[0].Movie.Title == "Extra"
				if hasExtra != (resp.Total == 3) {
					t.Errorf("mixed generation: total %d, first %q", resp.Total, resp.Results[0].Movie.Title)
					return
				}
				sim, err := e.RecommendBySimilarTitle(ctx, models.SimilarQuery{Title: "First Drama", Limit: 10})
				if err != nil {
					t.Error(err)
					return
				}
				if n := len(sim.Results); n != 2 && n != 3 {
					t.Errorf("unexpected result count %d", n)
					return
				}
			}
		}()
	}
	wg.Wait()
	if v := e.Status().Version; v != 21 {
		t.Errorf("version = %d, want 21", v)
	}
}

func TestEngine_SearchTitlesAndMovies(t *testing.T) {
	e := fixtureEngine(t)
	resp, err := e.SearchTitles(context.Background(), "godfather", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) < 2 || resp.Results[0].Movie.Title != "The Godfather" {
		t.Errorf("search results = %v", titles(resp.Results))
	}
	if _, err := e.SearchTitles(context.Background(), "  ", 5); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	page, err := e.Movies(2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 11 || len(page.Movies) != 3 || page.Movies[0].Title != "The Dark Knight" {
		t.Errorf("page = %+v", page)
	}
	tail, err := e.Movies(10, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(tail.Movies) != 1 || tail.Movies[0].ReleaseYear != 0 {
		t.Errorf("tail = %+v", tail.Movies)
	}
	if _, err := e.Movies(-1, 0); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
