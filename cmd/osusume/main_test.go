package main

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/config"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/recommend"
	"github.com/hyperjump/osusume/internal/server"
	"github.com/hyperjump/osusume/internal/storage"
)

const fixtureCSV = "../../internal/catalog/testdata/movies.csv"

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after title are moved first",
			args:     []string{"the godfather", "-limit", "3"},
			expected: []string{"-limit", "3", "the godfather"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-strategy", "knn", "godfather"},
			expected: []string{"-strategy", "knn", "godfather"},
		},
		{
			name:     "title only returns unchanged",
			args:     []string{"godfather"},
			expected: []string{"godfather"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"spirited", "away", "--output", "json"},
			expected: []string{"--output", "json", "spirited", "away"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"godfather"}, "godfather"},
		{"multiple words", []string{"the", "godfather"}, "the godfather"},
		{"single quoted phrase", []string{"the godfather"}, "the godfather"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuery(tt.args); got != tt.expected {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestGenreQuery_Defaults(t *testing.T) {
	ec := &config.EngineConfig{DefaultMinRating: 7.5, GenreLimit: 5}
	if q := genreQuery("Drama", -1, -1, ec); q.MinRating != 7.5 || q.Limit != 5 {
		t.Errorf("unset flags: %+v", q)
	}
	if q := genreQuery("Drama", 0, 0, ec); q.MinRating != 0 || q.Limit != 0 {
		t.Errorf("explicit zeros must be kept: %+v", q)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
catalog:
  path: "./movies.csv"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
	if filepath.Base(cfg.Catalog.Path) != "movies.csv" || !filepath.IsAbs(cfg.Catalog.Path) {
		t.Errorf("catalog path = %s", cfg.Catalog.Path)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if _, _, err := loadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("explicit missing config should fail")
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	abs, err := filepath.Abs(fixtureCSV)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Catalog.Path = abs
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "catalog.db")
	return cfg
}

// backends returns the in-process backend and an HTTP backend talking to a
// test server over the same catalog.
func backends(t *testing.T) map[string]recommender {
	t.Helper()
	cfg := testConfig(t)
	local, err := newLocalBackend(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	loader, err := catalog.NewLoader(cfg.Catalog.Path, "")
	if err != nil {
		t.Fatal(err)
	}
	engine, err := recommend.NewEngine(loader, &cfg.Engine)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(server.NewServer(engine, cfg, zap.NewNop(), nil).Routes())
	t.Cleanup(ts.Close)

	return map[string]recommender{"local": local, "http": newHTTPBackend(ts.URL + "/")}
}

func TestBackends_Similar(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			resp, err := b.Similar(ctx, models.SimilarQuery{Title: "godfather", Strategy: "tfidf", Limit: 2})
			if err != nil {
				t.Fatal(err)
			}
			if resp.Matched.Title != "The Godfather" || len(resp.Results) != 2 || resp.Results[0].Movie.Title != "The Godfather Part II" {
				t.Errorf("resp = %+v", resp)
			}

			_, err = b.Similar(ctx, models.SimilarQuery{Title: "Incepton"})
			if !errors.Is(err, models.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if sugs := models.SuggestionsOf(err); len(sugs) == 0 || sugs[0] != "Inception" {
				t.Errorf("suggestions = %v", sugs)
			}

			if _, err := b.Similar(ctx, models.SimilarQuery{Title: "godfather", Strategy: "bogus"}); !errors.Is(err, models.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestBackends_GenreAndListing(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			resp, err := b.Genre(ctx, models.GenreQuery{Genre: "Animation", MinRating: 8})
			if err != nil {
				t.Fatal(err)
			}
			if len(resp.Results) != 1 || resp.Results[0].Movie.Title != "Spirited Away" {
				t.Errorf("results = %+v", resp.Results)
			}
			if _, err := b.Genre(ctx, models.GenreQuery{Genre: "Comedyy"}); !errors.Is(err, models.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}

			genres, err := b.Genres(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(genres) != 10 {
				t.Errorf("genres = %v", genres)
			}

			search, err := b.Search(ctx, "samurai", 3)
			if err != nil {
				t.Fatal(err)
			}
			if len(search.Results) == 0 || search.Results[0].Movie.Title != "Seven Samurai" {
				t.Errorf("search = %+v", search.Results)
			}

			st, err := b.Status(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if st.Movies != 11 {
				t.Errorf("status = %+v", st)
			}
		})
	}
}

func TestImportCatalog(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "db", "catalog.db")
	sum, err := importCatalog(context.Background(), fixtureCSV, "", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Movies != 11 || len(sum.Genres) != 10 {
		t.Errorf("imported %d movies with %d genres, want 11 and 10", sum.Movies, len(sum.Genres))
	}
	if sum.Genres[0] != "Action" {
		t.Errorf("genres should be sorted, got %v", sum.Genres)
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	count, err := store.CountMovies(context.Background())
	if err != nil || count != 11 {
		t.Errorf("CountMovies = %d, %v", count, err)
	}

	if _, err := importCatalog(context.Background(), "movies.pdf", "", dbPath); err == nil {
		t.Error("unsupported extension should fail")
	}
}

func TestPrepareCatalog(t *testing.T) {
	dir := t.TempDir()
	basics := filepath.Join(dir, "title.basics.tsv")
	ratings := filepath.Join(dir, "title.ratings.tsv")
	writeTestFile(t, basics, "tconst\ttitleType\tprimaryTitle\tstartYear\tgenres\n"+
		"tt0111161\tmovie\tThe Shawshank Redemption\t1994\tDrama\n"+
		"tt0068646\tmovie\tThe Godfather\t1972\tCrime,Drama\n")
	writeTestFile(t, ratings, "tconst\taverageRating\tnumVotes\n"+
		"tt0111161\t9.3\t2800000\n"+
		"tt0068646\t9.2\t2000000\n")
	out := filepath.Join(dir, "out", "top.csv")

	n, err := prepareCatalog(context.Background(), basics, ratings, 1, out)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("wrote %d, want 1", n)
	}
	records, err := catalog.NewCSVLoader(out).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Title != "The Shawshank Redemption" {
		t.Errorf("records = %+v", records)
	}
	entries, _ := os.ReadDir(filepath.Dir(out))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestPrepareCatalog_XLSX(t *testing.T) {
	dir := t.TempDir()
	basics := filepath.Join(dir, "title.basics.tsv")
	ratings := filepath.Join(dir, "title.ratings.tsv")
	writeTestFile(t, basics, "tconst\ttitleType\tprimaryTitle\tstartYear\tgenres\n"+
		"tt0111161\tmovie\tThe Shawshank Redemption\t1994\tDrama\n"+
		"tt0068646\tmovie\tThe Godfather\t1972\tCrime,Drama\n")
	writeTestFile(t, ratings, "tconst\taverageRating\tnumVotes\n"+
		"tt0111161\t9.3\t2800000\n"+
		"tt0068646\t9.2\t2000000\n")
	out := filepath.Join(dir, "top.xlsx")

	if _, err := prepareCatalog(context.Background(), basics, ratings, 10, out); err != nil {
		t.Fatal(err)
	}
	records, err := catalog.NewXLSXLoader(out, "").Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[1].Title != "The Godfather" || len(records[1].Genres) != 2 {
		t.Errorf("records = %+v", records)
	}
}

func TestWriteFileAtomic_FailureKeepsOriginal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.csv")
	writeTestFile(t, path, "original")
	err := writeFileAtomic(path, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return errors.New("disk full")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	b, _ := os.ReadFile(path)
	if string(b) != "original" {
		t.Errorf("file = %q", b)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
