// Package main is the Osusume CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/cli"
	"github.com/hyperjump/osusume/internal/config"
	"github.com/hyperjump/osusume/internal/imdb"
	"github.com/hyperjump/osusume/internal/metrics"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/recommend"
	"github.com/hyperjump/osusume/internal/server"
	"github.com/hyperjump/osusume/internal/storage"
	"github.com/hyperjump/osusume/internal/watcher"
	"github.com/hyperjump/osusume/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/osusume/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		// No config installed yet: run on defaults.
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	var err error
	switch command {
	case "server":
		err = runServer(args)
	case "similar":
		err = runSimilar(args)
	case "genre":
		err = runGenre(args)
	case "genres":
		err = runGenres(args)
	case "search":
		err = runSearch(args)
	case "status":
		err = runStatus(args)
	case "import":
		err = runImport(args)
	case "prepare":
		err = runPrepare(args)
	case "version", "--version", "-v":
		fmt.Printf("osusume version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cli.WriteSuggestions(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(args []string) error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("catalog", cfg.Catalog.Path),
		zap.Bool("debug", debugMode),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	loader, err := catalog.NewLoader(cfg.Catalog.Path, cfg.Catalog.Format)
	if err != nil {
		return err
	}
	engine, err := recommend.NewEngine(loader, &cfg.Engine,
		recommend.WithLogger(logger),
		recommend.WithMetrics(metrics.New(reg)),
		recommend.WithRequireNonEmpty(),
	)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := engine.Reload(ctx); err != nil {
		logger.Fatal("Failed to load catalog", zap.String("path", cfg.Catalog.Path), zap.Error(err))
	}

	if cfg.Catalog.WatchOrDefault() {
		watchOpts := []watcher.WatcherOption{
			watcher.WithDebounce(time.Duration(cfg.Catalog.DebounceMS) * time.Millisecond),
		}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		w := watcher.NewWatcher(cfg.Catalog.Path, watcher.ReloadFunc(engine, logger), watchOpts...)
		if err := w.Start(ctx); err != nil {
			logger.Warn("catalog watch disabled", zap.String("path", cfg.Catalog.Path), zap.Error(err))
		} else {
			defer w.Stop()
		}
	}

	srv := server.NewServer(engine, cfg, logger, reg)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}

// queryFlags are shared by the query commands.
type queryFlags struct {
	configPath *string
	serverURL  *string
	output     *string
	debug      *bool
}

func addQueryFlags(fs *flag.FlagSet) *queryFlags {
	return &queryFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		serverURL:  fs.String("server", "", "server URL, e.g. http://localhost:8080 (empty = load the catalog directly)"),
		output:     fs.String("output", "text", "output format: text, compact or json"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
	}
}

// open returns the backend selected by the flags together with the loaded config.
func (q *queryFlags) open(ctx context.Context) (recommender, *config.Config, cli.OutputFormat, error) {
	format, err := cli.ParseOutputFormat(*q.output)
	if err != nil {
		return nil, nil, "", err
	}
	cfg, _, err := loadConfig(*q.configPath)
	if err != nil {
		return nil, nil, "", fmt.Errorf("load config: %w", err)
	}
	if *q.serverURL != "" {
		return newHTTPBackend(*q.serverURL), cfg, format, nil
	}
	logger, err := utils.NewCLILogger(cfg.Debug || *q.debug)
	if err != nil {
		return nil, nil, "", fmt.Errorf("create logger: %w", err)
	}
	b, err := newLocalBackend(ctx, cfg, logger)
	if err != nil {
		return nil, nil, "", err
	}
	return b, cfg, format, nil
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front so that flag.Parse sees them. Go's flag
// package stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildQuery joins positional args so multi-word titles work with or without quotes.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runSimilar(args []string) error {
	fs := flag.NewFlagSet("similar", flag.ExitOnError)
	qf := addQueryFlags(fs)
	strategy := fs.String("strategy", "", "similarity strategy: tfidf (genre cosine) or knn (feature distance); empty = config default")
	limit := fs.Int("limit", 0, "number of recommendations (0 = config default)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: osusume similar [flags] <title>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(args))
	title := buildQuery(fs.Args())
	if title == "" {
		fs.Usage()
		return fmt.Errorf("%w: title is required", models.ErrInvalidInput)
	}

	ctx := context.Background()
	b, _, format, err := qf.open(ctx)
	if err != nil {
		return err
	}
	resp, err := b.Similar(ctx, models.SimilarQuery{Title: title, Strategy: *strategy, Limit: *limit})
	if err != nil {
		return err
	}
	return cli.WriteSimilar(os.Stdout, resp, format)
}

func runGenre(args []string) error {
	fs := flag.NewFlagSet("genre", flag.ExitOnError)
	qf := addQueryFlags(fs)
	minRating := fs.Float64("min-rating", -1, "minimum rating in [0, 10] (default from config)")
	limit := fs.Int("limit", -1, "number of movies, 0 = all (default from config)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: osusume genre [flags] <genre>\n\nGenre names are case-sensitive; see `osusume genres`.\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(args))
	genre := buildQuery(fs.Args())
	if genre == "" {
		fs.Usage()
		return fmt.Errorf("%w: genre is required", models.ErrInvalidInput)
	}

	ctx := context.Background()
	b, cfg, format, err := qf.open(ctx)
	if err != nil {
		return err
	}
	q := genreQuery(genre, *minRating, *limit, &cfg.Engine)
	resp, err := b.Genre(ctx, q)
	if err != nil {
		return err
	}
	return cli.WriteGenre(os.Stdout, resp, format)
}

// genreQuery fills unset flags (negative) from the engine config.
func genreQuery(genre string, minRating float64, limit int, ec *config.EngineConfig) models.GenreQuery {
	q := models.GenreQuery{Genre: genre, MinRating: minRating, Limit: limit}
	if minRating < 0 {
		q.MinRating = ec.DefaultMinRating
	}
	if limit < 0 {
		q.Limit = ec.GenreLimit
	}
	return q
}

func runGenres(args []string) error {
	fs := flag.NewFlagSet("genres", flag.ExitOnError)
	qf := addQueryFlags(fs)
	_ = fs.Parse(args)

	ctx := context.Background()
	b, _, format, err := qf.open(ctx)
	if err != nil {
		return err
	}
	genres, err := b.Genres(ctx)
	if err != nil {
		return err
	}
	return cli.WriteGenres(os.Stdout, genres, format)
}

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	qf := addQueryFlags(fs)
	limit := fs.Int("limit", 10, "number of titles")
	_ = fs.Parse(argsReorder(args))
	query := buildQuery(fs.Args())
	if query == "" {
		fmt.Fprintln(os.Stderr, "Usage: osusume search [flags] <query>")
		return fmt.Errorf("%w: query is required", models.ErrInvalidInput)
	}

	ctx := context.Background()
	b, _, format, err := qf.open(ctx)
	if err != nil {
		return err
	}
	resp, err := b.Search(ctx, query, *limit)
	if err != nil {
		return err
	}
	return cli.WriteSearch(os.Stdout, resp, format)
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	qf := addQueryFlags(fs)
	_ = fs.Parse(args)

	ctx := context.Background()
	b, _, format, err := qf.open(ctx)
	if err != nil {
		return err
	}
	st, err := b.Status(ctx)
	if err != nil {
		return err
	}
	return cli.WriteStatus(os.Stdout, st, format)
}

func runImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dbPath := fs.String("db", "", "SQLite database to write (default: storage.database_path)")
	format := fs.String("format", "", "source format: csv, tsv or xlsx (default: from extension)")
	_ = fs.Parse(argsReorder(args))
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: osusume import [flags] <catalog.csv|catalog.xlsx>")
		return fmt.Errorf("%w: source file is required", models.ErrInvalidInput)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	target := *dbPath
	if target == "" {
		target = cfg.Storage.DatabasePath
	}
	sum, err := importCatalog(context.Background(), fs.Arg(0), *format, target)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d movie(s) with %d genre(s) into %s\n", sum.Movies, len(sum.Genres), target)
	return nil
}

// importSummary is what the store holds after an import.
type importSummary struct {
	Movies int64
	Genres []string
}

func importCatalog(ctx context.Context, src, format, dbPath string) (*importSummary, error) {
	loader, err := catalog.NewLoader(src, format)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	if _, err := catalog.Import(ctx, loader, store); err != nil {
		return nil, err
	}
	return summarizeStore(ctx, store)
}

func summarizeStore(ctx context.Context, store storage.Store) (*importSummary, error) {
	n, err := store.CountMovies(ctx)
	if err != nil {
		return nil, fmt.Errorf("count movies: %w", err)
	}
	genres, err := store.Genres(ctx)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	return &importSummary{Movies: n, Genres: genres}, nil
}

func runPrepare(args []string) error {
	fs := flag.NewFlagSet("prepare", flag.ExitOnError)
	basics := fs.String("basics", "title.basics.tsv", "IMDb title.basics.tsv")
	ratings := fs.String("ratings", "title.ratings.tsv", "IMDb title.ratings.tsv")
	top := fs.Int("top", imdb.DefaultTop, "number of movies to keep")
	out := fs.String("out", "top100_clean.csv", "output catalog (.csv or .xlsx)")
	_ = fs.Parse(args)

	n, err := prepareCatalog(context.Background(), *basics, *ratings, *top, *out)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d movie(s) to %s\n", n, *out)
	return nil
}

func prepareCatalog(ctx context.Context, basicsPath, ratingsPath string, top int, outPath string) (int, error) {
	bf, err := os.Open(basicsPath)
	if err != nil {
		return 0, err
	}
	defer bf.Close()
	rf, err := os.Open(ratingsPath)
	if err != nil {
		return 0, err
	}
	defer rf.Close()

	records, err := imdb.Prepare(ctx, bf, rf, top)
	if err != nil {
		return 0, err
	}
	write := func(w io.Writer) error { return imdb.WriteCSV(w, records) }
	if strings.EqualFold(filepath.Ext(outPath), ".xlsx") {
		write = func(w io.Writer) error { return catalog.WriteXLSX(w, records) }
	}
	if err := writeFileAtomic(outPath, write); err != nil {
		return 0, err
	}
	return len(records), nil
}

// writeFileAtomic writes through a temp file and renames it into place, so a
// watching server never reads a half-written catalog.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func printUsage() {
	fmt.Println(`osusume - Movie recommendations from a ranked catalog

Usage:
  osusume server [flags]             Start the HTTP server
  osusume similar [flags] <title>    Recommend movies similar to a title
  osusume genre [flags] <genre>      Top movies of a genre
  osusume genres [flags]             List genres in the catalog
  osusume search [flags] <query>     Fuzzy title search
  osusume status [flags]             Show catalog status
  osusume import [flags] <file>      Import a CSV/XLSX catalog into SQLite
  osusume prepare [flags]            Build a catalog CSV from IMDb dumps
  osusume version                    Show version
  osusume help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/osusume/config.yaml)
  --debug            Enable debug logging

Query Flags (similar, genre, genres, search, status):
  --config string    Config file path
  --server string    Server URL; empty (default) loads the catalog directly
  --output string    Output format: text, compact or json (default: text)

Similar Flags:
  --strategy string  tfidf (genre cosine similarity) or knn (genre, rating and year distance)
  --limit int        Number of recommendations (default from config)

Genre Flags:
  --min-rating float Minimum rating in [0, 10] (default from config)
  --limit int        Number of movies, 0 = all (default from config)

Import Flags:
  --db string        Target SQLite database (default: storage.database_path)
  --format string    csv, tsv or xlsx (default: from extension)

Prepare Flags:
  --basics string    IMDb title.basics.tsv
  --ratings string   IMDb title.ratings.tsv
  --top int          Movies to keep (default: 100)
  --out string       Output CSV (default: top100_clean.csv)

Examples:
  osusume server
  osusume similar "The Godfather"
  osusume similar godfather --strategy knn --limit 10
  osusume genre Drama --min-rating 8.5
  osusume genres --server http://localhost:8080
  osusume search incepton
  osusume import top100_clean.csv --db catalog.db
  osusume prepare --basics title.basics.tsv --ratings title.ratings.tsv --top 100`)
}
