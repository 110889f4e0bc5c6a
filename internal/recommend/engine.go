// Package recommend provides the movie recommendation engine.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/config"
	"github.com/hyperjump/osusume/internal/features"
	"github.com/hyperjump/osusume/internal/metrics"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/vector"
)

// Engine answers recommendation queries against the currently published
// catalog generation. Replace and Reload build a complete new generation
// before publishing it, so readers never observe a mix of snapshots. Writers
// are serialized; reads take no lock.
type Engine struct {
	loader  catalog.Loader
	config  *config.EngineConfig
	logger  *zap.Logger
	metrics *metrics.Metrics

	defaultStrategy vector.Strategy
	requireNonEmpty bool

	writeMu sync.Mutex
	current atomic.Pointer[generation]
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records queries and reloads on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithRequireNonEmpty makes Replace reject empty snapshots with ErrEmptyCorpus.
func WithRequireNonEmpty() Option {
	return func(e *Engine) { e.requireNonEmpty = true }
}

// NewEngine creates an engine that publishes an empty catalog until the first
// Replace or Reload. loader may be nil when the caller only uses Replace.
func NewEngine(loader catalog.Loader, cfg *config.EngineConfig, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = &config.Default().Engine
	}
	strategy, err := vector.ParseStrategy(cfg.DefaultStrategy)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		loader:          loader,
		config:          cfg,
		logger:          zap.NewNop(),
		defaultStrategy: strategy,
	}
	for _, opt := range opts {
		opt(e)
	}

	empty, err := catalog.NewSnapshot(nil, "empty")
	if err != nil {
		return nil, err
	}
	gen, err := buildGeneration(context.Background(), empty, 0, e.buildOptions())
	if err != nil {
		return nil, err
	}
	e.current.Store(gen)
	return e, nil
}

func (e *Engine) buildOptions() buildOptions {
	return buildOptions{
		features:    features.Options{StopWords: e.config.StopWords},
		cacheSize:   e.config.CacheEntries(),
		suggestions: e.config.Suggestions,
	}
}

// Replace builds every derived structure for snap and publishes them as one
// generation. On error the previous generation stays published.
func (e *Engine) Replace(ctx context.Context, snap *catalog.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", models.ErrInvalidInput)
	}
	if e.requireNonEmpty && snap.Empty() {
		err := fmt.Errorf("replace catalog from %s: %w", snap.Source(), models.ErrEmptyCorpus)
		e.metrics.ObserveReload(0, err)
		return err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	prev := e.current.Load()
	gen, err := buildGeneration(ctx, snap, prev.version+1, e.buildOptions())
	if err != nil {
		e.metrics.ObserveReload(0, err)
		return err
	}
	// Readers may still hold prev; it is released once they finish.
	e.current.Store(gen)
	e.metrics.ObserveReload(snap.Len(), nil)
	e.logger.Info("catalog published",
		zap.String("snapshot", snap.ID()),
		zap.Uint64("version", gen.version),
		zap.Int("movies", snap.Len()),
		zap.Int("genres", len(gen.genreFreq)),
		zap.String("source", snap.Source()),
		zap.Duration("build_time", gen.buildTime),
	)
	return nil
}

// ReplaceRecords validates records into a snapshot and publishes it.
func (e *Engine) ReplaceRecords(ctx context.Context, records []models.MovieRecord, source string) error {
	snap, err := catalog.NewSnapshot(records, source)
	if err != nil {
		e.metrics.ObserveReload(0, err)
		return err
	}
	return e.Replace(ctx, snap)
}

// Reload reads the catalog from the configured loader and publishes it.
// A failed load leaves the current generation in place.
func (e *Engine) Reload(ctx context.Context) (*models.CatalogStatus, error) {
	if e.loader == nil {
		return nil, errors.New("no catalog loader configured")
	}
	records, err := e.loader.Load(ctx)
	if err != nil {
		err = fmt.Errorf("load catalog from %s: %w", e.loader.Describe(), err)
		e.metrics.ObserveReload(0, err)
		e.logger.Warn("catalog reload failed", zap.Error(err))
		return nil, err
	}
	if err := e.ReplaceRecords(ctx, records, e.loader.Describe()); err != nil {
		e.logger.Warn("catalog reload failed", zap.Error(err))
		return nil, err
	}
	return e.Status(), nil
}

// Status describes the published generation.
func (e *Engine) Status() *models.CatalogStatus {
	return e.current.Load().status()
}

// Snapshot returns the published snapshot.
func (e *Engine) Snapshot() *catalog.Snapshot {
	return e.current.Load().snap
}

// DefaultStrategy returns the strategy used when a query names none.
func (e *Engine) DefaultStrategy() vector.Strategy {
	return e.defaultStrategy
}

// Config returns the engine settings.
func (e *Engine) Config() config.EngineConfig {
	return *e.config
}
