package recommend

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/features"
	"github.com/hyperjump/osusume/internal/keyword"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/vector"
)

// generation is one snapshot together with every structure derived from it.
// It is immutable once published; the cache is the only internally
// synchronized member.
type generation struct {
	snap      *catalog.Snapshot
	version   uint64
	genres    *features.GenreVectorMatrix
	features  *features.FeatureMatrix
	providers map[vector.Strategy]vector.Provider
	titles    *keyword.TitleIndex
	genreFreq keyword.FrequencyMap
	suggester *keyword.Suggester
	cache     *lru.Cache[string, *models.SimilarResponse]
	buildTime time.Duration
}

type buildOptions struct {
	features    features.Options
	cacheSize   int
	suggestions int
}

func buildGeneration(ctx context.Context, snap *catalog.Snapshot, version uint64, opts buildOptions) (*generation, error) {
	start := time.Now()
	g := &generation{
		snap:      snap,
		version:   version,
		genres:    features.VectorizeGenres(snap, opts.features),
		features:  features.EncodeFeatures(snap),
		providers: make(map[vector.Strategy]vector.Provider, 2),
		genreFreq: make(keyword.FrequencyMap),
	}
	g.providers[vector.StrategyTFIDF] = vector.NewCosineIndex(g.genres)
	g.providers[vector.StrategyKNN] = vector.NewEuclideanIndex(g.features)

	snap.Each(func(_ catalog.Row, m *models.MovieRecord) bool {
		for _, genre := range m.Genres {
			g.genreFreq[genre]++
		}
		return true
	})
	g.suggester = keyword.NewSuggester(g.genreFreq, keyword.WithMaxSuggestions(opts.suggestions))

	titles, err := keyword.NewTitleIndex(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("build title index: %w", err)
	}
	g.titles = titles

	if opts.cacheSize > 0 {
		cache, err := lru.New[string, *models.SimilarResponse](opts.cacheSize)
		if err != nil {
			_ = titles.Close()
			return nil, fmt.Errorf("create result cache: %w", err)
		}
		g.cache = cache
	}
	g.buildTime = time.Since(start)
	return g, nil
}

func (g *generation) provider(s vector.Strategy) (vector.Provider, error) {
	p, ok := g.providers[s]
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy: %s", models.ErrInvalidInput, s)
	}
	return p, nil
}

func (g *generation) status() *models.CatalogStatus {
	cached := 0
	if g.cache != nil {
		cached = g.cache.Len()
	}
	return &models.CatalogStatus{
		SnapshotID:     g.snap.ID(),
		Version:        g.version,
		Movies:         g.snap.Len(),
		Genres:         len(g.genreFreq),
		FeatureColumns: g.features.Cols(),
		Source:         g.snap.Source(),
		BuiltAt:        g.snap.BuiltAt(),
		BuildTimeMS:    g.buildTime.Milliseconds(),
		CachedQueries:  cached,
	}
}
