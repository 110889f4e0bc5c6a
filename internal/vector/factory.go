package vector

import (
	"fmt"
	"strings"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/features"
	"github.com/hyperjump/osusume/internal/models"
)

// Strategy names a recommendation strategy.
type Strategy string

const (
	// StrategyTFIDF ranks by cosine similarity of TF-IDF weighted genres.
	StrategyTFIDF Strategy = "tfidf"
	// StrategyKNN ranks by Euclidean distance over genres, rating and year.
	StrategyKNN Strategy = "knn"
)

// Strategies lists every supported strategy.
func Strategies() []Strategy {
	return []Strategy{StrategyTFIDF, StrategyKNN}
}

// ParseStrategy parses a strategy name. The empty string selects tfidf.
// "cosine" and "euclidean" are accepted as aliases.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", string(StrategyTFIDF), "cosine":
		return StrategyTFIDF, nil
	case string(StrategyKNN), "euclidean":
		return StrategyKNN, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy: %s (supported: tfidf, knn)", models.ErrInvalidInput, name)
	}
}

// NewProvider builds the derived structures a strategy needs from snap.
func NewProvider(strategy Strategy, snap *catalog.Snapshot, opts features.Options) (Provider, error) {
	switch strategy {
	case StrategyTFIDF:
		return NewCosineIndex(features.VectorizeGenres(snap, opts)), nil
	case StrategyKNN:
		return NewEuclideanIndex(features.EncodeFeatures(snap)), nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy: %s (supported: tfidf, knn)", models.ErrInvalidInput, strategy)
	}
}
