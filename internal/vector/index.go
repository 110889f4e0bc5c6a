// Package vector provides the similarity providers that rank catalog rows.
package vector

import (
	"sort"

	"github.com/hyperjump/osusume/internal/catalog"
)

// DefaultK is the number of neighbors returned when k <= 0.
const DefaultK = 5

// Provider ranks rows of one snapshot against each other.
type Provider interface {
	Strategy() Strategy
	SnapshotID() string
	// Size returns the number of indexed rows.
	Size() int
	// Neighbors returns up to k rows ordered best first, excluding row itself.
	Neighbors(row catalog.Row, k int) ([]Neighbor, error)
	// Score returns the similarity (tfidf) or distance (knn) between two rows.
	Score(a, b catalog.Row) (float64, error)
}

// Neighbor is a single ranked row. Score is a cosine similarity for the tfidf
// strategy and a Euclidean distance for knn.
type Neighbor struct {
	Row   catalog.Row
	Score float64
}

type candidate struct {
	index int
	score float64
}

// rank orders candidates by score (descending when higherIsBetter) with ties
// broken by ascending row index, and keeps the first k.
func rank(cands []candidate, k int, higherIsBetter bool) []candidate {
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.score != b.score {
			if higherIsBetter {
				return a.score > b.score
			}
			return a.score < b.score
		}
		return a.index < b.index
	})
	if k > len(cands) {
		k = len(cands)
	}
	return cands[:k]
}

func normalizeK(k int) int {
	if k <= 0 {
		return DefaultK
	}
	return k
}

func toNeighbors(snapshotID string, cands []candidate) []Neighbor {
	out := make([]Neighbor, len(cands))
	for i, c := range cands {
		out[i] = Neighbor{Row: catalog.BindRow(snapshotID, c.index), Score: c.score}
	}
	return out
}
