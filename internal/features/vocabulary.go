// Package features turns catalog snapshots into numeric matrices.
package features

import (
	"fmt"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/models"
)

// Vocabulary is the sorted set of genre tokens observed in one snapshot.
type Vocabulary struct {
	terms []string
	index map[string]int
}

func newVocabulary(snap *catalog.Snapshot, keep func(string) bool) *Vocabulary {
	seen := make(map[string]struct{})
	snap.Each(func(_ catalog.Row, m *models.MovieRecord) bool {
		for _, g := range m.Genres {
			if keep == nil || keep(g) {
				seen[g] = struct{}{}
			}
		}
		return true
	})
	terms := make([]string, 0, len(seen))
	for g := range seen {
		terms = append(terms, g)
	}
	sort.Strings(terms)
	index := make(map[string]int, len(terms))
	for i, g := range terms {
		index[g] = i
	}
	return &Vocabulary{terms: terms, index: index}
}

// Len returns the number of terms.
func (v *Vocabulary) Len() int { return len(v.terms) }

// Terms returns a copy of the sorted terms.
func (v *Vocabulary) Terms() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// Column returns the column of term, matched exactly.
func (v *Vocabulary) Column(term string) (int, bool) {
	i, ok := v.index[term]
	return i, ok
}

// Contains reports whether term is in the vocabulary.
func (v *Vocabulary) Contains(term string) bool {
	_, ok := v.index[term]
	return ok
}

// englishStopWords is the snowball English list bleve uses for its "stop_en"
// token filter. Genre names never collide with it in practice; it matters for
// free-form tag catalogs.
var englishStopWords = loadStopWords()

func loadStopWords() analysis.TokenMap {
	words := analysis.NewTokenMap()
	if err := words.LoadBytes(en.EnglishStopWords); err != nil {
		panic(fmt.Sprintf("load English stop words: %v", err))
	}
	return words
}

// IsStopWord reports whether token is an English stop word, case-insensitively.
func IsStopWord(token string) bool {
	return englishStopWords[strings.ToLower(strings.TrimSpace(token))]
}
