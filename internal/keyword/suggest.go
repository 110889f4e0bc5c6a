// Package keyword provides title search and "did you mean" suggestions.
package keyword

import (
	"sort"
	"strings"
)

// TermDictionary supplies the known terms and their document frequencies.
type TermDictionary interface {
	Terms() []string
	Frequency(term string) int
}

// Suggestion is a dictionary term close to a misspelled input.
type Suggestion struct {
	Term      string `json:"term"`
	Distance  int    `json:"distance"`
	Frequency int    `json:"frequency"`
}

// Suggester finds dictionary terms within a small edit distance of a query.
// Comparison is case-insensitive so "drama" suggests "Drama".
type Suggester struct {
	dictionary     TermDictionary
	maxDistance    int
	maxSuggestions int
}

// SuggesterOption configures a Suggester.
type SuggesterOption func(*Suggester)

// WithMaxDistance sets the largest edit distance considered. Default 2.
func WithMaxDistance(d int) SuggesterOption {
	return func(s *Suggester) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithMaxSuggestions caps the number of suggestions. Default 3.
func WithMaxSuggestions(n int) SuggesterOption {
	return func(s *Suggester) {
		if n > 0 {
			s.maxSuggestions = n
		}
	}
}

// NewSuggester returns a suggester over dict.
func NewSuggester(dict TermDictionary, opts ...SuggesterOption) *Suggester {
	s := &Suggester{dictionary: dict, maxDistance: 2, maxSuggestions: 3}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Suggest returns the closest terms ordered by distance, then frequency
// descending, then term. Terms that are a case-insensitive prefix match of
// input count as distance 1 when that is closer.
func (s *Suggester) Suggest(input string) []Suggestion {
	needle := strings.ToLower(strings.TrimSpace(input))
	if needle == "" {
		return nil
	}
	var out []Suggestion
	for _, term := range s.dictionary.Terms() {
		lower := strings.ToLower(term)
		if abs(len([]rune(lower))-len([]rune(needle))) > s.maxDistance && !strings.HasPrefix(lower, needle) {
			continue
		}
		d := DamerauLevenshteinDistance(needle, lower)
		if d > 1 && strings.HasPrefix(lower, needle) {
			d = 1
		}
		if d > s.maxDistance {
			continue
		}
		out = append(out, Suggestion{Term: term, Distance: d, Frequency: s.dictionary.Frequency(term)})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		return a.Term < b.Term
	})
	if len(out) > s.maxSuggestions {
		out = out[:s.maxSuggestions]
	}
	return out
}

// Terms returns just the suggested terms.
func (s *Suggester) Terms(input string) []string {
	sugs := s.Suggest(input)
	out := make([]string, len(sugs))
	for i, sg := range sugs {
		out[i] = sg.Term
	}
	return out
}

// FrequencyMap is a TermDictionary backed by a map.
type FrequencyMap map[string]int

// Terms implements TermDictionary.
func (m FrequencyMap) Terms() []string {
	out := make([]string, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Frequency implements TermDictionary.
func (m FrequencyMap) Frequency(term string) int { return m[term] }

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
