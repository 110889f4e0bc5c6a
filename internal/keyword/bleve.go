package keyword

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/models"
)

// TitleHit is a single title search hit. Row is the position in the indexed
// snapshot.
type TitleHit struct {
	Row   int
	Score float64
}

// TitleIndex is an in-memory Bleve index over the titles of one snapshot.
type TitleIndex struct {
	index      bleve.Index
	snapshotID string
	size       int
}

// NewTitleIndex indexes every title in snap. The index lives in memory and is
// rebuilt with each snapshot.
func NewTitleIndex(ctx context.Context, snap *catalog.Snapshot) (*TitleIndex, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer: lowercase + tokenize, no stemming, so "godfather"
	// matches exactly and fuzzy terms are compared against surface forms.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	genreFieldMapping := bleve.NewTextFieldMapping()
	genreFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("genres", genreFieldMapping)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}

	batch := index.NewBatch()
	var indexErr error
	snap.Each(func(row catalog.Row, m *models.MovieRecord) bool {
		if err := ctx.Err(); err != nil {
			indexErr = err
			return false
		}
		doc := map[string]interface{}{
			"title":  m.Title,
			"genres": strings.Join(m.Genres, " "),
		}
		if err := batch.Index(strconv.Itoa(row.Index()), doc); err != nil {
			indexErr = fmt.Errorf("index title %q: %w", m.Title, err)
			return false
		}
		return true
	})
	if indexErr == nil && batch.Size() > 0 {
		indexErr = index.Batch(batch)
	}
	if indexErr != nil {
		_ = index.Close()
		return nil, indexErr
	}
	t := &TitleIndex{index: index, snapshotID: snap.ID(), size: snap.Len()}
	n, err := t.DocCount()
	if err == nil && n != uint64(t.size) {
		err = fmt.Errorf("indexed %d titles, snapshot has %d", n, t.size)
	}
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	return t, nil
}

// SnapshotID returns the ID of the indexed snapshot.
func (t *TitleIndex) SnapshotID() string { return t.snapshotID }

// Search returns up to limit titles matching query: exact terms score highest,
// then prefixes of the last term (autocomplete), then fuzzy matches. Results
// are ordered by score, ties by row.
func (t *TitleIndex) Search(ctx context.Context, query string, limit int) ([]TitleHit, error) {
	terms := tokenizeQuery(query)
	if len(terms) == 0 || limit <= 0 || t.size == 0 {
		return nil, nil
	}

	match := bleve.NewMatchQuery(query)
	match.SetField("title")
	match.SetBoost(3)
	queries := []blevequery.Query{match}

	prefix := bleve.NewPrefixQuery(terms[len(terms)-1])
	prefix.SetField("title")
	prefix.SetBoost(2)
	queries = append(queries, prefix)

	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzzinessFor(term))
		fq.SetField("title")
		queries = append(queries, fq)
	}

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(queries...))
	req.Size = limit
	results, err := t.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	hits := make([]TitleHit, 0, len(results.Hits))
	for _, h := range results.Hits {
		row, err := strconv.Atoi(h.ID)
		if err != nil {
			return nil, fmt.Errorf("unexpected document id %q: %w", h.ID, err)
		}
		hits = append(hits, TitleHit{Row: row, Score: h.Score})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Row < hits[j].Row
	})
	return hits, nil
}

// DocCount returns the number of indexed titles.
func (t *TitleIndex) DocCount() (uint64, error) {
	return t.index.DocCount()
}

// Close releases the index.
func (t *TitleIndex) Close() error {
	return t.index.Close()
}

// fuzzinessFor allows one edit for short terms and two for longer ones.
func fuzzinessFor(term string) int {
	if len([]rune(term)) <= 4 {
		return 1
	}
	return 2
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}
