package models

import "time"

// Recommendation is a single ranked movie.
type Recommendation struct {
	Movie *MovieRecord `json:"movie"`
	// Score is the cosine similarity for the tfidf strategy, the Euclidean
	// distance for knn, and the bleve relevance for title search. Genre
	// listings leave it at zero.
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// SimilarResponse is the response for a similar-title request.
type SimilarResponse struct {
	Query      string            `json:"query"`
	Strategy   string            `json:"strategy"`
	Matched    *MovieRecord      `json:"matched"`
	Results    []*Recommendation `json:"results"`
	Total      int               `json:"total"`
	QueryTime  int64             `json:"query_time_ms"`
	SnapshotID string            `json:"snapshot_id"`
	Cached     bool              `json:"cached,omitempty"`
}

// Clone returns a deep copy of r.
func (r *Recommendation) Clone() *Recommendation {
	out := *r
	if r.Movie != nil {
		m := r.Movie.Clone()
		out.Movie = &m
	}
	return &out
}

// Clone returns a deep copy of r, so a cached response can be handed out
// without sharing records with later callers.
func (r *SimilarResponse) Clone() *SimilarResponse {
	out := *r
	if r.Matched != nil {
		m := r.Matched.Clone()
		out.Matched = &m
	}
	if r.Results != nil {
		out.Results = make([]*Recommendation, len(r.Results))
		for i, rec := range r.Results {
			out.Results[i] = rec.Clone()
		}
	}
	return &out
}

// GenreResponse is the response for a genre request.
type GenreResponse struct {
	Genre      string            `json:"genre"`
	MinRating  float64           `json:"min_rating"`
	Results    []*Recommendation `json:"results"`
	Total      int               `json:"total"` // matches before Limit is applied
	QueryTime  int64             `json:"query_time_ms"`
	SnapshotID string            `json:"snapshot_id"`
}

// TitleSearchResponse is the response for a title search.
type TitleSearchResponse struct {
	Query      string            `json:"query"`
	Results    []*Recommendation `json:"results"`
	SnapshotID string            `json:"snapshot_id"`
}

// CatalogStatus describes the currently published catalog generation.
type CatalogStatus struct {
	SnapshotID     string    `json:"snapshot_id"`
	Version        uint64    `json:"version"`
	Movies         int       `json:"movies"`
	Genres         int       `json:"genres"`
	FeatureColumns int       `json:"feature_columns"`
	Source         string    `json:"source"`
	BuiltAt        time.Time `json:"built_at"`
	BuildTimeMS    int64     `json:"build_time_ms"`
	CachedQueries  int       `json:"cached_queries"`
}

// MoviePage is one page of the catalog in row order.
type MoviePage struct {
	Movies     []*MovieRecord `json:"movies"`
	Total      int            `json:"total"`
	Offset     int            `json:"offset"`
	Limit      int            `json:"limit"`
	SnapshotID string         `json:"snapshot_id"`
}
