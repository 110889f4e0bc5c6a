package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/config"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/recommend"
)

// recommender is what the query commands need. It is served either by an
// in-process engine or by a running server.
type recommender interface {
	Similar(ctx context.Context, q models.SimilarQuery) (*models.SimilarResponse, error)
	Genre(ctx context.Context, q models.GenreQuery) (*models.GenreResponse, error)
	Genres(ctx context.Context) ([]string, error)
	Search(ctx context.Context, query string, limit int) (*models.TitleSearchResponse, error)
	Status(ctx context.Context) (*models.CatalogStatus, error)
}

// localBackend answers from an engine loaded in this process.
type localBackend struct {
	engine *recommend.Engine
}

func newLocalBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*localBackend, error) {
	loader, err := catalog.NewLoader(cfg.Catalog.Path, cfg.Catalog.Format)
	if err != nil {
		return nil, err
	}
	engine, err := recommend.NewEngine(loader, &cfg.Engine, recommend.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if _, err := engine.Reload(ctx); err != nil {
		return nil, err
	}
	return &localBackend{engine: engine}, nil
}

func (b *localBackend) Similar(ctx context.Context, q models.SimilarQuery) (*models.SimilarResponse, error) {
	return b.engine.RecommendBySimilarTitle(ctx, q)
}

func (b *localBackend) Genre(ctx context.Context, q models.GenreQuery) (*models.GenreResponse, error) {
	return b.engine.RecommendByGenre(ctx, q)
}

func (b *localBackend) Genres(context.Context) ([]string, error) {
	return b.engine.Genres(), nil
}

func (b *localBackend) Search(ctx context.Context, query string, limit int) (*models.TitleSearchResponse, error) {
	return b.engine.SearchTitles(ctx, query, limit)
}

func (b *localBackend) Status(context.Context) (*models.CatalogStatus, error) {
	return b.engine.Status(), nil
}

// httpBackend answers through the HTTP API of a running server.
type httpBackend struct {
	baseURL string
	client  *http.Client
}

func newHTTPBackend(serverURL string) *httpBackend {
	return &httpBackend{
		baseURL: strings.TrimRight(serverURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// apiError is the error body returned by the server.
type apiError struct {
	Error       string   `json:"error"`
	Suggestions []string `json:"suggestions"`
}

func (b *httpBackend) do(ctx context.Context, method, path string, body, out interface{}) (*apiError, int, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, rd)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		var ae apiError
		if jsonErr := json.Unmarshal(raw, &ae); jsonErr != nil || ae.Error == "" {
			ae.Error = strings.TrimSpace(string(raw))
		}
		return &ae, resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return nil, resp.StatusCode, nil
}

// remoteErr turns a server error into the sentinel the local engine would
// have returned, keeping the server's suggestions.
func remoteErr(ae *apiError, status int, kind, query string) error {
	switch status {
	case http.StatusNotFound:
		if kind != "" {
			return &models.LookupError{Kind: kind, Query: query, Suggestions: ae.Suggestions}
		}
		return fmt.Errorf("%w: %s", models.ErrNotFound, ae.Error)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", models.ErrInvalidInput, ae.Error)
	default:
		return fmt.Errorf("server returned %d: %s", status, ae.Error)
	}
}

func (b *httpBackend) Similar(ctx context.Context, q models.SimilarQuery) (*models.SimilarResponse, error) {
	var out models.SimilarResponse
	ae, status, err := b.do(ctx, http.MethodPost, "/api/v1/recommend/similar", q, &out)
	if err != nil {
		return nil, err
	}
	if ae != nil {
		return nil, remoteErr(ae, status, "title", q.Title)
	}
	return &out, nil
}

func (b *httpBackend) Genre(ctx context.Context, q models.GenreQuery) (*models.GenreResponse, error) {
	body := map[string]interface{}{"genre": q.Genre, "min_rating": q.MinRating, "limit": q.Limit}
	var out models.GenreResponse
	ae, status, err := b.do(ctx, http.MethodPost, "/api/v1/recommend/genre", body, &out)
	if err != nil {
		return nil, err
	}
	if ae != nil {
		return nil, remoteErr(ae, status, "genre", q.Genre)
	}
	return &out, nil
}

func (b *httpBackend) Genres(ctx context.Context) ([]string, error) {
	var out struct {
		Genres []string `json:"genres"`
	}
	ae, status, err := b.do(ctx, http.MethodGet, "/api/v1/genres", nil, &out)
	if err != nil {
		return nil, err
	}
	if ae != nil {
		return nil, remoteErr(ae, status, "", "")
	}
	return out.Genres, nil
}

func (b *httpBackend) Search(ctx context.Context, query string, limit int) (*models.TitleSearchResponse, error) {
	v := url.Values{"q": {query}}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	var out models.TitleSearchResponse
	ae, status, err := b.do(ctx, http.MethodGet, "/api/v1/movies/search?"+v.Encode(), nil, &out)
	if err != nil {
		return nil, err
	}
	if ae != nil {
		return nil, remoteErr(ae, status, "", "")
	}
	return &out, nil
}

func (b *httpBackend) Status(ctx context.Context) (*models.CatalogStatus, error) {
	var out struct {
		Catalog *models.CatalogStatus `json:"catalog"`
	}
	ae, status, err := b.do(ctx, http.MethodGet, "/api/v1/status", nil, &out)
	if err != nil {
		return nil, err
	}
	if ae != nil {
		return nil, remoteErr(ae, status, "", "")
	}
	if out.Catalog == nil {
		return nil, errors.New("status response has no catalog section")
	}
	return out.Catalog, nil
}
