package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ec := s.engine.Config()
	resp := map[string]interface{}{
		"catalog": s.engine.Status(),
	}
	configInfo := map[string]interface{}{
		"default_strategy":   string(s.engine.DefaultStrategy()),
		"default_limit":      ec.DefaultLimit,
		"max_limit":          ec.MaxLimit,
		"genre_limit":        ec.GenreLimit,
		"default_min_rating": ec.DefaultMinRating,
		"stop_words":         ec.StopWords,
		"cache_size":         ec.CacheEntries(),
	}
	if s.config != nil {
		configInfo["catalog_path"] = s.config.Catalog.Path
		configInfo["catalog_format"] = s.config.Catalog.Format
		configInfo["watch"] = s.config.Catalog.WatchOrDefault()
		configInfo["database_path"] = s.config.Storage.DatabasePath

		diskBytes, err := storage.DiskUsageBytes(s.config.Catalog.Path, s.config.Storage.DatabasePath)
		if err == nil {
			resp["disk_usage_bytes"] = diskBytes
		} else {
			s.logger.Debug("status: disk usage failed", zap.Error(err))
		}

		info, err := storeInfo(r.Context(), s.config.Storage.DatabasePath)
		if err != nil {
			s.logger.Debug("status: catalog store unavailable", zap.Error(err))
		} else if info != nil {
			resp["store"] = info
		}
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

// storeInfo summarizes the imported catalog database. A missing database is
// reported as nil without error.
func storeInfo(ctx context.Context, path string) (map[string]interface{}, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	n, err := store.CountMovies(ctx)
	if err != nil {
		return nil, err
	}
	genres, err := store.Genres(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"path":   path,
		"movies": n,
		"genres": genres,
	}, nil
}

func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"genres": s.engine.Genres(),
		"counts": s.engine.GenreCounts(),
	}
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		resp["query"] = q
		resp["suggestions"] = s.engine.SuggestGenres(q)
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMovies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	limit, err := intParam(q.Get("limit"), 0)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	page, err := s.engine.Movies(offset, limit)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleSearchTitles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), 0)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.logger.Debug("title search request", zap.String("query", q.Get("q")), zap.Int("limit", limit))
	resp, err := s.engine.SearchTitles(r.Context(), q.Get("q"), limit)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	var query models.SimilarQuery
	if r.Method == http.MethodPost {
		if err := decodeBody(r, &query); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body", nil)
			return
		}
	} else {
		q := r.URL.Query()
		limit, err := intParam(q.Get("limit"), 0)
		if err != nil {
			s.respondEngineError(w, err)
			return
		}
		query = models.SimilarQuery{Title: q.Get("title"), Strategy: q.Get("strategy"), Limit: limit}
	}
	s.logger.Debug("similar request", zap.String("title", query.Title), zap.String("strategy", query.Strategy), zap.Int("limit", query.Limit))
	resp, err := s.engine.RecommendBySimilarTitle(r.Context(), query)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// genreRequest leaves min_rating and limit unset-able so the configured
// defaults apply when the client omits them.
type genreRequest struct {
	Genre     string   `json:"genre"`
	MinRating *float64 `json:"min_rating,omitempty"`
	Limit     *int     `json:"limit,omitempty"`
}

func (s *Server) handleGenre(w http.ResponseWriter, r *http.Request) {
	var req genreRequest
	if r.Method == http.MethodPost {
		if err := decodeBody(r, &req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body", nil)
			return
		}
	} else {
		q := r.URL.Query()
		req.Genre = q.Get("genre")
		if raw := q.Get("min_rating"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				s.respondEngineError(w, fmt.Errorf("%w: min_rating %q is not a number", models.ErrInvalidInput, raw))
				return
			}
			req.MinRating = &v
		}
		if raw := q.Get("limit"); raw != "" {
			v, err := intParam(raw, 0)
			if err != nil {
				s.respondEngineError(w, err)
				return
			}
			req.Limit = &v
		}
	}

	ec := s.engine.Config()
	query := models.GenreQuery{Genre: req.Genre, MinRating: ec.DefaultMinRating, Limit: ec.GenreLimit}
	if req.MinRating != nil {
		query.MinRating = *req.MinRating
	}
	if req.Limit != nil {
		query.Limit = *req.Limit
	}
	s.logger.Debug("genre request", zap.String("genre", query.Genre), zap.Float64("min_rating", query.MinRating), zap.Int("limit", query.Limit))
	resp, err := s.engine.RecommendByGenre(r.Context(), query)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.Reload(r.Context())
	if err != nil {
		s.logger.Error("catalog reload failed", zap.Error(err))
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", models.ErrInvalidInput, raw)
	}
	return v, nil
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.respondError(w, status, err.Error(), models.SuggestionsOf(err))
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

type errorResponse struct {
	Error       string   `json:"error"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string, suggestions []string) {
	s.respondJSON(w, status, errorResponse{Error: message, Suggestions: suggestions})
}
