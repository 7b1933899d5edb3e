package handler

import (
	"context"
	"net/http"
	"strconv"

	"mediascribe/internal/api/response"
	"mediascribe/pkg/models"
)

// Searcher runs full-text queries over indexed transcripts.
type Searcher interface {
	SearchTranscripts(ctx context.Context, query string, limit int) ([]*models.SearchResult, error)
}

// NewSearchHandler returns the handler for GET /api/v1/search.
func NewSearchHandler(svc Searcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "q is required", nil)
			return
		}
		limit := intParam(r, "limit", 10)

		results, err := svc.SearchTranscripts(r.Context(), query, limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		if results == nil {
			results = []*models.SearchResult{}
		}

		response.Collection(w, results, response.CollectionMeta{Count: len(results), Limit: limit})
	}
}

// intParam reads a positive integer query parameter, falling back on absence
// or garbage.
func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
