package handler

import (
	"context"
	"errors"
	"net/http"

	"mediascribe/internal/api/response"
	"mediascribe/internal/mediainfo"
	"mediascribe/pkg/models"
)

// MediaInfo answers read-only questions about hosted media without queueing
// any work.
type MediaInfo interface {
	Search(ctx context.Context, query string, limit int) ([]models.MediaSearchResult, error)
	Metadata(ctx context.Context, url string) (*models.MediaMetadata, error)
	Comments(ctx context.Context, url string, limit int, sort string) ([]models.MediaComment, error)
}

// NewMediaSearchHandler returns the handler for GET /api/v1/media/search.
func NewMediaSearchHandler(svc MediaInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "q is required", nil)
			return
		}
		limit := intParam(r, "limit", 10)

		results, err := svc.Search(r.Context(), query, limit)
		if err != nil {
			writeMediaError(w, err)
			return
		}
		if results == nil {
			results = []models.MediaSearchResult{}
		}

		response.Collection(w, results, response.CollectionMeta{Count: len(results), Limit: limit})
	}
}

// NewMediaMetadataHandler returns the handler for GET /api/v1/media/metadata.
func NewMediaMetadataHandler(svc MediaInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := r.URL.Query().Get("url")
		if url == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "url is required", nil)
			return
		}

		meta, err := svc.Metadata(r.Context(), url)
		if err != nil {
			writeMediaError(w, err)
			return
		}

		response.JSON(w, meta)
	}
}

// NewMediaCommentsHandler returns the handler for GET /api/v1/media/comments.
func NewMediaCommentsHandler(svc MediaInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := r.URL.Query().Get("url")
		if url == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "url is required", nil)
			return
		}
		limit := intParam(r, "limit", 100)

		comments, err := svc.Comments(r.Context(), url, limit, r.URL.Query().Get("sort"))
		if err != nil {
			writeMediaError(w, err)
			return
		}
		if comments == nil {
			comments = []models.MediaComment{}
		}

		response.Collection(w, comments, response.CollectionMeta{Count: len(comments), Limit: limit})
	}
}

// writeMediaError maps lookup failures to 502; the upstream platform, not
// this service, rejected the request.
func writeMediaError(w http.ResponseWriter, err error) {
	if errors.Is(err, mediainfo.ErrLookupFailed) {
		response.Error(w, http.StatusBadGateway, "MEDIA_LOOKUP_FAILED",
			"The media platform rejected the lookup", nil)
		return
	}
	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
		"An unexpected error occurred", nil)
}
