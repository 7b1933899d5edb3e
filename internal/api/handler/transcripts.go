package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mediascribe/internal/api/response"
	"mediascribe/internal/storage"
	"mediascribe/internal/store"
	"mediascribe/pkg/models"
)

// TranscriptLister reads transcript rows.
type TranscriptLister interface {
	ListTranscripts(ctx context.Context, filter store.TranscriptFilter) ([]*models.Transcript, error)
	GetTranscriptByVideoID(ctx context.Context, videoID string) (*models.Transcript, error)
}

// TranscriptReader reads stored transcript content.
type TranscriptReader interface {
	Read(relDir, format string, offset, limit int) (*storage.Page, error)
}

// NewListTranscriptsHandler returns the handler for GET /api/v1/transcripts.
func NewListTranscriptsHandler(svc TranscriptLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := store.TranscriptFilter{
			Platform: r.URL.Query().Get("platform"),
			Channel:  r.URL.Query().Get("channel"),
			Limit:    intParam(r, "limit", 20),
		}

		transcripts, err := svc.ListTranscripts(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		if transcripts == nil {
			transcripts = []*models.Transcript{}
		}

		response.Collection(w, transcripts, response.CollectionMeta{
			Count: len(transcripts),
			Limit: filter.Limit,
		})
	}
}

// NewReadTranscriptHandler returns the handler for
// GET /api/v1/transcripts/{videoID}. The format parameter selects md (the
// default), txt, or json; offset and limit page through lines or segments.
func NewReadTranscriptHandler(lister TranscriptLister, reader TranscriptReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "videoID")

		transcript, err := lister.GetTranscriptByVideoID(r.Context(), videoID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Transcript not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		page, err := reader.Read(
			transcript.Path,
			r.URL.Query().Get("format"),
			intParam(r, "offset", 0),
			intParam(r, "limit", 0),
		)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrNotFound):
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Transcript content missing", nil)
			case errors.Is(err, storage.ErrUnsupportedFormat):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"format must be one of md, txt, json", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.JSON(w, readTranscriptResponse{
			VideoID:  transcript.VideoID,
			Title:    transcript.Title,
			Channel:  transcript.Channel,
			Platform: transcript.Platform,
			Page:     page,
		})
	}
}

type readTranscriptResponse struct {
	VideoID  string        `json:"video_id"`
	Title    *string       `json:"title,omitempty"`
	Channel  *string       `json:"channel,omitempty"`
	Platform *string       `json:"platform,omitempty"`
	Page     *storage.Page `json:"page"`
}
