package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "mediascribe/internal/api/middleware"
	"mediascribe/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Logger    *slog.Logger
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	SubmitHandler    http.HandlerFunc
	JobStatusHandler http.HandlerFunc

	SearchHandler          http.HandlerFunc
	ListTranscriptsHandler http.HandlerFunc
	ReadTranscriptHandler  http.HandlerFunc

	MediaSearchHandler   http.HandlerFunc
	MediaMetadataHandler http.HandlerFunc
	MediaCommentsHandler http.HandlerFunc
}

// NewRouter builds the Chi router with the middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Global middleware
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))

	// Health stays outside the rate limit so probes never get throttled.
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Post("/api/v1/transcribe", orNotImplemented(deps.SubmitHandler))
		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.JobStatusHandler))

		r.Get("/api/v1/search", orNotImplemented(deps.SearchHandler))
		r.Get("/api/v1/transcripts", orNotImplemented(deps.ListTranscriptsHandler))
		r.Get("/api/v1/transcripts/{videoID}", orNotImplemented(deps.ReadTranscriptHandler))

		r.Get("/api/v1/media/search", orNotImplemented(deps.MediaSearchHandler))
		r.Get("/api/v1/media/metadata", orNotImplemented(deps.MediaMetadataHandler))
		r.Get("/api/v1/media/comments", orNotImplemented(deps.MediaCommentsHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
