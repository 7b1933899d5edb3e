package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mediascribe/internal/api/response"
	"mediascribe/internal/ingest"
	"mediascribe/internal/store"
	"mediascribe/pkg/models"
)

// Ingestor is the admission service the transcribe endpoints depend on.
type Ingestor interface {
	Submit(ctx context.Context, url string) (*ingest.SubmitResult, error)
	JobStatus(ctx context.Context, id uuid.UUID, wait bool) (*models.Job, error)
}

// NewSubmitHandler returns the handler for POST /api/v1/transcribe. A fresh
// submission is accepted asynchronously; duplicates return what already
// exists.
func NewSubmitHandler(svc Ingestor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		result, err := svc.Submit(r.Context(), req.URL)
		if err != nil {
			if errors.Is(err, ingest.ErrEmptyURL) {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "url is required", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		switch result.Outcome {
		case ingest.OutcomeAlreadyTranscribed:
			response.JSON(w, submitResponse{
				Outcome: result.Outcome,
				VideoID: &result.Transcript.VideoID,
				Path:    &result.Transcript.Path,
			})
		case ingest.OutcomeAlreadyQueued:
			response.JSON(w, jobSubmitResponse(result))
		default:
			response.Accepted(w, jobSubmitResponse(result))
		}
	}
}

// NewJobStatusHandler returns the handler for GET /api/v1/jobs/{jobID}. The
// plain GET is a free snapshot of the job row. ?wait=true is the long-poll
// contract: while the job is in flight the server holds the request for a
// backoff interval that grows with the job's poll count, then re-reads.
func NewJobStatusHandler(svc Ingestor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a UUID", nil)
			return
		}

		wait := r.URL.Query().Get("wait") == "true"

		job, err := svc.JobStatus(r.Context(), id, wait)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				// Client gave up mid-wait; nothing useful to write.
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.JSON(w, jobPayload(job))
	}
}

type submitResponse struct {
	Outcome string     `json:"outcome"`
	JobID   *uuid.UUID `json:"job_id,omitempty"`
	Status  *string    `json:"status,omitempty"`
	VideoID *string    `json:"video_id,omitempty"`
	Path    *string    `json:"path,omitempty"`
}

func jobSubmitResponse(result *ingest.SubmitResult) submitResponse {
	return submitResponse{
		Outcome: result.Outcome,
		JobID:   &result.Job.ID,
		Status:  &result.Job.Status,
	}
}

type jobStatusResponse struct {
	ID          uuid.UUID `json:"id"`
	URL         string    `json:"url"`
	Status      string    `json:"status"`
	CreatedAt   string    `json:"created_at"`
	StartedAt   *string   `json:"started_at,omitempty"`
	CompletedAt *string   `json:"completed_at,omitempty"`
	Error       *string   `json:"error,omitempty"`
	VideoID     *string   `json:"video_id,omitempty"`
	ResultPath  *string   `json:"result_path,omitempty"`
}

func jobPayload(job *models.Job) jobStatusResponse {
	return jobStatusResponse{
		ID:          job.ID,
		URL:         job.URL,
		Status:      job.Status,
		CreatedAt:   job.CreatedAt.UTC().Format(time.RFC3339),
		StartedAt:   formatTime(job.StartedAt),
		CompletedAt: formatTime(job.CompletedAt),
		Error:       job.Error,
		VideoID:     job.VideoID,
		ResultPath:  job.ResultPath,
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
