package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusQueued       = "queued"
	JobStatusDownloading  = "downloading"
	JobStatusTranscribing = "transcribing"
	JobStatusCompleted    = "completed"
	JobStatusFailed       = "failed"
)

// ActiveJobStatuses are the statuses of jobs that are still in flight.
// A job in one of these states blocks resubmission of the same URL;
// completed and failed jobs do not.
var ActiveJobStatuses = []string{JobStatusQueued, JobStatusDownloading, JobStatusTranscribing}

// Job tracks one submitted transcription request. The API returns a job_id on
// POST /api/v1/transcribe; the client polls GET /api/v1/jobs/{job_id} until the
// status is completed or failed. Failed jobs are terminal and must be resubmitted.
type Job struct {
	ID            uuid.UUID  `db:"id"             json:"id"`
	URL           string     `db:"url"            json:"url"`
	NormalizedURL string     `db:"normalized_url" json:"normalized_url"`
	Status        string     `db:"status"         json:"status"`
	CreatedAt     time.Time  `db:"created_at"     json:"created_at"`
	StartedAt     *time.Time `db:"started_at"     json:"started_at,omitempty"`
	CompletedAt   *time.Time `db:"completed_at"   json:"completed_at,omitempty"`
	Error         *string    `db:"error"          json:"error,omitempty"`
	VideoID       *string    `db:"video_id"       json:"video_id,omitempty"`
	ResultPath    *string    `db:"result_path"    json:"result_path,omitempty"`
	PollCount     int        `db:"poll_count"     json:"poll_count"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
