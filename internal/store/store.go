package store

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"

	"mediascribe/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	// Jobs
	Enqueue(ctx context.Context, url, normalizedURL string) (*models.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	FindActiveJobByNormalizedURL(ctx context.Context, normalizedURL string) (*models.Job, error)
	ClaimNext(ctx context.Context) (*models.Job, error)
	RequeueInterrupted(ctx context.Context) (int, error)
	SetJobStatus(ctx context.Context, id uuid.UUID, status string) error
	MarkCompleted(ctx context.Context, id uuid.UUID, videoID, resultPath string) error
	MarkFailed(ctx context.Context, id uuid.UUID, errText string) error
	IncrementPollCount(ctx context.Context, id uuid.UUID) (int, error)

	// Transcripts
	GetTranscriptByVideoID(ctx context.Context, videoID string) (*models.Transcript, error)
	GetTranscriptByNormalizedURL(ctx context.Context, normalizedURL string) (*models.Transcript, error)
	UpsertTranscript(ctx context.Context, params UpsertTranscriptParams) error
	ListTranscripts(ctx context.Context, filter TranscriptFilter) ([]*models.Transcript, error)
	SearchTranscripts(ctx context.Context, query string, limit int) ([]*models.SearchResult, error)
}

// UpsertTranscriptParams carries every column of a transcript row plus the
// transcript body indexed for search. TranscriptText is never stored on the
// row itself; it only feeds the search index.
type UpsertTranscriptParams struct {
	VideoID        string
	NormalizedURL  string
	URL            string
	Path           string
	TranscriptText string
	Title          *string
	Channel        *string
	Platform       *string
	Duration       *float64
	UploadDate     *string
	Description    *string
	Thumbnail      *string
	ViewCount      *int64
	SpeakerCount   *int
	WordCount      *int
	Confidence     *float64
}

type TranscriptFilter struct {
	Platform string
	Channel  string
	Limit    int
}

const (
	// MaxFailureErrorLen bounds the error text stored with a failed job.
	MaxFailureErrorLen = 2000

	maxListLimit   = 100
	maxSearchLimit = 50
)

// TruncateErrorText caps error text at MaxFailureErrorLen bytes, backing off
// any multi-byte rune the cut would split. Postgres rejects text parameters
// that are not valid UTF-8, and failure messages often carry video titles.
func TruncateErrorText(s string) string {
	if len(s) <= MaxFailureErrorLen {
		return s
	}
	cut := MaxFailureErrorLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// clampLimit forces limit into [1, max], defaulting to fallback when unset.
func clampLimit(limit, fallback, max int) int {
	if limit == 0 {
		limit = fallback
	}
	if limit < 1 {
		return 1
	}
	if limit > max {
		return max
	}
	return limit
}
