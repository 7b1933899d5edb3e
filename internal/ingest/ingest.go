// Package ingest is the admission layer for transcription requests. It
// normalizes the submitted URL, short-circuits duplicates against finished
// transcripts and in-flight jobs, and serves status polls with server-side
// backoff.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediascribe/internal/cache"
	"mediascribe/internal/store"
	"mediascribe/internal/urlnorm"
	"mediascribe/pkg/models"
)

var ErrEmptyURL = errors.New("url is required")

// Submission outcomes.
const (
	OutcomeQueued             = "queued"
	OutcomeAlreadyQueued      = "already_queued"
	OutcomeAlreadyTranscribed = "already_transcribed"
)

const statusTTL = 30 * time.Minute

// SubmitResult is what a submission resolved to: a fresh job, the in-flight
// job already covering the URL, or the finished transcript.
type SubmitResult struct {
	Outcome    string
	Job        *models.Job
	Transcript *models.Transcript
}

// Service guards the queue.
type Service struct {
	store  store.Store
	cache  cache.Cache
	logger *slog.Logger
}

func NewService(st store.Store, c cache.Cache, logger *slog.Logger) *Service {
	return &Service{store: st, cache: c, logger: logger}
}

// Submit admits a URL into the queue unless an equivalent URL already has a
// transcript or an active job. Two submissions racing past the duplicate
// checks are resolved by the database's uniqueness constraint on active
// normalized URLs; the loser re-reads and returns the winner's job.
func (s *Service) Submit(ctx context.Context, url string) (*SubmitResult, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrEmptyURL
	}
	normalized := urlnorm.Normalize(url)

	transcript, err := s.store.GetTranscriptByNormalizedURL(ctx, normalized)
	if err == nil {
		return &SubmitResult{Outcome: OutcomeAlreadyTranscribed, Transcript: transcript}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking existing transcript: %w", err)
	}

	active, err := s.store.FindActiveJobByNormalizedURL(ctx, normalized)
	if err == nil {
		return &SubmitResult{Outcome: OutcomeAlreadyQueued, Job: active}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking active job: %w", err)
	}

	job, err := s.store.Enqueue(ctx, url, normalized)
	if errors.Is(err, store.ErrDuplicateKey) {
		winner, findErr := s.store.FindActiveJobByNormalizedURL(ctx, normalized)
		if findErr != nil {
			return nil, fmt.Errorf("resolving enqueue race: %w", findErr)
		}
		return &SubmitResult{Outcome: OutcomeAlreadyQueued, Job: winner}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("enqueueing job: %w", err)
	}

	s.mirrorStatus(ctx, job.ID, models.JobStatusQueued)
	s.logger.Info("job queued", "job_id", job.ID, "normalized_url", normalized)
	return &SubmitResult{Outcome: OutcomeQueued, Job: job}, nil
}

// JobStatus returns the job's current state. Without wait it is a plain
// snapshot that never counts against the backoff. With wait set and the job
// still in flight, it sleeps for a backoff interval derived from how often
// this job has been polled, then re-reads, so impatient clients are slowed
// down server-side instead of hammering the database.
func (s *Service) JobStatus(ctx context.Context, id uuid.UUID, wait bool) (*models.Job, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Terminal() || !wait {
		return job, nil
	}

	polls, err := s.store.IncrementPollCount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("counting poll: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(BackoffDelay(polls)):
	}

	// If the mirrored status hasn't moved, skip the database re-read.
	if s.cache != nil {
		status, found, cacheErr := s.cache.GetJobStatus(ctx, id)
		if cacheErr == nil && found && status == job.Status {
			return job, nil
		}
	}

	return s.store.GetJob(ctx, id)
}

// BackoffDelay maps the nth poll of a job to a wait of 2^(n-1) seconds,
// capped at 30.
func BackoffDelay(polls int) time.Duration {
	if polls < 1 {
		polls = 1
	}
	if polls > 6 {
		return 30 * time.Second
	}
	delay := time.Duration(1<<(polls-1)) * time.Second
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}

func (s *Service) mirrorStatus(ctx context.Context, id uuid.UUID, status string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJobStatus(ctx, id, status, statusTTL); err != nil {
		s.logger.Warn("mirroring job status", "job_id", id, "error", err)
	}
}
