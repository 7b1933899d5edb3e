// Package worker runs the single consumer of the transcription queue. One
// worker claims one job at a time, so at most one download and one
// transcription are in flight per process.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"mediascribe/internal/cache"
	"mediascribe/internal/downloader"
	"mediascribe/internal/storage"
	"mediascribe/internal/store"
	"mediascribe/internal/transcriber"
	"mediascribe/pkg/models"
)

// statusTTL caps how long a mirrored job status lives in the cache. The
// database stays authoritative; the mirror only serves the poll fast path.
const statusTTL = 30 * time.Minute

// Worker drains the job queue.
type Worker struct {
	store        store.Store
	cache        cache.Cache
	downloader   downloader.Downloader
	transcriber  transcriber.Transcriber
	artifacts    *storage.Store
	pollInterval time.Duration
	logger       *slog.Logger
}

func New(
	st store.Store,
	c cache.Cache,
	dl downloader.Downloader,
	tr transcriber.Transcriber,
	artifacts *storage.Store,
	pollInterval time.Duration,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		store:        st,
		cache:        c,
		downloader:   dl,
		transcriber:  tr,
		artifacts:    artifacts,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Run claims and processes jobs until the context is cancelled. When the queue
// is empty it sleeps for the poll interval before checking again.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", "poll_interval", w.pollInterval.String())

	// Jobs stranded mid-processing by the previous run go back to the queue.
	if n, err := w.store.RequeueInterrupted(ctx); err != nil {
		w.logger.Error("requeueing interrupted jobs", "error", err)
	} else if n > 0 {
		w.logger.Info("requeued interrupted jobs", "count", n)
	}

	for {
		job, err := w.store.ClaimNext(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				w.logger.Info("worker stopped")
				return
			}
			if !errors.Is(err, store.ErrNotFound) {
				w.logger.Error("claiming next job", "error", err)
			}
			select {
			case <-ctx.Done():
				w.logger.Info("worker stopped")
				return
			case <-time.After(w.pollInterval):
			}
			continue
		}

		w.process(ctx, job)
	}
}

// process runs one job through download, transcription, and persistence.
// Failures mark the job failed rather than stopping the loop.
func (w *Worker) process(ctx context.Context, job *models.Job) {
	logger := w.logger.With("job_id", job.ID, "url", job.URL)
	logger.Info("processing job")
	started := time.Now()

	w.mirrorStatus(ctx, job, models.JobStatusDownloading)

	workDir := w.artifacts.WorkDir(job.ID)
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn("removing work dir", "error", err)
		}
	}()

	dl, err := w.downloader.Download(ctx, job.URL, workDir)
	if err != nil {
		w.fail(ctx, job, fmt.Errorf("download: %w", err))
		return
	}
	logger.Info("download complete", "video_id", dl.Metadata.VideoID, "platform", dl.Metadata.Platform)

	if err := w.store.SetJobStatus(ctx, job.ID, models.JobStatusTranscribing); err != nil {
		w.fail(ctx, job, fmt.Errorf("advancing job to transcribing: %w", err))
		return
	}
	w.mirrorStatus(ctx, job, models.JobStatusTranscribing)

	result, err := w.transcriber.Transcribe(ctx, dl.AudioPath)
	if err != nil {
		w.fail(ctx, job, fmt.Errorf("transcribe: %w", err))
		return
	}

	resultPath, err := w.artifacts.Persist(dl.Metadata, result, dl.AudioPath)
	if err != nil {
		w.fail(ctx, job, fmt.Errorf("persisting artifacts: %w", err))
		return
	}

	if err := w.store.UpsertTranscript(ctx, upsertParams(job, dl.Metadata, result, resultPath)); err != nil {
		w.fail(ctx, job, fmt.Errorf("recording transcript: %w", err))
		return
	}

	if err := w.store.MarkCompleted(ctx, job.ID, dl.Metadata.VideoID, resultPath); err != nil {
		w.fail(ctx, job, fmt.Errorf("marking job completed: %w", err))
		return
	}
	w.mirrorStatus(ctx, job, models.JobStatusCompleted)

	logger.Info("job completed",
		"video_id", dl.Metadata.VideoID,
		"result_path", resultPath,
		"duration", time.Since(started).String(),
	)
}

func (w *Worker) fail(ctx context.Context, job *models.Job, cause error) {
	w.logger.Error("job failed", "job_id", job.ID, "url", job.URL, "error", cause)

	if err := w.store.MarkFailed(ctx, job.ID, cause.Error()); err != nil {
		w.logger.Error("marking job failed", "job_id", job.ID, "error", err)
	}
	w.mirrorStatus(ctx, job, models.JobStatusFailed)
}

// mirrorStatus writes the status to the cache best-effort; a cache outage
// never affects job processing.
func (w *Worker) mirrorStatus(ctx context.Context, job *models.Job, status string) {
	if w.cache == nil {
		return
	}
	if err := w.cache.SetJobStatus(ctx, job.ID, status, statusTTL); err != nil {
		w.logger.Warn("mirroring job status", "job_id", job.ID, "error", err)
	}
}

func upsertParams(job *models.Job, meta models.MediaMetadata, result *models.TranscriptResult, resultPath string) store.UpsertTranscriptParams {
	words := len(strings.Fields(result.Text))
	speakers := countSpeakers(result.Segments)

	params := store.UpsertTranscriptParams{
		VideoID:        meta.VideoID,
		NormalizedURL:  job.NormalizedURL,
		URL:            job.URL,
		Path:           resultPath,
		TranscriptText: result.Text,
		Duration:       meta.Duration,
		UploadDate:     meta.UploadDate,
		Description:    meta.Description,
		Thumbnail:      meta.Thumbnail,
		ViewCount:      meta.ViewCount,
		WordCount:      &words,
	}
	if meta.Title != "" {
		title := meta.Title
		params.Title = &title
	}
	if meta.Channel != "" {
		channel := meta.Channel
		params.Channel = &channel
	}
	if meta.Platform != "" {
		platform := meta.Platform
		params.Platform = &platform
	}
	if speakers > 0 {
		params.SpeakerCount = &speakers
	}
	return params
}

func countSpeakers(segments []models.TranscriptSegment) int {
	seen := make(map[string]struct{})
	for _, seg := range segments {
		if seg.Speaker != nil {
			seen[*seg.Speaker] = struct{}{}
		}
	}
	return len(seen)
}
