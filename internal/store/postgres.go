package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"mediascribe/pkg/models"
)

const jobColumns = `id, url, normalized_url, status, created_at, started_at, completed_at, error, video_id, result_path, poll_count`

const transcriptColumns = `id, video_id, normalized_url, url, title, channel, platform, duration,
	 upload_date, description, thumbnail, view_count, speaker_count, word_count, confidence,
	 transcribed_at, path`

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Jobs ---

func (s *PostgresStore) Enqueue(ctx context.Context, url, normalizedURL string) (*models.Job, error) {
	var j models.Job
	err := s.pool.QueryRow(ctx,
		`INSERT INTO jobs (id, url, normalized_url, status)
		 VALUES ($1, $2, $3, 'queued')
		 RETURNING `+jobColumns,
		uuid.New(), url, normalizedURL,
	).Scan(jobFields(&j)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return &j, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var j models.Job
	err := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id,
	).Scan(jobFields(&j)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

func (s *PostgresStore) FindActiveJobByNormalizedURL(ctx context.Context, normalizedURL string) (*models.Job, error) {
	var j models.Job
	err := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE normalized_url = $1 AND status = ANY($2)
		 ORDER BY created_at ASC
		 LIMIT 1`,
		normalizedURL, models.ActiveJobStatuses,
	).Scan(jobFields(&j)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find active job: %w", err)
	}
	return &j, nil
}

// ClaimNext atomically claims the oldest queued job, moving it to 'downloading'
// and stamping started_at. Returns ErrNotFound when the queue is empty.
// FOR UPDATE SKIP LOCKED keeps two concurrent claimers from racing on one row.
func (s *PostgresStore) ClaimNext(ctx context.Context) (*models.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback(ctx)

	var id uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT id FROM jobs
		 WHERE status = 'queued'
		 ORDER BY created_at ASC
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select queued job: %w", err)
	}

	var j models.Job
	err = tx.QueryRow(ctx,
		`UPDATE jobs
		 SET status = 'downloading', started_at = NOW()
		 WHERE id = $1
		 RETURNING `+jobColumns, id,
	).Scan(jobFields(&j)...)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return &j, nil
}

// RequeueInterrupted returns jobs stranded mid-processing by a crash or
// shutdown to the queue. Without this, their normalized URLs would stay
// blocked by the active-uniqueness index forever.
func (s *PostgresStore) RequeueInterrupted(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs
		 SET status = 'queued', started_at = NULL
		 WHERE status IN ('downloading', 'transcribing')`)
	if err != nil {
		return 0, fmt.Errorf("requeue interrupted jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) SetJobStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkCompleted(ctx context.Context, id uuid.UUID, videoID, resultPath string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs
		 SET status = 'completed', completed_at = NOW(), video_id = $2, result_path = $3, error = NULL
		 WHERE id = $1`,
		id, videoID, resultPath)
	if err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id uuid.UUID, errText string) error {
	errText = TruncateErrorText(errText)
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs
		 SET status = 'failed', completed_at = NOW(), error = $2
		 WHERE id = $1`,
		id, errText)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) IncrementPollCount(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`UPDATE jobs SET poll_count = poll_count + 1 WHERE id = $1 RETURNING poll_count`, id,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment poll count: %w", err)
	}
	return count, nil
}

// --- Transcripts ---

func (s *PostgresStore) GetTranscriptByVideoID(ctx context.Context, videoID string) (*models.Transcript, error) {
	var t models.Transcript
	err := s.pool.QueryRow(ctx,
		`SELECT `+transcriptColumns+` FROM transcripts WHERE video_id = $1 LIMIT 1`, videoID,
	).Scan(transcriptFields(&t)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript by video id: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) GetTranscriptByNormalizedURL(ctx context.Context, normalizedURL string) (*models.Transcript, error) {
	var t models.Transcript
	err := s.pool.QueryRow(ctx,
		`SELECT `+transcriptColumns+` FROM transcripts WHERE normalized_url = $1 LIMIT 1`, normalizedURL,
	).Scan(transcriptFields(&t)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript by normalized url: %w", err)
	}
	return &t, nil
}

// UpsertTranscript inserts or fully overwrites the transcript row for a video
// and rebuilds its search index entry in the same transaction, so the index
// never reflects a stale or half-written row.
func (s *PostgresStore) UpsertTranscript(ctx context.Context, p UpsertTranscriptParams) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO transcripts (
		     video_id, normalized_url, url, title, channel, platform, duration,
		     upload_date, description, thumbnail, view_count,
		     speaker_count, word_count, confidence, transcribed_at, path
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), $15)
		 ON CONFLICT (video_id) DO UPDATE SET
		     normalized_url = EXCLUDED.normalized_url,
		     url = EXCLUDED.url,
		     title = EXCLUDED.title,
		     channel = EXCLUDED.channel,
		     platform = EXCLUDED.platform,
		     duration = EXCLUDED.duration,
		     upload_date = EXCLUDED.upload_date,
		     description = EXCLUDED.description,
		     thumbnail = EXCLUDED.thumbnail,
		     view_count = EXCLUDED.view_count,
		     speaker_count = EXCLUDED.speaker_count,
		     word_count = EXCLUDED.word_count,
		     confidence = EXCLUDED.confidence,
		     transcribed_at = NOW(),
		     path = EXCLUDED.path`,
		p.VideoID, p.NormalizedURL, p.URL, p.Title, p.Channel, p.Platform, p.Duration,
		p.UploadDate, p.Description, p.Thumbnail, p.ViewCount,
		p.SpeakerCount, p.WordCount, p.Confidence, p.Path)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("upsert transcript: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM transcript_search WHERE video_id = $1`, p.VideoID); err != nil {
		return fmt.Errorf("clear search entry: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO transcript_search (video_id, title, channel, description, body)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.VideoID, deref(p.Title), deref(p.Channel), deref(p.Description), p.TranscriptText); err != nil {
		return fmt.Errorf("insert search entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTranscripts(ctx context.Context, filter TranscriptFilter) ([]*models.Transcript, error) {
	conditions := []string{}
	args := []any{}
	argIdx := 1

	if filter.Platform != "" {
		conditions = append(conditions, fmt.Sprintf("platform = $%d", argIdx))
		args = append(args, filter.Platform)
		argIdx++
	}
	if filter.Channel != "" {
		conditions = append(conditions, fmt.Sprintf("channel = $%d", argIdx))
		args = append(args, filter.Channel)
		argIdx++
	}

	query := `SELECT ` + transcriptColumns + ` FROM transcripts`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY transcribed_at DESC LIMIT $%d", argIdx)
	args = append(args, clampLimit(filter.Limit, 20, maxListLimit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	defer rows.Close()

	var transcripts []*models.Transcript
	for rows.Next() {
		var t models.Transcript
		if err := rows.Scan(transcriptFields(&t)...); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		transcripts = append(transcripts, &t)
	}
	return transcripts, rows.Err()
}

func (s *PostgresStore) SearchTranscripts(ctx context.Context, query string, limit int) ([]*models.SearchResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT
		     t.video_id,
		     t.title,
		     t.channel,
		     t.platform,
		     t.path,
		     t.transcribed_at,
		     ts_headline('english', ts.body, websearch_to_tsquery('english', $1),
		                 'StartSel=[, StopSel=], MaxWords=20, MinWords=10') AS snippet,
		     ts_rank(ts.document, websearch_to_tsquery('english', $1)) AS score
		 FROM transcript_search AS ts
		 JOIN transcripts AS t ON t.video_id = ts.video_id
		 WHERE ts.document @@ websearch_to_tsquery('english', $1)
		 ORDER BY score DESC
		 LIMIT $2`,
		query, clampLimit(limit, 10, maxSearchLimit))
	if err != nil {
		return nil, fmt.Errorf("search transcripts: %w", err)
	}
	defer rows.Close()

	var results []*models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.VideoID, &r.Title, &r.Channel, &r.Platform, &r.Path,
			&r.TranscribedAt, &r.Snippet, &r.Score); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

// jobFields returns scan destinations matching jobColumns order.
func jobFields(j *models.Job) []any {
	return []any{&j.ID, &j.URL, &j.NormalizedURL, &j.Status, &j.CreatedAt, &j.StartedAt,
		&j.CompletedAt, &j.Error, &j.VideoID, &j.ResultPath, &j.PollCount}
}

// transcriptFields returns scan destinations matching transcriptColumns order.
func transcriptFields(t *models.Transcript) []any {
	return []any{&t.ID, &t.VideoID, &t.NormalizedURL, &t.URL, &t.Title, &t.Channel, &t.Platform,
		&t.Duration, &t.UploadDate, &t.Description, &t.Thumbnail, &t.ViewCount,
		&t.SpeakerCount, &t.WordCount, &t.Confidence, &t.TranscribedAt, &t.Path}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
