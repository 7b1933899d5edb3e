// Package storetest provides an in-memory Store implementation for tests
// that exercise components above the persistence layer.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediascribe/internal/store"
	"mediascribe/pkg/models"
)

// Store is a mutex-guarded in-memory implementation of store.Store.
// Semantics (clamps, dedup constraint, claim ordering) match PostgresStore.
type Store struct {
	mu          sync.Mutex
	jobs        map[uuid.UUID]*models.Job
	transcripts map[string]*models.Transcript
	searchBody  map[string]string
	nextID      int64

	// FailWith, when set, is returned by every operation. Lets tests
	// exercise storage-failure propagation.
	FailWith error
}

func New() *Store {
	return &Store{
		jobs:        make(map[uuid.UUID]*models.Job),
		transcripts: make(map[string]*models.Transcript),
		searchBody:  make(map[string]string),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.FailWith
}

func (s *Store) Enqueue(ctx context.Context, url, normalizedURL string) (*models.Job, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		if j.NormalizedURL == normalizedURL && isActive(j.Status) {
			return nil, store.ErrDuplicateKey
		}
	}

	j := &models.Job{
		ID:            uuid.New(),
		URL:           url,
		NormalizedURL: normalizedURL,
		Status:        models.JobStatusQueued,
		CreatedAt:     time.Now().UTC(),
	}
	s.jobs[j.ID] = j
	out := *j
	return &out, nil
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *j
	return &out, nil
}

func (s *Store) FindActiveJobByNormalizedURL(ctx context.Context, normalizedURL string) (*models.Job, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest *models.Job
	for _, j := range s.jobs {
		if j.NormalizedURL != normalizedURL || !isActive(j.Status) {
			continue
		}
		if oldest == nil || j.CreatedAt.Before(oldest.CreatedAt) {
			oldest = j
		}
	}
	if oldest == nil {
		return nil, store.ErrNotFound
	}
	out := *oldest
	return &out, nil
}

func (s *Store) ClaimNext(ctx context.Context) (*models.Job, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest *models.Job
	for _, j := range s.jobs {
		if j.Status != models.JobStatusQueued {
			continue
		}
		if oldest == nil || j.CreatedAt.Before(oldest.CreatedAt) {
			oldest = j
		}
	}
	if oldest == nil {
		return nil, store.ErrNotFound
	}
	now := time.Now().UTC()
	oldest.Status = models.JobStatusDownloading
	oldest.StartedAt = &now
	out := *oldest
	return &out, nil
}

func (s *Store) RequeueInterrupted(ctx context.Context) (int, error) {
	if s.FailWith != nil {
		return 0, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, j := range s.jobs {
		if j.Status == models.JobStatusDownloading || j.Status == models.JobStatusTranscribing {
			j.Status = models.JobStatusQueued
			j.StartedAt = nil
			n++
		}
	}
	return n, nil
}

func (s *Store) SetJobStatus(ctx context.Context, id uuid.UUID, status string) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	j.Status = status
	return nil
}

func (s *Store) MarkCompleted(ctx context.Context, id uuid.UUID, videoID, resultPath string) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	j.Status = models.JobStatusCompleted
	j.CompletedAt = &now
	j.VideoID = &videoID
	j.ResultPath = &resultPath
	j.Error = nil
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, errText string) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	errText = store.TruncateErrorText(errText)
	now := time.Now().UTC()
	j.Status = models.JobStatusFailed
	j.CompletedAt = &now
	j.Error = &errText
	return nil
}

func (s *Store) IncrementPollCount(ctx context.Context, id uuid.UUID) (int, error) {
	if s.FailWith != nil {
		return 0, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	j.PollCount++
	return j.PollCount, nil
}

func (s *Store) GetTranscriptByVideoID(ctx context.Context, videoID string) (*models.Transcript, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transcripts[videoID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *t
	return &out, nil
}

func (s *Store) GetTranscriptByNormalizedURL(ctx context.Context, normalizedURL string) (*models.Transcript, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.transcripts {
		if t.NormalizedURL != nil && *t.NormalizedURL == normalizedURL {
			out := *t
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpsertTranscript(ctx context.Context, p store.UpsertTranscriptParams) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.transcripts[p.VideoID]
	id := s.nextID + 1
	if ok {
		id = existing.ID
	} else {
		s.nextID++
	}

	normalized := p.NormalizedURL
	url := p.URL
	s.transcripts[p.VideoID] = &models.Transcript{
		ID:            id,
		VideoID:       p.VideoID,
		NormalizedURL: &normalized,
		URL:           &url,
		Title:         p.Title,
		Channel:       p.Channel,
		Platform:      p.Platform,
		Duration:      p.Duration,
		UploadDate:    p.UploadDate,
		Description:   p.Description,
		Thumbnail:     p.Thumbnail,
		ViewCount:     p.ViewCount,
		SpeakerCount:  p.SpeakerCount,
		WordCount:     p.WordCount,
		Confidence:    p.Confidence,
		TranscribedAt: time.Now().UTC(),
		Path:          p.Path,
	}
	s.searchBody[p.VideoID] = strings.ToLower(strings.Join([]string{
		strDeref(p.Title), strDeref(p.Channel), strDeref(p.Description), p.TranscriptText,
	}, " "))
	return nil
}

func (s *Store) ListTranscripts(ctx context.Context, filter store.TranscriptFilter) ([]*models.Transcript, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Transcript
	for _, t := range s.transcripts {
		if filter.Platform != "" && strDeref(t.Platform) != filter.Platform {
			continue
		}
		if filter.Channel != "" && strDeref(t.Channel) != filter.Channel {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TranscribedAt.After(out[j].TranscribedAt)
	})

	limit := filter.Limit
	if limit == 0 {
		limit = 20
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SearchTranscripts(ctx context.Context, query string, limit int) ([]*models.SearchResult, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit == 0 {
		limit = 10
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 50 {
		limit = 50
	}

	q := strings.ToLower(strings.TrimSpace(query))
	var results []*models.SearchResult
	for videoID, body := range s.searchBody {
		if q == "" || !strings.Contains(body, q) {
			continue
		}
		t := s.transcripts[videoID]
		results = append(results, &models.SearchResult{
			VideoID:       videoID,
			Title:         t.Title,
			Channel:       t.Channel,
			Platform:      t.Platform,
			Path:          t.Path,
			TranscribedAt: t.TranscribedAt,
			Snippet:       snippetAround(body, q),
			Score:         1,
		})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

func snippetAround(body, q string) string {
	idx := strings.Index(body, q)
	if idx < 0 {
		return ""
	}
	start := idx - 40
	if start < 0 {
		start = 0
	}
	end := idx + len(q) + 40
	if end > len(body) {
		end = len(body)
	}
	return body[start:end]
}

func isActive(status string) bool {
	for _, s := range models.ActiveJobStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func strDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)
