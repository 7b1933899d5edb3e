package storage_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediascribe/internal/storage"
	"mediascribe/pkg/models"
)

func sampleMeta() models.MediaMetadata {
	duration := 3725.0
	return models.MediaMetadata{
		VideoID:  "abc123",
		Title:    "Go Talk: Concurrency!",
		Channel:  "GopherCon / Live",
		Platform: "youtube",
		URL:      "https://youtube.com/watch?v=abc123",
		Duration: &duration,
	}
}

func sampleResult() *models.TranscriptResult {
	speakerA, speakerB := "A", "B"
	lang := "en"
	return &models.TranscriptResult{
		Text: "Hello everyone.\nLet's talk about goroutines.",
		Segments: []models.TranscriptSegment{
			{Start: 0, End: 4.2, Speaker: &speakerA, Text: "Hello everyone."},
			{Start: 4.2, End: 9.8, Speaker: &speakerB, Text: "Let's talk about goroutines."},
		},
		Language: &lang,
	}
}

func persistSample(t *testing.T) (*storage.Store, string) {
	t.Helper()
	dataDir := t.TempDir()
	s := storage.New(dataDir)

	audioPath := filepath.Join(t.TempDir(), "raw.mp3")
	require.NoError(t, os.WriteFile(audioPath, []byte("audio-bytes"), 0o644))

	relDir, err := s.Persist(sampleMeta(), sampleResult(), audioPath)
	require.NoError(t, err)
	return s, relDir
}

func TestPersist_BundleLayout(t *testing.T) {
	dataDir := t.TempDir()
	s := storage.New(dataDir)

	audioPath := filepath.Join(t.TempDir(), "raw.mp3")
	require.NoError(t, os.WriteFile(audioPath, []byte("audio-bytes"), 0o644))

	relDir, err := s.Persist(sampleMeta(), sampleResult(), audioPath)
	require.NoError(t, err)

	// Unsafe characters collapse to underscores in each path element.
	assert.Equal(t, filepath.Join("youtube", "GopherCon_Live", "abc123"), relDir)

	dir := filepath.Join(dataDir, relDir)
	for _, name := range []string{"audio.mp3", "metadata.json", "transcript.json", "transcript.md", "transcript.txt"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	// Audio was moved, not copied.
	assert.NoFileExists(t, audioPath)

	raw, err := os.ReadFile(filepath.Join(dir, "transcript.json"))
	require.NoError(t, err)
	var doc struct {
		VideoID  string                     `json:"video_id"`
		Text     string                     `json:"text"`
		Segments []models.TranscriptSegment `json:"segments"`
		Language *string                    `json:"language"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "abc123", doc.VideoID)
	assert.Len(t, doc.Segments, 2)
	require.NotNil(t, doc.Language)
	assert.Equal(t, "en", *doc.Language)
}

func TestPersist_MarkdownRendering(t *testing.T) {
	s, relDir := persistSample(t)

	page, err := s.Read(relDir, "md", 0, 1000)
	require.NoError(t, err)

	assert.Contains(t, page.Content, "# Go Talk: Concurrency!")
	assert.Contains(t, page.Content, "- **Channel:** GopherCon / Live")
	assert.Contains(t, page.Content, "- **Duration:** 1:02:05")
	assert.Contains(t, page.Content, "**[00:00 - 00:04] Speaker A:** Hello everyone.")
	assert.Contains(t, page.Content, "**[00:04 - 00:09] Speaker B:** Let's talk about goroutines.")
}

func TestPersist_EmptyChannelFallsBack(t *testing.T) {
	s := storage.New(t.TempDir())

	audioPath := filepath.Join(t.TempDir(), "raw.mp3")
	require.NoError(t, os.WriteFile(audioPath, []byte("x"), 0o644))

	meta := sampleMeta()
	meta.Channel = "   "
	relDir, err := s.Persist(meta, sampleResult(), audioPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("youtube", "unknown", "abc123"), relDir)
}

func TestRead_TextPagination(t *testing.T) {
	s, relDir := persistSample(t)

	page, err := s.Read(relDir, "txt", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "Hello everyone.", page.Content)
	assert.Equal(t, 2, page.Total)

	page, err = s.Read(relDir, "txt", 1, 5)
	require.NoError(t, err)
	assert.Equal(t, "Let's talk about goroutines.", page.Content)

	// Offset past the end yields an empty page, not an error.
	page, err = s.Read(relDir, "txt", 50, 5)
	require.NoError(t, err)
	assert.Empty(t, page.Content)
	assert.Equal(t, 2, page.Total)
}

func TestRead_SegmentPagination(t *testing.T) {
	s, relDir := persistSample(t)

	page, err := s.Read(relDir, "json", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	var segments []models.TranscriptSegment
	require.NoError(t, json.Unmarshal([]byte(page.Content), &segments))
	require.Len(t, segments, 1)
	assert.Equal(t, "Let's talk about goroutines.", segments[0].Text)
}

func TestRead_DefaultFormatIsMarkdown(t *testing.T) {
	s, relDir := persistSample(t)

	page, err := s.Read(relDir, "", 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, "md", page.Format)
	assert.True(t, strings.HasPrefix(page.Content, "# "))
}

func TestRead_UnknownFormat(t *testing.T) {
	s, relDir := persistSample(t)
	_, err := s.Read(relDir, "pdf", 0, 10)
	require.ErrorIs(t, err, storage.ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), "pdf")
}

func TestRead_MissingBundle(t *testing.T) {
	s := storage.New(t.TempDir())
	_, err := s.Read("youtube/nobody/nothing", "txt", 0, 10)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRead_PathEscapeBlocked(t *testing.T) {
	dataDir := t.TempDir()
	secret := filepath.Join(filepath.Dir(dataDir), "transcript.txt")
	require.NoError(t, os.WriteFile(secret, []byte("secret"), 0o644))
	defer os.Remove(secret)

	s := storage.New(dataDir)
	_, err := s.Read("../", "txt", 0, 10)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWorkDir(t *testing.T) {
	dataDir := t.TempDir()
	s := storage.New(dataDir)
	jobID := uuid.New()

	dir := s.WorkDir(jobID)
	assert.Equal(t, filepath.Join(dataDir, "_work", jobID.String()), dir)
}
