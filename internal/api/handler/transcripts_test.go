package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediascribe/internal/api/handler"
	"mediascribe/internal/storage"
	"mediascribe/internal/store"
	"mediascribe/internal/store/storetest"
	"mediascribe/pkg/models"
)

func strPtr(s string) *string { return &s }

func seedTranscript(t *testing.T, st *storetest.Store, videoID, platform, channel, path string) {
	t.Helper()
	require.NoError(t, st.UpsertTranscript(context.Background(), store.UpsertTranscriptParams{
		VideoID:        videoID,
		NormalizedURL:  "https://youtube.com/watch?v=" + videoID,
		URL:            "https://youtube.com/watch?v=" + videoID,
		Path:           path,
		Title:          strPtr("Title " + videoID),
		Channel:        &channel,
		Platform:       &platform,
		TranscriptText: "irrelevant",
	}))
}

func newTranscriptsRouter(st *storetest.Store, artifacts *storage.Store) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/v1/transcripts", handler.NewListTranscriptsHandler(st))
	r.Get("/api/v1/transcripts/{videoID}", handler.NewReadTranscriptHandler(st, artifacts))
	return r
}

func TestListTranscripts(t *testing.T) {
	st := storetest.New()
	seedTranscript(t, st, "v1", "youtube", "chanA", "youtube/chanA/v1")
	seedTranscript(t, st, "v2", "vimeo", "chanB", "vimeo/chanB/v2")
	router := newTranscriptsRouter(st, storage.New(t.TempDir()))

	rec := get(t, router, "/api/v1/transcripts")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []models.Transcript `json:"data"`
		Meta struct {
			Count int `json:"count"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data, 2)
	assert.Equal(t, 2, body.Meta.Count)
}

func TestListTranscripts_PlatformFilter(t *testing.T) {
	st := storetest.New()
	seedTranscript(t, st, "v1", "youtube", "chanA", "youtube/chanA/v1")
	seedTranscript(t, st, "v2", "vimeo", "chanB", "vimeo/chanB/v2")
	router := newTranscriptsRouter(st, storage.New(t.TempDir()))

	rec := get(t, router, "/api/v1/transcripts?platform=vimeo")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []models.Transcript `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "v2", body.Data[0].VideoID)
}

func TestListTranscripts_EmptyIsArray(t *testing.T) {
	router := newTranscriptsRouter(storetest.New(), storage.New(t.TempDir()))

	rec := get(t, router, "/api/v1/transcripts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestReadTranscript(t *testing.T) {
	st := storetest.New()
	artifacts := storage.New(t.TempDir())

	audioPath := filepath.Join(t.TempDir(), "a.mp3")
	require.NoError(t, os.WriteFile(audioPath, []byte("x"), 0o644))
	relDir, err := artifacts.Persist(models.MediaMetadata{
		VideoID:  "v1",
		Title:    "Title v1",
		Channel:  "chanA",
		Platform: "youtube",
	}, &models.TranscriptResult{Text: "line one\nline two"}, audioPath)
	require.NoError(t, err)

	seedTranscript(t, st, "v1", "youtube", "chanA", relDir)
	router := newTranscriptsRouter(st, artifacts)

	rec := get(t, router, "/api/v1/transcripts/v1?format=txt&offset=1&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	assert.Equal(t, "v1", data["video_id"])
	page := data["page"].(map[string]any)
	assert.Equal(t, "txt", page["format"])
	assert.Equal(t, "line two", page["content"])
	assert.EqualValues(t, 2, page["total"])
}

func TestReadTranscript_NotFound(t *testing.T) {
	router := newTranscriptsRouter(storetest.New(), storage.New(t.TempDir()))

	rec := get(t, router, "/api/v1/transcripts/nothing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReadTranscript_BadFormat(t *testing.T) {
	st := storetest.New()
	seedTranscript(t, st, "v1", "youtube", "chanA", "youtube/chanA/v1")
	router := newTranscriptsRouter(st, storage.New(t.TempDir()))

	rec := get(t, router, "/api/v1/transcripts/v1?format=pdf")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "format must be one of")
}

func TestReadTranscript_ContentMissing(t *testing.T) {
	st := storetest.New()
	// Row exists but nothing on disk at its path.
	seedTranscript(t, st, "v1", "youtube", "chanA", "youtube/chanA/v1")
	router := newTranscriptsRouter(st, storage.New(t.TempDir()))

	rec := get(t, router, "/api/v1/transcripts/v1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "content missing")
}
