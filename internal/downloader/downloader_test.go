package downloader_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediascribe/internal/downloader"
)

// fakeBinary writes an executable shell script standing in for yt-dlp.
func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake binary uses a shell script")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestDownload_HappyPath(t *testing.T) {
	destDir := t.TempDir()

	// Emits postprocessor noise before the info JSON, and creates the mp3 at
	// the requested output path, like the real tool does.
	script := `
dest="` + destDir + `"
echo "[ExtractAudio] Destination: $dest/abc123.mp3"
printf 'fake audio' > "$dest/abc123.mp3"
echo '{"id":"abc123","title":"Go Talk","channel":"GopherCon","extractor_key":"Youtube","webpage_url":"https://youtube.com/watch?v=abc123","duration":613.2,"upload_date":"20250110","view_count":42000}'
`
	dl := &downloader.YtDlp{Binary: fakeBinary(t, script)}
	result, err := dl.Download(context.Background(), "https://youtube.com/watch?v=abc123", destDir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(destDir, "abc123.mp3"), result.AudioPath)
	assert.FileExists(t, result.AudioPath)

	meta := result.Metadata
	assert.Equal(t, "abc123", meta.VideoID)
	assert.Equal(t, "Go Talk", meta.Title)
	assert.Equal(t, "GopherCon", meta.Channel)
	assert.Equal(t, "youtube", meta.Platform)
	assert.Equal(t, "https://youtube.com/watch?v=abc123", meta.URL)
	require.NotNil(t, meta.Duration)
	assert.InDelta(t, 613.2, *meta.Duration, 0.001)
	require.NotNil(t, meta.ViewCount)
	assert.EqualValues(t, 42000, *meta.ViewCount)
}

func TestDownload_UploaderFallback(t *testing.T) {
	destDir := t.TempDir()
	script := `
printf 'x' > "` + destDir + `/v1.mp3"
echo '{"id":"v1","title":"Clip","uploader":"someone","extractor_key":"Vimeo","webpage_url":"https://vimeo.com/1"}'
`
	dl := &downloader.YtDlp{Binary: fakeBinary(t, script)}
	result, err := dl.Download(context.Background(), "https://vimeo.com/1", destDir)
	require.NoError(t, err)
	assert.Equal(t, "someone", result.Metadata.Channel)
	assert.Equal(t, "vimeo", result.Metadata.Platform)
}

func TestDownload_FallsBackToAnyMP3(t *testing.T) {
	destDir := t.TempDir()
	script := `
printf 'x' > "` + destDir + `/renamed.mp3"
echo '{"id":"v2","title":"Clip","extractor_key":"Youtube"}'
`
	dl := &downloader.YtDlp{Binary: fakeBinary(t, script)}
	result, err := dl.Download(context.Background(), "https://youtube.com/watch?v=v2", destDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "renamed.mp3"), result.AudioPath)
}

func TestDownload_ToolFailure(t *testing.T) {
	script := `
echo 'ERROR: [youtube] xyz: Video unavailable' >&2
exit 1
`
	dl := &downloader.YtDlp{Binary: fakeBinary(t, script)}
	_, err := dl.Download(context.Background(), "https://youtube.com/watch?v=xyz", t.TempDir())
	require.ErrorIs(t, err, downloader.ErrBadMedia)
	assert.Contains(t, err.Error(), "Video unavailable")
}

func TestDownload_NoAudioProduced(t *testing.T) {
	script := `echo '{"id":"v3","title":"Clip","extractor_key":"Youtube"}'`
	dl := &downloader.YtDlp{Binary: fakeBinary(t, script)}
	_, err := dl.Download(context.Background(), "https://youtube.com/watch?v=v3", t.TempDir())
	require.ErrorIs(t, err, downloader.ErrNoAudio)
}

func TestDownload_NoMetadata(t *testing.T) {
	script := `echo 'not json at all'`
	dl := &downloader.YtDlp{Binary: fakeBinary(t, script)}
	_, err := dl.Download(context.Background(), "https://youtube.com/watch?v=v4", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no metadata")
}

func TestDownload_ContextCancelled(t *testing.T) {
	script := `sleep 10`
	dl := &downloader.YtDlp{Binary: fakeBinary(t, script)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := dl.Download(ctx, "https://youtube.com/watch?v=v5", t.TempDir())
	require.Error(t, err)
}
