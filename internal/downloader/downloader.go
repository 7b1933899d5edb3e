// Package downloader fetches the audio track of a media URL using yt-dlp,
// which handles platform specifics (YouTube, Vimeo, podcasts, direct files).
package downloader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"mediascribe/pkg/models"
)

// Sentinel errors for download failures.
var (
	ErrNoAudio  = errors.New("no audio file produced")
	ErrBadMedia = errors.New("media could not be downloaded")
)

// Result is a downloaded audio file plus the platform metadata that came with it.
type Result struct {
	AudioPath string
	Metadata  models.MediaMetadata
}

// Downloader fetches the audio for a media URL into destDir.
type Downloader interface {
	Download(ctx context.Context, url, destDir string) (*Result, error)
}

// YtDlp shells out to the yt-dlp binary.
type YtDlp struct {
	// Binary overrides the executable path; defaults to "yt-dlp" on PATH.
	Binary string
}

func (y *YtDlp) binary() string {
	if y.Binary != "" {
		return y.Binary
	}
	return "yt-dlp"
}

func (y *YtDlp) Download(ctx context.Context, url, destDir string) (*Result, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating download dir: %w", err)
	}

	args := []string{
		"--print-json",
		"--no-playlist",
		"--no-warnings",
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "0",
		"-o", filepath.Join(destDir, "%(id)s.%(ext)s"),
		url,
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, y.binary(), args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadMedia, firstStderrLine(stderr.String(), err))
	}

	info, err := parseInfoJSON(stdout.Bytes())
	if err != nil {
		return nil, err
	}

	audioPath, err := locateAudio(destDir, info.ID)
	if err != nil {
		return nil, err
	}

	return &Result{AudioPath: audioPath, Metadata: info.toMetadata()}, nil
}

// parseInfoJSON extracts the video info object from yt-dlp's stdout. With
// --print-json the object is the last non-empty line; postprocessor chatter
// may precede it.
func parseInfoJSON(out []byte) (*infoJSON, error) {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var info infoJSON
		if err := json.Unmarshal(line, &info); err != nil {
			continue
		}
		if info.ID == "" {
			return nil, fmt.Errorf("downloader output missing video id")
		}
		return &info, nil
	}
	return nil, fmt.Errorf("no metadata in downloader output")
}

// locateAudio finds the extracted mp3. The requested file is {id}.mp3; if the
// postprocessor named it differently, fall back to any mp3 in the directory.
func locateAudio(destDir, videoID string) (string, error) {
	exact := filepath.Join(destDir, videoID+".mp3")
	if _, err := os.Stat(exact); err == nil {
		return exact, nil
	}

	matches, err := filepath.Glob(filepath.Join(destDir, "*.mp3"))
	if err != nil || len(matches) == 0 {
		return "", ErrNoAudio
	}
	return matches[0], nil
}

func firstStderrLine(stderr string, fallback error) string {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return fallback.Error()
}

type infoJSON struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Uploader     string   `json:"uploader"`
	Channel      string   `json:"channel"`
	ExtractorKey string   `json:"extractor_key"`
	WebpageURL   string   `json:"webpage_url"`
	Duration     *float64 `json:"duration"`
	UploadDate   *string  `json:"upload_date"`
	Description  *string  `json:"description"`
	Thumbnail    *string  `json:"thumbnail"`
	ViewCount    *int64   `json:"view_count"`
	LikeCount    *int64   `json:"like_count"`
}

func (i *infoJSON) toMetadata() models.MediaMetadata {
	channel := i.Channel
	if channel == "" {
		channel = i.Uploader
	}
	return models.MediaMetadata{
		VideoID:     i.ID,
		Title:       i.Title,
		Channel:     channel,
		Platform:    strings.ToLower(i.ExtractorKey),
		URL:         i.WebpageURL,
		Duration:    i.Duration,
		UploadDate:  i.UploadDate,
		Description: i.Description,
		Thumbnail:   i.Thumbnail,
		ViewCount:   i.ViewCount,
		LikeCount:   i.LikeCount,
	}
}

var _ Downloader = (*YtDlp)(nil)
