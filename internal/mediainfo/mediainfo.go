// Package mediainfo answers read-only questions about hosted media through
// yt-dlp, without downloading anything: platform search, video metadata, and
// viewer comments.
package mediainfo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"mediascribe/pkg/models"
)

// ErrLookupFailed wraps any yt-dlp invocation that exits non-zero.
var ErrLookupFailed = errors.New("media lookup failed")

const (
	maxSearchResults = 25
	maxComments      = 500
)

// Client runs read-only yt-dlp queries.
type Client struct {
	// Binary overrides the executable path; defaults to "yt-dlp" on PATH.
	Binary string
}

func (c *Client) binary() string {
	if c.Binary != "" {
		return c.Binary
	}
	return "yt-dlp"
}

// Search runs a YouTube search and returns up to limit hits. limit is clamped
// to [1, 25].
func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.MediaSearchResult, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > maxSearchResults {
		limit = maxSearchResults
	}

	out, err := c.run(ctx,
		"--dump-json",
		"--flat-playlist",
		"--no-warnings",
		fmt.Sprintf("ytsearch%d:%s", limit, query),
	)
	if err != nil {
		return nil, err
	}

	results := make([]models.MediaSearchResult, 0, limit)
	for _, line := range bytes.Split(bytes.TrimSpace(out), []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var entry struct {
			ID        string   `json:"id"`
			Title     string   `json:"title"`
			URL       string   `json:"url"`
			Uploader  string   `json:"uploader"`
			Channel   string   `json:"channel"`
			Duration  *float64 `json:"duration"`
			ViewCount *int64   `json:"view_count"`
		}
		if err := json.Unmarshal(line, &entry); err != nil || entry.ID == "" {
			continue
		}
		channel := entry.Channel
		if channel == "" {
			channel = entry.Uploader
		}
		url := entry.URL
		if url == "" {
			url = "https://www.youtube.com/watch?v=" + entry.ID
		}
		result := models.MediaSearchResult{
			VideoID:   entry.ID,
			Title:     entry.Title,
			URL:       url,
			Channel:   channel,
			ViewCount: entry.ViewCount,
		}
		if entry.Duration != nil {
			d := int64(*entry.Duration)
			result.Duration = &d
		}
		results = append(results, result)
	}
	return results, nil
}

// Metadata inspects a single video without downloading it.
func (c *Client) Metadata(ctx context.Context, url string) (*models.MediaMetadata, error) {
	out, err := c.run(ctx,
		"--dump-json",
		"--skip-download",
		"--no-playlist",
		"--no-warnings",
		url,
	)
	if err != nil {
		return nil, err
	}

	var info struct {
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
	if err := json.Unmarshal(lastJSONLine(out), &info); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("metadata missing video id")
	}

	channel := info.Channel
	if channel == "" {
		channel = info.Uploader
	}
	return &models.MediaMetadata{
		VideoID:     info.ID,
		Title:       info.Title,
		Channel:     channel,
		Platform:    strings.ToLower(info.ExtractorKey),
		URL:         info.WebpageURL,
		Duration:    info.Duration,
		UploadDate:  info.UploadDate,
		Description: info.Description,
		Thumbnail:   info.Thumbnail,
		ViewCount:   info.ViewCount,
		LikeCount:   info.LikeCount,
	}, nil
}

// Comments fetches up to limit viewer comments for a video. limit is clamped
// to [1, 500]; sort is "top" (default) or "new".
func (c *Client) Comments(ctx context.Context, url string, limit int, sort string) ([]models.MediaComment, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > maxComments {
		limit = maxComments
	}
	if sort != "new" {
		sort = "top"
	}

	out, err := c.run(ctx,
		"--dump-json",
		"--skip-download",
		"--no-playlist",
		"--no-warnings",
		"--write-comments",
		"--extractor-args", fmt.Sprintf("youtube:max_comments=%d,all,%d;comment_sort=%s", limit, limit, sort),
		url,
	)
	if err != nil {
		return nil, err
	}

	var info struct {
		Comments []struct {
			ID          string `json:"id"`
			Text        string `json:"text"`
			Author      string `json:"author"`
			AuthorID    string `json:"author_id"`
			LikeCount   int64  `json:"like_count"`
			IsPinned    bool   `json:"is_pinned"`
			IsFavorited bool   `json:"is_favorited"`
			Parent      string `json:"parent"`
			Timestamp   int64  `json:"timestamp"`
		} `json:"comments"`
	}
	if err := json.Unmarshal(lastJSONLine(out), &info); err != nil {
		return nil, fmt.Errorf("decoding comments: %w", err)
	}

	comments := make([]models.MediaComment, 0, len(info.Comments))
	for _, raw := range info.Comments {
		if len(comments) >= limit {
			break
		}
		comments = append(comments, models.MediaComment{
			ID:          raw.ID,
			Text:        raw.Text,
			Author:      raw.Author,
			AuthorID:    raw.AuthorID,
			LikeCount:   raw.LikeCount,
			IsPinned:    raw.IsPinned,
			IsFavorited: raw.IsFavorited,
			Parent:      raw.Parent,
			Timestamp:   raw.Timestamp,
		})
	}
	return comments, nil
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary(), args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%w: %s", ErrLookupFailed, firstLine(msg))
	}
	return stdout.Bytes(), nil
}

func lastJSONLine(out []byte) []byte {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) > 0 && line[0] == '{' {
			return line
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
