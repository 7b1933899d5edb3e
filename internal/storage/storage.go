// Package storage lays out completed transcription artifacts on disk. Each
// video gets a bundle directory under {platform}/{channel}/{video_id}
// containing the audio, raw metadata, and the transcript in three formats.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediascribe/pkg/models"
)

// ErrNotFound is returned when a bundle or artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// ErrUnsupportedFormat is returned by Read for formats other than md, txt, json.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Artifact filenames within a bundle directory.
const (
	audioFile          = "audio.mp3"
	metadataFile       = "metadata.json"
	transcriptJSONFile = "transcript.json"
	transcriptMDFile   = "transcript.md"
	transcriptTXTFile  = "transcript.txt"
)

// Store persists and reads artifact bundles rooted at DataDir.
type Store struct {
	dataDir string
}

func New(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// WorkDir returns a scratch directory for one job's in-flight download. The
// worker removes it when the job leaves the downloading/transcribing stages.
func (s *Store) WorkDir(jobID uuid.UUID) string {
	return filepath.Join(s.dataDir, "_work", jobID.String())
}

// bundle is the transcript.json document.
type bundle struct {
	VideoID       string                     `json:"video_id"`
	Title         string                     `json:"title"`
	Channel       string                     `json:"channel"`
	Platform      string                     `json:"platform"`
	URL           string                     `json:"url"`
	Language      *string                    `json:"language,omitempty"`
	Text          string                     `json:"text"`
	Segments      []models.TranscriptSegment `json:"segments"`
	TranscribedAt time.Time                  `json:"transcribed_at"`
}

// Persist writes the full artifact bundle for one completed transcription and
// moves the audio file into it. It returns the bundle path relative to the
// data root, which is what the database stores.
func (s *Store) Persist(meta models.MediaMetadata, result *models.TranscriptResult, audioPath string) (string, error) {
	relDir := filepath.Join(
		sanitizeComponent(meta.Platform),
		sanitizeComponent(meta.Channel),
		sanitizeComponent(meta.VideoID),
	)
	dir := filepath.Join(s.dataDir, relDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating bundle dir: %w", err)
	}

	now := time.Now().UTC()
	doc := bundle{
		VideoID:       meta.VideoID,
		Title:         meta.Title,
		Channel:       meta.Channel,
		Platform:      meta.Platform,
		URL:           meta.URL,
		Language:      result.Language,
		Text:          result.Text,
		Segments:      result.Segments,
		TranscribedAt: now,
	}

	if err := writeJSON(filepath.Join(dir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(dir, transcriptJSONFile), doc); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, transcriptMDFile), []byte(renderMarkdown(meta, result, now)), 0o644); err != nil {
		return "", fmt.Errorf("writing markdown transcript: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, transcriptTXTFile), []byte(result.Text+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("writing plain transcript: %w", err)
	}
	if err := moveFile(audioPath, filepath.Join(dir, audioFile)); err != nil {
		return "", fmt.Errorf("moving audio into bundle: %w", err)
	}

	return relDir, nil
}

// Page is one window of transcript content.
type Page struct {
	Format  string `json:"format"`
	Content string `json:"content"`
	Offset  int    `json:"offset"`
	Limit   int    `json:"limit"`
	Total   int    `json:"total"`
}

// Read returns a window of the stored transcript in the requested format.
// Markdown and plain text paginate by line; json paginates by segment.
// Offsets past the end yield an empty page with the real total.
func (s *Store) Read(relDir, format string, offset, limit int) (*Page, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = defaultPageLimit
	}

	dir := filepath.Join(s.dataDir, filepath.Clean("/"+relDir))

	switch format {
	case "json":
		return s.readSegments(dir, offset, limit)
	case "md", "":
		return readLines(filepath.Join(dir, transcriptMDFile), "md", offset, limit)
	case "txt":
		return readLines(filepath.Join(dir, transcriptTXTFile), "txt", offset, limit)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedFormat, format)
	}
}

const defaultPageLimit = 200

func (s *Store) readSegments(dir string, offset, limit int) (*Page, error) {
	raw, err := os.ReadFile(filepath.Join(dir, transcriptJSONFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading transcript: %w", err)
	}

	var doc bundle
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding transcript: %w", err)
	}

	total := len(doc.Segments)
	window := doc.Segments[clamp(offset, total):clamp(offset+limit, total)]
	content, err := json.Marshal(window)
	if err != nil {
		return nil, fmt.Errorf("encoding segment window: %w", err)
	}

	return &Page{Format: "json", Content: string(content), Offset: offset, Limit: limit, Total: total}, nil
}

func readLines(path, format string, offset, limit int) (*Page, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading transcript: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	total := len(lines)
	window := lines[clamp(offset, total):clamp(offset+limit, total)]

	return &Page{Format: format, Content: strings.Join(window, "\n"), Offset: offset, Limit: limit, Total: total}, nil
}

func clamp(n, max int) int {
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// moveFile renames, falling back to copy+remove when source and destination
// are on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeComponent makes a string safe to use as a single path element.
func sanitizeComponent(s string) string {
	s = unsafeChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, "._")
	if s == "" {
		return "unknown"
	}
	return s
}

func renderMarkdown(meta models.MediaMetadata, result *models.TranscriptResult, transcribedAt time.Time) string {
	var b strings.Builder

	title := meta.Title
	if title == "" {
		title = meta.VideoID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- **Channel:** %s\n", meta.Channel)
	fmt.Fprintf(&b, "- **Platform:** %s\n", meta.Platform)
	if meta.URL != "" {
		fmt.Fprintf(&b, "- **URL:** %s\n", meta.URL)
	}
	if meta.Duration != nil {
		fmt.Fprintf(&b, "- **Duration:** %s\n", formatDuration(*meta.Duration))
	}
	if result.Language != nil {
		fmt.Fprintf(&b, "- **Language:** %s\n", *result.Language)
	}
	fmt.Fprintf(&b, "- **Transcribed:** %s\n", transcribedAt.Format(time.RFC3339))

	b.WriteString("\n## Transcript\n\n")

	if len(result.Segments) == 0 {
		b.WriteString(result.Text)
		b.WriteString("\n")
		return b.String()
	}

	for _, seg := range result.Segments {
		stamp := fmt.Sprintf("[%s - %s]", formatTimestamp(seg.Start), formatTimestamp(seg.End))
		if seg.Speaker != nil {
			fmt.Fprintf(&b, "**%s Speaker %s:** %s\n\n", stamp, *seg.Speaker, seg.Text)
		} else {
			fmt.Fprintf(&b, "**%s** %s\n\n", stamp, seg.Text)
		}
	}
	return b.String()
}

// formatTimestamp renders seconds as MM:SS, or H:MM:SS past an hour.
func formatTimestamp(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func formatDuration(seconds float64) string {
	return formatTimestamp(seconds)
}
