// Package transcriber turns an audio file into a transcript via the
// AssemblyAI HTTP API: upload the audio, create a transcription job, then
// poll until it completes or errors.
package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"mediascribe/internal/config"
	"mediascribe/pkg/models"
)

// Sentinel errors for transcription failures.
var (
	ErrAudioMissing = errors.New("audio file not found")
	ErrTimeout      = errors.New("transcription polling timed out")
)

// Transcriber converts an audio file into a transcript. The worker depends on
// this interface so tests can substitute a deterministic fake.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*models.TranscriptResult, error)
}

// AssemblyAI implements Transcriber against the AssemblyAI v2 API.
type AssemblyAI struct {
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	maxWait      time.Duration
	client       *http.Client
}

// NewAssemblyAI creates a client from configuration.
func NewAssemblyAI(cfg config.TranscriberConfig) *AssemblyAI {
	return &AssemblyAI{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		pollInterval: cfg.PollInterval,
		maxWait:      cfg.MaxWait,
		client:       &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

func (a *AssemblyAI) Transcribe(ctx context.Context, audioPath string) (*models.TranscriptResult, error) {
	audioURL, err := a.upload(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	transcriptID, err := a.create(ctx, audioURL)
	if err != nil {
		return nil, err
	}

	payload, err := a.poll(ctx, transcriptID)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(payload.Text)
	segments := extractSegments(payload.Utterances)
	if text == "" && len(segments) > 0 {
		parts := make([]string, len(segments))
		for i, seg := range segments {
			parts[i] = seg.Text
		}
		text = strings.TrimSpace(strings.Join(parts, "\n"))
	}

	var language *string
	if payload.LanguageCode != "" {
		lang := payload.LanguageCode
		language = &lang
	}

	return &models.TranscriptResult{Text: text, Segments: segments, Language: language}, nil
}

func (a *AssemblyAI) upload(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrAudioMissing, audioPath)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/upload", f)
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("authorization", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("upload failed (%d): %s", resp.StatusCode, readBodyPrefix(resp.Body))
	}

	var payload struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if payload.UploadURL == "" {
		return "", fmt.Errorf("upload response missing upload_url")
	}
	return payload.UploadURL, nil
}

func (a *AssemblyAI) create(ctx context.Context, audioURL string) (string, error) {
	body := strings.NewReader(fmt.Sprintf(
		`{"audio_url":%q,"speaker_labels":true,"punctuate":true,"format_text":true}`, audioURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/transcript", body)
	if err != nil {
		return "", fmt.Errorf("building create request: %w", err)
	}
	req.Header.Set("authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("create transcript: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("transcript create failed (%d): %s", resp.StatusCode, readBodyPrefix(resp.Body))
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding create response: %w", err)
	}
	if payload.ID == "" {
		return "", fmt.Errorf("transcript create response missing id")
	}
	return payload.ID, nil
}

// poll fetches the transcript until its status is completed or error, bounded
// by maxWait of wall-clock time and the context.
func (a *AssemblyAI) poll(ctx context.Context, transcriptID string) (*transcriptPayload, error) {
	deadline := time.Now().Add(a.maxWait)

	for {
		payload, err := a.fetch(ctx, transcriptID)
		if err != nil {
			return nil, err
		}

		switch strings.ToLower(payload.Status) {
		case "completed":
			return payload, nil
		case "error":
			msg := payload.Error
			if msg == "" {
				msg = "transcription backend reported error status"
			}
			return nil, errors.New(msg)
		}

		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.pollInterval):
		}
	}
}

func (a *AssemblyAI) fetch(ctx context.Context, transcriptID string) (*transcriptPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/transcript/"+transcriptID, nil)
	if err != nil {
		return nil, fmt.Errorf("building poll request: %w", err)
	}
	req.Header.Set("authorization", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll transcript: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("transcript poll failed (%d): %s", resp.StatusCode, readBodyPrefix(resp.Body))
	}

	var payload transcriptPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding poll response: %w", err)
	}
	return &payload, nil
}

func extractSegments(utterances []utterance) []models.TranscriptSegment {
	var segments []models.TranscriptSegment
	for _, u := range utterances {
		text := strings.TrimSpace(u.Text)
		if text == "" {
			continue
		}
		seg := models.TranscriptSegment{
			Start: float64(u.Start) / 1000.0,
			End:   float64(u.End) / 1000.0,
			Text:  text,
		}
		if u.Speaker != "" {
			speaker := u.Speaker
			seg.Speaker = &speaker
		}
		segments = append(segments, seg)
	}
	return segments
}

func readBodyPrefix(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 400))
	return strings.TrimSpace(string(b))
}

// --- AssemblyAI response types ---

type transcriptPayload struct {
	ID           string      `json:"id"`
	Status       string      `json:"status"`
	Text         string      `json:"text"`
	Error        string      `json:"error"`
	LanguageCode string      `json:"language_code"`
	Utterances   []utterance `json:"utterances"`
}

type utterance struct {
	Start   int64  `json:"start"`
	End     int64  `json:"end"`
	Text    string `json:"text"`
	Speaker string `json:"speaker"`
}

// Compile-time check that AssemblyAI implements Transcriber.
var _ Transcriber = (*AssemblyAI)(nil)
