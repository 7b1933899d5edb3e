package models

import "time"

// Transcript is one completed transcription, keyed by the platform video ID.
// Re-transcribing the same video overwrites the row rather than duplicating it.
type Transcript struct {
	ID            int64     `db:"id"             json:"id"`
	VideoID       string    `db:"video_id"       json:"video_id"`
	NormalizedURL *string   `db:"normalized_url" json:"normalized_url,omitempty"`
	URL           *string   `db:"url"            json:"url,omitempty"`
	Title         *string   `db:"title"          json:"title,omitempty"`
	Channel       *string   `db:"channel"        json:"channel,omitempty"`
	Platform      *string   `db:"platform"       json:"platform,omitempty"`
	Duration      *float64  `db:"duration"       json:"duration,omitempty"`
	UploadDate    *string   `db:"upload_date"    json:"upload_date,omitempty"`
	Description   *string   `db:"description"    json:"description,omitempty"`
	Thumbnail     *string   `db:"thumbnail"      json:"thumbnail,omitempty"`
	ViewCount     *int64    `db:"view_count"     json:"view_count,omitempty"`
	SpeakerCount  *int      `db:"speaker_count"  json:"speaker_count,omitempty"`
	WordCount     *int      `db:"word_count"     json:"word_count,omitempty"`
	Confidence    *float64  `db:"confidence"     json:"confidence,omitempty"`
	TranscribedAt time.Time `db:"transcribed_at" json:"transcribed_at"`
	Path          string    `db:"path"           json:"path"`
}

// SearchResult is one ranked full-text match with a contextual excerpt.
type SearchResult struct {
	VideoID       string    `json:"video_id"`
	Title         *string   `json:"title,omitempty"`
	Channel       *string   `json:"channel,omitempty"`
	Platform      *string   `json:"platform,omitempty"`
	Path          string    `json:"path"`
	TranscribedAt time.Time `json:"transcribed_at"`
	Snippet       string    `json:"snippet"`
	Score         float32   `json:"score"`
}

// TranscriptSegment is one utterance of the transcript, in seconds.
type TranscriptSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker *string `json:"speaker,omitempty"`
	Text    string  `json:"text"`
}

// TranscriptResult is the transcription backend's output for one audio file.
type TranscriptResult struct {
	Text     string              `json:"text"`
	Segments []TranscriptSegment `json:"segments"`
	Language *string             `json:"language,omitempty"`
}
