package models

// MediaMetadata describes a downloaded or inspected video, as reported by the
// hosting platform.
type MediaMetadata struct {
	VideoID     string   `json:"video_id"`
	Title       string   `json:"title"`
	Channel     string   `json:"channel"`
	Platform    string   `json:"platform"`
	URL         string   `json:"url"`
	Duration    *float64 `json:"duration,omitempty"`
	UploadDate  *string  `json:"upload_date,omitempty"`
	Description *string  `json:"description,omitempty"`
	Thumbnail   *string  `json:"thumbnail,omitempty"`
	ViewCount   *int64   `json:"view_count,omitempty"`
	LikeCount   *int64   `json:"like_count,omitempty"`
}

// MediaSearchResult is one hit from a platform video search.
type MediaSearchResult struct {
	VideoID   string `json:"video_id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Channel   string `json:"channel"`
	Duration  *int64 `json:"duration,omitempty"`
	ViewCount *int64 `json:"view_count,omitempty"`
}

// MediaComment is one viewer comment on a video.
type MediaComment struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Author      string `json:"author"`
	AuthorID    string `json:"author_id,omitempty"`
	LikeCount   int64  `json:"like_count"`
	IsPinned    bool   `json:"is_pinned"`
	IsFavorited bool   `json:"is_favorited"`
	Parent      string `json:"parent"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}
