package models

import "time"

const (
	MediaTypeImage    = "image"
	MediaTypeVideo    = "video"
	MediaTypeDocument = "document"
)

// MediaItem is the server representation of one uploaded media object.
type MediaItem struct {
	ID        string    `json:"_id"`
	Type      string    `json:"type"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mimeType"`
	Size      int64     `json:"size"`
	RelatedID string    `json:"related"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
