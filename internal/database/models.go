package database

import "time"

// Via names the path that published an upload.
type Via string

const (
	// ViaBlossom means a Blossom server accepted and verified the upload.
	ViaBlossom Via = "blossom"
	// ViaFallback means the designated fallback sink stored the upload.
	ViaFallback Via = "fallback"
)

// Upload is one recorded upload.
type Upload struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mimeType"`
	SHA256       string    `json:"sha256"`
	URL          string    `json:"url"`
	Server       string    `json:"server,omitempty"`
	Via          Via       `json:"via"`
	Tier         string    `json:"tier,omitempty"`
	OriginalSize int64     `json:"originalSize"`
	FinalSize    int64     `json:"finalSize"`
	CreatedAt    time.Time `json:"createdAt"`
}
