package mediatypes

import (
	"net/http"
	"path/filepath"
	"strings"
)

// DefaultMIMEType is sent for payloads whose type is unknown.
const DefaultMIMEType = "application/octet-stream"

// Kind is the broad category of a media payload.
type Kind string

const (
	// KindVideo represents a video payload.
	KindVideo Kind = "video"
	// KindAudio represents an audio payload.
	KindAudio Kind = "audio"
	// KindImage represents an image payload.
	KindImage Kind = "image"
	// KindOther represents anything mediadrop does not handle.
	KindOther Kind = "other"
)

// Blob is an immutable media payload with its declared type.
type Blob struct {
	Data     []byte
	MIMEType string
	Name     string
}

// NewBlob builds a Blob, filling in the MIME type from the name or the content
// when mimeType is empty or generic.
func NewBlob(name string, data []byte, mimeType string) Blob {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" || mimeType == DefaultMIMEType {
		mimeType = DetectMIMEType(name, data)
	}
	return Blob{Data: data, MIMEType: mimeType, Name: name}
}

// Size returns the payload length in bytes.
func (b Blob) Size() int64 {
	return int64(len(b.Data))
}

// Kind classifies the blob by its MIME type.
func (b Blob) Kind() Kind {
	return KindOf(b.MIMEType)
}

// ContentType returns the MIME type to send on the wire.
func (b Blob) ContentType() string {
	if b.MIMEType == "" {
		return DefaultMIMEType
	}
	return b.MIMEType
}

// KindOf classifies a MIME type. Codec parameters are ignored.
func KindOf(mimeType string) Kind {
	base := strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(base, ";"); idx != -1 {
		base = strings.TrimSpace(base[:idx])
	}
	switch {
	case strings.HasPrefix(base, "video/"):
		return KindVideo
	case strings.HasPrefix(base, "audio/"):
		return KindAudio
	case strings.HasPrefix(base, "image/"):
		return KindImage
	default:
		return KindOther
	}
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
	".avif": "image/avif",

	// Videos
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",

	// Audio
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".weba": "audio/webm",
}

// GetMimeType returns the MIME type for a given file extension.
// The extension should include the leading dot (e.g., ".jpg"); case is ignored.
// Returns DefaultMIMEType if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[strings.ToLower(ext)]; ok {
		return mime
	}
	return DefaultMIMEType
}

// DetectMIMEType guesses a type from the file name, then from the leading bytes.
func DetectMIMEType(name string, data []byte) string {
	if name != "" {
		if mime := GetMimeType(filepath.Ext(name)); mime != DefaultMIMEType {
			return mime
		}
	}
	if len(data) == 0 {
		return DefaultMIMEType
	}
	sniffed := http.DetectContentType(data)
	if idx := strings.Index(sniffed, ";"); idx != -1 {
		sniffed = sniffed[:idx]
	}
	return sniffed
}

// ExtensionFor returns a file extension (with dot) for a MIME type, preferring
// the canonical one for common formats.
func ExtensionFor(mimeType string) string {
	base := strings.ToLower(mimeType)
	if idx := strings.Index(base, ";"); idx != -1 {
		base = strings.TrimSpace(base[:idx])
	}
	switch base {
	case "image/jpeg":
		return ".jpg"
	case "video/mpeg":
		return ".mpeg"
	case "audio/ogg":
		return ".ogg"
	case "image/tiff":
		return ".tiff"
	}
	for ext, mime := range MimeTypes {
		if mime == base {
			return ext
		}
	}
	return ""
}

// DefaultName returns the file name used when the caller supplied none.
func DefaultName(kind Kind) string {
	switch kind {
	case KindVideo:
		return "video.webm"
	case KindAudio:
		return "audio.webm"
	case KindImage:
		return "image"
	default:
		return "file"
	}
}
