package fallback

import (
	"context"
	"errors"
	"time"

	"mediadrop/internal/mediatypes"
)

// DefaultTimeout bounds a single fallback upload, matching the per-server
// limit of the Blossom client.
const DefaultTimeout = 2 * time.Minute

var (
	// ErrUploadFailed means the destination could not be reached or rejected
	// the payload.
	ErrUploadFailed = errors.New("upload-failed")

	// ErrNoURL means the destination accepted the payload but returned no URL.
	ErrNoURL = errors.New("no-url")
)

// ProgressFunc receives bytes sent so far and the total. It may be nil.
type ProgressFunc func(sent, total int64)

// Sink uploads a blob somewhere that can serve it back by URL.
type Sink interface {
	Name() string
	Upload(ctx context.Context, blob mediatypes.Blob, progress ProgressFunc) (string, error)
}

// fallbackName is the file name sent for blobs that have none.
func fallbackName(blob mediatypes.Blob) string {
	if blob.Name != "" {
		return blob.Name
	}
	return mediatypes.DefaultName(blob.Kind())
}
