package uploader

import (
	"context"
	"errors"
	"fmt"

	"mediadrop/internal/authz"
	"mediadrop/internal/blossom"
	"mediadrop/internal/fallback"
	"mediadrop/internal/transcoder"
)

// Category is the user-facing class of a failed upload.
type Category string

// Failure categories.
const (
	CategoryOversized         Category = "oversized"
	CategoryUnsupported       Category = "unsupported"
	CategoryLoadTimeout       Category = "load-timeout"
	CategoryUploadFailed      Category = "upload-failed"
	CategoryMalformedResponse Category = "malformed-response"
	CategoryMissingSigner     Category = "missing-signer"
	CategoryGeneric           Category = "generic"
)

// Failure is the user-facing description of an error from Process.
type Failure struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
	// SizeMB is the measured size with one decimal, set for CategoryOversized.
	SizeMB string `json:"sizeMB,omitempty"`
}

func (f Failure) Error() string {
	return f.Message
}

// Classify maps err onto a Failure. A nil error yields the zero Failure.
func Classify(err error) Failure {
	if err == nil {
		return Failure{}
	}

	var tooLarge *transcoder.PayloadTooLargeError
	var exhausted *blossom.ExhaustedError
	switch {
	case errors.As(err, &tooLarge):
		return Failure{
			Category: CategoryOversized,
			Message: fmt.Sprintf("The file is too large (%sMB). The limit is %dMB.",
				tooLarge.SizeMB(), tooLarge.Limit/(1024*1024)),
			SizeMB: tooLarge.SizeMB(),
		}
	case errors.Is(err, ErrUnsupportedMedia), errors.Is(err, transcoder.ErrNotVideo):
		return Failure{
			Category: CategoryUnsupported,
			Message:  "The selected file is not a supported video, audio or image.",
		}
	case errors.Is(err, transcoder.ErrMetadataTimeout), errors.Is(err, transcoder.ErrNoVideoStream):
		return Failure{
			Category: CategoryLoadTimeout,
			Message:  "Loading the video failed. Check that the file is valid.",
		}
	case errors.Is(err, fallback.ErrNoURL),
		errors.As(err, &exhausted) && allMalformed(exhausted.Attempts):
		return Failure{
			Category: CategoryMalformedResponse,
			Message:  "The server did not return a link. Check the file and try again.",
		}
	case errors.Is(err, fallback.ErrUploadFailed), errors.Is(err, blossom.ErrAllServersExhausted):
		return Failure{
			Category: CategoryUploadFailed,
			Message:  "The upload failed. Try again later.",
		}
	case errors.Is(err, authz.ErrMissingSigner):
		return Failure{
			Category: CategoryMissingSigner,
			Message:  "No signing key is configured and no fallback is available.",
		}
	case errors.Is(err, context.DeadlineExceeded):
		return Failure{
			Category: CategoryUploadFailed,
			Message:  "The upload timed out. Try again later.",
		}
	default:
		return Failure{
			Category: CategoryGeneric,
			Message:  "Something went wrong. Try another file or reload.",
		}
	}
}

// allMalformed reports whether every server answered 2xx with an unusable body.
func allMalformed(attempts []blossom.Attempt) bool {
	if len(attempts) == 0 {
		return false
	}
	for _, a := range attempts {
		if a.Reason != blossom.ReasonMalformed {
			return false
		}
	}
	return true
}
