package uploader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mediadrop/internal/authz"
	"mediadrop/internal/blossom"
	"mediadrop/internal/database"
	"mediadrop/internal/digest"
	"mediadrop/internal/fallback"
	"mediadrop/internal/logging"
	"mediadrop/internal/mediatypes"
	"mediadrop/internal/metrics"
	"mediadrop/internal/transcoder"
)

// DefaultTranscodeThreshold is the size above which videos are transcoded.
const DefaultTranscodeThreshold int64 = 1024 * 1024

// Synthetic progress parameters for Blossom uploads.
const (
	syntheticInterval = 450 * time.Millisecond
	syntheticStep     = 4
	syntheticCap      = 98
)

// ErrUnsupportedMedia is returned for payloads that are not video, audio or image.
var ErrUnsupportedMedia = errors.New("unsupported media type")

// Stage names a phase of Process.
type Stage string

// Pipeline stages.
const (
	StageTranscoding Stage = "transcoding"
	StageResizing    Stage = "resizing"
	StageUploading   Stage = "uploading"
	StageComplete    Stage = "complete"
)

// Progress is one notification from Process. Percent is relative to Stage.
type Progress struct {
	Stage     Stage  `json:"stage"`
	Percent   int    `json:"percent"`
	Detail    string `json:"detail,omitempty"`
	Synthetic bool   `json:"synthetic,omitempty"`
}

// ProgressFunc receives notifications. It may be nil.
type ProgressFunc func(Progress)

// Transcoder shrinks videos.
type Transcoder interface {
	Transcode(ctx context.Context, blob mediatypes.Blob, progress transcoder.ProgressFunc) (*transcoder.Result, error)
}

// Resizer shrinks images.
type Resizer interface {
	NeedsDownscale(blob mediatypes.Blob) bool
	Downscale(blob mediatypes.Blob) (mediatypes.Blob, error)
}

// Publisher stores blobs on Blossom servers.
type Publisher interface {
	HasSigner() bool
	Upload(ctx context.Context, blob mediatypes.Blob) (*blossom.Outcome, error)
}

// History records successful uploads.
type History interface {
	RecordUpload(ctx context.Context, u database.Upload) (*database.Upload, error)
}

// Config wires a Pipeline. Only Publisher or Fallback is required.
type Config struct {
	Transcoder         Transcoder
	TranscodeThreshold int64
	Resizer            Resizer
	Publisher          Publisher
	Fallback           fallback.Sink
	History            History
}

// Result describes a published upload.
type Result struct {
	URL          string            `json:"url"`
	SHA256       digest.Digest     `json:"sha256"`
	Via          database.Via      `json:"via"`
	Server       string            `json:"server,omitempty"`
	Tier         string            `json:"tier,omitempty"`
	Name         string            `json:"name"`
	MIMEType     string            `json:"type"`
	OriginalSize int64             `json:"originalSize"`
	Size         int64             `json:"size"`
	Attempts     []blossom.Attempt `json:"-"`
	Record       *database.Upload  `json:"record,omitempty"`
}

// Pipeline runs the full upload flow. It is safe for concurrent use.
type Pipeline struct {
	cfg Config
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	if cfg.TranscodeThreshold <= 0 {
		cfg.TranscodeThreshold = DefaultTranscodeThreshold
	}
	return &Pipeline{cfg: cfg}
}

// Process prepares blob and publishes it.
func (p *Pipeline) Process(ctx context.Context, blob mediatypes.Blob, onProgress ProgressFunc) (*Result, error) {
	metrics.UploadsInProgress.Inc()
	defer metrics.UploadsInProgress.Dec()

	result, err := p.process(ctx, blob, onProgress)
	if err != nil {
		f := Classify(err)
		metrics.UploadFailuresTotal.WithLabelValues(string(f.Category)).Inc()
		logging.Warn("Upload of %q failed (%s): %v", blob.Name, f.Category, err)
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) process(ctx context.Context, blob mediatypes.Blob, onProgress ProgressFunc) (*Result, error) {
	kind := blob.Kind()
	if kind != mediatypes.KindVideo && kind != mediatypes.KindAudio && kind != mediatypes.KindImage {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, blob.ContentType())
	}

	report := func(pr Progress) {
		if onProgress != nil {
			onProgress(pr)
		}
	}

	originalSize := blob.Size()
	tier := ""

	switch kind {
	case mediatypes.KindVideo:
		if p.cfg.Transcoder != nil && blob.Size() > p.cfg.TranscodeThreshold {
			res, err := p.cfg.Transcoder.Transcode(ctx, blob, func(tp transcoder.Progress) {
				report(Progress{Stage: StageTranscoding, Percent: tp.Percent, Detail: string(tp.Stage)})
			})
			if err != nil {
				return nil, err
			}
			blob, tier = res.Blob, res.Tier
		}
	case mediatypes.KindImage:
		if p.cfg.Resizer != nil && p.cfg.Resizer.NeedsDownscale(blob) {
			report(Progress{Stage: StageResizing})
			resized, err := p.cfg.Resizer.Downscale(blob)
			if err != nil {
				logging.Warn("Image downscale failed, uploading original: %v", err)
			} else {
				blob = resized
			}
			report(Progress{Stage: StageResizing, Percent: 100})
		}
	}

	if blob.Name == "" {
		blob.Name = mediatypes.DefaultName(kind)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := p.publish(ctx, blob, report)
	if err != nil {
		return nil, err
	}

	result.Tier = tier
	result.OriginalSize = originalSize
	metrics.UploadsTotal.WithLabelValues(string(result.Via), "success").Inc()
	metrics.UploadBytesTotal.WithLabelValues(string(result.Via)).Add(float64(result.Size))

	if p.cfg.History != nil {
		rec, err := p.cfg.History.RecordUpload(ctx, database.Upload{
			Name:         result.Name,
			MimeType:     result.MIMEType,
			SHA256:       result.SHA256.String(),
			URL:          result.URL,
			Server:       result.Server,
			Via:          result.Via,
			Tier:         result.Tier,
			OriginalSize: result.OriginalSize,
			FinalSize:    result.Size,
		})
		if err != nil {
			logging.Warn("Failed to record upload history for %s: %v", result.SHA256.Short(), err)
		} else {
			result.Record = rec
		}
	}

	report(Progress{Stage: StageComplete, Percent: 100})
	return result, nil
}

// publish tries Blossom first and the fallback sink second.
func (p *Pipeline) publish(ctx context.Context, blob mediatypes.Blob, report ProgressFunc) (*Result, error) {
	base := Result{
		SHA256:   digest.Sum(blob.Data),
		Name:     blob.Name,
		MIMEType: blob.ContentType(),
		Size:     blob.Size(),
	}

	var primaryErr error
	switch {
	case p.cfg.Publisher == nil:
		primaryErr = authz.ErrMissingSigner
	case !p.cfg.Publisher.HasSigner():
		primaryErr = authz.ErrMissingSigner
		logging.Debug("No signer configured, skipping Blossom")
	default:
		outcome, err := p.uploadBlossom(ctx, blob, report)
		if err == nil {
			r := base
			r.URL = outcome.URL
			r.Via = database.ViaBlossom
			r.Server = outcome.Server.URL
			r.Attempts = outcome.Attempts
			return &r, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		metrics.UploadsTotal.WithLabelValues(string(database.ViaBlossom), "error").Inc()
		logging.Warn("Blossom upload failed: %v", err)
		primaryErr = err
	}

	if p.cfg.Fallback == nil {
		return nil, primaryErr
	}

	logging.Info("Uploading %s via fallback %s", base.SHA256.Short(), p.cfg.Fallback.Name())
	report(Progress{Stage: StageUploading, Percent: 0, Detail: p.cfg.Fallback.Name()})
	url, err := p.cfg.Fallback.Upload(ctx, blob, func(sent, total int64) {
		report(Progress{Stage: StageUploading, Percent: bytePercent(sent, total), Detail: p.cfg.Fallback.Name()})
	})
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(string(database.ViaFallback), "error").Inc()
		return nil, err
	}

	r := base
	r.URL = url
	r.Via = database.ViaFallback
	report(Progress{Stage: StageUploading, Percent: 100, Detail: p.cfg.Fallback.Name()})
	return &r, nil
}

// uploadBlossom runs the Blossom upload with a synthetic progress ticker. The
// ticker goroutine is stopped and joined before returning.
func (p *Pipeline) uploadBlossom(ctx context.Context, blob mediatypes.Blob, report ProgressFunc) (*blossom.Outcome, error) {
	report(Progress{Stage: StageUploading, Percent: 0, Synthetic: true})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(syntheticInterval)
		defer ticker.Stop()
		value := 0
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				value = min(syntheticCap, value+syntheticStep)
				report(Progress{Stage: StageUploading, Percent: value, Synthetic: true})
			}
		}
	}()

	outcome, err := p.cfg.Publisher.Upload(ctx, blob)
	close(stop)
	wg.Wait()

	if err != nil {
		return nil, err
	}
	report(Progress{Stage: StageUploading, Percent: 100, Synthetic: true})
	return outcome, nil
}

func bytePercent(sent, total int64) int {
	if total <= 0 {
		return 0
	}
	pct := int(sent * 100 / total)
	return max(0, min(100, pct))
}
