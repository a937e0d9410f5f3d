package transcoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mediadrop/internal/digest"
	"mediadrop/internal/logging"
	"mediadrop/internal/mediatypes"
)

// DefaultMaxInput is the largest video accepted for transcoding.
const DefaultMaxInput int64 = 30 * 1024 * 1024

// setupTimeout bounds the one-time ffmpeg checks a tier runs on first use.
const setupTimeout = 30 * time.Second

var (
	// ErrNotVideo is returned when the input is not a video/* blob.
	ErrNotVideo = errors.New("input is not a video")

	// ErrUnavailable means a tier cannot run on this host.
	ErrUnavailable = errors.New("tier unavailable")

	// ErrMetadataTimeout means metadata could not be read within probeTimeout.
	ErrMetadataTimeout = errors.New("timed out loading video metadata")

	// ErrNoVideoStream means the probe found no video stream.
	ErrNoVideoStream = errors.New("no video stream")
)

// PayloadTooLargeError is returned when the input exceeds the configured cap.
type PayloadTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("file too large (%sMB), maximum %dMB", e.SizeMB(), e.Limit/(1024*1024))
}

// SizeMB returns the size in MiB with one decimal.
func (e *PayloadTooLargeError) SizeMB() string {
	return fmt.Sprintf("%.1f", float64(e.Size)/(1024*1024))
}

// TierError wraps the failure of a single tier.
type TierError struct {
	Tier string
	Err  error
}

func (e *TierError) Error() string {
	return fmt.Sprintf("%s tier: %v", e.Tier, e.Err)
}

func (e *TierError) Unwrap() error {
	return e.Err
}

// Stage names a phase of a transcode.
type Stage string

// Transcode stages.
const (
	StageLoading     Stage = "loading"
	StageCompressing Stage = "compressing"
	StageFinalizing  Stage = "finalizing"
	StageComplete    Stage = "complete"
)

// Progress is one progress notification.
type Progress struct {
	Stage   Stage `json:"stage"`
	Percent int   `json:"percent"`
}

// ProgressFunc receives progress notifications. It may be nil.
type ProgressFunc func(Progress)

// Job is the input handed to each tier.
type Job struct {
	Blob    mediatypes.Blob
	TempDir string

	progress ProgressFunc
}

// Report forwards a progress notification.
func (j *Job) Report(stage Stage, percent int) {
	if j.progress != nil {
		j.progress(Progress{Stage: stage, Percent: percent})
	}
}

// Result is a transcoded (or passed through) payload.
type Result struct {
	Blob         mediatypes.Blob
	Digest       digest.Digest
	Tier         string
	OriginalSize int64
	Size         int64
}

// CompressionRatio returns the percentage of bytes saved with one decimal.
func (r *Result) CompressionRatio() string {
	if r.OriginalSize <= 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", (1-float64(r.Size)/float64(r.OriginalSize))*100)
}

// newResult builds a Result for data produced by tier from job's input.
func newResult(tier string, job *Job, data []byte, mimeType string) *Result {
	name := job.Blob.Name
	if ext := mediatypes.ExtensionFor(mimeType); ext != "" && name != "" {
		name = trimExt(name) + ext
	}
	return &Result{
		Blob:         mediatypes.Blob{Data: data, MIMEType: mimeType, Name: name},
		Digest:       digest.Sum(data),
		Tier:         tier,
		OriginalSize: job.Blob.Size(),
		Size:         int64(len(data)),
	}
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}

// Tier is one transcoding strategy. Any returned error makes the engine try
// the next tier.
type Tier interface {
	Name() string
	Attempt(ctx context.Context, job *Job) (*Result, error)
}

// Observer receives engine events. The metrics package provides the
// production implementation.
type Observer interface {
	ObserveStart()
	ObserveDone()
	ObserveTier(tier string, durationSeconds float64, err error)
	ObserveCompression(originalBytes, finalBytes int64)
}

// Config holds engine settings.
type Config struct {
	MaxInput    int64
	TempDir     string
	GPUAccel    GPUAccel
	Threads     int
	FFmpegPath  string
	FFprobePath string
	Runner      CommandRunner
	Observer    Observer
}

func (c Config) withDefaults() Config {
	if c.MaxInput <= 0 {
		c.MaxInput = DefaultMaxInput
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	if c.GPUAccel == "" {
		c.GPUAccel = GPUAccelAuto
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.FFprobePath == "" {
		c.FFprobePath = "ffprobe"
	}
	if c.Runner == nil {
		c.Runner = NewExecRunner()
	}
	return c
}

// Engine runs an ordered list of tiers until one succeeds.
type Engine struct {
	cfg   Config
	tiers []Tier
}

// DefaultTiers returns the production tier order: software, hardware,
// capture, then passthrough.
func DefaultTiers(cfg Config) []Tier {
	cfg = cfg.withDefaults()
	return []Tier{
		NewSoftwareTier(cfg),
		NewHardwareTier(cfg),
		NewCaptureTier(cfg),
		PassthroughTier{},
	}
}

// NewEngine creates an engine. With no tiers it uses DefaultTiers.
// A passthrough tier is appended when the list does not end with one.
func NewEngine(cfg Config, tiers ...Tier) *Engine {
	cfg = cfg.withDefaults()
	if len(tiers) == 0 {
		tiers = DefaultTiers(cfg)
	}
	if _, ok := tiers[len(tiers)-1].(PassthroughTier); !ok {
		tiers = append(tiers, PassthroughTier{})
	}
	return &Engine{cfg: cfg, tiers: tiers}
}

// MaxInput returns the size cap.
func (e *Engine) MaxInput() int64 {
	return e.cfg.MaxInput
}

// Tiers returns the tier names in order.
func (e *Engine) Tiers() []string {
	names := make([]string, 0, len(e.tiers))
	for _, t := range e.tiers {
		names = append(names, t.Name())
	}
	return names
}

// Transcode shrinks a video, falling back through the configured tiers.
// Precondition failures are returned before any tier runs. Once past the
// preconditions it always returns a result.
func (e *Engine) Transcode(ctx context.Context, blob mediatypes.Blob, progress ProgressFunc) (*Result, error) {
	if blob.Kind() != mediatypes.KindVideo {
		return nil, ErrNotVideo
	}
	if blob.Size() > e.cfg.MaxInput {
		return nil, &PayloadTooLargeError{Size: blob.Size(), Limit: e.cfg.MaxInput}
	}

	if e.cfg.Observer != nil {
		e.cfg.Observer.ObserveStart()
		defer e.cfg.Observer.ObserveDone()
	}

	job := &Job{
		Blob:     blob,
		TempDir:  e.cfg.TempDir,
		progress: monotonic(progress),
	}

	for _, tier := range e.tiers {
		start := time.Now()
		result, err := tier.Attempt(ctx, job)
		elapsed := time.Since(start)

		if e.cfg.Observer != nil {
			e.cfg.Observer.ObserveTier(tier.Name(), elapsed.Seconds(), err)
		}

		if err != nil {
			logging.Warn("%v", &TierError{Tier: tier.Name(), Err: err})
			continue
		}

		if e.cfg.Observer != nil {
			e.cfg.Observer.ObserveCompression(result.OriginalSize, result.Size)
		}
		job.Report(StageComplete, 100)

		logging.Info("Video transcode complete via %s: %.2fMB -> %.2fMB (%s%% saved, %s)",
			result.Tier,
			float64(result.OriginalSize)/(1024*1024),
			float64(result.Size)/(1024*1024),
			result.CompressionRatio(),
			result.Digest.Short())
		return result, nil
	}

	// Unreachable while the last tier is a passthrough.
	return passthrough(job), nil
}

// monotonic drops notifications that would move progress backwards.
func monotonic(fn ProgressFunc) ProgressFunc {
	if fn == nil {
		return nil
	}
	var mu sync.Mutex
	last := -1
	return func(p Progress) {
		mu.Lock()
		defer mu.Unlock()
		if p.Percent < last {
			return
		}
		last = p.Percent
		fn(p)
	}
}

// setupContext detaches one-time tier setup from the caller's cancellation.
// The result is cached for the process lifetime, so it must not depend on
// whether the first request was abandoned.
func setupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), setupTimeout)
}

// spillInput writes the job's bytes to a temp file and returns its path and
// a cleanup function that logs rather than returns failures.
func spillInput(job *Job) (string, func(), error) {
	ext := filepath.Ext(job.Blob.Name)
	if ext == "" {
		ext = mediatypes.ExtensionFor(job.Blob.ContentType())
	}
	if ext == "" {
		ext = ".mp4"
	}

	f, err := os.CreateTemp(job.TempDir, "mediadrop-in-*"+ext)
	if err != nil {
		return "", func() {}, fmt.Errorf("create temp input: %w", err)
	}
	path := f.Name()
	cleanup := func() { removeTemp(path) }

	if _, err := f.Write(job.Blob.Data); err != nil {
		_ = f.Close()
		cleanup()
		return "", func() {}, fmt.Errorf("write temp input: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("close temp input: %w", err)
	}
	return path, cleanup, nil
}

// tempOutput reserves a temp path with the given extension.
func tempOutput(dir, ext string) (string, func(), error) {
	f, err := os.CreateTemp(dir, "mediadrop-out-*"+ext)
	if err != nil {
		return "", func() {}, fmt.Errorf("create temp output: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		logging.Warn("failed to close temp output %s: %v", path, err)
	}
	return path, func() { removeTemp(path) }, nil
}

func removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove temp file %s: %v", path, err)
	}
}
