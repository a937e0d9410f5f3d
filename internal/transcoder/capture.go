package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mediadrop/internal/logging"
)

// Capture settings.
const (
	chunkInterval    = 100 * time.Millisecond
	progressInterval = 500 * time.Millisecond
)

// captureFormat is a container/codec combination for real-time capture.
type captureFormat struct {
	MIMEType   string
	VideoCodec string
	AudioCodec string
}

var (
	formatVP9Opus = captureFormat{"video/webm;codecs=vp9,opus", "libvpx-vp9", "libopus"}
	formatVP8Opus = captureFormat{"video/webm;codecs=vp8,opus", "libvpx", "libopus"}
	formatWebM    = captureFormat{MIMEType: "video/webm"}
)

// pickCaptureFormat returns the richest supported combination.
func pickCaptureFormat(encoders map[string]bool) captureFormat {
	for _, f := range []captureFormat{formatVP9Opus, formatVP8Opus} {
		if encoders[f.VideoCodec] && encoders[f.AudioCodec] {
			return f
		}
	}
	return formatWebM
}

// CaptureTier re-records the video while playing it back in real time,
// collecting the muxed WebM stream in chunks. It is the slowest tier and
// works with whatever encoders the local ffmpeg build has.
type CaptureTier struct {
	runner  CommandRunner
	ffmpeg  string
	ffprobe string

	chunkEvery    time.Duration
	progressEvery time.Duration
}

// NewCaptureTier creates the capture tier.
func NewCaptureTier(cfg Config) *CaptureTier {
	cfg = cfg.withDefaults()
	return &CaptureTier{
		runner:        cfg.Runner,
		ffmpeg:        cfg.FFmpegPath,
		ffprobe:       cfg.FFprobePath,
		chunkEvery:    chunkInterval,
		progressEvery: progressInterval,
	}
}

// Name implements Tier.
func (t *CaptureTier) Name() string { return "capture" }

// Attempt implements Tier.
func (t *CaptureTier) Attempt(ctx context.Context, job *Job) (*Result, error) {
	job.Report(StageLoading, 0)

	ffmpeg, err := t.runner.LookPath(t.ffmpeg)
	if err != nil {
		return nil, fmt.Errorf("%w: capture source: %v", ErrUnavailable, err)
	}
	ffprobe, err := t.runner.LookPath(t.ffprobe)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata reader: %v", ErrUnavailable, err)
	}

	in, cleanup, err := spillInput(job)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	info, err := Probe(ctx, t.runner, ffprobe, in)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}

	encoders, err := listEncoders(ctx, t.runner, ffmpeg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	format := pickCaptureFormat(encoders)
	logging.Debug("Capturing %.1fs of video as %s", info.Duration, format.MIMEType)

	job.Report(StageCompressing, 10)

	collector := &chunkCollector{}
	var stderr bytes.Buffer

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		collector.run(done, t.chunkEvery)
	}()
	go func() {
		defer wg.Done()
		t.reportProgress(done, job, info.Duration)
	}()

	runErr := t.runner.Run(ctx, Command{
		Name:   ffmpeg,
		Args:   captureArgs(in, format),
		Stdout: collector,
		Stderr: &stderr,
	})

	// Playback ended; stop the samplers and take the final chunk.
	close(done)
	wg.Wait()
	collector.flush()

	if runErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("record: %w - %s", runErr, tail(stderr.String()))
	}

	data := collector.assemble()
	if len(data) == 0 {
		return nil, errors.New("recorder produced no data")
	}

	job.Report(StageFinalizing, 95)
	logging.Debug("Capture collected %d chunks (%d bytes)", collector.count(), len(data))

	return newResult(t.Name(), job, data, format.MIMEType), nil
}

// reportProgress maps elapsed playback time onto 10..90 until done closes.
func (t *CaptureTier) reportProgress(done <-chan struct{}, job *Job, duration float64) {
	start := time.Now()
	ticker := time.NewTicker(t.progressEvery)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			job.Report(StageCompressing, capturePercent(time.Since(start), duration))
		}
	}
}

// capturePercent returns min(90, 10 + elapsed/duration*80).
func capturePercent(elapsed time.Duration, duration float64) int {
	if duration <= 0 {
		return 10
	}
	p := 10 + elapsed.Seconds()/duration*80
	if p > 90 {
		p = 90
	}
	return int(p + 0.5)
}

func captureArgs(in string, f captureFormat) []string {
	args := []string{"-hide_banner", "-re", "-i", in}
	if f.VideoCodec != "" {
		args = append(args, "-c:v", f.VideoCodec, "-b:v", VideoBitrate)
	}
	if f.AudioCodec != "" {
		args = append(args, "-c:a", f.AudioCodec, "-b:a", AudioBitrate)
	}
	return append(args, "-f", "webm", "pipe:1")
}

// chunkCollector buffers a live stream and cuts it into chunks on a timer.
type chunkCollector struct {
	mu      sync.Mutex
	pending bytes.Buffer
	chunks  [][]byte
}

func (c *chunkCollector) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Write(p)
}

func (c *chunkCollector) run(done <-chan struct{}, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.flush()
		}
	}
}

// flush moves buffered bytes into a new chunk. Empty intervals add nothing.
func (c *chunkCollector) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending.Len() == 0 {
		return
	}
	chunk := make([]byte, c.pending.Len())
	copy(chunk, c.pending.Bytes())
	c.pending.Reset()
	c.chunks = append(c.chunks, chunk)
}

func (c *chunkCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.chunks)
}

func (c *chunkCollector) assemble() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Join(c.chunks, nil)
}
