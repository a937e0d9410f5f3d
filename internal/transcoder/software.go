package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"mediadrop/internal/filesystem"
	"mediadrop/internal/logging"
	"mediadrop/internal/workers"
)

// Software encoder settings.
const (
	TargetHeight  = 720
	VideoBitrate  = "1M"
	AudioBitrate  = "96k"
	VP9CRF        = 32
	maxStderrTail = 2048
)

// SoftwareTier encodes with ffmpeg's libvpx-vp9 and libopus into WebM.
// The ffmpeg binary is located and checked once, on first use.
type SoftwareTier struct {
	runner  CommandRunner
	ffmpeg  string
	threads int

	initOnce sync.Once
	path     string
	initErr  error
}

// NewSoftwareTier creates the software tier.
func NewSoftwareTier(cfg Config) *SoftwareTier {
	cfg = cfg.withDefaults()
	threads := cfg.Threads
	if threads <= 0 {
		threads = workers.ForCPU(16)
	}
	return &SoftwareTier{runner: cfg.Runner, ffmpeg: cfg.FFmpegPath, threads: threads}
}

// Name implements Tier.
func (t *SoftwareTier) Name() string { return "software" }

func (t *SoftwareTier) init(ctx context.Context) error {
	t.initOnce.Do(func() {
		path, err := t.runner.LookPath(t.ffmpeg)
		if err != nil {
			t.initErr = fmt.Errorf("%w: ffmpeg not found: %v", ErrUnavailable, err)
			return
		}
		setupCtx, cancel := setupContext(ctx)
		defer cancel()

		var stderr bytes.Buffer
		if err := t.runner.Run(setupCtx, Command{Name: path, Args: []string{"-hide_banner", "-version"}, Stderr: &stderr}); err != nil {
			t.initErr = fmt.Errorf("%w: ffmpeg does not run: %v", ErrUnavailable, err)
			return
		}
		t.path = path
		logging.Debug("Software encoder ready: %s (%d threads)", path, t.threads)
	})
	return t.initErr
}

// Attempt implements Tier.
func (t *SoftwareTier) Attempt(ctx context.Context, job *Job) (*Result, error) {
	job.Report(StageLoading, 0)
	if err := t.init(ctx); err != nil {
		return nil, err
	}
	job.Report(StageCompressing, 10)

	data, err := encodeToFile(ctx, t.runner, t.path, job, ".webm", func(in, out string) []string {
		return []string{
			"-hide_banner", "-y",
			"-i", in,
			"-vf", fmt.Sprintf("scale=-2:%d", TargetHeight),
			"-c:v", "libvpx-vp9",
			"-b:v", VideoBitrate,
			"-crf", strconv.Itoa(VP9CRF),
			"-c:a", "libopus",
			"-b:a", AudioBitrate,
			"-threads", strconv.Itoa(t.threads),
			"-f", "webm",
			out,
		}
	})
	if err != nil {
		return nil, err
	}

	job.Report(StageFinalizing, 90)
	return newResult(t.Name(), job, data, "video/webm"), nil
}

// encodeToFile spills the job input, runs ffmpeg with the arguments built for
// the input and output paths, and returns the output bytes. Temp files are
// removed on every path.
func encodeToFile(ctx context.Context, runner CommandRunner, ffmpeg string, job *Job, ext string, build func(in, out string) []string) ([]byte, error) {
	in, cleanupIn, err := spillInput(job)
	if err != nil {
		return nil, err
	}
	defer cleanupIn()

	out, cleanupOut, err := tempOutput(job.TempDir, ext)
	if err != nil {
		return nil, err
	}
	defer cleanupOut()

	var stderr bytes.Buffer
	cmd := Command{Name: ffmpeg, Args: build(in, out), Stderr: &stderr}
	logging.Debug("Running %s", cmd)

	if err := runner.Run(ctx, cmd); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg: %w - %s", err, tail(stderr.String()))
	}

	data, err := filesystem.ReadFileWithRetry(out, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, fmt.Errorf("read encoder output: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("encoder produced no output")
	}
	return data, nil
}

func tail(s string) string {
	if len(s) <= maxStderrTail {
		return s
	}
	return s[len(s)-maxStderrTail:]
}
