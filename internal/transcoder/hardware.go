package transcoder

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"mediadrop/internal/logging"
)

// GPUAccel selects the hardware acceleration backend.
type GPUAccel string

// GPU acceleration modes.
const (
	GPUAccelAuto         GPUAccel = "auto"
	GPUAccelNVIDIA       GPUAccel = "nvidia"
	GPUAccelVAAPI        GPUAccel = "vaapi"
	GPUAccelVideoToolbox GPUAccel = "videotoolbox"
	GPUAccelNone         GPUAccel = "none"
)

// ParseGPUAccel validates a mode name. Unknown names map to auto.
func ParseGPUAccel(s string) GPUAccel {
	switch GPUAccel(strings.ToLower(strings.TrimSpace(s))) {
	case GPUAccelNVIDIA:
		return GPUAccelNVIDIA
	case GPUAccelVAAPI:
		return GPUAccelVAAPI
	case GPUAccelVideoToolbox:
		return GPUAccelVideoToolbox
	case GPUAccelNone:
		return GPUAccelNone
	default:
		return GPUAccelAuto
	}
}

var gpuEncoders = map[GPUAccel]string{
	GPUAccelNVIDIA:       "h264_nvenc",
	GPUAccelVAAPI:        "h264_vaapi",
	GPUAccelVideoToolbox: "h264_videotoolbox",
}

const defaultVAAPIDevice = "/dev/dri/renderD128"

// HardwareTier decodes and encodes on the GPU into H.264 MP4.
type HardwareTier struct {
	runner       CommandRunner
	ffmpeg       string
	mode         GPUAccel
	vaapiDevice  string
	goos         string
	deviceExists func(string) bool

	detectOnce sync.Once
	path       string
	accel      GPUAccel
	encoder    string
	detectErr  error
}

// NewHardwareTier creates the hardware tier. Detection runs on first use.
func NewHardwareTier(cfg Config) *HardwareTier {
	cfg = cfg.withDefaults()
	return &HardwareTier{
		runner:       cfg.Runner,
		ffmpeg:       cfg.FFmpegPath,
		mode:         cfg.GPUAccel,
		vaapiDevice:  defaultVAAPIDevice,
		goos:         runtime.GOOS,
		deviceExists: fileExists,
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Name implements Tier.
func (t *HardwareTier) Name() string { return "hardware" }

// Accel returns the detected backend, or GPUAccelNone.
func (t *HardwareTier) Accel(ctx context.Context) GPUAccel {
	if err := t.detect(ctx); err != nil {
		return GPUAccelNone
	}
	return t.accel
}

func (t *HardwareTier) detect(ctx context.Context) error {
	t.detectOnce.Do(func() {
		if t.mode == GPUAccelNone {
			t.detectErr = fmt.Errorf("%w: GPU acceleration disabled", ErrUnavailable)
			return
		}

		path, err := t.runner.LookPath(t.ffmpeg)
		if err != nil {
			t.detectErr = fmt.Errorf("%w: ffmpeg not found: %v", ErrUnavailable, err)
			return
		}
		t.path = path

		setupCtx, cancel := setupContext(ctx)
		defer cancel()

		encoders, err := listEncoders(setupCtx, t.runner, path)
		if err != nil {
			t.detectErr = fmt.Errorf("%w: %v", ErrUnavailable, err)
			return
		}

		candidates := []GPUAccel{t.mode}
		if t.mode == GPUAccelAuto {
			candidates = []GPUAccel{GPUAccelNVIDIA, GPUAccelVAAPI, GPUAccelVideoToolbox}
		}

		for _, accel := range candidates {
			if t.usable(accel, encoders) {
				t.accel = accel
				t.encoder = gpuEncoders[accel]
				logging.Info("GPU acceleration: %s (%s)", accel, t.encoder)
				return
			}
		}
		t.detectErr = fmt.Errorf("%w: no GPU encoder for mode %s", ErrUnavailable, t.mode)
	})
	return t.detectErr
}

func (t *HardwareTier) usable(accel GPUAccel, encoders map[string]bool) bool {
	encoder, ok := gpuEncoders[accel]
	if !ok || !encoders[encoder] {
		return false
	}
	switch accel {
	case GPUAccelVAAPI:
		return t.deviceExists(t.vaapiDevice)
	case GPUAccelVideoToolbox:
		return t.goos == "darwin"
	}
	return true
}

// Attempt implements Tier.
func (t *HardwareTier) Attempt(ctx context.Context, job *Job) (*Result, error) {
	if err := t.detect(ctx); err != nil {
		return nil, err
	}
	job.Report(StageCompressing, 10)

	data, err := encodeToFile(ctx, t.runner, t.path, job, ".mp4", t.args)
	if err != nil {
		return nil, err
	}

	job.Report(StageFinalizing, 90)
	return newResult(t.Name(), job, data, "video/mp4"), nil
}

func (t *HardwareTier) args(in, out string) []string {
	args := []string{"-hide_banner", "-y"}
	scale := fmt.Sprintf("scale=-2:%d", TargetHeight)

	switch t.accel {
	case GPUAccelNVIDIA:
		args = append(args, "-hwaccel", "cuda", "-i", in, "-vf", scale)
	case GPUAccelVAAPI:
		args = append(args,
			"-vaapi_device", t.vaapiDevice,
			"-i", in,
			"-vf", fmt.Sprintf("format=nv12,hwupload,scale_vaapi=w=-2:h=%d", TargetHeight))
	case GPUAccelVideoToolbox:
		args = append(args, "-hwaccel", "videotoolbox", "-i", in, "-vf", scale)
	}

	return append(args,
		"-c:v", t.encoder,
		"-b:v", VideoBitrate,
		"-c:a", "aac",
		"-b:a", AudioBitrate,
		"-movflags", "+faststart",
		"-f", "mp4",
		out,
	)
}

// listEncoders parses `ffmpeg -encoders` into a set of encoder names.
func listEncoders(ctx context.Context, runner CommandRunner, ffmpeg string) (map[string]bool, error) {
	var stdout, stderr bytes.Buffer
	err := runner.Run(ctx, Command{
		Name:   ffmpeg,
		Args:   []string{"-hide_banner", "-encoders"},
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("list encoders: %w - %s", err, tail(stderr.String()))
	}

	encoders := make(map[string]bool)
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		// Lines look like " V....D libvpx-vp9  libvpx VP9"
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		encoders[fields[1]] = true
	}
	return encoders, scanner.Err()
}
