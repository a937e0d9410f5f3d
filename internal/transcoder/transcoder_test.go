package transcoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"mediadrop/internal/digest"
	"mediadrop/internal/mediatypes"
)

// =============================================================================
// Test helpers
// =============================================================================

// fakeRunner records commands and lets each test decide their effect.
type fakeRunner struct {
	mu      sync.Mutex
	missing map[string]bool
	lookups []string
	calls   []Command
	handle  func(cmd Command) error

	// honorCtx makes Run fail with the context error once ctx is done.
	honorCtx bool
}

func (r *fakeRunner) LookPath(file string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups = append(r.lookups, file)
	if r.missing[file] {
		return "", exec.ErrNotFound
	}
	return "/usr/bin/" + file, nil
}

func (r *fakeRunner) Run(ctx context.Context, cmd Command) error {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	handle := r.handle
	honorCtx := r.honorCtx
	r.mu.Unlock()
	if honorCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	if handle == nil {
		return nil
	}
	return handle(cmd)
}

func (r *fakeRunner) commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.calls...)
}

const encoderListing = `Encoders:
 V..... = Video
 ------
 V....D libvpx-vp9           libvpx VP9 (codec vp9)
 V....D libvpx               libvpx VP8 (codec vp8)
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder (codec h264)
 A....D libopus              libopus Opus (codec opus)
`

const probeJSON = `{
  "streams": [
    {"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080},
    {"codec_type": "audio", "codec_name": "aac"}
  ],
  "format": {"duration": "12.500000"}
}`

func hasArg(args []string, key, value string) bool {
	i := slices.Index(args, key)
	return i >= 0 && i+1 < len(args) && args[i+1] == value
}

// encodeHandler writes out to the last argument of encode commands and answers
// the informational invocations.
func encodeHandler(out []byte) func(Command) error {
	return func(cmd Command) error {
		switch {
		case slices.Contains(cmd.Args, "-version"):
			return nil
		case slices.Contains(cmd.Args, "-encoders"):
			_, err := io.WriteString(cmd.Stdout, encoderListing)
			return err
		case strings.HasSuffix(cmd.Name, "ffprobe"):
			_, err := io.WriteString(cmd.Stdout, probeJSON)
			return err
		}
		return os.WriteFile(cmd.Args[len(cmd.Args)-1], out, 0o600)
	}
}

func videoBlob(size int) mediatypes.Blob {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return mediatypes.Blob{Data: data, MIMEType: "video/mp4", Name: "clip.mp4"}
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Temp files left behind: %v", names)
	}
}

type stubTier struct {
	name    string
	err     error
	percent int
	calls   int
	data    []byte
}

func (s *stubTier) Name() string { return s.name }

func (s *stubTier) Attempt(_ context.Context, job *Job) (*Result, error) {
	s.calls++
	if s.percent > 0 {
		job.Report(StageCompressing, s.percent)
	}
	if s.err != nil {
		return nil, s.err
	}
	return newResult(s.name, job, s.data, "video/webm"), nil
}

type recordingObserver struct {
	mu          sync.Mutex
	tiers       []string
	errs        []error
	started     int
	done        int
	compression int
}

func (o *recordingObserver) ObserveStart() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *recordingObserver) ObserveDone() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.done++
}

func (o *recordingObserver) ObserveCompression(_, _ int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.compression++
}

func (o *recordingObserver) ObserveTier(tier string, _ float64, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tiers = append(o.tiers, tier)
	o.errs = append(o.errs, err)
}

// =============================================================================
// Engine Tests
// =============================================================================

func TestTranscodeRejectsNonVideo(t *testing.T) {
	t.Parallel()

	tier := &stubTier{name: "software"}
	e := NewEngine(Config{TempDir: t.TempDir()}, tier)

	_, err := e.Transcode(context.Background(), mediatypes.Blob{Data: []byte("x"), MIMEType: "image/png"}, nil)
	if !errors.Is(err, ErrNotVideo) {
		t.Fatalf("Expected ErrNotVideo, got %v", err)
	}
	if tier.calls != 0 {
		t.Errorf("No tier should run, got %d calls", tier.calls)
	}
}

func TestTranscodeRejectsOversizedInput(t *testing.T) {
	t.Parallel()

	tier := &stubTier{name: "software"}
	runner := &fakeRunner{}
	e := NewEngine(Config{TempDir: t.TempDir(), Runner: runner}, tier)

	_, err := e.Transcode(context.Background(), videoBlob(35*1024*1024), nil)

	var tooLarge *PayloadTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("Expected *PayloadTooLargeError, got %v", err)
	}
	if tooLarge.SizeMB() != "35.0" {
		t.Errorf("SizeMB() = %q, want 35.0", tooLarge.SizeMB())
	}
	if !strings.Contains(err.Error(), "35.0MB") {
		t.Errorf("Error() = %q", err.Error())
	}
	if tier.calls != 0 || len(runner.commands()) != 0 {
		t.Errorf("No work should start: tier=%d commands=%d", tier.calls, len(runner.commands()))
	}
}

func TestTranscodeAcceptsExactlyMaxInput(t *testing.T) {
	t.Parallel()

	tier := &stubTier{name: "software", data: []byte("small")}
	e := NewEngine(Config{TempDir: t.TempDir(), MaxInput: 1024}, tier)

	if _, err := e.Transcode(context.Background(), videoBlob(1024), nil); err != nil {
		t.Fatalf("Input at the cap should be accepted: %v", err)
	}
}

func TestTranscodeAllTiersUnavailable(t *testing.T) {
	t.Parallel()

	software := &stubTier{name: "software", err: ErrUnavailable}
	hardware := &stubTier{name: "hardware", err: ErrUnavailable}
	capture := &stubTier{name: "capture", err: errors.New("capture source unavailable")}

	obs := &recordingObserver{}
	e := NewEngine(Config{TempDir: t.TempDir(), Observer: obs}, software, hardware, capture)
	blob := videoBlob(4096)

	result, err := e.Transcode(context.Background(), blob, nil)
	if err != nil {
		t.Fatalf("Transcode should not fail: %v", err)
	}
	if result.Tier != "passthrough" {
		t.Errorf("Tier = %s, want passthrough", result.Tier)
	}
	if string(result.Blob.Data) != string(blob.Data) {
		t.Error("Passthrough must return the original bytes")
	}
	if result.Digest != digest.Sum(blob.Data) {
		t.Error("Digest must be computed from the original bytes")
	}
	if result.Blob.MIMEType != "video/mp4" {
		t.Errorf("MIME type = %s, want original", result.Blob.MIMEType)
	}
	if result.CompressionRatio() != "0.0" {
		t.Errorf("CompressionRatio = %s", result.CompressionRatio())
	}

	want := []string{"software", "hardware", "capture", "passthrough"}
	if !slices.Equal(obs.tiers, want) {
		t.Errorf("Observed tiers %v, want %v", obs.tiers, want)
	}
	if obs.started != 1 || obs.done != 1 || obs.compression != 1 {
		t.Errorf("observer start=%d done=%d compression=%d", obs.started, obs.done, obs.compression)
	}
}

func TestTranscodeMetadataFailureFallsThrough(t *testing.T) {
	t.Parallel()

	for _, capErr := range []error{ErrMetadataTimeout, ErrNoVideoStream} {
		capture := &stubTier{name: "capture", err: capErr}
		e := NewEngine(Config{TempDir: t.TempDir()}, capture)

		result, err := e.Transcode(context.Background(), videoBlob(256), nil)
		if err != nil {
			t.Fatalf("%v: Transcode should fall through, got %v", capErr, err)
		}
		if result.Tier != "passthrough" {
			t.Errorf("%v: Tier = %s, want passthrough", capErr, result.Tier)
		}
	}
}

func TestTranscodeStopsAtFirstSuccess(t *testing.T) {
	t.Parallel()

	software := &stubTier{name: "software", err: errors.New("boom")}
	hardware := &stubTier{name: "hardware", data: []byte("hw-output")}
	capture := &stubTier{name: "capture", data: []byte("capture-output")}

	e := NewEngine(Config{TempDir: t.TempDir()}, software, hardware, capture)

	result, err := e.Transcode(context.Background(), videoBlob(4096), nil)
	if err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}
	if result.Tier != "hardware" {
		t.Errorf("Tier = %s, want hardware", result.Tier)
	}
	if capture.calls != 0 {
		t.Error("Later tiers should not run after a success")
	}
	if result.Digest != digest.Sum([]byte("hw-output")) {
		t.Error("Digest should be of the tier output")
	}
	if result.OriginalSize != 4096 || result.Size != int64(len("hw-output")) {
		t.Errorf("sizes = %d/%d", result.OriginalSize, result.Size)
	}
	if result.Blob.Name != "clip.webm" {
		t.Errorf("Name = %q, want clip.webm", result.Blob.Name)
	}
}

func TestTranscodeProgressIsMonotonic(t *testing.T) {
	t.Parallel()

	software := &stubTier{name: "software", percent: 50, err: errors.New("died halfway")}
	capture := &stubTier{name: "capture", percent: 30, data: []byte("out")}

	e := NewEngine(Config{TempDir: t.TempDir()}, software, capture)

	var seen []int
	_, err := e.Transcode(context.Background(), videoBlob(100), func(p Progress) {
		seen = append(seen, p.Percent)
	})
	if err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}

	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("Progress went backwards: %v", seen)
		}
	}
	if len(seen) == 0 || seen[len(seen)-1] != 100 {
		t.Errorf("Progress should end at 100: %v", seen)
	}
}

func TestNewEngineAppendsPassthrough(t *testing.T) {
	t.Parallel()

	e := NewEngine(Config{}, &stubTier{name: "software"})
	if got := e.Tiers(); !slices.Equal(got, []string{"software", "passthrough"}) {
		t.Errorf("Tiers = %v", got)
	}

	e = NewEngine(Config{}, &stubTier{name: "software"}, PassthroughTier{})
	if got := e.Tiers(); len(got) != 2 {
		t.Errorf("Passthrough should not be duplicated: %v", got)
	}
}

func TestDefaultTiersOrder(t *testing.T) {
	t.Parallel()

	e := NewEngine(Config{Runner: &fakeRunner{}})
	want := []string{"software", "hardware", "capture", "passthrough"}
	if got := e.Tiers(); !slices.Equal(got, want) {
		t.Errorf("Tiers = %v, want %v", got, want)
	}
	if e.MaxInput() != DefaultMaxInput {
		t.Errorf("MaxInput = %d", e.MaxInput())
	}
}

func TestPayloadTooLargeErrorSizeMB(t *testing.T) {
	t.Parallel()

	tests := []struct {
		size int64
		want string
	}{
		{35 * 1024 * 1024, "35.0"},
		{30*1024*1024 + 1, "30.0"},
		{31*1024*1024 + 512*1024, "31.5"},
	}

	for _, tt := range tests {
		e := &PayloadTooLargeError{Size: tt.size, Limit: DefaultMaxInput}
		if got := e.SizeMB(); got != tt.want {
			t.Errorf("SizeMB(%d) = %s, want %s", tt.size, got, tt.want)
		}
	}
}

func TestTierErrorUnwrap(t *testing.T) {
	t.Parallel()

	err := &TierError{Tier: "hardware", Err: ErrUnavailable}
	if !errors.Is(err, ErrUnavailable) {
		t.Error("TierError should unwrap")
	}
	if !strings.HasPrefix(err.Error(), "hardware tier:") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestCompressionRatio(t *testing.T) {
	t.Parallel()

	r := &Result{OriginalSize: 1000, Size: 250}
	if r.CompressionRatio() != "75.0" {
		t.Errorf("CompressionRatio = %s", r.CompressionRatio())
	}
	if (&Result{}).CompressionRatio() != "0.0" {
		t.Error("Zero original size should give 0.0")
	}
}

// =============================================================================
// Software Tier Tests
// =============================================================================

func TestSoftwareTierEncodes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runner := &fakeRunner{handle: encodeHandler([]byte("vp9-webm-bytes"))}
	tier := NewSoftwareTier(Config{Runner: runner, Threads: 3})

	job := &Job{Blob: videoBlob(2048), TempDir: dir}
	result, err := tier.Attempt(context.Background(), job)
	if err != nil {
		t.Fatalf("Attempt failed: %v", err)
	}
	if string(result.Blob.Data) != "vp9-webm-bytes" {
		t.Errorf("Data = %q", result.Blob.Data)
	}
	if result.Blob.MIMEType != "video/webm" {
		t.Errorf("MIME = %s", result.Blob.MIMEType)
	}

	cmds := runner.commands()
	encode := cmds[len(cmds)-1]
	checks := [][2]string{
		{"-c:v", "libvpx-vp9"},
		{"-b:v", "1M"},
		{"-crf", "32"},
		{"-c:a", "libopus"},
		{"-b:a", "96k"},
		{"-vf", "scale=-2:720"},
		{"-threads", "3"},
		{"-f", "webm"},
	}
	for _, c := range checks {
		if !hasArg(encode.Args, c[0], c[1]) {
			t.Errorf("Missing %s %s in %v", c[0], c[1], encode.Args)
		}
	}

	assertDirEmpty(t, dir)
}

func TestSoftwareTierInitializesOnce(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{handle: encodeHandler([]byte("out"))}
	tier := NewSoftwareTier(Config{Runner: runner})

	for i := 0; i < 3; i++ {
		job := &Job{Blob: videoBlob(64), TempDir: t.TempDir()}
		if _, err := tier.Attempt(context.Background(), job); err != nil {
			t.Fatalf("Attempt %d failed: %v", i, err)
		}
	}

	versionChecks := 0
	for _, c := range runner.commands() {
		if slices.Contains(c.Args, "-version") {
			versionChecks++
		}
	}
	if versionChecks != 1 || len(runner.lookups) != 1 {
		t.Errorf("init should run once: version checks=%d lookups=%d", versionChecks, len(runner.lookups))
	}
}

func TestSoftwareTierSetupIgnoresCanceledCaller(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{handle: encodeHandler([]byte("out")), honorCtx: true}
	tier := NewSoftwareTier(Config{Runner: runner})

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tier.Attempt(canceled, &Job{Blob: videoBlob(64), TempDir: t.TempDir()}); err == nil {
		t.Fatal("Attempt with a canceled context should fail")
	} else if errors.Is(err, ErrUnavailable) {
		t.Fatalf("canceled caller should not mark the tier unavailable: %v", err)
	}

	if _, err := tier.Attempt(context.Background(), &Job{Blob: videoBlob(64), TempDir: t.TempDir()}); err != nil {
		t.Fatalf("later Attempt failed: %v", err)
	}
}

func TestSoftwareTierMissingFFmpeg(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{missing: map[string]bool{"ffmpeg": true}}
	tier := NewSoftwareTier(Config{Runner: runner})

	_, err := tier.Attempt(context.Background(), &Job{Blob: videoBlob(64), TempDir: t.TempDir()})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
	if len(runner.commands()) != 0 {
		t.Error("Nothing should run without ffmpeg")
	}
}

func TestSoftwareTierEncodeFailureCleansUp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runner := &fakeRunner{handle: func(cmd Command) error {
		if slices.Contains(cmd.Args, "-version") {
			return nil
		}
		_, _ = io.WriteString(cmd.Stderr, "Unknown encoder 'libvpx-vp9'")
		return errors.New("exit status 1")
	}}
	tier := NewSoftwareTier(Config{Runner: runner})

	_, err := tier.Attempt(context.Background(), &Job{Blob: videoBlob(256), TempDir: dir})
	if err == nil || !strings.Contains(err.Error(), "Unknown encoder") {
		t.Errorf("Expected encoder error with stderr, got %v", err)
	}
	assertDirEmpty(t, dir)
}

func TestSoftwareTierEmptyOutput(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{handle: encodeHandler(nil)}
	tier := NewSoftwareTier(Config{Runner: runner})

	if _, err := tier.Attempt(context.Background(), &Job{Blob: videoBlob(64), TempDir: t.TempDir()}); err == nil {
		t.Error("Empty encoder output should fail the tier")
	}
}

// =============================================================================
// Hardware Tier Tests
// =============================================================================

func TestParseGPUAccel(t *testing.T) {
	t.Parallel()

	tests := map[string]GPUAccel{
		"nvidia":       GPUAccelNVIDIA,
		" VAAPI ":      GPUAccelVAAPI,
		"videotoolbox": GPUAccelVideoToolbox,
		"none":         GPUAccelNone,
		"auto":         GPUAccelAuto,
		"":             GPUAccelAuto,
		"quantum":      GPUAccelAuto,
	}
	for in, want := range tests {
		if got := ParseGPUAccel(in); got != want {
			t.Errorf("ParseGPUAccel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestHardwareTierDisabled(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	tier := NewHardwareTier(Config{Runner: runner, GPUAccel: GPUAccelNone})

	_, err := tier.Attempt(context.Background(), &Job{Blob: videoBlob(64), TempDir: t.TempDir()})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
	if len(runner.commands()) != 0 || len(runner.lookups) != 0 {
		t.Error("Detection should be skipped entirely when disabled")
	}
}

func TestHardwareTierAutoDetectsNVIDIA(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runner := &fakeRunner{handle: encodeHandler([]byte("h264-mp4"))}
	tier := NewHardwareTier(Config{Runner: runner, GPUAccel: GPUAccelAuto})

	if accel := tier.Accel(context.Background()); accel != GPUAccelNVIDIA {
		t.Fatalf("Accel = %s, want nvidia", accel)
	}

	result, err := tier.Attempt(context.Background(), &Job{Blob: videoBlob(512), TempDir: dir})
	if err != nil {
		t.Fatalf("Attempt failed: %v", err)
	}
	if result.Blob.MIMEType != "video/mp4" {
		t.Errorf("MIME = %s", result.Blob.MIMEType)
	}

	cmds := runner.commands()
	encode := cmds[len(cmds)-1]
	if !hasArg(encode.Args, "-hwaccel", "cuda") || !hasArg(encode.Args, "-c:v", "h264_nvenc") {
		t.Errorf("Unexpected hardware args: %v", encode.Args)
	}
	assertDirEmpty(t, dir)
}

func TestHardwareTierDetectIgnoresCanceledCaller(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{handle: encodeHandler([]byte("h264-mp4")), honorCtx: true}
	tier := NewHardwareTier(Config{Runner: runner, GPUAccel: GPUAccelAuto})

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if accel := tier.Accel(canceled); accel != GPUAccelNVIDIA {
		t.Fatalf("Accel with canceled caller = %s, want nvidia", accel)
	}
	if _, err := tier.Attempt(context.Background(), &Job{Blob: videoBlob(64), TempDir: t.TempDir()}); err != nil {
		t.Fatalf("Attempt failed: %v", err)
	}
}

func TestHardwareTierVAAPIRequiresDevice(t *testing.T) {
	t.Parallel()

	listing := strings.Replace(encoderListing, "h264_nvenc", "h264_vaapi", 1)
	runner := &fakeRunner{handle: func(cmd Command) error {
		_, err := io.WriteString(cmd.Stdout, listing)
		return err
	}}

	tier := NewHardwareTier(Config{Runner: runner, GPUAccel: GPUAccelVAAPI})
	tier.deviceExists = func(string) bool { return false }

	if accel := tier.Accel(context.Background()); accel != GPUAccelNone {
		t.Errorf("Accel = %s, want none without a render device", accel)
	}

	withDevice := NewHardwareTier(Config{Runner: runner, GPUAccel: GPUAccelVAAPI})
	withDevice.deviceExists = func(string) bool { return true }
	if accel := withDevice.Accel(context.Background()); accel != GPUAccelVAAPI {
		t.Errorf("Accel = %s, want vaapi", accel)
	}
	args := withDevice.args("in.mp4", "out.mp4")
	if !hasArg(args, "-vaapi_device", defaultVAAPIDevice) || !hasArg(args, "-c:v", "h264_vaapi") {
		t.Errorf("Unexpected vaapi args: %v", args)
	}
}

func TestHardwareTierVideoToolboxRequiresDarwin(t *testing.T) {
	t.Parallel()

	listing := strings.Replace(encoderListing, "h264_nvenc", "h264_videotoolbox", 1)
	runner := &fakeRunner{handle: func(cmd Command) error {
		_, err := io.WriteString(cmd.Stdout, listing)
		return err
	}}

	linux := NewHardwareTier(Config{Runner: runner, GPUAccel: GPUAccelVideoToolbox})
	linux.goos = "linux"
	if accel := linux.Accel(context.Background()); accel != GPUAccelNone {
		t.Errorf("Accel = %s, want none on linux", accel)
	}

	darwin := NewHardwareTier(Config{Runner: runner, GPUAccel: GPUAccelVideoToolbox})
	darwin.goos = "darwin"
	if accel := darwin.Accel(context.Background()); accel != GPUAccelVideoToolbox {
		t.Errorf("Accel = %s, want videotoolbox", accel)
	}
}

func TestListEncoders(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{handle: func(cmd Command) error {
		_, err := io.WriteString(cmd.Stdout, encoderListing)
		return err
	}}

	encoders, err := listEncoders(context.Background(), runner, "ffmpeg")
	if err != nil {
		t.Fatalf("listEncoders failed: %v", err)
	}
	for _, name := range []string{"libvpx-vp9", "libvpx", "h264_nvenc", "libopus"} {
		if !encoders[name] {
			t.Errorf("Missing encoder %s", name)
		}
	}
	if encoders["="] || encoders["Video"] {
		t.Error("Header lines should not be parsed as encoders")
	}
}

// =============================================================================
// Capture Tier Tests
// =============================================================================

func TestPickCaptureFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		encoders map[string]bool
		want     string
	}{
		{"vp9 and opus", map[string]bool{"libvpx-vp9": true, "libvpx": true, "libopus": true}, "video/webm;codecs=vp9,opus"},
		{"vp8 and opus", map[string]bool{"libvpx": true, "libopus": true}, "video/webm;codecs=vp8,opus"},
		{"vp9 without opus", map[string]bool{"libvpx-vp9": true}, "video/webm"},
		{"nothing", map[string]bool{}, "video/webm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pickCaptureFormat(tt.encoders).MIMEType; got != tt.want {
				t.Errorf("pickCaptureFormat = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCapturePercent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		elapsed  time.Duration
		duration float64
		want     int
	}{
		{0, 10, 10},
		{5 * time.Second, 10, 50},
		{10 * time.Second, 10, 90},
		{30 * time.Second, 10, 90},
		{5 * time.Second, 0, 10},
	}

	for _, tt := range tests {
		if got := capturePercent(tt.elapsed, tt.duration); got != tt.want {
			t.Errorf("capturePercent(%v, %v) = %d, want %d", tt.elapsed, tt.duration, got, tt.want)
		}
	}
}

func TestCaptureArgs(t *testing.T) {
	t.Parallel()

	args := captureArgs("in.mp4", formatVP9Opus)
	if !slices.Contains(args, "-re") {
		t.Error("Capture must read at native rate")
	}
	if !hasArg(args, "-c:v", "libvpx-vp9") || !hasArg(args, "-c:a", "libopus") {
		t.Errorf("Unexpected codecs: %v", args)
	}
	if args[len(args)-1] != "pipe:1" {
		t.Errorf("Output should be stdout, got %s", args[len(args)-1])
	}

	generic := captureArgs("in.mp4", formatWebM)
	if slices.Contains(generic, "-c:v") {
		t.Errorf("Generic capture should not force codecs: %v", generic)
	}
}

func TestCaptureTierRecords(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	parts := []string{"EBML", "-cluster-1", "-cluster-2"}

	runner := &fakeRunner{handle: func(cmd Command) error {
		switch {
		case strings.HasSuffix(cmd.Name, "ffprobe"):
			_, err := io.WriteString(cmd.Stdout, probeJSON)
			return err
		case slices.Contains(cmd.Args, "-encoders"):
			_, err := io.WriteString(cmd.Stdout, encoderListing)
			return err
		}
		for _, p := range parts {
			if _, err := io.WriteString(cmd.Stdout, p); err != nil {
				return err
			}
			time.Sleep(30 * time.Millisecond)
		}
		return nil
	}}

	tier := NewCaptureTier(Config{Runner: runner})
	tier.chunkEvery = 10 * time.Millisecond
	tier.progressEvery = 10 * time.Millisecond

	var mu sync.Mutex
	var stages []Stage
	job := &Job{Blob: videoBlob(1024), TempDir: dir, progress: func(p Progress) {
		mu.Lock()
		stages = append(stages, p.Stage)
		mu.Unlock()
	}}

	result, err := tier.Attempt(context.Background(), job)
	if err != nil {
		t.Fatalf("Attempt failed: %v", err)
	}
	if string(result.Blob.Data) != strings.Join(parts, "") {
		t.Errorf("Assembled data = %q", result.Blob.Data)
	}
	if result.Blob.MIMEType != "video/webm;codecs=vp9,opus" {
		t.Errorf("MIME = %s", result.Blob.MIMEType)
	}
	if result.Digest != digest.Sum(result.Blob.Data) {
		t.Error("Digest should be of the recording")
	}

	mu.Lock()
	defer mu.Unlock()
	if stages[len(stages)-1] != StageFinalizing {
		t.Errorf("Last stage = %s, want finalizing", stages[len(stages)-1])
	}
	assertDirEmpty(t, dir)
}

func TestCaptureTierMetadataFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runner := &fakeRunner{handle: func(cmd Command) error {
		if strings.HasSuffix(cmd.Name, "ffprobe") {
			return fmt.Errorf("exit status 1")
		}
		return nil
	}}

	_, err := NewCaptureTier(Config{Runner: runner}).Attempt(context.Background(), &Job{Blob: videoBlob(64), TempDir: dir})
	if err == nil || !strings.Contains(err.Error(), "load metadata") {
		t.Errorf("Expected metadata error, got %v", err)
	}
	assertDirEmpty(t, dir)
}

func TestCaptureTierNoOutput(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{handle: func(cmd Command) error {
		if strings.HasSuffix(cmd.Name, "ffprobe") {
			_, err := io.WriteString(cmd.Stdout, probeJSON)
			return err
		}
		return nil
	}}

	_, err := NewCaptureTier(Config{Runner: runner}).Attempt(context.Background(), &Job{Blob: videoBlob(64), TempDir: t.TempDir()})
	if err == nil {
		t.Error("A recording with no data should fail the tier")
	}
}

func TestChunkCollector(t *testing.T) {
	t.Parallel()

	c := &chunkCollector{}
	_, _ = c.Write([]byte("ab"))
	c.flush()
	c.flush()
	_, _ = c.Write([]byte("cd"))
	_, _ = c.Write([]byte("ef"))
	c.flush()

	if c.count() != 2 {
		t.Errorf("count = %d, want 2", c.count())
	}
	if string(c.assemble()) != "abcdef" {
		t.Errorf("assemble = %q", c.assemble())
	}
}

// =============================================================================
// Probe Tests
// =============================================================================

func TestParseProbe(t *testing.T) {
	t.Parallel()

	info, err := parseProbe([]byte(probeJSON))
	if err != nil {
		t.Fatalf("parseProbe failed: %v", err)
	}
	if info.Duration != 12.5 || info.Width != 1920 || info.Height != 1080 {
		t.Errorf("info = %+v", info)
	}
	if info.VideoCodec != "h264" || !info.HasAudio {
		t.Errorf("info = %+v", info)
	}
}

func TestParseProbeStreamDuration(t *testing.T) {
	t.Parallel()

	raw := `{"streams":[{"codec_type":"video","codec_name":"vp9","duration":"3.0"}],"format":{}}`
	info, err := parseProbe([]byte(raw))
	if err != nil {
		t.Fatalf("parseProbe failed: %v", err)
	}
	if info.Duration != 3 || info.HasAudio {
		t.Errorf("info = %+v", info)
	}
}

func TestParseProbeErrors(t *testing.T) {
	t.Parallel()

	if _, err := parseProbe([]byte("not json")); err == nil {
		t.Error("Expected parse error")
	}
	audioOnly := `{"streams":[{"codec_type":"audio","codec_name":"opus"}],"format":{"duration":"1"}}`
	if _, err := parseProbe([]byte(audioOnly)); !errors.Is(err, ErrNoVideoStream) {
		t.Errorf("Expected ErrNoVideoStream, got %v", err)
	}
}

func TestProbeTimeout(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{handle: func(Command) error {
		return context.DeadlineExceeded
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Probe(ctx, runner, "ffprobe", "in.mp4")
	if !errors.Is(err, ErrMetadataTimeout) {
		t.Errorf("Expected ErrMetadataTimeout, got %v", err)
	}
}

// =============================================================================
// ExecRunner Tests
// =============================================================================

func TestExecRunnerRunsAndUntracks(t *testing.T) {
	t.Parallel()

	r := NewExecRunner()
	path, err := r.LookPath("true")
	if err != nil {
		t.Skip("true binary not available")
	}

	if err := r.Run(context.Background(), Command{Name: path}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if r.Active() != 0 {
		t.Errorf("Active = %d after completion", r.Active())
	}

	// Cleanup with nothing running must not panic.
	r.Cleanup()
}

func TestExecRunnerMissingBinary(t *testing.T) {
	t.Parallel()

	r := NewExecRunner()
	err := r.Run(context.Background(), Command{Name: "/nonexistent/mediadrop-binary"})
	if err == nil {
		t.Error("Expected start error")
	}
}
