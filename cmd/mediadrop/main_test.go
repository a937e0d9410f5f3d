package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"mediadrop/internal/database"
	"mediadrop/internal/uploader"
)

const testSecret = "5c0c523f52a5b6fad39ed2403092df8cebc36318b39383bca6c00808626fab3a"

func init() {
	useVips = false
}

// execute runs the root command with args and captures its output.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// testEnv isolates configuration from the host environment.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MEDIADROP_CONFIG", "")
	t.Setenv("MEDIADROP_SERVERS", "")
	t.Setenv("MEDIADROP_SECRET_KEY", "")
	t.Setenv("FALLBACK_BACKEND", "none")
	t.Setenv("DATABASE_DIR", dir)
	t.Setenv("TEMP_DIR", dir)
	t.Setenv("LOG_LEVEL", "")
	return dir
}

// blossomServer is a minimal Blossom server that stores blobs in memory.
type blossomServer struct {
	*httptest.Server
	mu      sync.Mutex
	blobs   map[string][]byte
	deleted []string
}

func newBlossomServer(t *testing.T) *blossomServer {
	t.Helper()
	b := &blossomServer{blobs: make(map[string][]byte)}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Nostr ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodPut:
			data, _ := io.ReadAll(r.Body)
			sum := sha256.Sum256(data)
			hash := hex.EncodeToString(sum[:])
			b.mu.Lock()
			b.blobs[hash] = data
			b.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"url":    b.URL + "/" + hash + ".png",
				"sha256": hash,
				"size":   len(data),
				"type":   r.Header.Get("Content-Type"),
			})
		case http.MethodDelete:
			b.mu.Lock()
			b.deleted = append(b.deleted, strings.TrimPrefix(r.URL.Path, "/"))
			b.mu.Unlock()
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(b.Close)
	return b
}

func writePNG(t *testing.T, dir string) (string, string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	path := filepath.Join(dir, "dot.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write png: %v", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return path, hex.EncodeToString(sum[:])
}

// =============================================================================
// keygen
// =============================================================================

func TestKeygen(t *testing.T) {
	stdout, _, err := execute(t, "keygen", "--json")
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}

	var kp keyPair
	if err := json.Unmarshal([]byte(stdout), &kp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(kp.NSec, "nsec1") || !strings.HasPrefix(kp.NPub, "npub1") {
		t.Errorf("unexpected keys: %+v", kp)
	}
	if len(kp.PubKey) != 64 {
		t.Errorf("pubkey length = %d, want 64", len(kp.PubKey))
	}
}

func TestKeygenIsFresh(t *testing.T) {
	first, _, err := execute(t, "keygen")
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	second, _, err := execute(t, "keygen")
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	if first == second {
		t.Error("two keygen runs produced the same key")
	}
}

// =============================================================================
// servers
// =============================================================================

func TestServers(t *testing.T) {
	testEnv(t)
	t.Setenv("MEDIADROP_SERVERS", "https://a.example, https://b.example")

	stdout, _, err := execute(t, "servers")
	if err != nil {
		t.Fatalf("servers failed: %v", err)
	}

	for _, want := range []string{"https://a.example", "https://b.example", "Signer:   not configured", "Fallback: disabled"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}
	if strings.Index(stdout, "a.example") > strings.Index(stdout, "b.example") {
		t.Error("servers should be listed in configured order")
	}
}

func TestServersShowsSigner(t *testing.T) {
	testEnv(t)
	t.Setenv("MEDIADROP_SECRET_KEY", testSecret)

	stdout, _, err := execute(t, "servers")
	if err != nil {
		t.Fatalf("servers failed: %v", err)
	}
	if !strings.Contains(stdout, "Signer:   npub1") {
		t.Errorf("signer not shown:\n%s", stdout)
	}
}

func TestServersRejectsInvalidConfig(t *testing.T) {
	testEnv(t)
	t.Setenv("FALLBACK_BACKEND", "carrier-pigeon")

	if _, _, err := execute(t, "servers"); err == nil {
		t.Fatal("expected a configuration error")
	}
}

// =============================================================================
// upload, history, delete
// =============================================================================

func TestUploadRecordsAndDeletes(t *testing.T) {
	dir := testEnv(t)
	srv := newBlossomServer(t)
	t.Setenv("MEDIADROP_SERVERS", srv.URL)
	t.Setenv("MEDIADROP_SECRET_KEY", testSecret)

	path, hash := writePNG(t, dir)

	stdout, stderr, err := execute(t, "upload", path)
	if err != nil {
		t.Fatalf("upload failed: %v\n%s", err, stderr)
	}
	if got := strings.TrimSpace(stdout); got != srv.URL+"/"+hash+".png" {
		t.Errorf("printed URL = %q", got)
	}
	if !strings.Contains(stderr, string(uploader.StageComplete)) {
		t.Errorf("progress should end with %q:\n%s", uploader.StageComplete, stderr)
	}

	stdout, _, err = execute(t, "history", "--json")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	var uploads []database.Upload
	if err := json.Unmarshal([]byte(stdout), &uploads); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(uploads) != 1 || uploads[0].SHA256 != hash || uploads[0].Via != database.ViaBlossom {
		t.Fatalf("history = %+v", uploads)
	}

	stdout, _, err = execute(t, "delete", hash)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !strings.Contains(stdout, "deleted") || !strings.Contains(stdout, "removed 1 record") {
		t.Errorf("delete output:\n%s", stdout)
	}
	if len(srv.deleted) != 1 || srv.deleted[0] != hash {
		t.Errorf("server saw deletes %v", srv.deleted)
	}
}

func TestUploadJSONQuiet(t *testing.T) {
	dir := testEnv(t)
	srv := newBlossomServer(t)
	t.Setenv("MEDIADROP_SERVERS", srv.URL)
	t.Setenv("MEDIADROP_SECRET_KEY", testSecret)

	path, hash := writePNG(t, dir)

	stdout, stderr, err := execute(t, "upload", "--json", "-q", path)
	if err != nil {
		t.Fatalf("upload failed: %v\n%s", err, stderr)
	}
	if strings.Contains(stderr, string(uploader.StageUploading)) {
		t.Error("--quiet should suppress progress")
	}

	var result uploader.Result
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.SHA256.String() != hash || result.Via != database.ViaBlossom {
		t.Errorf("result = %+v", result)
	}
}

func TestUploadWithoutRoute(t *testing.T) {
	dir := testEnv(t)
	path, _ := writePNG(t, dir)

	_, stderr, err := execute(t, "upload", "-q", path)
	if err == nil {
		t.Fatal("upload without signer or fallback should fail")
	}
	if !strings.Contains(stderr, path) {
		t.Errorf("failure should name the file:\n%s", stderr)
	}
}

func TestUploadMissingFile(t *testing.T) {
	testEnv(t)

	if _, _, err := execute(t, "upload", "-q", "/does/not/exist.png"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestHistoryEmpty(t *testing.T) {
	testEnv(t)

	stdout, _, err := execute(t, "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(stdout, "No uploads recorded.") {
		t.Errorf("output = %q", stdout)
	}
}

func TestDeleteRejectsBadDigest(t *testing.T) {
	testEnv(t)

	if _, _, err := execute(t, "delete", "not-a-hash"); err == nil {
		t.Fatal("expected an error for an invalid digest")
	}
}

// =============================================================================
// Formatting
// =============================================================================

func TestRenderBar(t *testing.T) {
	tests := []struct {
		progress uploader.Progress
		prefix   string
	}{
		{uploader.Progress{Stage: uploader.StageUploading, Percent: 50}, "[#####-----]  50% uploading"},
		{uploader.Progress{Stage: uploader.StageTranscoding, Percent: 0, Detail: "loading"}, "[----------]   0% transcoding (loading)"},
		{uploader.Progress{Stage: uploader.StageComplete, Percent: 140}, "[##########] 100% complete"},
		{uploader.Progress{Stage: uploader.StageUploading, Percent: -5}, "[----------]   0% uploading"},
	}

	for _, tt := range tests {
		got := renderBar(tt.progress, 10)
		if !strings.HasPrefix(got, tt.prefix) {
			t.Errorf("renderBar(%+v) = %q, want prefix %q", tt.progress, got, tt.prefix)
		}
		if len(got) < 50 {
			t.Errorf("renderBar should pad to clear earlier output, got length %d", len(got))
		}
	}
}

func TestProgressPrinterPlain(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf)

	p.Update(uploader.Progress{Stage: uploader.StageUploading, Percent: 10})
	p.Update(uploader.Progress{Stage: uploader.StageUploading, Percent: 20})
	p.Update(uploader.Progress{Stage: uploader.StageComplete, Percent: 100})
	p.Done()

	if got := buf.String(); got != "uploading\ncomplete\n" {
		t.Errorf("output = %q", got)
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.in); got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
