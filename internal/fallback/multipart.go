package fallback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"mediadrop/internal/logging"
	"mediadrop/internal/mediatypes"
)

// DefaultMultipartURL is the public multipart endpoint used when none is configured.
const DefaultMultipartURL = "https://void.cat/upload"

// maxResponseBytes caps how much of an upload response is read.
const maxResponseBytes = 1 << 20

// MultipartSink posts blobs as a multipart form with a "file" field.
type MultipartSink struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
}

// NewMultipartSink creates a sink posting to endpoint, or DefaultMultipartURL
// when endpoint is empty. A nil client means http.DefaultClient. Each upload
// is bounded by DefaultTimeout.
func NewMultipartSink(endpoint string, client *http.Client) *MultipartSink {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultMultipartURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &MultipartSink{endpoint: endpoint, httpClient: client, timeout: DefaultTimeout}
}

// WithTimeout sets the per-upload limit. Non-positive values are ignored.
func (s *MultipartSink) WithTimeout(d time.Duration) *MultipartSink {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Name implements Sink.
func (s *MultipartSink) Name() string {
	return "multipart"
}

// Endpoint returns the URL the sink posts to.
func (s *MultipartSink) Endpoint() string {
	return s.endpoint
}

// Upload implements Sink. Progress counts bytes of the encoded form as the
// transport reads them.
func (s *MultipartSink) Upload(ctx context.Context, blob mediatypes.Blob, progress ProgressFunc) (string, error) {
	body, contentType, err := encodeForm(blob)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	total := int64(body.Len())
	reader := &progressReader{r: body, total: total, fn: progress}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, reader)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	reader.report(0)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		logging.Warn("Fallback upload to %s failed: %v", s.endpoint, err)
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrUploadFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logging.Warn("Fallback upload to %s rejected: %d", s.endpoint, resp.StatusCode)
		return "", fmt.Errorf("%w: status %d", ErrUploadFailed, resp.StatusCode)
	}

	url := extractURL(raw)
	if url == "" {
		return "", ErrNoURL
	}
	reader.report(total)
	logging.Info("Uploaded %s via fallback %s", fallbackName(blob), s.endpoint)
	return url, nil
}

func encodeForm(blob mediatypes.Blob) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fallbackName(blob)))
	h.Set("Content-Type", blob.ContentType())
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(blob.Data); err != nil {
		return nil, "", fmt.Errorf("write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// uploadResponse covers both response shapes: {"file":{"url":...}} and {"url":...}.
type uploadResponse struct {
	File *struct {
		URL string `json:"url"`
	} `json:"file"`
	URL string `json:"url"`
}

func extractURL(raw []byte) string {
	var resp uploadResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ""
	}
	if resp.File != nil && resp.File.URL != "" {
		return resp.File.URL
	}
	return resp.URL
}

type progressReader struct {
	r     io.Reader
	total int64
	fn    ProgressFunc

	mu   sync.Mutex
	sent int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.mu.Lock()
		p.sent += int64(n)
		sent := p.sent
		p.mu.Unlock()
		p.report(sent)
	}
	return n, err
}

func (p *progressReader) report(sent int64) {
	if p.fn != nil {
		p.fn(sent, p.total)
	}
}
