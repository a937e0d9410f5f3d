package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"mediadrop/internal/logging"
	"mediadrop/internal/mediatypes"
	"mediadrop/internal/metrics"
	"mediadrop/internal/streaming"
	"mediadrop/internal/uploader"
)

// multipartMemory is how much of a multipart form is buffered before parts
// spill to temp files.
const multipartMemory = 8 << 20

// Event types on an upload stream. Keepalive events carry no payload and are
// sent while the pipeline is silent so the stream stays under its idle limit.
const (
	EventProgress  = "progress"
	EventResult    = "result"
	EventError     = "error"
	EventKeepalive = "keepalive"
)

// Event is one line of an NDJSON upload stream.
type Event struct {
	Type     string             `json:"type"`
	Progress *uploader.Progress `json:"progress,omitempty"`
	Result   *uploader.Result   `json:"result,omitempty"`
	Error    *uploader.Failure  `json:"error,omitempty"`
}

// Upload accepts a file and runs it through the pipeline.
// POST /api/upload
//
// The file comes from a multipart "file" field, or from the raw body with the
// name in the "name" query parameter. Clients sending
// "Accept: application/x-ndjson" get progress events followed by one result
// or error event; everyone else gets a single JSON document.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	if h.memory != nil {
		if err := h.memory.Admit(max(r.ContentLength, 0)); err != nil {
			metrics.UploadsRejectedTotal.WithLabelValues("memory").Inc()
			logging.Warn("Refusing upload from %s: %v", r.RemoteAddr, err)
			w.Header().Set("Retry-After", "30")
			writeJSONError(w, "Server is busy, try again shortly", http.StatusServiceUnavailable)
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBytes)
	blob, err := readBlob(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.UploadsRejectedTotal.WithLabelValues("too-large").Inc()
			writeJSONError(w, fmt.Sprintf("Request body exceeds %dMB", h.maxRequestBytes/(1024*1024)), http.StatusRequestEntityTooLarge)
			return
		}
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	logging.Debug("Upload received: %q (%s, %d bytes)", blob.Name, blob.ContentType(), blob.Size())

	if streaming.WantsEvents(r) {
		h.uploadStream(w, r, blob)
		return
	}

	result, err := h.pipeline.Process(r.Context(), blob, nil)
	if err != nil {
		if r.Context().Err() != nil {
			logging.Debug("Upload canceled by client: %v", err)
			return
		}
		failure := uploader.Classify(err)
		writeJSONStatusCode(w, statusFor(failure.Category), map[string]interface{}{"error": failure})
		return
	}
	writeJSONStatusCode(w, http.StatusOK, result)
}

func (h *Handlers) uploadStream(w http.ResponseWriter, r *http.Request, blob mediatypes.Blob) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ew := streaming.NewEventWriter(ctx, w, h.stream)
	defer func() {
		if err := ew.Close(); err != nil {
			logging.Debug("Closing upload stream: %v", err)
		}
	}()

	onProgress := func(p uploader.Progress) {
		if err := ew.Send(Event{Type: EventProgress, Progress: &p}); err != nil {
			cancel()
		}
	}

	stopKeepalive := h.keepalive(ctx, ew, cancel)
	result, err := h.pipeline.Process(ctx, blob, onProgress)
	stopKeepalive()

	if err != nil {
		if ctx.Err() != nil {
			logging.Debug("Upload stream ended before completion: %v", err)
			return
		}
		failure := uploader.Classify(err)
		_ = ew.Send(Event{Type: EventError, Error: &failure})
		return
	}
	_ = ew.Send(Event{Type: EventResult, Result: result})
}

// keepalive sends EventKeepalive at a third of the stream idle limit until the
// returned stop function is called. A failed send cancels the upload.
func (h *Handlers) keepalive(ctx context.Context, ew *streaming.EventWriter, cancel context.CancelFunc) func() {
	if h.stream.IdleTimeout <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(h.stream.IdleTimeout / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := ew.Send(Event{Type: EventKeepalive}); err != nil {
					cancel()
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

// readBlob extracts the uploaded file from a multipart form or a raw body.
func readBlob(r *http.Request) (mediatypes.Blob, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return mediatypes.Blob{}, fmt.Errorf("invalid multipart form: %w", err)
		}
		defer func() {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				logging.Warn("failed to remove multipart temp files: %v", err)
			}
		}()

		file, header, err := r.FormFile("file")
		if err != nil {
			return mediatypes.Blob{}, errors.New(`missing "file" field`)
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return mediatypes.Blob{}, fmt.Errorf("read file: %w", err)
		}
		if len(data) == 0 {
			return mediatypes.Blob{}, errors.New("empty file")
		}
		return mediatypes.NewBlob(header.Filename, data, header.Header.Get("Content-Type")), nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return mediatypes.Blob{}, err
	}
	if len(data) == 0 {
		return mediatypes.Blob{}, errors.New("empty body")
	}
	return mediatypes.NewBlob(strings.TrimSpace(r.URL.Query().Get("name")), data, mediaType), nil
}

// statusFor maps a failure category onto an HTTP status.
func statusFor(c uploader.Category) int {
	switch c {
	case uploader.CategoryOversized:
		return http.StatusRequestEntityTooLarge
	case uploader.CategoryUnsupported:
		return http.StatusUnsupportedMediaType
	case uploader.CategoryLoadTimeout:
		return http.StatusUnprocessableEntity
	case uploader.CategoryUploadFailed, uploader.CategoryMalformedResponse:
		return http.StatusBadGateway
	case uploader.CategoryMissingSigner:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
