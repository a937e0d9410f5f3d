package streaming

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"mediadrop/internal/logging"
)

// ContentType is the media type of an event stream: one JSON document per line.
const ContentType = "application/x-ndjson"

// WantsEvents reports whether the client asked for an event stream.
func WantsEvents(r *http.Request) bool {
	for _, accept := range r.Header.Values("Accept") {
		for _, part := range strings.Split(accept, ",") {
			mediaType, _, _ := strings.Cut(strings.TrimSpace(part), ";")
			if strings.EqualFold(strings.TrimSpace(mediaType), ContentType) {
				return true
			}
		}
	}
	return false
}

// EventWriter writes newline-delimited JSON events to an HTTP response.
// It is safe for concurrent use.
type EventWriter struct {
	tw  *TimeoutWriter
	enc *json.Encoder

	mu     sync.Mutex
	err    error
	events int
}

// NewEventWriter sends the stream headers with status 200 and returns a writer.
func NewEventWriter(ctx context.Context, w http.ResponseWriter, config Config) *EventWriter {
	h := w.Header()
	h.Set("Content-Type", ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	tw := NewTimeoutWriter(ctx, w, config)
	return &EventWriter{tw: tw, enc: json.NewEncoder(tw)}
}

// Send writes one event. After the first failure every call returns that error.
func (ew *EventWriter) Send(event any) error {
	ew.mu.Lock()
	defer ew.mu.Unlock()

	if ew.err != nil {
		return ew.err
	}
	if err := ew.enc.Encode(event); err != nil {
		ew.err = err
		logging.Debug("Event stream ended after %d events: %v", ew.events, err)
		return err
	}
	ew.events++
	return nil
}

// Err returns the error that stopped the stream, if any.
func (ew *EventWriter) Err() error {
	ew.mu.Lock()
	defer ew.mu.Unlock()
	return ew.err
}

// Close ends the stream.
func (ew *EventWriter) Close() error {
	ew.mu.Lock()
	events := ew.events
	ew.mu.Unlock()

	bytesWritten, duration := ew.tw.Stats()
	logging.Debug("Event stream closed: %d events, %d bytes in %v", events, bytesWritten, duration)
	return ew.tw.Close()
}
