/*
Package streaming provides timeout-protected streaming of upload progress to
HTTP clients.

# Overview

A slow or vanished client must not stall an upload. TimeoutWriter wraps an
http.ResponseWriter so that every write is bounded by WriteTimeout, a stream
with no writes for IdleTimeout is canceled, and the whole stream can be capped
with MaxDuration. Every successful write is flushed immediately.

EventWriter builds on it to emit newline-delimited JSON (application/x-ndjson),
one event per line:

	if streaming.WantsEvents(r) {
		ew := streaming.NewEventWriter(r.Context(), w, streaming.DefaultConfig())
		defer ew.Close()

		result, err := pipeline.Process(ctx, blob, func(p uploader.Progress) {
			_ = ew.Send(progressEvent(p))
		})
		...
	}

# Error Handling

	var (
		ErrWriteTimeout   = errors.New("write timeout exceeded")
		ErrClientGone     = errors.New("client disconnected")
		ErrStreamCanceled = errors.New("stream canceled")
	)

ErrClientGone is reported when the request context ends, usually because the
client went away; it is not a server error. Once a write fails,
EventWriter.Send keeps returning the same error.
*/
package streaming
