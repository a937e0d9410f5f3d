// Package fallback provides the designated upload sinks used when no Blossom
// server can take a payload.
//
// Two sinks are available:
//
//   - MultipartSink posts the payload as a multipart form with a single
//     "file" field and reads the public URL out of the JSON response. It
//     reports real byte progress while the body is streamed.
//   - S3Sink writes the payload to an S3 compatible bucket under a
//     content-addressed key and returns a URL below a configured public base.
//
// Both return ErrUploadFailed for transport or status failures and ErrNoURL
// when the destination accepted the bytes but did not name a location.
package fallback
