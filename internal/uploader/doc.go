// Package uploader turns a media payload into a public URL.
//
// A Pipeline classifies the payload, shrinks it when worthwhile (videos go
// through the transcoder engine, oversized images through the downscaler),
// then publishes it to the configured Blossom servers. When no signer is
// configured or every server fails, the designated fallback sink is used.
// Successful uploads are recorded in the history store when one is set.
//
// Progress is reported as a single monotonic stream of Progress values that
// covers every stage. Upload progress through Blossom is synthetic (the
// protocol has no progress reporting); fallback progress counts real bytes.
//
// Classify maps any error returned by Process onto a user-facing Failure.
package uploader
