// Command mediadrop is the command line client for the upload pipeline.
//
// It runs the same stack as the gateway in-process: videos go through the
// tiered ffmpeg transcoder, large images are downscaled, and the result is
// published to the configured Blossom servers or the fallback sink.
//
// Usage:
//
//	mediadrop upload <file>...        shrink and publish, one URL per line
//	mediadrop servers                 show servers, signer and fallback
//	mediadrop delete <sha256>         delete a blob from every server
//	mediadrop history [-n limit]      list recorded uploads
//	mediadrop keygen                  generate a signing key
//
// Progress is drawn as a bar when stderr is a terminal and as one line per
// stage otherwise. Upload history is recorded when DATABASE_DIR exists.
//
// Configuration is shared with the gateway: a TOML file given by --config or
// MEDIADROP_CONFIG, overridden by environment variables such as
// MEDIADROP_SERVERS and MEDIADROP_SECRET_KEY.
package main
