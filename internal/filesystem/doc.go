/*
Package filesystem reads files with retry logic for NFS stale file handle
errors.

Input files handed to the CLI and ffmpeg output in TEMP_DIR often live on
network mounts in container deployments. A read that races a server-side
change fails with ESTALE (errno 116) even though a second attempt succeeds.
The helpers here retry only that error, with capped exponential backoff, and
return every other error immediately.

# Usage

	data, err := filesystem.ReadFileWithRetry(path, filesystem.DefaultRetryConfig())

# Metrics

Retry activity is reported through an [Observer]. The metrics package
provides the production implementation; without one, nothing is recorded.

	filesystem.SetObserver(metrics.NewFilesystemObserver())
*/
package filesystem
