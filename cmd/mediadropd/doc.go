// Package main provides the entry point for the mediadrop gateway.
//
// mediadropd accepts media over HTTP, shrinks it (videos through the tiered
// ffmpeg transcoder, images through libvips or imaging), and publishes the
// result to Blossom servers under a kind 24242 authorization. When no server
// accepts the blob, or no signing key is configured, it falls back to a
// multipart host or an S3 bucket.
//
// # Application Lifecycle
//
//  1. Memory Configuration: Sets GOMEMLIMIT from MEMORY_LIMIT and MEMORY_RATIO
//  2. Configuration Loading: Reads the TOML file named by MEDIADROP_CONFIG, then
//     applies environment overrides and validates the result
//  3. Pipeline Assembly: Signer, Blossom client, transcoder engine, image
//     downscaler, fallback sink and upload history
//  4. Component Initialization:
//     - Memory Monitor: Pauses upload admission under heap pressure
//     - Metrics Collector: Publishes upload history totals every minute
//  5. HTTP Server Setup: Routes, middleware chain, metrics server
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM
//
// # HTTP Server
//
// The main server (default port 8080) exposes:
//
//   - POST /api/upload: upload a file; send Accept: application/x-ndjson for
//     a progress stream (progress and keepalive lines, then one result or error)
//   - GET /api/uploads, GET /api/uploads/{sha256}: upload history
//   - DELETE /api/blobs/{sha256}: delete a blob from every server
//   - GET /api/servers: resolved server list and fallback
//   - /health, /healthz, /livez, /readyz, /version: probes
//
// Routes under /api require a bearer token when UPLOAD_TOKEN_HASH is set.
// Generate the hash with cmd/hashtoken.
//
// The metrics server (default port 9090) serves /metrics and /health.
//
// # Environment Variables
//
// See [mediadrop/internal/startup] for the full list. The common ones:
//
//   - MEDIADROP_CONFIG: TOML configuration file
//   - MEDIADROP_SERVERS: comma separated Blossom server URLs
//   - MEDIADROP_SECRET_KEY: nsec or hex signing key
//   - FALLBACK_BACKEND: multipart, s3 or none
//   - PORT, METRICS_PORT, METRICS_ENABLED
//   - GOMEMLIMIT, MEMORY_LIMIT, MEMORY_RATIO
//
// # Graceful Shutdown
//
//  1. Stop accepting new HTTP requests (30s timeout for in-flight uploads)
//  2. Stop metrics collector
//  3. Stop memory monitor
//  4. Shutdown metrics server
//  5. Kill running ffmpeg processes, close the history database, shut down libvips
//
// # Build Requirements
//
// CGO is required for SQLite and libvips. FFmpeg and ffprobe must be on PATH
// for transcoding; without them every video is passed through unchanged.
//
//	go build -o mediadropd ./cmd/mediadropd
package main
