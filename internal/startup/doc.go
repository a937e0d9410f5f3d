// Package startup handles gateway initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration comes from an optional TOML file (path in MEDIADROP_CONFIG)
// overlaid by environment variables. [Load] builds it without logging and is
// what the CLI uses; [LoadConfig] additionally prints the banner, logs every
// setting, and prepares directories for the gateway.
//
// Supported environment variables:
//
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - DATABASE_DIR: Upload history directory (default: /database)
//   - MEDIADROP_SERVERS: Comma or newline separated Blossom server URLs
//   - MEDIADROP_SECRET_KEY: Signing key, hex or nsec
//   - MEDIADROP_ORIGIN: Origin header sent to Blossom servers
//   - ATTEMPT_TIMEOUT: Per-server upload timeout as Go duration (default: 2m)
//   - MAX_INPUT_MB: Largest video accepted for transcoding (default: 30)
//   - TRANSCODE_THRESHOLD_MB: Videos at or below this size skip transcoding (default: 1)
//   - GPU_ACCEL: auto, nvidia, vaapi, videotoolbox or none (default: auto)
//   - FFMPEG_THREADS: Thread count override for ffmpeg
//   - TEMP_DIR: Scratch directory for transcodes (default: os.TempDir)
//   - IMAGE_MAX_DIMENSION, IMAGE_MAX_BYTES: Image downscale limits
//   - FALLBACK_BACKEND: multipart, s3 or none (default: multipart)
//   - FALLBACK_URL: Multipart fallback endpoint
//   - S3_REGION, S3_BUCKET, S3_ACCESS_KEY, S3_SECRET_KEY, S3_ENDPOINT,
//     S3_PUBLIC_BASE_URL: S3 fallback settings
//   - UPLOAD_TOKEN_HASH: bcrypt hash of the bearer token required on /api
//   - CORS_ORIGINS: Comma separated list of allowed browser origins
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see package memory
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogDatabaseInit]: History database initialization timing
//   - [LogTranscoderInit]: Tier order and FFmpeg availability
//   - [LogUploadTargets]: Resolved servers, signer, and fallback sink
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
package startup
