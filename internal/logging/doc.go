// Package logging provides a simple leveled logging interface for mediadrop.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information (per-server attempts, ffmpeg arguments)
//   - INFO: General operational messages
//   - WARN: Warning conditions (tier fallthrough, integrity rejections, cleanup failures)
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or forced
// to debug with DEBUG=true. Command line tools may override it with SetLevel.
package logging
