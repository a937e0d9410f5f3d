// Package handlers provides the HTTP handlers of the upload gateway.
//
// It includes handlers for:
//   - Uploading a file through the pipeline, as JSON or as an NDJSON event stream
//   - Listing and looking up the local upload history
//   - Deleting a blob from every configured server
//   - Server list, health checks, and version information
package handlers
