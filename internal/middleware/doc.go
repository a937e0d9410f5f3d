// Package middleware provides HTTP middleware for the upload gateway.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics with bounded path cardinality
//   - Response compression (gzip) that leaves event streams alone
//   - Bearer token authentication against a bcrypt hash
//   - CORS for browser clients
package middleware
