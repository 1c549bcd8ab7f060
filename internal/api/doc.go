// Package api hosts the HTTP server, middleware, and read-only status
// routes for a running batch:
//   - GET /healthz and /readyz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for the run tracker snapshot.
package api
