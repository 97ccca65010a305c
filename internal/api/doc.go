// Package api hosts the status HTTP server that runs beside a crawl.
// Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/stats for the live crawl counters.
package api
