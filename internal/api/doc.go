// Package api hosts the HTTP server, middleware, and REST handlers for dataset
// consumers and operators. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/stats, /v1/matches and /v1/matches/count for dataset reads; the
//     match listing streams NDJSON.
//   - GET /v1/crawler/state and POST /v1/crawler/{pause,resume,stop} when a
//     crawler is attached.
package api
