// Package api hosts the status server that runs alongside a crawl. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /status for frontier counters and the run summary.
//   - GET /v1/products/history?url=... for a stored product's price history.
package api
