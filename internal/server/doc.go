// Package server exposes the HTTP API: chunk ingestion, session reads, a
// websocket progress feed, and the health/stats/metrics endpoints.
package server
