// Package api implements the JSON HTTP surface of the service:
// document ingestion, agent selection, SSE streaming generation and a
// retrieval diagnostic endpoint, plus health probes and the shared
// middleware stack (recovery, request IDs, logging, CORS, per-IP rate
// limiting).
package api
