package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aldenhart/ragchat/internal/knowledge"
	"github.com/aldenhart/ragchat/internal/orchestrator"
	"github.com/aldenhart/ragchat/internal/retrieval"
	"github.com/aldenhart/ragchat/internal/selector"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger       *slog.Logger
	Selector     *selector.Selector         // Required
	Orchestrator *orchestrator.Orchestrator // Required
	Ingestor     *knowledge.Ingestor        // Required
	Pipeline     *retrieval.Pipeline        // Required
	Pool         *pgxpool.Pool              // Optional: nil skips the database ping in /ready
	CORSOrigins  []string                   // Allowed origins for CORS
	TrustProxy   bool                       // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RatePerSec   float64                    // Rate limiter refill per IP in tokens/sec (0 = default 1)
	RateBurst    int                        // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Selector == nil {
		return nil, errors.New("selector is required")
	}
	if cfg.Orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if cfg.Ingestor == nil {
		return nil, errors.New("ingestor is required")
	}
	if cfg.Pipeline == nil {
		return nil, errors.New("retrieval pipeline is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ih := &ingestHandler{ingestor: cfg.Ingestor, logger: logger}
	slh := &selectHandler{sel: cfg.Selector, logger: logger}
	gh := &generateHandler{orch: cfg.Orchestrator, logger: logger}
	sh := &searchHandler{pipeline: cfg.Pipeline, logger: logger}

	mux := http.NewServeMux()

	// Ingestion, one route per content type
	mux.HandleFunc("POST /api/v1/ingest/article", ih.ingestArticle)
	mux.HandleFunc("POST /api/v1/ingest/post", ih.ingestPost)

	// Agent routing
	mux.HandleFunc("POST /api/v1/select", slh.selectAgent)

	// Streaming generation
	mux.HandleFunc("POST /api/v1/generate", gh.generate)

	// Retrieval diagnostics
	mux.HandleFunc("POST /api/v1/search", sh.search)

	// Rate limiter: per-IP token bucket
	refill := cfg.RatePerSec
	if refill <= 0 {
		refill = 1.0
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(refill, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log attributes.
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Use a top-level mux to separate health probes from middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
