package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/B-Step62/mlflow-sub000/internal/log"
	"github.com/B-Step62/mlflow-sub000/internal/security"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger             log.Logger
	Store              Store               // Required
	Policy             security.CodePolicy // Required: vets chart code on save
	AllowedExperiments []string            // Experiments that accept saved charts (empty = all)
	Pool               *pgxpool.Pool       // Optional: nil disables DB ping in /ready
	CORSOrigins        []string            // Allowed origins for CORS
	TrustProxy         bool                // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst          int                 // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Policy == nil {
		return nil, errors.New("code policy is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := newChartHandler(cfg.Store, cfg.Policy, cfg.AllowedExperiments, logger)

	mux := http.NewServeMux()

	// Chart generation lifecycle
	mux.HandleFunc("POST /api/2.0/charts/generate", ch.generate)
	mux.HandleFunc("GET /api/2.0/charts/status/{request_id}", ch.status)

	// Saved chart management
	mux.HandleFunc("POST /api/2.0/charts/save", ch.save)
	mux.HandleFunc("GET /api/2.0/charts/list", ch.list)
	mux.HandleFunc("DELETE /api/2.0/charts/{chart_id}", ch.delete)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

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

	// Wrap with security headers
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Use a top-level mux to separate health probes from middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
