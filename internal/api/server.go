// Package api exposes the question answering system over a JSON HTTP API.
//
// Endpoints:
//   - POST   /api/query                      answer a question
//   - GET    /api/courses                    catalog statistics
//   - GET    /api/courses/{title}            course outline
//   - GET    /api/sessions                   list sessions
//   - GET    /api/sessions/{id}/exchanges    session history
//   - DELETE /api/sessions/{id}              delete a session
//   - GET    /health, GET /ready             liveness and readiness probes
package api

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"coursechat/internal/log"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger     log.Logger
	RAG        Answerer       // Required
	Courses    CourseCatalog  // Required
	Sessions   SessionManager // Required
	Pool       *pgxpool.Pool  // Optional: nil disables DB ping in /ready
	TrustProxy bool           // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst  int            // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates an API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.RAG == nil {
		return nil, errors.New("rag system is required")
	}
	if cfg.Courses == nil {
		return nil, errors.New("course catalog is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session manager is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	qh := &queryHandler{rag: cfg.RAG, logger: logger}
	ch := &courseHandler{catalog: cfg.Courses, logger: logger}
	sh := &sessionHandler{sessions: cfg.Sessions, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/query", qh.answer)
	mux.HandleFunc("GET /api/courses", ch.listCourses)
	mux.HandleFunc("GET /api/courses/{title}", ch.getOutline)
	mux.HandleFunc("GET /api/sessions", sh.listSessions)
	mux.HandleFunc("GET /api/sessions/{id}/exchanges", sh.getHistory)
	mux.HandleFunc("DELETE /api/sessions/{id}", sh.deleteSession)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack (outermost first):
	//   Recovery → RequestID → Logging → RateLimit → Routes
	// RequestID runs before Logging so request_id is available in log attributes.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes sit outside the middleware stack so monitoring traffic
	// never consumes rate limiter tokens.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
