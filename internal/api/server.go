// Package api serves the session engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/mapgame-session-go/internal/dispatch"
	"github.com/MJE43/mapgame-session-go/internal/engine"
	"github.com/MJE43/mapgame-session-go/internal/store"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DefinitionLister lists the definitions a player may start.
type DefinitionLister interface {
	ListDefinitions(ctx context.Context, player string) ([]store.DefinitionSummary, error)
}

// ResultLister lists archived results of a definition.
type ResultLister interface {
	ListResults(ctx context.Context, definitionID string, limit, offset int) ([]engine.Result, error)
}

// Server handles HTTP requests
type Server struct {
	engine         *engine.Engine
	dispatcher     *dispatch.Dispatcher
	sessions       Pinger
	definitions    DefinitionLister
	results        ResultLister
	requestTimeout time.Duration
	errorHandler   *ErrorHandler
	logger         *log.Logger
	securityLogger *SecurityLogger
	startTime      time.Time
}

type ServerOption func(*Server)

// WithSessionPinger enables the store check behind /health and /health/ready.
func WithSessionPinger(p Pinger) ServerOption {
	return func(s *Server) { s.sessions = p }
}

func WithDefinitionLister(l DefinitionLister) ServerOption {
	return func(s *Server) { s.definitions = l }
}

func WithResultLister(l ResultLister) ServerOption {
	return func(s *Server) { s.results = l }
}

func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.requestTimeout = d }
}

// WithLogOutput redirects the API and security logs.
func WithLogOutput(w io.Writer) ServerOption {
	return func(s *Server) {
		s.logger = log.New(w, "[API] ", log.LstdFlags|log.Lshortfile)
		s.securityLogger = NewSecurityLoggerTo(log.New(w, "[SECURITY] ", log.LstdFlags|log.LUTC))
	}
}

// NewServer creates a new API server
func NewServer(e *engine.Engine, d *dispatch.Dispatcher, opts ...ServerOption) *Server {
	s := &Server{
		engine:         e,
		dispatcher:     d,
		requestTimeout: 30 * time.Second,
		logger:         log.New(os.Stdout, "[API] ", log.LstdFlags|log.Lshortfile),
		securityLogger: NewSecurityLogger(),
		startTime:      time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.errorHandler = NewErrorHandler(s.logger, s.securityLogger)

	s.securityLogger.LogSystemStartup("unknown", map[string]interface{}{
		"functions":          len(d.Functions()),
		"store_checks":       s.sessions != nil,
		"definition_listing": s.definitions != nil,
		"result_listing":     s.results != nil,
		"request_timeout":    s.requestTimeout.String(),
	})
	return s
}

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.SecurityLoggingMiddleware)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(middleware.Timeout(s.requestTimeout))
	r.Use(s.CORSMiddleware)

	// Health and monitoring endpoints
	r.Get("/health", s.handleHealthCheck)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/health/live", s.handleLiveness)
	r.Get("/version", s.handleVersion)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{token}", func(r chi.Router) {
			r.Get("/", s.handleDescribeSession)
			r.Delete("/", s.handleDestroySession)
			r.Post("/invoke", s.handleInvoke)
		})
		r.Get("/functions", s.handleListFunctions)
		if s.definitions != nil {
			r.Get("/definitions", s.handleListDefinitions)
		}
		if s.results != nil {
			r.Get("/definitions/{id}/results", s.handleListResults)
		}
	})

	return r
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("response_encode_failed error=%v", err)
	}
}

// LogShutdown records why the server is stopping and how long it ran.
func (s *Server) LogShutdown(reason string) {
	s.securityLogger.LogSystemShutdown(reason, time.Since(s.startTime))
}
