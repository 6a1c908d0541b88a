package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/config"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/db"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/evals"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/jobs"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/progress"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/server/middleware"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/server/ratelimit"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// JobService is the job queue surface the handlers need.
type JobService interface {
	Create(ctx context.Context, params jobs.CreateParams) (*types.Job, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Job, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*jobs.Detail, error)
	List(ctx context.Context, status *types.JobStatus, keyword string, limit, offset int) ([]*types.Job, error)
	Cancel(ctx context.Context, id uuid.UUID) (*types.Job, error)
}

// EvalService is the evaluation surface the handlers need.
type EvalService interface {
	RecordHumanEval(ctx context.Context, jobID uuid.UUID, params evals.HumanEvalParams) (*types.Evaluation, error)
	PromoteGoldenExamples(ctx context.Context, jobID uuid.UUID, params evals.PromoteParams) ([]*types.GoldenExample, error)
}

// CatalogStore serves the read-only reference endpoints.
type CatalogStore interface {
	ListPersonas(ctx context.Context) ([]*types.Persona, error)
	ListGoldenExamples(ctx context.Context, agentType *types.AgentType) ([]*types.GoldenExample, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	db          *db.DB
	jobService  JobService
	evalService EvalService
	catalog     CatalogStore
	watcher     *progress.Watcher
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	validator   *validator.Validate
}

// Config holds server configuration
type Config struct {
	Port        int
	DatabaseURL string
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	database, err := db.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create JWT config: %w", err)
	}

	s := newServer(
		jobs.NewService(database),
		evals.NewService(database),
		database,
		progress.NewWatcher(database, progress.DefaultInterval),
		NewJWTService(jwtConfig),
	)
	s.db = database

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(s.routes()))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // SSE streams stay open for the whole run
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// newServer wires the handler dependencies. Split from New so tests can
// inject fakes without a database.
func newServer(jobSvc JobService, evalSvc EvalService, catalog CatalogStore, watcher *progress.Watcher, jwtSvc *JWTService) *Server {
	return &Server{
		jobService:  jobSvc,
		evalService: evalSvc,
		catalog:     catalog,
		watcher:     watcher,
		jwtService:  jwtSvc,
		rateLimiter: ratelimit.NewLimiter(ratelimit.LoadConfig()),
		validator:   validator.New(),
	}
}

// routes builds the API router. Mutating endpoints require a bearer token;
// health stays open for probes.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	authed := middleware.RequireAuth(s.jwtService)

	mux.Handle("POST /jobs", authed(http.HandlerFunc(s.handleCreateJob)))
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.Handle("POST /jobs/{id}/cancel", authed(http.HandlerFunc(s.handleCancelJob)))
	mux.HandleFunc("GET /jobs/{id}/stream", s.handleJobStream)

	mux.Handle("POST /jobs/{id}/evals", authed(http.HandlerFunc(s.handleCreateEval)))
	mux.Handle("POST /jobs/{id}/golden", authed(http.HandlerFunc(s.handlePromoteGolden)))

	mux.HandleFunc("GET /golden-examples", s.handleListGoldenExamples)
	mux.HandleFunc("GET /personas", s.handleListPersonas)
	mux.HandleFunc("GET /health", s.handleHealth)

	return mux
}

// Start begins listening for requests
func (s *Server) Start() error {
	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.db != nil {
		s.db.Close()
	}
	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)
		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)

		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.jsonResponse(w, http.StatusTooManyRequests, map[string]any{
				"error":       "rate_limit_exceeded",
				"retry_after": int(time.Until(info.ResetTime).Seconds()),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// extractClientID extracts the client identifier from the request.
// For MVP, this uses the IP address from RemoteAddr.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// serviceError maps a service error to its HTTP status.
func (s *Server) serviceError(w http.ResponseWriter, err error) {
	s.errorResponse(w, HTTPStatus(err), err.Error())
}
