// Package http serves the fintrack JSON API.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// storageTimeout bounds every storage round trip made by a handler.
const storageTimeout = 7 * time.Second

var errTimeout = errors.New("timeout")

// ImportQueue hands an import batch to the background worker.
type ImportQueue interface {
	PublishImport(ctx context.Context, ownerID string, records []core.RawTransaction) error
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Auth         *auth.Service
	Transactions *services.TransactionService
	Imports      *services.ImportService
	Views        *services.ViewService

	// ImportQueue enables ?async=true imports; nil imports inline only.
	ImportQueue ImportQueue
	// Ready reports whether storage is reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

type Options struct {
	RateLimitPerMinute int
	Logger             *applog.Logger
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
}

type Server struct {
	http.Server
	deps     Deps
	opts     Options
	limiter  *ratelimit.Limiter
	detector *security.Detector
	trace    *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.RateLimitPerMinute < 1 {
		opts.RateLimitPerMinute = ratelimit.DefaultConfig().RequestsPerMinute
	}

	detector := security.NewDetector()
	rlConfig := ratelimit.DefaultConfig()
	rlConfig.RequestsPerMinute = opts.RateLimitPerMinute

	s := &Server{
		deps:     deps,
		opts:     opts,
		limiter:  ratelimit.NewLimiter(rlConfig),
		detector: detector,
		trace:    trace.NewMiddleware(opts.Logger.WithComponent(applog.ComponentHTTP), detector.ExtractClientIP),
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.trace.Handler)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Use(limited)
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(limited)
		r.Use(auth.Middleware(s.deps.Auth.Tokens()))

		r.Get("/transactions", s.handleListTransactions)
		r.Post("/transactions", s.handleCreateTransaction)
		r.Post("/transactions/import", s.handleImport)
		r.Put("/transactions/{id}", s.handleUpdateTransaction)
		r.Delete("/transactions/{id}", s.handleDeleteTransaction)

		r.Get("/timeline", s.handleTimeline)
		r.Get("/stats", s.handleStats)
		r.Get("/taxonomy", s.handleTaxonomy)
		r.Get("/export.xlsx", s.handleExportXLSX)
	})

	return r
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics exposes request counters for the status log.
func (s *Server) Metrics() (trace.Metrics, int64, int64) {
	return s.trace.Metrics(), s.limiter.Limited(), s.detector.SuspiciousRequests()
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
			ErrorResponse(http.StatusServiceUnavailable, "storage unavailable").Write(w)
			return
		}
	}
	NewResponse().JSON(map[string]string{"status": "ready"}).Write(w)
}

// storageContext derives the per-request storage deadline.
func storageContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), storageTimeout)
}

// owner returns the authenticated owner; the auth middleware guarantees one
// on every /api route.
func owner(r *http.Request) string {
	id, _ := auth.OwnerFromContext(r.Context())
	return id
}

// writeServiceError logs unexpected failures and writes the mapped response.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		err = errors.Join(errTimeout, err)
	}
	resp := ServiceErrorResponse(err)
	if resp.statusCode >= http.StatusInternalServerError {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).LogError(r.Context(),
			"Request failed", err, applog.ComponentHTTP, op,
			applog.NewFields().WithOwner(owner(r), chi.URLParam(r, "id")))
	}
	resp.Write(w)
}
