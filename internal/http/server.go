// Package http exposes the ledger as a JSON API over chi.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// Options configures NewServer. Zero values fall back to defaults.
type Options struct {
	Addr               string
	Logger             *log.Logger
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	// CacheSweepInterval is how often expired report cache entries are
	// dropped. Zero disables the janitor.
	CacheSweepInterval time.Duration
}

type Server struct {
	http.Server
	svc      *services.Services
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	caches   *cache.Manager

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(svc *services.Services, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		svc:      svc,
		logger:   logger,
		detector: security.NewDetector(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	if caches := svc.Reports.Caches(); len(caches) > 0 && opts.CacheSweepInterval > 0 {
		cacheLogger := logger.WithComponent(log.ComponentCache)
		s.caches = cache.NewManager(func(removed int) {
			cacheLogger.Debug("Report cache sweep", "entries_removed", removed)
		})
		s.caches.Register(caches...)
		s.caches.StartCleanup(opts.CacheSweepInterval)
	}

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(opts Options) http.Handler {
	origins := opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(log.Middleware(s.logger))
	r.Use(s.tracer.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", trace.RequestIDHeader},
		ExposedHeaders: []string{trace.RequestIDHeader, "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(security.NewHeadersMiddleware(security.APIHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(api chi.Router) {
		api.Use(s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.MutatingOnly, s.handleRateLimited))

		api.Route("/people", func(pr chi.Router) {
			pr.Post("/", s.handleCreatePerson)
			pr.Get("/", s.handleListPeople(s.svc.People.ListAll))
			pr.Get("/minors", s.handleListPeople(s.svc.People.ListMinors))
			pr.Get("/adults", s.handleListPeople(s.svc.People.ListAdults))
			pr.Get("/{id}", s.handleGetPerson)
			pr.Put("/{id}", s.handleUpdatePerson)
			pr.Patch("/{id}", s.handleUpdatePerson)
			pr.Delete("/{id}", s.handleDeletePerson)
			pr.Get("/{id}/transactions", s.handlePersonTransactions)
		})

		api.Route("/categories", func(cr chi.Router) {
			cr.Post("/", s.handleCreateCategory)
			cr.Get("/", s.handleListCategories)
			cr.Get("/{id}", s.handleGetCategory)
		})

		api.Route("/transactions", func(tr chi.Router) {
			tr.Post("/", s.handleCreateTransaction)
			tr.Get("/", s.handleListTransactions)
			tr.Get("/{id}", s.handleGetTransaction)
			tr.Put("/{id}", s.handleUpdateTransaction)
			tr.Patch("/{id}", s.handleUpdateTransaction)
			tr.Delete("/{id}", s.handleDeleteTransaction)
		})

		api.Get("/reports/people", s.handlePersonTotals)
		api.Get("/reports/categories", s.handleCategoryTotals)

		api.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, core.NotFound("path", "no such endpoint"))
		})
		api.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			NewJSONResponse().Status(http.StatusMethodNotAllowed).
				Body(ErrorBody{Error: "method not allowed", Kind: "validation", RequestID: trace.GetRequestID(r.Context())}).
				Write(w)
		})
	})

	return r
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	NewJSONResponse().
		Status(http.StatusTooManyRequests).
		Body(ErrorBody{Error: "rate limit exceeded, try again later", Kind: "rate_limited", RequestID: trace.GetRequestID(r.Context())}).
		Write(w)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.caches != nil {
			s.caches.Stop()
		}
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
