// Package api provides the HTTP API server and handlers for the shared calendar.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/headercal/headercal-server/internal/auth"
	"github.com/headercal/headercal-server/internal/metrics"
	"github.com/headercal/headercal-server/internal/ratelimit"
	"github.com/headercal/headercal-server/internal/scheduler"
	"github.com/headercal/headercal-server/internal/sse"
	"github.com/headercal/headercal-server/internal/store"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// Options configures the HTTP surface.
type Options struct {
	Name               string
	CORSAllowedOrigins []string
	MetricsEnabled     bool
	// IdentityRatePerMinute limits identity issuance per client IP. Zero
	// disables the limit.
	IdentityRatePerMinute int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store      store.Backend
	services   *Services
	verifier   auth.Verifier
	sseManager *sse.Manager
	scheduler  *scheduler.Scheduler
	router     *chi.Mux
	api        huma.API
	logger     *slog.Logger

	identityLimiter *ratelimit.KeyedRateLimiter
}

// NewServer creates a new HTTP server with all routes configured. sched
// may be nil.
func NewServer(
	st store.Backend,
	services *Services,
	verifier auth.Verifier,
	sseManager *sse.Manager,
	sched *scheduler.Scheduler,
	opts Options,
	logger *slog.Logger,
) *Server {
	s := &Server{
		store:      st,
		services:   services,
		verifier:   verifier,
		sseManager: sseManager,
		scheduler:  sched,
		router:     chi.NewRouter(),
		logger:     logger,
	}
	if opts.IdentityRatePerMinute > 0 {
		s.identityLimiter = ratelimit.PerMinute(opts.IdentityRatePerMinute)
	}

	s.setupMiddleware(opts)

	humaConfig := huma.DefaultConfig(opts.Name+" API", Version)
	humaConfig.Info.Description = "Shared calendar: users, range labels, availability, and presence."
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerRoutes()
	s.setupStreamRoutes(opts)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	if s.identityLimiter != nil {
		s.identityLimiter.Stop()
	}
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(opts Options) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	if len(opts.CORSAllowedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"Retry-After", "X-Request-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	if opts.MetricsEnabled {
		s.router.Use(metrics.Middleware)
	}
	s.router.Use(authMiddleware(s.verifier))
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerIdentityRoutes()
	s.registerSessionRoutes()
	s.registerUserRoutes()
	s.registerCalendarRoutes()
	s.registerLabelRoutes()
	s.registerAvailabilityRoutes()
}

// setupStreamRoutes mounts the connection transports and the metrics
// endpoint directly on chi; none of them speak the JSON envelope.
func (s *Server) setupStreamRoutes(opts Options) {
	credential := streamCredential(s.verifier)
	s.router.Get("/api/v1/stream", sse.NewHandler(s.sseManager, credential, s.logger).ServeHTTP)
	s.router.Get("/api/v1/ws", sse.NewWebSocketHandler(s.sseManager, credential, opts.CORSAllowedOrigins, s.logger).ServeHTTP)

	if opts.MetricsEnabled {
		s.router.Handle("/metrics", metrics.Handler())
	}
}
