package rest

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"brain2-extractor/application/services"
	"brain2-extractor/interfaces/http/rest/handlers"
	"brain2-extractor/interfaces/http/rest/middleware"
	"brain2-extractor/interfaces/websocket"
	"brain2-extractor/pkg/common"
	"brain2-extractor/pkg/errors"
	"brain2-extractor/pkg/observability"
	"brain2-extractor/pkg/ratelimit"
)

// RouterConfig holds the optional parts of the HTTP surface
type RouterConfig struct {
	EnableCORS       bool
	AllowedOrigins   []string
	DefaultChunkSize int
	Debug            bool

	// GenerateLimiter throttles generation requests per client; nil disables it
	GenerateLimiter *ratelimit.SlidingWindowLimiter
}

// Router creates and configures the HTTP router
type Router struct {
	cfg       RouterConfig
	sessions  *services.SessionManager
	generator handlers.StreamOpener
	collector *observability.Collector
	tracer    *observability.Tracer
	logger    *zap.Logger
}

// NewRouter creates a new router instance. generator, collector and tracer
// may be nil.
func NewRouter(
	cfg RouterConfig,
	sessions *services.SessionManager,
	generator handlers.StreamOpener,
	collector *observability.Collector,
	tracer *observability.Tracer,
	logger *zap.Logger,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:       cfg,
		sessions:  sessions,
		generator: generator,
		collector: collector,
		tracer:    tracer,
		logger:    logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()
	errorHandler := errors.NewErrorHandler(rt.logger, rt.cfg.Debug)

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(errorHandler.Middleware)
	if rt.collector != nil {
		router.Use(middleware.Logger(rt.logger, rt.collector))
	} else {
		router.Use(middleware.Logger(rt.logger, nil))
	}
	router.Use(rt.tracer.Middleware("http"))
	router.Use(versionMiddleware)

	if rt.cfg.EnableCORS {
		origins := rt.cfg.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000", "https://*.brain2.com"}
		}
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.collector != nil {
		router.Handle("/metrics", rt.collector.Handler())
	}

	sessionHandler := handlers.NewSessionHandler(rt.sessions, rt.generator, errorHandler, rt.logger)
	extractHandler := handlers.NewExtractHandler(rt.sessions, rt.cfg.DefaultChunkSize, rt.tracer, errorHandler, rt.logger)
	streamServer := websocket.NewServer(rt.sessions, nil, rt.logger)

	router.Route("/api/v2", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.CreateSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", sessionHandler.GetSession)
				r.Post("/fragments", sessionHandler.AppendFragment)
				r.Post("/end", sessionHandler.EndSession)
				r.Post("/fail", sessionHandler.FailSession)
				r.With(rt.generateLimit(errorHandler)...).Post("/generate", sessionHandler.Generate)
				r.Get("/graph", sessionHandler.GetGraph)
				r.Get("/ws", streamServer.HandleSession)
			})
		})

		r.Post("/extract", extractHandler.Extract)
	})

	return router
}

func (rt *Router) generateLimit(errorHandler *errors.ErrorHandler) []func(http.Handler) http.Handler {
	if rt.cfg.GenerateLimiter == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{
		middleware.RateLimit(rt.cfg.GenerateLimiter, errorHandler, rt.logger),
	}
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	common.RespondRaw(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck reports whether new sessions can be accepted
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if !rt.sessions.Accepting() {
		common.RespondRaw(w, http.StatusServiceUnavailable, map[string]string{"status": "saturated"})
		return
	}
	common.RespondRaw(w, http.StatusOK, map[string]string{"status": "ready"})
}

// versionMiddleware adds API version headers to all responses
func versionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("X-API-Version", "v2")
		}
		next.ServeHTTP(w, r)
	})
}
