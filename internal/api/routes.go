package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/incosense/incosense/internal/ratelimit"
)

// RouteOptions carries the optional pieces of the router.
type RouteOptions struct {
	// AllowedOrigins for browser form posts from other origins.
	AllowedOrigins []string
	// Limiter throttles POST /subscriptions; nil disables throttling.
	Limiter *ratelimit.Limiter
	// Health serves /health/ready; nil leaves the route unregistered.
	Health *HealthChecker
}

// SetupRoutes configures all routes.
func SetupRoutes(h *Handlers, opts RouteOptions) *chi.Mux {
	r := chi.NewRouter()

	// The peer is captured before RealIP trusts client-supplied headers.
	r.Use(ratelimit.CapturePeer)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Server-Identity", "incosense-server")
			next.ServeHTTP(w, req)
		})
	})

	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			ExposedHeaders: []string{"Retry-After", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/", h.Root)
	r.Get("/healthcheck", h.HealthCheck)
	if opts.Health != nil {
		r.Get("/health/ready", opts.Health.HandleReadiness)
	}
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if opts.Limiter != nil {
			r.Use(opts.Limiter.Middleware)
		}
		r.Post("/subscriptions", h.PostSubscription)
	})

	return r
}
