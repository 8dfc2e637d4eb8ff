package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/showfolio/chat/internal/api/middleware"
	"github.com/showfolio/chat/internal/handlers"
	"github.com/showfolio/chat/internal/realtime"
	"github.com/showfolio/chat/internal/store"
)

// NewRouter creates and configures the HTTP router. redisClient may be nil;
// rate limiting is then disabled.
func NewRouter(logger zerolog.Logger, dataStore store.DataStore, publisher *realtime.Publisher, hub *realtime.Hub, redisClient *redis.Client) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024)) // 8KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	limiter := middleware.NewRateLimiter(redisClient, logger)
	r.Use(limiter.Middleware)

	// CORS - the gallery frontend is served from its own origin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Create handler and auth middleware
	h := handlers.NewHandler(dataStore, publisher, hub, logger)
	auth := middleware.NewAuthMiddleware(dataStore)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/users/{id}", h.Who)
	r.Get("/projects/{id}", h.GetProject)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Get("/conversations", h.ListConversations)
		r.Get("/conversations/resolve", h.ResolveConversation)
		r.Get("/conversations/{id}/messages", h.GetHistory)
		r.Post("/messages", h.SendMessage)
		r.Post("/messages/{id}/read", h.MarkRead)
		r.Get("/ws", h.Subscribe)
	})

	return r
}
