package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/mchat/internal/middleware"
	"github.com/capitalize-ai/mchat/pkg/logger"
)

// RouterConfig collects the handlers and settings of the HTTP API.
type RouterConfig struct {
	Health        *HealthHandler
	Auth          *AuthHandler
	Session       *SessionHandler
	Conversations *ConversationHandler
	Messages      *MessageHandler
	Stream        *StreamHandler

	Verifier       middleware.TokenVerifier
	AllowedOrigins []string

	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the HTTP API.
func NewRouter(cfg RouterConfig, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Public auth routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
			r.Post("/auth/signup", cfg.Auth.SignUp)
			r.Post("/auth/signin", cfg.Auth.SignIn)
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Verifier))
			r.Use(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

			r.Post("/auth/signout", cfg.Auth.SignOut)
			r.Get("/auth/me", cfg.Auth.Me)

			r.Get("/session", cfg.Session.Snapshot)
			r.Get("/capabilities", cfg.Session.Capabilities)
			r.Get("/templates", cfg.Messages.Templates)

			// Conversations
			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", cfg.Conversations.Create)
				r.Get("/", cfg.Conversations.List)
				r.Post("/load", cfg.Conversations.Load)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", cfg.Conversations.Get)
					r.Post("/select", cfg.Conversations.Select)
					r.Get("/export", cfg.Conversations.Export)
					r.Post("/export", cfg.Conversations.Save)
				})
			})

			// Messages of the active view
			r.Route("/messages", func(r chi.Router) {
				r.Get("/", cfg.Messages.List)
				r.Post("/", cfg.Messages.Send)
				r.Post("/dictate", cfg.Messages.Dictate)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/export", cfg.Messages.Export)
					r.Post("/export", cfg.Messages.Save)
					r.Post("/speak", cfg.Messages.Speak)
				})
			})

			// Streaming
			r.Get("/stream", cfg.Stream.Stream)
			r.Get("/events", cfg.Stream.Events)
		})
	})

	return r
}
