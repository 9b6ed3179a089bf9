package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	"github.com/pulsewire/pulse/internal/app/accounts"
	"github.com/pulsewire/pulse/internal/app/analytics"
	"github.com/pulsewire/pulse/internal/app/auth"
	"github.com/pulsewire/pulse/internal/app/ingest"
	"github.com/pulsewire/pulse/internal/app/live"
	"github.com/pulsewire/pulse/internal/app/metrics"
	"github.com/pulsewire/pulse/internal/app/projects"
	"github.com/pulsewire/pulse/internal/app/tickets"
	"github.com/pulsewire/pulse/internal/config"
	"github.com/pulsewire/pulse/pkg/logger"
)

// Deps bundles everything the router needs to build its handlers.
type Deps struct {
	Accounts    *accounts.Service
	Projects    *projects.Service
	Analytics   *analytics.Engine
	Ingest      *ingest.Coordinator
	Tokens      *auth.TokenManager
	Tickets     *tickets.Authenticator
	Live        *live.Hub
	Metrics     *metrics.Metrics
	DB          *sqlx.DB
	Redis       *redis.Client
	RateLimit   config.RateLimitConfig
	CORSOrigins []string
	Log         *logger.Logger
}

// New builds the complete chi router: global middleware, then route groups
// each with their own rate-limit tier (spec §6 "Rate limits", §9 "explicit
// middleware chain").
func New(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault("httpapi")
	}

	r := chi.NewRouter()
	r.Use(recoverMiddleware(log))
	r.Use(requestLogMiddleware(log))
	r.Use(corsMiddleware(d.CORSOrigins))

	authH := &authHandlers{accounts: d.Accounts, tokens: d.Tokens, tickets: d.Tickets}
	projectH := &projectHandlers{projects: d.Projects}
	ingestH := &ingestHandlers{coordinator: d.Ingest, metrics: d.Metrics}
	analyticsH := &analyticsHandlers{analytics: d.Analytics, projects: d.Projects, metrics: d.Metrics}
	wsH := &wsHandlers{hub: d.Live, tickets: d.Tickets, projects: d.Projects, metrics: d.Metrics, log: log}
	healthH := &healthHandlers{db: d.DB, redis: d.Redis}

	requireAuth := authRequired(d.Accounts)
	defaultLimit := rateLimitMiddleware(d.RateLimit.DefaultPerMinute)

	r.Route("/auth", func(r chi.Router) {
		r.With(rateLimitMiddleware(d.RateLimit.RegisterPerMinute)).Post("/register", authH.register)
		r.With(rateLimitMiddleware(d.RateLimit.LoginPerMinute)).Post("/login", authH.login)
		r.With(defaultLimit).Post("/refresh", authH.refresh)
		r.With(defaultLimit, requireAuth).Post("/logout", authH.logout)
		r.With(defaultLimit, requireAuth).Get("/me", authH.me)
		r.With(defaultLimit, requireAuth).Post("/ws-ticket", authH.wsTicket)
	})

	r.Route("/projects", func(r chi.Router) {
		r.Use(defaultLimit, requireAuth)
		r.Post("/", projectH.create)
		r.Get("/", projectH.list)
		r.Post("/{project_id}/rotate-key", projectH.rotateKey)
	})

	r.With(defaultLimit).Post("/events/ingest", ingestH.ingestEvents)

	r.Route("/analytics/{project_id}", func(r chi.Router) {
		r.Use(defaultLimit, requireAuth)
		r.Get("/overview", analyticsH.overview)
		r.Get("/timeseries", analyticsH.timeseries)
		r.Get("/top-events", analyticsH.topEvents)
		r.Get("/sessions", analyticsH.sessions)
		r.Get("/users", analyticsH.users)
	})

	r.Get("/ws/events/{project_id}", wsH.serve)

	r.Get("/healthz", healthH.healthz)
	r.Get("/readyz", healthH.readyz)

	if d.Metrics != nil {
		r.Handle("/metrics", metrics.Handler())
	}

	return r
}
