// Package app wires the analytics backend's storage, buffer, credential,
// and domain-service layers into a runnable Application shared by the API
// server and the drain worker binaries.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pulsewire/pulse/internal/app/accounts"
	"github.com/pulsewire/pulse/internal/app/analytics"
	"github.com/pulsewire/pulse/internal/app/auth"
	"github.com/pulsewire/pulse/internal/app/httpapi"
	"github.com/pulsewire/pulse/internal/app/ingest"
	"github.com/pulsewire/pulse/internal/app/live"
	"github.com/pulsewire/pulse/internal/app/metrics"
	"github.com/pulsewire/pulse/internal/app/projects"
	"github.com/pulsewire/pulse/internal/app/rollup"
	"github.com/pulsewire/pulse/internal/app/storage/postgres"
	"github.com/pulsewire/pulse/internal/app/system"
	"github.com/pulsewire/pulse/internal/app/tickets"
	"github.com/pulsewire/pulse/internal/app/worker"
	"github.com/pulsewire/pulse/internal/config"
	"github.com/pulsewire/pulse/internal/platform/buffer"
	"github.com/pulsewire/pulse/internal/platform/database"
	"github.com/pulsewire/pulse/internal/platform/migrations"
	"github.com/pulsewire/pulse/internal/platform/redisclient"
	"github.com/pulsewire/pulse/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// Application holds every constructed component shared by the serving and
// draining binaries, plus the lifecycle Manager that starts/stops them.
type Application struct {
	Config *config.Config
	Log    *logger.Logger

	DB    *sqlx.DB
	Redis *redis.Client

	Store       *postgres.Store
	Buffer      buffer.Buffer
	Broker      *live.Broker
	Hub         *live.Hub
	Tickets     *tickets.Authenticator
	Credentials *auth.CredentialStore
	Tokens      *auth.TokenManager
	IPHasher    *auth.IPHasher

	Accounts  *accounts.Service
	Projects  *projects.Service
	Ingest    *ingest.Coordinator
	Rollup    *rollup.Engine
	Analytics *analytics.Engine
	Worker    *worker.Worker

	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	Manager *system.Manager
}

// New constructs every component against cfg. Callers choose which services
// to register with the returned Manager (the API server registers the HTTP
// service, the drain worker registers the worker service).
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("pulse")
	}

	db, err := database.Open(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrations.Apply(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	redisClient, err := redisclient.Open(ctx, cfg.Redis.URL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open redis: %w", err)
	}

	store := postgres.New(db)
	buf := buffer.New(redisClient, cfg.Redis.StreamName, cfg.Redis.ConsumerGroup)
	broker := live.NewBroker(redisClient, log)
	hub := live.NewHub(broker, log)
	ticketAuth := tickets.NewAuthenticator(redisClient, cfg.Auth.TicketTTL)
	credentials := auth.NewCredentialStore(redisClient, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL, cfg.Auth.LockoutThreshold, cfg.Auth.LockoutWindow)
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret)
	ipHasher := auth.NewIPHasher(cfg.Auth.IPHashSecret)

	accountsSvc := accounts.New(store, store, credentials, tokenManager, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL, log)
	projectsSvc := projects.New(store, store, log)
	ingestCoordinator := ingest.New(store, store, buf, ipHasher, log)
	rollupEngine := rollup.New(store, store, log)
	analyticsEngine := analytics.New(store, store)

	registry := prometheus.NewRegistry()
	appMetrics := metrics.New(registry)

	drainWorker := worker.New(buf, store, rollupEngine, broker, cfg.Redis.ConsumeBlock, cfg.Worker.RollupInterval, log)

	return &Application{
		Config:      cfg,
		Log:         log,
		DB:          db,
		Redis:       redisClient,
		Store:       store,
		Buffer:      buf,
		Broker:      broker,
		Hub:         hub,
		Tickets:     ticketAuth,
		Credentials: credentials,
		Tokens:      tokenManager,
		IPHasher:    ipHasher,
		Accounts:    accountsSvc,
		Projects:    projectsSvc,
		Ingest:      ingestCoordinator,
		Rollup:      rollupEngine,
		Analytics:   analyticsEngine,
		Worker:      drainWorker,
		Metrics:     appMetrics,
		Registry:    registry,
		Manager:     system.NewManager(log),
	}, nil
}

// Close releases the database and Redis connections. Call after the Manager
// has stopped every registered service.
func (a *Application) Close() error {
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	return nil
}

// HTTPServer wraps *http.Server as a system.Service so it can be registered
// with the lifecycle Manager alongside the drain worker.
type HTTPServer struct {
	server *http.Server
	log    *logger.Logger
	grace  time.Duration
}

// NewHTTPServer builds the router from the Application's wired components
// and wraps it in an http.Server bound to cfg.Server.Addr.
func (a *Application) NewHTTPServer() *HTTPServer {
	handler := httpapi.New(httpapi.Deps{
		Accounts:    a.Accounts,
		Projects:    a.Projects,
		Analytics:   a.Analytics,
		Ingest:      a.Ingest,
		Tokens:      a.Tokens,
		Tickets:     a.Tickets,
		Live:        a.Hub,
		Metrics:     a.Metrics,
		DB:          a.DB,
		Redis:       a.Redis,
		RateLimit:   a.Config.RateLimit,
		CORSOrigins: a.Config.Server.CORSOrigins,
		Log:         a.Log,
	})

	return &HTTPServer{
		server: &http.Server{
			Addr:         a.Config.Server.Addr,
			Handler:      handler,
			ReadTimeout:  a.Config.Server.ReadTimeout,
			WriteTimeout: a.Config.Server.WriteTimeout,
		},
		log:   a.Log,
		grace: a.Config.Server.ShutdownGrace,
	}
}

func (s *HTTPServer) Name() string { return "http-server" }

func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("http server error: %v", err)
		}
	}()
	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.grace)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
