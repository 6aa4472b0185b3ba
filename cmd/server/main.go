// Luna - digital breakup cleanup server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/lovecleanup/internal/agent"
	"github.com/ashureev/lovecleanup/internal/api"
	"github.com/ashureev/lovecleanup/internal/cleanup"
	"github.com/ashureev/lovecleanup/internal/config"
	"github.com/ashureev/lovecleanup/internal/confirm"
	"github.com/ashureev/lovecleanup/internal/identity"
	"github.com/ashureev/lovecleanup/internal/middleware"
	"github.com/ashureev/lovecleanup/internal/provider"
	"github.com/ashureev/lovecleanup/internal/realtime"
	"github.com/ashureev/lovecleanup/internal/responder"
	"github.com/ashureev/lovecleanup/internal/session"
	"github.com/ashureev/lovecleanup/internal/store"
	"github.com/ashureev/lovecleanup/internal/stream"
	"github.com/ashureev/lovecleanup/web"
)

const providerInitTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "providers", len(cfg.Providers))

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Provider chain. Backends that fail to initialize are skipped, the
	// local responder always answers.
	descriptors, err := provider.Build(cfg.Providers, &http.Client{}, logger)
	if err != nil {
		slog.Error("Failed to build providers", "error", err)
		os.Exit(1)
	}
	chain := provider.NewChain(descriptors, provider.Options{
		AttemptTimeout: cfg.AttemptTimeout,
		Fallback:       responder.New(nil),
		Logger:         logger,
	})
	initCtx, cancelInit := context.WithTimeout(context.Background(), providerInitTimeout)
	if err := chain.Init(initCtx); err != nil {
		slog.Warn("Provider initialization interrupted", "error", err)
	}
	cancelInit()
	for _, b := range chain.Backends() {
		slog.Info("Provider registered", "name", b.Name, "priority", b.Priority, "state", b.Readiness)
	}

	// Initialize services.
	svc := agent.NewService(
		chain,
		session.NewRegistry(cfg.Session.RequestLimit, cfg.Session.HistoryWindow),
		stream.New(cfg.Stream.MinDelay, cfg.Stream.MaxDelay, nil),
		repo,
		logger,
	)

	conversationLogger, err := agent.NewConversationLogger(agent.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}

	// Initialize handlers. The agent handler owns the conversation logger
	// and the service and closes both.
	agentHandler := agent.NewHandler(svc, conversationLogger, cfg)
	defer agentHandler.Close()

	cleanupHandler := api.NewCleanupHandler(
		repo,
		cleanup.NewScanner(cfg.CleanupDelayScale, nil),
		cleanup.NewExecutor(cfg.CleanupDelayScale, logger),
		confirm.NewRegistry(),
		agentHandler,
	)
	accountHandler := api.NewAccountHandler(repo, cfg)
	healthHandler := api.NewHealthHandler(repo)

	sm := realtime.NewSessionManager()
	wsHandler := realtime.NewWebSocketHandler(svc, agentHandler, repo, sm, conversationLogger, cfg.FrontendURL, cfg.IsDevelopment())

	spa, err := web.SPAHandler()
	if err != nil {
		slog.Error("Failed to load embedded frontend", "error", err)
		os.Exit(1)
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(middleware.Origins(cfg.FrontendURL)))

	// Public routes.
	healthHandler.RegisterHealth(r)

	// Everything else resolves an anonymous identity first.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

		accountHandler.RegisterRoutes(r)
		agentHandler.RegisterRoutes(r)
		cleanupHandler.RegisterRoutes(r)

		// WebSocket endpoint.
		r.Get("/ws/chat", wsHandler.ServeHTTP)
	})

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", spa)

	// Note: SSE connections require long timeouts (no WriteTimeout).
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout for SSE support
		IdleTimeout:  120 * time.Second,
	}

	// Start TTL worker.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agent.StartTTLWorker(ctx, svc, repo, cfg.SessionTTL, 0, func(now time.Time) {
		cleanupHandler.PruneConfirmations(cfg.SessionTTL, now)
	})
	slog.Info("TTL worker started", "session_ttl", cfg.SessionTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked sockets are not tracked by Shutdown.
	sm.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
