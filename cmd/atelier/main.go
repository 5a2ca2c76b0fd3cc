package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atelierhq/atelier/internal/adapter/anthropic"
	"github.com/atelierhq/atelier/internal/adapter/flowrunner"
	athttp "github.com/atelierhq/atelier/internal/adapter/http"
	atnats "github.com/atelierhq/atelier/internal/adapter/nats"
	"github.com/atelierhq/atelier/internal/adapter/otel"
	"github.com/atelierhq/atelier/internal/adapter/postgres"
	"github.com/atelierhq/atelier/internal/adapter/ristretto"
	"github.com/atelierhq/atelier/internal/adapter/ws"
	"github.com/atelierhq/atelier/internal/config"
	"github.com/atelierhq/atelier/internal/logger"
	"github.com/atelierhq/atelier/internal/middleware"
	"github.com/atelierhq/atelier/internal/port/messagequeue"
	"github.com/atelierhq/atelier/internal/resilience"
	"github.com/atelierhq/atelier/internal/service"
	"github.com/atelierhq/atelier/internal/tools"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(logger.New(cfg.Logging))

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"auth_enabled", cfg.Auth.Enabled,
		"default_model", cfg.Anthropic.DefaultModel,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	store := postgres.NewStore(pool)

	cache, err := ristretto.New(cfg.Cache.MaxBytes)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()

	// NATS is optional; an empty URL disables turn-event publication.
	var queue messagequeue.Queue
	if cfg.NATS.URL != "" {
		q, err := atnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = q.Close() }()
		queue = q
		slog.Info("nats connected", "url", cfg.NATS.URL)
	}

	var metrics *otel.Metrics
	if cfg.Telemetry.Enabled {
		shutdown, err := otel.Init(ctx, cfg.Logging.Service, cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
		metrics, err = otel.NewMetrics()
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	// --- Outbound clients ---

	model := anthropic.NewRunner(cfg.Anthropic)

	flows := flowrunner.NewClient(cfg.FlowRunner)
	flows.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	// --- Services ---

	hub := ws.NewHub()

	blocks := service.NewBlockService(store, cache, cfg.Cache.TTL)
	agents := service.NewAgentService(store)
	documents := service.NewDocumentService(store, model, hub, cfg.Anthropic.MaxTokens)
	suggestions := service.NewSuggestionService(store, model, hub, cfg.Suggestions.Model, cfg.Suggestions.MaxTokens)

	registry := tools.NewRegistry(tools.Deps{
		Store:     store,
		Documents: documents,
		Suggester: suggestions,
		Flows:     flows,
	})

	toolSvc := service.NewToolService(store, registry)
	if err := toolSvc.SeedInternal(ctx); err != nil {
		return fmt.Errorf("seed tools: %w", err)
	}

	authSvc := service.NewAuthService(store, cfg.Auth.BcryptCost)

	chats := service.NewChatService(store, model, blocks, agents, registry, hub, queue, metrics,
		service.ChatConfig{
			DefaultModel: cfg.Anthropic.DefaultModel,
			MaxTokens:    cfg.Anthropic.MaxTokens,
		})

	// --- HTTP ---

	rateLimiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := rateLimiter.StartCleanup(5*time.Minute, 15*time.Minute)
	defer stopCleanup()

	handlers := athttp.NewHandlers(chats, documents, suggestions, agents, toolSvc, blocks, pool)
	router := athttp.NewRouter(handlers, hub, authSvc, rateLimiter, *cfg)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No WriteTimeout: turn streams stay open as long as the model runs.
		IdleTimeout: 120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
