// TripCraft - Conversational Itinerary Editing Server
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

	"github.com/tripcraft/tripcraft/internal/api"
	"github.com/tripcraft/tripcraft/internal/chat"
	"github.com/tripcraft/tripcraft/internal/config"
	"github.com/tripcraft/tripcraft/internal/edit"
	"github.com/tripcraft/tripcraft/internal/identity"
	"github.com/tripcraft/tripcraft/internal/live"
	"github.com/tripcraft/tripcraft/internal/middleware"
	"github.com/tripcraft/tripcraft/internal/parser"
	"github.com/tripcraft/tripcraft/internal/store"
)

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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

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

	// Assemble the intent-parsing chain. Oracles are tried in order; the
	// heuristic parser is always last so a parse result always exists
	// unless every oracle is down.
	var parsers []parser.IntentParser
	if cfg.NLP.ServiceURL != "" {
		client, err := parser.NewClient(parser.ClientConfig{
			BaseURL:        cfg.NLP.ServiceURL,
			ConnectTimeout: cfg.NLP.ConnectTimeout,
			RequestTimeout: cfg.NLP.RequestTimeout,
		}, logger)
		if err != nil {
			slog.Warn("NLP service unreachable, continuing without it", "url", cfg.NLP.ServiceURL, "error", err)
		} else {
			parsers = append(parsers, client)
			slog.Info("NLP service connected", "url", cfg.NLP.ServiceURL)
		}
	}
	if cfg.OpenAI.APIKey != "" {
		parsers = append(parsers, parser.NewOpenAIParser(parser.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
			Timeout: cfg.NLP.RequestTimeout,
		}, logger))
		slog.Info("OpenAI parser enabled", "model", cfg.OpenAI.Model)
	}
	parsers = append(parsers, parser.NewHeuristic())

	chain := parser.NewFallback(logger, cfg.NLP.RequestTimeout, parsers...)
	intents := parser.NewCached(chain, cfg.ParseCacheTTL, 2*cfg.ParseCacheTTL)

	// Initialize services.
	applier := edit.NewApplier(logger)
	ledger := edit.NewLedger(repo)
	hub := live.NewHub(cfg.FrontendURL, cfg.IsDevelopment())
	svc := chat.NewService(repo, intents, applier, ledger, hub, logger)

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, cfg.FrontendURL)
	chatHandler := chat.NewHandler(svc, cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	allowedOrigins := []string{"*"}
	if cfg.FrontendURL != "" {
		allowedOrigins = []string{cfg.FrontendURL}
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(allowedOrigins))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	// Routes.
	r.Get("/api/health", baseHandler.Health)
	baseHandler.RegisterRoutes(r)
	chatHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/itineraries/{itineraryID}", hub.ServeHTTP)

	// Create server.
	// Note: websocket streams stay open indefinitely, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start session sweeper.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chat.StartSessionSweeper(ctx, repo, cfg.SessionTTL)

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

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
