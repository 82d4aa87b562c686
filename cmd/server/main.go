package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/routesync/internal/server/handlers"
	"github.com/iudanet/routesync/internal/server/jwt"
	"github.com/iudanet/routesync/internal/server/middleware"
	"github.com/iudanet/routesync/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 720 * time.Hour

	shutdownTimeout = 10 * time.Second
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	addr := flag.String("addr", envOr("ROUTESYNC_ADDR", ":8080"), "Listen address")
	dbPath := flag.String("db", envOr("ROUTESYNC_DB", "routesync-server.db"), "Path to SQLite database")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	jwtSecret := os.Getenv("ROUTESYNC_JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("ROUTESYNC_JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(ctx, *dbPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	tokens := jwt.NewService(jwtSecret, accessTokenTTL, refreshTokenTTL)

	authHandler := handlers.NewAuthHandler(logger, store, store, tokens)
	operationsHandler := handlers.NewOperationsHandler(logger, store)
	healthHandler := handlers.NewHealthHandler(logger)

	authMiddleware := middleware.AuthMiddleware(logger, tokens)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", authHandler.Refresh)
	mux.Handle("POST /api/v1/auth/logout", authMiddleware(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("/api/v1/operations", authMiddleware(http.HandlerFunc(operationsHandler.HandleOperations)))
	mux.HandleFunc("GET /health", healthHandler.Health)

	// на auth эндпоинты лимит жестче: защита от перебора паролей
	rateLimited := middleware.RateLimitByPathMiddleware(
		[]middleware.PathRateLimit{
			{Path: "/api/v1/auth/register", Rate: 10, Window: time.Minute},
			{Path: "/api/v1/auth/login", Rate: 10, Window: time.Minute},
		},
		100, time.Minute, logger,
	)(mux)

	handler := middleware.RecoveryMiddleware(logger)(
		middleware.LoggingWithSkip(logger, []string{"/health"})(
			rateLimited,
		),
	)

	server := &http.Server{
		Addr:              *addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", *addr, "version", Version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// фоновая чистка истекших refresh токенов
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				deleted, err := store.DeleteExpiredTokens(ctx)
				if err != nil {
					logger.Warn("failed to delete expired tokens", "error", err)
					continue
				}
				if deleted > 0 {
					logger.Info("expired refresh tokens deleted", "count", deleted)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	<-ctx.Done()

	logger.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func printVersion() {
	fmt.Printf("RouteSync Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
