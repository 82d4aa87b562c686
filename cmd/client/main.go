package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/iudanet/routesync/internal/client/api"
	"github.com/iudanet/routesync/internal/client/auth"
	"github.com/iudanet/routesync/internal/client/cli"
	"github.com/iudanet/routesync/internal/client/diag"
	"github.com/iudanet/routesync/internal/client/executor"
	"github.com/iudanet/routesync/internal/client/iocli"
	"github.com/iudanet/routesync/internal/client/optimistic"
	"github.com/iudanet/routesync/internal/client/pipeline"
	"github.com/iudanet/routesync/internal/client/protection"
	"github.com/iudanet/routesync/internal/client/record"
	"github.com/iudanet/routesync/internal/client/sequence"
	"github.com/iudanet/routesync/internal/client/storage/boltdb"
	syncsvc "github.com/iudanet/routesync/internal/client/sync"
	"github.com/iudanet/routesync/internal/models"
	pkgapi "github.com/iudanet/routesync/pkg/api"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", envOr("ROUTESYNC_SERVER", "http://localhost:8080"), "Server URL")
	dbPath := flag.String("db", envOr("ROUTESYNC_DB", "routesync-client.db"), "Path to local database")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	stdio := iocli.NewStdio()

	args := flag.Args()
	if len(args) == 0 {
		cli.New(stdio, nil, nil, nil, nil, nil).PrintUsage()
		os.Exit(1)
	}
	command := args[0]

	ctx := context.Background()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	store, err := boltdb.New(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	apiClient := api.NewClient(*serverURL)
	authService := auth.NewService(apiClient, store, store, logger)
	coordinator := protection.NewCoordinator(store, logger)

	// Пайплайн отправляет по одной операции, токен берется на момент
	// вызова: между повторами он может обновиться.
	submit := func(ctx context.Context, op *models.Operation) error {
		token, err := authService.AccessToken(ctx)
		if err != nil {
			return err
		}
		wireOp, err := syncsvc.ToWire(op)
		if err != nil {
			return err
		}
		_, err = apiClient.PushOperations(ctx, token, pkgapi.PushRequest{
			Operations: []pkgapi.Operation{wireOp},
		})
		return err
	}
	submitPipeline := pipeline.NewPipeline(submit, logger, pipeline.Config{})
	counter := sequence.NewCounter(store)

	syncService := syncsvc.NewService(apiClient, store, store, store, store, coordinator, submitPipeline, counter, logger)

	remote := diag.RemoteSequencerFunc(func(ctx context.Context) (int64, error) {
		token, err := authService.AccessToken(ctx)
		if err != nil {
			return 0, err
		}
		// интересует только max_sequence, сами операции не тянем
		resp, err := apiClient.PullOperations(ctx, token, math.MaxInt64)
		if err != nil {
			return 0, err
		}
		return resp.MaxSequence, nil
	})
	diagService := diag.NewService(store, store, remote, submitPipeline, counter, logger)

	updates := optimistic.NewManager(logger, optimistic.Config{})
	exec := executor.NewExecutor(store, store, store, submitPipeline, updates, logger)
	recordService := record.NewService(exec, store, counter, coordinator, authService.ClientID, logger)

	app := cli.New(stdio, authService, syncService, diagService, recordService, coordinator)

	if err := app.Run(ctx, command, args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func printVersion() {
	fmt.Printf("RouteSync Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
