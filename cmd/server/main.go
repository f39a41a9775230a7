package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/segfault/civicgrid/backend/internal/cache"
	"github.com/segfault/civicgrid/backend/internal/config"
	"github.com/segfault/civicgrid/backend/internal/graph"
	"github.com/segfault/civicgrid/backend/internal/logging"
	"github.com/segfault/civicgrid/backend/internal/repository"
	"github.com/segfault/civicgrid/backend/internal/server"
	"github.com/segfault/civicgrid/backend/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	graphClient, err := buildGraphClient(ctx, cfg)
	if err != nil {
		logger.Error("failed to create graph client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := graphClient.Close(context.Background()); err != nil {
			logger.Warn("closing graph client failed", "error", err)
		}
	}()

	cacheStore, err := cache.NewBadgerStore(cache.Config{
		Path:     cfg.Cache.Path,
		InMemory: cfg.Cache.InMemory,
		Logger:   logger.With("component", "cache"),
	})
	if err != nil {
		logger.Error("failed to open cache", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := cacheStore.Close(); err != nil {
			logger.Warn("closing cache failed", "error", err)
		}
	}()

	graphStore := repository.NewGraphStore(graphClient)
	issueStore := repository.NewIssueStore(graphClient)

	pathfinder := service.NewPathfinder(graphStore, logger.With("component", "pathfinder"), cfg.Routing.AverageSpeedKmh)
	penaltyEngine := service.NewPenaltyEngine(
		graphStore,
		issueStore,
		service.DefaultPenaltyTable(),
		logger.With("component", "penalty"),
		cfg.Penalty.SearchRadiusDeg,
	)
	issueCache := service.NewIssueCache(
		cacheStore,
		issueStore,
		logger.With("component", "issue-cache"),
		int(cfg.Cache.GridTTL.Seconds()),
		int(cfg.Cache.SummaryTTL.Seconds()),
	)
	scheduler := service.NewPenaltyScheduler(penaltyEngine, logger.With("component", "scheduler"), cfg.Penalty.Interval)

	schedulerCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	go scheduler.Run(schedulerCtx)

	apiHandlers := server.NewAPIHandlers(logger, pathfinder, issueCache, scheduler)

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.GraphHealthService{Client: graphClient},
		API:              apiHandlers,
		MetricsEnabled:   cfg.HTTP.MetricsEnabled,
		AllowedOrigins:   parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	stopScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildGraphClient(ctx context.Context, cfg config.Config) (graph.Client, error) {
	if cfg.Graph.URI == "" {
		return nil, graph.ErrMissingURI
	}

	opts := graph.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	}
	return graph.NewNeo4jClient(ctx, opts)
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	var origins []string
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
