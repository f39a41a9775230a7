package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/segfault/civicgrid/backend/internal/config"
	"github.com/segfault/civicgrid/backend/internal/domain"
	"github.com/segfault/civicgrid/backend/internal/generator"
	"github.com/segfault/civicgrid/backend/internal/graph"
	"github.com/segfault/civicgrid/backend/internal/logging"
	"github.com/segfault/civicgrid/backend/internal/repository"
	"github.com/segfault/civicgrid/backend/internal/service"
)

func main() {
	var (
		datasetDir = flag.String("dataset-dir", "./data", "Directory containing nodes.json, edges.json and issues.json")
		osmBBox    = flag.String("osm-bbox", "", "Fetch a road network from the Overpass API instead: minLat,minLng,maxLat,maxLng")
		workers    = flag.Int("workers", 4, "Number of concurrent workers for loading")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With("component", "ingest")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Graph.URI == "" {
		logger.Error("GRAPH_URI is required")
		os.Exit(1)
	}
	client, err := graph.NewNeo4jClient(ctx, graph.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	})
	if err != nil {
		logger.Error("failed to create graph client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			logger.Warn("closing graph client failed", "error", err)
		}
	}()

	graphStore := repository.NewGraphStore(client)
	issueStore := repository.NewIssueStore(client)
	loader := service.NewBulkLoader(graphStore, issueStore, *workers)

	started := time.Now()

	var nodes []domain.Node
	var edges []domain.Edge
	var issues []domain.Issue

	if *osmBBox != "" {
		bbox, err := parseBBox(*osmBBox)
		if err != nil {
			logger.Error("invalid osm-bbox", "error", err)
			os.Exit(1)
		}
		nodes, edges, err = fetchOSMNetwork(ctx, bbox)
		if err != nil {
			logger.Error("overpass fetch failed", "error", err)
			os.Exit(1)
		}
		logger.Info("fetched road network from overpass", "nodes", len(nodes), "edges", len(edges))
	} else {
		nodes, edges, issues, err = loadDataset(*datasetDir)
		if err != nil {
			logger.Error("failed to load dataset", "error", err, "dir", *datasetDir)
			os.Exit(1)
		}
		logger.Info("loaded seed dataset", "nodes", len(nodes), "edges", len(edges), "issues", len(issues))
	}

	idMap, err := loader.LoadNodes(ctx, nodes)
	if err != nil {
		logger.Error("node loading reported errors", "error", err)
		var taskErr *service.TaskError
		if !errors.As(err, &taskErr) {
			os.Exit(1)
		}
	}

	if err := loader.LoadEdges(ctx, edges, idMap); err != nil {
		logger.Error("edge loading reported errors", "error", err)
		var taskErr *service.TaskError
		if !errors.As(err, &taskErr) {
			os.Exit(1)
		}
	}

	if len(issues) > 0 {
		if err := loader.LoadIssues(ctx, issues); err != nil {
			logger.Error("issue loading reported errors", "error", err)
			var taskErr *service.TaskError
			if !errors.As(err, &taskErr) {
				os.Exit(1)
			}
		}
	}

	logger.Info("ingestion complete",
		"nodes", len(nodes),
		"edges", len(edges),
		"issues", len(issues),
		"duration", time.Since(started).String(),
	)
}

func loadDataset(dir string) ([]domain.Node, []domain.Edge, []domain.Issue, error) {
	var nodeSeeds []generator.NodeSeed
	if err := readJSON(filepath.Join(dir, "nodes.json"), &nodeSeeds); err != nil {
		return nil, nil, nil, err
	}
	var edgeSeeds []generator.EdgeSeed
	if err := readJSON(filepath.Join(dir, "edges.json"), &edgeSeeds); err != nil {
		return nil, nil, nil, err
	}

	// issues.json is optional; a pure road-network import has none.
	var issueSeeds []generator.IssueSeed
	issuesPath := filepath.Join(dir, "issues.json")
	if _, err := os.Stat(issuesPath); err == nil {
		if err := readJSON(issuesPath, &issueSeeds); err != nil {
			return nil, nil, nil, err
		}
	}

	nodes := make([]domain.Node, 0, len(nodeSeeds))
	for _, seed := range nodeSeeds {
		nodes = append(nodes, domain.Node{
			ID:        seed.ID,
			OSMID:     seed.OSMID,
			Latitude:  seed.Latitude,
			Longitude: seed.Longitude,
		})
	}

	edges := make([]domain.Edge, 0, len(edgeSeeds))
	for _, seed := range edgeSeeds {
		edges = append(edges, domain.Edge{
			ID:          seed.ID,
			StartNodeID: seed.StartNodeID,
			EndNodeID:   seed.EndNodeID,
			Distance:    seed.Distance,
			BaseCost:    seed.Distance,
			Penalty:     1.0,
		})
	}

	issues := make([]domain.Issue, 0, len(issueSeeds))
	for _, seed := range issueSeeds {
		issues = append(issues, domain.Issue{
			ID:        seed.ID,
			Title:     seed.Title,
			Type:      seed.IssueType,
			Status:    seed.Status,
			Latitude:  seed.Latitude,
			Longitude: seed.Longitude,
			Severity:  seed.Severity,
			CreatedAt: seed.CreatedAt,
		})
	}

	return nodes, edges, issues, nil
}

func readJSON(path string, dest any) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
