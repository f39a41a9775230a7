package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/segfault/civicgrid/backend/internal/generator"
)

func main() {
	cfg := generator.DefaultConfig()
	var (
		rows           = flag.Int("rows", cfg.Rows, "lattice rows")
		cols           = flag.Int("cols", cfg.Cols, "lattice columns")
		originLat      = flag.Float64("origin-lat", cfg.OriginLat, "latitude of the south-west lattice corner")
		originLng      = flag.Float64("origin-lng", cfg.OriginLng, "longitude of the south-west lattice corner")
		spacing        = flag.Float64("spacing-deg", cfg.SpacingDeg, "distance between adjacent nodes in degrees")
		issues         = flag.Int("issues", cfg.NumIssues, "number of issues to scatter")
		resolvedChance = flag.Float64("resolved-chance", cfg.ResolvedChance, "probability an issue is generated as resolved")
		seed           = flag.Int64("seed", cfg.Seed, "random seed for deterministic generation")
		outputDir      = flag.String("output-dir", "data", "directory to write nodes.json, edges.json and issues.json")
		writeStdout    = flag.Bool("stdout", false, "write combined dataset to stdout instead of files")
	)
	flag.Parse()

	genCfg := generator.Config{
		Rows:           *rows,
		Cols:           *cols,
		OriginLat:      *originLat,
		OriginLng:      *originLng,
		SpacingDeg:     *spacing,
		NumIssues:      *issues,
		ResolvedChance: *resolvedChance,
		Seed:           *seed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	gen := generator.New(genCfg)
	dataset, err := gen.Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	if *writeStdout {
		if err := json.NewEncoder(os.Stdout).Encode(dataset); err != nil {
			fmt.Fprintf(os.Stderr, "encode failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := generator.WriteDataset(dataset, *outputDir); err != nil {
		fmt.Fprintf(os.Stderr, "write failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %d nodes, %d edges, %d issues to %s\n",
		len(dataset.Nodes), len(dataset.Edges), len(dataset.Issues), *outputDir)
}
