package generator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/segfault/civicgrid/backend/internal/domain"
	"github.com/segfault/civicgrid/backend/internal/geo"
)

// NodeSeed is the on-disk form of a road node.
type NodeSeed struct {
	ID        string  `json:"id"`
	OSMID     string  `json:"osmId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// EdgeSeed is the on-disk form of a directed road edge.
type EdgeSeed struct {
	ID          string  `json:"id"`
	StartNodeID string  `json:"startNodeId"`
	EndNodeID   string  `json:"endNodeId"`
	Distance    float64 `json:"distance"`
}

// IssueSeed is the on-disk form of a reported issue snapshot.
type IssueSeed struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	IssueType string    `json:"issueType"`
	Status    string    `json:"status"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Severity  int       `json:"severity"`
	CreatedAt time.Time `json:"createdAt"`
}

// Dataset contains the generated road network and issues.
type Dataset struct {
	Nodes  []NodeSeed  `json:"nodes"`
	Edges  []EdgeSeed  `json:"edges"`
	Issues []IssueSeed `json:"issues"`
}

// Generator produces a synthetic lattice road network with issues scattered
// over it, sized for load-testing the routing and caching paths.
type Generator struct {
	cfg  Config
	rand *rand.Rand
}

var issueTypes = []string{
	domain.IssuePothole,
	domain.IssueRoadDamage,
	domain.IssueDrainageBlocked,
	domain.IssueSewageOverflow,
	domain.IssueOpenManhole,
	domain.IssueTreeFall,
	domain.IssueTrafficLightFault,
	domain.IssueBrokenFootpath,
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	defaults := DefaultConfig()
	if cfg.Rows <= 1 {
		cfg.Rows = defaults.Rows
	}
	if cfg.Cols <= 1 {
		cfg.Cols = defaults.Cols
	}
	if cfg.SpacingDeg <= 0 {
		cfg.SpacingDeg = defaults.SpacingDeg
	}
	if cfg.NumIssues < 0 {
		cfg.NumIssues = defaults.NumIssues
	}
	if cfg.ResolvedChance < 0 || cfg.ResolvedChance > 1 {
		cfg.ResolvedChance = defaults.ResolvedChance
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:  cfg,
		rand: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Generate synthesises the dataset. It respects context cancellation.
func (g *Generator) Generate(ctx context.Context) (Dataset, error) {
	nodes := make([]NodeSeed, 0, g.cfg.Rows*g.cfg.Cols)
	nodeAt := make(map[[2]int]NodeSeed, g.cfg.Rows*g.cfg.Cols)

	for row := 0; row < g.cfg.Rows; row++ {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}
		for col := 0; col < g.cfg.Cols; col++ {
			node := NodeSeed{
				ID:        uuid.NewString(),
				OSMID:     fmt.Sprintf("synth-%d-%d", row, col),
				Latitude:  g.cfg.OriginLat + float64(row)*g.cfg.SpacingDeg,
				Longitude: g.cfg.OriginLng + float64(col)*g.cfg.SpacingDeg,
			}
			nodes = append(nodes, node)
			nodeAt[[2]int{row, col}] = node
		}
	}

	var edges []EdgeSeed
	appendPair := func(a, b NodeSeed) {
		dist := geo.Distance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
		edges = append(edges,
			EdgeSeed{ID: uuid.NewString(), StartNodeID: a.ID, EndNodeID: b.ID, Distance: dist},
			EdgeSeed{ID: uuid.NewString(), StartNodeID: b.ID, EndNodeID: a.ID, Distance: dist},
		)
	}

	for row := 0; row < g.cfg.Rows; row++ {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}
		for col := 0; col < g.cfg.Cols; col++ {
			node := nodeAt[[2]int{row, col}]
			if col+1 < g.cfg.Cols {
				appendPair(node, nodeAt[[2]int{row, col + 1}])
			}
			if row+1 < g.cfg.Rows {
				appendPair(node, nodeAt[[2]int{row + 1, col}])
			}
		}
	}

	issues := make([]IssueSeed, 0, g.cfg.NumIssues)
	now := time.Now().UTC()
	for i := 0; i < g.cfg.NumIssues; i++ {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}

		// Drop issues near nodes so most of them actually touch the network.
		anchor := nodes[g.rand.Intn(len(nodes))]
		jitter := g.cfg.SpacingDeg / 10

		issueType := issueTypes[g.rand.Intn(len(issueTypes))]
		status := domain.StatusPending
		if g.rand.Float64() < g.cfg.ResolvedChance {
			status = domain.StatusResolved
		} else if g.rand.Float64() < 0.2 {
			status = domain.StatusInProgress
		}

		issues = append(issues, IssueSeed{
			ID:        uuid.NewString(),
			Title:     fmt.Sprintf("%s report #%d", issueType, i+1),
			IssueType: issueType,
			Status:    status,
			Latitude:  anchor.Latitude + (g.rand.Float64()-0.5)*jitter,
			Longitude: anchor.Longitude + (g.rand.Float64()-0.5)*jitter,
			Severity:  g.rand.Intn(6), // 0 means not assessed
			CreatedAt: now.Add(-time.Duration(g.rand.Intn(90*24)) * time.Hour),
		})
	}

	return Dataset{Nodes: nodes, Edges: edges, Issues: issues}, nil
}
