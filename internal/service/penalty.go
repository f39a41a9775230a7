package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segfault/civicgrid/backend/internal/domain"
	"github.com/segfault/civicgrid/backend/internal/metrics"
)

// PenaltyTable maps issue types to base cost multipliers. Injected rather
// than hard-coded so deployments and tests can tune routing sensitivity.
type PenaltyTable map[string]float64

// DefaultPenaltyTable returns the standard multipliers per issue type.
func DefaultPenaltyTable() PenaltyTable {
	return PenaltyTable{
		domain.IssuePothole:           1.5,
		domain.IssueRoadDamage:        5.0,
		domain.IssueDrainageBlocked:   3.0,
		domain.IssueSewageOverflow:    4.0,
		domain.IssueOpenManhole:       8.0,
		domain.IssueTreeFall:          10.0,
		domain.IssueTrafficLightFault: 2.0,
		domain.IssueBrokenFootpath:    1.2,
	}
}

// Multiplier computes the penalty an issue of the given type and severity
// imposes. Types absent from the table yield exactly 1.0 and so never
// affect routing. Severity 3 is neutral; severity 0 means "not assessed"
// and applies no severity scaling.
func (t PenaltyTable) Multiplier(issueType string, severity int) float64 {
	base, ok := t[issueType]
	if !ok {
		return 1.0
	}
	if severity > 0 {
		return base * float64(severity) / 3.0
	}
	return base
}

// PenaltyStore is the graph-store contract the penalty engine writes
// through. BulkUpdateEdgePenalty must only raise penalties, never lower
// them, so overlapping issues keep the worst penalty.
type PenaltyStore interface {
	ListEdges(ctx context.Context) ([]domain.Edge, error)
	FindNodesNear(ctx context.Context, lat, lng, radiusDeg float64) ([]domain.Node, error)
	ResetAllPenalties(ctx context.Context) error
	BulkUpdateEdgePenalty(ctx context.Context, edgeIDs []string, penalty float64) error
}

// ActiveIssueSource lists the non-resolved issues that drive penalties.
type ActiveIssueSource interface {
	ListActiveIssues(ctx context.Context) ([]domain.Issue, error)
}

// PenaltyEngine translates active issues into edge cost multipliers. Each
// run is a full recompute: reset to baseline, then apply every issue. The
// final state depends only on the current issue set, so reruns are
// idempotent and processing order does not matter.
type PenaltyEngine struct {
	store     PenaltyStore
	issues    ActiveIssueSource
	table     PenaltyTable
	logger    *slog.Logger
	radiusDeg float64
}

// NewPenaltyEngine constructs a PenaltyEngine. radiusDeg is the node search
// window around each issue, roughly 20 m at the default 0.0002.
func NewPenaltyEngine(store PenaltyStore, issues ActiveIssueSource, table PenaltyTable, logger *slog.Logger, radiusDeg float64) *PenaltyEngine {
	if table == nil {
		table = DefaultPenaltyTable()
	}
	if radiusDeg <= 0 {
		radiusDeg = 0.0002
	}
	return &PenaltyEngine{
		store:     store,
		issues:    issues,
		table:     table,
		logger:    logger,
		radiusDeg: radiusDeg,
	}
}

// Recalculate recomputes every edge penalty from the current active issue
// set. Per-issue failures are logged and skipped; only the reset and the
// issue listing can fail the run as a whole.
func (e *PenaltyEngine) Recalculate(ctx context.Context) error {
	started := time.Now()

	if err := e.store.ResetAllPenalties(ctx); err != nil {
		return fmt.Errorf("reset penalties: %w", err)
	}

	issues, err := e.issues.ListActiveIssues(ctx)
	if err != nil {
		return fmt.Errorf("list active issues: %w", err)
	}

	edgesByNode, err := e.edgeIndex(ctx)
	if err != nil {
		return fmt.Errorf("index edges: %w", err)
	}

	applied := 0
	for _, issue := range issues {
		penalty := e.table.Multiplier(issue.Type, issue.Severity)
		if penalty <= 1.0 {
			continue
		}

		nodes, err := e.store.FindNodesNear(ctx, issue.Latitude, issue.Longitude, e.radiusDeg)
		if err != nil {
			e.logger.Warn("spatial lookup failed, skipping issue", "issueId", issue.ID, "error", err)
			continue
		}
		if len(nodes) == 0 {
			continue
		}

		edgeIDs := e.incidentEdges(edgesByNode, nodes)
		if len(edgeIDs) == 0 {
			continue
		}

		if err := e.store.BulkUpdateEdgePenalty(ctx, edgeIDs, penalty); err != nil {
			e.logger.Warn("penalty update failed, skipping issue", "issueId", issue.ID, "error", err)
			continue
		}
		applied++

		e.logger.Debug("applied issue penalty",
			"issueId", issue.ID,
			"issueType", issue.Type,
			"penalty", penalty,
			"edges", len(edgeIDs),
		)
	}

	metrics.PenaltyRunDuration.Observe(time.Since(started).Seconds())
	metrics.PenaltyLastRun.SetToCurrentTime()

	e.logger.Info("penalty recalculation complete",
		"activeIssues", len(issues),
		"appliedIssues", applied,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return nil
}

// edgeIndex maps node id to the ids of edges incident to it, as start or
// end, from a single edge listing.
func (e *PenaltyEngine) edgeIndex(ctx context.Context) (map[string][]string, error) {
	edges, err := e.store.ListEdges(ctx)
	if err != nil {
		return nil, err
	}

	index := make(map[string][]string, len(edges))
	for _, edge := range edges {
		index[edge.StartNodeID] = append(index[edge.StartNodeID], edge.ID)
		if edge.EndNodeID != edge.StartNodeID {
			index[edge.EndNodeID] = append(index[edge.EndNodeID], edge.ID)
		}
	}
	return index, nil
}

func (e *PenaltyEngine) incidentEdges(edgesByNode map[string][]string, nodes []domain.Node) []string {
	seen := make(map[string]struct{})
	var edgeIDs []string
	for _, node := range nodes {
		for _, edgeID := range edgesByNode[node.ID] {
			if _, ok := seen[edgeID]; ok {
				continue
			}
			seen[edgeID] = struct{}{}
			edgeIDs = append(edgeIDs, edgeID)
		}
	}
	return edgeIDs
}
