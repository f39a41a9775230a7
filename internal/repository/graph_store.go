package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/segfault/civicgrid/backend/internal/domain"
	"github.com/segfault/civicgrid/backend/internal/graph"
)

// GraphStore encapsulates persistence of the road network: nodes, directed
// edges, and the penalty values the routing core reads.
type GraphStore struct {
	client graph.Client
}

// NewGraphStore instantiates a GraphStore backed by the supplied graph client.
func NewGraphStore(client graph.Client) *GraphStore {
	return &GraphStore{client: client}
}

// ListNodes returns every node in the road network.
func (s *GraphStore) ListNodes(ctx context.Context) ([]domain.Node, error) {
	res, err := s.client.ExecuteRead(ctx, listNodesCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}

	nodes := make([]domain.Node, 0, len(res.Records))
	for _, rec := range res.Records {
		nodes = append(nodes, decodeNode(rec))
	}
	return nodes, nil
}

// ListEdges returns every directed edge in the road network.
func (s *GraphStore) ListEdges(ctx context.Context) ([]domain.Edge, error) {
	res, err := s.client.ExecuteRead(ctx, listEdgesCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}

	edges := make([]domain.Edge, 0, len(res.Records))
	for _, rec := range res.Records {
		edges = append(edges, domain.Edge{
			ID:          decodeString(rec, "id"),
			StartNodeID: decodeString(rec, "startNodeId"),
			EndNodeID:   decodeString(rec, "endNodeId"),
			Distance:    decodeFloat(rec, "distance"),
			BaseCost:    decodeFloat(rec, "baseCost"),
			Penalty:     decodeFloat(rec, "penalty"),
		})
	}
	return edges, nil
}

// FindNodesNear returns nodes within a square window of radiusDeg degrees
// around the given coordinate. The window matches the lat/lng range index;
// callers needing true circular distance refine the result themselves.
func (s *GraphStore) FindNodesNear(ctx context.Context, lat, lng, radiusDeg float64) ([]domain.Node, error) {
	if radiusDeg <= 0 {
		return nil, fmt.Errorf("find nodes near: radius must be positive, got %v", radiusDeg)
	}

	params := map[string]any{
		"minLat": lat - radiusDeg,
		"maxLat": lat + radiusDeg,
		"minLng": lng - radiusDeg,
		"maxLng": lng + radiusDeg,
	}
	res, err := s.client.ExecuteRead(ctx, findNodesNearCypher, params)
	if err != nil {
		return nil, fmt.Errorf("find nodes near (%.5f, %.5f): %w", lat, lng, err)
	}

	nodes := make([]domain.Node, 0, len(res.Records))
	for _, rec := range res.Records {
		nodes = append(nodes, decodeNode(rec))
	}
	return nodes, nil
}

// ResetAllPenalties restores every edge penalty to the 1.0 baseline.
func (s *GraphStore) ResetAllPenalties(ctx context.Context) error {
	if _, err := s.client.ExecuteWrite(ctx, resetAllPenaltiesCypher, nil); err != nil {
		return fmt.Errorf("reset penalties: %w", err)
	}
	return nil
}

// BulkUpdateEdgePenalty raises the penalty of the given edges to penalty.
// Edges already carrying a higher or equal penalty are left untouched, so
// overlapping issues keep the worse penalty rather than the last written.
func (s *GraphStore) BulkUpdateEdgePenalty(ctx context.Context, edgeIDs []string, penalty float64) error {
	if len(edgeIDs) == 0 {
		return nil
	}
	if penalty < 1.0 {
		return fmt.Errorf("bulk update penalty: %v is below the 1.0 baseline", penalty)
	}

	params := map[string]any{
		"edgeIds": edgeIDs,
		"penalty": penalty,
	}
	if _, err := s.client.ExecuteWrite(ctx, bulkUpdateEdgePenaltyCypher, params); err != nil {
		return fmt.Errorf("bulk update penalty for %d edges: %w", len(edgeIDs), err)
	}
	return nil
}

// UpsertNode creates the node if its osmId is unseen and returns the stored
// node id either way, deduplicating re-imports of the same source data.
func (s *GraphStore) UpsertNode(ctx context.Context, node domain.Node) (string, error) {
	if node.ID == "" {
		return "", errors.New("node id is required")
	}
	if node.OSMID == "" {
		return "", errors.New("node osmId is required")
	}

	params := map[string]any{
		"id":        node.ID,
		"osmId":     node.OSMID,
		"latitude":  node.Latitude,
		"longitude": node.Longitude,
	}
	res, err := s.client.ExecuteWrite(ctx, upsertNodeCypher, params)
	if err != nil {
		return "", fmt.Errorf("upsert node %s: %w", node.OSMID, err)
	}
	if len(res.Records) == 0 {
		return node.ID, nil
	}
	return decodeString(res.Records[0], "id"), nil
}

// CreateEdge stores a directed edge. Both endpoints must already exist; the
// statement matches them first so a dangling reference is never written.
func (s *GraphStore) CreateEdge(ctx context.Context, edge domain.Edge) error {
	if edge.ID == "" {
		return errors.New("edge id is required")
	}
	if edge.StartNodeID == "" || edge.EndNodeID == "" {
		return errors.New("both start and end node IDs are required")
	}

	baseCost := edge.BaseCost
	if baseCost == 0 {
		baseCost = edge.Distance
	}
	penalty := edge.Penalty
	if penalty < 1.0 {
		penalty = 1.0
	}

	params := map[string]any{
		"id":          edge.ID,
		"startNodeId": edge.StartNodeID,
		"endNodeId":   edge.EndNodeID,
		"distance":    edge.Distance,
		"baseCost":    baseCost,
		"penalty":     penalty,
	}
	if _, err := s.client.ExecuteWrite(ctx, createEdgeCypher, params); err != nil {
		return fmt.Errorf("create edge %s: %w", edge.ID, err)
	}
	return nil
}

func decodeNode(rec graph.Record) domain.Node {
	return domain.Node{
		ID:        decodeString(rec, "id"),
		Latitude:  decodeFloat(rec, "latitude"),
		Longitude: decodeFloat(rec, "longitude"),
		OSMID:     decodeString(rec, "osmId"),
	}
}
