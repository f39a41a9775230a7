package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segfault/civicgrid/backend/internal/domain"
)

type stubWriter struct {
	mu        sync.Mutex
	nodes     []domain.Node
	edges     []domain.Edge
	issues    []domain.Issue
	nodeIDs   map[string]string // osmId -> stored id returned by UpsertNode
	nodeErr   error
	edgeErr   error
	issueErr  error
	failedIDs map[string]bool
}

func (s *stubWriter) UpsertNode(ctx context.Context, node domain.Node) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nodeErr != nil || s.failedIDs[node.ID] {
		if s.nodeErr != nil {
			return "", s.nodeErr
		}
		return "", errors.New("upsert failed for " + node.ID)
	}
	s.nodes = append(s.nodes, node)
	if stored, ok := s.nodeIDs[node.OSMID]; ok {
		return stored, nil
	}
	return node.ID, nil
}

func (s *stubWriter) CreateEdge(ctx context.Context, edge domain.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.edgeErr != nil {
		return s.edgeErr
	}
	s.edges = append(s.edges, edge)
	return nil
}

func (s *stubWriter) CreateIssue(ctx context.Context, issue domain.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.issueErr != nil {
		return s.issueErr
	}
	s.issues = append(s.issues, issue)
	return nil
}

func TestBulkLoader_LoadNodesReturnsIDMap(t *testing.T) {
	writer := &stubWriter{nodeIDs: map[string]string{"osm-2": "existing-node"}}
	loader := NewBulkLoader(writer, writer, 2)

	nodes := []domain.Node{
		{ID: "n1", OSMID: "osm-1", Latitude: 28.60, Longitude: 77.20},
		{ID: "n2", OSMID: "osm-2", Latitude: 28.61, Longitude: 77.21},
	}

	idMap, err := loader.LoadNodes(context.Background(), nodes)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(idMap) != 2 {
		t.Fatalf("expected 2 id mappings, got %d", len(idMap))
	}
	if idMap["n1"] != "n1" {
		t.Fatalf("expected n1 to keep its id, got %s", idMap["n1"])
	}
	if idMap["n2"] != "existing-node" {
		t.Fatalf("expected n2 to map to the deduplicated node, got %s", idMap["n2"])
	}
}

func TestBulkLoader_LoadEdgesRemapsEndpoints(t *testing.T) {
	writer := &stubWriter{}
	loader := NewBulkLoader(writer, writer, 2)

	idMap := map[string]string{"n1": "stored-1", "n2": "stored-2"}
	edges := []domain.Edge{
		{ID: "e1", StartNodeID: "n1", EndNodeID: "n2", Distance: 100, BaseCost: 100},
	}

	if err := loader.LoadEdges(context.Background(), edges, idMap); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(writer.edges) != 1 {
		t.Fatalf("expected 1 edge stored, got %d", len(writer.edges))
	}
	stored := writer.edges[0]
	if stored.StartNodeID != "stored-1" || stored.EndNodeID != "stored-2" {
		t.Fatalf("expected remapped endpoints, got %s -> %s", stored.StartNodeID, stored.EndNodeID)
	}
}

func TestBulkLoader_LoadEdgesReportsUnknownEndpoints(t *testing.T) {
	writer := &stubWriter{}
	loader := NewBulkLoader(writer, writer, 2)

	edges := []domain.Edge{
		{ID: "e1", StartNodeID: "n1", EndNodeID: "missing", Distance: 100},
		{ID: "e2", StartNodeID: "n1", EndNodeID: "n2", Distance: 100},
	}
	idMap := map[string]string{"n1": "n1", "n2": "n2"}

	err := loader.LoadEdges(context.Background(), edges, idMap)
	if err == nil {
		t.Fatal("expected an aggregated error")
	}
	var taskErr *TaskError
	if !errors.As(err, &taskErr) {
		t.Fatalf("expected TaskError, got %T", err)
	}
	if len(taskErr.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(taskErr.Errors))
	}
	// The valid edge still loads.
	if len(writer.edges) != 1 {
		t.Fatalf("expected the valid edge stored, got %d", len(writer.edges))
	}
}

func TestBulkLoader_PartialNodeFailuresAggregate(t *testing.T) {
	writer := &stubWriter{failedIDs: map[string]bool{"n2": true}}
	loader := NewBulkLoader(writer, writer, 2)

	nodes := []domain.Node{
		{ID: "n1", OSMID: "osm-1"},
		{ID: "n2", OSMID: "osm-2"},
		{ID: "n3", OSMID: "osm-3"},
	}

	idMap, err := loader.LoadNodes(context.Background(), nodes)
	if err == nil {
		t.Fatal("expected an aggregated error")
	}
	var taskErr *TaskError
	if !errors.As(err, &taskErr) {
		t.Fatalf("expected TaskError, got %T", err)
	}
	if len(idMap) != 2 {
		t.Fatalf("expected the surviving nodes mapped, got %d", len(idMap))
	}
}

func TestBulkLoader_LoadIssues(t *testing.T) {
	writer := &stubWriter{}
	loader := NewBulkLoader(writer, writer, 3)

	issues := []domain.Issue{
		{ID: "i1", Type: domain.IssuePothole, Status: domain.StatusPending},
		{ID: "i2", Type: domain.IssueTreeFall, Status: domain.StatusInProgress},
	}

	if err := loader.LoadIssues(context.Background(), issues); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(writer.issues) != 2 {
		t.Fatalf("expected 2 issues stored, got %d", len(writer.issues))
	}
}
