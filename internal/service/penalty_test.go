package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/segfault/civicgrid/backend/internal/domain"
)

type penaltyUpdate struct {
	edgeIDs []string
	penalty float64
}

type stubPenaltyStore struct {
	nodes      []domain.Node
	edges      []domain.Edge
	resets     int
	updates    []penaltyUpdate
	resetErr   error
	listErr    error
	nearErr    error
	updateErr  error
	nearErrFor map[string]error // keyed by issue id region via coordinates, see nearKey
}

func nearKey(lat, lng float64) string {
	return gridCell(lat, lng)
}

func (s *stubPenaltyStore) ListEdges(ctx context.Context) ([]domain.Edge, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.edges, nil
}

func (s *stubPenaltyStore) FindNodesNear(ctx context.Context, lat, lng, radiusDeg float64) ([]domain.Node, error) {
	if s.nearErr != nil {
		return nil, s.nearErr
	}
	if err, ok := s.nearErrFor[nearKey(lat, lng)]; ok {
		return nil, err
	}
	var found []domain.Node
	for _, node := range s.nodes {
		if math.Abs(node.Latitude-lat) <= radiusDeg && math.Abs(node.Longitude-lng) <= radiusDeg {
			found = append(found, node)
		}
	}
	return found, nil
}

func (s *stubPenaltyStore) ResetAllPenalties(ctx context.Context) error {
	if s.resetErr != nil {
		return s.resetErr
	}
	s.resets++
	s.updates = nil
	return nil
}

func (s *stubPenaltyStore) BulkUpdateEdgePenalty(ctx context.Context, edgeIDs []string, penalty float64) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, penaltyUpdate{edgeIDs: edgeIDs, penalty: penalty})
	return nil
}

type stubIssueSource struct {
	issues []domain.Issue
	err    error
}

func (s *stubIssueSource) ListActiveIssues(ctx context.Context) ([]domain.Issue, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.issues, nil
}

func TestPenaltyTable_AbsentTypeIsNeutral(t *testing.T) {
	table := DefaultPenaltyTable()
	if got := table.Multiplier("STREETLIGHT_OUT", 5); got != 1.0 {
		t.Fatalf("expected exactly 1.0 for an unknown type, got %v", got)
	}
}

func TestPenaltyTable_SeverityScaling(t *testing.T) {
	table := DefaultPenaltyTable()

	neutral := table.Multiplier(domain.IssueRoadDamage, 3)
	if math.Abs(neutral-5.0) > 1e-9 {
		t.Fatalf("expected severity 3 to be neutral (5.0), got %v", neutral)
	}

	low := table.Multiplier(domain.IssueRoadDamage, 1)
	high := table.Multiplier(domain.IssueRoadDamage, 5)
	if !(low < neutral && neutral < high) {
		t.Fatalf("expected monotonic scaling, got low=%v neutral=%v high=%v", low, neutral, high)
	}

	unassessed := table.Multiplier(domain.IssueRoadDamage, 0)
	if math.Abs(unassessed-5.0) > 1e-9 {
		t.Fatalf("expected severity 0 to skip scaling, got %v", unassessed)
	}
}

func TestPenaltyTable_MonotonicInSeverity(t *testing.T) {
	table := DefaultPenaltyTable()
	for _, issueType := range []string{domain.IssuePothole, domain.IssueTreeFall, domain.IssueBrokenFootpath} {
		prev := 0.0
		for severity := 1; severity <= 5; severity++ {
			got := table.Multiplier(issueType, severity)
			if got <= prev {
				t.Fatalf("expected %s multiplier to grow with severity, got %v after %v", issueType, got, prev)
			}
			prev = got
		}
	}
}

func graphFixture() ([]domain.Node, []domain.Edge) {
	nodes := []domain.Node{
		{ID: "n1", Latitude: 28.6000, Longitude: 77.2000},
		{ID: "n2", Latitude: 28.6010, Longitude: 77.2000},
		{ID: "n3", Latitude: 28.6500, Longitude: 77.2500},
	}
	edges := []domain.Edge{
		{ID: "e12", StartNodeID: "n1", EndNodeID: "n2", Distance: 110, BaseCost: 110, Penalty: 1},
		{ID: "e21", StartNodeID: "n2", EndNodeID: "n1", Distance: 110, BaseCost: 110, Penalty: 1},
		{ID: "e23", StartNodeID: "n2", EndNodeID: "n3", Distance: 7000, BaseCost: 7000, Penalty: 1},
	}
	return nodes, edges
}

func TestPenaltyEngine_AppliesPenaltiesNearIssues(t *testing.T) {
	nodes, edges := graphFixture()
	store := &stubPenaltyStore{nodes: nodes, edges: edges}
	issues := &stubIssueSource{issues: []domain.Issue{
		{ID: "i1", Type: domain.IssueOpenManhole, Status: domain.StatusPending, Latitude: 28.6000, Longitude: 77.2000, Severity: 3},
	}}

	engine := NewPenaltyEngine(store, issues, DefaultPenaltyTable(), testLogger(), 0.0002)
	if err := engine.Recalculate(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if store.resets != 1 {
		t.Fatalf("expected one reset, got %d", store.resets)
	}
	if len(store.updates) != 1 {
		t.Fatalf("expected one penalty update, got %d", len(store.updates))
	}

	update := store.updates[0]
	if math.Abs(update.penalty-8.0) > 1e-9 {
		t.Fatalf("expected manhole penalty 8.0 at severity 3, got %v", update.penalty)
	}
	// Only n1 is within the radius, so only its incident edges change.
	if len(update.edgeIDs) != 2 {
		t.Fatalf("expected the 2 edges incident to n1, got %v", update.edgeIDs)
	}
	for _, id := range update.edgeIDs {
		if id != "e12" && id != "e21" {
			t.Fatalf("unexpected edge %s in update", id)
		}
	}
}

func TestPenaltyEngine_SkipsNeutralIssues(t *testing.T) {
	nodes, edges := graphFixture()
	store := &stubPenaltyStore{nodes: nodes, edges: edges}
	issues := &stubIssueSource{issues: []domain.Issue{
		{ID: "i1", Type: "UNKNOWN_TYPE", Status: domain.StatusPending, Latitude: 28.6000, Longitude: 77.2000, Severity: 5},
		{ID: "i2", Type: domain.IssueBrokenFootpath, Status: domain.StatusPending, Latitude: 28.6000, Longitude: 77.2000, Severity: 1},
	}}

	engine := NewPenaltyEngine(store, issues, DefaultPenaltyTable(), testLogger(), 0.0002)
	if err := engine.Recalculate(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Unknown type is exactly 1.0 and footpath at severity 1 is 0.4, so
	// neither crosses the >1.0 application threshold.
	if len(store.updates) != 0 {
		t.Fatalf("expected no penalty updates, got %d", len(store.updates))
	}
}

func TestPenaltyEngine_RecalculateIsIdempotent(t *testing.T) {
	nodes, edges := graphFixture()
	store := &stubPenaltyStore{nodes: nodes, edges: edges}
	issues := &stubIssueSource{issues: []domain.Issue{
		{ID: "i1", Type: domain.IssueTreeFall, Status: domain.StatusPending, Latitude: 28.6010, Longitude: 77.2000, Severity: 0},
	}}

	engine := NewPenaltyEngine(store, issues, DefaultPenaltyTable(), testLogger(), 0.0002)

	if err := engine.Recalculate(context.Background()); err != nil {
		t.Fatalf("expected no error on first run, got %v", err)
	}
	first := append([]penaltyUpdate(nil), store.updates...)

	if err := engine.Recalculate(context.Background()); err != nil {
		t.Fatalf("expected no error on second run, got %v", err)
	}

	if len(store.updates) != len(first) {
		t.Fatalf("expected %d updates after rerun, got %d", len(first), len(store.updates))
	}
	for i, update := range store.updates {
		if update.penalty != first[i].penalty || len(update.edgeIDs) != len(first[i].edgeIDs) {
			t.Fatalf("expected rerun to repeat update %d, got %+v vs %+v", i, update, first[i])
		}
	}
}

func TestPenaltyEngine_ResetFailureAbortsRun(t *testing.T) {
	store := &stubPenaltyStore{resetErr: errors.New("store down")}
	issues := &stubIssueSource{}

	engine := NewPenaltyEngine(store, issues, DefaultPenaltyTable(), testLogger(), 0.0002)
	if err := engine.Recalculate(context.Background()); err == nil {
		t.Fatal("expected reset failure to abort the run")
	}
}

func TestPenaltyEngine_IssueListFailureAbortsRun(t *testing.T) {
	nodes, edges := graphFixture()
	store := &stubPenaltyStore{nodes: nodes, edges: edges}
	issues := &stubIssueSource{err: errors.New("store down")}

	engine := NewPenaltyEngine(store, issues, DefaultPenaltyTable(), testLogger(), 0.0002)
	if err := engine.Recalculate(context.Background()); err == nil {
		t.Fatal("expected issue listing failure to abort the run")
	}
}

func TestPenaltyEngine_PerIssueFailureSkipsOnlyThatIssue(t *testing.T) {
	nodes, edges := graphFixture()
	store := &stubPenaltyStore{
		nodes: nodes,
		edges: edges,
		nearErrFor: map[string]error{
			nearKey(28.6500, 77.2500): errors.New("spatial index timeout"),
		},
	}
	issues := &stubIssueSource{issues: []domain.Issue{
		{ID: "bad", Type: domain.IssueTreeFall, Status: domain.StatusPending, Latitude: 28.6500, Longitude: 77.2500, Severity: 0},
		{ID: "good", Type: domain.IssueOpenManhole, Status: domain.StatusPending, Latitude: 28.6000, Longitude: 77.2000, Severity: 0},
	}}

	engine := NewPenaltyEngine(store, issues, DefaultPenaltyTable(), testLogger(), 0.0002)
	if err := engine.Recalculate(context.Background()); err != nil {
		t.Fatalf("expected the run to survive a per-issue failure, got %v", err)
	}

	if len(store.updates) != 1 {
		t.Fatalf("expected the surviving issue to produce one update, got %d", len(store.updates))
	}
	if math.Abs(store.updates[0].penalty-8.0) > 1e-9 {
		t.Fatalf("expected the surviving manhole penalty, got %v", store.updates[0].penalty)
	}
}

func TestPenaltyEngine_IssuesAwayFromGraphAreNoOps(t *testing.T) {
	nodes, edges := graphFixture()
	store := &stubPenaltyStore{nodes: nodes, edges: edges}
	issues := &stubIssueSource{issues: []domain.Issue{
		{ID: "remote", Type: domain.IssueTreeFall, Status: domain.StatusPending, Latitude: 12.9700, Longitude: 77.5900, Severity: 5},
	}}

	engine := NewPenaltyEngine(store, issues, DefaultPenaltyTable(), testLogger(), 0.0002)
	if err := engine.Recalculate(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(store.updates) != 0 {
		t.Fatalf("expected no updates for an issue with no nearby nodes, got %d", len(store.updates))
	}
}
