package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/segfault/civicgrid/backend/internal/domain"
)

type stubPlanner struct {
	result *domain.PathResult
	err    error
	calls  int
}

func (s *stubPlanner) FindPath(ctx context.Context, startLat, startLng, endLat, endLng float64) (*domain.PathResult, error) {
	s.calls++
	return s.result, s.err
}

type stubViewport struct {
	issues        []domain.IssueSummary
	err           error
	invalidated   []string
	invalidCoords []*domain.Coordinate
	cleared       int
	lastBounds    domain.Bounds
	lastResolved  bool
}

func (s *stubViewport) IssuesInBounds(ctx context.Context, b domain.Bounds, includeResolved bool) ([]domain.IssueSummary, error) {
	s.lastBounds = b
	s.lastResolved = includeResolved
	if s.err != nil {
		return nil, s.err
	}
	return s.issues, nil
}

func (s *stubViewport) InvalidateIssue(ctx context.Context, issueID string, coord *domain.Coordinate) error {
	if s.err != nil {
		return s.err
	}
	s.invalidated = append(s.invalidated, issueID)
	s.invalidCoords = append(s.invalidCoords, coord)
	return nil
}

func (s *stubViewport) ClearAll(ctx context.Context) error {
	if s.err != nil {
		return s.err
	}
	s.cleared++
	return nil
}

type stubRecalc struct {
	err   error
	calls int
}

func (s *stubRecalc) Trigger(ctx context.Context) error {
	s.calls++
	return s.err
}

func newTestRouter(planner *stubPlanner, viewport *stubViewport, recalc *stubRecalc) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	api := NewAPIHandlers(logger, planner, viewport, recalc)
	return NewRouter(logger, RouterDependencies{API: api})
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

func TestHandleRoute_OK(t *testing.T) {
	planner := &stubPlanner{result: &domain.PathResult{
		Path:          []domain.Coordinate{{Lat: 28.60, Lng: 77.20}, {Lat: 28.61, Lng: 77.20}},
		TotalDistance: 1112.4,
		TotalCost:     1112.4,
		EstimatedTime: 2.2,
	}}
	router := newTestRouter(planner, &stubViewport{}, &stubRecalc{})

	req := httptest.NewRequest(http.MethodGet,
		"/route?start_lat=28.60&start_lng=77.20&end_lat=28.61&end_lng=77.20", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	body := decodeBody(t, res)
	if body["totalDistance"] != 1112.0 {
		t.Errorf("expected rounded distance 1112, got %v", body["totalDistance"])
	}
	if body["estimatedTime"] != 2.0 {
		t.Errorf("expected rounded time 2, got %v", body["estimatedTime"])
	}
	if planner.calls != 1 {
		t.Errorf("expected one planner call, got %d", planner.calls)
	}
}

func TestHandleRoute_MissingParam(t *testing.T) {
	planner := &stubPlanner{}
	router := newTestRouter(planner, &stubViewport{}, &stubRecalc{})

	req := httptest.NewRequest(http.MethodGet, "/route?start_lat=28.60&start_lng=77.20&end_lat=28.61", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if planner.calls != 0 {
		t.Errorf("expected the planner untouched, got %d calls", planner.calls)
	}
}

func TestHandleRoute_OutOfRangeCoordinates(t *testing.T) {
	router := newTestRouter(&stubPlanner{}, &stubViewport{}, &stubRecalc{})

	req := httptest.NewRequest(http.MethodGet,
		"/route?start_lat=91&start_lng=77.20&end_lat=28.61&end_lng=77.20", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	body := decodeBody(t, res)
	if body["error"] != "invalid start coordinates" {
		t.Errorf("unexpected error message: %v", body["error"])
	}
}

func TestHandleRoute_NoRouteIs404(t *testing.T) {
	router := newTestRouter(&stubPlanner{result: nil}, &stubViewport{}, &stubRecalc{})

	req := httptest.NewRequest(http.MethodGet,
		"/route?start_lat=28.60&start_lng=77.20&end_lat=28.61&end_lng=77.20", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	body := decodeBody(t, res)
	if body["error"] != "no route found" {
		t.Errorf("unexpected error message: %v", body["error"])
	}
}

func TestHandleRoute_StoreFailureIs500(t *testing.T) {
	router := newTestRouter(&stubPlanner{err: errors.New("store down")}, &stubViewport{}, &stubRecalc{})

	req := httptest.NewRequest(http.MethodGet,
		"/route?start_lat=28.60&start_lng=77.20&end_lat=28.61&end_lng=77.20", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
}

func TestHandleRoute_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(&stubPlanner{}, &stubViewport{}, &stubRecalc{})

	req := httptest.NewRequest(http.MethodPost, "/route", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestHandleIssuesInBounds_OK(t *testing.T) {
	viewport := &stubViewport{issues: []domain.IssueSummary{
		{ID: "i1", Status: domain.StatusPending, Latitude: 28.61, Longitude: 77.21},
		{ID: "i2", Status: domain.StatusInProgress, Latitude: 28.62, Longitude: 77.22},
	}}
	router := newTestRouter(&stubPlanner{}, viewport, &stubRecalc{})

	req := httptest.NewRequest(http.MethodGet,
		"/issues/bounds?min_lat=28.6&max_lat=28.7&min_lng=77.2&max_lng=77.3&include_resolved=true", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	body := decodeBody(t, res)
	if body["count"] != 2.0 {
		t.Errorf("expected count 2, got %v", body["count"])
	}
	if !viewport.lastResolved {
		t.Error("expected include_resolved to pass through")
	}
	if viewport.lastBounds.MinLat != 28.6 || viewport.lastBounds.MaxLng != 77.3 {
		t.Errorf("unexpected bounds: %+v", viewport.lastBounds)
	}
}

func TestHandleIssuesInBounds_EmptyIsNotNull(t *testing.T) {
	router := newTestRouter(&stubPlanner{}, &stubViewport{}, &stubRecalc{})

	req := httptest.NewRequest(http.MethodGet,
		"/issues/bounds?min_lat=28.6&max_lat=28.7&min_lng=77.2&max_lng=77.3", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"issues":[]`) {
		t.Fatalf("expected an empty array, got %s", res.Body.String())
	}
}

func TestHandleIssuesInBounds_BadResolvedFlag(t *testing.T) {
	router := newTestRouter(&stubPlanner{}, &stubViewport{}, &stubRecalc{})

	req := httptest.NewRequest(http.MethodGet,
		"/issues/bounds?min_lat=28.6&max_lat=28.7&min_lng=77.2&max_lng=77.3&include_resolved=maybe", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestHandleCacheInvalidate(t *testing.T) {
	viewport := &stubViewport{}
	router := newTestRouter(&stubPlanner{}, viewport, &stubRecalc{})

	payload := `{"issueId":"i1","lat":28.61,"lng":77.21}`
	req := httptest.NewRequest(http.MethodPost, "/cache/invalidate", strings.NewReader(payload))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(viewport.invalidated) != 1 || viewport.invalidated[0] != "i1" {
		t.Fatalf("expected i1 invalidated, got %v", viewport.invalidated)
	}
	if viewport.invalidCoords[0] == nil || viewport.invalidCoords[0].Lat != 28.61 {
		t.Fatalf("expected coordinates forwarded, got %+v", viewport.invalidCoords[0])
	}
}

func TestHandleCacheInvalidate_RequiresIssueID(t *testing.T) {
	router := newTestRouter(&stubPlanner{}, &stubViewport{}, &stubRecalc{})

	req := httptest.NewRequest(http.MethodPost, "/cache/invalidate", strings.NewReader(`{}`))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestHandleCacheInvalidate_RejectsHalfCoordinates(t *testing.T) {
	router := newTestRouter(&stubPlanner{}, &stubViewport{}, &stubRecalc{})

	req := httptest.NewRequest(http.MethodPost, "/cache/invalidate",
		strings.NewReader(`{"issueId":"i1","lat":28.61}`))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestHandleCacheClear(t *testing.T) {
	viewport := &stubViewport{}
	router := newTestRouter(&stubPlanner{}, viewport, &stubRecalc{})

	req := httptest.NewRequest(http.MethodPost, "/cache/clear", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if viewport.cleared != 1 {
		t.Fatalf("expected one clear, got %d", viewport.cleared)
	}
}

func TestHandleRecalculate(t *testing.T) {
	recalc := &stubRecalc{}
	router := newTestRouter(&stubPlanner{}, &stubViewport{}, recalc)

	req := httptest.NewRequest(http.MethodPost, "/penalties/recalculate", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if recalc.calls != 1 {
		t.Fatalf("expected one trigger, got %d", recalc.calls)
	}
}

func TestHandleRecalculate_EngineFailureIs500(t *testing.T) {
	recalc := &stubRecalc{err: errors.New("store down")}
	router := newTestRouter(&stubPlanner{}, &stubViewport{}, recalc)

	req := httptest.NewRequest(http.MethodPost, "/penalties/recalculate", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(&stubPlanner{}, &stubViewport{}, &stubRecalc{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}
