package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/segfault/civicgrid/backend/internal/domain"
	"github.com/segfault/civicgrid/backend/internal/service"
)

// RoutePlanner is the routing contract the route endpoint consumes.
type RoutePlanner interface {
	FindPath(ctx context.Context, startLat, startLng, endLat, endLng float64) (*domain.PathResult, error)
}

// ViewportService is the grid-cache contract the map endpoints consume.
type ViewportService interface {
	IssuesInBounds(ctx context.Context, b domain.Bounds, includeResolved bool) ([]domain.IssueSummary, error)
	InvalidateIssue(ctx context.Context, issueID string, coord *domain.Coordinate) error
	ClearAll(ctx context.Context) error
}

// RecalcTrigger fires a penalty recalculation on demand.
type RecalcTrigger interface {
	Trigger(ctx context.Context) error
}

// APIHandlers exposes HTTP handlers for the routing and map-viewport API.
type APIHandlers struct {
	logger   *slog.Logger
	planner  RoutePlanner
	viewport ViewportService
	recalc   RecalcTrigger
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, planner RoutePlanner, viewport ViewportService, recalc RecalcTrigger) *APIHandlers {
	return &APIHandlers{
		logger:   logger,
		planner:  planner,
		viewport: viewport,
		recalc:   recalc,
	}
}

type routeResponse struct {
	Path          []domain.Coordinate `json:"path"`
	TotalDistance float64             `json:"totalDistance"` // meters, rounded
	TotalCost     float64             `json:"totalCost"`
	EstimatedTime float64             `json:"estimatedTime"` // minutes, rounded
}

func (h *APIHandlers) handleRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	startLat, err := parseFloatParam(r, "start_lat")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	startLng, err := parseFloatParam(r, "start_lng")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	endLat, err := parseFloatParam(r, "end_lat")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	endLng, err := parseFloatParam(r, "end_lng")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := service.ValidateCoordinate(startLat, startLng); err != nil {
		writeError(w, http.StatusBadRequest, "invalid start coordinates")
		return
	}
	if err := service.ValidateCoordinate(endLat, endLng); err != nil {
		writeError(w, http.StatusBadRequest, "invalid end coordinates")
		return
	}

	result, err := h.planner.FindPath(r.Context(), startLat, startLng, endLat, endLng)
	if err != nil {
		h.logger.Error("route computation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to calculate route")
		return
	}
	if result == nil {
		// A normal outcome, not a server fault: the area may simply have no
		// road data loaded.
		respondJSON(w, http.StatusNotFound, map[string]any{
			"error":   "no route found",
			"message": "could not find a path between the specified points",
		})
		return
	}

	respondJSON(w, http.StatusOK, routeResponse{
		Path:          result.Path,
		TotalDistance: math.Round(result.TotalDistance),
		TotalCost:     result.TotalCost,
		EstimatedTime: math.Round(result.EstimatedTime),
	})
}

func (h *APIHandlers) handleIssuesInBounds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	bounds := domain.Bounds{}
	fields := []struct {
		name string
		dest *float64
	}{
		{"min_lat", &bounds.MinLat},
		{"max_lat", &bounds.MaxLat},
		{"min_lng", &bounds.MinLng},
		{"max_lng", &bounds.MaxLng},
	}
	for _, field := range fields {
		value, err := parseFloatParam(r, field.name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		*field.dest = value
	}

	if err := service.ValidateBounds(bounds); err != nil {
		writeError(w, http.StatusBadRequest, "bounds out of range")
		return
	}

	includeResolved := false
	if v := r.URL.Query().Get("include_resolved"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid include_resolved value")
			return
		}
		includeResolved = parsed
	}

	issues, err := h.viewport.IssuesInBounds(r.Context(), bounds, includeResolved)
	if err != nil {
		h.logger.Error("viewport query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch issues")
		return
	}
	if issues == nil {
		issues = []domain.IssueSummary{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"issues": issues,
		"count":  len(issues),
	})
}

type invalidateRequest struct {
	IssueID string   `json:"issueId"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

func (h *APIHandlers) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IssueID == "" {
		writeError(w, http.StatusBadRequest, "issueId is required")
		return
	}
	if (req.Lat == nil) != (req.Lng == nil) {
		writeError(w, http.StatusBadRequest, "lat and lng must be supplied together")
		return
	}

	var coord *domain.Coordinate
	if req.Lat != nil {
		coord = &domain.Coordinate{Lat: *req.Lat, Lng: *req.Lng}
	}

	if err := h.viewport.InvalidateIssue(r.Context(), req.IssueID, coord); err != nil {
		h.logger.Error("cache invalidation failed", "error", err, "issueId", req.IssueID)
		writeError(w, http.StatusInternalServerError, "failed to invalidate cache")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *APIHandlers) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	if err := h.viewport.ClearAll(r.Context()); err != nil {
		h.logger.Error("cache clear failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear cache")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *APIHandlers) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	if err := h.recalc.Trigger(r.Context()); err != nil {
		h.logger.Error("penalty recalculation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "penalty recalculation failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func parseFloatParam(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, errors.New(name + " is required")
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New("invalid " + name + " value")
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errors.New("invalid " + name + " value")
	}
	return value, nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"error": message})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	for _, method := range allowed {
		w.Header().Add("Allow", method)
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
