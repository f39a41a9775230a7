package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/segfault/civicgrid/backend/internal/cache"
	"github.com/segfault/civicgrid/backend/internal/domain"
	"github.com/segfault/civicgrid/backend/internal/metrics"
	"github.com/segfault/civicgrid/backend/internal/repository"
)

const (
	// gridCellSizeDeg is the cell edge length, roughly 1.1 km at the
	// equator.
	gridCellSizeDeg = 0.01

	// maxCellsForCache caps how many cells a viewport may touch before the
	// query bypasses the cache for a single bounded store read.
	maxCellsForCache = 100

	gridKeyPrefix    = "issues:"
	summaryKeyPrefix = "issue:summary:"

	defaultGridTTLSeconds    = 300
	defaultSummaryTTLSeconds = 600
)

// gridCell derives the cell identifier for a coordinate: floor division of
// both axes by the cell size.
func gridCell(lat, lng float64) string {
	cellLat := int(math.Floor(lat / gridCellSizeDeg))
	cellLng := int(math.Floor(lng / gridCellSizeDeg))
	return fmt.Sprintf("grid:%d:%d", cellLat, cellLng)
}

// cellRef identifies a grid cell by its floored axis indices.
type cellRef struct {
	Lat int
	Lng int
}

func (c cellRef) Key() string {
	return fmt.Sprintf("grid:%d:%d", c.Lat, c.Lng)
}

// Bounds are the exact geographic extent of the cell.
func (c cellRef) Bounds() domain.Bounds {
	return domain.Bounds{
		MinLat: float64(c.Lat) * gridCellSizeDeg,
		MaxLat: float64(c.Lat+1) * gridCellSizeDeg,
		MinLng: float64(c.Lng) * gridCellSizeDeg,
		MaxLng: float64(c.Lng+1) * gridCellSizeDeg,
	}
}

// cellsForBounds enumerates the cells overlapping the box, inclusive on
// both axes. Reversed bounds produce an empty set.
func cellsForBounds(b domain.Bounds) []cellRef {
	if b.MinLat > b.MaxLat || b.MinLng > b.MaxLng {
		return nil
	}

	startLat := int(math.Floor(b.MinLat / gridCellSizeDeg))
	endLat := int(math.Floor(b.MaxLat / gridCellSizeDeg))
	startLng := int(math.Floor(b.MinLng / gridCellSizeDeg))
	endLng := int(math.Floor(b.MaxLng / gridCellSizeDeg))

	cells := make([]cellRef, 0, (endLat-startLat+1)*(endLng-startLng+1))
	for lat := startLat; lat <= endLat; lat++ {
		for lng := startLng; lng <= endLng; lng++ {
			cells = append(cells, cellRef{Lat: lat, Lng: lng})
		}
	}
	return cells
}

// IssueQuerier is the issue-store contract the grid cache reads through.
type IssueQuerier interface {
	QueryIssuesInBox(ctx context.Context, b domain.Bounds, includeResolved bool) ([]domain.IssueSummary, error)
	GetIssueSummary(ctx context.Context, id string) (domain.IssueSummary, error)
}

// IssueCache serves map-viewport queries from grid-cell cache entries,
// backfilling misses from the issue store. Cache entries are derived state;
// any cache failure degrades to direct store reads instead of failing the
// query.
type IssueCache struct {
	store             cache.Store
	issues            IssueQuerier
	logger            *slog.Logger
	gridTTLSeconds    int
	summaryTTLSeconds int
}

// NewIssueCache constructs an IssueCache with the given TTLs in seconds.
// Non-positive TTLs fall back to the defaults (300 s cells, 600 s
// summaries; summaries intentionally outlive the cheaper cell entries).
func NewIssueCache(store cache.Store, issues IssueQuerier, logger *slog.Logger, gridTTLSeconds, summaryTTLSeconds int) *IssueCache {
	if gridTTLSeconds <= 0 {
		gridTTLSeconds = defaultGridTTLSeconds
	}
	if summaryTTLSeconds <= 0 {
		summaryTTLSeconds = defaultSummaryTTLSeconds
	}
	return &IssueCache{
		store:             store,
		issues:            issues,
		logger:            logger,
		gridTTLSeconds:    gridTTLSeconds,
		summaryTTLSeconds: summaryTTLSeconds,
	}
}

// IssuesInBounds returns deduplicated issue summaries inside the exact
// bounding box. Resolved issues are dropped unless includeResolved. Result
// order is not guaranteed.
func (c *IssueCache) IssuesInBounds(ctx context.Context, b domain.Bounds, includeResolved bool) ([]domain.IssueSummary, error) {
	cells := cellsForBounds(b)
	if len(cells) == 0 {
		return []domain.IssueSummary{}, nil
	}

	// Zoomed-out viewports trade cache locality for one bounded bulk read.
	if len(cells) > maxCellsForCache {
		metrics.ViewportQueries.WithLabelValues("direct").Inc()
		return c.issues.QueryIssuesInBox(ctx, b, includeResolved)
	}
	metrics.ViewportQueries.WithLabelValues("cached").Inc()

	idSet := make(map[string]struct{})
	summaries := make(map[string]domain.IssueSummary)

	for _, cell := range cells {
		ids, err := c.cachedCell(ctx, cell)
		if err != nil {
			if !errors.Is(err, cache.ErrNotFound) {
				c.logger.Warn("grid cell read failed, treating as miss", "cell", cell.Key(), "error", err)
			}
			metrics.CacheMisses.WithLabelValues("grid_cell").Inc()
			if err := c.populateCell(ctx, cell, idSet, summaries); err != nil {
				return nil, err
			}
			continue
		}
		metrics.CacheHits.WithLabelValues("grid_cell").Inc()
		for _, id := range ids {
			idSet[id] = struct{}{}
		}
	}

	results := make([]domain.IssueSummary, 0, len(idSet))
	for id := range idSet {
		summary, ok := summaries[id]
		if !ok {
			resolved, err := c.resolveSummary(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrIssueNotFound) {
					// Stale cell membership for a deleted issue; drop it.
					continue
				}
				return nil, err
			}
			summary = resolved
		}

		if !includeResolved && summary.Status == domain.StatusResolved {
			continue
		}
		// Cells are coarser than the viewport, so a cell can contribute
		// issues just outside the requested box.
		if !b.Contains(summary.Latitude, summary.Longitude) {
			continue
		}
		results = append(results, summary)
	}

	return results, nil
}

// populateCell fills one missing cell from the store using the cell's exact
// bounds. Membership is cached independent of the caller's filter — the
// query includes resolved issues and status filtering happens on the
// assembled result — so cold and warm reads agree for either
// includeResolved value. Empty cells are cached too, otherwise they would
// miss forever. Concurrent populates of the same cell are a benign race:
// both writers derive the same value from the same snapshot.
func (c *IssueCache) populateCell(ctx context.Context, cell cellRef, idSet map[string]struct{}, summaries map[string]domain.IssueSummary) error {
	rows, err := c.issues.QueryIssuesInBox(ctx, cell.Bounds(), true)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
		idSet[row.ID] = struct{}{}
		summaries[row.ID] = row
		c.writeSummary(ctx, row)
	}

	encoded, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode cell %s: %w", cell.Key(), err)
	}
	if err := c.store.SetWithTTL(ctx, gridKeyPrefix+cell.Key(), encoded, c.gridTTLSeconds); err != nil {
		c.logger.Warn("grid cell write failed", "cell", cell.Key(), "error", err)
	}
	return nil
}

func (c *IssueCache) cachedCell(ctx context.Context, cell cellRef) ([]string, error) {
	raw, err := c.store.Get(ctx, gridKeyPrefix+cell.Key())
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode cell %s: %w", cell.Key(), err)
	}
	return ids, nil
}

// resolveSummary fetches an issue summary, cache first, store on miss.
func (c *IssueCache) resolveSummary(ctx context.Context, id string) (domain.IssueSummary, error) {
	raw, err := c.store.Get(ctx, summaryKeyPrefix+id)
	if err == nil {
		var summary domain.IssueSummary
		if err := json.Unmarshal(raw, &summary); err == nil {
			metrics.CacheHits.WithLabelValues("issue_summary").Inc()
			return summary, nil
		}
		c.logger.Warn("corrupt cached summary, refetching", "issueId", id)
	} else if !errors.Is(err, cache.ErrNotFound) {
		c.logger.Warn("summary read failed, falling back to store", "issueId", id, "error", err)
	}
	metrics.CacheMisses.WithLabelValues("issue_summary").Inc()

	summary, err := c.issues.GetIssueSummary(ctx, id)
	if err != nil {
		return domain.IssueSummary{}, err
	}
	c.writeSummary(ctx, summary)
	return summary, nil
}

func (c *IssueCache) writeSummary(ctx context.Context, summary domain.IssueSummary) {
	encoded, err := json.Marshal(summary)
	if err != nil {
		c.logger.Warn("encode summary failed", "issueId", summary.ID, "error", err)
		return
	}
	if err := c.store.SetWithTTL(ctx, summaryKeyPrefix+summary.ID, encoded, c.summaryTTLSeconds); err != nil {
		c.logger.Warn("summary write failed", "issueId", summary.ID, "error", err)
	}
}

// InvalidateIssue evicts the issue's summary entry, and its grid-cell
// membership entry when coordinates are supplied. Without coordinates the
// cell entry cannot be located and lingers until its TTL expires — a
// bounded staleness window, not silently repaired here.
func (c *IssueCache) InvalidateIssue(ctx context.Context, issueID string, coord *domain.Coordinate) error {
	if err := c.store.Delete(ctx, summaryKeyPrefix+issueID); err != nil {
		return fmt.Errorf("evict summary %s: %w", issueID, err)
	}
	if coord != nil {
		cell := gridCell(coord.Lat, coord.Lng)
		if err := c.store.Delete(ctx, gridKeyPrefix+cell); err != nil {
			return fmt.Errorf("evict cell %s: %w", cell, err)
		}
	}
	return nil
}

// ClearAll evicts every grid and summary entry. Bulk resets only.
func (c *IssueCache) ClearAll(ctx context.Context) error {
	if err := c.store.DeletePrefix(ctx, gridKeyPrefix); err != nil {
		return fmt.Errorf("clear grid entries: %w", err)
	}
	if err := c.store.DeletePrefix(ctx, summaryKeyPrefix); err != nil {
		return fmt.Errorf("clear summary entries: %w", err)
	}
	return nil
}
