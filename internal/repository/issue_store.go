package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/segfault/civicgrid/backend/internal/domain"
	"github.com/segfault/civicgrid/backend/internal/graph"
)

// ErrIssueNotFound indicates the requested issue does not exist.
var ErrIssueNotFound = errors.New("issue not found")

// boxQueryLimit caps rows returned by a single bounding-box query so a
// zoomed-out viewport cannot drag the whole issue table over the wire.
const boxQueryLimit = 500

// IssueStore reads issue snapshots for penalty computation and the grid
// cache. Issue lifecycle is owned elsewhere; this adapter only observes.
type IssueStore struct {
	client graph.Client
}

// NewIssueStore instantiates an IssueStore backed by the supplied graph client.
func NewIssueStore(client graph.Client) *IssueStore {
	return &IssueStore{client: client}
}

// ListActiveIssues returns every non-resolved issue with known coordinates.
func (s *IssueStore) ListActiveIssues(ctx context.Context) ([]domain.Issue, error) {
	res, err := s.client.ExecuteRead(ctx, listActiveIssuesCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("list active issues: %w", err)
	}

	issues := make([]domain.Issue, 0, len(res.Records))
	for _, rec := range res.Records {
		issues = append(issues, domain.Issue{
			ID:        decodeString(rec, "id"),
			Latitude:  decodeFloat(rec, "latitude"),
			Longitude: decodeFloat(rec, "longitude"),
			Type:      decodeString(rec, "issueType"),
			Severity:  decodeInt(rec, "severity"),
		})
	}
	return issues, nil
}

// QueryIssuesInBox returns summaries for issues inside the exact bounding
// box, newest first, capped at 500 rows.
func (s *IssueStore) QueryIssuesInBox(ctx context.Context, b domain.Bounds, includeResolved bool) ([]domain.IssueSummary, error) {
	params := map[string]any{
		"minLat":          b.MinLat,
		"maxLat":          b.MaxLat,
		"minLng":          b.MinLng,
		"maxLng":          b.MaxLng,
		"includeResolved": includeResolved,
		"limit":           boxQueryLimit,
	}
	res, err := s.client.ExecuteRead(ctx, queryIssuesInBoxCypher, params)
	if err != nil {
		return nil, fmt.Errorf("query issues in box: %w", err)
	}

	summaries := make([]domain.IssueSummary, 0, len(res.Records))
	for _, rec := range res.Records {
		summaries = append(summaries, decodeSummary(rec))
	}
	return summaries, nil
}

// GetIssueSummary resolves a single issue summary by id.
func (s *IssueStore) GetIssueSummary(ctx context.Context, id string) (domain.IssueSummary, error) {
	res, err := s.client.ExecuteRead(ctx, getIssueSummaryCypher, map[string]any{"id": id})
	if err != nil {
		return domain.IssueSummary{}, fmt.Errorf("get issue summary %s: %w", id, err)
	}
	if len(res.Records) == 0 {
		return domain.IssueSummary{}, ErrIssueNotFound
	}
	return decodeSummary(res.Records[0]), nil
}

// CreateIssue writes an issue snapshot. Used by the seeding tools only; the
// serving path never mutates issues.
func (s *IssueStore) CreateIssue(ctx context.Context, issue domain.Issue) error {
	if issue.ID == "" {
		return errors.New("issue id is required")
	}

	params := map[string]any{
		"id":           issue.ID,
		"title":        issue.Title,
		"status":       issue.Status,
		"issueType":    issue.Type,
		"latitude":     issue.Latitude,
		"longitude":    issue.Longitude,
		"severity":     issue.Severity,
		"voteCount":    0,
		"commentCount": 0,
		"createdAt":    formatTime(issue.CreatedAt),
	}
	if _, err := s.client.ExecuteWrite(ctx, createIssueCypher, params); err != nil {
		return fmt.Errorf("create issue %s: %w", issue.ID, err)
	}
	return nil
}

func decodeSummary(rec graph.Record) domain.IssueSummary {
	return domain.IssueSummary{
		ID:           decodeString(rec, "id"),
		Title:        decodeString(rec, "title"),
		Status:       decodeString(rec, "status"),
		IssueType:    decodeString(rec, "issueType"),
		Latitude:     decodeFloat(rec, "latitude"),
		Longitude:    decodeFloat(rec, "longitude"),
		VoteCount:    decodeInt(rec, "voteCount"),
		CommentCount: decodeInt(rec, "commentCount"),
		CreatedAt:    decodeTime(rec, "createdAt"),
	}
}
