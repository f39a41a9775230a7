package domain

import "time"

// Issue statuses. Only non-resolved issues influence routing penalties and
// default map queries.
const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusResolved   = "RESOLVED"
)

// Issue types reported by citizens.
const (
	IssuePothole           = "POTHOLE"
	IssueRoadDamage        = "ROAD_DAMAGE"
	IssueDrainageBlocked   = "DRAINAGE_BLOCKED"
	IssueSewageOverflow    = "SEWAGE_OVERFLOW"
	IssueOpenManhole       = "OPEN_MANHOLE"
	IssueTreeFall          = "TREE_FALL"
	IssueTrafficLightFault = "TRAFFIC_LIGHT_FAULT"
	IssueBrokenFootpath    = "BROKEN_FOOTPATH"
)

// Issue is the core's read-only snapshot of a reported infrastructure
// problem. Lifecycle and mutation belong to the issue-management subsystem.
type Issue struct {
	ID        string
	Title     string
	Type      string
	Status    string
	Latitude  float64
	Longitude float64
	Severity  int // 1-5, 0 when not assessed
	CreatedAt time.Time
}

// IsActive reports whether the issue should affect penalties and default
// map queries.
func (i Issue) IsActive() bool {
	return i.Status != StatusResolved
}

// IssueSummary is the denormalized projection cached for map viewports.
// It is always replaced wholesale, never partially updated.
type IssueSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Status       string    `json:"status"`
	IssueType    string    `json:"issueType"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	VoteCount    int       `json:"voteCount"`
	CommentCount int       `json:"commentCount"`
	CreatedAt    time.Time `json:"createdAt"`
}
