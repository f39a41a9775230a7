package domain

// Node is a point in the road graph, not necessarily an intersection.
// Nodes are immutable once imported; OSMID deduplicates re-imports.
type Node struct {
	ID        string
	Latitude  float64
	Longitude float64
	OSMID     string
}

// Edge is a directed road segment between two nodes. A bidirectional road
// is two edges, one per direction, each independently penalized.
type Edge struct {
	ID          string
	StartNodeID string
	EndNodeID   string
	Distance    float64 // meters, derived from node coordinates
	BaseCost    float64 // defaults to Distance
	Penalty     float64 // >= 1.0, written only by the penalty engine
}

// EffectiveCost is the traversal cost of the edge. A stored penalty of
// exactly 0 is treated as 1 so an uninitialized row cannot cheapen an edge.
func (e Edge) EffectiveCost() float64 {
	penalty := e.Penalty
	if penalty == 0 {
		penalty = 1
	}
	return e.BaseCost * penalty
}
