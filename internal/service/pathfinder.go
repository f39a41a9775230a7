package service

import (
	"container/heap"
	"context"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/segfault/civicgrid/backend/internal/domain"
	"github.com/segfault/civicgrid/backend/internal/geo"
	"github.com/segfault/civicgrid/backend/internal/metrics"
)

// NetworkReader is the storage contract the pathfinder needs: the full node
// and edge sets, plus a windowed node lookup for coordinate snapping.
type NetworkReader interface {
	ListNodes(ctx context.Context) ([]domain.Node, error)
	ListEdges(ctx context.Context) ([]domain.Edge, error)
	FindNodesNear(ctx context.Context, lat, lng, radiusDeg float64) ([]domain.Node, error)
}

// snapRadiiDeg are tried in order until a radius yields at least one
// candidate node. A coordinate outside the largest radius has no route.
var snapRadiiDeg = []float64{0.001, 0.005, 0.01, 0.05}

// Pathfinder answers least-cost route queries over the road network,
// reloading the graph per call so every query observes the latest penalties.
type Pathfinder struct {
	network  NetworkReader
	logger   *slog.Logger
	speedKmh float64
}

// NewPathfinder constructs a Pathfinder. speedKmh is the assumed average
// travel speed used for the time estimate.
func NewPathfinder(network NetworkReader, logger *slog.Logger, speedKmh float64) *Pathfinder {
	if speedKmh <= 0 {
		speedKmh = 30
	}
	return &Pathfinder{
		network:  network,
		logger:   logger,
		speedKmh: speedKmh,
	}
}

// FindPath computes a least-cost path between two coordinates. A nil result
// with a nil error means "no route": an endpoint snapped to no node, or the
// goal is unreachable from the start. Errors are reserved for store
// failures.
func (p *Pathfinder) FindPath(ctx context.Context, startLat, startLng, endLat, endLng float64) (*domain.PathResult, error) {
	started := time.Now()
	result, err := p.findPath(ctx, startLat, startLng, endLat, endLng)
	metrics.RouteDuration.Observe(time.Since(started).Seconds())
	switch {
	case err != nil:
		metrics.RouteRequests.WithLabelValues("error").Inc()
	case result == nil:
		metrics.RouteRequests.WithLabelValues("no_route").Inc()
	default:
		metrics.RouteRequests.WithLabelValues("found").Inc()
	}
	return result, err
}

func (p *Pathfinder) findPath(ctx context.Context, startLat, startLng, endLat, endLng float64) (*domain.PathResult, error) {
	startNode, err := p.snapToNode(ctx, startLat, startLng)
	if err != nil {
		return nil, err
	}
	endNode, err := p.snapToNode(ctx, endLat, endLng)
	if err != nil {
		return nil, err
	}
	if startNode == nil || endNode == nil {
		return nil, nil
	}

	// Zero-length query: both endpoints snapped to the same node.
	if startNode.ID == endNode.ID {
		return &domain.PathResult{
			Path:          []domain.Coordinate{{Lat: startNode.Latitude, Lng: startNode.Longitude}},
			TotalDistance: 0,
			TotalCost:     0,
			EstimatedTime: 0,
		}, nil
	}

	nodes, adjacency, err := p.loadGraph(ctx)
	if err != nil {
		return nil, err
	}

	return p.search(nodes, adjacency, startNode.ID, endNode.ID), nil
}

// snapToNode resolves a coordinate to the geometrically nearest node within
// the first non-empty search radius. Nil means the area has no graph data.
func (p *Pathfinder) snapToNode(ctx context.Context, lat, lng float64) (*domain.Node, error) {
	for _, radius := range snapRadiiDeg {
		candidates, err := p.network.FindNodesNear(ctx, lat, lng, radius)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			continue
		}

		best := candidates[0]
		bestDist := geo.Distance(lat, lng, best.Latitude, best.Longitude)
		for _, candidate := range candidates[1:] {
			dist := geo.Distance(lat, lng, candidate.Latitude, candidate.Longitude)
			if dist < bestDist {
				best = candidate
				bestDist = dist
			}
		}
		return &best, nil
	}
	return nil, nil
}

type neighbor struct {
	nodeID   string
	cost     float64
	distance float64
}

// loadGraph pulls the full node and edge sets into memory. Nodes and edges
// load in parallel; the graph is assumed to fit in memory for a city-scale
// deployment.
func (p *Pathfinder) loadGraph(ctx context.Context) (map[string]domain.Node, map[string][]neighbor, error) {
	var (
		nodes []domain.Node
		edges []domain.Edge
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		nodes, err = p.network.ListNodes(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		edges, err = p.network.ListEdges(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	metrics.GraphNodes.Set(float64(len(nodes)))
	metrics.GraphEdges.Set(float64(len(edges)))

	nodeMap := make(map[string]domain.Node, len(nodes))
	for _, node := range nodes {
		nodeMap[node.ID] = node
	}

	adjacency := make(map[string][]neighbor, len(nodes))
	for _, edge := range edges {
		// An edge referencing a missing node is a data error local to that
		// edge: drop it, keep the query alive on the remaining graph.
		if _, ok := nodeMap[edge.StartNodeID]; !ok {
			p.logger.Warn("edge references missing start node", "edgeId", edge.ID, "nodeId", edge.StartNodeID)
			continue
		}
		if _, ok := nodeMap[edge.EndNodeID]; !ok {
			p.logger.Warn("edge references missing end node", "edgeId", edge.ID, "nodeId", edge.EndNodeID)
			continue
		}
		adjacency[edge.StartNodeID] = append(adjacency[edge.StartNodeID], neighbor{
			nodeID:   edge.EndNodeID,
			cost:     edge.EffectiveCost(),
			distance: edge.Distance,
		})
	}

	return nodeMap, adjacency, nil
}

// search runs A* from startID to goalID. Returns nil when the goal is not
// reachable.
func (p *Pathfinder) search(nodes map[string]domain.Node, adjacency map[string][]neighbor, startID, goalID string) *domain.PathResult {
	goal, ok := nodes[goalID]
	if !ok {
		return nil
	}

	gScore := map[string]float64{startID: 0}
	distanceFrom := map[string]float64{startID: 0}
	cameFrom := make(map[string]string)
	visited := make(map[string]bool)

	pq := &routeQueue{}
	heap.Init(pq)
	heap.Push(pq, &routeItem{nodeID: startID, fScore: 0})

	for pq.Len() > 0 {
		current := heap.Pop(pq).(*routeItem)

		if current.nodeID == goalID {
			return p.reconstruct(nodes, cameFrom, goalID, distanceFrom[goalID], gScore[goalID])
		}

		// First pop wins; the heuristic is consistent so a node never needs
		// reopening.
		if visited[current.nodeID] {
			continue
		}
		visited[current.nodeID] = true

		currentG, ok := gScore[current.nodeID]
		if !ok {
			currentG = math.Inf(1)
		}

		for _, next := range adjacency[current.nodeID] {
			tentativeG := currentG + next.cost

			knownG, ok := gScore[next.nodeID]
			if ok && tentativeG >= knownG {
				continue
			}

			cameFrom[next.nodeID] = current.nodeID
			gScore[next.nodeID] = tentativeG
			distanceFrom[next.nodeID] = distanceFrom[current.nodeID] + next.distance

			node := nodes[next.nodeID]
			h := geo.Distance(node.Latitude, node.Longitude, goal.Latitude, goal.Longitude)
			heap.Push(pq, &routeItem{nodeID: next.nodeID, fScore: tentativeG + h})
		}
	}

	return nil
}

func (p *Pathfinder) reconstruct(nodes map[string]domain.Node, cameFrom map[string]string, goalID string, totalDistance, totalCost float64) *domain.PathResult {
	var reversed []domain.Coordinate
	nodeID := goalID
	for {
		node, ok := nodes[nodeID]
		if ok {
			reversed = append(reversed, domain.Coordinate{Lat: node.Latitude, Lng: node.Longitude})
		}
		prev, ok := cameFrom[nodeID]
		if !ok {
			break
		}
		nodeID = prev
	}

	path := make([]domain.Coordinate, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}

	return &domain.PathResult{
		Path:          path,
		TotalDistance: totalDistance,
		TotalCost:     totalCost,
		EstimatedTime: totalDistance / 1000 / p.speedKmh * 60,
	}
}

type routeItem struct {
	nodeID string
	fScore float64
}

type routeQueue []*routeItem

func (q routeQueue) Len() int           { return len(q) }
func (q routeQueue) Less(i, j int) bool { return q[i].fScore < q[j].fScore }
func (q routeQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *routeQueue) Push(x any) {
	*q = append(*q, x.(*routeItem))
}

func (q *routeQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
