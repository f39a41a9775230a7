// Package metrics defines the Prometheus collectors for the routing core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RouteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civicgrid_route_requests_total",
		Help: "Route queries by outcome (found, no_route, error).",
	}, []string{"outcome"})

	RouteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "civicgrid_route_duration_seconds",
		Help:    "Time spent answering a route query, including the graph load.",
		Buckets: prometheus.DefBuckets,
	})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "civicgrid_graph_nodes",
		Help: "Number of nodes seen in the most recent full graph load.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "civicgrid_graph_edges",
		Help: "Number of edges seen in the most recent full graph load.",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civicgrid_cache_hits_total",
		Help: "Cache hits by entry kind (grid_cell, issue_summary).",
	}, []string{"kind"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civicgrid_cache_misses_total",
		Help: "Cache misses by entry kind (grid_cell, issue_summary).",
	}, []string{"kind"})

	ViewportQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civicgrid_viewport_queries_total",
		Help: "Map viewport queries by serving mode (cached, direct).",
	}, []string{"mode"})

	PenaltyRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "civicgrid_penalty_run_seconds",
		Help:    "Duration of a full penalty recalculation run.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	})

	PenaltyLastRun = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "civicgrid_penalty_last_run_timestamp_seconds",
		Help: "Unix time of the last successful penalty recalculation.",
	})
)
