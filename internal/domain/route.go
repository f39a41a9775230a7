package domain

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bounds is a latitude/longitude bounding box. Reversed bounds (min > max)
// describe an empty box, not an error.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// Contains reports whether the coordinate lies inside the box, edges
// inclusive.
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// PathResult is a computed route between two snapped graph nodes.
type PathResult struct {
	Path          []Coordinate `json:"path"`
	TotalDistance float64      `json:"totalDistance"` // meters
	TotalCost     float64      `json:"totalCost"`     // penalty-weighted, informational
	EstimatedTime float64      `json:"estimatedTime"` // minutes at the assumed average speed
}
