package generator

// Config drives the synthetic road network and issue generator.
type Config struct {
	// Rows and Cols size the node lattice.
	Rows int
	Cols int

	// OriginLat/OriginLng anchor the south-west corner of the lattice.
	OriginLat float64
	OriginLng float64

	// SpacingDeg is the distance between adjacent lattice nodes in degrees.
	SpacingDeg float64

	// NumIssues is how many issues to scatter across the network.
	NumIssues int

	// ResolvedChance is the probability an issue is generated as RESOLVED.
	ResolvedChance float64

	Seed int64
}

// DefaultConfig returns a city-block sized network with a realistic issue
// density.
func DefaultConfig() Config {
	return Config{
		Rows:           40,
		Cols:           40,
		OriginLat:      28.60,
		OriginLng:      77.20,
		SpacingDeg:     0.001,
		NumIssues:      200,
		ResolvedChance: 0.3,
		Seed:           42,
	}
}
