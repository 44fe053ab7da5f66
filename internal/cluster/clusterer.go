package cluster

import "sync"

// Clusterer abstracts the clustering implementation so the anomaly detector
// can be tested with, or switched to, a different strategy.
type Clusterer interface {
	// Cluster groups points. Noise points are omitted.
	Cluster(points []Point) []Cluster

	// Params returns the current clustering parameters.
	Params() Params

	// SetParams updates the clustering parameters.
	SetParams(params Params)
}

// DBSCANClusterer implements Clusterer with DBSCAN.
type DBSCANClusterer struct {
	mu       sync.RWMutex
	params   Params
	newIndex func() NeighborIndex
}

// NewDBSCANClusterer creates a DBSCAN clusterer with the given parameters,
// using the naive neighbour scan.
func NewDBSCANClusterer(epsilonMeters float64, minPoints int) *DBSCANClusterer {
	return &DBSCANClusterer{
		params:   Params{EpsilonMeters: epsilonMeters, MinPoints: minPoints},
		newIndex: func() NeighborIndex { return NaiveIndex{} },
	}
}

// NewDefaultDBSCANClusterer creates a DBSCAN clusterer with DefaultParams.
func NewDefaultDBSCANClusterer() *DBSCANClusterer {
	p := DefaultParams()
	return NewDBSCANClusterer(p.EpsilonMeters, p.MinPoints)
}

// WithGridIndex switches neighbour queries to a GridIndex. Results are the
// same as the naive scan; only the cost of each query changes.
func (c *DBSCANClusterer) WithGridIndex() *DBSCANClusterer {
	c.mu.Lock()
	c.newIndex = func() NeighborIndex { return NewGridIndex() }
	c.mu.Unlock()
	return c
}

// Cluster runs DBSCAN over points.
func (c *DBSCANClusterer) Cluster(points []Point) []Cluster {
	c.mu.RLock()
	params := c.params
	index := c.newIndex()
	c.mu.RUnlock()
	return DBSCAN(points, params, index)
}

// Params returns the current clustering parameters.
func (c *DBSCANClusterer) Params() Params {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.params
}

// SetParams updates the clustering parameters.
func (c *DBSCANClusterer) SetParams(params Params) {
	c.mu.Lock()
	c.params = params
	c.mu.Unlock()
}

var _ Clusterer = (*DBSCANClusterer)(nil)
