// Package cluster implements density-based (DBSCAN) clustering over
// geo-tagged points.
//
// Distances are great-circle (haversine) distances. Points that never fall
// inside a dense neighbourhood are noise and are left out of the result.
package cluster

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/banshee-data/incident.report/internal/geo"
)

// Default parameters used by the offender-clustering strategy.
const (
	DefaultEpsilonMeters = 500.0
	DefaultMinPoints     = 3

	// DensityRadiusEpsilonKm is added to the cluster radius before computing
	// density so single-location clusters do not divide by zero.
	DensityRadiusEpsilonKm = 0.001
)

// Point is a geo-tagged input to the clusterer. Payload is carried through
// untouched (typically an event ID or *event.Event).
type Point struct {
	Lat     float64
	Lon     float64
	Payload any
}

// Cluster is one dense group of points.
type Cluster struct {
	ID           int       `json:"id"`
	CentroidLat  float64   `json:"centroid_lat"`
	CentroidLon  float64   `json:"centroid_lon"`
	RadiusMeters float64   `json:"radius_meters"`
	MemberCount  int       `json:"member_count"`
	Density      float64   `json:"density"` // members per km²
	Bound        orb.Bound `json:"-"`
	Members      []Point   `json:"-"`
	Indices      []int     `json:"member_indices"`
}

// Params holds DBSCAN parameters.
type Params struct {
	EpsilonMeters float64 `json:"epsilon_meters"`
	MinPoints     int     `json:"min_points"`
}

// DefaultParams returns the offender-clustering defaults (500 m, 3 points).
func DefaultParams() Params {
	return Params{EpsilonMeters: DefaultEpsilonMeters, MinPoints: DefaultMinPoints}
}

// DBSCAN clusters points. The neighbourhood of a point includes the point
// itself; a point is a core point when its neighbourhood holds at least
// MinPoints points. Clusters are returned in discovery order and members keep
// input order. A nil index uses NaiveIndex.
func DBSCAN(points []Point, params Params, index NeighborIndex) []Cluster {
	if len(points) == 0 || params.MinPoints <= 0 || len(points) < params.MinPoints {
		return nil
	}
	if index == nil {
		index = NaiveIndex{}
	}

	epsKm := params.EpsilonMeters / 1000.0
	index.Build(points, epsKm)

	n := len(points)
	labels := make([]int, n) // 0=unvisited, -1=noise, >0=clusterID
	clusterID := 0

	for i := 0; i < n; i++ {
		if labels[i] != 0 {
			continue
		}

		neighbors := index.RegionQuery(points, i, epsKm)
		if len(neighbors) < params.MinPoints {
			labels[i] = -1
			continue
		}

		clusterID++
		expandCluster(points, index, labels, i, neighbors, clusterID, epsKm, params.MinPoints)
	}

	return buildClusters(points, labels, clusterID)
}

// expandCluster grows a cluster breadth-first from a core point.
func expandCluster(points []Point, index NeighborIndex, labels []int,
	seedIdx int, neighbors []int, clusterID int, epsKm float64, minPts int) {

	labels[seedIdx] = clusterID

	for j := 0; j < len(neighbors); j++ {
		idx := neighbors[j]

		if labels[idx] == -1 {
			labels[idx] = clusterID // noise becomes a border point
		}
		if labels[idx] != 0 {
			continue
		}

		labels[idx] = clusterID
		next := index.RegionQuery(points, idx, epsKm)
		if len(next) >= minPts {
			neighbors = append(neighbors, next...)
		}
	}
}

func buildClusters(points []Point, labels []int, maxClusterID int) []Cluster {
	if maxClusterID == 0 {
		return nil
	}
	members := make([][]int, maxClusterID+1)
	for i, label := range labels {
		if label > 0 {
			members[label] = append(members[label], i)
		}
	}

	clusters := make([]Cluster, 0, maxClusterID)
	for cid := 1; cid <= maxClusterID; cid++ {
		if len(members[cid]) == 0 {
			continue
		}
		clusters = append(clusters, computeClusterMetrics(points, members[cid], cid))
	}
	return clusters
}

func computeClusterMetrics(points []Point, indices []int, clusterID int) Cluster {
	memberPoints := make([]Point, len(indices))
	orbPoints := make([]orb.Point, len(indices))
	for k, idx := range indices {
		memberPoints[k] = points[idx]
		orbPoints[k] = orb.Point{points[idx].Lon, points[idx].Lat}
	}

	centroid, _ := geo.Centroid(orbPoints)
	bound := orb.MultiPoint(orbPoints).Bound()

	radiusKm := 0.0
	for _, p := range orbPoints {
		radiusKm = math.Max(radiusKm, geo.DistanceKm(centroid, p))
	}

	r := radiusKm + DensityRadiusEpsilonKm
	return Cluster{
		ID:           clusterID,
		CentroidLat:  centroid.Lat(),
		CentroidLon:  centroid.Lon(),
		RadiusMeters: radiusKm * 1000.0,
		MemberCount:  len(indices),
		Density:      float64(len(indices)) / (math.Pi * r * r),
		Bound:        bound,
		Members:      memberPoints,
		Indices:      append([]int(nil), indices...),
	}
}
