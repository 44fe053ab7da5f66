package cluster

import (
	"math"
	"sort"

	"github.com/banshee-data/incident.report/internal/geo"
)

// NeighborIndex answers DBSCAN region queries. Implementations must return
// every point within epsKm of points[idx] (haversine), including idx itself,
// in ascending index order.
type NeighborIndex interface {
	Build(points []Point, epsKm float64)
	RegionQuery(points []Point, idx int, epsKm float64) []int
}

// NaiveIndex scans every point for each query. Detection windows keep batches
// small enough that the O(n²) cost is acceptable.
type NaiveIndex struct{}

// Build is a no-op for the naive scan.
func (NaiveIndex) Build([]Point, float64) {}

// RegionQuery returns indices of all points within epsKm of points[idx].
func (NaiveIndex) RegionQuery(points []Point, idx int, epsKm float64) []int {
	p := points[idx]
	neighbors := []int{}
	for j, q := range points {
		if geo.HaversineKm(p.Lat, p.Lon, q.Lat, q.Lon) <= epsKm {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}

// GridIndex buckets points into lat/lon cells at least eps wide in both
// directions, so a 3x3 cell search covers the neighbourhood. Candidates are
// confirmed with the haversine distance. Near the poles or the antimeridian,
// where cells stop being adjacent in a useful way, it falls back to a full scan.
type GridIndex struct {
	latCell  float64
	lonCell  float64
	grid     map[int64][]int
	fallback bool
}

// NewGridIndex returns an empty GridIndex.
func NewGridIndex() *GridIndex {
	return &GridIndex{grid: make(map[int64][]int)}
}

// Build populates the index. It must be called before RegionQuery.
func (gi *GridIndex) Build(points []Point, epsKm float64) {
	gi.grid = make(map[int64][]int, len(points))
	gi.fallback = false
	if len(points) == 0 || epsKm <= 0 {
		gi.fallback = true
		return
	}

	maxAbsLat := 0.0
	for _, p := range points {
		maxAbsLat = math.Max(maxAbsLat, math.Abs(p.Lat))
	}
	cosLat := math.Cos(maxAbsLat * math.Pi / 180)
	if cosLat < 0.05 {
		gi.fallback = true
		return
	}

	// 1% headroom so rounding at cell edges cannot drop a neighbour.
	gi.latCell = epsKm / geo.KmPerDegreeLat * 1.01
	gi.lonCell = gi.latCell / cosLat

	for _, p := range points {
		if math.Abs(p.Lon) > 180-2*gi.lonCell {
			gi.fallback = true
			return
		}
	}

	for i, p := range points {
		row, col := gi.cellCoords(p)
		id := pairCell(row, col)
		gi.grid[id] = append(gi.grid[id], i)
	}
}

func (gi *GridIndex) cellCoords(p Point) (int64, int64) {
	return int64(math.Floor(p.Lat / gi.latCell)), int64(math.Floor(p.Lon / gi.lonCell))
}

// RegionQuery returns indices of all points within epsKm of points[idx].
func (gi *GridIndex) RegionQuery(points []Point, idx int, epsKm float64) []int {
	if gi.fallback {
		return NaiveIndex{}.RegionQuery(points, idx, epsKm)
	}

	p := points[idx]
	row, col := gi.cellCoords(p)
	neighbors := []int{}
	for dr := int64(-1); dr <= 1; dr++ {
		for dc := int64(-1); dc <= 1; dc++ {
			for _, j := range gi.grid[pairCell(row+dr, col+dc)] {
				q := points[j]
				if geo.HaversineKm(p.Lat, p.Lon, q.Lat, q.Lon) <= epsKm {
					neighbors = append(neighbors, j)
				}
			}
		}
	}
	sort.Ints(neighbors)
	return neighbors
}

// pairCell maps a signed cell coordinate pair to a unique key using zigzag
// encoding followed by Szudzik's pairing function.
func pairCell(row, col int64) int64 {
	a := zigzag(row)
	b := zigzag(col)
	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

func zigzag(v int64) int64 {
	if v >= 0 {
		return 2 * v
	}
	return -2*v - 1
}

var (
	_ NeighborIndex = NaiveIndex{}
	_ NeighborIndex = (*GridIndex)(nil)
)
