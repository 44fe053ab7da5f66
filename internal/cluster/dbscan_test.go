package cluster

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/incident.report/internal/geo"
)

// spread returns n points around (lat, lon), each within maxMeters of it.
func spread(lat, lon float64, n int, maxMeters float64) []Point {
	pts := make([]Point, n)
	for i := 0; i < n; i++ {
		bearing := float64(i) * 360.0 / float64(n)
		pLat, pLon := geo.Project(lat, lon, bearing, maxMeters/1000.0)
		pts[i] = Point{Lat: pLat, Lon: pLon, Payload: i}
	}
	return pts
}

func TestDBSCAN_EmptyAndTooFewPoints(t *testing.T) {
	if got := DBSCAN(nil, DefaultParams(), nil); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
	pts := []Point{{Lat: 1, Lon: 1}, {Lat: 1, Lon: 1}}
	if got := DBSCAN(pts, Params{EpsilonMeters: 100, MinPoints: 3}, nil); len(got) != 0 {
		t.Errorf("expected no clusters below min_points, got %d", len(got))
	}
}

func TestDBSCAN_CoincidentPointsFormOneCluster(t *testing.T) {
	params := Params{EpsilonMeters: 50, MinPoints: 4}
	pts := make([]Point, params.MinPoints)
	for i := range pts {
		pts[i] = Point{Lat: 40.7128, Lon: -74.0060, Payload: i}
	}

	clusters := DBSCAN(pts, params, nil)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	c := clusters[0]
	if c.MemberCount != params.MinPoints {
		t.Errorf("MemberCount = %d, want %d", c.MemberCount, params.MinPoints)
	}
	if c.RadiusMeters > 1e-6 {
		t.Errorf("RadiusMeters = %f, want ~0", c.RadiusMeters)
	}
	if math.IsInf(c.Density, 0) || math.IsNaN(c.Density) || c.Density <= 0 {
		t.Errorf("Density = %f, want finite positive", c.Density)
	}
}

func TestDBSCAN_IsolatedPointsAreNoise(t *testing.T) {
	// Points roughly 11 km apart with a 500 m epsilon.
	pts := []Point{
		{Lat: 40.0, Lon: -74.0},
		{Lat: 40.1, Lon: -74.0},
		{Lat: 40.2, Lon: -74.0},
		{Lat: 40.3, Lon: -74.0},
	}
	if got := DBSCAN(pts, DefaultParams(), nil); len(got) != 0 {
		t.Errorf("expected only noise, got %d clusters", len(got))
	}
}

func TestDBSCAN_TwoClustersAndNoise(t *testing.T) {
	a := spread(40.0, -74.0, 6, 100)
	b := spread(40.05, -74.05, 4, 80)
	noise := []Point{{Lat: 41.0, Lon: -75.0, Payload: "noise"}}

	pts := append(append(append([]Point{}, a...), noise...), b...)
	clusters := DBSCAN(pts, DefaultParams(), nil)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	if clusters[0].MemberCount != 6 || clusters[1].MemberCount != 4 {
		t.Errorf("member counts = %d, %d; want 6, 4", clusters[0].MemberCount, clusters[1].MemberCount)
	}
	for _, c := range clusters {
		for _, m := range c.Members {
			if m.Payload == "noise" {
				t.Error("noise point assigned to a cluster")
			}
		}
		if c.RadiusMeters > 100.5 {
			t.Errorf("cluster %d radius %.2f m exceeds spread", c.ID, c.RadiusMeters)
		}
	}
	if math.Abs(clusters[0].CentroidLat-40.0) > 1e-4 || math.Abs(clusters[0].CentroidLon+74.0) > 1e-4 {
		t.Errorf("centroid = (%f, %f), want ~(40, -74)", clusters[0].CentroidLat, clusters[0].CentroidLon)
	}
}

func TestDBSCAN_BorderPointsJoin(t *testing.T) {
	// Five points at the origin and three 400 m west are core points with
	// MinPoints=7. The point 400 m east only reaches itself and the origin
	// group (6 points), so it is not core, but it is density-reachable.
	wLat, wLon := geo.Project(0, 0, 270, 0.4)
	bLat, bLon := geo.Project(0, 0, 90, 0.4)

	pts := []Point{{Lat: bLat, Lon: bLon, Payload: "border"}}
	for i := 0; i < 5; i++ {
		pts = append(pts, Point{Lat: 0, Lon: 0})
	}
	for i := 0; i < 3; i++ {
		pts = append(pts, Point{Lat: wLat, Lon: wLon})
	}

	clusters := DBSCAN(pts, Params{EpsilonMeters: 500, MinPoints: 7}, nil)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if clusters[0].MemberCount != 9 {
		t.Errorf("MemberCount = %d, want 9 (border included)", clusters[0].MemberCount)
	}
	if clusters[0].Indices[0] != 0 {
		t.Errorf("border point (index 0) should be a member, indices = %v", clusters[0].Indices)
	}
}

func TestDBSCAN_GridIndexMatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pts := make([]Point, 0, 300)
	for i := 0; i < 300; i++ {
		pts = append(pts, Point{
			Lat:     51.5 + rng.Float64()*0.05,
			Lon:     -0.12 + rng.Float64()*0.08,
			Payload: i,
		})
	}
	params := Params{EpsilonMeters: 400, MinPoints: 4}

	naive := DBSCAN(pts, params, NaiveIndex{})
	grid := DBSCAN(pts, params, NewGridIndex())

	opt := cmp.Comparer(func(a, b float64) bool { return math.Abs(a-b) < 1e-9 })
	if diff := cmp.Diff(naive, grid, opt, cmp.FilterPath(func(p cmp.Path) bool {
		return p.Last().String() == ".Bound"
	}, cmp.Ignore())); diff != "" {
		t.Errorf("grid index result differs from naive scan (-naive +grid):\n%s", diff)
	}
}

func TestGridIndex_FallbackNearPole(t *testing.T) {
	pts := []Point{{Lat: 89.99, Lon: 0}, {Lat: 89.99, Lon: 90}, {Lat: 89.99, Lon: 180}}
	gi := NewGridIndex()
	gi.Build(pts, 5)
	if !gi.fallback {
		t.Fatal("expected fallback near the pole")
	}
	got := gi.RegionQuery(pts, 0, 5)
	want := NaiveIndex{}.RegionQuery(pts, 0, 5)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fallback query mismatch:\n%s", diff)
	}
}

func TestDBSCANClusterer_Params(t *testing.T) {
	c := NewDefaultDBSCANClusterer()
	if got := c.Params(); got != DefaultParams() {
		t.Errorf("Params() = %+v, want defaults", got)
	}
	c.SetParams(Params{EpsilonMeters: 250, MinPoints: 2})
	if got := c.Params(); got.EpsilonMeters != 250 || got.MinPoints != 2 {
		t.Errorf("SetParams not applied: %+v", got)
	}

	pts := spread(10, 10, 3, 50)
	if got := c.WithGridIndex().Cluster(pts); len(got) != 1 {
		t.Errorf("expected 1 cluster, got %d", len(got))
	}
}
