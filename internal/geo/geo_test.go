package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestHaversineKm_ZeroAndSymmetric(t *testing.T) {
	points := [][2]float64{
		{0, 0},
		{1, 0},
		{51.5074, -0.1278},
		{-33.8688, 151.2093},
		{40.7128, -74.0060},
		{89.9, 179.9},
	}

	for _, a := range points {
		if d := HaversineKm(a[0], a[1], a[0], a[1]); d != 0 {
			t.Errorf("HaversineKm(%v, %v) = %f, want 0", a, a, d)
		}
		for _, b := range points {
			ab := HaversineKm(a[0], a[1], b[0], b[1])
			ba := HaversineKm(b[0], b[1], a[0], a[1])
			if math.Abs(ab-ba) > 1e-9 {
				t.Errorf("asymmetric distance %v <-> %v: %f vs %f", a, b, ab, ba)
			}
		}
	}
}

func TestHaversineKm_TriangleInequality(t *testing.T) {
	a := [2]float64{40.0, -74.0}
	b := [2]float64{41.0, -73.0}
	c := [2]float64{42.5, -71.2}

	ab := HaversineKm(a[0], a[1], b[0], b[1])
	bc := HaversineKm(b[0], b[1], c[0], c[1])
	ac := HaversineKm(a[0], a[1], c[0], c[1])
	if ac > ab+bc+1e-9 {
		t.Errorf("triangle inequality violated: ac=%f ab+bc=%f", ac, ab+bc)
	}
}

func TestHaversineKm_OneDegreeLatitude(t *testing.T) {
	d := HaversineKm(0, 0, 1, 0)
	if math.Abs(d-KmPerDegreeLat) > 1e-6 {
		t.Errorf("one degree of latitude = %f km, want %f", d, KmPerDegreeLat)
	}
}

func TestBearingDeg(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
	}{
		{"north", 0, 0, 1, 0, 0},
		{"east", 0, 0, 0, 1, 90},
		{"south", 1, 0, 0, 0, 180},
		{"west", 0, 1, 0, 0, 270},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BearingDeg(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("BearingDeg = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestProject_RoundTrip(t *testing.T) {
	lat, lon := 37.7749, -122.4194
	for _, bearing := range []float64{0, 45, 90, 135, 200, 315} {
		pLat, pLon := Project(lat, lon, bearing, 2.5)
		d := HaversineKm(lat, lon, pLat, pLon)
		if math.Abs(d-2.5) > 1e-6 {
			t.Errorf("bearing %.0f: projected distance = %f, want 2.5", bearing, d)
		}
		back := BearingDeg(lat, lon, pLat, pLon)
		if diff := math.Abs(back - bearing); diff > 1e-4 && math.Abs(diff-360) > 1e-4 {
			t.Errorf("bearing %.0f: recovered bearing %f", bearing, back)
		}
	}
}

func TestValidCoordinate(t *testing.T) {
	if !ValidCoordinate(0, 0) {
		t.Error("(0,0) should be valid")
	}
	if ValidCoordinate(91, 0) || ValidCoordinate(0, 181) {
		t.Error("out of range coordinates should be invalid")
	}
	if ValidCoordinate(math.NaN(), 0) || ValidCoordinate(0, math.Inf(1)) {
		t.Error("non-finite coordinates should be invalid")
	}
}

func TestGridCell(t *testing.T) {
	c := GridCell(40.71234, -74.00567, 0.01)
	if c.Row != 4071 || c.Col != -7401 {
		t.Errorf("GridCell = %+v, want {4071 -7401}", c)
	}
	lat, lon := c.Center(0.01)
	if math.Abs(lat-40.715) > 1e-9 || math.Abs(lon-(-74.005)) > 1e-9 {
		t.Errorf("Center = (%f, %f), want (40.715, -74.005)", lat, lon)
	}
	if GridCell(40.71999, -74.00001, 0.01) != c {
		t.Error("points in the same cell should share a key")
	}
}

func TestCentroid(t *testing.T) {
	if _, ok := Centroid(nil); ok {
		t.Error("Centroid of no points should report false")
	}
	c, ok := Centroid([]orb.Point{{0, 0}, {2, 2}, {4, 4}})
	if !ok {
		t.Fatal("expected centroid")
	}
	if c.Lon() != 2 || c.Lat() != 2 {
		t.Errorf("Centroid = %v, want [2 2]", c)
	}
}
