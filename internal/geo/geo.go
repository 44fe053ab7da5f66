// Package geo provides the great-circle helpers shared by anomaly detection
// and incident linkage.
//
// All distances are on a sphere of radius EarthRadiusKm. Functions are pure
// and safe for concurrent use.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// EarthRadiusKm is the mean Earth radius used for every distance computation.
const EarthRadiusKm = 6371.0

// KmPerDegreeLat is the length of one degree of latitude on the EarthRadiusKm sphere.
const KmPerDegreeLat = EarthRadiusKm * math.Pi / 180.0

func toRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func toDeg(rad float64) float64 { return rad * 180.0 / math.Pi }

// HaversineKm returns the great-circle distance between two lat/lon pairs in kilometres.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push a marginally above 1 for antipodal points.
	if a > 1 {
		a = 1
	}
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// DistanceKm is HaversineKm for orb points (X = lon, Y = lat).
func DistanceKm(a, b orb.Point) float64 {
	return HaversineKm(a.Lat(), a.Lon(), b.Lat(), b.Lon())
}

// BearingDeg returns the initial bearing from the first point to the second,
// normalised to [0, 360).
func BearingDeg(lat1, lon1, lat2, lon2 float64) float64 {
	b := orbgeo.Bearing(orb.Point{lon1, lat1}, orb.Point{lon2, lat2})
	return math.Mod(b+360, 360)
}

// Project returns the point reached by travelling distanceKm from (lat, lon)
// along the given initial bearing.
func Project(lat, lon, bearingDeg, distanceKm float64) (float64, float64) {
	delta := distanceKm / EarthRadiusKm
	theta := toRad(bearingDeg)
	phi1 := toRad(lat)
	lambda1 := toRad(lon)

	sinPhi2 := math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta)
	phi2 := math.Asin(sinPhi2)
	y := math.Sin(theta) * math.Sin(delta) * math.Cos(phi1)
	x := math.Cos(delta) - math.Sin(phi1)*sinPhi2
	lambda2 := lambda1 + math.Atan2(y, x)

	outLon := math.Mod(toDeg(lambda2)+540, 360) - 180
	return toDeg(phi2), outLon
}

// ValidCoordinate reports whether lat/lon are finite and in range.
func ValidCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Cell identifies a square lat/lon grid cell.
type Cell struct {
	Row int64 // floor(lat / size)
	Col int64 // floor(lon / size)
}

// GridCell returns the cell containing (lat, lon) for a grid of sizeDeg degrees.
func GridCell(lat, lon, sizeDeg float64) Cell {
	return Cell{
		Row: int64(math.Floor(lat / sizeDeg)),
		Col: int64(math.Floor(lon / sizeDeg)),
	}
}

// Bound returns the lat/lon rectangle covered by the cell.
func (c Cell) Bound(sizeDeg float64) orb.Bound {
	minLat := float64(c.Row) * sizeDeg
	minLon := float64(c.Col) * sizeDeg
	return orb.Bound{
		Min: orb.Point{minLon, minLat},
		Max: orb.Point{minLon + sizeDeg, minLat + sizeDeg},
	}
}

// Center returns the centre of the cell as (lat, lon).
func (c Cell) Center(sizeDeg float64) (float64, float64) {
	p := c.Bound(sizeDeg).Center()
	return p.Lat(), p.Lon()
}

// Centroid returns the arithmetic mean of the given points. The second return
// value is false when points is empty.
func Centroid(points []orb.Point) (orb.Point, bool) {
	if len(points) == 0 {
		return orb.Point{}, false
	}
	var sumLat, sumLon float64
	for _, p := range points {
		sumLat += p.Lat()
		sumLon += p.Lon()
	}
	n := float64(len(points))
	return orb.Point{sumLon / n, sumLat / n}, true
}
