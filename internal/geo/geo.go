// README: Geodesic helpers: haversine distance and flat-earth segment projection.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// EarthRadiusMeters is the mean Earth radius used by every distance in this module.
const EarthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance in metres between two [lon, lat] points.
func Haversine(a, b orb.Point) float64 {
	dLat := degreesToRadians(b.Lat() - a.Lat())
	dLng := degreesToRadians(b.Lon() - a.Lon())

	rLat1 := degreesToRadians(a.Lat())
	rLat2 := degreesToRadians(b.Lat())

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// ProjectOnSegment returns the point of segment a-b closest to p and its fraction t
// in [0, 1] along the segment.
//
// The segment is flattened with an equirectangular projection centred on its
// midpoint latitude. Only valid for short segments (metres to a few hundred metres).
func ProjectOnSegment(p, a, b orb.Point) (orb.Point, float64) {
	lat0 := degreesToRadians((a.Lat() + b.Lat()) / 2)
	kx := math.Cos(lat0)

	bx, by := (b.Lon()-a.Lon())*kx, b.Lat()-a.Lat()
	px, py := (p.Lon()-a.Lon())*kx, p.Lat()-a.Lat()

	lenSq := bx*bx + by*by
	if lenSq == 0 {
		return a, 0
	}
	t := (px*bx + py*by) / lenSq
	switch {
	case t <= 0:
		return a, 0
	case t >= 1:
		return b, 1
	}
	return Interpolate(a, b, t), t
}

// Interpolate returns the point at fraction t between a and b in lon/lat space.
func Interpolate(a, b orb.Point, t float64) orb.Point {
	return orb.Point{
		a.Lon() + (b.Lon()-a.Lon())*t,
		a.Lat() + (b.Lat()-a.Lat())*t,
	}
}

// Offset moves p by east/north metres. Used to build local test geometry and
// synthetic fixes; accurate to well under a centimetre for offsets below 1 km.
func Offset(p orb.Point, eastM, northM float64) orb.Point {
	dLat := northM / EarthRadiusMeters
	dLng := eastM / (EarthRadiusMeters * math.Cos(degreesToRadians(p.Lat())))
	return orb.Point{
		p.Lon() + radiansToDegrees(dLng),
		p.Lat() + radiansToDegrees(dLat),
	}
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func radiansToDegrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
