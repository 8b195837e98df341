// README: Point-to-polyline matching: exact full scan and forward windowed search.
package mapmatch

import (
	"math"

	"github.com/paulmach/orb"

	"livenav/internal/geo"
)

// DefaultWindow is the number of vertices the windowed matcher inspects.
const DefaultWindow = 20

// Match is the projection of a query point onto a route.
type Match struct {
	// Along is the along-route distance of Point in metres.
	Along float64
	// Index is the matched vertex. For a full scan it is the end vertex of the
	// matched segment; for a windowed search it is the nearest vertex.
	Index int
	// T is the fraction along segment Index-1..Index (full scan only).
	T     float64
	Point orb.Point
}

// OffRoute is the geodesic distance between the query point and its projection.
func OffRoute(p orb.Point, m Match) float64 {
	return geo.Haversine(p, m.Point)
}

// FullScan projects p onto every segment of line and returns the closest
// projection. It is O(n) and needs no prior state.
func FullScan(line orb.LineString, idx Index, p orb.Point) Match {
	switch len(line) {
	case 0:
		return Match{Point: p}
	case 1:
		return Match{Point: line[0]}
	}

	best := Match{}
	bestDist := math.Inf(1)
	for i := 1; i < len(line); i++ {
		proj, t := geo.ProjectOnSegment(p, line[i-1], line[i])
		d := geo.Haversine(p, proj)
		if d < bestDist {
			bestDist = d
			best = Match{
				Along: idx[i-1] + t*(idx[i]-idx[i-1]),
				Index: i,
				T:     t,
				Point: proj,
			}
		}
	}
	best.Along = math.Max(0, math.Min(best.Along, idx.Total()))
	return best
}

// Window returns the nearest vertex among size vertices starting at hint. The
// result index is never below hint, so repeated calls only move forward along
// the route. Callers detect an agent outside the window through OffRoute.
func Window(line orb.LineString, idx Index, p orb.Point, hint, size int) Match {
	n := len(line)
	if n == 0 {
		return Match{Point: p}
	}
	if hint < 0 {
		hint = 0
	}
	if hint > n-1 {
		hint = n - 1
	}
	if size < 1 {
		size = 1
	}
	end := hint + size
	if end > n {
		end = n
	}

	bestIdx := hint
	bestDist := math.Inf(1)
	for i := hint; i < end; i++ {
		if d := geo.Haversine(p, line[i]); d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	return Match{
		Along: idx[bestIdx],
		Index: bestIdx,
		Point: line[bestIdx],
	}
}
