// README: Cumulative along-route distance index over a route polyline.
package mapmatch

import (
	"github.com/paulmach/orb"

	"livenav/internal/geo"
)

// Index holds the along-route distance in metres of every polyline vertex.
// Index 0 is always 0 and values never decrease.
type Index []float64

// NewIndex builds the prefix sum of haversine segment lengths in one pass.
func NewIndex(line orb.LineString) Index {
	if len(line) == 0 {
		return nil
	}
	idx := make(Index, len(line))
	for i := 1; i < len(line); i++ {
		idx[i] = idx[i-1] + geo.Haversine(line[i-1], line[i])
	}
	return idx
}

// At returns the along-route distance of vertex i.
func (x Index) At(i int) float64 {
	return x[i]
}

// Total is the along-route length of the whole line.
func (x Index) Total() float64 {
	if len(x) == 0 {
		return 0
	}
	return x[len(x)-1]
}

func (x Index) Len() int {
	return len(x)
}
