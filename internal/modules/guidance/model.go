// README: Route aggregate, tracking state and engine tunables for live guidance.
package guidance

import (
	"time"

	"github.com/paulmach/orb"

	"livenav/internal/maneuver"
	"livenav/internal/mapmatch"
	"livenav/internal/types"
)

type Config struct {
	// RerouteThresholdM is the off-route distance beyond which a reroute fires.
	RerouteThresholdM float64
	// PassedBufferM is how far behind the agent a waypoint must lie to count as passed.
	PassedBufferM float64
	DensifyStepM  float64
	Window        int
	// ProgressEpsilonM is the minimum drop in remaining distance counted as progress.
	ProgressEpsilonM float64
	NoProgressLimit  int
	ManeuverBufferM  float64
	RerouteEnabled   bool
	PlannerTimeout   time.Duration
	// RerouteBackoff suppresses new reroute attempts on a route after a failed one.
	RerouteBackoff time.Duration
}

func DefaultConfig() Config {
	return Config{
		RerouteThresholdM: 20,
		PassedBufferM:     5,
		DensifyStepM:      0.5,
		Window:            mapmatch.DefaultWindow,
		ProgressEpsilonM:  1,
		NoProgressLimit:   4,
		ManeuverBufferM:   0,
		RerouteEnabled:    true,
		PlannerTimeout:    15 * time.Second,
		RerouteBackoff:    5 * time.Second,
	}
}

// TrackingState is the per-route matcher memory. The zero value is the
// initial state installed on creation and after every geometry swap.
type TrackingState struct {
	Hint          int
	LastRemaining float64
	NoProgress    int
	// HasBaseline is false until the first update on the current geometry.
	HasBaseline bool
	// RetryAfter is when a reroute may be attempted again after a failure.
	RetryAfter time.Time
}

// Route is a planned route and its tracking state. Geometry slices are
// replaced wholesale on reroute and never mutated in place, so shallow copies
// are safe to hand out.
type Route struct {
	ID       types.ID
	Revision int
	Line     orb.LineString
	Index    mapmatch.Index
	// Maneuvers are sorted by along-route distance.
	Maneuvers []maneuver.Maneuver
	Waypoints []orb.Point
	// WaypointAlong holds each waypoint's along-route distance on Line.
	WaypointAlong []float64
	// Distance and Duration are the provider-reported totals.
	Distance  float64
	Duration  time.Duration
	Tracking  TrackingState
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Destination returns the final waypoint.
func (r *Route) Destination() orb.Point {
	if len(r.Waypoints) == 0 {
		if len(r.Line) == 0 {
			return orb.Point{}
		}
		return r.Line[len(r.Line)-1]
	}
	return r.Waypoints[len(r.Waypoints)-1]
}

type CreateCommand struct {
	// ID is optional; a random id is generated when empty.
	ID        types.ID
	Waypoints []orb.Point
}

type UpdateCommand struct {
	RouteID  types.ID
	Position orb.Point
	Heading  *float64
}

// UpdateResult is the tracking outcome of one position fix.
type UpdateResult struct {
	RouteID   types.ID
	Revision  int
	Projected orb.Point
	Along     float64
	OffRoute  float64
	Remaining float64
	// Next is nil when no maneuver lies ahead.
	Next           *maneuver.Maneuver
	DistanceToNext float64
	NoProgress     int
	Heading        *float64
	Rerouted       bool
	// RerouteError carries the provider failure when a triggered reroute did not install.
	RerouteError string
	// Route is a snapshot of the new route when Rerouted is set.
	Route *Route
}
