// README: Provider-neutral route plan returned by every route-planning backend.
package maps

import (
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"livenav/internal/maneuver"
	"livenav/internal/polyline"
)

// ErrNoRoute is wrapped by a PlanningError when the provider answered without a candidate.
var ErrNoRoute = errors.New("no route found")

// PlanningError reports a provider that rejected or failed a planning request.
type PlanningError struct {
	Provider string
	Message  string
	Err      error
}

func (e *PlanningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s planning failed: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s planning failed: %s", e.Provider, e.Message)
}

func (e *PlanningError) Unwrap() error { return e.Err }

// Plan is one route candidate. Exactly one of Geometry or Encoded is set.
type Plan struct {
	Geometry orb.LineString
	// Encoded is a polyline-algorithm string decoded with Precision.
	Encoded   string
	Precision float64
	Steps     []maneuver.Raw
	// Distance is the provider-reported length in metres.
	Distance float64
	Duration time.Duration
}

// Line returns the plan geometry, decoding it when the provider sent an
// encoded polyline. Decode failures are returned as *polyline.DecodeError.
func (p *Plan) Line() (orb.LineString, error) {
	if p.Encoded == "" {
		return p.Geometry, nil
	}
	precision := p.Precision
	if precision == 0 {
		precision = polyline.Precision5
	}
	return polyline.DecodeWithPrecision(p.Encoded, precision)
}
