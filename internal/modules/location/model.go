// README: Raw position fix as published by the telemetry bridge.
package location

import (
	"time"

	"github.com/paulmach/orb"

	"livenav/internal/types"
)

type Fix struct {
	Position orb.Point
	// Yaw is the heading in degrees, when the source reports one.
	Yaw *float64
	// RouteID is set when the fix arrived as a route position update.
	RouteID    types.ID
	RecordedAt time.Time
}
