// README: Route lifecycle events persisted for replay and auditing.
package journal

import (
	"time"

	"github.com/paulmach/orb"

	"livenav/internal/types"
)

type Kind string

const (
	KindCreated       Kind = "created"
	KindRerouted      Kind = "rerouted"
	KindRerouteFailed Kind = "reroute_failed"
	KindCleared       Kind = "cleared"
)

type Event struct {
	ID       int64
	RouteID  types.ID
	Kind     Kind
	Revision int
	// Detail is free text such as the provider failure message.
	Detail string
	// Position is the fix that caused the event, if any.
	Position *orb.Point
	// DistanceM is the route length after the event.
	DistanceM float64
	CreatedAt time.Time
}
