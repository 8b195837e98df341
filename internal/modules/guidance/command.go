package guidance

import (
	"sync"
	"time"

	"livenav/internal/maneuver"
	"livenav/internal/types"
)

type NavStatus string

const (
	NavStatusOK    NavStatus = "ok"
	NavStatusError NavStatus = "error"
)

// Reasons carried by an error NavCommand.
const (
	ReasonNotCreated = "route not created yet"
	ReasonOffRoute   = "off route"
	ReasonNoManeuver = "no upcoming maneuver"
	ReasonArrived    = "destination reached"
)

// NavCommand is the compact instruction published for the driver display.
type NavCommand struct {
	Status                NavStatus
	Turn                  maneuver.Turn
	DistanceToTurn        float64
	DistanceToDestination float64
	Message               string
	RouteID               types.ID
	UpdatedAt             time.Time
}

// commandBoard holds the most recent NavCommand across all routes.
type commandBoard struct {
	mu  sync.Mutex
	cmd NavCommand
	set bool
}

func (b *commandBoard) publish(cmd NavCommand) {
	b.mu.Lock()
	b.cmd = cmd
	b.set = true
	b.mu.Unlock()
}

func (b *commandBoard) snapshot() NavCommand {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.set {
		return NavCommand{Status: NavStatusError, Message: ReasonNotCreated}
	}
	return b.cmd
}

func (b *commandBoard) reset() {
	b.mu.Lock()
	b.cmd = NavCommand{}
	b.set = false
	b.mu.Unlock()
}

// commandFor derives the NavCommand for one tracking result.
func commandFor(res *UpdateResult, thresholdM float64, now time.Time) NavCommand {
	cmd := NavCommand{Status: NavStatusError, RouteID: res.RouteID, UpdatedAt: now}
	switch {
	case res.OffRoute >= thresholdM:
		cmd.Message = ReasonOffRoute
	case res.Remaining <= 0:
		cmd.Message = ReasonArrived
	case res.Next == nil:
		cmd.Message = ReasonNoManeuver
	default:
		cmd.Status = NavStatusOK
		cmd.Turn = res.Next.Turn()
		cmd.DistanceToTurn = res.DistanceToNext
		cmd.DistanceToDestination = res.Remaining
		cmd.Message = res.Next.Text
	}
	return cmd
}
