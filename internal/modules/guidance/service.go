// README: Guidance service tracks position fixes against stored routes and reroutes when the agent drifts or stalls.
package guidance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"livenav/internal/geo"
	"livenav/internal/maneuver"
	"livenav/internal/mapmatch"
	"livenav/internal/maps"
	"livenav/internal/modules/journal"
	"livenav/internal/polyline"
	"livenav/internal/types"
)

type Planner interface {
	Plan(ctx context.Context, waypoints []orb.Point) (*maps.Plan, error)
}

// Journal records route lifecycle events. Failures are logged and never
// fail the operation that produced the event.
type Journal interface {
	AppendEvent(ctx context.Context, e journal.Event) error
}

type Service struct {
	cfg      Config
	registry *Registry
	planner  Planner
	journal  Journal
	logger   *zap.Logger
	board    commandBoard
	flights  singleflight.Group
	now      func() time.Time
}

// NewService wires the engine. journal may be nil.
func NewService(cfg Config, planner Planner, j Journal, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Window < 1 {
		cfg.Window = mapmatch.DefaultWindow
	}
	return &Service{
		cfg:      cfg,
		registry: NewRegistry(),
		planner:  planner,
		journal:  j,
		logger:   logger,
		now:      time.Now,
	}
}

// geometry is everything derived from one successful plan.
type geometry struct {
	line          orb.LineString
	index         mapmatch.Index
	maneuvers     []maneuver.Maneuver
	waypoints     []orb.Point
	waypointAlong []float64
	distance      float64
	duration      time.Duration
}

func (g *geometry) install(rt *Route) {
	rt.Line = g.line
	rt.Index = g.index
	rt.Maneuvers = g.maneuvers
	rt.Waypoints = g.waypoints
	rt.WaypointAlong = g.waypointAlong
	rt.Distance = g.distance
	rt.Duration = g.duration
	rt.Tracking = TrackingState{}
}

// plan calls the provider with a bounded timeout and derives the route geometry.
// Cancelling ctx does not abort a call other requests may be sharing.
func (s *Service) plan(ctx context.Context, waypoints []orb.Point) (*geometry, error) {
	ctx = context.WithoutCancel(ctx)
	if s.cfg.PlannerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.PlannerTimeout)
		defer cancel()
	}

	p, err := s.planner.Plan(ctx, waypoints)
	if err != nil {
		var pe *maps.PlanningError
		var de *polyline.DecodeError
		if errors.As(err, &pe) || errors.As(err, &de) {
			return nil, err
		}
		return nil, &maps.PlanningError{Provider: "planner", Message: "request failed", Err: err}
	}

	line, err := p.Line()
	if err != nil {
		return nil, err
	}
	if len(line) < 2 {
		return nil, &maps.PlanningError{Provider: "planner", Message: "geometry has fewer than two points"}
	}
	line = polyline.Densify(line, s.cfg.DensifyStepM)
	idx := mapmatch.NewIndex(line)

	along := make([]float64, len(waypoints))
	for i, wp := range waypoints {
		along[i] = mapmatch.FullScan(line, idx, wp).Along
	}

	return &geometry{
		line:          line,
		index:         idx,
		maneuvers:     maneuver.Sequence(p.Steps, line, idx),
		waypoints:     append([]orb.Point(nil), waypoints...),
		waypointAlong: along,
		distance:      p.Distance,
		duration:      p.Duration,
	}, nil
}

// CreateRoute plans a route through cmd.Waypoints and stores it.
func (s *Service) CreateRoute(ctx context.Context, cmd CreateCommand) (*Route, error) {
	if len(cmd.Waypoints) < 2 {
		return nil, &ValidationError{Field: "waypoints", Reason: "at least two waypoints required"}
	}
	for i, wp := range cmd.Waypoints {
		if err := validatePoint(wp); err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("waypoints[%d]", i), Reason: err.Error()}
		}
	}

	g, err := s.plan(ctx, cmd.Waypoints)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rt := &Route{ID: cmd.ID, CreatedAt: now, UpdatedAt: now}
	g.install(rt)
	id, err := s.registry.Create(rt)
	if err != nil {
		return nil, err
	}

	s.logger.Info("route created",
		zap.String("route_id", string(id)),
		zap.Int("vertices", len(g.line)),
		zap.Int("maneuvers", len(g.maneuvers)),
		zap.Float64("distance_m", g.distance),
	)
	s.record(ctx, journal.Event{RouteID: id, Kind: journal.KindCreated, DistanceM: g.distance})

	return s.registry.Get(id)
}

func (s *Service) GetRoute(ctx context.Context, id types.ID) (*Route, error) {
	return s.registry.Get(id)
}

// RouteCount reports how many routes are stored.
func (s *Service) RouteCount() int {
	return s.registry.Count()
}

// rerouteRequest captures what a triggered reroute needs once the route lock is released.
type rerouteRequest struct {
	revision  int
	waypoints []orb.Point
}

// UpdatePosition matches a fix against the route, updates its tracking state,
// reroutes when triggered and publishes the resulting NavCommand.
func (s *Service) UpdatePosition(ctx context.Context, cmd UpdateCommand) (*UpdateResult, error) {
	if err := validatePoint(cmd.Position); err != nil {
		return nil, &ValidationError{Field: "position", Reason: err.Error()}
	}

	var res *UpdateResult
	var req *rerouteRequest
	err := s.registry.Update(cmd.RouteID, func(rt *Route) error {
		res = s.track(rt, cmd.Position)
		res.Heading = cmd.Heading
		if s.shouldReroute(rt, res) {
			req = &rerouteRequest{
				revision:  rt.Revision,
				waypoints: remainingWaypoints(rt, cmd.Position, res.Along, s.cfg.PassedBufferM),
			}
			return nil
		}
		s.publish(res)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req != nil {
		res = s.reroute(ctx, cmd, req, res)
	}
	return res, nil
}

// publish posts the command for res. Callers hold the route lock so a removed
// route never publishes after it was cleared.
func (s *Service) publish(res *UpdateResult) {
	s.board.publish(commandFor(res, s.cfg.RerouteThresholdM, s.now()))
}

// track runs one matcher step on rt and advances its tracking state. The
// caller holds the route lock.
func (s *Service) track(rt *Route, p orb.Point) *UpdateResult {
	st := &rt.Tracking

	var m mapmatch.Match
	if st.HasBaseline {
		m = mapmatch.Window(rt.Line, rt.Index, p, st.Hint, s.cfg.Window)
	} else {
		m = mapmatch.FullScan(rt.Line, rt.Index, p)
	}
	off := mapmatch.OffRoute(p, m)
	remaining := math.Max(0, rt.Index.Total()-m.Along)

	// An agent standing at the destination has nothing left to progress on.
	switch {
	case remaining <= s.cfg.ProgressEpsilonM:
		st.NoProgress = 0
	case st.HasBaseline && remaining >= st.LastRemaining-s.cfg.ProgressEpsilonM:
		st.NoProgress++
	case st.HasBaseline:
		st.NoProgress = 0
	}
	st.Hint = m.Index
	st.LastRemaining = remaining
	st.HasBaseline = true
	rt.UpdatedAt = s.now()

	res := &UpdateResult{
		RouteID:    rt.ID,
		Revision:   rt.Revision,
		Projected:  m.Point,
		Along:      m.Along,
		OffRoute:   off,
		Remaining:  remaining,
		NoProgress: st.NoProgress,
	}
	if next, ok := maneuver.Next(rt.Maneuvers, m.Along, s.cfg.ManeuverBufferM); ok {
		res.Next = &next
		res.DistanceToNext = geo.Haversine(m.Point, next.Location)
	}
	return res
}

func (s *Service) shouldReroute(rt *Route, res *UpdateResult) bool {
	if !s.cfg.RerouteEnabled || s.now().Before(rt.Tracking.RetryAfter) {
		return false
	}
	return res.OffRoute > s.cfg.RerouteThresholdM ||
		(s.cfg.NoProgressLimit > 0 && res.NoProgress >= s.cfg.NoProgressLimit)
}

// remainingWaypoints is the reroute waypoint list: the fix followed by every
// waypoint still ahead of along+buffer on the current geometry, or only the
// destination when all have been passed.
func remainingWaypoints(rt *Route, p orb.Point, along, buffer float64) []orb.Point {
	out := []orb.Point{p}
	for i, wp := range rt.Waypoints {
		if i < len(rt.WaypointAlong) && rt.WaypointAlong[i] > along+buffer {
			out = append(out, wp)
		}
	}
	if len(out) == 1 {
		out = append(out, rt.Destination())
	}
	return out
}

// reroute plans outside the route lock, then installs the new geometry if the
// route is still live and unchanged. On failure the stale result is returned
// with the failure reason and the route backs off further attempts.
func (s *Service) reroute(ctx context.Context, cmd UpdateCommand, req *rerouteRequest, stale *UpdateResult) *UpdateResult {
	log := s.logger.With(zap.String("route_id", string(cmd.RouteID)), zap.Int("revision", req.revision))
	log.Info("reroute triggered",
		zap.Float64("off_route_m", stale.OffRoute),
		zap.Int("no_progress", stale.NoProgress),
		zap.Int("waypoints", len(req.waypoints)),
	)

	key := fmt.Sprintf("%s#%d", cmd.RouteID, req.revision)
	v, err, _ := s.flights.Do(key, func() (interface{}, error) {
		return s.plan(ctx, req.waypoints)
	})
	if err != nil {
		log.Warn("reroute failed", zap.Error(err))
		s.record(ctx, journal.Event{
			RouteID:  cmd.RouteID,
			Kind:     journal.KindRerouteFailed,
			Revision: req.revision,
			Detail:   err.Error(),
			Position: &cmd.Position,
		})
		stale.RerouteError = err.Error()
		retryAfter := s.now().Add(s.cfg.RerouteBackoff)
		if uerr := s.registry.Update(cmd.RouteID, func(rt *Route) error {
			if rt.Revision == req.revision {
				rt.Tracking.RetryAfter = retryAfter
			}
			s.publish(stale)
			return nil
		}); uerr != nil {
			log.Warn("route removed during reroute", zap.Error(uerr))
		}
		return stale
	}
	g := v.(*geometry)

	var res *UpdateResult
	var installed bool
	var snapshot Route
	err = s.registry.Update(cmd.RouteID, func(rt *Route) error {
		// A concurrent caller sharing this flight may already have installed
		// it; either way the fix is matched against the current geometry.
		if rt.Revision == req.revision {
			g.install(rt)
			rt.Revision++
			installed = true
		}
		res = s.track(rt, cmd.Position)
		res.Heading = cmd.Heading
		res.Rerouted = true
		snapshot = *rt
		s.publish(res)
		return nil
	})
	if err != nil {
		log.Warn("route removed during reroute", zap.Error(err))
		stale.RerouteError = err.Error()
		return stale
	}

	res.Route = &snapshot
	if installed {
		log.Info("reroute installed",
			zap.Int("new_revision", snapshot.Revision),
			zap.Float64("distance_m", snapshot.Distance),
		)
		s.record(ctx, journal.Event{
			RouteID:   cmd.RouteID,
			Kind:      journal.KindRerouted,
			Revision:  snapshot.Revision,
			Position:  &cmd.Position,
			DistanceM: snapshot.Distance,
		})
	}
	return res
}

// ClearRoute removes one route, or every route when id is empty, and resets
// the published NavCommand.
func (s *Service) ClearRoute(ctx context.Context, id types.ID) (int, error) {
	var n int
	if id == "" {
		n = s.registry.Clear()
	} else {
		if err := s.registry.Remove(id); err != nil {
			return 0, err
		}
		n = 1
		s.record(ctx, journal.Event{RouteID: id, Kind: journal.KindCleared})
	}
	s.board.reset()
	s.logger.Info("routes cleared", zap.String("route_id", string(id)), zap.Int("count", n))
	return n, nil
}

// NavCommand returns the most recently published command. It never blocks on
// route state.
func (s *Service) NavCommand() NavCommand {
	return s.board.snapshot()
}

func (s *Service) record(ctx context.Context, e journal.Event) {
	if s.journal == nil {
		return
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	if err := s.journal.AppendEvent(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Warn("journal append failed",
			zap.String("route_id", string(e.RouteID)),
			zap.String("kind", string(e.Kind)),
			zap.Error(err),
		)
	}
}

func validatePoint(p orb.Point) error {
	lon, lat := p.Lon(), p.Lat()
	switch {
	case math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0):
		return errors.New("coordinates must be finite")
	case lon < -180 || lon > 180:
		return fmt.Errorf("longitude %v out of range", lon)
	case lat < -90 || lat > 90:
		return fmt.Errorf("latitude %v out of range", lat)
	}
	return nil
}
