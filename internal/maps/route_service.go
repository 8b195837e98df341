package maps

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"googlemaps.github.io/maps"

	"livenav/internal/maneuver"
	"livenav/internal/polyline"
)

// RouteService plans routes with the Google Maps Directions API.
type RouteService struct {
	client   *maps.Client
	language string
	region   string
}

// NewRouteService creates a new RouteService with the given API Key.
func NewRouteService(apiKey, language, region string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client, language: language, region: region}, nil
}

// Plan requests a driving route through waypoints in order.
func (s *RouteService) Plan(ctx context.Context, waypoints []orb.Point) (*Plan, error) {
	if len(waypoints) < 2 {
		return nil, &PlanningError{Provider: "google", Message: "at least two waypoints required"}
	}
	r := &maps.DirectionsRequest{
		Origin:      latLngString(waypoints[0]),
		Destination: latLngString(waypoints[len(waypoints)-1]),
		Mode:        maps.TravelModeDriving,
		Language:    s.language,
		Region:      s.region,
	}
	for _, wp := range waypoints[1 : len(waypoints)-1] {
		r.Waypoints = append(r.Waypoints, latLngString(wp))
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return nil, &PlanningError{Provider: "google", Message: "maps api error", Err: err}
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return nil, &PlanningError{Provider: "google", Message: "empty routes", Err: ErrNoRoute}
	}
	return planFromGoogle(routes[0])
}

func latLngString(p orb.Point) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat(), p.Lon())
}

// planFromGoogle builds a plan from the first route. Geometry is the
// concatenation of the step polylines, which follow the road more closely than
// the smoothed overview; the overview is used only when no step carries one.
func planFromGoogle(route maps.Route) (*Plan, error) {
	line, err := stepLine(route)
	if err != nil {
		return nil, err
	}
	plan := &Plan{Geometry: line}
	if len(line) < 2 {
		plan = &Plan{Encoded: route.OverviewPolyline.Points, Precision: polyline.Precision5}
	}

	var meters int
	var duration time.Duration
	for _, leg := range route.Legs {
		meters += leg.Distance.Meters
		duration += leg.Duration
		for _, st := range leg.Steps {
			kind, mod := googleManeuver(st.HTMLInstructions)
			plan.Steps = append(plan.Steps, maneuver.Raw{
				Kind:     kind,
				Modifier: mod,
				Location: orb.Point{st.StartLocation.Lng, st.StartLocation.Lat},
				Type:     string(kind),
				Text:     instructionText(st.HTMLInstructions),
			})
		}
	}
	plan.Distance = float64(meters)
	plan.Duration = duration
	return plan, nil
}

// stepLine joins the per-step polylines of every leg, dropping the vertex two
// consecutive steps share.
func stepLine(route maps.Route) (orb.LineString, error) {
	var line orb.LineString
	for _, leg := range route.Legs {
		for _, st := range leg.Steps {
			if st.Polyline.Points == "" {
				continue
			}
			seg, err := polyline.Decode(st.Polyline.Points)
			if err != nil {
				return nil, err
			}
			if len(line) > 0 && len(seg) > 0 && line[len(line)-1] == seg[0] {
				seg = seg[1:]
			}
			line = append(line, seg...)
		}
	}
	return line, nil
}

var (
	htmlTag     = regexp.MustCompile(`<[^>]*>`)
	turnSide    = regexp.MustCompile(`\b(?:(?:slight|sharp) )?(?:left|right)\b`)
	detailBlock = regexp.MustCompile(`(?s)<div.*$`)
)

// googleManeuver derives a kind and modifier from a step's HTML instruction,
// e.g. "Turn <b>left</b> onto ..." or "Keep <b>right</b> at the fork". The
// Directions client does not expose the maneuver field, so the instruction
// text is the only source.
func googleManeuver(html string) (maneuver.Kind, maneuver.Modifier) {
	text := strings.ToLower(instructionText(html))
	side := maneuver.ModifierNone
	if m := turnSide.FindString(text); m != "" {
		side = maneuver.ParseModifier(m)
	}

	switch {
	case text == "":
		return maneuver.KindUnrecognized, maneuver.ModifierNone
	case strings.Contains(text, "u-turn"):
		return maneuver.KindTurn, maneuver.ModifierUTurn
	case strings.Contains(text, "roundabout") || strings.Contains(text, "traffic circle"):
		return maneuver.KindRoundabout, maneuver.ModifierNone
	case strings.HasPrefix(text, "merge"):
		return maneuver.KindMerge, maneuver.ModifierNone
	case strings.Contains(text, "keep left"):
		return maneuver.KindFork, maneuver.ModifierSlightLeft
	case strings.Contains(text, "keep right"):
		return maneuver.KindFork, maneuver.ModifierSlightRight
	case strings.Contains(text, "ramp") || strings.HasPrefix(text, "take exit") || strings.HasPrefix(text, "take the exit"):
		return maneuver.KindRamp, side
	case strings.HasPrefix(text, "turn") || strings.HasPrefix(text, "slight") || strings.HasPrefix(text, "sharp"):
		if side == maneuver.ModifierNone {
			return maneuver.KindUnrecognized, maneuver.ModifierNone
		}
		return maneuver.KindTurn, side
	case strings.HasPrefix(text, "continue"):
		return maneuver.KindNameChange, maneuver.ModifierStraight
	}
	return maneuver.KindUnrecognized, maneuver.ModifierNone
}

// instructionText drops the trailing <div> notes Google appends (such as
// "Destination will be on the right") and strips the remaining markup.
func instructionText(html string) string {
	return strings.TrimSpace(htmlTag.ReplaceAllString(detailBlock.ReplaceAllString(html, ""), ""))
}
