// README: OSRM route provider over the HTTP route service (/route/v1).
package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"livenav/internal/maneuver"
	"livenav/internal/polyline"
)

// Geometry formats accepted by the OSRM "geometries" parameter.
const (
	GeometryGeoJSON   = "geojson"
	GeometryPolyline  = "polyline"
	GeometryPolyline6 = "polyline6"
)

// OSRMProvider plans routes against an OSRM HTTP server.
type OSRMProvider struct {
	baseURL  string
	profile  string
	geometry string
	client   *http.Client
}

// NewOSRMProvider creates a provider for baseURL (e.g. http://router.project-osrm.org).
// profile defaults to "driving" and geometry to geojson.
func NewOSRMProvider(baseURL, profile, geometry string, client *http.Client) *OSRMProvider {
	if profile == "" {
		profile = "driving"
	}
	if geometry == "" {
		geometry = GeometryGeoJSON
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &OSRMProvider{
		baseURL:  strings.TrimRight(baseURL, "/"),
		profile:  profile,
		geometry: geometry,
		client:   client,
	}
}

type osrmResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Geometry json.RawMessage `json:"geometry"`
	Distance float64         `json:"distance"`
	Duration float64         `json:"duration"`
	Legs     []struct {
		Steps []osrmStep `json:"steps"`
	} `json:"legs"`
}

type osrmStep struct {
	Name     string `json:"name"`
	Ref      string `json:"ref"`
	Maneuver struct {
		Type     string    `json:"type"`
		Modifier string    `json:"modifier"`
		Location []float64 `json:"location"`
	} `json:"maneuver"`
}

// Plan requests a route through waypoints in order.
func (p *OSRMProvider) Plan(ctx context.Context, waypoints []orb.Point) (*Plan, error) {
	if len(waypoints) < 2 {
		return nil, &PlanningError{Provider: "osrm", Message: "at least two waypoints required"}
	}

	coords := make([]string, len(waypoints))
	for i, wp := range waypoints {
		coords[i] = fmt.Sprintf("%.6f,%.6f", wp.Lon(), wp.Lat())
	}
	q := url.Values{}
	q.Set("overview", "full")
	q.Set("geometries", p.geometry)
	q.Set("steps", "true")
	endpoint := fmt.Sprintf("%s/route/v1/%s/%s?%s", p.baseURL, p.profile, strings.Join(coords, ";"), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &PlanningError{Provider: "osrm", Message: "building request", Err: err}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &PlanningError{Provider: "osrm", Message: "http request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &PlanningError{Provider: "osrm", Message: "reading response", Err: err}
	}

	var parsed osrmResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &PlanningError{Provider: "osrm", Message: "status " + strconv.Itoa(resp.StatusCode)}
		}
		return nil, &PlanningError{Provider: "osrm", Message: "decoding response", Err: err}
	}
	if resp.StatusCode != http.StatusOK || (parsed.Code != "" && parsed.Code != "Ok") {
		msg := parsed.Message
		if msg == "" {
			msg = parsed.Code
		}
		if msg == "" {
			msg = "status " + strconv.Itoa(resp.StatusCode)
		}
		return nil, &PlanningError{Provider: "osrm", Message: msg}
	}
	if len(parsed.Routes) == 0 {
		return nil, &PlanningError{Provider: "osrm", Message: "empty routes", Err: ErrNoRoute}
	}
	return planFromOSRM(parsed.Routes[0], p.geometry)
}

func planFromOSRM(r osrmRoute, format string) (*Plan, error) {
	plan := &Plan{
		Distance: r.Distance,
		Duration: time.Duration(r.Duration * float64(time.Second)),
	}

	trimmed := strings.TrimSpace(string(r.Geometry))
	switch {
	case strings.HasPrefix(trimmed, `"`):
		var encoded string
		if err := json.Unmarshal(r.Geometry, &encoded); err != nil {
			return nil, &PlanningError{Provider: "osrm", Message: "decoding geometry", Err: err}
		}
		plan.Encoded = encoded
		plan.Precision = polyline.Precision5
		if format == GeometryPolyline6 {
			plan.Precision = polyline.Precision6
		}
	case strings.HasPrefix(trimmed, "{"):
		g, err := geojson.UnmarshalGeometry(r.Geometry)
		if err != nil {
			return nil, &PlanningError{Provider: "osrm", Message: "decoding geometry", Err: err}
		}
		ls, ok := g.Coordinates.(orb.LineString)
		if !ok {
			return nil, &PlanningError{Provider: "osrm", Message: "unsupported geometry type " + g.Type}
		}
		plan.Geometry = ls
	default:
		return nil, &PlanningError{Provider: "osrm", Message: "missing geometry"}
	}

	for _, leg := range r.Legs {
		for _, st := range leg.Steps {
			loc := st.Maneuver.Location
			if len(loc) < 2 {
				continue
			}
			text := st.Name
			if text == "" {
				text = st.Ref
			}
			plan.Steps = append(plan.Steps, maneuver.Raw{
				Kind:     maneuver.ParseKind(st.Maneuver.Type),
				Modifier: maneuver.ParseModifier(st.Maneuver.Modifier),
				Location: orb.Point{loc[0], loc[1]},
				Type:     st.Maneuver.Type,
				Name:     st.Name,
				Text:     text,
			})
		}
	}
	return plan, nil
}
