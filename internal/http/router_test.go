// README: End-to-end tests for the navigation API over httptest with a fake route planner.
package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	httptransport "livenav/internal/http"
	"livenav/internal/geo"
	"livenav/internal/infra"
	"livenav/internal/maneuver"
	"livenav/internal/maps"
	"livenav/internal/modules/guidance"
	"livenav/internal/modules/journal"
	"livenav/internal/modules/location"
	"livenav/internal/types"
)

var origin = orb.Point{121.565, 25.033}

func at(eastM, northM float64) orb.Point { return geo.Offset(origin, eastM, northM) }

// linePlanner plans a straight line through the waypoints with a left turn
// halfway along every leg.
type linePlanner struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (p *linePlanner) Plan(ctx context.Context, waypoints []orb.Point) (*maps.Plan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	plan := &maps.Plan{Geometry: orb.LineString(append([]orb.Point(nil), waypoints...))}
	for i := 1; i < len(waypoints); i++ {
		plan.Distance += geo.Haversine(waypoints[i-1], waypoints[i])
		plan.Steps = append(plan.Steps, maneuver.Raw{
			Kind:     maneuver.KindTurn,
			Modifier: maneuver.ModifierLeft,
			Location: geo.Interpolate(waypoints[i-1], waypoints[i], 0.5),
			Name:     "Xinyi Rd",
			Text:     "Xinyi Rd",
		})
	}
	plan.Duration = time.Duration(plan.Distance/10) * time.Second
	return plan, nil
}

type memEvents struct {
	events []journal.Event
}

func (m *memEvents) ListByRoute(ctx context.Context, routeID types.ID, limit int) ([]journal.Event, error) {
	var out []journal.Event
	for _, e := range m.events {
		if e.RouteID == routeID {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type rejectVerifier struct{}

func (rejectVerifier) VerifyIDToken(context.Context, string) (*infra.Token, error) {
	return nil, errors.New("expired")
}

type testAPI struct {
	router  *gin.Engine
	planner *linePlanner
}

func newTestAPI(t *testing.T, deps httptransport.RouterDeps) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	planner := &linePlanner{}
	if deps.Guidance == nil {
		deps.Guidance = guidance.NewService(guidance.DefaultConfig(), planner, nil, zap.NewNop())
	}
	if deps.Location == nil {
		deps.Location = location.NewService(nil, zap.NewNop())
	}
	return &testAPI{router: httptransport.NewRouter(deps), planner: planner}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code
}

func pair(p orb.Point) []float64 { return []float64{p.Lon(), p.Lat()} }

type routeBody struct {
	RouteID   string  `json:"route_id"`
	Revision  int     `json:"revision"`
	DistanceM float64 `json:"distance_m"`
	Maneuvers []struct {
		Type   string  `json:"type"`
		Turn   string  `json:"turn"`
		AlongM float64 `json:"distance_along_m"`
	} `json:"maneuvers"`
	Geometry struct {
		Type        string       `json:"type"`
		Coordinates [][2]float64 `json:"coordinates"`
	} `json:"geometry"`
}

type positionBody struct {
	RouteID      string     `json:"route_id"`
	Revision     int        `json:"revision"`
	RemainingM   float64    `json:"remaining_distance_m"`
	OffRouteM    float64    `json:"off_route_m"`
	DistanceNext *float64   `json:"distance_to_next_m"`
	Rerouted     bool       `json:"rerouted"`
	Route        *routeBody `json:"route"`
	NextManeuver *struct {
		Turn string `json:"turn"`
	} `json:"next_maneuver"`
}

type navBody struct {
	Status       string  `json:"status"`
	TurnType     string  `json:"turn_type"`
	TurnM        float64 `json:"turn_m"`
	DestinationM float64 `json:"destination_m"`
	Message      string  `json:"message"`
}

func near(got, want, tol float64) bool { return math.Abs(got-want) <= tol }

func TestAPI_GuidanceFlow(t *testing.T) {
	api := newTestAPI(t, httptransport.RouterDeps{})

	var health struct {
		Status string `json:"status"`
		Routes int    `json:"routes_stored"`
	}
	if code := api.do(t, http.MethodGet, "/health", nil, &health); code != http.StatusOK || health.Routes != 0 {
		t.Fatalf("health: code=%d body=%+v", code, health)
	}

	var nav navBody
	api.do(t, http.MethodGet, "/nav_cmd", nil, &nav)
	if nav.Status != "error" || nav.Message != guidance.ReasonNotCreated {
		t.Fatalf("unexpected initial nav command %+v", nav)
	}

	var created routeBody
	code := api.do(t, http.MethodPost, "/route", map[string]any{
		"origin":      pair(at(0, 0)),
		"destination": pair(at(400, 0)),
	}, &created)
	if code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", code)
	}
	if created.RouteID == "" || created.Geometry.Type != "LineString" {
		t.Fatalf("unexpected route %+v", created)
	}
	// The densified straight line collapses back to its endpoints on the wire.
	if len(created.Geometry.Coordinates) != 2 {
		t.Errorf("expected simplified geometry of 2 points, got %d", len(created.Geometry.Coordinates))
	}
	if len(created.Maneuvers) != 1 || created.Maneuvers[0].Turn != "left" || !near(created.Maneuvers[0].AlongM, 200, 1) {
		t.Errorf("unexpected maneuvers %+v", created.Maneuvers)
	}

	var fetched routeBody
	if code := api.do(t, http.MethodGet, "/route/"+created.RouteID, nil, &fetched); code != http.StatusOK || fetched.RouteID != created.RouteID {
		t.Fatalf("get: code=%d body=%+v", code, fetched)
	}

	var pos positionBody
	code = api.do(t, http.MethodPost, "/position", map[string]any{
		"route_id": created.RouteID,
		"position": pair(at(60, 0)),
		"heading":  90.0,
	}, &pos)
	if code != http.StatusOK {
		t.Fatalf("position: expected 200, got %d", code)
	}
	if pos.Rerouted || !near(pos.RemainingM, 340, 1) || pos.NextManeuver == nil || pos.DistanceNext == nil || !near(*pos.DistanceNext, 140, 1) {
		t.Fatalf("unexpected position response %+v", pos)
	}

	api.do(t, http.MethodGet, "/nav_cmd", nil, &nav)
	if nav.Status != "ok" || nav.TurnType != "left" || !near(nav.TurnM, 140, 1) || !near(nav.DestinationM, 340, 1) || nav.Message != "Xinyi Rd" {
		t.Fatalf("unexpected nav command %+v", nav)
	}

	var latest struct {
		Lat     float64  `json:"lat"`
		Lon     float64  `json:"lon"`
		Yaw     *float64 `json:"yaw"`
		RouteID string   `json:"route_id"`
	}
	if code := api.do(t, http.MethodGet, "/latest_position", nil, &latest); code != http.StatusOK {
		t.Fatalf("latest_position: expected 200, got %d", code)
	}
	if !near(latest.Lon, at(60, 0).Lon(), 1e-9) || latest.Yaw == nil || *latest.Yaw != 90 || latest.RouteID != created.RouteID {
		t.Errorf("unexpected latest fix %+v", latest)
	}
	var routeFix struct {
		Lon     float64 `json:"lon"`
		RouteID string  `json:"route_id"`
	}
	if code := api.do(t, http.MethodGet, "/latest_position?route_id="+created.RouteID, nil, &routeFix); code != http.StatusOK {
		t.Fatalf("latest_position by route: expected 200, got %d", code)
	}
	if routeFix.RouteID != created.RouteID || !near(routeFix.Lon, at(60, 0).Lon(), 1e-9) {
		t.Errorf("unexpected route fix %+v", routeFix)
	}

	var rerouted positionBody
	api.do(t, http.MethodPost, "/position", map[string]any{
		"route_id": created.RouteID,
		"position": pair(at(100, 50)),
	}, &rerouted)
	if !rerouted.Rerouted || rerouted.Revision != 1 || rerouted.Route == nil || rerouted.Route.Revision != 1 {
		t.Fatalf("expected reroute onto revision 1, got %+v", rerouted)
	}
	if rerouted.OffRouteM > 1 {
		t.Errorf("fix must match the new geometry, off route %.2f m", rerouted.OffRouteM)
	}

	var cleared struct {
		Status  string `json:"status"`
		Cleared int    `json:"cleared"`
	}
	if code := api.do(t, http.MethodPost, "/clear_route", map[string]any{"route_id": created.RouteID}, &cleared); code != http.StatusOK || cleared.Cleared != 1 {
		t.Fatalf("clear: code=%d body=%+v", code, cleared)
	}
	api.do(t, http.MethodGet, "/nav_cmd", nil, &nav)
	if nav.Status != "error" || nav.Message != guidance.ReasonNotCreated {
		t.Errorf("nav command must reset on clear, got %+v", nav)
	}
	if code := api.do(t, http.MethodGet, "/route/"+created.RouteID, nil, nil); code != http.StatusNotFound {
		t.Errorf("cleared route: expected 404, got %d", code)
	}
}

func TestAPI_ErrorMapping(t *testing.T) {
	api := newTestAPI(t, httptransport.RouterDeps{})

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"single waypoint", http.MethodPost, "/route", map[string]any{"waypoints": [][]float64{pair(at(0, 0))}}, http.StatusBadRequest},
		{"malformed waypoint", http.MethodPost, "/route", map[string]any{"waypoints": [][]float64{{1}, {2, 3}}}, http.StatusBadRequest},
		{"latitude out of range", http.MethodPost, "/route", map[string]any{"waypoints": [][]float64{{0, 95}, {0, 1}}}, http.StatusBadRequest},
		{"unknown route", http.MethodPost, "/position", map[string]any{"route_id": "nope", "position": pair(at(0, 0))}, http.StatusNotFound},
		{"missing position", http.MethodPost, "/position", map[string]any{"route_id": "nope"}, http.StatusBadRequest},
		{"clear unknown route", http.MethodPost, "/clear_route", map[string]any{"route_id": "nope"}, http.StatusNotFound},
		{"gnss missing lon", http.MethodPost, "/update_gnss", map[string]any{"lat": 25.0}, http.StatusBadRequest},
		{"gnss out of range", http.MethodPost, "/update_gnss", map[string]any{"lat": 125.0, "lon": 10.0}, http.StatusBadRequest},
		{"no fix yet", http.MethodGet, "/latest_position", nil, http.StatusNotFound},
		{"no fix for route", http.MethodGet, "/latest_position?route_id=nope", nil, http.StatusNotFound},
		{"events without journal", http.MethodGet, "/route/abc/events", nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if code := api.do(t, tc.method, tc.path, tc.body, nil); code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, code)
			}
		})
	}
}

func TestAPI_PlanningFailureIsBadGateway(t *testing.T) {
	planner := &linePlanner{err: &maps.PlanningError{Provider: "osrm", Message: "NoRoute: impossible route"}}
	svc := guidance.NewService(guidance.DefaultConfig(), planner, nil, zap.NewNop())
	api := newTestAPI(t, httptransport.RouterDeps{Guidance: svc})

	var body struct {
		Error string `json:"error"`
	}
	code := api.do(t, http.MethodPost, "/route", map[string]any{
		"waypoints": [][]float64{pair(at(0, 0)), pair(at(100, 0))},
	}, &body)
	if code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", code)
	}
	if body.Error == "" {
		t.Error("expected provider message in error body")
	}
}

func TestAPI_UpdateGNSS(t *testing.T) {
	api := newTestAPI(t, httptransport.RouterDeps{})

	if code := api.do(t, http.MethodPost, "/update_gnss", map[string]any{"lat": 25.033, "lon": 121.565, "yaw": 12.5}, nil); code != http.StatusOK {
		t.Fatalf("update_gnss: expected 200, got %d", code)
	}
	var latest struct {
		Lat float64  `json:"lat"`
		Lon float64  `json:"lon"`
		Yaw *float64 `json:"yaw"`
	}
	api.do(t, http.MethodGet, "/latest_position", nil, &latest)
	if latest.Lat != 25.033 || latest.Lon != 121.565 || latest.Yaw == nil || *latest.Yaw != 12.5 {
		t.Errorf("unexpected latest fix %+v", latest)
	}
}

func TestAPI_Events(t *testing.T) {
	events := &memEvents{events: []journal.Event{
		{RouteID: "r1", Kind: journal.KindCreated, DistanceM: 400},
		{RouteID: "r2", Kind: journal.KindCreated},
		{RouteID: "r1", Kind: journal.KindRerouted, Revision: 1, DistanceM: 320},
	}}
	api := newTestAPI(t, httptransport.RouterDeps{Events: events})

	var body struct {
		RouteID string `json:"route_id"`
		Events  []struct {
			Kind     string `json:"kind"`
			Revision int    `json:"revision"`
		} `json:"events"`
	}
	if code := api.do(t, http.MethodGet, "/route/r1/events", nil, &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(body.Events) != 2 || body.Events[1].Kind != "rerouted" || body.Events[1].Revision != 1 {
		t.Errorf("unexpected events %+v", body.Events)
	}

	if code := api.do(t, http.MethodGet, "/route/r1/events?limit=0", nil, nil); code != http.StatusBadRequest {
		t.Errorf("limit=0: expected 400, got %d", code)
	}
	api.do(t, http.MethodGet, "/route/r1/events?limit=1", nil, &body)
	if len(body.Events) != 1 || body.Events[0].Kind != "rerouted" {
		t.Errorf("limit=1 must keep the newest event, got %+v", body.Events)
	}
}

func TestAPI_AuthGuardsEverythingButHealth(t *testing.T) {
	api := newTestAPI(t, httptransport.RouterDeps{Verifier: rejectVerifier{}})

	if code := api.do(t, http.MethodGet, "/health", nil, nil); code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", code)
	}
	if code := api.do(t, http.MethodGet, "/nav_cmd", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("nav_cmd: expected 401, got %d", code)
	}
	if code := api.do(t, http.MethodPost, "/route", map[string]any{}, nil); code != http.StatusUnauthorized {
		t.Errorf("route: expected 401, got %d", code)
	}
}
