// README: Route handlers: plan a route, read it back and list its lifecycle events.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"

	"livenav/internal/maneuver"
	"livenav/internal/modules/guidance"
	"livenav/internal/modules/journal"
	"livenav/internal/types"
)

// EventLister reads the route journal.
type EventLister interface {
	ListByRoute(ctx context.Context, routeID types.ID, limit int) ([]journal.Event, error)
}

type RouteHandler struct {
	guidance *guidance.Service
	events   EventLister
}

// NewRouteHandler builds the route endpoints. events may be nil.
func NewRouteHandler(svc *guidance.Service, events EventLister) *RouteHandler {
	return &RouteHandler{guidance: svc, events: events}
}

type createRouteRequest struct {
	ID          string      `json:"id"`
	Waypoints   [][]float64 `json:"waypoints"`
	Origin      []float64   `json:"origin"`
	Destination []float64   `json:"destination"`
}

type maneuverResponse struct {
	Kind     string    `json:"type"`
	Modifier string    `json:"modifier,omitempty"`
	Turn     string    `json:"turn"`
	Name     string    `json:"name,omitempty"`
	Text     string    `json:"instruction"`
	Location orb.Point `json:"location"`
	AlongM   float64   `json:"distance_along_m"`
}

type routeResponse struct {
	RouteID   string             `json:"route_id"`
	Revision  int                `json:"revision"`
	DistanceM float64            `json:"distance_m"`
	DurationS float64            `json:"duration_s"`
	Waypoints []orb.Point        `json:"waypoints"`
	Maneuvers []maneuverResponse `json:"maneuvers"`
	Geometry  *geojson.Geometry  `json:"geometry"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// geometryTolerance drops the collinear vertices added by densification
// before the line goes over the wire. Degrees, roughly 0.1 m.
const geometryTolerance = 1e-6

func newManeuverResponse(m maneuver.Maneuver) maneuverResponse {
	return maneuverResponse{
		Kind:     string(m.Kind),
		Modifier: string(m.Modifier),
		Turn:     string(m.Turn()),
		Name:     m.Name,
		Text:     m.Text,
		Location: m.Location,
		AlongM:   m.Along,
	}
}

func newRouteResponse(rt *guidance.Route) routeResponse {
	line := simplify.DouglasPeucker(geometryTolerance).Simplify(rt.Line.Clone())
	resp := routeResponse{
		RouteID:   string(rt.ID),
		Revision:  rt.Revision,
		DistanceM: rt.Distance,
		DurationS: rt.Duration.Seconds(),
		Waypoints: rt.Waypoints,
		Maneuvers: make([]maneuverResponse, 0, len(rt.Maneuvers)),
		Geometry:  geojson.NewGeometry(line),
		CreatedAt: rt.CreatedAt,
		UpdatedAt: rt.UpdatedAt,
	}
	for _, m := range rt.Maneuvers {
		resp.Maneuvers = append(resp.Maneuvers, newManeuverResponse(m))
	}
	return resp
}

func (h *RouteHandler) Create(c *gin.Context) {
	var req createRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json body")
		return
	}

	raw := req.Waypoints
	if req.Origin != nil && req.Destination != nil {
		raw = [][]float64{req.Origin, req.Destination}
	}
	waypoints := make([]orb.Point, 0, len(raw))
	for i, v := range raw {
		p, err := parsePoint(fmt.Sprintf("waypoints[%d]", i), v)
		if err != nil {
			writeGuidanceError(c, err)
			return
		}
		waypoints = append(waypoints, p)
	}

	rt, err := h.guidance.CreateRoute(c.Request.Context(), guidance.CreateCommand{
		ID:        types.ID(req.ID),
		Waypoints: waypoints,
	})
	if err != nil {
		writeGuidanceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, newRouteResponse(rt))
}

func (h *RouteHandler) Get(c *gin.Context) {
	rt, err := h.guidance.GetRoute(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeGuidanceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newRouteResponse(rt))
}

type eventResponse struct {
	Kind      string     `json:"kind"`
	Revision  int        `json:"revision"`
	Detail    string     `json:"detail,omitempty"`
	Position  *orb.Point `json:"position,omitempty"`
	DistanceM float64    `json:"distance_m"`
	CreatedAt time.Time  `json:"created_at"`
}

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

func (h *RouteHandler) Events(c *gin.Context) {
	if h.events == nil {
		writeError(c, http.StatusNotFound, "route journal not configured")
		return
	}
	limit := defaultEventLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventLimit)
	}

	events, err := h.events.ListByRoute(c.Request.Context(), types.ID(c.Param("id")), limit)
	if err != nil {
		writeGuidanceError(c, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{
			Kind:      string(e.Kind),
			Revision:  e.Revision,
			Detail:    e.Detail,
			Position:  e.Position,
			DistanceM: e.DistanceM,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"route_id": c.Param("id"), "events": out})
}
