// README: Position handler; runs one guidance update per fix and reports the next maneuver.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"

	"livenav/internal/modules/guidance"
	"livenav/internal/modules/location"
	"livenav/internal/types"
)

type PositionHandler struct {
	guidance *guidance.Service
	location *location.Service
}

func NewPositionHandler(g *guidance.Service, l *location.Service) *PositionHandler {
	return &PositionHandler{guidance: g, location: l}
}

type positionRequest struct {
	RouteID  string    `json:"route_id" binding:"required"`
	Position []float64 `json:"position" binding:"required"`
	Heading  *float64  `json:"heading"`
}

type positionResponse struct {
	RouteID         string            `json:"route_id"`
	Revision        int               `json:"revision"`
	Projected       orb.Point         `json:"projected_point"`
	AlongM          float64           `json:"distance_along_m"`
	OffRouteM       float64           `json:"off_route_m"`
	RemainingM      float64           `json:"remaining_distance_m"`
	NextManeuver    *maneuverResponse `json:"next_maneuver"`
	DistanceToNextM *float64          `json:"distance_to_next_m"`
	NoProgress      int               `json:"no_progress"`
	Heading         *float64          `json:"heading,omitempty"`
	Rerouted        bool              `json:"rerouted"`
	RerouteError    string            `json:"reroute_error,omitempty"`
	Route           *routeResponse    `json:"route,omitempty"`
}

func (h *PositionHandler) Update(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "missing route_id or position")
		return
	}
	p, err := parsePoint("position", req.Position)
	if err != nil {
		writeGuidanceError(c, err)
		return
	}

	res, err := h.guidance.UpdatePosition(c.Request.Context(), guidance.UpdateCommand{
		RouteID:  types.ID(req.RouteID),
		Position: p,
		Heading:  req.Heading,
	})
	if err != nil {
		writeGuidanceError(c, err)
		return
	}
	if h.location != nil {
		h.location.Record(c.Request.Context(), location.Fix{Position: p, Yaw: req.Heading, RouteID: res.RouteID})
	}

	resp := positionResponse{
		RouteID:      string(res.RouteID),
		Revision:     res.Revision,
		Projected:    res.Projected,
		AlongM:       res.Along,
		OffRouteM:    res.OffRoute,
		RemainingM:   res.Remaining,
		NoProgress:   res.NoProgress,
		Heading:      res.Heading,
		Rerouted:     res.Rerouted,
		RerouteError: res.RerouteError,
	}
	if res.Next != nil {
		m := newManeuverResponse(*res.Next)
		d := res.DistanceToNext
		resp.NextManeuver = &m
		resp.DistanceToNextM = &d
	}
	if res.Route != nil {
		rt := newRouteResponse(res.Route)
		resp.Route = &rt
	}
	writeJSON(c, http.StatusOK, resp)
}
