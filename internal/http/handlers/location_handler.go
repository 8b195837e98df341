// README: Raw GNSS ingestion and latest-fix lookup.
package handlers

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"

	"livenav/internal/modules/location"
	"livenav/internal/types"
)

type LocationHandler struct {
	location *location.Service
}

func NewLocationHandler(svc *location.Service) *LocationHandler {
	return &LocationHandler{location: svc}
}

type gnssRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lon *float64 `json:"lon" binding:"required"`
	Yaw *float64 `json:"yaw"`
}

type fixResponse struct {
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Yaw        *float64  `json:"yaw"`
	RouteID    string    `json:"route_id,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

func newFixResponse(f location.Fix) fixResponse {
	return fixResponse{
		Lat:        f.Position.Lat(),
		Lon:        f.Position.Lon(),
		Yaw:        f.Yaw,
		RouteID:    string(f.RouteID),
		RecordedAt: f.RecordedAt,
	}
}

func (h *LocationHandler) UpdateGNSS(c *gin.Context) {
	var req gnssRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "missing lat/lon")
		return
	}
	lat, lon := *req.Lat, *req.Lon
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		writeError(c, http.StatusBadRequest, "lat/lon out of range")
		return
	}
	f := h.location.Record(c.Request.Context(), location.Fix{Position: orb.Point{lon, lat}, Yaw: req.Yaw})
	writeJSON(c, http.StatusOK, gin.H{"status": "ok", "fix": newFixResponse(f)})
}

// Latest returns the most recent fix, or the most recent fix of one route when
// route_id is given.
func (h *LocationHandler) Latest(c *gin.Context) {
	var f location.Fix
	var err error
	if id := c.Query("route_id"); id != "" {
		f, err = h.location.LatestForRoute(c.Request.Context(), types.ID(id))
	} else {
		f, err = h.location.Latest(c.Request.Context())
	}
	if errors.Is(err, location.ErrNoFix) {
		writeError(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeGuidanceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newFixResponse(f))
}
