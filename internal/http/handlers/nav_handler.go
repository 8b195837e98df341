// README: Driver display command and route clearing.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"livenav/internal/modules/guidance"
	"livenav/internal/types"
)

type NavHandler struct {
	guidance *guidance.Service
}

func NewNavHandler(svc *guidance.Service) *NavHandler {
	return &NavHandler{guidance: svc}
}

type navCommandResponse struct {
	Status       string     `json:"status"`
	TurnType     string     `json:"turn_type"`
	TurnM        float64    `json:"turn_m"`
	DestinationM float64    `json:"destination_m"`
	Message      string     `json:"message"`
	RouteID      string     `json:"route_id,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// Command never fails; an unset board reads as an error command.
func (h *NavHandler) Command(c *gin.Context) {
	cmd := h.guidance.NavCommand()
	resp := navCommandResponse{
		Status:       string(cmd.Status),
		TurnType:     string(cmd.Turn),
		TurnM:        cmd.DistanceToTurn,
		DestinationM: cmd.DistanceToDestination,
		Message:      cmd.Message,
		RouteID:      string(cmd.RouteID),
	}
	if !cmd.UpdatedAt.IsZero() {
		resp.UpdatedAt = &cmd.UpdatedAt
	}
	writeJSON(c, http.StatusOK, resp)
}

type clearRouteRequest struct {
	RouteID string `json:"route_id"`
}

// Clear removes one route, or all of them when route_id is absent.
func (h *NavHandler) Clear(c *gin.Context) {
	var req clearRouteRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json body")
			return
		}
	}
	n, err := h.guidance.ClearRoute(c.Request.Context(), types.ID(req.RouteID))
	if err != nil {
		writeGuidanceError(c, err)
		return
	}
	var cleared any
	if req.RouteID != "" {
		cleared = req.RouteID
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ok", "cleared_route_id": cleared, "cleared": n})
}
