// README: Base handler utilities (JSON helpers, coordinate parsing, error mapping).
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"

	"livenav/internal/maps"
	"livenav/internal/modules/guidance"
	"livenav/internal/polyline"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeGuidanceError(c *gin.Context, err error) {
	var pe *maps.PlanningError
	var de *polyline.DecodeError
	switch {
	case errors.Is(err, guidance.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, guidance.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.As(err, &pe), errors.As(err, &de):
		writeError(c, http.StatusBadGateway, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// parsePoint converts a [lon, lat] JSON pair.
func parsePoint(field string, v []float64) (orb.Point, error) {
	if len(v) != 2 {
		return orb.Point{}, &guidance.ValidationError{Field: field, Reason: fmt.Sprintf("expected [lon, lat], got %d values", len(v))}
	}
	return orb.Point{v[0], v[1]}, nil
}
