// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"livenav/internal/http/handlers"
	"livenav/internal/http/middleware"
	"livenav/internal/infra"
	"livenav/internal/modules/guidance"
	"livenav/internal/modules/location"
)

type RouterDeps struct {
	Guidance *guidance.Service
	Location *location.Service
	// Events is nil when the route journal is disabled.
	Events   handlers.EventLister
	Verifier infra.TokenVerifier
	Logger   *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(middleware.Recovery(logger), middleware.Logging(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "routes_stored": deps.Guidance.RouteCount()})
	})

	api := r.Group("/", middleware.Auth(deps.Verifier))

	routeHandler := handlers.NewRouteHandler(deps.Guidance, deps.Events)
	api.POST("/route", routeHandler.Create)
	api.GET("/route/:id", routeHandler.Get)
	if deps.Events != nil {
		api.GET("/route/:id/events", routeHandler.Events)
	}

	positionHandler := handlers.NewPositionHandler(deps.Guidance, deps.Location)
	api.POST("/position", positionHandler.Update)

	locationHandler := handlers.NewLocationHandler(deps.Location)
	api.POST("/update_gnss", locationHandler.UpdateGNSS)
	api.GET("/latest_position", locationHandler.Latest)

	navHandler := handlers.NewNavHandler(deps.Guidance)
	api.GET("/nav_cmd", navHandler.Command)
	api.POST("/clear_route", navHandler.Clear)

	return r
}
