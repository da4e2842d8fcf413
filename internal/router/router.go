package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hostel-bed-allocation/internal/handler"
)

// RegisterRoutes registers the operational endpoints: liveness, readiness,
// Prometheus metrics and the live floor-plan websocket.  metrics and live
// may be nil to leave those endpoints out.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, metrics http.Handler, live http.Handler) {
	e.GET("/healthz", handler.Health)
	if db != nil {
		e.GET("/readyz", handler.Ready(db))
	}
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
	if live != nil {
		e.GET("/ws/floorplan", echo.WrapHandler(live))
	}
}

// RegisterAuth registers the login endpoint.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	e.POST("/auth/login", a.Login)
}
