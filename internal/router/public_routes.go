package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hostel-bed-allocation/internal/handler"
)

// RegisterPublic registers the unauthenticated routes: the floor plan, which
// goes through cache, and booking submission, which goes through limit.
func RegisterPublic(e *echo.Echo, fp *handler.FloorPlanHandler, bk *handler.BookingHandler, cache, limit echo.MiddlewareFunc) {
	e.GET("/rooms", fp.Rooms, cache)
	e.GET("/rooms/:id/beds", fp.Beds, cache)
	e.POST("/booking", bk.Submit, limit)
}
