package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hostel-bed-allocation/internal/handler"
	"github.com/iliyamo/hostel-bed-allocation/internal/middleware"
	"github.com/iliyamo/hostel-bed-allocation/internal/model"
)

// RegisterAdmin registers the admin dashboard routes.  All of them require a
// valid JWT carrying the ADMIN role.
func RegisterAdmin(e *echo.Echo, fp *handler.FloorPlanHandler, bk *handler.BookingHandler, up *handler.UploadHandler, jwtSecret string) {
	auth := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	}
	g := e.Group("/admin", auth...)
	g.GET("/rooms_detailed", fp.RoomsDetailed)

	g.GET("/bookings", bk.List)
	g.GET("/bookings/:id", bk.Get)
	g.PUT("/bookings/:id", bk.Edit)
	g.DELETE("/bookings/:id", bk.Delete)
	g.PATCH("/verify/:id", bk.Verify)
	g.PATCH("/reject/:id", bk.Reject)
	g.PATCH("/restore/:id", bk.Restore)
	g.GET("/recycle_bin", bk.RecycleBin)
	g.DELETE("/permanent_delete/:id", bk.PermanentDelete)

	e.GET("/uploads/*", up.Serve, auth...)
}

// RegisterUser registers routes for signed-in residents.
func RegisterUser(e *echo.Echo, bk *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/user",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStudent, model.RoleAdmin),
	)
	g.GET("/bookings/:email", bk.ForUser)
}
