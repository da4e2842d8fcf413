package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hostel-bed-allocation/internal/allocation"
	"github.com/iliyamo/hostel-bed-allocation/internal/blob"
	"github.com/iliyamo/hostel-bed-allocation/internal/config"
	"github.com/iliyamo/hostel-bed-allocation/internal/handler"
	"github.com/iliyamo/hostel-bed-allocation/internal/lifecycle"
	"github.com/iliyamo/hostel-bed-allocation/internal/repository"
)

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func TestAllRoutesRegistered(t *testing.T) {
	alloc := allocation.NewService(repository.NewMemoryBedStore(1, 1), nil)
	blobs := blob.NewMemory()
	ctl := lifecycle.New(lifecycle.Deps{Beds: alloc, Bookings: repository.NewMemoryBookingStore(), Blobs: blobs})
	fp := handler.NewFloorPlanHandler(alloc, time.Second)
	bk := handler.NewBookingHandler(ctl, time.Second, 0)

	e := echo.New()
	RegisterRoutes(e, nil, http.NotFoundHandler(), nil)
	RegisterAuth(e, handler.NewAuthHandler(config.Config{JWTSecret: "s"}, nil))
	RegisterPublic(e, fp, bk, passthrough, passthrough)
	RegisterAdmin(e, fp, bk, handler.NewUploadHandler(blobs, 0), "s")
	RegisterUser(e, bk, "s")

	got := map[string]bool{}
	for _, r := range e.Routes() {
		got[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz", "GET /metrics", "POST /auth/login",
		"GET /rooms", "GET /rooms/:id/beds", "POST /booking",
		"GET /admin/rooms_detailed", "PATCH /admin/verify/:id", "PATCH /admin/reject/:id",
		"DELETE /admin/bookings/:id", "PATCH /admin/restore/:id", "PUT /admin/bookings/:id",
		"DELETE /admin/permanent_delete/:id", "GET /admin/recycle_bin",
		"GET /admin/bookings", "GET /admin/bookings/:id",
		"GET /user/bookings/:email", "GET /uploads/*",
	} {
		assert.True(t, got[want], want)
	}
	assert.False(t, got["GET /readyz"], "readiness needs a database")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodPatch, "/admin/verify/1"))
}

func serve(e *echo.Echo, method, path string) int {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec.Code
}
