package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hostel-bed-allocation/internal/model"
)

// FloorPlan is the read side of the allocation service.
type FloorPlan interface {
	Rooms(ctx context.Context) ([]model.RoomSummary, error)
	Beds(ctx context.Context, roomID uint64) ([]model.Bed, error)
	RoomsDetailed(ctx context.Context) ([]model.RoomDetail, error)
}

// FloorPlanHandler serves the live floor plan.
type FloorPlanHandler struct {
	Plan    FloorPlan
	Timeout time.Duration
}

func NewFloorPlanHandler(p FloorPlan, timeout time.Duration) *FloorPlanHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &FloorPlanHandler{Plan: p, Timeout: timeout}
}

// Rooms handles GET /rooms.
func (h *FloorPlanHandler) Rooms(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()
	rooms, err := h.Plan.Rooms(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rooms": rooms})
}

// Beds handles GET /rooms/:id/beds.
func (h *FloorPlanHandler) Beds(c echo.Context) error {
	roomID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()
	beds, err := h.Plan.Beds(ctx, roomID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"room_id": roomID, "beds": beds})
}

// RoomsDetailed handles GET /admin/rooms_detailed.
func (h *FloorPlanHandler) RoomsDetailed(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()
	rooms, err := h.Plan.RoomsDetailed(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rooms": rooms})
}
