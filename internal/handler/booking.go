package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hostel-bed-allocation/internal/lifecycle"
	"github.com/iliyamo/hostel-bed-allocation/internal/middleware"
	"github.com/iliyamo/hostel-bed-allocation/internal/model"
	"github.com/iliyamo/hostel-bed-allocation/internal/repository"
)

// Bookings is the part of the lifecycle controller the HTTP layer drives.
type Bookings interface {
	Get(ctx context.Context, id uint64) (model.Booking, error)
	List(ctx context.Context, f repository.BookingFilter) ([]model.Booking, error)
	ListRecycleBin(ctx context.Context) ([]model.Booking, error)
	Submit(ctx context.Context, b model.Booking, uploads []lifecycle.Upload) (model.Booking, error)
	Verify(ctx context.Context, id uint64) (model.Booking, error)
	Reject(ctx context.Context, id uint64) (model.Booking, error)
	Delete(ctx context.Context, id uint64) (model.Booking, error)
	Restore(ctx context.Context, id uint64) (model.Booking, error)
	Edit(ctx context.Context, id uint64, req lifecycle.EditRequest) (model.Booking, error)
	PermanentDelete(ctx context.Context, id uint64) error
}

var _ Bookings = (*lifecycle.Controller)(nil)

// BookingHandler serves booking submission and the admin booking routes.
type BookingHandler struct {
	Ctl       Bookings
	Timeout   time.Duration // deadline for each lifecycle call
	MaxUpload int64         // per-document size limit
}

func NewBookingHandler(ctl Bookings, timeout time.Duration, maxUpload int64) *BookingHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BookingHandler{Ctl: ctl, Timeout: timeout, MaxUpload: maxUpload}
}

func (h *BookingHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.Timeout)
}

// Submit handles POST /booking.  The client retries with another bed when it
// gets 409.
func (h *BookingHandler) Submit(c echo.Context) error {
	var req submitForm
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid form"})
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err)
	}
	uploads, done, err := collectUploads(c, h.MaxUpload)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	defer done()

	ctx, cancel := h.ctx(c)
	defer cancel()
	b, err := h.Ctl.Submit(ctx, model.Booking{
		Resident: req.resident(),
		BedID:    strings.TrimSpace(req.BedID),
	}, uploads)
	if err != nil {
		if statusFor(err) == http.StatusConflict {
			return c.JSON(http.StatusConflict, echo.Map{"error": msgBedTaken})
		}
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Booking submitted. Your registration number is " + b.RegNo,
		"booking": b,
	})
}

// ForUser handles GET /user/bookings/:email.  Students may only list their
// own bookings; admins may list anyone's.
func (h *BookingHandler) ForUser(c echo.Context) error {
	email := strings.ToLower(strings.TrimSpace(c.Param("email")))
	if email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}
	if middleware.Role(c) != model.RoleAdmin && !strings.EqualFold(middleware.Email(c), email) {
		return fail(c, repository.ErrForbidden)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	list, err := h.Ctl.List(ctx, repository.BookingFilter{
		Email: email,
		Statuses: []model.BookingStatus{
			model.BookingPending, model.BookingVerified, model.BookingRejected,
		},
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// List handles GET /admin/bookings, optionally filtered by ?status=.
func (h *BookingHandler) List(c echo.Context) error {
	var f repository.BookingFilter
	if s := strings.TrimSpace(c.QueryParam("status")); s != "" {
		for _, p := range strings.Split(s, ",") {
			st := model.BookingStatus(strings.ToLower(strings.TrimSpace(p)))
			switch st {
			case model.BookingPending, model.BookingVerified, model.BookingRejected, model.BookingDeleted:
				f.Statuses = append(f.Statuses, st)
			default:
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status " + string(st)})
			}
		}
	}
	if e := strings.TrimSpace(c.QueryParam("email")); e != "" {
		f.Email = e
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	list, err := h.Ctl.List(ctx, f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// Get handles GET /admin/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return badID(c)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	b, err := h.Ctl.Get(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// RecycleBin handles GET /admin/recycle_bin.
func (h *BookingHandler) RecycleBin(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	list, err := h.Ctl.ListRecycleBin(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// transition runs one id-addressed lifecycle call and renders the booking.
func (h *BookingHandler) transition(c echo.Context, msg string, fn func(context.Context, uint64) (model.Booking, error)) error {
	id, ok := paramID(c)
	if !ok {
		return badID(c)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	b, err := fn(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg, "booking": b})
}

// Verify handles PATCH /admin/verify/:id.
func (h *BookingHandler) Verify(c echo.Context) error {
	return h.transition(c, "booking verified", h.Ctl.Verify)
}

// Reject handles PATCH /admin/reject/:id.
func (h *BookingHandler) Reject(c echo.Context) error {
	return h.transition(c, "booking rejected", h.Ctl.Reject)
}

// Delete handles DELETE /admin/bookings/:id (move to recycle bin).
func (h *BookingHandler) Delete(c echo.Context) error {
	return h.transition(c, "booking moved to recycle bin", h.Ctl.Delete)
}

// Restore handles PATCH /admin/restore/:id.  When the original bed has been
// taken the booking stays in the recycle bin and 409 is returned.
func (h *BookingHandler) Restore(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return badID(c)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	b, err := h.Ctl.Restore(ctx, id)
	if errors.Is(err, repository.ErrConflict) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "the original bed is no longer free; booking stays in the recycle bin"})
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "booking restored", "booking": b})
}

// Edit handles PUT /admin/bookings/:id.  Fields missing from the body keep
// their current values; a bed_id different from the current bed moves the
// booking.
func (h *BookingHandler) Edit(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return badID(c)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	cur, err := h.Ctl.Get(ctx, id)
	if err != nil {
		return fail(c, err)
	}

	req := editForm{ResidentForm: formFromResident(cur.Resident)}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid form"})
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err)
	}
	uploads, done, err := collectUploads(c, h.MaxUpload)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	defer done()

	r := req.resident()
	b, err := h.Ctl.Edit(ctx, id, lifecycle.EditRequest{
		Resident: &r,
		BedID:    strings.TrimSpace(req.BedID),
		Uploads:  uploads,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "booking updated", "booking": b})
}

// PermanentDelete handles DELETE /admin/permanent_delete/:id.
func (h *BookingHandler) PermanentDelete(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return badID(c)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.Ctl.PermanentDelete(ctx, id); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "booking permanently deleted"})
}
