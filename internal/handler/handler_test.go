package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hostel-bed-allocation/internal/allocation"
	"github.com/iliyamo/hostel-bed-allocation/internal/blob"
	"github.com/iliyamo/hostel-bed-allocation/internal/config"
	"github.com/iliyamo/hostel-bed-allocation/internal/lifecycle"
	"github.com/iliyamo/hostel-bed-allocation/internal/middleware"
	"github.com/iliyamo/hostel-bed-allocation/internal/model"
	"github.com/iliyamo/hostel-bed-allocation/internal/repository"
	"github.com/iliyamo/hostel-bed-allocation/internal/utils"
)

const testSecret = "handler-secret"

type fixture struct {
	e     *echo.Echo
	alloc *allocation.Service
	blobs *blob.Memory
	admin string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	alloc := allocation.NewService(repository.NewMemoryBedStore(2, 2), nil)
	blobs := blob.NewMemory()
	ctl := lifecycle.New(lifecycle.Deps{
		Beds:     alloc,
		Bookings: repository.NewMemoryBookingStore(),
		Blobs:    blobs,
	})

	e := echo.New()
	e.Validator = NewValidator()
	fp := NewFloorPlanHandler(alloc, time.Second)
	bk := NewBookingHandler(ctl, time.Second, 1<<10)
	up := NewUploadHandler(blobs, time.Minute)

	e.GET("/rooms", fp.Rooms)
	e.GET("/rooms/:id/beds", fp.Beds)
	e.POST("/booking", bk.Submit)
	e.GET("/user/bookings/:email", bk.ForUser, middleware.JWTAuth(testSecret))

	admin := e.Group("/admin", middleware.JWTAuth(testSecret), middleware.RequireRole(model.RoleAdmin))
	admin.GET("/rooms_detailed", fp.RoomsDetailed)
	admin.GET("/bookings", bk.List)
	admin.GET("/bookings/:id", bk.Get)
	admin.PATCH("/verify/:id", bk.Verify)
	admin.PATCH("/reject/:id", bk.Reject)
	admin.DELETE("/bookings/:id", bk.Delete)
	admin.PATCH("/restore/:id", bk.Restore)
	admin.PUT("/bookings/:id", bk.Edit)
	admin.DELETE("/permanent_delete/:id", bk.PermanentDelete)
	admin.GET("/recycle_bin", bk.RecycleBin)
	e.GET("/uploads/*", up.Serve, middleware.JWTAuth(testSecret), middleware.RequireRole(model.RoleAdmin))

	tok, err := utils.NewAccessToken(testSecret, 1, "admin@hostel.test", model.RoleAdmin, 5)
	require.NoError(t, err)
	return &fixture{e: e, alloc: alloc, blobs: blobs, admin: tok.Token}
}

func (f *fixture) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) call(method, path, token string) *httptest.ResponseRecorder {
	return f.do(httptest.NewRequest(method, path, nil), token)
}

func bookingForm(bed, email string) map[string]string {
	return map[string]string{
		"student_name": "Ayesha Khan",
		"cnic":         "35202-1234567-1",
		"contact":      "03001234567",
		"email":        email,
		"bed_id":       bed,
		"has_vehicle":  "on",
		"vehicle_type": "bike",
	}
}

func multipartRequest(t *testing.T, method, path string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, content := range files {
		fw, err := w.CreateFormFile(field, field+".jpg")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

type bookingBody struct {
	Error   string        `json:"error"`
	Booking model.Booking `json:"booking"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) bookingBody {
	t.Helper()
	var out bookingBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (f *fixture) submit(t *testing.T, bed, email string) *httptest.ResponseRecorder {
	t.Helper()
	req := multipartRequest(t, http.MethodPost, "/booking", bookingForm(bed, email), map[string]string{model.DocPhoto: "img"})
	return f.do(req, "")
}

func (f *fixture) bedStatus(t *testing.T, id string) model.BedStatus {
	t.Helper()
	b, err := f.alloc.Bed(context.Background(), id)
	require.NoError(t, err)
	return b.Status
}

func TestFloorPlanRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.call(http.MethodGet, "/rooms", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rooms struct {
		Rooms []model.RoomSummary `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rooms))
	require.Len(t, rooms.Rooms, 2)
	assert.Equal(t, model.RoomFree, rooms.Rooms[0].Status)

	assert.Equal(t, http.StatusOK, f.call(http.MethodGet, "/rooms/1/beds", "").Code)
	assert.Equal(t, http.StatusNotFound, f.call(http.MethodGet, "/rooms/99/beds", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.call(http.MethodGet, "/rooms/x/beds", "").Code)

	assert.Equal(t, http.StatusUnauthorized, f.call(http.MethodGet, "/admin/rooms_detailed", "").Code)
	assert.Equal(t, http.StatusOK, f.call(http.MethodGet, "/admin/rooms_detailed", f.admin).Code)
}

func TestSubmitReservesBed(t *testing.T) {
	f := newFixture(t)

	rec := f.submit(t, "1-A", "Ayesha@Example.com")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	b := decode(t, rec).Booking
	assert.Equal(t, "HST-REG-001", b.RegNo)
	assert.Equal(t, model.BookingPending, b.Status)
	assert.Equal(t, "ayesha@example.com", b.Email)
	assert.True(t, b.HasVehicle)
	assert.NotEmpty(t, b.PhotoPath)
	assert.Equal(t, model.BedReserved, f.bedStatus(t, "1-A"))
	assert.Equal(t, 1, f.blobs.Len())

	rec = f.submit(t, "1-A", "other@example.com")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, msgBedTaken, decode(t, rec).Error)
	assert.Equal(t, 1, f.blobs.Len(), "losing submission stores nothing")
}

func TestSubmitRejectsUnsupportedDocument(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range bookingForm("2-A", "a@example.com") {
		require.NoError(t, w.WriteField(k, v))
	}
	fw, err := w.CreateFormFile(model.DocPhoto, "photo.svg")
	require.NoError(t, err)
	_, err = fw.Write([]byte("<svg/>"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/booking", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())

	rec := f.do(req, "")
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, decode(t, rec).Error, "png, jpg, jpeg or pdf")
	assert.Equal(t, model.BedFree, f.bedStatus(t, "2-A"))
	assert.Zero(t, f.blobs.Len())
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)

	form := bookingForm("1-A", "not-an-email")
	rec := f.do(multipartRequest(t, http.MethodPost, "/booking", form, nil), "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec).Error, "email")

	form = bookingForm("", "a@example.com")
	rec = f.do(multipartRequest(t, http.MethodPost, "/booking", form, nil), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	form = bookingForm("1-A", "a@example.com")
	form["check_in_date"] = "next week"
	rec = f.do(multipartRequest(t, http.MethodPost, "/booking", form, nil), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(multipartRequest(t, http.MethodPost, "/booking", bookingForm("1-A", "a@example.com"),
		map[string]string{model.DocVoucher: strings.Repeat("x", 2<<10)}), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "document over the size limit")

	rec = f.submit(t, "9-Z", "a@example.com")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, model.BedFree, f.bedStatus(t, "1-A"))
}

func TestSubmitURLEncoded(t *testing.T) {
	f := newFixture(t)
	vals := url.Values{}
	for k, v := range bookingForm("2-B", "u@example.com") {
		vals.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, "/booking", strings.NewReader(vals.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := f.do(req, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, model.BedReserved, f.bedStatus(t, "2-B"))
}

func TestAdminLifecycle(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.submit(t, "1-A", "a@example.com").Code)

	rec := f.call(http.MethodPatch, "/admin/verify/1", f.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.BookingVerified, decode(t, rec).Booking.Status)
	assert.Equal(t, model.BedOccupied, f.bedStatus(t, "1-A"))

	rec = f.call(http.MethodPatch, "/admin/reject/1", f.admin)
	assert.Equal(t, http.StatusConflict, rec.Code, "verified bookings cannot be rejected")

	rec = f.call(http.MethodDelete, "/admin/bookings/1", f.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.BedFree, f.bedStatus(t, "1-A"))

	rec = f.call(http.MethodGet, "/admin/recycle_bin", f.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reg_no":"HST-REG-001"`)

	rec = f.call(http.MethodPatch, "/admin/restore/1", f.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.BookingPending, decode(t, rec).Booking.Status)
	assert.Equal(t, model.BedReserved, f.bedStatus(t, "1-A"))

	rec = f.call(http.MethodPatch, "/admin/reject/1", f.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.BedFree, f.bedStatus(t, "1-A"))

	assert.Equal(t, http.StatusNotFound, f.call(http.MethodPatch, "/admin/verify/42", f.admin).Code)
	assert.Equal(t, http.StatusBadRequest, f.call(http.MethodPatch, "/admin/verify/abc", f.admin).Code)
}

func TestRestoreConflictKeepsBookingDeleted(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.submit(t, "1-A", "a@example.com").Code)
	require.Equal(t, http.StatusOK, f.call(http.MethodDelete, "/admin/bookings/1", f.admin).Code)
	require.Equal(t, http.StatusCreated, f.submit(t, "1-A", "b@example.com").Code)

	rec := f.call(http.MethodPatch, "/admin/restore/1", f.admin)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = f.call(http.MethodGet, "/admin/bookings/1", f.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var b model.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, model.BookingDeleted, b.Status)
}

func TestPermanentDelete(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.submit(t, "1-A", "a@example.com").Code)

	assert.Equal(t, http.StatusConflict, f.call(http.MethodDelete, "/admin/permanent_delete/1", f.admin).Code,
		"only recycle-bin entries can be purged")
	require.Equal(t, http.StatusOK, f.call(http.MethodDelete, "/admin/bookings/1", f.admin).Code)
	require.Equal(t, http.StatusOK, f.call(http.MethodDelete, "/admin/permanent_delete/1", f.admin).Code)
	assert.Equal(t, http.StatusNotFound, f.call(http.MethodGet, "/admin/bookings/1", f.admin).Code)
	assert.Zero(t, f.blobs.Len())
}

func TestEditMovesBedAndKeepsUnsentFields(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.submit(t, "1-A", "a@example.com").Code)
	require.Equal(t, http.StatusCreated, f.submit(t, "1-B", "b@example.com").Code)

	req := multipartRequest(t, http.MethodPut, "/admin/bookings/1", map[string]string{"bed_id": "1-B", "contact": "0311"}, nil)
	rec := f.do(req, f.admin)
	require.Equal(t, http.StatusConflict, rec.Code, "target bed taken")
	assert.Equal(t, model.BedReserved, f.bedStatus(t, "1-A"))

	req = multipartRequest(t, http.MethodPut, "/admin/bookings/1", map[string]string{"bed_id": "2-A", "contact": "0311"}, nil)
	rec = f.do(req, f.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := decode(t, rec).Booking
	assert.Equal(t, "2-A", b.BedID)
	assert.Equal(t, "2", b.RoomNumber)
	assert.Equal(t, "0311", b.Contact)
	assert.Equal(t, "Ayesha Khan", b.StudentName)
	assert.Equal(t, model.BedFree, f.bedStatus(t, "1-A"))
	assert.Equal(t, model.BedReserved, f.bedStatus(t, "2-A"))
}

func TestUserBookingsAccess(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.submit(t, "1-A", "a@example.com").Code)

	student, err := utils.NewAccessToken(testSecret, 7, "a@example.com", model.RoleStudent, 5)
	require.NoError(t, err)

	rec := f.call(http.MethodGet, "/user/bookings/a@example.com", student.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "HST-REG-001")

	assert.Equal(t, http.StatusForbidden, f.call(http.MethodGet, "/user/bookings/b@example.com", student.Token).Code)
	assert.Equal(t, http.StatusOK, f.call(http.MethodGet, "/user/bookings/b@example.com", f.admin).Code)
	assert.Equal(t, http.StatusUnauthorized, f.call(http.MethodGet, "/user/bookings/a@example.com", "").Code)
}

func TestAdminListFilters(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.submit(t, "1-A", "a@example.com").Code)
	require.Equal(t, http.StatusCreated, f.submit(t, "1-B", "b@example.com").Code)
	require.Equal(t, http.StatusOK, f.call(http.MethodPatch, "/admin/verify/2", f.admin).Code)

	rec := f.call(http.MethodGet, "/admin/bookings?status=verified", f.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Bookings []model.Booking `json:"bookings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Bookings, 1)
	assert.Equal(t, uint64(2), out.Bookings[0].ID)

	assert.Equal(t, http.StatusBadRequest, f.call(http.MethodGet, "/admin/bookings?status=lost", f.admin).Code)
}

func TestUploadsStreamFromStore(t *testing.T) {
	f := newFixture(t)
	_, err := f.blobs.Put(context.Background(), "abc_photo.jpg", strings.NewReader("jpegdata"), "image/jpeg")
	require.NoError(t, err)

	rec := f.call(http.MethodGet, "/uploads/abc_photo.jpg", f.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "jpegdata", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, f.call(http.MethodGet, "/uploads/missing.jpg", f.admin).Code)
	assert.Equal(t, http.StatusUnauthorized, f.call(http.MethodGet, "/uploads/abc_photo.jpg", "").Code)
}

type fakeUsers map[string]model.User

func (f fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	u, ok := f[email]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func TestLogin(t *testing.T) {
	hash, err := utils.HashPassword("s3cret!", 4)
	require.NoError(t, err)
	users := fakeUsers{"admin@hostel.test": {ID: 3, Email: "admin@hostel.test", PasswordHash: hash, Role: model.RoleAdmin}}

	e := echo.New()
	e.Validator = NewValidator()
	h := NewAuthHandler(config.Config{JWTSecret: testSecret, AccessTTLMin: 5}, users)
	e.POST("/auth/login", h.Login)

	login := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := login(`{"email":" Admin@Hostel.test ","password":"s3cret!"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	claims, err := utils.ParseAccessToken(testSecret, resp.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), claims.UserID)
	assert.Equal(t, model.RoleAdmin, claims.Role)

	assert.Equal(t, http.StatusUnauthorized, login(`{"email":"admin@hostel.test","password":"nope"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, login(`{"email":"who@hostel.test","password":"x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, login(`{"email":"bad","password":"x"}`).Code)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("bed: %w", repository.ErrConflict), http.StatusConflict},
		{lifecycle.ErrInvalidTransition, http.StatusConflict},
		{context.DeadlineExceeded, http.StatusConflict},
		{fmt.Errorf("x: %w", repository.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: name", lifecycle.ErrValidation), http.StatusBadRequest},
		{repository.ErrForbidden, http.StatusForbidden},
		{lifecycle.ErrPersistence, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
