package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hostel-bed-allocation/internal/blob"
)

// UploadHandler serves stored booking documents to admins.
type UploadHandler struct {
	Blobs      blob.Store
	PresignTTL time.Duration
}

func NewUploadHandler(s blob.Store, presignTTL time.Duration) *UploadHandler {
	return &UploadHandler{Blobs: s, PresignTTL: presignTTL}
}

// Serve handles GET /uploads/*.  Backends that can mint presigned URLs
// answer with a redirect; others stream the object.
func (h *UploadHandler) Serve(c echo.Context) error {
	key := strings.TrimPrefix(c.Param("*"), "/")
	if key == "" || strings.Contains(key, "..") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid key"})
	}
	ctx := c.Request().Context()

	if h.PresignTTL > 0 {
		url, err := h.Blobs.PresignURL(ctx, key, h.PresignTTL)
		if err == nil {
			return c.Redirect(http.StatusFound, url)
		}
		if !errors.Is(err, blob.ErrUnsupported) {
			return h.blobError(c, err)
		}
	}

	info, rc, err := h.Blobs.Get(ctx, key)
	if err != nil {
		return h.blobError(c, err)
	}
	defer rc.Close()
	ct := info.ContentType
	if ct == "" {
		ct = echo.MIMEOctetStream
	}
	res := c.Response()
	if info.Size > 0 {
		res.Header().Set(echo.HeaderContentLength, strconv.FormatInt(info.Size, 10))
	}
	res.Header().Set(echo.HeaderContentType, ct)
	res.WriteHeader(http.StatusOK)
	_, err = io.Copy(res, rc)
	return err
}

func (h *UploadHandler) blobError(c echo.Context, err error) error {
	if errors.Is(err, blob.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "document not found"})
	}
	return fail(c, err)
}
