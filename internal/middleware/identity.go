package middleware

// identity.go holds the context keys JWTAuth fills in and small accessors
// handlers and other middleware use to read them.

import "github.com/labstack/echo/v4"

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
	ctxEmail  = "email"
)

// UserID returns the authenticated user's id, or "anon".
func UserID(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}

// Role returns the authenticated user's role, or "".
func Role(c echo.Context) string {
	s, _ := c.Get(ctxRole).(string)
	return s
}

// Email returns the authenticated user's email, or "".
func Email(c echo.Context) string {
	s, _ := c.Get(ctxEmail).(string)
	return s
}
