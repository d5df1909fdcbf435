package middleware

import "github.com/labstack/echo/v4"

// Context keys set by JWTAuth.
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
	CtxToken  = "token"
)

// UserID returns the authenticated user id, or "" when the request carries
// no verified token.
func UserID(c echo.Context) string {
	s, _ := c.Get(CtxUserID).(string)
	return s
}

// Role returns the role claim of the authenticated user.
func Role(c echo.Context) string {
	s, _ := c.Get(CtxRole).(string)
	return s
}

// Token returns the raw bearer token, forwarded to the booking service on
// behalf of the user.
func Token(c echo.Context) string {
	s, _ := c.Get(CtxToken).(string)
	return s
}

// rateIdentity names the caller for rate limiting keys.
func rateIdentity(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}
