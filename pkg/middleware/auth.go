package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"cropcheck/pkg/auth"
)

// UIDKey is the echo context key holding the authenticated user id.
const UIDKey = "uid"

// Auth requires a valid bearer token and stores its user id under UIDKey.
// With devLogin enabled, a LINE_UID cookie or ?uid= query stands in for a
// token (local development only).
func Auth(v auth.Verifier, devLogin bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}

			h := c.Request().Header.Get(echo.HeaderAuthorization)
			if tok, ok := strings.CutPrefix(h, "Bearer "); ok && strings.TrimSpace(tok) != "" {
				uid, err := v.Verify(strings.TrimSpace(tok))
				if err != nil {
					return c.JSON(http.StatusUnauthorized, echo.Map{
						"success": false, "error": "invalid_token", "message": "Token is invalid or expired",
					})
				}
				c.Set(UIDKey, uid)
				return next(c)
			}

			if devLogin {
				uid := c.QueryParam("uid")
				if uid == "" {
					if ck, err := c.Cookie("LINE_UID"); err == nil {
						uid = ck.Value
					}
				}
				if uid != "" {
					c.Set(UIDKey, uid)
					return next(c)
				}
			}

			return c.JSON(http.StatusUnauthorized, echo.Map{
				"success": false, "error": "missing_token", "message": "Token is required",
			})
		}
	}
}

// UID returns the authenticated user id, or "" outside Auth.
func UID(c echo.Context) string {
	uid, _ := c.Get(UIDKey).(string)
	return uid
}
