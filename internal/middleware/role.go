package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole returns a middleware that only admits requests whose
// authenticated role is in the allowed set.  The values correspond to
// the JWT's "role" claim as stored in context by JWTAuth; a missing or
// mistyped role is treated the same as a disallowed one.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get("role").(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// RequireApprovedHost admits hosts only after an admin has approved
// their account.  It assumes JWTAuth ran earlier; admins pass through
// unconditionally.  The host_status claim travels in the token so this
// check needs no database round trip.
func RequireApprovedHost() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if role, _ := c.Get("role").(string); role == "admin" {
				return next(c)
			}
			status, _ := c.Get("host_status").(string)
			if status != "approved" {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "host account not approved"})
			}
			return next(c)
		}
	}
}
