package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"
)

// currentUserID returns a stable string identity for the request, used
// in rate-limit and cache keys.  It reads the "user_id" context value
// set by JWTAuth, tolerating the numeric types a decoded JWT claim can
// take, and falls back to "anon" for unauthenticated requests.
func currentUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%.0f", v)
	case uint64:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case int:
		return fmt.Sprintf("%d", v)
	}
	return "anon"
}
