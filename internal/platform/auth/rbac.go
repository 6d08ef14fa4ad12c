package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Roles carried in operator tokens.
const (
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// HasRole reports whether roles grants want. Admin grants everything.
func HasRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want || r == RoleAdmin {
			return true
		}
	}
	return false
}

// RequireRole rejects requests whose token carries none of roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			held := RolesFromContext(c.Request().Context())
			for _, want := range roles {
				if HasRole(held, want) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "role required: "+strings.Join(roles, " | "))
		}
	}
}
