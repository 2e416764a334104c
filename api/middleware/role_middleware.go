package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"sitecms/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type RoleLookup interface {
	RoleOf(ctx context.Context, userID uuid.UUID) (string, error)
}

// RequireRole admits authenticated callers whose local role is one of roles.
// It must run after RequireAuth.
func RequireRole(lookup RoleLookup, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := PrincipalFromContext(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, service.ErrNotAuthenticated.Error())
			}
			role, err := lookup.RoleOf(c.Request().Context(), principal.ID)
			if err != nil {
				if errors.Is(err, service.ErrUserNotFound) {
					return echo.NewHTTPError(http.StatusForbidden, "forbidden")
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
			}
			if !slices.Contains(roles, role) {
				return echo.NewHTTPError(http.StatusForbidden, "forbidden")
			}
			SetRole(c, role)
			return next(c)
		}
	}
}
