package middleware

import (
	"context"
	"net/http"

	"sitecms/internal/service"

	"github.com/labstack/echo/v4"
)

type Authenticator interface {
	Authenticate(ctx context.Context, authorization string, cookie string) (*service.Principal, error)
}

// AuthMiddleware reads the bearer token from the Authorization header or,
// failing that, from the session cookie.
type AuthMiddleware struct {
	Sessions   Authenticator
	CookieName string
}

func (m AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		principal, err := m.authenticate(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, service.ErrNotAuthenticated.Error())
		}
		SetPrincipal(c, principal)
		return next(c)
	}
}

// OptionalAuth attaches a principal when the request carries a valid
// credential and continues anonymously otherwise.
func (m AuthMiddleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if principal, err := m.authenticate(c); err == nil {
			SetPrincipal(c, principal)
		}
		return next(c)
	}
}

func (m AuthMiddleware) authenticate(c echo.Context) (*service.Principal, error) {
	if m.Sessions == nil {
		return nil, service.ErrNotAuthenticated
	}
	var cookieValue string
	if m.CookieName != "" {
		if cookie, err := c.Cookie(m.CookieName); err == nil {
			cookieValue = cookie.Value
		}
	}
	request := c.Request()
	return m.Sessions.Authenticate(request.Context(), request.Header.Get(echo.HeaderAuthorization), cookieValue)
}
