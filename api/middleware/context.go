package middleware

import (
	"sitecms/internal/service"

	"github.com/labstack/echo/v4"
)

const (
	contextPrincipalKey = "auth_principal"
	contextRoleKey      = "auth_role"
)

func SetPrincipal(c echo.Context, principal *service.Principal) {
	c.Set(contextPrincipalKey, principal)
}

func PrincipalFromContext(c echo.Context) (*service.Principal, bool) {
	value := c.Get(contextPrincipalKey)
	principal, ok := value.(*service.Principal)
	return principal, ok && principal != nil
}

func SetRole(c echo.Context, role string) {
	c.Set(contextRoleKey, role)
}

func RoleFromContext(c echo.Context) (string, bool) {
	value := c.Get(contextRoleKey)
	role, ok := value.(string)
	return role, ok
}
