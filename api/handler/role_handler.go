package handler

import (
	"context"
	"net/http"

	"sitecms/internal/dto"
	"sitecms/internal/entity"

	"github.com/labstack/echo/v4"
)

type RoleLister interface {
	List(ctx context.Context) ([]entity.Role, error)
}

type RoleHandler struct {
	Roles RoleLister
}

func (h *RoleHandler) List(c echo.Context) error {
	roles, err := h.Roles.List(c.Request().Context())
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.RoleResponsesFromEntities(roles))
}
