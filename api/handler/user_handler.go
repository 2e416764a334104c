package handler

import (
	"context"
	"errors"
	"net/http"

	"sitecms/api/middleware"
	"sitecms/internal/dto"
	"sitecms/internal/entity"
	"sitecms/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type UserService interface {
	Create(ctx context.Context, actor *service.Principal, input service.CreateUserInput) (*entity.User, error)
	Update(ctx context.Context, actor *service.Principal, id uuid.UUID, input service.UpdateUserInput) (*entity.User, error)
	Delete(ctx context.Context, actor *service.Principal, id uuid.UUID) error
	Setup(ctx context.Context, input service.SetupInput) (*entity.User, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.User, error)
	List(ctx context.Context, limit, offset int) ([]entity.User, int64, error)
	AuditTrail(ctx context.Context, id uuid.UUID, limit int) ([]entity.AuditEntry, error)
}

type UserHandler struct {
	Users    UserService
	Validate *validator.Validate
}

func NewUserHandler(users UserService, validate *validator.Validate) *UserHandler {
	return &UserHandler{Users: users, Validate: validate}
}

func (h *UserHandler) Create(c echo.Context) error {
	var req dto.CreateUserRequest
	if ok, err := bind(c, h.Validate, &req); !ok {
		return err
	}
	roleID, err := uuid.Parse(req.RoleID)
	if err != nil {
		return writeError(c, http.StatusBadRequest, errors.New("invalid role id"))
	}
	principal, _ := middleware.PrincipalFromContext(c)

	user, err := h.Users.Create(c.Request().Context(), principal, service.CreateUserInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		RoleID:      roleID,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, dto.UserResponseFromEntity(user))
}

func (h *UserHandler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return writeError(c, http.StatusBadRequest, errors.New("invalid user id"))
	}
	var req dto.UpdateUserRequest
	if ok, err := bind(c, h.Validate, &req); !ok {
		return err
	}
	input := service.UpdateUserInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	}
	if req.RoleID != nil {
		roleID, err := uuid.Parse(*req.RoleID)
		if err != nil {
			return writeError(c, http.StatusBadRequest, errors.New("invalid role id"))
		}
		input.RoleID = &roleID
	}
	principal, _ := middleware.PrincipalFromContext(c)

	user, err := h.Users.Update(c.Request().Context(), principal, id, input)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.UserResponseFromEntity(user))
}

func (h *UserHandler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return writeError(c, http.StatusBadRequest, errors.New("invalid user id"))
	}
	principal, _ := middleware.PrincipalFromContext(c)
	if err := h.Users.Delete(c.Request().Context(), principal, id); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return writeError(c, http.StatusBadRequest, errors.New("invalid user id"))
	}
	user, err := h.Users.Get(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.UserResponseFromEntity(user))
}

func (h *UserHandler) Me(c echo.Context) error {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, service.ErrNotAuthenticated)
	}
	user, err := h.Users.Get(c.Request().Context(), principal.ID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.UserResponseFromEntity(user))
}

func (h *UserHandler) List(c echo.Context) error {
	limit, offset := parseLimitOffset(c)
	users, total, err := h.Users.List(c.Request().Context(), limit, offset)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.UserListResponse{
		Users: dto.UserResponsesFromEntities(users),
		Total: total,
	})
}

func (h *UserHandler) AuditTrail(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return writeError(c, http.StatusBadRequest, errors.New("invalid user id"))
	}
	limit, _ := parseLimitOffset(c)
	entries, err := h.Users.AuditTrail(c.Request().Context(), id, limit)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.AuditEntryResponsesFromEntities(entries))
}

func (h *UserHandler) Setup(c echo.Context) error {
	var req dto.SetupRequest
	if ok, err := bind(c, h.Validate, &req); !ok {
		return err
	}
	user, err := h.Users.Setup(c.Request().Context(), service.SetupInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, dto.UserResponseFromEntity(user))
}
