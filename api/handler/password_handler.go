package handler

import (
	"context"
	"net/http"

	"sitecms/api/middleware"
	"sitecms/internal/dto"
	"sitecms/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type PasswordService interface {
	RequestCode(ctx context.Context, input service.RequestCodeInput) error
	ChangePassword(ctx context.Context, input service.ChangePasswordInput) error
}

type PasswordHandler struct {
	Passwords PasswordService
	Validate  *validator.Validate
}

func NewPasswordHandler(passwords PasswordService, validate *validator.Validate) *PasswordHandler {
	return &PasswordHandler{Passwords: passwords, Validate: validate}
}

// RequestCode accepts either a session or email plus current password.
func (h *PasswordHandler) RequestCode(c echo.Context) error {
	var req dto.PasswordCodeRequest
	if ok, err := bind(c, h.Validate, &req); !ok {
		return err
	}
	principal, _ := middleware.PrincipalFromContext(c)
	err := h.Passwords.RequestCode(c.Request().Context(), service.RequestCodeInput{
		Principal:       principal,
		Email:           req.Email,
		CurrentPassword: req.CurrentPassword,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"message": "verification code sent"})
}

func (h *PasswordHandler) Change(c echo.Context) error {
	var req dto.PasswordChangeRequest
	if ok, err := bind(c, h.Validate, &req); !ok {
		return err
	}
	principal, _ := middleware.PrincipalFromContext(c)
	if principal == nil && req.Email == "" {
		return writeServiceError(c, service.ErrInvalidOrExpired)
	}
	err := h.Passwords.ChangePassword(c.Request().Context(), service.ChangePasswordInput{
		Principal:   principal,
		Email:       req.Email,
		Code:        req.Code,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
