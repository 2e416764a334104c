package handler

import (
	"context"
	"net/http"
	"time"

	"sitecms/internal/dto"
	"sitecms/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type SessionService interface {
	Login(ctx context.Context, input service.LoginInput) (*service.LoginResult, error)
}

type SessionHandler struct {
	Sessions      SessionService
	Validate      *validator.Validate
	CookieName    string
	CookieDomain  string
	SecureCookies bool
	SameSite      http.SameSite
}

func NewSessionHandler(sessions SessionService, validate *validator.Validate) *SessionHandler {
	return &SessionHandler{
		Sessions:      sessions,
		Validate:      validate,
		CookieName:    "sb-access-token",
		SecureCookies: true,
		SameSite:      http.SameSiteLaxMode,
	}
}

func (h *SessionHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if ok, err := bind(c, h.Validate, &req); !ok {
		return err
	}
	result, err := h.Sessions.Login(c.Request().Context(), service.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: stringPtr(c.RealIP()),
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	h.setSessionCookie(c, result.AccessToken, result.ExpiresIn)
	return c.JSON(http.StatusOK, dto.LoginResponse{
		AccessToken: result.AccessToken,
		ExpiresIn:   result.ExpiresIn,
		User:        dto.UserResponseFromEntity(result.User),
	})
}

func (h *SessionHandler) Logout(c echo.Context) error {
	h.clearSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *SessionHandler) setSessionCookie(c echo.Context, token string, expiresIn int64) {
	if token == "" {
		return
	}
	maxAge := int(expiresIn)
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetCookie(&http.Cookie{
		Name:     h.CookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.CookieDomain,
		MaxAge:   maxAge,
		Expires:  time.Now().Add(time.Duration(expiresIn) * time.Second),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: h.SameSite,
	})
}

func (h *SessionHandler) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     h.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: h.SameSite,
	})
}
