package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"sitecms/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

func decodeJSON(c echo.Context, target any) error {
	decoder := json.NewDecoder(c.Request().Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func validate(v *validator.Validate, payload any) error {
	if v == nil {
		return nil
	}
	return v.Struct(payload)
}

// bind decodes and validates a JSON body, writing a 400 on failure. The
// returned bool reports whether the handler should continue.
func bind(c echo.Context, v *validator.Validate, target any) (bool, error) {
	if err := decodeJSON(c, target); err != nil {
		return false, writeError(c, http.StatusBadRequest, errors.New("invalid request body"))
	}
	if err := validate(v, target); err != nil {
		return false, writeError(c, http.StatusBadRequest, err)
	}
	return true, nil
}

func writeError(c echo.Context, status int, err error) error {
	return c.JSON(status, map[string]string{"message": err.Error()})
}

// writeServiceError maps service sentinels to status codes. Anything
// unclassified is logged by the request logger and answered generically.
func writeServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return writeError(c, http.StatusBadRequest, service.ErrInvalidInput)
	case errors.Is(err, service.ErrNotAuthenticated):
		return writeError(c, http.StatusUnauthorized, service.ErrNotAuthenticated)
	case errors.Is(err, service.ErrUserNotFound):
		return writeError(c, http.StatusNotFound, service.ErrUserNotFound)
	case errors.Is(err, service.ErrConflict):
		return writeError(c, http.StatusConflict, service.ErrConflict)
	case errors.Is(err, service.ErrRoleNotFound):
		return writeError(c, http.StatusBadRequest, service.ErrRoleNotFound)
	case errors.Is(err, service.ErrRateLimited):
		return writeError(c, http.StatusTooManyRequests, service.ErrRateLimited)
	case errors.Is(err, service.ErrInvalidOrExpired):
		return writeError(c, http.StatusBadRequest, service.ErrInvalidOrExpired)
	case errors.Is(err, service.ErrInvalidOperation):
		return writeError(c, http.StatusBadRequest, err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}

func parseLimitOffset(c echo.Context) (int, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	return limit, offset
}

func stringPtr(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
