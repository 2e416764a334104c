package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrUserNotFound     = errors.New("user not found")
	ErrConflict         = errors.New("email already in use")
	ErrRoleNotFound     = errors.New("role not found")
	ErrRateLimited      = errors.New("too many verification codes requested, try again later")
	ErrInvalidOrExpired = errors.New("invalid or expired code")
	ErrInvalidOperation = errors.New("operation not allowed")
	ErrInternal         = errors.New("internal error")
)

// Errors returned by IdentityProvider implementations.
var (
	ErrIdentityExists     = fmt.Errorf("%w: identity already registered with provider", ErrConflict)
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

func internal(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}
