package service

import (
	"sitecms/internal/entity"

	"github.com/google/uuid"
)

// Principal is the authenticated caller as known to the identity provider.
type Principal struct {
	ID    uuid.UUID
	Email string
}

type CreateUserInput struct {
	Email       string
	Password    string
	DisplayName string
	RoleID      uuid.UUID
}

type SetupInput struct {
	Email       string
	Password    string
	DisplayName string
}

// UpdateUserInput fields left nil are not changed.
type UpdateUserInput struct {
	Email       *string
	DisplayName *string
	RoleID      *uuid.UUID
	Password    *string
}

type LoginInput struct {
	Email     string
	Password  string
	IPAddress *string
}

type LoginResult struct {
	AccessToken string
	ExpiresIn   int64
	User        *entity.User
}

// RequestCodeInput identifies the user either by Principal or by Email
// plus CurrentPassword.
type RequestCodeInput struct {
	Principal       *Principal
	Email           string
	CurrentPassword string
}

type ChangePasswordInput struct {
	Principal   *Principal
	Email       string
	Code        string
	NewPassword string
}
