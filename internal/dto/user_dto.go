package dto

import (
	"encoding/json"
	"time"

	"sitecms/internal/entity"
)

type CreateUserRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	DisplayName string `json:"display_name" validate:"required,max=120"`
	RoleID      string `json:"role_id" validate:"required,uuid"`
}

// UpdateUserRequest leaves nil fields unchanged.
type UpdateUserRequest struct {
	Email       *string `json:"email" validate:"omitempty,email"`
	DisplayName *string `json:"display_name" validate:"omitempty,min=1,max=120"`
	RoleID      *string `json:"role_id" validate:"omitempty,uuid"`
	Password    *string `json:"password" validate:"omitempty"`
}

type RoleResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type UserResponse struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"display_name"`
	Role        RoleResponse `json:"role"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type UserListResponse struct {
	Users []UserResponse `json:"users"`
	Total int64          `json:"total"`
}

type AuditEntryResponse struct {
	ID        string          `json:"id"`
	ActorID   *string         `json:"actor_id"`
	Action    string          `json:"action"`
	Entity    string          `json:"entity"`
	EntityID  *string         `json:"entity_id"`
	Changes   json.RawMessage `json:"changes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func RoleResponseFromEntity(role *entity.Role) RoleResponse {
	return RoleResponse{
		ID:          role.ID.String(),
		Name:        role.Name,
		Description: role.Description,
	}
}

func RoleResponsesFromEntities(roles []entity.Role) []RoleResponse {
	responses := make([]RoleResponse, 0, len(roles))
	for i := range roles {
		responses = append(responses, RoleResponseFromEntity(&roles[i]))
	}
	return responses
}

func UserResponseFromEntity(user *entity.User) UserResponse {
	return UserResponse{
		ID:          user.ID.String(),
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        RoleResponseFromEntity(&user.Role),
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

func UserResponsesFromEntities(users []entity.User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, UserResponseFromEntity(&users[i]))
	}
	return responses
}

func AuditEntryResponsesFromEntities(entries []entity.AuditEntry) []AuditEntryResponse {
	responses := make([]AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		response := AuditEntryResponse{
			ID:        entry.ID.String(),
			Action:    string(entry.Action),
			Entity:    entry.Entity,
			EntityID:  entry.EntityID,
			Changes:   json.RawMessage(entry.Changes),
			CreatedAt: entry.CreatedAt,
		}
		if entry.ActorID != nil {
			actor := entry.ActorID.String()
			response.ActorID = &actor
		}
		responses = append(responses, response)
	}
	return responses
}
