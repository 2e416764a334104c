package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleSuperAdmin = "SuperAdmin"
	RoleAdmin      = "Admin"
	RoleEditor     = "Editor"
)

type Role struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	Description string    `gorm:"type:text"`

	CreatedAt time.Time
}
