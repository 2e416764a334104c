package entity

import (
	"time"

	"github.com/google/uuid"
)

// User mirrors an identity owned by the external provider. ID is the
// provider's identifier and is never generated locally.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email       string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	DisplayName string    `gorm:"type:varchar(120);not null"`

	RoleID uuid.UUID `gorm:"type:uuid;not null;index"`
	Role   Role      `gorm:"foreignKey:RoleID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot returns the mutable profile fields used as audit values.
func (u User) Snapshot() map[string]any {
	return map[string]any{
		"email":       u.Email,
		"displayName": u.DisplayName,
		"roleId":      u.RoleID.String(),
	}
}
