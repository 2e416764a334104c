package entity

import (
	"time"

	"github.com/google/uuid"
)

type VerificationPurpose string

const (
	PurposePasswordChange VerificationPurpose = "password_change"
)

// VerificationCode rows are kept after the owning user is deleted, so
// UserID carries no foreign key.
type VerificationCode struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_verification_codes_user_created,priority:1"`

	CodeHash string              `gorm:"type:text;not null"`
	Purpose  VerificationPurpose `gorm:"type:varchar(32);not null;default:'password_change'"`

	ExpiresAt time.Time
	UsedAt    *time.Time

	CreatedAt time.Time `gorm:"index:idx_verification_codes_user_created,priority:2"`
}

func (c VerificationCode) UsableAt(now time.Time) bool {
	return c.UsedAt == nil && now.Before(c.ExpiresAt)
}
