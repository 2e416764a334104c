package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AuditAction string

const (
	AuditCreate         AuditAction = "CREATE"
	AuditUpdate         AuditAction = "UPDATE"
	AuditDelete         AuditAction = "DELETE"
	AuditSetup          AuditAction = "SETUP"
	AuditLogin          AuditAction = "LOGIN"
	AuditPasswordChange AuditAction = "PASSWORD_CHANGE"
)

// AuditEntry is append-only. ActorID is nil for system-initiated actions.
type AuditEntry struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	ActorID  *uuid.UUID  `gorm:"type:uuid;index"`
	Action   AuditAction `gorm:"type:varchar(32);not null"`
	Entity   string      `gorm:"type:varchar(64);not null;index:idx_audit_entries_entity,priority:1"`
	EntityID *string     `gorm:"type:varchar(64);index:idx_audit_entries_entity,priority:2"`

	Changes datatypes.JSON

	CreatedAt time.Time
}
