package repository

import (
	"context"

	"sitecms/internal/entity"

	"gorm.io/gorm"
)

// AuditRepository has no update or delete on purpose: entries are append-only.
type AuditRepository interface {
	Append(ctx context.Context, entry *entity.AuditEntry) error
	ListByEntity(ctx context.Context, entityName string, entityID string, limit int) ([]entity.AuditEntry, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, entry *entity.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepository) ListByEntity(ctx context.Context, entityName string, entityID string, limit int) ([]entity.AuditEntry, error) {
	var entries []entity.AuditEntry
	query := r.db.WithContext(ctx).
		Where("entity = ? AND entity_id = ?", entityName, entityID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
