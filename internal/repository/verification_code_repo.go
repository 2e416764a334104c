package repository

import (
	"context"
	"time"

	"sitecms/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VerificationCodeRepository interface {
	Create(ctx context.Context, code *entity.VerificationCode) error
	CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
	FindUsable(ctx context.Context, userID uuid.UUID, now time.Time) ([]entity.VerificationCode, error)
	Consume(ctx context.Context, id uuid.UUID, userID uuid.UUID, now time.Time) (bool, error)
}

type verificationCodeRepository struct {
	db *gorm.DB
}

func NewVerificationCodeRepository(db *gorm.DB) VerificationCodeRepository {
	return &verificationCodeRepository{db: db}
}

func (r *verificationCodeRepository) Create(ctx context.Context, code *entity.VerificationCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

func (r *verificationCodeRepository) CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.VerificationCode{}).
		Where("user_id = ? AND created_at > ?", userID, since).
		Count(&count).Error
	return count, err
}

func (r *verificationCodeRepository) FindUsable(
	ctx context.Context,
	userID uuid.UUID,
	now time.Time,
) ([]entity.VerificationCode, error) {

	var codes []entity.VerificationCode
	err := r.db.WithContext(ctx).
		Where(`
			user_id = ? AND
			used_at IS NULL AND
			expires_at > ?
		`, userID, now).
		Order("created_at DESC").
		Find(&codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// Consume marks the code used and invalidates every other unused code of
// the same user in one transaction. The user's unused rows are locked in id
// order first so concurrent consumers for one user run one after another.
// It returns false when the conditional update matched nothing, i.e. another
// request consumed the code first or it expired in between.
func (r *verificationCodeRepository) Consume(ctx context.Context, id uuid.UUID, userID uuid.UUID, now time.Time) (bool, error) {
	consumed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked []entity.VerificationCode
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("user_id = ? AND used_at IS NULL", userID).
			Order("id").
			Find(&locked).Error; err != nil {
			return err
		}

		result := tx.Model(&entity.VerificationCode{}).
			Where("id = ? AND user_id = ? AND used_at IS NULL AND expires_at > ?", id, userID, now).
			Update("used_at", now)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		if err := tx.Model(&entity.VerificationCode{}).
			Where("user_id = ? AND used_at IS NULL", userID).
			Update("used_at", now).Error; err != nil {
			return err
		}
		consumed = true
		return nil
	})
	if isLockConflict(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return consumed, nil
}
