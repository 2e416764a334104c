package config

import (
	"fmt"

	"sitecms/internal/entity"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func ConnectionDb(cfg DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.URL,
		PreferSimpleProtocol: true, // Disable prepared statements completely
	}), &gorm.Config{
		PrepareStmt:    false,
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

var defaultRoles = []entity.Role{
	{Name: entity.RoleSuperAdmin, Description: "Full access including user administration"},
	{Name: entity.RoleAdmin, Description: "User and content administration"},
	{Name: entity.RoleEditor, Description: "Content editing"},
}

// Migrate creates the schema and seeds the role reference data.
func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error; err != nil {
		return fmt.Errorf("enable pgcrypto: %w", err)
	}
	if err := db.AutoMigrate(
		&entity.Role{},
		&entity.User{},
		&entity.VerificationCode{},
		&entity.AuditEntry{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, role := range defaultRoles {
		if err := db.Where(entity.Role{Name: role.Name}).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", role.Name, err)
		}
	}
	return nil
}
