package database

import (
	"backend/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate core models
	err = db.AutoMigrate(
		&model.Company{},
		&model.User{},
		&model.RefreshToken{},
		&model.Membership{},
		&model.ExpenseReport{},
		&model.LineItem{},
		&model.ApprovalStep{},
		&model.AuditLog{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
