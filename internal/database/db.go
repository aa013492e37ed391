package database

import (
	"backend/internal/model"
	"backend/pkg/logger"

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
		&model.User{},
		&model.RefreshToken{},
		&model.Lot{},
		&model.Product{},
		&model.Application{},
		&model.Discrepancy{},
		&model.DiscrepancyHistory{},
		&model.SyncTask{},
	)
	if err != nil {
		logger.Get().WithError(err).Warn("Failed to auto-migrate models")
	}

	return db, nil
}
