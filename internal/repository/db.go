package repository

import (
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"geolink-go/internal/model"
	"geolink-go/pkg/logging"
)

// NewDB opens the MySQL connection and migrates the schema. The handle is
// returned to the caller and injected into each component; nothing holds it
// as package state.
func NewDB(logger *zap.Logger, atomicLogLevel zap.AtomicLevel) (*gorm.DB, error) {
	dsn := viper.GetString("db.dsn")
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logging.NewGormLogger(logger, logging.ToGormLogLevel(atomicLogLevel.Level())),
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the persisted schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Link{},
		&model.LinkClick{},
		&model.Evaluation{},
		&model.EvaluationRun{},
	)
}
