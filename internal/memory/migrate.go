package memory

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate applies the memory schema using Gorm's AutoMigrate and logs progress.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if db == nil {
		return eris.New("gorm DB is required")
	}

	logFields := logrus.Fields{"component": "memory.migrate"}
	if logger != nil {
		logger.WithFields(logFields).Info("applying memory schema")
	}

	if err := db.WithContext(ctx).AutoMigrate(&Summary{}); err != nil {
		if logger != nil {
			logger.WithFields(logFields).WithField("error", err.Error()).Error("memory schema migration failed")
		}
		return eris.Wrap(err, "auto migrating memory schema")
	}

	if logger != nil {
		logger.WithFields(logFields).Info("memory schema migration complete")
	}

	return nil
}
