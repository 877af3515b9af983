package database

import (
	"errors"
	"time"

	"github.com/hypeshelf/backend/internal/recommendations"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationClearArchivedStaffPicks = "2026-08-20_clear_archived_staff_picks"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationClearArchivedStaffPicks, apply: clearArchivedStaffPicks},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// clearArchivedStaffPicks repairs rows written before archiving started
// clearing the pick flag, so no stored record is both archived and picked.
func clearArchivedStaffPicks(db *gorm.DB) error {
	return db.Model(&recommendations.Recommendation{}).
		Where("is_archived = ? AND is_staff_pick = ?", true, true).
		Update("is_staff_pick", false).Error
}
