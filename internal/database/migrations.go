package database

import (
	"errors"
	"time"

	"github.com/framelab/dailyframe/internal/topics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationRepairActiveTopicInvariant = "2026-08-29_repair_active_topic_invariant"

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
		{name: migrationRepairActiveTopicInvariant, apply: repairActiveTopicInvariant},
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

// repairActiveTopicInvariant deactivates all but the newest active topic.
// Databases written before rotation ran inside a transaction could hold more
// than one active row.
func repairActiveTopicInvariant(db *gorm.DB) error {
	var newest topics.Topic
	err := db.Where("is_active = ?", true).
		Order("created_at DESC").
		First(&newest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return db.Model(&topics.Topic{}).
		Where("is_active = ? AND id <> ?", true, newest.ID).
		Update("is_active", false).Error
}
