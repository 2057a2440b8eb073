package db

import (
	"github.com/gnidc/Sheet-Manager-sub001/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	if err := db.Gorm.AutoMigrate(
		&models.StrategyRule{},
		&models.Position{},
		&models.Order{},
		&models.DecisionLog{},
		&models.IndexConstituent{},
		&models.SystemSetting{},
	); err != nil {
		return err
	}
	// One open position per (rule, symbol). Both postgres and sqlite support partial indexes.
	return db.Gorm.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_open_rule_symbol ON positions (rule_id, symbol) WHERE status = 'open'",
	).Error
}
