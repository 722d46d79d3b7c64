// database/migrate.go - Database Migration Runner
package database

import (
	"fmt"
	"log"

	"questlock/models"

	"gorm.io/gorm"
)

// RunMigrations runs all database migrations
func RunMigrations(conn *gorm.DB) error {
	log.Println("🔄 Running database migrations...")

	if err := conn.AutoMigrate(
		&models.User{},
		&models.Quest{},
		&models.PunishmentOption{},
		&models.Achievement{},
		&models.SweeperLease{},
	); err != nil {
		return fmt.Errorf("run core migrations: %w", err)
	}

	if err := createCoreIndexes(conn); err != nil {
		return err
	}

	log.Println("✅ All migrations completed successfully")
	return nil
}

// createCoreIndexes creates the composite indexes the sweeper and the
// per-user listings rely on.
func createCoreIndexes(conn *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_quests_status_expires ON quests(status, expires_at)",
		"CREATE INDEX IF NOT EXISTS idx_quests_user_status ON quests(user_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_quests_user_updated ON quests(user_id, updated_at)",
		"CREATE INDEX IF NOT EXISTS idx_achievements_user_unlocked ON achievements(user_id, unlocked_at)",
	}
	for _, stmt := range stmts {
		if err := conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
