package db

import (
	"fmt"

	"github.com/zulandar/timekeeper/internal/config"
	"github.com/zulandar/timekeeper/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model in dependency order for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Department{},
		&models.Category{},
		&models.Worker{},
		&models.TaskRecord{},
		&models.Justification{},
		&models.AlertStatus{},
		&models.TimerClaim{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedDepartments upserts departments and their categories from configuration.
// Existing categories are kept; seeding never removes rows.
func SeedDepartments(db *gorm.DB, departments []config.DepartmentConfig) error {
	for _, dc := range departments {
		dept := models.Department{Name: dc.Name}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&dept).Error; err != nil {
			return fmt.Errorf("db: seed department %q: %w", dc.Name, err)
		}
		for _, name := range dc.Categories {
			cat := models.Category{Department: dc.Name, Name: name}
			if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&cat).Error; err != nil {
				return fmt.Errorf("db: seed category %q for %q: %w", name, dc.Name, err)
			}
		}
	}
	return nil
}

// Init migrates the schema and seeds configuration rows.
func Init(db *gorm.DB, cfg *config.Config) error {
	if err := AutoMigrate(db); err != nil {
		return err
	}
	return SeedDepartments(db, cfg.Departments)
}
