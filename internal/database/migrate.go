package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/uchokoro/KodeCamp-task-grader/internal/models"
)

// Migrate creates or updates the grader tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Evaluation{}, &models.CriterionScore{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
