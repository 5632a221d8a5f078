package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/noah-isme/rankpaper-api/internal/models"
)

// ConnectPostgres opens the database holding papers, attempts and answers.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}

// Migrate creates or updates the tables owned by the attempt engine. The unique indexes on
// (user_id, paper_id) for attempts and (attempt_id, question_id) for answers back the
// conflict clauses the repositories rely on for one attempt per paper and last write wins.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Paper{},
		&models.Question{},
		&models.Option{},
		&models.PaperEnrollment{},
		&models.Attempt{},
		&models.Answer{},
		&models.Marks{},
		&models.ActivityLog{},
		&models.Notification{},
	)
}
