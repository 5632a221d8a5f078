package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/rankpaper-api/internal/models"
)

// AnswerRepository persists per-question answers.
type AnswerRepository interface {
	UpsertIfOpen(ctx context.Context, answer *models.Answer, at time.Time) error
	ListByAttempt(ctx context.Context, attemptID uint) ([]models.Answer, error)
}

type answerRepository struct {
	db *gorm.DB
}

// NewAnswerRepository constructs the answer repository.
func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

// UpsertIfOpen writes the answer only while the owning attempt is non-terminal and at is
// not past its deadline. The attempt row is touched first so the write serialises against
// a concurrent close.
func (r *answerRepository) UpsertIfOpen(ctx context.Context, answer *models.Answer, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		guard := tx.Model(&models.Attempt{}).
			Where("id = ? AND submitted_at IS NULL AND auto_closed = ? AND ends_at >= ?", answer.AttemptID, false, at).
			UpdateColumn("last_activity_at", at)
		if guard.Error != nil {
			return guard.Error
		}
		if guard.RowsAffected == 0 {
			return ErrAttemptNotOpen
		}

		answer.CreatedAt = at
		answer.UpdatedAt = at
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"section", "option_id", "upload_ref", "updated_at"}),
		}).Create(answer).Error
	})
}

func (r *answerRepository) ListByAttempt(ctx context.Context, attemptID uint) ([]models.Answer, error) {
	var answers []models.Answer
	if err := r.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("question_id ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}
	return answers, nil
}
