package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/rankpaper-api/internal/models"
)

// MarksRepository persists composite marks and guards the publish transition.
type MarksRepository interface {
	EnsureDraft(ctx context.Context, draft *models.Marks) (models.Marks, error)
	GetByAttempt(ctx context.Context, attemptID uint) (models.Marks, error)
	UpdateDraft(ctx context.Context, attemptID uint, version int, updates map[string]interface{}) (bool, error)
	Publish(ctx context.Context, attemptID uint, version int, total float64, publishedAt time.Time, publishedBy uint) (bool, error)
	ListPublishedByPaper(ctx context.Context, paperID uint) ([]models.Marks, error)
}

type marksRepository struct {
	db *gorm.DB
}

// NewMarksRepository constructs the marks repository.
func NewMarksRepository(db *gorm.DB) MarksRepository {
	return &marksRepository{db: db}
}

// EnsureDraft inserts an empty draft row when the attempt has none and returns the stored row.
func (r *marksRepository) EnsureDraft(ctx context.Context, draft *models.Marks) (models.Marks, error) {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "attempt_id"}},
		DoNothing: true,
	}).Create(draft).Error; err != nil {
		return models.Marks{}, err
	}
	return r.GetByAttempt(ctx, draft.AttemptID)
}

func (r *marksRepository) GetByAttempt(ctx context.Context, attemptID uint) (models.Marks, error) {
	var marks models.Marks
	if err := r.db.WithContext(ctx).Where("attempt_id = ?", attemptID).First(&marks).Error; err != nil {
		return models.Marks{}, err
	}
	return marks, nil
}

// UpdateDraft applies updates while the marks are unpublished and still at the expected version.
func (r *marksRepository) UpdateDraft(ctx context.Context, attemptID uint, version int, updates map[string]interface{}) (bool, error) {
	values := make(map[string]interface{}, len(updates)+1)
	for key, value := range updates {
		values[key] = value
	}
	values["version"] = gorm.Expr("version + ?", 1)

	result := r.db.WithContext(ctx).Model(&models.Marks{}).
		Where("attempt_id = ? AND published_at IS NULL AND version = ?", attemptID, version).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *marksRepository) Publish(ctx context.Context, attemptID uint, version int, total float64, publishedAt time.Time, publishedBy uint) (bool, error) {
	return r.UpdateDraft(ctx, attemptID, version, map[string]interface{}{
		"total_score":  total,
		"published_at": publishedAt,
		"published_by": publishedBy,
	})
}

func (r *marksRepository) ListPublishedByPaper(ctx context.Context, paperID uint) ([]models.Marks, error) {
	var marks []models.Marks
	if err := r.db.WithContext(ctx).
		Preload("Attempt").
		Where("paper_id = ? AND published_at IS NOT NULL", paperID).
		Find(&marks).Error; err != nil {
		return nil, err
	}
	return marks, nil
}
