package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/rankpaper-api/internal/models"
)

// EnrollmentRepository reads payment/enrollment state for papers.
type EnrollmentRepository interface {
	FindByUserAndPaper(ctx context.Context, userID, paperID uint) (models.PaperEnrollment, error)
}

type enrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository constructs the enrollment repository.
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (r *enrollmentRepository) FindByUserAndPaper(ctx context.Context, userID, paperID uint) (models.PaperEnrollment, error) {
	var enrollment models.PaperEnrollment
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND paper_id = ?", userID, paperID).
		First(&enrollment).Error; err != nil {
		return models.PaperEnrollment{}, err
	}
	return enrollment, nil
}
