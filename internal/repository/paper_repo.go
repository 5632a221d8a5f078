package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/rankpaper-api/internal/models"
)

// PaperRepository gives read-only access to authored papers, questions and options.
type PaperRepository interface {
	GetByID(ctx context.Context, id uint) (models.Paper, error)
	GetWithQuestions(ctx context.Context, id uint) (models.Paper, error)
	GetQuestion(ctx context.Context, paperID, questionID uint) (models.Question, error)
}

type paperRepository struct {
	db *gorm.DB
}

// NewPaperRepository constructs a GORM-backed paper repository.
func NewPaperRepository(db *gorm.DB) PaperRepository {
	return &paperRepository{db: db}
}

func (r *paperRepository) GetByID(ctx context.Context, id uint) (models.Paper, error) {
	var paper models.Paper
	if err := r.db.WithContext(ctx).First(&paper, id).Error; err != nil {
		return models.Paper{}, err
	}
	return paper, nil
}

func (r *paperRepository) GetWithQuestions(ctx context.Context, id uint) (models.Paper, error) {
	var paper models.Paper
	if err := r.db.WithContext(ctx).
		Preload("Questions", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC, id ASC")
		}).
		Preload("Questions.Options", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("id ASC")
		}).
		First(&paper, id).Error; err != nil {
		return models.Paper{}, err
	}
	return paper, nil
}

func (r *paperRepository) GetQuestion(ctx context.Context, paperID, questionID uint) (models.Question, error) {
	var question models.Question
	if err := r.db.WithContext(ctx).
		Preload("Options").
		Where("paper_id = ?", paperID).
		First(&question, questionID).Error; err != nil {
		return models.Question{}, err
	}
	return question, nil
}
