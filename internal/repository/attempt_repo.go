package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/rankpaper-api/internal/models"
)

// ErrAttemptNotOpen is returned by guarded writes when the attempt is already terminal or missing.
var ErrAttemptNotOpen = errors.New("attempt is not open")

// AttemptRepository persists attempts with conditional state transitions.
type AttemptRepository interface {
	CreateIfAbsent(ctx context.Context, attempt *models.Attempt) (bool, error)
	GetByID(ctx context.Context, id uint) (models.Attempt, error)
	GetByUserAndPaper(ctx context.Context, userID, paperID uint) (models.Attempt, error)
	CloseIfOpen(ctx context.Context, id uint, reason models.CloseReason, at time.Time) (bool, error)
	IncrementViolation(ctx context.Context, id, userID uint, kind models.ViolationKind) (bool, error)
	ListExpiredOpen(ctx context.Context, reference time.Time, limit int) ([]models.Attempt, error)
}

type attemptRepository struct {
	db *gorm.DB
}

// NewAttemptRepository constructs the attempt repository.
func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

// CreateIfAbsent inserts the attempt unless one exists for the same user and paper.
// It reports whether this call created the row.
func (r *attemptRepository) CreateIfAbsent(ctx context.Context, attempt *models.Attempt) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "paper_id"}},
		DoNothing: true,
	}).Create(attempt)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *attemptRepository) GetByID(ctx context.Context, id uint) (models.Attempt, error) {
	var attempt models.Attempt
	if err := r.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return models.Attempt{}, err
	}
	return attempt, nil
}

func (r *attemptRepository) GetByUserAndPaper(ctx context.Context, userID, paperID uint) (models.Attempt, error) {
	var attempt models.Attempt
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND paper_id = ?", userID, paperID).
		First(&attempt).Error; err != nil {
		return models.Attempt{}, err
	}
	return attempt, nil
}

// CloseIfOpen performs the terminal transition only when neither terminal field is set yet.
func (r *attemptRepository) CloseIfOpen(ctx context.Context, id uint, reason models.CloseReason, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"closed_at":  at,
		"updated_at": at,
	}
	switch reason {
	case models.CloseReasonExplicit:
		updates["submitted_at"] = at
	case models.CloseReasonExpiry:
		updates["auto_closed"] = true
	default:
		return false, fmt.Errorf("unknown close reason %q", reason)
	}

	result := r.db.WithContext(ctx).Model(&models.Attempt{}).
		Where("id = ? AND submitted_at IS NULL AND auto_closed = ?", id, false).
		UpdateColumns(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// IncrementViolation bumps the counter for kind on the attempt only when userID owns it.
func (r *attemptRepository) IncrementViolation(ctx context.Context, id, userID uint, kind models.ViolationKind) (bool, error) {
	var column string
	switch kind {
	case models.ViolationTabSwitch:
		column = "tab_switch_count"
	case models.ViolationWindowClose:
		column = "window_close_count"
	default:
		return false, fmt.Errorf("unknown violation kind %q", kind)
	}

	result := r.db.WithContext(ctx).Model(&models.Attempt{}).
		Where("id = ? AND user_id = ?", id, userID).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *attemptRepository) ListExpiredOpen(ctx context.Context, reference time.Time, limit int) ([]models.Attempt, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var attempts []models.Attempt
	if err := r.db.WithContext(ctx).
		Where("submitted_at IS NULL AND auto_closed = ? AND ends_at < ?", false, reference).
		Order("ends_at ASC, id ASC").
		Limit(limit).
		Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}
