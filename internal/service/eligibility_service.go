package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/rankpaper-api/internal/models"
	"github.com/noah-isme/rankpaper-api/internal/repository"
)

// EligibilityChecker decides whether a user may start a paper.
type EligibilityChecker interface {
	CanStart(ctx context.Context, userID uint, paper models.Paper) error
}

type enrollmentEligibility struct {
	enrollments repository.EnrollmentRepository
	logger      zerolog.Logger
	now         func() time.Time
}

// NewEligibilityChecker checks the paper window and, for fee-bearing papers, an approved enrollment.
func NewEligibilityChecker(enrollments repository.EnrollmentRepository, logger zerolog.Logger) EligibilityChecker {
	return &enrollmentEligibility{
		enrollments: enrollments,
		logger:      logger.With().Str("component", "eligibility").Logger(),
		now:         time.Now,
	}
}

func (e *enrollmentEligibility) CanStart(ctx context.Context, userID uint, paper models.Paper) error {
	if !paper.IsVisible(e.now().UTC()) {
		return ErrPaperNotAvailable
	}
	if !paper.RequiresPayment {
		return nil
	}

	enrollment, err := e.enrollments.FindByUserAndPaper(ctx, userID, paper.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPaymentRequired
		}
		return err
	}
	if !enrollment.IsApproved() {
		e.logger.Debug().
			Uint("user_id", userID).
			Uint("paper_id", paper.ID).
			Str("enrollment_status", enrollment.Status).
			Msg("enrollment not approved")
		return ErrPaymentRequired
	}

	return nil
}
