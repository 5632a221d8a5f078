package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/rankpaper-api/internal/models"
	"github.com/noah-isme/rankpaper-api/internal/observability"
	"github.com/noah-isme/rankpaper-api/internal/repository"
)

// IntegrityService counts client-reported violations. Recording never fails the caller,
// and reports against attempts the caller does not own are dropped.
type IntegrityService interface {
	RecordViolation(ctx context.Context, attemptID, userID uint, kind models.ViolationKind)
}

type integrityService struct {
	attempts repository.AttemptRepository
	logger   zerolog.Logger
}

// NewIntegrityService constructs the integrity monitor.
func NewIntegrityService(attempts repository.AttemptRepository, logger zerolog.Logger) IntegrityService {
	return &integrityService{
		attempts: attempts,
		logger:   logger.With().Str("component", "integrity_service").Logger(),
	}
}

func (s *integrityService) RecordViolation(ctx context.Context, attemptID, userID uint, kind models.ViolationKind) {
	updated, err := s.attempts.IncrementViolation(ctx, attemptID, userID, kind)
	if err != nil {
		observability.ViolationFailures().Inc()
		s.logger.Warn().Err(err).
			Uint("attempt_id", attemptID).
			Str("kind", string(kind)).
			Msg("failed to record violation")
		return
	}
	if !updated {
		observability.ViolationFailures().Inc()
		s.logger.Debug().
			Uint("attempt_id", attemptID).
			Uint("user_id", userID).
			Str("kind", string(kind)).
			Msg("violation for unknown or foreign attempt ignored")
		return
	}

	observability.Violations().WithLabelValues(string(kind)).Inc()
}
