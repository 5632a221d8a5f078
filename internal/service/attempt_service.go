package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/rankpaper-api/internal/dto"
	"github.com/noah-isme/rankpaper-api/internal/models"
	"github.com/noah-isme/rankpaper-api/internal/observability"
	"github.com/noah-isme/rankpaper-api/internal/repository"
)

// AttemptClosedHook is notified once per attempt after its terminal transition.
type AttemptClosedHook interface {
	OnAttemptClosed(ctx context.Context, attempt models.Attempt)
}

// AttemptCloser performs the terminal transition of an attempt.
type AttemptCloser interface {
	Close(ctx context.Context, attemptID uint, reason models.CloseReason) (dto.AttemptResponse, error)
}

// TransitionCloser is an AttemptCloser that also reports whether the call itself moved
// the attempt out of its open state.
type TransitionCloser interface {
	AttemptCloser
	CloseTransition(ctx context.Context, attemptID uint, reason models.CloseReason) (dto.AttemptResponse, bool, error)
}

// AttemptService owns the attempt lifecycle.
type AttemptService interface {
	TransitionCloser
	Start(ctx context.Context, userID, paperID uint) (dto.AttemptResponse, error)
	Get(ctx context.Context, attemptID uint) (dto.AttemptResponse, error)
	GetForOwner(ctx context.Context, attemptID, userID uint) (dto.AttemptResponse, error)
	Submit(ctx context.Context, attemptID, userID uint) (dto.AttemptResponse, error)
}

type attemptService struct {
	attempts    repository.AttemptRepository
	papers      repository.PaperRepository
	eligibility EligibilityChecker
	hook        AttemptClosedHook
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewAttemptService constructs the attempt manager. eligibility and hook may be nil.
func NewAttemptService(attempts repository.AttemptRepository, papers repository.PaperRepository, eligibility EligibilityChecker, hook AttemptClosedHook, logger zerolog.Logger) AttemptService {
	return &attemptService{
		attempts:    attempts,
		papers:      papers,
		eligibility: eligibility,
		hook:        hook,
		logger:      logger.With().Str("component", "attempt_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/rankpaper-api/internal/service/attempt"),
		now:         time.Now,
	}
}

func (s *attemptService) Start(ctx context.Context, userID, paperID uint) (dto.AttemptResponse, error) {
	ctx, span := s.tracer.Start(ctx, "attempt.start", trace.WithAttributes(
		attribute.Int64("attempt.user_id", int64(userID)),
		attribute.Int64("attempt.paper_id", int64(paperID)),
	))
	defer span.End()

	existing, err := s.attempts.GetByUserAndPaper(ctx, userID, paperID)
	if err == nil {
		observability.AttemptsStarted().WithLabelValues("resumed").Inc()
		span.SetAttributes(attribute.Bool("attempt.resumed", true))
		return s.response(existing), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "attempt_lookup_failed")
		return dto.AttemptResponse{}, err
	}

	paper, err := s.papers.GetByID(ctx, paperID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "paper_not_found")
			return dto.AttemptResponse{}, ErrPaperNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "paper_lookup_failed")
		return dto.AttemptResponse{}, err
	}
	if paper.TimeLimitMinutes <= 0 {
		span.SetStatus(codes.Error, "invalid_time_limit")
		return dto.AttemptResponse{}, ErrInvalidTimeLimit
	}

	if s.eligibility != nil {
		if err := s.eligibility.CanStart(ctx, userID, paper); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "not_eligible")
			return dto.AttemptResponse{}, err
		}
	}

	startedAt := s.now().UTC()
	attempt := models.Attempt{
		UserID:    userID,
		PaperID:   paperID,
		StartedAt: startedAt,
		EndsAt:    startedAt.Add(paper.TimeLimit()),
	}

	created, err := s.attempts.CreateIfAbsent(ctx, &attempt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "attempt_create_failed")
		return dto.AttemptResponse{}, err
	}
	if !created {
		// Lost a concurrent start; the winner's row is the attempt.
		winner, err := s.attempts.GetByUserAndPaper(ctx, userID, paperID)
		if err != nil {
			span.RecordError(err)
			return dto.AttemptResponse{}, err
		}
		observability.AttemptsStarted().WithLabelValues("resumed").Inc()
		return s.response(winner), nil
	}

	observability.AttemptsStarted().WithLabelValues("created").Inc()
	s.logger.Info().
		Uint("attempt_id", attempt.ID).
		Uint("user_id", userID).
		Uint("paper_id", paperID).
		Time("ends_at", attempt.EndsAt).
		Msg("attempt started")

	return dto.NewAttemptResponse(attempt, startedAt), nil
}

func (s *attemptService) Get(ctx context.Context, attemptID uint) (dto.AttemptResponse, error) {
	attempt, err := s.load(ctx, attemptID)
	if err != nil {
		return dto.AttemptResponse{}, err
	}
	return s.response(attempt), nil
}

func (s *attemptService) GetForOwner(ctx context.Context, attemptID, userID uint) (dto.AttemptResponse, error) {
	attempt, err := s.load(ctx, attemptID)
	if err != nil {
		return dto.AttemptResponse{}, err
	}
	if attempt.UserID != userID {
		return dto.AttemptResponse{}, ErrAttemptForbidden
	}
	return s.response(attempt), nil
}

func (s *attemptService) Submit(ctx context.Context, attemptID, userID uint) (dto.AttemptResponse, error) {
	attempt, err := s.load(ctx, attemptID)
	if err != nil {
		return dto.AttemptResponse{}, err
	}
	if attempt.UserID != userID {
		return dto.AttemptResponse{}, ErrAttemptForbidden
	}
	return s.Close(ctx, attemptID, models.CloseReasonExplicit)
}

// Close moves the attempt into its terminal state. Closing a terminal attempt returns it unchanged.
func (s *attemptService) Close(ctx context.Context, attemptID uint, reason models.CloseReason) (dto.AttemptResponse, error) {
	response, _, err := s.CloseTransition(ctx, attemptID, reason)
	return response, err
}

// CloseTransition is Close, additionally reporting whether this call won the transition.
func (s *attemptService) CloseTransition(ctx context.Context, attemptID uint, reason models.CloseReason) (dto.AttemptResponse, bool, error) {
	ctx, span := s.tracer.Start(ctx, "attempt.close", trace.WithAttributes(
		attribute.Int64("attempt.id", int64(attemptID)),
		attribute.String("attempt.close_reason", string(reason)),
	))
	defer span.End()

	if reason != models.CloseReasonExplicit && reason != models.CloseReasonExpiry {
		return dto.AttemptResponse{}, false, ErrInvalidCloseReason
	}

	attempt, err := s.load(ctx, attemptID)
	if err != nil {
		span.RecordError(err)
		return dto.AttemptResponse{}, false, err
	}
	if attempt.IsTerminal() {
		span.SetAttributes(attribute.Bool("attempt.noop", true))
		return s.response(attempt), false, nil
	}

	now := s.now().UTC()
	if reason == models.CloseReasonExpiry && !now.After(attempt.EndsAt) {
		span.SetStatus(codes.Error, "deadline_not_reached")
		return dto.AttemptResponse{}, false, ErrDeadlineNotReached
	}

	transitioned, err := s.attempts.CloseIfOpen(ctx, attemptID, reason, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "attempt_close_failed")
		return dto.AttemptResponse{}, false, err
	}

	closed, err := s.load(ctx, attemptID)
	if err != nil {
		span.RecordError(err)
		return dto.AttemptResponse{}, false, err
	}
	span.SetAttributes(attribute.Bool("attempt.transitioned", transitioned))

	if transitioned {
		observability.AttemptsClosed().WithLabelValues(string(reason)).Inc()
		s.logger.Info().
			Uint("attempt_id", attemptID).
			Str("reason", string(reason)).
			Msg("attempt closed")
		if s.hook != nil {
			s.hook.OnAttemptClosed(ctx, closed)
		}
	}

	return s.response(closed), transitioned, nil
}

func (s *attemptService) load(ctx context.Context, attemptID uint) (models.Attempt, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Attempt{}, ErrAttemptNotFound
		}
		return models.Attempt{}, err
	}
	return attempt, nil
}

func (s *attemptService) response(attempt models.Attempt) dto.AttemptResponse {
	return dto.NewAttemptResponse(attempt, s.now().UTC())
}
