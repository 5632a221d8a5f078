package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
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

// AnswerService stores per-question answers while an attempt is open.
type AnswerService interface {
	Upsert(ctx context.Context, userID, attemptID, questionID uint, payload dto.AnswerUpsertRequest) (dto.AnswerResponse, error)
	List(ctx context.Context, userID, attemptID uint) ([]dto.AnswerResponse, error)
	ListForReview(ctx context.Context, attemptID uint) ([]dto.AnswerResponse, error)
	EnsureWritable(ctx context.Context, userID, attemptID, questionID uint) (models.Question, error)
}

type answerService struct {
	attempts  repository.AttemptRepository
	answers   repository.AnswerRepository
	papers    repository.PaperRepository
	closer    AttemptCloser
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewAnswerService constructs the answer store. closer receives lazy expiry closes and may be nil.
func NewAnswerService(attempts repository.AttemptRepository, answers repository.AnswerRepository, papers repository.PaperRepository, closer AttemptCloser, validate *validator.Validate, logger zerolog.Logger) AnswerService {
	return &answerService{
		attempts:  attempts,
		answers:   answers,
		papers:    papers,
		closer:    closer,
		validator: validate,
		logger:    logger.With().Str("component", "answer_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/rankpaper-api/internal/service/answer"),
		now:       time.Now,
	}
}

func (s *answerService) Upsert(ctx context.Context, userID, attemptID, questionID uint, payload dto.AnswerUpsertRequest) (dto.AnswerResponse, error) {
	ctx, span := s.tracer.Start(ctx, "answer.upsert", trace.WithAttributes(
		attribute.Int64("answer.attempt_id", int64(attemptID)),
		attribute.Int64("answer.question_id", int64(questionID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.AnswerResponse{}, err
	}

	question, err := s.EnsureWritable(ctx, userID, attemptID, questionID)
	if err != nil {
		span.RecordError(err)
		return dto.AnswerResponse{}, err
	}

	answer := models.Answer{
		AttemptID:  attemptID,
		QuestionID: questionID,
		Section:    question.Section,
	}

	uploadRef := strings.TrimSpace(payload.UploadRef)
	switch question.Section {
	case models.SectionObjective:
		if payload.OptionID == nil || uploadRef != "" {
			s.reject("section_mismatch")
			return dto.AnswerResponse{}, ErrSectionMismatch
		}
		if !question.HasOption(*payload.OptionID) {
			s.reject("invalid_option")
			return dto.AnswerResponse{}, ErrInvalidOption
		}
		optionID := *payload.OptionID
		answer.OptionID = &optionID
	default:
		if payload.OptionID != nil || uploadRef == "" {
			s.reject("section_mismatch")
			return dto.AnswerResponse{}, ErrSectionMismatch
		}
		answer.UploadRef = uploadRef
	}

	if err := s.answers.UpsertIfOpen(ctx, &answer, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrAttemptNotOpen) {
			span.SetStatus(codes.Error, "attempt_closed")
			// The deadline may have passed since the first check; rechecking closes it for expiry.
			if _, recheck := s.EnsureWritable(ctx, userID, attemptID, questionID); recheck != nil {
				return dto.AnswerResponse{}, recheck
			}
			s.reject("closed")
			return dto.AnswerResponse{}, ErrAttemptClosed
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "answer_write_failed")
		return dto.AnswerResponse{}, err
	}

	observability.AnswersSaved().WithLabelValues(string(answer.Section)).Inc()
	return dto.NewAnswerResponse(answer), nil
}

// EnsureWritable checks ownership, the open state and the question's membership in the paper.
// A write arriving after the deadline closes the attempt for expiry before being rejected.
func (s *answerService) EnsureWritable(ctx context.Context, userID, attemptID, questionID uint) (models.Question, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Question{}, ErrAttemptNotFound
		}
		return models.Question{}, err
	}
	if attempt.UserID != userID {
		return models.Question{}, ErrAttemptForbidden
	}
	if attempt.IsTerminal() {
		s.reject("closed")
		return models.Question{}, ErrAttemptClosed
	}

	if now := s.now().UTC(); now.After(attempt.EndsAt) {
		s.reject("expired")
		if s.closer != nil {
			if _, err := s.closer.Close(ctx, attemptID, models.CloseReasonExpiry); err != nil {
				s.logger.Warn().Err(err).Uint("attempt_id", attemptID).Msg("lazy expiry close failed")
			}
		}
		return models.Question{}, ErrAttemptExpired
	}

	question, err := s.papers.GetQuestion(ctx, attempt.PaperID, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.reject("unknown_question")
			return models.Question{}, ErrQuestionNotFound
		}
		return models.Question{}, err
	}

	return question, nil
}

func (s *answerService) List(ctx context.Context, userID, attemptID uint) ([]dto.AnswerResponse, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, ErrAttemptForbidden
	}

	return s.ListForReview(ctx, attemptID)
}

func (s *answerService) ListForReview(ctx context.Context, attemptID uint) ([]dto.AnswerResponse, error) {
	answers, err := s.answers.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	return dto.NewAnswerResponseSlice(answers), nil
}

func (s *answerService) reject(reason string) {
	observability.AnswersRejected().WithLabelValues(reason).Inc()
}
