package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
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

const draftUpdateRetries = 3

// ResultPublishedEvent is handed to the notifier after marks are published.
type ResultPublishedEvent struct {
	PaperID     uint      `json:"paper_id"`
	AttemptID   uint      `json:"attempt_id"`
	UserID      uint      `json:"user_id"`
	TotalScore  float64   `json:"total_score"`
	PublishedAt time.Time `json:"published_at"`
}

// ResultNotifier informs the attempt owner that a result is available.
type ResultNotifier interface {
	NotifyResultPublished(ctx context.Context, event ResultPublishedEvent) error
}

// MarksService aggregates section scores and gates their release.
type MarksService interface {
	AttemptClosedHook
	ComputeDraft(ctx context.Context, attemptID uint) (dto.MarksResponse, error)
	RecordManualScore(ctx context.Context, attemptID uint, payload dto.ManualScoreRequest, actor ActivityActor) (dto.MarksResponse, error)
	Publish(ctx context.Context, attemptID uint, payload dto.PublishMarksRequest, actor ActivityActor) (dto.MarksResponse, error)
	Get(ctx context.Context, attemptID uint) (dto.MarksResponse, error)
	ResultForOwner(ctx context.Context, attemptID, userID uint) (dto.MarksResponse, error)
}

type marksService struct {
	attempts  repository.AttemptRepository
	papers    repository.PaperRepository
	marks     repository.MarksRepository
	scorer    ScoringService
	activity  ActivityRecorder
	notifier  ResultNotifier
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewMarksService constructs the marks publisher. activity and notifier may be nil.
func NewMarksService(attempts repository.AttemptRepository, papers repository.PaperRepository, marks repository.MarksRepository, scorer ScoringService, activity ActivityRecorder, notifier ResultNotifier, validate *validator.Validate, logger zerolog.Logger) MarksService {
	return &marksService{
		attempts:  attempts,
		papers:    papers,
		marks:     marks,
		scorer:    scorer,
		activity:  activity,
		notifier:  notifier,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "marks_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/rankpaper-api/internal/service/marks"),
		now:       time.Now,
	}
}

// OnAttemptClosed computes the objective draft as soon as an attempt becomes terminal.
func (s *marksService) OnAttemptClosed(ctx context.Context, attempt models.Attempt) {
	if _, err := s.ComputeDraft(ctx, attempt.ID); err != nil {
		s.logger.Error().Err(err).Uint("attempt_id", attempt.ID).Msg("failed to compute draft marks")
	}
}

func (s *marksService) ComputeDraft(ctx context.Context, attemptID uint) (dto.MarksResponse, error) {
	ctx, span := s.tracer.Start(ctx, "marks.compute_draft", trace.WithAttributes(
		attribute.Int64("marks.attempt_id", int64(attemptID)),
	))
	defer span.End()

	attempt, paper, err := s.loadAttemptAndPaper(ctx, attemptID)
	if err != nil {
		span.RecordError(err)
		return dto.MarksResponse{}, err
	}
	if !attempt.IsTerminal() {
		span.SetStatus(codes.Error, "attempt_open")
		return dto.MarksResponse{}, ErrAttemptNotClosed
	}

	updates := map[string]interface{}{}
	if paper.HasObjective {
		score, err := s.scorer.Score(ctx, attemptID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scoring_failed")
			return dto.MarksResponse{}, err
		}
		updates["objective_score"] = float64(score.Correct)
		updates["objective_total"] = score.TotalQuestions
	}

	marks, err := s.updateDraft(ctx, attempt, nil, updates)
	if err != nil {
		span.RecordError(err)
		return dto.MarksResponse{}, err
	}

	return dto.NewMarksResponse(marks), nil
}

func (s *marksService) RecordManualScore(ctx context.Context, attemptID uint, payload dto.ManualScoreRequest, actor ActivityActor) (dto.MarksResponse, error) {
	ctx, span := s.tracer.Start(ctx, "marks.manual_score", trace.WithAttributes(
		attribute.Int64("marks.attempt_id", int64(attemptID)),
		attribute.Int64("marks.actor_id", int64(actor.ID)),
		attribute.String("marks.section", payload.Section),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.MarksResponse{}, err
	}
	if payload.Score == nil || *payload.Score < 0 {
		return dto.MarksResponse{}, ErrInvalidScore
	}

	attempt, paper, err := s.loadAttemptAndPaper(ctx, attemptID)
	if err != nil {
		span.RecordError(err)
		return dto.MarksResponse{}, err
	}

	section := models.Section(payload.Section)
	if !paper.SectionEnabled(section) {
		span.SetStatus(codes.Error, "section_not_enabled")
		return dto.MarksResponse{}, ErrSectionNotEnabled
	}

	column := "short_answer_score"
	if section == models.SectionLong {
		column = "long_answer_score"
	}
	updates := map[string]interface{}{column: *payload.Score}
	if remarks := strings.TrimSpace(s.sanitizer.Sanitize(payload.Remarks)); remarks != "" {
		updates["remarks"] = remarks
	}

	marks, err := s.updateDraft(ctx, attempt, payload.Version, updates)
	if err != nil {
		span.RecordError(err)
		return dto.MarksResponse{}, err
	}

	s.record(ctx, actor, ActionManualScoreRecorded, marks, map[string]interface{}{
		"section": payload.Section,
		"score":   *payload.Score,
	})

	return dto.NewMarksResponse(marks), nil
}

func (s *marksService) Publish(ctx context.Context, attemptID uint, payload dto.PublishMarksRequest, actor ActivityActor) (dto.MarksResponse, error) {
	ctx, span := s.tracer.Start(ctx, "marks.publish", trace.WithAttributes(
		attribute.Int64("marks.attempt_id", int64(attemptID)),
		attribute.Int64("marks.actor_id", int64(actor.ID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		return dto.MarksResponse{}, err
	}

	attempt, paper, err := s.loadAttemptAndPaper(ctx, attemptID)
	if err != nil {
		span.RecordError(err)
		return dto.MarksResponse{}, err
	}
	if !attempt.IsTerminal() {
		span.SetStatus(codes.Error, "attempt_open")
		return dto.MarksResponse{}, ErrAttemptNotClosed
	}

	sections := paper.EnabledSections()
	marks, err := s.marks.GetByAttempt(ctx, attemptID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			span.RecordError(err)
			return dto.MarksResponse{}, err
		}
		if len(sections) > 0 {
			span.SetStatus(codes.Error, "missing_section_score")
			return dto.MarksResponse{}, fmt.Errorf("%w: %s", ErrMissingSectionScore, sections[0])
		}
		if marks, err = s.marks.EnsureDraft(ctx, newDraft(attempt)); err != nil {
			span.RecordError(err)
			return dto.MarksResponse{}, err
		}
	}

	if marks.IsPublished() {
		span.SetStatus(codes.Error, "already_published")
		return dto.MarksResponse{}, ErrMarksAlreadyPublished
	}
	if payload.Version != nil && *payload.Version != marks.Version {
		span.SetStatus(codes.Error, "version_conflict")
		return dto.MarksResponse{}, ErrMarksConflict
	}

	total := 0.0
	for _, section := range sections {
		score := marks.SectionScore(section)
		if score == nil {
			span.SetStatus(codes.Error, "missing_section_score")
			return dto.MarksResponse{}, fmt.Errorf("%w: %s", ErrMissingSectionScore, section)
		}
		total += *score
	}

	publishedAt := s.now().UTC()
	published, err := s.marks.Publish(ctx, attemptID, marks.Version, total, publishedAt, actor.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish_failed")
		return dto.MarksResponse{}, err
	}
	if !published {
		current, err := s.marks.GetByAttempt(ctx, attemptID)
		if err == nil && current.IsPublished() {
			return dto.MarksResponse{}, ErrMarksAlreadyPublished
		}
		return dto.MarksResponse{}, ErrMarksConflict
	}

	result, err := s.marks.GetByAttempt(ctx, attemptID)
	if err != nil {
		span.RecordError(err)
		return dto.MarksResponse{}, err
	}

	observability.MarksPublished().Inc()
	span.SetAttributes(attribute.Float64("marks.total_score", total))
	s.logger.Info().
		Uint("attempt_id", attemptID).
		Uint("actor_id", actor.ID).
		Float64("total_score", total).
		Msg("marks published")

	s.record(ctx, actor, ActionMarksPublished, result, map[string]interface{}{
		"total_score": total,
	})

	if s.notifier != nil {
		event := ResultPublishedEvent{
			PaperID:     result.PaperID,
			AttemptID:   result.AttemptID,
			UserID:      result.UserID,
			TotalScore:  total,
			PublishedAt: publishedAt,
		}
		if err := s.notifier.NotifyResultPublished(ctx, event); err != nil {
			s.logger.Warn().Err(err).Uint("attempt_id", attemptID).Msg("failed to notify result publication")
		}
	}

	return dto.NewMarksResponse(result), nil
}

func (s *marksService) Get(ctx context.Context, attemptID uint) (dto.MarksResponse, error) {
	marks, err := s.marks.GetByAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MarksResponse{}, ErrMarksNotFound
		}
		return dto.MarksResponse{}, err
	}
	return dto.NewMarksResponse(marks), nil
}

func (s *marksService) ResultForOwner(ctx context.Context, attemptID, userID uint) (dto.MarksResponse, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MarksResponse{}, ErrAttemptNotFound
		}
		return dto.MarksResponse{}, err
	}
	if attempt.UserID != userID {
		return dto.MarksResponse{}, ErrAttemptForbidden
	}

	marks, err := s.marks.GetByAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MarksResponse{}, ErrResultNotPublished
		}
		return dto.MarksResponse{}, err
	}
	if !marks.IsPublished() {
		return dto.MarksResponse{}, ErrResultNotPublished
	}

	return dto.NewMarksResponse(marks), nil
}

// updateDraft applies updates under the version guard. An unpinned update is retried
// against the latest version; a pinned one fails on the first mismatch.
func (s *marksService) updateDraft(ctx context.Context, attempt models.Attempt, pinned *int, updates map[string]interface{}) (models.Marks, error) {
	for i := 0; i < draftUpdateRetries; i++ {
		marks, err := s.marks.EnsureDraft(ctx, newDraft(attempt))
		if err != nil {
			return models.Marks{}, err
		}
		if marks.IsPublished() {
			return models.Marks{}, ErrMarksAlreadyPublished
		}
		if pinned != nil && *pinned != marks.Version {
			return models.Marks{}, ErrMarksConflict
		}
		if len(updates) == 0 {
			return marks, nil
		}

		values := make(map[string]interface{}, len(updates)+1)
		for key, value := range updates {
			values[key] = value
		}
		values["updated_at"] = s.now().UTC()

		applied, err := s.marks.UpdateDraft(ctx, attempt.ID, marks.Version, values)
		if err != nil {
			return models.Marks{}, err
		}
		if applied {
			return s.marks.GetByAttempt(ctx, attempt.ID)
		}
		if pinned != nil {
			return models.Marks{}, ErrMarksConflict
		}
	}
	return models.Marks{}, ErrMarksConflict
}

func (s *marksService) loadAttemptAndPaper(ctx context.Context, attemptID uint) (models.Attempt, models.Paper, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Attempt{}, models.Paper{}, ErrAttemptNotFound
		}
		return models.Attempt{}, models.Paper{}, err
	}

	paper, err := s.papers.GetByID(ctx, attempt.PaperID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Attempt{}, models.Paper{}, ErrPaperNotFound
		}
		return models.Attempt{}, models.Paper{}, err
	}

	return attempt, paper, nil
}

func (s *marksService) record(ctx context.Context, actor ActivityActor, action string, marks models.Marks, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	paperID := marks.PaperID
	attemptID := marks.AttemptID
	if _, err := s.activity.Record(ctx, ActivityEntry{
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Action:    action,
		PaperID:   &paperID,
		AttemptID: &attemptID,
		Metadata:  metadata,
	}); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("failed to record marks activity")
	}
}

func newDraft(attempt models.Attempt) *models.Marks {
	return &models.Marks{
		AttemptID: attempt.ID,
		PaperID:   attempt.PaperID,
		UserID:    attempt.UserID,
	}
}
