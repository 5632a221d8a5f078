package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/rankpaper-api/internal/dto"
	"github.com/noah-isme/rankpaper-api/internal/models"
	"github.com/noah-isme/rankpaper-api/internal/repository"
)

// AnswerKey maps each objective question to its single correct option.
type AnswerKey map[uint]uint

// ObjectiveScore is the auto-graded result of an attempt.
type ObjectiveScore struct {
	Correct        int
	TotalQuestions int
	Answered       int
}

// BuildAnswerKey derives the key from the paper's objective questions.
// Every objective question must have exactly one correct option.
func BuildAnswerKey(paper models.Paper) (AnswerKey, error) {
	key := make(AnswerKey)
	var invalid []uint

	for _, question := range paper.Questions {
		if question.Section != models.SectionObjective {
			continue
		}

		correct := 0
		var optionID uint
		for _, option := range question.Options {
			if option.IsCorrect {
				correct++
				optionID = option.ID
			}
		}
		if correct != 1 {
			invalid = append(invalid, question.ID)
			continue
		}
		key[question.ID] = optionID
	}

	if len(invalid) > 0 {
		return nil, &AnswerKeyIntegrityError{PaperID: paper.ID, QuestionIDs: invalid}
	}
	return key, nil
}

// ScoreObjective counts correct objective answers. Unanswered questions count as incorrect.
func ScoreObjective(key AnswerKey, answers []models.Answer) ObjectiveScore {
	score := ObjectiveScore{TotalQuestions: len(key)}
	for _, answer := range answers {
		correctOption, ok := key[answer.QuestionID]
		if !ok || answer.OptionID == nil {
			continue
		}
		score.Answered++
		if *answer.OptionID == correctOption {
			score.Correct++
		}
	}
	return score
}

// ScoringService computes objective scores from persisted answers.
type ScoringService interface {
	Score(ctx context.Context, attemptID uint) (ObjectiveScore, error)
	Preview(ctx context.Context, attemptID uint) (dto.ObjectiveScoreResponse, error)
}

type scoringService struct {
	attempts repository.AttemptRepository
	answers  repository.AnswerRepository
	papers   repository.PaperRepository
	tracer   trace.Tracer
}

// NewScoringService constructs the scorer.
func NewScoringService(attempts repository.AttemptRepository, answers repository.AnswerRepository, papers repository.PaperRepository) ScoringService {
	return &scoringService{
		attempts: attempts,
		answers:  answers,
		papers:   papers,
		tracer:   otel.Tracer("github.com/noah-isme/rankpaper-api/internal/service/scoring"),
	}
}

func (s *scoringService) Score(ctx context.Context, attemptID uint) (ObjectiveScore, error) {
	ctx, span := s.tracer.Start(ctx, "scoring.objective", trace.WithAttributes(
		attribute.Int64("scoring.attempt_id", int64(attemptID)),
	))
	defer span.End()

	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ObjectiveScore{}, ErrAttemptNotFound
		}
		return ObjectiveScore{}, err
	}

	paper, err := s.papers.GetWithQuestions(ctx, attempt.PaperID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ObjectiveScore{}, ErrPaperNotFound
		}
		return ObjectiveScore{}, err
	}

	key, err := BuildAnswerKey(paper)
	if err != nil {
		span.RecordError(err)
		return ObjectiveScore{}, err
	}

	answers, err := s.answers.ListByAttempt(ctx, attemptID)
	if err != nil {
		span.RecordError(err)
		return ObjectiveScore{}, err
	}

	score := ScoreObjective(key, answers)
	span.SetAttributes(
		attribute.Int("scoring.correct", score.Correct),
		attribute.Int("scoring.total", score.TotalQuestions),
	)
	return score, nil
}

func (s *scoringService) Preview(ctx context.Context, attemptID uint) (dto.ObjectiveScoreResponse, error) {
	score, err := s.Score(ctx, attemptID)
	if err != nil {
		return dto.ObjectiveScoreResponse{}, err
	}
	return dto.ObjectiveScoreResponse{
		AttemptID:      attemptID,
		Correct:        score.Correct,
		TotalQuestions: score.TotalQuestions,
		Answered:       score.Answered,
	}, nil
}
