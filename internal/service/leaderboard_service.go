package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/rankpaper-api/internal/dto"
	"github.com/noah-isme/rankpaper-api/internal/models"
	"github.com/noah-isme/rankpaper-api/internal/observability"
	"github.com/noah-isme/rankpaper-api/internal/repository"
)

// LeaderboardService ranks published results of a paper. Rankings are computed
// on every call from the published marks.
type LeaderboardService interface {
	Rank(ctx context.Context, paperID uint) (dto.LeaderboardResponse, error)
}

type leaderboardService struct {
	papers repository.PaperRepository
	marks  repository.MarksRepository
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewLeaderboardService constructs the leaderboard ranker.
func NewLeaderboardService(papers repository.PaperRepository, marks repository.MarksRepository, logger zerolog.Logger) LeaderboardService {
	return &leaderboardService{
		papers: papers,
		marks:  marks,
		logger: logger.With().Str("component", "leaderboard_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/rankpaper-api/internal/service/leaderboard"),
		now:    time.Now,
	}
}

func (s *leaderboardService) Rank(ctx context.Context, paperID uint) (dto.LeaderboardResponse, error) {
	ctx, span := s.tracer.Start(ctx, "leaderboard.rank", trace.WithAttributes(
		attribute.Int64("leaderboard.paper_id", int64(paperID)),
	))
	defer span.End()

	if _, err := s.papers.GetByID(ctx, paperID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.LeaderboardResponse{}, ErrPaperNotFound
		}
		span.RecordError(err)
		return dto.LeaderboardResponse{}, err
	}

	published, err := s.marks.ListPublishedByPaper(ctx, paperID)
	if err != nil {
		observability.LeaderboardRequests().WithLabelValues("error").Inc()
		span.RecordError(err)
		return dto.LeaderboardResponse{}, err
	}

	entries := RankEntries(published)
	span.SetAttributes(attribute.Int("leaderboard.entries", len(entries)))
	observability.LeaderboardRequests().WithLabelValues("ok").Inc()

	return dto.LeaderboardResponse{
		PaperID:     paperID,
		Entries:     entries,
		GeneratedAt: s.now().UTC(),
	}, nil
}

// RankEntries orders published marks by total score descending, then by earlier finish,
// then by attempt id. Unpublished marks are ignored. Ranks are 1..n without gaps.
func RankEntries(marks []models.Marks) []dto.LeaderboardEntry {
	entries := make([]dto.LeaderboardEntry, 0, len(marks))
	for _, m := range marks {
		if !m.IsPublished() {
			continue
		}
		total := 0.0
		if m.TotalScore != nil {
			total = *m.TotalScore
		}
		entries = append(entries, dto.LeaderboardEntry{
			AttemptID:  m.AttemptID,
			UserID:     m.UserID,
			TotalScore: total,
			FinishedAt: m.Attempt.FinishedAt(),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		switch {
		case a.FinishedAt != nil && b.FinishedAt != nil && !a.FinishedAt.Equal(*b.FinishedAt):
			return a.FinishedAt.Before(*b.FinishedAt)
		case a.FinishedAt != nil && b.FinishedAt == nil:
			return true
		case a.FinishedAt == nil && b.FinishedAt != nil:
			return false
		}
		return a.AttemptID < b.AttemptID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
