package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rankpaper-api/internal/models"
)

func TestAnswerRepositoryUpsertLastWriteWins(t *testing.T) {
	db := setupAttemptTestDB(t)
	attempts := NewAttemptRepository(db)
	repo := NewAnswerRepository(db)
	paper := seedAttemptPaper(t, db)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	attempt := models.Attempt{UserID: 1, PaperID: paper.ID, StartedAt: start, EndsAt: start.Add(time.Hour)}
	_, err := attempts.CreateIfAbsent(ctx, &attempt)
	require.NoError(t, err)

	first, second := uint(11), uint(12)
	require.NoError(t, repo.UpsertIfOpen(ctx, &models.Answer{AttemptID: attempt.ID, QuestionID: 5, Section: models.SectionObjective, OptionID: &first}, start.Add(time.Minute)))
	require.NoError(t, repo.UpsertIfOpen(ctx, &models.Answer{AttemptID: attempt.ID, QuestionID: 5, Section: models.SectionObjective, OptionID: &second}, start.Add(2*time.Minute)))

	answers, err := repo.ListByAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	require.Equal(t, second, *answers[0].OptionID)

	stored, err := attempts.GetByID(ctx, attempt.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastActivityAt)
	require.True(t, stored.LastActivityAt.Equal(start.Add(2*time.Minute)))
}

func TestAnswerRepositoryRejectsWritesAfterClose(t *testing.T) {
	db := setupAttemptTestDB(t)
	attempts := NewAttemptRepository(db)
	repo := NewAnswerRepository(db)
	paper := seedAttemptPaper(t, db)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	attempt := models.Attempt{UserID: 1, PaperID: paper.ID, StartedAt: start, EndsAt: start.Add(time.Hour)}
	_, err := attempts.CreateIfAbsent(ctx, &attempt)
	require.NoError(t, err)

	option := uint(4)
	require.NoError(t, repo.UpsertIfOpen(ctx, &models.Answer{AttemptID: attempt.ID, QuestionID: 1, Section: models.SectionObjective, OptionID: &option}, start.Add(time.Minute)))

	_, err = attempts.CloseIfOpen(ctx, attempt.ID, models.CloseReasonExpiry, start.Add(61*time.Minute))
	require.NoError(t, err)

	other := uint(9)
	err = repo.UpsertIfOpen(ctx, &models.Answer{AttemptID: attempt.ID, QuestionID: 1, Section: models.SectionObjective, OptionID: &other}, start.Add(62*time.Minute))
	require.ErrorIs(t, err, ErrAttemptNotOpen)

	answers, err := repo.ListByAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	require.Equal(t, option, *answers[0].OptionID)
}

func TestAnswerRepositoryRejectsWritesPastDeadline(t *testing.T) {
	db := setupAttemptTestDB(t)
	attempts := NewAttemptRepository(db)
	repo := NewAnswerRepository(db)
	paper := seedAttemptPaper(t, db)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	attempt := models.Attempt{UserID: 1, PaperID: paper.ID, StartedAt: start, EndsAt: start.Add(time.Hour)}
	_, err := attempts.CreateIfAbsent(ctx, &attempt)
	require.NoError(t, err)

	option := uint(4)
	require.NoError(t, repo.UpsertIfOpen(ctx, &models.Answer{AttemptID: attempt.ID, QuestionID: 1, Section: models.SectionObjective, OptionID: &option}, attempt.EndsAt))

	late := uint(9)
	err = repo.UpsertIfOpen(ctx, &models.Answer{AttemptID: attempt.ID, QuestionID: 1, Section: models.SectionObjective, OptionID: &late}, attempt.EndsAt.Add(time.Second))
	require.ErrorIs(t, err, ErrAttemptNotOpen)

	answers, err := repo.ListByAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	require.Equal(t, option, *answers[0].OptionID)

	stored, err := attempts.GetByID(ctx, attempt.ID)
	require.NoError(t, err)
	require.False(t, stored.IsTerminal())
}
