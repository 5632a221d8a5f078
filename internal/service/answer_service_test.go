package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rankpaper-api/internal/dto"
	"github.com/noah-isme/rankpaper-api/internal/models"
)

func TestAnswerServiceLastWriteWins(t *testing.T) {
	e := newEngine(t)
	paper := seedPaper(t, e.db, paperShape{objective: 2})
	ctx := context.Background()

	attempt, err := e.attempts.Start(ctx, 1, paper.ID)
	require.NoError(t, err)
	q := objectiveQuestions(paper)[0]

	e.answer(t, 1, attempt.ID, q, wrongOption(q))
	e.answer(t, 1, attempt.ID, q, correctOption(q))

	answers, err := e.answers.List(ctx, 1, attempt.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	require.Equal(t, correctOption(q), *answers[0].OptionID)
	require.Equal(t, string(models.SectionObjective), answers[0].Section)
}

func TestAnswerServiceRejectsWritesAfterSubmit(t *testing.T) {
	e := newEngine(t)
	paper := seedPaper(t, e.db, paperShape{objective: 2})
	ctx := context.Background()

	attempt, err := e.attempts.Start(ctx, 1, paper.ID)
	require.NoError(t, err)
	q := objectiveQuestions(paper)[0]
	e.answer(t, 1, attempt.ID, q, wrongOption(q))

	_, err = e.attempts.Submit(ctx, attempt.ID, 1)
	require.NoError(t, err)

	option := correctOption(q)
	_, err = e.answers.Upsert(ctx, 1, attempt.ID, q.ID, dto.AnswerUpsertRequest{OptionID: &option})
	require.ErrorIs(t, err, ErrAttemptClosed)

	other := objectiveQuestions(paper)[1]
	otherOption := correctOption(other)
	_, err = e.answers.Upsert(ctx, 1, attempt.ID, other.ID, dto.AnswerUpsertRequest{OptionID: &otherOption})
	require.ErrorIs(t, err, ErrAttemptClosed)

	answers, err := e.answers.List(ctx, 1, attempt.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	require.Equal(t, wrongOption(q), *answers[0].OptionID)
}

func TestAnswerServiceLateWriteClosesAttempt(t *testing.T) {
	e := newEngine(t)
	paper := seedPaper(t, e.db, paperShape{objective: 1})
	ctx := context.Background()

	attempt, err := e.attempts.Start(ctx, 1, paper.ID)
	require.NoError(t, err)
	q := objectiveQuestions(paper)[0]

	e.clock.Set(t0.Add(60*time.Minute + time.Second))
	option := correctOption(q)
	_, err = e.answers.Upsert(ctx, 1, attempt.ID, q.ID, dto.AnswerUpsertRequest{OptionID: &option})
	require.ErrorIs(t, err, ErrAttemptExpired)

	current, err := e.attempts.Get(ctx, attempt.ID)
	require.NoError(t, err)
	require.True(t, current.AutoClosed)
	require.Nil(t, current.SubmittedAt)

	answers, err := e.answers.ListForReview(ctx, attempt.ID)
	require.NoError(t, err)
	require.Empty(t, answers)
}

func TestAnswerServiceValidatesQuestionAndValue(t *testing.T) {
	e := newEngine(t)
	paper := seedPaper(t, e.db, paperShape{objective: 2, long: true})
	other := seedPaper(t, e.db, paperShape{objective: 1})
	ctx := context.Background()

	attempt, err := e.attempts.Start(ctx, 1, paper.ID)
	require.NoError(t, err)
	first := objectiveQuestions(paper)[0]
	second := objectiveQuestions(paper)[1]
	essay := questionInSection(t, paper, models.SectionLong)

	foreignOption := correctOption(second)
	_, err = e.answers.Upsert(ctx, 1, attempt.ID, first.ID, dto.AnswerUpsertRequest{OptionID: &foreignOption})
	require.ErrorIs(t, err, ErrInvalidOption)

	foreignQuestion := objectiveQuestions(other)[0]
	option := correctOption(foreignQuestion)
	_, err = e.answers.Upsert(ctx, 1, attempt.ID, foreignQuestion.ID, dto.AnswerUpsertRequest{OptionID: &option})
	require.ErrorIs(t, err, ErrQuestionNotFound)

	_, err = e.answers.Upsert(ctx, 1, attempt.ID, first.ID, dto.AnswerUpsertRequest{UploadRef: "https://cdn.test/sheet.pdf"})
	require.ErrorIs(t, err, ErrSectionMismatch)

	essayOption := correctOption(first)
	_, err = e.answers.Upsert(ctx, 1, attempt.ID, essay.ID, dto.AnswerUpsertRequest{OptionID: &essayOption})
	require.ErrorIs(t, err, ErrSectionMismatch)

	stored, err := e.answers.Upsert(ctx, 1, attempt.ID, essay.ID, dto.AnswerUpsertRequest{UploadRef: " https://cdn.test/sheet.pdf "})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.test/sheet.pdf", stored.UploadRef)

	_, err = e.answers.Upsert(ctx, 2, attempt.ID, essay.ID, dto.AnswerUpsertRequest{UploadRef: "x"})
	require.ErrorIs(t, err, ErrAttemptForbidden)
}
