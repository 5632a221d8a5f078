package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rankpaper-api/internal/dto"
	"github.com/noah-isme/rankpaper-api/internal/models"
)

var reviewer = ActivityActor{ID: 90, Role: "teacher"}

func TestMarksDraftComputedWhenAttemptCloses(t *testing.T) {
	e := newEngine(t)
	paper := seedPaper(t, e.db, paperShape{objective: 5})
	ctx := context.Background()

	attempt, err := e.attempts.Start(ctx, 1, paper.ID)
	require.NoError(t, err)
	for i, q := range objectiveQuestions(paper) {
		if i < 3 {
			e.answer(t, 1, attempt.ID, q, correctOption(q))
		}
	}

	_, err = e.marks.Get(ctx, attempt.ID)
	require.ErrorIs(t, err, ErrMarksNotFound)

	_, err = e.attempts.Submit(ctx, attempt.ID, 1)
	require.NoError(t, err)

	marks, err := e.marks.Get(ctx, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, dto.MarksStatusDraft, marks.Status)
	require.Equal(t, 3.0, *marks.ObjectiveScore)
	require.Equal(t, 5, marks.ObjectiveTotal)
	require.Nil(t, marks.TotalScore)
}

func TestMarksComputeDraftRequiresClosedAttempt(t *testing.T) {
	e := newEngine(t)
	paper := seedPaper(t, e.db, paperShape{objective: 1})
	ctx := context.Background()

	attempt, err := e.attempts.Start(ctx, 1, paper.ID)
	require.NoError(t, err)

	_, err = e.marks.ComputeDraft(ctx, attempt.ID)
	require.ErrorIs(t, err, ErrAttemptNotClosed)
}

func TestMarksPublishRequiresEveryEnabledSection(t *testing.T) {
	e := newEngine(t)
	paper := seedPaper(t, e.db, paperShape{objective: 2, short: true, long: true})
	ctx := context.Background()

	attempt, err := e.attempts.Start(ctx, 1, paper.ID)
	require.NoError(t, err)
	_, err = e.attempts.Submit(ctx, attempt.ID, 1)
	require.NoError(t, err)

	_, err = e.marks.RecordManualScore(ctx, attempt.ID, dto.ManualScoreRequest{Section: "short", Score: floatPtr(7)}, reviewer)
	require.NoError(t, err)

	before, err := e.marks.Get(ctx, attempt.ID)
	require.NoError(t, err)

	_, err = e.marks.Publish(ctx, attempt.ID, dto.PublishMarksRequest{}, reviewer)
	require.ErrorIs(t, err, ErrMissingSectionScore)
	require.Contains(t, err.Error(), "long")

	after, err := e.marks.Get(ctx, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, before, after, "failed publish must not write")
	require.Equal(t, 0, e.notifier.count())

	_, err = e.marks.ResultForOwner(ctx, attempt.ID, 1)
	require.ErrorIs(t, err, ErrResultNotPublished)
}

func TestMarksPublishSumsSectionsAndNotifiesOnce(t *testing.T) {
	e := newEngine(t)
	paper := seedPaper(t, e.db, paperShape{objective: 3, long: true})
	ctx := context.Background()

	attempt, err := e.attempts.Start(ctx, 4, paper.ID)
	require.NoError(t, err)
	for _, q := range objectiveQuestions(paper) {
		e.answer(t, 4, attempt.ID, q, correctOption(q))
	}
	_, err = e.attempts.Submit(ctx, attempt.ID, 4)
	require.NoError(t, err)

	draft, err := e.marks.RecordManualScore(ctx, attempt.ID, dto.ManualScoreRequest{
		Section: "long",
		Score:   floatPtr(12.5),
		Remarks: "<b>Good</b> structure",
	}, reviewer)
	require.NoError(t, err)
	require.Equal(t, "Good structure", draft.Remarks)

	e.clock.Set(t0.Add(3 * time.Hour))
	published, err := e.marks.Publish(ctx, attempt.ID, dto.PublishMarksRequest{Version: &draft.Version}, reviewer)
	require.NoError(t, err)
	require.Equal(t, dto.MarksStatusPublished, published.Status)
	require.Equal(t, 15.5, *published.TotalScore)
	require.True(t, published.PublishedAt.Equal(t0.Add(3*time.Hour)))
	require.Equal(t, reviewer.ID, *published.PublishedBy)

	require.Equal(t, 1, e.notifier.count())
	event := e.notifier.events[0]
	require.Equal(t, ResultPublishedEvent{
		PaperID:     paper.ID,
		AttemptID:   attempt.ID,
		UserID:      4,
		TotalScore:  15.5,
		PublishedAt: t0.Add(3 * time.Hour),
	}, event)

	_, err = e.marks.Publish(ctx, attempt.ID, dto.PublishMarksRequest{}, reviewer)
	require.ErrorIs(t, err, ErrMarksAlreadyPublished)
	require.Equal(t, 1, e.notifier.count())

	_, err = e.marks.RecordManualScore(ctx, attempt.ID, dto.ManualScoreRequest{Section: "long", Score: floatPtr(1)}, reviewer)
	require.ErrorIs(t, err, ErrMarksAlreadyPublished)

	result, err := e.marks.ResultForOwner(ctx, attempt.ID, 4)
	require.NoError(t, err)
	require.Equal(t, 15.5, *result.TotalScore)

	_, err = e.marks.ResultForOwner(ctx, attempt.ID, 5)
	require.ErrorIs(t, err, ErrAttemptForbidden)

	require.Equal(t, []string{ActionManualScoreRecorded, ActionMarksPublished}, e.activity.actions())
}

func TestMarksPublishRequiresClosedAttempt(t *testing.T) {
	e := newEngine(t)
	paper := seedPaper(t, e.db, paperShape{objective: 1, short: true})
	ctx := context.Background()

	attempt, err := e.attempts.Start(ctx, 1, paper.ID)
	require.NoError(t, err)

	_, err = e.marks.RecordManualScore(ctx, attempt.ID, dto.ManualScoreRequest{Section: "short", Score: floatPtr(2)}, reviewer)
	require.NoError(t, err, "manual scores may be entered before the attempt closes")

	_, err = e.marks.Publish(ctx, attempt.ID, dto.PublishMarksRequest{}, reviewer)
	require.ErrorIs(t, err, ErrAttemptNotClosed)
}

func TestMarksRecordManualScoreValidation(t *testing.T) {
	e := newEngine(t)
	paper := seedPaper(t, e.db, paperShape{objective: 1, short: true})
	ctx := context.Background()

	attempt, err := e.attempts.Start(ctx, 1, paper.ID)
	require.NoError(t, err)

	_, err = e.marks.RecordManualScore(ctx, attempt.ID, dto.ManualScoreRequest{Section: "long", Score: floatPtr(3)}, reviewer)
	require.ErrorIs(t, err, ErrSectionNotEnabled)

	_, err = e.marks.RecordManualScore(ctx, attempt.ID, dto.ManualScoreRequest{Section: "short", Score: floatPtr(-1)}, reviewer)
	require.Error(t, err)

	_, err = e.marks.RecordManualScore(ctx, attempt.ID, dto.ManualScoreRequest{Section: "objective", Score: floatPtr(1)}, reviewer)
	require.Error(t, err)

	_, err = e.marks.RecordManualScore(ctx, 999, dto.ManualScoreRequest{Section: "short", Score: floatPtr(1)}, reviewer)
	require.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestMarksPinnedVersionConflict(t *testing.T) {
	e := newEngine(t)
	paper := seedPaper(t, e.db, paperShape{objective: 1, short: true})
	ctx := context.Background()

	attempt, err := e.attempts.Start(ctx, 1, paper.ID)
	require.NoError(t, err)
	_, err = e.attempts.Submit(ctx, attempt.ID, 1)
	require.NoError(t, err)

	current, err := e.marks.Get(ctx, attempt.ID)
	require.NoError(t, err)
	stale := current.Version

	_, err = e.marks.RecordManualScore(ctx, attempt.ID, dto.ManualScoreRequest{Section: "short", Score: floatPtr(4), Version: &stale}, reviewer)
	require.NoError(t, err)

	_, err = e.marks.RecordManualScore(ctx, attempt.ID, dto.ManualScoreRequest{Section: "short", Score: floatPtr(5), Version: &stale}, reviewer)
	require.ErrorIs(t, err, ErrMarksConflict)

	_, err = e.marks.Publish(ctx, attempt.ID, dto.PublishMarksRequest{Version: &stale}, reviewer)
	require.ErrorIs(t, err, ErrMarksConflict)

	stored, err := e.marks.Get(ctx, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, 4.0, *stored.ShortAnswerScore)
}

func TestMarksAutoClosedAttemptPublishesObjectiveOnly(t *testing.T) {
	e := newEngine(t)
	paper := seedPaper(t, e.db, paperShape{objective: 2})
	ctx := context.Background()

	attempt, err := e.attempts.Start(ctx, 1, paper.ID)
	require.NoError(t, err)
	q := objectiveQuestions(paper)[0]
	e.answer(t, 1, attempt.ID, q, correctOption(q))

	e.clock.Set(t0.Add(61 * time.Minute))
	_, err = e.attempts.Close(ctx, attempt.ID, models.CloseReasonExpiry)
	require.NoError(t, err)

	published, err := e.marks.Publish(ctx, attempt.ID, dto.PublishMarksRequest{}, reviewer)
	require.NoError(t, err)
	require.Equal(t, 1.0, *published.TotalScore)
}
