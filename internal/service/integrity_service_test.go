package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rankpaper-api/internal/models"
)

func TestRecordViolationCountsPerKind(t *testing.T) {
	e := newEngine(t)
	paper := seedPaper(t, e.db, paperShape{objective: 1})
	ctx := context.Background()

	attempt, err := e.attempts.Start(ctx, 1, paper.ID)
	require.NoError(t, err)

	e.integrity.RecordViolation(ctx, attempt.ID, 1, models.ViolationTabSwitch)
	e.integrity.RecordViolation(ctx, attempt.ID, 1, models.ViolationTabSwitch)
	e.integrity.RecordViolation(ctx, attempt.ID, 1, models.ViolationWindowClose)

	_, err = e.attempts.Submit(ctx, attempt.ID, 1)
	require.NoError(t, err)
	e.integrity.RecordViolation(ctx, attempt.ID, 1, models.ViolationTabSwitch)

	stored, err := e.attempts.Get(ctx, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, 3, stored.TabSwitchCount)
	require.Equal(t, 1, stored.WindowCloseCount)
}

func TestRecordViolationNeverFails(t *testing.T) {
	e := newEngine(t)
	paper := seedPaper(t, e.db, paperShape{objective: 1})
	ctx := context.Background()

	attempt, err := e.attempts.Start(ctx, 1, paper.ID)
	require.NoError(t, err)

	require.NotPanics(t, func() {
		e.integrity.RecordViolation(ctx, 999, 1, models.ViolationTabSwitch)
		e.integrity.RecordViolation(ctx, attempt.ID, 1, models.ViolationKind("devtools"))
		e.integrity.RecordViolation(ctx, attempt.ID, 2, models.ViolationTabSwitch)
	})

	stored, err := e.attempts.Get(ctx, attempt.ID)
	require.NoError(t, err)
	require.Zero(t, stored.TabSwitchCount)
	require.Zero(t, stored.WindowCloseCount)
}
