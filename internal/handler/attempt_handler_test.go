package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rankpaper-api/internal/dto"
	"github.com/noah-isme/rankpaper-api/internal/models"
)

func startAttempt(t *testing.T, a *testApp, who identity, paperID uint) dto.AttemptResponse {
	t.Helper()
	status, env := a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/papers/%d/attempts", paperID), who, nil)
	require.Equal(t, fiber.StatusOK, status, env.Message)
	var attempt dto.AttemptResponse
	decodeData(t, env, &attempt)
	return attempt
}

func answerPath(attemptID, questionID uint) string {
	return fmt.Sprintf("/api/v1/attempts/%d/answers/%d", attemptID, questionID)
}

func TestAttemptLifecycleOverHTTP(t *testing.T) {
	a := newTestApp(t)
	paper := a.seedPaper(t, 2, false, false)

	attempt := startAttempt(t, a, student, paper.ID)
	require.Equal(t, models.AttemptStatusInProgress, attempt.Status)
	require.Equal(t, int64(3600), attempt.RemainingSeconds)

	again := startAttempt(t, a, student, paper.ID)
	require.Equal(t, attempt.ID, again.ID)

	q := paper.Questions[0]
	status, env := a.do(t, http.MethodPut, answerPath(attempt.ID, q.ID), student, fiber.Map{"option_id": q.Options[0].ID})
	require.Equal(t, fiber.StatusOK, status, env.Message)

	status, _ = a.do(t, http.MethodPut, answerPath(attempt.ID, q.ID), rival, fiber.Map{"option_id": q.Options[0].ID})
	require.Equal(t, fiber.StatusForbidden, status)

	status, _ = a.do(t, http.MethodPut, answerPath(attempt.ID, q.ID), student, fiber.Map{"option_id": paper.Questions[1].Options[0].ID})
	require.Equal(t, fiber.StatusBadRequest, status)

	status, env = a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/attempts/%d/submit", attempt.ID), student, nil)
	require.Equal(t, fiber.StatusOK, status, env.Message)
	var submitted dto.AttemptResponse
	decodeData(t, env, &submitted)
	require.Equal(t, models.AttemptStatusSubmitted, submitted.Status)

	status, env = a.do(t, http.MethodPut, answerPath(attempt.ID, paper.Questions[1].ID), student, fiber.Map{"option_id": paper.Questions[1].Options[0].ID})
	require.Equal(t, fiber.StatusConflict, status)
	require.False(t, env.Success)

	status, env = a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/attempts/%d/answers", attempt.ID), student, nil)
	require.Equal(t, fiber.StatusOK, status)
	var answers []dto.AnswerResponse
	decodeData(t, env, &answers)
	require.Len(t, answers, 1)

	status, _ = a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/attempts/%d/result", attempt.ID), student, nil)
	require.Equal(t, fiber.StatusNotFound, status)
}

func TestStartAttemptReportsEligibilityReason(t *testing.T) {
	a := newTestApp(t)
	paper := a.seedPaper(t, 1, false, true)

	status, env := a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/papers/%d/attempts", paper.ID), student, nil)
	require.Equal(t, fiber.StatusForbidden, status)

	var details map[string]string
	require.NoError(t, json.Unmarshal(env.Details, &details))
	require.Equal(t, "payment_required", details["reason"])

	status, _ = a.do(t, http.MethodPost, "/api/v1/papers/999/attempts", student, nil)
	require.Equal(t, fiber.StatusNotFound, status)

	status, _ = a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/papers/%d/attempts", paper.ID), identity{}, nil)
	require.Equal(t, fiber.StatusUnauthorized, status)
}

func TestViolationsAreAcceptedWithoutFailing(t *testing.T) {
	a := newTestApp(t)
	paper := a.seedPaper(t, 1, false, false)
	attempt := startAttempt(t, a, student, paper.ID)
	path := fmt.Sprintf("/api/v1/attempts/%d/violations", attempt.ID)

	status, _ := a.do(t, http.MethodPost, path, student, fiber.Map{"kind": "tab_switch"})
	require.Equal(t, fiber.StatusAccepted, status)
	status, _ = a.do(t, http.MethodPost, path, student, fiber.Map{"kind": "window_close"})
	require.Equal(t, fiber.StatusAccepted, status)
	status, _ = a.do(t, http.MethodPost, "/api/v1/attempts/999/violations", student, fiber.Map{"kind": "tab_switch"})
	require.Equal(t, fiber.StatusAccepted, status)

	status, _ = a.do(t, http.MethodPost, path, student, fiber.Map{"kind": "devtools"})
	require.Equal(t, fiber.StatusBadRequest, status)

	status, env := a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/attempts/%d", attempt.ID), student, nil)
	require.Equal(t, fiber.StatusOK, status)
	var current dto.AttemptResponse
	decodeData(t, env, &current)
	require.Equal(t, 1, current.TabSwitchCount)
	require.Equal(t, 1, current.WindowCloseCount)
}

func TestViolationsFromAnotherUserAreIgnored(t *testing.T) {
	a := newTestApp(t)
	paper := a.seedPaper(t, 1, false, false)
	attempt := startAttempt(t, a, student, paper.ID)
	path := fmt.Sprintf("/api/v1/attempts/%d/violations", attempt.ID)

	for i := 0; i < 5; i++ {
		status, _ := a.do(t, http.MethodPost, path, rival, fiber.Map{"kind": "tab_switch"})
		require.Equal(t, fiber.StatusAccepted, status)
	}

	status, _ := a.do(t, http.MethodPost, path, identity{}, fiber.Map{"kind": "tab_switch"})
	require.Equal(t, fiber.StatusUnauthorized, status)

	status, env := a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/attempts/%d", attempt.ID), student, nil)
	require.Equal(t, fiber.StatusOK, status)
	var current dto.AttemptResponse
	decodeData(t, env, &current)
	require.Zero(t, current.TabSwitchCount)
	require.Zero(t, current.WindowCloseCount)
}

func TestAttemptStreamRequiresUpgrade(t *testing.T) {
	a := newTestApp(t)
	paper := a.seedPaper(t, 1, false, false)
	attempt := startAttempt(t, a, student, paper.ID)

	status, _ := a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/attempts/%d/stream", attempt.ID), student, nil)
	require.Equal(t, fiber.StatusUpgradeRequired, status)
}
