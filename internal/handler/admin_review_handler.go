package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/rankpaper-api/internal/dto"
	"github.com/noah-isme/rankpaper-api/internal/service"
	"github.com/noah-isme/rankpaper-api/internal/utils"
)

// AdminReviewHandler exposes reviewer operations on closed attempts.
type AdminReviewHandler struct {
	attempts service.AttemptService
	answers  service.AnswerService
	scorer   service.ScoringService
	marks    service.MarksService
	sweeper  service.ExpirySweeper
	activity service.ActivityRecorder
	logger   zerolog.Logger
}

// AdminReviewDeps groups the services used by reviewers. Sweeper and Activity may be nil.
type AdminReviewDeps struct {
	Attempts service.AttemptService
	Answers  service.AnswerService
	Scorer   service.ScoringService
	Marks    service.MarksService
	Sweeper  service.ExpirySweeper
	Activity service.ActivityRecorder
}

// NewAdminReviewHandler constructs the handler.
func NewAdminReviewHandler(deps AdminReviewDeps, logger zerolog.Logger) *AdminReviewHandler {
	return &AdminReviewHandler{
		attempts: deps.Attempts,
		answers:  deps.Answers,
		scorer:   deps.Scorer,
		marks:    deps.Marks,
		sweeper:  deps.Sweeper,
		activity: deps.Activity,
		logger:   logger.With().Str("component", "admin_review_handler").Logger(),
	}
}

// Register binds reviewer routes under the admin group.
func (h *AdminReviewHandler) Register(router fiber.Router) {
	router.Get("/attempts/:id", h.review)
	router.Get("/attempts/:id/score-preview", h.preview)
	router.Post("/attempts/:id/marks/draft", h.computeDraft)
	router.Put("/attempts/:id/marks/manual", h.recordManualScore)
	router.Post("/attempts/:id/marks/publish", h.publish)
	router.Post("/sweep", h.sweep)
}

func (h *AdminReviewHandler) review(c *fiber.Ctx) error {
	attemptID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid attempt id")
	}
	ctx := withRequestContext(c)

	attempt, err := h.attempts.Get(ctx, attemptID)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	answers, err := h.answers.ListForReview(ctx, attemptID)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	response := dto.AttemptReviewResponse{Attempt: attempt, Answers: answers}
	marks, err := h.marks.Get(ctx, attemptID)
	switch {
	case err == nil:
		response.Marks = &marks
	case !errors.Is(err, service.ErrMarksNotFound):
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "attempt review", response)
}

func (h *AdminReviewHandler) preview(c *fiber.Ctx) error {
	attemptID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid attempt id")
	}

	score, err := h.scorer.Preview(withRequestContext(c), attemptID)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "objective score preview", score)
}

func (h *AdminReviewHandler) computeDraft(c *fiber.Ctx) error {
	attemptID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid attempt id")
	}

	marks, err := h.marks.ComputeDraft(withRequestContext(c), attemptID)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "draft marks computed", marks)
}

func (h *AdminReviewHandler) recordManualScore(c *fiber.Ctx) error {
	attemptID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid attempt id")
	}

	var payload dto.ManualScoreRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	marks, err := h.marks.RecordManualScore(withRequestContext(c), attemptID, payload, activityActorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "manual score recorded", marks)
}

func (h *AdminReviewHandler) publish(c *fiber.Ctx) error {
	attemptID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid attempt id")
	}

	var payload dto.PublishMarksRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	marks, err := h.marks.Publish(withRequestContext(c), attemptID, payload, activityActorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "marks published", marks)
}

func (h *AdminReviewHandler) sweep(c *fiber.Ctx) error {
	if h.sweeper == nil {
		return utils.SendError(c, fiber.StatusServiceUnavailable, "expiry sweeper disabled")
	}
	ctx := withRequestContext(c)

	result, err := h.sweeper.SweepOnce(ctx)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	if h.activity != nil {
		actor := activityActorFromContext(c)
		if _, err := h.activity.Record(ctx, service.ActivityEntry{
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Action:    service.ActionSweepTriggered,
			Metadata: map[string]interface{}{
				"scanned": result.Scanned,
				"closed":  result.Closed,
			},
		}); err != nil {
			requestLogger(h.logger, c).Warn().Err(err).Msg("failed to record sweep activity")
		}
	}

	return utils.SendSuccess(c, "sweep completed", result)
}
