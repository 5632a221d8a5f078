package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/rankpaper-api/internal/dto"
	"github.com/noah-isme/rankpaper-api/internal/models"
	"github.com/noah-isme/rankpaper-api/internal/service"
	"github.com/noah-isme/rankpaper-api/internal/utils"
)

// AttemptHandler exposes the candidate side of an attempt.
type AttemptHandler struct {
	attempts  service.AttemptService
	answers   service.AnswerService
	sheets    service.AnswerSheetService
	integrity service.IntegrityService
	marks     service.MarksService
	validator *validator.Validate
	logger    zerolog.Logger
}

// AttemptHandlerDeps groups the services behind the attempt endpoints. Sheets may be nil.
type AttemptHandlerDeps struct {
	Attempts  service.AttemptService
	Answers   service.AnswerService
	Sheets    service.AnswerSheetService
	Integrity service.IntegrityService
	Marks     service.MarksService
}

// NewAttemptHandler constructs the handler.
func NewAttemptHandler(deps AttemptHandlerDeps, validate *validator.Validate, logger zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attempts:  deps.Attempts,
		answers:   deps.Answers,
		sheets:    deps.Sheets,
		integrity: deps.Integrity,
		marks:     deps.Marks,
		validator: validate,
		logger:    logger.With().Str("component", "attempt_handler").Logger(),
	}
}

// RegisterPaperRoutes binds the paper scoped start endpoint.
func (h *AttemptHandler) RegisterPaperRoutes(router fiber.Router) {
	router.Post("/:paperId/attempts", h.start)
}

// Register binds attempt routes. writeLimiter guards the high frequency write endpoints.
func (h *AttemptHandler) Register(router fiber.Router, writeLimiter fiber.Handler) {
	if writeLimiter == nil {
		writeLimiter = func(c *fiber.Ctx) error { return c.Next() }
	}

	router.Get("/:id", h.get)
	router.Post("/:id/submit", h.submit)
	router.Get("/:id/answers", h.listAnswers)
	router.Put("/:id/answers/:questionId", writeLimiter, h.upsertAnswer)
	router.Post("/:id/answers/:questionId/sheet", writeLimiter, h.uploadSheet)
	router.Post("/:id/violations", writeLimiter, h.recordViolation)
	router.Get("/:id/result", h.result)
}

func (h *AttemptHandler) start(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}
	paperID, err := parseUintParam(c, "paperId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid paper id")
	}

	attempt, err := h.attempts.Start(withRequestContext(c), userID, paperID)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "attempt started", attempt)
}

func (h *AttemptHandler) get(c *fiber.Ctx) error {
	userID, attemptID, ferr := h.ownerAndAttempt(c)
	if ferr != nil {
		return utils.SendError(c, ferr.Code, ferr.Message)
	}

	attempt, err := h.attempts.GetForOwner(withRequestContext(c), attemptID, userID)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "attempt retrieved", attempt)
}

func (h *AttemptHandler) submit(c *fiber.Ctx) error {
	userID, attemptID, ferr := h.ownerAndAttempt(c)
	if ferr != nil {
		return utils.SendError(c, ferr.Code, ferr.Message)
	}

	attempt, err := h.attempts.Submit(withRequestContext(c), attemptID, userID)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "attempt submitted", attempt)
}

func (h *AttemptHandler) listAnswers(c *fiber.Ctx) error {
	userID, attemptID, ferr := h.ownerAndAttempt(c)
	if ferr != nil {
		return utils.SendError(c, ferr.Code, ferr.Message)
	}

	answers, err := h.answers.List(withRequestContext(c), userID, attemptID)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "answers retrieved", answers)
}

func (h *AttemptHandler) upsertAnswer(c *fiber.Ctx) error {
	userID, attemptID, ferr := h.ownerAndAttempt(c)
	if ferr != nil {
		return utils.SendError(c, ferr.Code, ferr.Message)
	}
	questionID, err := parseUintParam(c, "questionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid question id")
	}

	var payload dto.AnswerUpsertRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	answer, err := h.answers.Upsert(withRequestContext(c), userID, attemptID, questionID, payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "answer saved", answer)
}

func (h *AttemptHandler) uploadSheet(c *fiber.Ctx) error {
	if h.sheets == nil {
		return utils.SendError(c, fiber.StatusServiceUnavailable, "answer sheet uploads are disabled")
	}

	userID, attemptID, ferr := h.ownerAndAttempt(c)
	if ferr != nil {
		return utils.SendError(c, ferr.Code, ferr.Message)
	}
	questionID, err := parseUintParam(c, "questionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid question id")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	answer, err := h.sheets.Upload(withRequestContext(c), userID, attemptID, questionID, file)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "answer sheet uploaded", answer)
}

func (h *AttemptHandler) recordViolation(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	attemptID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid attempt id")
	}

	var payload dto.ViolationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return handleError(c, h.logger, err)
	}

	h.integrity.RecordViolation(withRequestContext(c), attemptID, userID, models.ViolationKind(payload.Kind))

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "violation recorded", nil)
}

func (h *AttemptHandler) result(c *fiber.Ctx) error {
	userID, attemptID, ferr := h.ownerAndAttempt(c)
	if ferr != nil {
		return utils.SendError(c, ferr.Code, ferr.Message)
	}

	marks, err := h.marks.ResultForOwner(withRequestContext(c), attemptID, userID)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "result retrieved", marks)
}

func (h *AttemptHandler) ownerAndAttempt(c *fiber.Ctx) (uint, uint, *fiber.Error) {
	userID := userIDFromContext(c)
	if userID == 0 {
		return 0, 0, fiber.NewError(fiber.StatusUnauthorized, "user not authenticated")
	}
	attemptID, err := parseUintParam(c, "id")
	if err != nil {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "invalid attempt id")
	}
	return userID, attemptID, nil
}
