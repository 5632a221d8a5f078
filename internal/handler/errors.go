package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/rankpaper-api/internal/service"
	"github.com/noah-isme/rankpaper-api/internal/utils"
)

// Reason codes returned in the details of eligibility denials.
const (
	reasonPaymentRequired = "payment_required"
	reasonNotEligible     = "not_eligible"
)

// handleError maps service errors onto HTTP responses. Only unexpected errors are logged.
func handleError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var (
		validationErrors validator.ValidationErrors
		integrityErr     *service.AnswerKeyIntegrityError
	)

	switch {
	case errors.As(err, &validationErrors):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(validationErrors))

	case errors.Is(err, service.ErrPaymentRequired):
		return utils.Fail(c, fiber.StatusForbidden, err.Error(), fiber.Map{"reason": reasonPaymentRequired})
	case errors.Is(err, service.ErrNotEligible):
		return utils.Fail(c, fiber.StatusForbidden, err.Error(), fiber.Map{"reason": reasonNotEligible})
	case errors.Is(err, service.ErrAttemptForbidden):
		return utils.Fail(c, fiber.StatusForbidden, err.Error(), nil)

	case errors.Is(err, service.ErrPaperNotFound),
		errors.Is(err, service.ErrAttemptNotFound),
		errors.Is(err, service.ErrQuestionNotFound),
		errors.Is(err, service.ErrMarksNotFound),
		errors.Is(err, service.ErrResultNotPublished),
		errors.Is(err, service.ErrNotificationNotFound):
		return utils.Fail(c, fiber.StatusNotFound, err.Error(), nil)

	case errors.Is(err, service.ErrAttemptClosed),
		errors.Is(err, service.ErrAttemptExpired),
		errors.Is(err, service.ErrDeadlineNotReached),
		errors.Is(err, service.ErrMarksAlreadyPublished),
		errors.Is(err, service.ErrMarksConflict):
		return utils.Fail(c, fiber.StatusConflict, err.Error(), nil)

	case errors.Is(err, service.ErrMissingSectionScore),
		errors.Is(err, service.ErrAttemptNotClosed),
		errors.Is(err, service.ErrInvalidTimeLimit):
		return utils.Fail(c, fiber.StatusUnprocessableEntity, err.Error(), nil)

	case errors.Is(err, service.ErrInvalidOption),
		errors.Is(err, service.ErrSectionMismatch),
		errors.Is(err, service.ErrSectionNotEnabled),
		errors.Is(err, service.ErrInvalidViolation),
		errors.Is(err, service.ErrInvalidScore),
		errors.Is(err, service.ErrInvalidCloseReason),
		errors.Is(err, service.ErrUploadRequired),
		errors.Is(err, service.ErrUploadTypeNotAllowed):
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)

	case errors.Is(err, service.ErrUploadTooLarge):
		return utils.Fail(c, fiber.StatusRequestEntityTooLarge, err.Error(), nil)

	case errors.As(err, &integrityErr):
		requestLogger(logger, c).Error().Err(err).
			Uint("paper_id", integrityErr.PaperID).
			Msg("answer key integrity violation")
		return utils.Fail(c, fiber.StatusInternalServerError, "answer key integrity error", nil)

	default:
		requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg("internal server error")
		return utils.Fail(c, fiber.StatusInternalServerError, "internal server error", nil)
	}
}

func validationDetails(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = fieldErr.Tag()
	}
	return details
}
